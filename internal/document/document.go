// Package document converts a workspace to and from the JSON document that the local
// cache and the remote store hold.
package document

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"melody-planner/internal/model"
	"melody-planner/internal/tree"
)

//go:embed schema.json
var schemaJSON string

// ErrInvalid marks a document that fails the schema or the tree invariants.
var ErrInvalid = errors.New("invalid workspace document")

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiled() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("workspace.json", strings.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("load schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("workspace.json")
	})
	return schema, schemaErr
}

// Encode serializes ws.
func Encode(ws model.Workspace) ([]byte, error) {
	data, err := json.Marshal(ws)
	if err != nil {
		return nil, fmt.Errorf("encode workspace: %w", err)
	}
	return data, nil
}

// Decode parses and validates a document. Missing lists become empty ones, tasks
// without status or priority get the defaults, repeated tag names keep the first tag
// and an empty forest gets a default root.
func Decode(data []byte) (model.Workspace, error) {
	if err := Validate(data); err != nil {
		return model.Workspace{}, err
	}
	var ws model.Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return model.Workspace{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	ws.Projects = tree.Heal(normalize(ws.Projects))
	if err := tree.Validate(ws.Projects); err != nil {
		return model.Workspace{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var errs []error
	tree.Walk(ws.Projects, func(p model.Project) {
		for _, t := range p.Tasks {
			errs = append(errs, tree.CheckTask(t))
		}
	})
	if err := errors.Join(errs...); err != nil {
		return model.Workspace{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return ws, nil
}

// Validate checks data against the workspace schema.
func Validate(data []byte) error {
	s, err := compiled()
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Validate(doc); err != nil {
		var msgs []string
		collect(err, &msgs)
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
	}
	return nil
}

func collect(err error, msgs *[]string) {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		*msgs = append(*msgs, err.Error())
		return
	}
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		*msgs = append(*msgs, fmt.Sprintf("%s: %s", loc, ve.Message))
		return
	}
	for _, cause := range ve.Causes {
		collect(cause, msgs)
	}
}

func normalize(list []model.Project) []model.Project {
	out := make([]model.Project, len(list))
	for i, p := range list {
		tasks := make([]model.Task, len(p.Tasks))
		for j, t := range p.Tasks {
			tasks[j] = normalizeTask(t)
		}
		p.Tasks = tasks
		if p.Precautions == nil {
			p.Precautions = []string{}
		}
		p.Children = normalize(p.Children)
		out[i] = p
	}
	return out
}

func normalizeTask(t model.Task) model.Task {
	if t.Status == "" {
		t.Status = model.StatusTodo
	}
	if t.Priority == "" {
		t.Priority = model.PriorityMedium
	}
	if len(t.Tags) > 1 {
		seen := make(map[string]struct{}, len(t.Tags))
		tags := make([]model.Tag, 0, len(t.Tags))
		for _, tag := range t.Tags {
			if _, dup := seen[tag.Name]; dup {
				continue
			}
			seen[tag.Name] = struct{}{}
			tags = append(tags, tag)
		}
		t.Tags = tags
	}
	return t
}
