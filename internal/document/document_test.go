package document

import (
	"errors"
	"strings"
	"testing"
	"time"

	"melody-planner/internal/model"
	"melody-planner/internal/tree"
)

func TestRoundTripSeed(t *testing.T) {
	ws := model.SeedWorkspace(time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC))
	data, err := Encode(ws)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != ws.Name || len(got.Projects) != 1 || len(got.Projects[0].Children) != 1 {
		t.Fatalf("decoded %+v", got)
	}
	if got.Projects[0].Tasks[0].Progress != 60 {
		t.Fatalf("task lost its progress: %+v", got.Projects[0].Tasks[0])
	}
}

func TestDecodeNormalizes(t *testing.T) {
	doc := `{"workspaceName":"W","projects":[{"id":"p","name":"P","tasks":null}]}`
	ws, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p := ws.Projects[0]
	if p.Tasks == nil || p.Children == nil || p.Precautions == nil {
		t.Fatalf("lists not normalized: %+v", p)
	}

	ws, err = Decode([]byte(`{"projects":[]}`))
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if len(ws.Projects) != 1 {
		t.Fatalf("empty forest not healed: %d roots", len(ws.Projects))
	}
}

func TestDecodeRejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		hint string
	}{
		{"not json", `{`, ""},
		{"missing projects", `{"workspaceName":"W"}`, "projects"},
		{"bad status", `{"projects":[{"id":"p","name":"P","tasks":[{"id":"t","title":"T","status":"done"}]}]}`, "/projects/0/tasks/0/status"},
		{"progress out of range", `{"projects":[{"id":"p","name":"P","tasks":[{"id":"t","title":"T","progress":140}]}]}`, "progress"},
		{"duplicate ids", `{"projects":[{"id":"p","name":"A"},{"id":"p","name":"B"}]}`, "duplicate"},
		{"broken parent link", `{"projects":[{"id":"p","name":"A","children":[{"id":"c","name":"C","parentId":"x"}]}]}`, "parent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.doc))
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if tc.hint != "" && !strings.Contains(err.Error(), tc.hint) {
				t.Fatalf("err %q does not mention %q", err, tc.hint)
			}
		})
	}
}

func TestAddedTasksSurviveReload(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	ws := model.SeedWorkspace(now)
	ws.Projects[0].Name = "My precious project"
	rootID := ws.Projects[0].ID

	for _, body := range []string{
		`{"type":"add_task","projectId":"` + rootID + `","task":{"id":"t9","title":"explicit","progress":500,"tags":[{"name":"a"},{"name":"a"}]}}`,
		`{"type":"add_task","projectId":"` + rootID + `","task":{"title":"generated"}}`,
	} {
		cmd, err := tree.DecodeCommand([]byte(body), now)
		if err != nil {
			t.Fatalf("decode command: %v", err)
		}
		var ok bool
		if ws.Projects, ok = tree.Apply(ws.Projects, cmd); !ok {
			t.Fatalf("%s not applied", body)
		}
	}

	data, err := Encode(ws)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Projects[0].Name != "My precious project" {
		t.Fatalf("root = %q", got.Projects[0].Name)
	}
	if tk, _, ok := tree.FindTask(got.Projects, "t9"); !ok || tk.Progress != 100 || len(tk.Tags) != 1 {
		t.Fatalf("t9 = %+v", tk)
	}
}

func TestDecodeFillsTaskDefaults(t *testing.T) {
	doc := `{"projects":[{"id":"p","name":"P","tasks":[{"id":"t","title":"T","tags":[{"name":"x","color":"red"},{"name":"x","color":"blue"}]}]}]}`
	ws, err := Decode([]byte(doc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	tk := ws.Projects[0].Tasks[0]
	if tk.Status != model.StatusTodo || tk.Priority != model.PriorityMedium {
		t.Fatalf("defaults = %+v", tk)
	}
	if len(tk.Tags) != 1 || tk.Tags[0].Color != "red" {
		t.Fatalf("tags = %+v", tk.Tags)
	}
	if _, err := Decode(mustEncode(t, ws)); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
}

func mustEncode(t *testing.T, ws model.Workspace) []byte {
	t.Helper()
	data, err := Encode(ws)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}
