package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"melody-planner/internal/model"
)

// ErrUnknownCommand is returned by DecodeCommand for an unrecognised type field.
var ErrUnknownCommand = errors.New("unknown command")

var decoders = map[string]func([]byte) (Command, error){
	AddProject{}.Kind():              decodeAs[AddProject],
	RemoveProject{}.Kind():           decodeAs[RemoveProject],
	RenameProject{}.Kind():           decodeAs[RenameProject],
	SetProjectNotes{}.Kind():         decodeAs[SetProjectNotes],
	SetProjectLogo{}.Kind():          decodeAs[SetProjectLogo],
	SetPrecautions{}.Kind():          decodeAs[SetPrecautions],
	AddPrecaution{}.Kind():           decodeAs[AddPrecaution],
	RemovePrecaution{}.Kind():        decodeAs[RemovePrecaution],
	TouchProject{}.Kind():            decodeAs[TouchProject],
	AddProjectAttachment{}.Kind():    decodeAs[AddProjectAttachment],
	RemoveProjectAttachment{}.Kind(): decodeAs[RemoveProjectAttachment],
	AddTask{}.Kind():                 decodeAs[AddTask],
	RemoveTask{}.Kind():              decodeAs[RemoveTask],
	SetTaskTitle{}.Kind():            decodeAs[SetTaskTitle],
	SetTaskDescription{}.Kind():      decodeAs[SetTaskDescription],
	SetTaskDates{}.Kind():            decodeAs[SetTaskDates],
	SetTaskStatus{}.Kind():           decodeAs[SetTaskStatus],
	SetTaskProgress{}.Kind():         decodeAs[SetTaskProgress],
	ToggleTaskCompletion{}.Kind():    decodeAs[ToggleTaskCompletion],
	SetTaskPriority{}.Kind():         decodeAs[SetTaskPriority],
	SetTaskColor{}.Kind():            decodeAs[SetTaskColor],
	AddTag{}.Kind():                  decodeAs[AddTag],
	RemoveTag{}.Kind():               decodeAs[RemoveTag],
	SetReminder{}.Kind():             decodeAs[SetReminder],
	MarkReminded{}.Kind():            decodeAs[MarkReminded],
	SetRelatedProject{}.Kind():       decodeAs[SetRelatedProject],
	AddTaskAttachment{}.Kind():       decodeAs[AddTaskAttachment],
	RemoveTaskAttachment{}.Kind():    decodeAs[RemoveTaskAttachment],
}

// Kinds lists every command type DecodeCommand accepts.
func Kinds() []string {
	kinds := make([]string, 0, len(decoders))
	for k := range decoders {
		kinds = append(kinds, k)
	}
	return kinds
}

// DecodeCommand reads a {"type": "...", ...} envelope. Add commands without ids get
// fresh ones and the usual defaults, relative to now.
func DecodeCommand(data []byte, now time.Time) (Command, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}
	decode, ok := decoders[envelope.Type]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownCommand, envelope.Type)
	}
	cmd, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
	}
	if err := check(cmd); err != nil {
		return nil, fmt.Errorf("decode %s: %w", envelope.Type, err)
	}
	return withDefaults(cmd, now), nil
}

func decodeAs[T Command](data []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	return cmd, nil
}

func check(cmd Command) error {
	switch c := cmd.(type) {
	case SetTaskStatus:
		if !c.Status.Valid() {
			return fmt.Errorf("invalid status %q", c.Status)
		}
	case SetTaskPriority:
		if !c.Priority.Valid() {
			return fmt.Errorf("invalid priority %q", c.Priority)
		}
	case SetReminder:
		return checkReminder(c.Reminder)
	case AddTask:
		return checkTaskInput(c.Task)
	case AddProject:
		var errs []error
		Walk([]model.Project{c.Project}, func(p model.Project) {
			for _, t := range p.Tasks {
				errs = append(errs, checkTaskInput(t))
			}
		})
		return errors.Join(errs...)
	}
	return nil
}

func checkReminder(r model.Reminder) error {
	if !r.Type.Valid() {
		return fmt.Errorf("invalid reminder type %q", r.Type)
	}
	if r.Type == model.ReminderCustom && r.Date == nil {
		return errors.New("custom reminder needs a date")
	}
	return nil
}

// checkTaskInput rejects values an added task cannot carry. Empty status and
// priority are allowed and get defaults.
func checkTaskInput(t model.Task) error {
	if t.Status != "" && !t.Status.Valid() {
		return fmt.Errorf("task %q: invalid status %q", t.ID, t.Status)
	}
	if t.Priority != "" && !t.Priority.Valid() {
		return fmt.Errorf("task %q: invalid priority %q", t.ID, t.Priority)
	}
	if err := checkReminder(t.Reminder); err != nil {
		return fmt.Errorf("task %q: %w", t.ID, err)
	}
	return nil
}

func withDefaults(cmd Command, now time.Time) Command {
	rng := rand.New(rand.NewSource(now.UnixNano()))
	switch c := cmd.(type) {
	case AddProject:
		if c.Project.ID == "" {
			p := model.NewProject(c.Project.Name, c.ParentID)
			p.Notes = c.Project.Notes
			if c.Project.LogoURL != "" {
				p.LogoURL = c.Project.LogoURL
			}
			c.Project = p
		} else {
			c.Project = fillTasks(c.Project, now, rng)
		}
		return c
	case AddTask:
		c.Task = fillTask(c.Task, now, rng)
		return c
	}
	return cmd
}

func fillTasks(p model.Project, now time.Time, rng *rand.Rand) model.Project {
	tasks := make([]model.Task, len(p.Tasks))
	for i, t := range p.Tasks {
		tasks[i] = fillTask(t, now, rng)
	}
	p.Tasks = tasks
	children := make([]model.Project, len(p.Children))
	for i, ch := range p.Children {
		children[i] = fillTasks(ch, now, rng)
	}
	p.Children = children
	return p
}

// fillTask starts from the new-task defaults and copies over what in sets. An id in
// in is kept. Progress is clamped and repeated tag names keep the first tag.
func fillTask(in model.Task, now time.Time, rng *rand.Rand) model.Task {
	t := model.NewTask(in.Title, now, rng)
	if in.ID != "" {
		t.ID = in.ID
	}
	t.Description = in.Description
	t.Tags = uniqueTags(in.Tags)
	t.RelatedProjectID = in.RelatedProjectID
	t.RemindedHistory = in.RemindedHistory
	t.Attachments = in.Attachments
	if in.Color != "" {
		t.Color = in.Color
	}
	if !in.StartDate.IsZero() {
		t.StartDate = in.StartDate
	}
	if !in.EndDate.IsZero() {
		t.EndDate = in.EndDate
	}
	if in.Status.Valid() {
		t.Status = in.Status
	}
	if in.Priority.Valid() {
		t.Priority = in.Priority
	}
	if in.Reminder.Type.Valid() && in.Reminder.Type != "" {
		t.Reminder = in.Reminder
	}
	t.Progress = min(max(in.Progress, 0), 100)
	return t
}

func uniqueTags(tags []model.Tag) []model.Tag {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]model.Tag, 0, len(tags))
	for _, tag := range tags {
		if _, dup := seen[tag.Name]; dup || tag.Name == "" {
			continue
		}
		seen[tag.Name] = struct{}{}
		out = append(out, tag)
	}
	return out
}
