package tree

import (
	"errors"
	"fmt"

	"melody-planner/internal/model"
)

// ErrEmptyForest is returned by Validate for a forest without roots.
var ErrEmptyForest = errors.New("forest has no root project")

// Validate checks the structural invariants: at least one root, ids unique across
// projects and tasks, and children pointing back at their parent.
func Validate(forest []model.Project) error {
	if len(forest) == 0 {
		return ErrEmptyForest
	}
	var errs []error
	seen := make(map[string]struct{})

	var visit func(list []model.Project, parentID string)
	visit = func(list []model.Project, parentID string) {
		for _, p := range list {
			if p.ID == "" {
				errs = append(errs, fmt.Errorf("project %q has an empty id", p.Name))
			}
			if _, dup := seen[p.ID]; dup {
				errs = append(errs, fmt.Errorf("duplicate project id %q", p.ID))
			}
			seen[p.ID] = struct{}{}
			if p.ParentID != parentID {
				errs = append(errs, fmt.Errorf("project %q: parent is %q, want %q", p.ID, p.ParentID, parentID))
			}
			for _, t := range p.Tasks {
				if _, dup := seen[t.ID]; dup {
					errs = append(errs, fmt.Errorf("duplicate task id %q", t.ID))
				}
				seen[t.ID] = struct{}{}
			}
			visit(p.Children, p.ID)
		}
	}
	visit(forest, "")
	return errors.Join(errs...)
}

// CheckTask reports why t cannot be stored: an empty id, an unknown status, priority
// or reminder type, progress outside 0..100, or two tags with the same name.
func CheckTask(t model.Task) error {
	var errs []error
	if t.ID == "" {
		errs = append(errs, fmt.Errorf("task %q has an empty id", t.Title))
	}
	if !t.Status.Valid() {
		errs = append(errs, fmt.Errorf("task %q: invalid status %q", t.ID, t.Status))
	}
	if !t.Priority.Valid() {
		errs = append(errs, fmt.Errorf("task %q: invalid priority %q", t.ID, t.Priority))
	}
	if t.Progress < 0 || t.Progress > 100 {
		errs = append(errs, fmt.Errorf("task %q: progress %d out of range", t.ID, t.Progress))
	}
	if !t.Reminder.Type.Valid() {
		errs = append(errs, fmt.Errorf("task %q: invalid reminder type %q", t.ID, t.Reminder.Type))
	}
	names := make(map[string]struct{}, len(t.Tags))
	for _, tag := range t.Tags {
		if _, dup := names[tag.Name]; dup {
			errs = append(errs, fmt.Errorf("task %q: duplicate tag %q", t.ID, tag.Name))
		}
		names[tag.Name] = struct{}{}
	}
	return errors.Join(errs...)
}
