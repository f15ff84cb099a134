// Package tree holds the pure operations over the project forest. Every function
// returns a new forest and leaves its input untouched; branches that were not on the
// path to the change are shared with the input.
package tree

import (
	"slices"

	"melody-planner/internal/model"
)

// ProjectPatch rewrites one project. It reports false when nothing changed.
type ProjectPatch func(p model.Project) (model.Project, bool)

// TaskPatch rewrites one task. It reports false when nothing changed.
type TaskPatch func(t model.Task) (model.Task, bool)

// FindProject locates a project depth-first. The first match wins.
func FindProject(forest []model.Project, id string) (model.Project, bool) {
	for _, p := range forest {
		if p.ID == id {
			return p, true
		}
		if found, ok := FindProject(p.Children, id); ok {
			return found, true
		}
	}
	return model.Project{}, false
}

// FindTask locates a task anywhere in the forest and returns the id of the project
// that owns it.
func FindTask(forest []model.Project, id string) (model.Task, string, bool) {
	for _, p := range forest {
		if idx := taskIndex(p.Tasks, id); idx >= 0 {
			return p.Tasks[idx], p.ID, true
		}
		if t, owner, ok := FindTask(p.Children, id); ok {
			return t, owner, true
		}
	}
	return model.Task{}, "", false
}

// Walk visits every project depth-first, parents before children.
func Walk(forest []model.Project, fn func(p model.Project)) {
	for _, p := range forest {
		fn(p)
		Walk(p.Children, fn)
	}
}

// UpdateProject applies patch to the project with the given id. The id, parent link
// and children of the project are kept whatever the patch returns, so a patch cannot
// break the shape of the tree.
func UpdateProject(forest []model.Project, id string, patch ProjectPatch) ([]model.Project, bool) {
	for i := range forest {
		if forest[i].ID == id {
			orig := forest[i]
			updated, changed := patch(orig)
			if !changed {
				return forest, false
			}
			updated.ID = orig.ID
			updated.ParentID = orig.ParentID
			updated.Children = orig.Children
			next := slices.Clone(forest)
			next[i] = updated
			return next, true
		}
		if children, ok := UpdateProject(forest[i].Children, id, patch); ok {
			next := slices.Clone(forest)
			next[i].Children = children
			return next, true
		}
	}
	return forest, false
}

// UpdateTask applies patch to the task with the given id, wherever it lives.
func UpdateTask(forest []model.Project, id string, patch TaskPatch) ([]model.Project, bool) {
	for i := range forest {
		if idx := taskIndex(forest[i].Tasks, id); idx >= 0 {
			updated, changed := patch(forest[i].Tasks[idx])
			if !changed {
				return forest, false
			}
			updated.ID = id
			tasks := slices.Clone(forest[i].Tasks)
			tasks[idx] = updated
			next := slices.Clone(forest)
			next[i].Tasks = tasks
			return next, true
		}
		if children, ok := UpdateTask(forest[i].Children, id, patch); ok {
			next := slices.Clone(forest)
			next[i].Children = children
			return next, true
		}
	}
	return forest, false
}

// InsertProject appends p to the roots when parentID is empty, otherwise to the
// children of parentID. It is a no-op when the parent is missing, when any id in the
// subtree of p is already taken, or when one of its tasks fails CheckTask.
func InsertProject(forest []model.Project, parentID string, p model.Project) ([]model.Project, bool) {
	if !insertable(forest, p) {
		return forest, false
	}
	p = relink(p, parentID)

	if parentID == "" {
		next := make([]model.Project, 0, len(forest)+1)
		next = append(next, forest...)
		return append(next, p), true
	}

	return graft(forest, parentID, p)
}

// InsertTask appends t to the task list of projectID. It is a no-op when the id is
// taken by any project or task, or when t fails CheckTask.
func InsertTask(forest []model.Project, projectID string, t model.Task) ([]model.Project, bool) {
	if CheckTask(t) != nil {
		return forest, false
	}
	if _, exists := nodeIDs(forest)[t.ID]; exists {
		return forest, false
	}
	return UpdateProject(forest, projectID, func(p model.Project) (model.Project, bool) {
		tasks := make([]model.Task, 0, len(p.Tasks)+1)
		p.Tasks = append(append(tasks, p.Tasks...), t)
		return p, true
	})
}

// DeleteProject drops the project with the given id together with its subtree. When
// the last root goes, a default root project takes its place.
func DeleteProject(forest []model.Project, id string) ([]model.Project, bool) {
	next, ok := removeProject(forest, id)
	if !ok {
		return forest, false
	}
	return Heal(next), true
}

// DeleteTask drops the task with the given id from whichever project owns it.
func DeleteTask(forest []model.Project, id string) ([]model.Project, bool) {
	return removeTask(forest, id)
}

// Heal guarantees a non-empty forest.
func Heal(forest []model.Project) []model.Project {
	if len(forest) > 0 {
		return forest
	}
	return []model.Project{model.NewProject(model.DefaultProjectName, "")}
}

func removeProject(list []model.Project, id string) ([]model.Project, bool) {
	var out []model.Project
	changed := false
	for i, p := range list {
		if p.ID == id {
			if !changed {
				out = append(make([]model.Project, 0, len(list)), list[:i]...)
				changed = true
			}
			continue
		}
		if children, ok := removeProject(p.Children, id); ok {
			if !changed {
				out = append(make([]model.Project, 0, len(list)), list[:i]...)
				changed = true
			}
			p.Children = children
		}
		if changed {
			out = append(out, p)
		}
	}
	if !changed {
		return list, false
	}
	return out, true
}

func removeTask(list []model.Project, id string) ([]model.Project, bool) {
	for i := range list {
		if idx := taskIndex(list[i].Tasks, id); idx >= 0 {
			next := slices.Clone(list)
			next[i].Tasks = slices.Delete(slices.Clone(list[i].Tasks), idx, idx+1)
			return next, true
		}
		if children, ok := removeTask(list[i].Children, id); ok {
			next := slices.Clone(list)
			next[i].Children = children
			return next, true
		}
	}
	return list, false
}

func graft(list []model.Project, parentID string, child model.Project) ([]model.Project, bool) {
	for i := range list {
		if list[i].ID == parentID {
			next := slices.Clone(list)
			children := make([]model.Project, 0, len(list[i].Children)+1)
			next[i].Children = append(append(children, list[i].Children...), child)
			return next, true
		}
		if children, ok := graft(list[i].Children, parentID, child); ok {
			next := slices.Clone(list)
			next[i].Children = children
			return next, true
		}
	}
	return list, false
}

// relink sets the parent references of p and its descendants.
func relink(p model.Project, parentID string) model.Project {
	p.ParentID = parentID
	if p.Tasks == nil {
		p.Tasks = []model.Task{}
	}
	if p.Precautions == nil {
		p.Precautions = []string{}
	}
	children := make([]model.Project, len(p.Children))
	for i, c := range p.Children {
		children[i] = relink(c, p.ID)
	}
	p.Children = children
	return p
}

// insertable reports whether p can join forest: every id in its subtree is new to the
// forest and to the subtree itself, and every task passes CheckTask.
func insertable(forest []model.Project, p model.Project) bool {
	seen := nodeIDs(forest)
	ok := true
	claim := func(id string) {
		if _, dup := seen[id]; dup || id == "" {
			ok = false
		}
		seen[id] = struct{}{}
	}
	Walk([]model.Project{p}, func(n model.Project) {
		claim(n.ID)
		for _, t := range n.Tasks {
			claim(t.ID)
			if CheckTask(t) != nil {
				ok = false
			}
		}
	})
	return ok
}

// nodeIDs collects project and task ids into one set; they share a namespace.
func nodeIDs(forest []model.Project) map[string]struct{} {
	seen := make(map[string]struct{})
	Walk(forest, func(p model.Project) {
		seen[p.ID] = struct{}{}
		for _, t := range p.Tasks {
			seen[t.ID] = struct{}{}
		}
	})
	return seen
}

func taskIndex(tasks []model.Task, id string) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}
