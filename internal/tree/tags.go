package tree

import "melody-planner/internal/model"

// TagIndex lists the distinct tags of tasks in first-seen order. When two tasks use
// the same name with different colors the first color wins.
func TagIndex(tasks []model.Task) []model.Tag {
	seen := make(map[string]struct{})
	index := []model.Tag{}
	for _, t := range tasks {
		for _, tag := range t.Tags {
			if _, ok := seen[tag.Name]; ok {
				continue
			}
			seen[tag.Name] = struct{}{}
			index = append(index, tag)
		}
	}
	return index
}

// FilterByTags keeps the tasks that carry at least one of the selected tag names.
// An empty selection returns tasks as is.
func FilterByTags(tasks []model.Task, selected []string) []model.Task {
	if len(selected) == 0 {
		return tasks
	}
	want := make(map[string]struct{}, len(selected))
	for _, name := range selected {
		want[name] = struct{}{}
	}
	out := []model.Task{}
	for _, t := range tasks {
		for _, tag := range t.Tags {
			if _, ok := want[tag.Name]; ok {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
