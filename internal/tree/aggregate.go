package tree

import (
	"math"

	"melody-planner/internal/model"
)

// Aggregate returns the tasks of p followed by those of every descendant,
// depth-first, in list order.
func Aggregate(p model.Project) []model.Task {
	tasks := make([]model.Task, 0, len(p.Tasks))
	return collect(tasks, p)
}

// AggregateForest flattens every task in the forest.
func AggregateForest(forest []model.Project) []model.Task {
	var tasks []model.Task
	for _, p := range forest {
		tasks = collect(tasks, p)
	}
	return tasks
}

func collect(dst []model.Task, p model.Project) []model.Task {
	dst = append(dst, p.Tasks...)
	for _, c := range p.Children {
		dst = collect(dst, c)
	}
	return dst
}

// Summary is the progress board of a task list.
type Summary struct {
	Total           int `json:"total"`
	Todo            int `json:"todo"`
	InProgress      int `json:"inProgress"`
	Completed       int `json:"completed"`
	AverageProgress int `json:"averageProgress"`
}

// Progress counts tasks per status and averages their progress, rounded.
func Progress(tasks []model.Task) Summary {
	s := Summary{Total: len(tasks)}
	if len(tasks) == 0 {
		return s
	}
	sum := 0
	for _, t := range tasks {
		sum += t.Progress
		switch t.Status {
		case model.StatusTodo:
			s.Todo++
		case model.StatusInProgress:
			s.InProgress++
		case model.StatusCompleted:
			s.Completed++
		}
	}
	s.AverageProgress = int(math.Round(float64(sum) / float64(len(tasks))))
	return s
}

// Column is one status lane of the board.
type Column struct {
	Status model.TaskStatus `json:"status"`
	Tasks  []model.Task     `json:"tasks"`
}

// Board groups tasks into Todo, InProgress and Completed columns, keeping order.
// Tasks with an unknown status are left out.
func Board(tasks []model.Task) []Column {
	cols := []Column{
		{Status: model.StatusTodo, Tasks: []model.Task{}},
		{Status: model.StatusInProgress, Tasks: []model.Task{}},
		{Status: model.StatusCompleted, Tasks: []model.Task{}},
	}
	for _, t := range tasks {
		for i := range cols {
			if cols[i].Status == t.Status {
				cols[i].Tasks = append(cols[i].Tasks, t)
				break
			}
		}
	}
	return cols
}
