package model

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultWorkspaceName = "Melody"
	DefaultWorkspaceLogo = "🍓"
	DefaultProjectName   = "New Project"
	DefaultProjectLogo   = "📁"
	DefaultTaskTitle     = "New Task"
)

// TaskColors is the palette new tasks pick their color from.
var TaskColors = []string{
	"#ffb8d1",
	"#b8e1ff",
	"#d1ffb8",
	"#fff7b8",
	"#e1b8ff",
}

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

// NewProject builds an empty project under parentID ("" for a root).
func NewProject(name, parentID string) Project {
	if name == "" {
		name = DefaultProjectName
	}
	return Project{
		ID:          NewID(),
		Name:        name,
		ParentID:    parentID,
		LogoURL:     DefaultProjectLogo,
		Precautions: []string{},
		Tasks:       []Task{},
		Children:    []Project{},
	}
}

// NewTask builds a task starting at local midnight of now and due two days later.
func NewTask(title string, now time.Time, rng *rand.Rand) Task {
	if title == "" {
		title = DefaultTaskTitle
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	color := TaskColors[0]
	if rng != nil {
		color = TaskColors[rng.Intn(len(TaskColors))]
	}
	return Task{
		ID:        NewID(),
		Title:     title,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 2),
		Status:    StatusTodo,
		Priority:  PriorityMedium,
		Color:     color,
		Reminder:  Reminder{Type: ReminderNone},
	}
}

// SeedWorkspace is what a fresh install starts with when neither the local cache nor
// the remote store has data.
func SeedWorkspace(now time.Time) Workspace {
	root := NewProject("My Dream Project", "")
	root.Notes = "Notes for the first project."
	root.Precautions = []string{"Keep the palette soft."}

	child := NewProject("Sub Activity", root.ID)
	child.Notes = "Details of the sub project."
	root.Children = []Project{child}

	task := NewTask("Design the icon set", now, nil)
	task.StartDate = now
	task.EndDate = now.AddDate(0, 0, 3)
	task.Progress = 60
	task.Status = StatusInProgress
	task.Priority = PriorityHigh
	root.Tasks = []Task{task}

	return Workspace{
		Name:     DefaultWorkspaceName,
		Logo:     DefaultWorkspaceLogo,
		Projects: []Project{root},
	}
}
