package tree

import (
	"slices"
	"time"

	"melody-planner/internal/model"
)

// Command is a single mutation of the forest. The set of commands is closed: the
// unexported method keeps other packages from adding their own.
type Command interface {
	Kind() string
	apply(forest []model.Project) ([]model.Project, bool)
}

// Apply runs cmd against forest. A command that refers to an id no longer present
// leaves the forest unchanged and reports false.
func Apply(forest []model.Project, cmd Command) ([]model.Project, bool) {
	return cmd.apply(forest)
}

// Projects

type AddProject struct {
	ParentID string        `json:"parentId"`
	Project  model.Project `json:"project"`
}

func (AddProject) Kind() string { return "add_project" }

func (c AddProject) apply(forest []model.Project) ([]model.Project, bool) {
	return InsertProject(forest, c.ParentID, c.Project)
}

type RemoveProject struct {
	ID string `json:"id"`
}

func (RemoveProject) Kind() string { return "remove_project" }

func (c RemoveProject) apply(forest []model.Project) ([]model.Project, bool) {
	return DeleteProject(forest, c.ID)
}

type RenameProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (RenameProject) Kind() string { return "rename_project" }

func (c RenameProject) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateProject(forest, c.ID, func(p model.Project) (model.Project, bool) {
		if p.Name == c.Name {
			return p, false
		}
		p.Name = c.Name
		return p, true
	})
}

type SetProjectNotes struct {
	ID    string `json:"id"`
	Notes string `json:"notes"`
}

func (SetProjectNotes) Kind() string { return "set_project_notes" }

func (c SetProjectNotes) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateProject(forest, c.ID, func(p model.Project) (model.Project, bool) {
		if p.Notes == c.Notes {
			return p, false
		}
		p.Notes = c.Notes
		return p, true
	})
}

type SetProjectLogo struct {
	ID      string `json:"id"`
	LogoURL string `json:"logoUrl"`
}

func (SetProjectLogo) Kind() string { return "set_project_logo" }

func (c SetProjectLogo) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateProject(forest, c.ID, func(p model.Project) (model.Project, bool) {
		if p.LogoURL == c.LogoURL {
			return p, false
		}
		p.LogoURL = c.LogoURL
		return p, true
	})
}

type SetPrecautions struct {
	ID    string   `json:"id"`
	Items []string `json:"items"`
}

func (SetPrecautions) Kind() string { return "set_precautions" }

func (c SetPrecautions) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateProject(forest, c.ID, func(p model.Project) (model.Project, bool) {
		if slices.Equal(p.Precautions, c.Items) {
			return p, false
		}
		p.Precautions = append([]string{}, c.Items...)
		return p, true
	})
}

type AddPrecaution struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func (AddPrecaution) Kind() string { return "add_precaution" }

func (c AddPrecaution) apply(forest []model.Project) ([]model.Project, bool) {
	if c.Text == "" {
		return forest, false
	}
	return UpdateProject(forest, c.ID, func(p model.Project) (model.Project, bool) {
		p.Precautions = append(slices.Clone(p.Precautions), c.Text)
		return p, true
	})
}

type RemovePrecaution struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

func (RemovePrecaution) Kind() string { return "remove_precaution" }

func (c RemovePrecaution) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateProject(forest, c.ID, func(p model.Project) (model.Project, bool) {
		if c.Index < 0 || c.Index >= len(p.Precautions) {
			return p, false
		}
		p.Precautions = slices.Delete(slices.Clone(p.Precautions), c.Index, c.Index+1)
		return p, true
	})
}

// TouchProject records that the project was opened.
type TouchProject struct {
	ID string    `json:"id"`
	At time.Time `json:"at"`
}

func (TouchProject) Kind() string { return "touch_project" }

func (c TouchProject) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateProject(forest, c.ID, func(p model.Project) (model.Project, bool) {
		if p.LastAccessedAt != nil && p.LastAccessedAt.Equal(c.At) {
			return p, false
		}
		at := c.At
		p.LastAccessedAt = &at
		return p, true
	})
}

type AddProjectAttachment struct {
	ID         string           `json:"id"`
	Attachment model.Attachment `json:"attachment"`
}

func (AddProjectAttachment) Kind() string { return "add_project_attachment" }

func (c AddProjectAttachment) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateProject(forest, c.ID, func(p model.Project) (model.Project, bool) {
		if attachmentIndex(p.Attachments, c.Attachment.ID) >= 0 {
			return p, false
		}
		p.Attachments = append(slices.Clone(p.Attachments), c.Attachment)
		return p, true
	})
}

type RemoveProjectAttachment struct {
	ID           string `json:"id"`
	AttachmentID string `json:"attachmentId"`
}

func (RemoveProjectAttachment) Kind() string { return "remove_project_attachment" }

func (c RemoveProjectAttachment) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateProject(forest, c.ID, func(p model.Project) (model.Project, bool) {
		idx := attachmentIndex(p.Attachments, c.AttachmentID)
		if idx < 0 {
			return p, false
		}
		p.Attachments = slices.Delete(slices.Clone(p.Attachments), idx, idx+1)
		return p, true
	})
}

// Tasks

type AddTask struct {
	ProjectID string     `json:"projectId"`
	Task      model.Task `json:"task"`
}

func (AddTask) Kind() string { return "add_task" }

func (c AddTask) apply(forest []model.Project) ([]model.Project, bool) {
	return InsertTask(forest, c.ProjectID, c.Task)
}

type RemoveTask struct {
	ID string `json:"id"`
}

func (RemoveTask) Kind() string { return "remove_task" }

func (c RemoveTask) apply(forest []model.Project) ([]model.Project, bool) {
	return DeleteTask(forest, c.ID)
}

type SetTaskTitle struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (SetTaskTitle) Kind() string { return "set_task_title" }

func (c SetTaskTitle) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if t.Title == c.Title {
			return t, false
		}
		t.Title = c.Title
		return t, true
	})
}

type SetTaskDescription struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

func (SetTaskDescription) Kind() string { return "set_task_description" }

func (c SetTaskDescription) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if t.Description == c.Description {
			return t, false
		}
		t.Description = c.Description
		return t, true
	})
}

// SetTaskDates does not require End to follow Start.
type SetTaskDates struct {
	ID    string    `json:"id"`
	Start time.Time `json:"startDate"`
	End   time.Time `json:"endDate"`
}

func (SetTaskDates) Kind() string { return "set_task_dates" }

func (c SetTaskDates) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if t.StartDate.Equal(c.Start) && t.EndDate.Equal(c.End) {
			return t, false
		}
		t.StartDate = c.Start
		t.EndDate = c.End
		return t, true
	})
}

// SetTaskStatus leaves Progress alone.
type SetTaskStatus struct {
	ID     string           `json:"id"`
	Status model.TaskStatus `json:"status"`
}

func (SetTaskStatus) Kind() string { return "set_task_status" }

func (c SetTaskStatus) apply(forest []model.Project) ([]model.Project, bool) {
	if !c.Status.Valid() {
		return forest, false
	}
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if t.Status == c.Status {
			return t, false
		}
		t.Status = c.Status
		return t, true
	})
}

// SetTaskProgress clamps to 0..100 and leaves Status alone.
type SetTaskProgress struct {
	ID       string `json:"id"`
	Progress int    `json:"progress"`
}

func (SetTaskProgress) Kind() string { return "set_task_progress" }

func (c SetTaskProgress) apply(forest []model.Project) ([]model.Project, bool) {
	progress := min(max(c.Progress, 0), 100)
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if t.Progress == progress {
			return t, false
		}
		t.Progress = progress
		return t, true
	})
}

// ToggleTaskCompletion flips between Completed/100 and Todo/0.
type ToggleTaskCompletion struct {
	ID string `json:"id"`
}

func (ToggleTaskCompletion) Kind() string { return "toggle_task_completion" }

func (c ToggleTaskCompletion) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if t.Status == model.StatusCompleted {
			t.Status, t.Progress = model.StatusTodo, 0
		} else {
			t.Status, t.Progress = model.StatusCompleted, 100
		}
		return t, true
	})
}

type SetTaskPriority struct {
	ID       string             `json:"id"`
	Priority model.TaskPriority `json:"priority"`
}

func (SetTaskPriority) Kind() string { return "set_task_priority" }

func (c SetTaskPriority) apply(forest []model.Project) ([]model.Project, bool) {
	if !c.Priority.Valid() {
		return forest, false
	}
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if t.Priority == c.Priority {
			return t, false
		}
		t.Priority = c.Priority
		return t, true
	})
}

type SetTaskColor struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

func (SetTaskColor) Kind() string { return "set_task_color" }

func (c SetTaskColor) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if t.Color == c.Color {
			return t, false
		}
		t.Color = c.Color
		return t, true
	})
}

// AddTag keeps the existing tag when the task already has one with that name.
type AddTag struct {
	ID  string    `json:"id"`
	Tag model.Tag `json:"tag"`
}

func (AddTag) Kind() string { return "add_tag" }

func (c AddTag) apply(forest []model.Project) ([]model.Project, bool) {
	if c.Tag.Name == "" {
		return forest, false
	}
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if t.HasTag(c.Tag.Name) {
			return t, false
		}
		t.Tags = append(slices.Clone(t.Tags), c.Tag)
		return t, true
	})
}

type RemoveTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (RemoveTag) Kind() string { return "remove_tag" }

func (c RemoveTag) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if !t.HasTag(c.Name) {
			return t, false
		}
		t.Tags = slices.DeleteFunc(slices.Clone(t.Tags), func(tag model.Tag) bool {
			return tag.Name == c.Name
		})
		return t, true
	})
}

type SetReminder struct {
	ID       string         `json:"id"`
	Reminder model.Reminder `json:"reminder"`
}

func (SetReminder) Kind() string { return "set_reminder" }

func (c SetReminder) apply(forest []model.Project) ([]model.Project, bool) {
	if !c.Reminder.Type.Valid() {
		return forest, false
	}
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if sameReminder(t.Reminder, c.Reminder) {
			return t, false
		}
		r := c.Reminder
		if r.Date != nil {
			d := *r.Date
			r.Date = &d
		}
		t.Reminder = r
		return t, true
	})
}

// MarkReminded adds Key to the firing history of the task.
type MarkReminded struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

func (MarkReminded) Kind() string { return "mark_reminded" }

func (c MarkReminded) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if t.Reminded(c.Key) {
			return t, false
		}
		t.RemindedHistory = append(slices.Clone(t.RemindedHistory), c.Key)
		return t, true
	})
}

type SetRelatedProject struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
}

func (SetRelatedProject) Kind() string { return "set_related_project" }

func (c SetRelatedProject) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if t.RelatedProjectID == c.ProjectID {
			return t, false
		}
		t.RelatedProjectID = c.ProjectID
		return t, true
	})
}

type AddTaskAttachment struct {
	ID         string           `json:"id"`
	Attachment model.Attachment `json:"attachment"`
}

func (AddTaskAttachment) Kind() string { return "add_task_attachment" }

func (c AddTaskAttachment) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		if attachmentIndex(t.Attachments, c.Attachment.ID) >= 0 {
			return t, false
		}
		t.Attachments = append(slices.Clone(t.Attachments), c.Attachment)
		return t, true
	})
}

type RemoveTaskAttachment struct {
	ID           string `json:"id"`
	AttachmentID string `json:"attachmentId"`
}

func (RemoveTaskAttachment) Kind() string { return "remove_task_attachment" }

func (c RemoveTaskAttachment) apply(forest []model.Project) ([]model.Project, bool) {
	return UpdateTask(forest, c.ID, func(t model.Task) (model.Task, bool) {
		idx := attachmentIndex(t.Attachments, c.AttachmentID)
		if idx < 0 {
			return t, false
		}
		t.Attachments = slices.Delete(slices.Clone(t.Attachments), idx, idx+1)
		return t, true
	})
}

func attachmentIndex(list []model.Attachment, id string) int {
	return slices.IndexFunc(list, func(a model.Attachment) bool { return a.ID == id })
}

func sameReminder(a, b model.Reminder) bool {
	if a.Type != b.Type {
		return false
	}
	switch {
	case a.Date == nil && b.Date == nil:
		return true
	case a.Date == nil || b.Date == nil:
		return false
	default:
		return a.Date.Equal(*b.Date)
	}
}
