package model

import "time"

// TaskStatus is the workflow column a task sits in.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ReminderType selects how the trigger instant of a reminder is derived.
type ReminderType string

const (
	ReminderNone   ReminderType = "none"
	ReminderOneDay ReminderType = "1_day"
	ReminderThree  ReminderType = "3_days"
	ReminderCustom ReminderType = "custom"
)

func (r ReminderType) Valid() bool {
	switch r {
	case "", ReminderNone, ReminderOneDay, ReminderThree, ReminderCustom:
		return true
	}
	return false
}

// Reminder is the per-task notification setting. Date is only read for custom reminders.
type Reminder struct {
	Type ReminderType `json:"type"`
	Date *time.Time   `json:"date,omitempty"`
}

// Enabled reports whether the reminder can ever fire.
func (r Reminder) Enabled() bool {
	return r.Type != "" && r.Type != ReminderNone
}

// Tag is unique by Name within a task.
type Tag struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Attachment points at an uploaded file; upload itself happens elsewhere.
type Attachment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Path      string    `json:"path"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
}

// Task is owned by exactly one project's task list.
type Task struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description"`
	StartDate        time.Time    `json:"startDate"`
	EndDate          time.Time    `json:"endDate"`
	Progress         int          `json:"progress"`
	Status           TaskStatus   `json:"status"`
	Priority         TaskPriority `json:"priority"`
	Color            string       `json:"color"`
	Tags             []Tag        `json:"tags,omitempty"`
	Reminder         Reminder     `json:"reminder"`
	RemindedHistory  []string     `json:"remindedHistory,omitempty"`
	RelatedProjectID string       `json:"relatedProjectId,omitempty"`
	Attachments      []Attachment `json:"attachments,omitempty"`
}

// HasTag reports whether the task carries a tag with the given name.
func (t Task) HasTag(name string) bool {
	for _, tag := range t.Tags {
		if tag.Name == name {
			return true
		}
	}
	return false
}

// Reminded reports whether key is already in the firing history.
func (t Task) Reminded(key string) bool {
	for _, k := range t.RemindedHistory {
		if k == key {
			return true
		}
	}
	return false
}
