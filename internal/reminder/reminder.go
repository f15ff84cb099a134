// Package reminder decides when a task reminder fires.
//
// A 1_day or 3_days reminder triggers at the exact due instant minus one or three
// calendar days; a custom reminder triggers at its own date. A reminder fires only
// inside a short window after its trigger, so occurrences that elapsed while nothing
// was polling are skipped rather than delivered late.
package reminder

import (
	"fmt"
	"time"

	"melody-planner/internal/model"
)

// DefaultWindow is how long after its trigger a reminder is still deliverable.
const DefaultWindow = 60 * time.Second

// Trigger returns the instant the reminder of t is due.
func Trigger(t model.Task) (time.Time, bool) {
	switch t.Reminder.Type {
	case model.ReminderOneDay:
		return t.EndDate.AddDate(0, 0, -1), true
	case model.ReminderThree:
		return t.EndDate.AddDate(0, 0, -3), true
	case model.ReminderCustom:
		if t.Reminder.Date == nil {
			return time.Time{}, false
		}
		return *t.Reminder.Date, true
	}
	return time.Time{}, false
}

// Key identifies one trigger occurrence. It changes whenever the reminder type, the
// due date of a relative reminder, or the custom date changes.
func Key(t model.Task) (string, bool) {
	at, ok := Trigger(t)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s@%s", t.Reminder.Type, at.UTC().Format(time.RFC3339)), true
}

// Due reports whether t should fire at now and returns the history key to record.
// Completed tasks, disabled reminders and already fired keys never fire.
func Due(t model.Task, now time.Time, window time.Duration) (string, bool) {
	if t.Status == model.StatusCompleted || !t.Reminder.Enabled() {
		return "", false
	}
	at, ok := Trigger(t)
	if !ok {
		return "", false
	}
	if now.Before(at) || !now.Before(at.Add(window)) {
		return "", false
	}
	key, _ := Key(t)
	if t.Reminded(key) {
		return "", false
	}
	return key, true
}
