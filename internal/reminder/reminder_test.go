package reminder

import (
	"testing"
	"time"

	"melody-planner/internal/model"
)

var due = time.Date(2026, 6, 10, 18, 0, 0, 0, time.UTC)

func withReminder(r model.Reminder) model.Task {
	return model.Task{ID: "T", Status: model.StatusTodo, EndDate: due, Reminder: r}
}

func TestTrigger(t *testing.T) {
	custom := due.Add(-5 * time.Hour)
	cases := []struct {
		name   string
		rem    model.Reminder
		want   time.Time
		wantOK bool
	}{
		{"one day", model.Reminder{Type: model.ReminderOneDay}, due.AddDate(0, 0, -1), true},
		{"three days", model.Reminder{Type: model.ReminderThree}, due.AddDate(0, 0, -3), true},
		{"custom", model.Reminder{Type: model.ReminderCustom, Date: &custom}, custom, true},
		{"custom without date", model.Reminder{Type: model.ReminderCustom}, time.Time{}, false},
		{"none", model.Reminder{Type: model.ReminderNone}, time.Time{}, false},
		{"unset", model.Reminder{}, time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Trigger(withReminder(tc.rem))
			if ok != tc.wantOK || !got.Equal(tc.want) {
				t.Fatalf("Trigger = %v %v, want %v %v", got, ok, tc.want, tc.wantOK)
			}
		})
	}
}

func TestDueWindow(t *testing.T) {
	tk := withReminder(model.Reminder{Type: model.ReminderOneDay})
	trigger := due.AddDate(0, 0, -1)

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before trigger", trigger.Add(-time.Second), false},
		{"at trigger", trigger, true},
		{"inside window", trigger.Add(59 * time.Second), true},
		{"window elapsed", trigger.Add(DefaultWindow), false},
		{"long after", trigger.Add(6 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, got := Due(tk, tc.now, DefaultWindow); got != tc.want {
				t.Fatalf("Due at %v = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestDueSkips(t *testing.T) {
	trigger := due.AddDate(0, 0, -1)

	completed := withReminder(model.Reminder{Type: model.ReminderOneDay})
	completed.Status = model.StatusCompleted
	if _, ok := Due(completed, trigger, DefaultWindow); ok {
		t.Error("completed task fired")
	}

	fired := withReminder(model.Reminder{Type: model.ReminderOneDay})
	key, _ := Key(fired)
	fired.RemindedHistory = []string{key}
	if _, ok := Due(fired, trigger, DefaultWindow); ok {
		t.Error("already fired key fired again")
	}
}

func TestKeyChangesWithEdits(t *testing.T) {
	base := withReminder(model.Reminder{Type: model.ReminderOneDay})
	k1, _ := Key(base)

	again, _ := Key(base)
	if again != k1 {
		t.Fatalf("key not stable: %q vs %q", k1, again)
	}

	moved := base
	moved.EndDate = due.Add(2 * time.Hour)
	if k, _ := Key(moved); k == k1 {
		t.Error("moving the due date kept the key")
	}

	retyped := base
	retyped.Reminder.Type = model.ReminderThree
	if k, _ := Key(retyped); k == k1 {
		t.Error("changing the reminder type kept the key")
	}

	// The description is not trigger relevant.
	edited := base
	edited.Description = "more text"
	if k, _ := Key(edited); k != k1 {
		t.Error("unrelated edit changed the key")
	}
}
