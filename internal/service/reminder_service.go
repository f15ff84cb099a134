package service

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"melody-planner/internal/model"
	"melody-planner/internal/reminder"
	"melody-planner/internal/tree"
)

// Permission is the state of the native notification channel.
type Permission string

const (
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
	PermissionUndetermined Permission = "undetermined"
)

// Notifier delivers reminders outside the app. Permission must not block on the user.
type Notifier interface {
	Permission(ctx context.Context) Permission
	Notify(ctx context.Context, p Popup) error
}

// FiredLog remembers which reminders this device already fired, independently of
// the synced task history.
type FiredLog interface {
	Fired(ctx context.Context, taskID, key string) (bool, error)
	RecordFired(ctx context.Context, taskID, key string, at time.Time) error
}

// DueReminder is one task in a popup.
type DueReminder struct {
	TaskID      string             `json:"taskId"`
	Title       string             `json:"title"`
	ProjectID   string             `json:"projectId"`
	ProjectName string             `json:"projectName"`
	Type        model.ReminderType `json:"type"`
	Key         string             `json:"key"`
	Trigger     time.Time          `json:"trigger"`
	EndDate     time.Time          `json:"endDate"`
}

// Popup is everything that fired in one poll.
type Popup struct {
	At        time.Time     `json:"at"`
	Reminders []DueReminder `json:"reminders"`
}

// Inbox buffers popups until the view layer collects them.
type Inbox struct {
	mu     sync.Mutex
	popups []Popup
	limit  int
}

func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = 32
	}
	return &Inbox{limit: limit}
}

func (i *Inbox) Push(p Popup) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.popups = append(i.popups, p)
	if over := len(i.popups) - i.limit; over > 0 {
		i.popups = i.popups[over:]
	}
}

// Drain returns the buffered popups, oldest first, and empties the inbox.
func (i *Inbox) Drain() []Popup {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.popups
	i.popups = nil
	if out == nil {
		out = []Popup{}
	}
	return out
}

// ReminderService runs the reminder poll against a store.
type ReminderService struct {
	store    *Store
	fired    FiredLog
	inbox    *Inbox
	notifier Notifier
	window   time.Duration
	logger   *log.Logger

	mu sync.Mutex
}

func NewReminderService(store *Store, fired FiredLog, inbox *Inbox, notifier Notifier, window time.Duration, logger *log.Logger) *ReminderService {
	if window <= 0 {
		window = reminder.DefaultWindow
	}
	return &ReminderService{
		store:    store,
		fired:    fired,
		inbox:    inbox,
		notifier: notifier,
		window:   window,
		logger:   logger.WithPrefix("reminder"),
	}
}

// Check fires every reminder due at now. All of them are recorded in the tasks'
// history, delivered as one popup and, with permission, as one notification.
func (s *ReminderService) Check(ctx context.Context, now time.Time) (Popup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	due := s.collect(ctx, now)
	if len(due) == 0 {
		return Popup{}, false
	}

	cmds := make([]tree.Command, 0, len(due))
	for _, d := range due {
		cmds = append(cmds, tree.MarkReminded{ID: d.TaskID, Key: d.Key})
	}
	s.store.Apply(cmds...)
	if s.fired != nil {
		for _, d := range due {
			if err := s.fired.RecordFired(ctx, d.TaskID, d.Key, now); err != nil {
				s.logger.Warn("record fired reminder", "task", d.TaskID, "err", err)
			}
		}
	}

	popup := Popup{At: now, Reminders: due}
	if s.inbox != nil {
		s.inbox.Push(popup)
	}
	s.dispatch(ctx, popup)
	s.logger.Info("reminders fired", "count", len(due))
	return popup, true
}

func (s *ReminderService) collect(ctx context.Context, now time.Time) []DueReminder {
	var due []DueReminder
	tree.Walk(s.store.Projects(), func(p model.Project) {
		for _, t := range p.Tasks {
			key, ok := reminder.Due(t, now, s.window)
			if !ok {
				continue
			}
			if s.fired != nil {
				seen, err := s.fired.Fired(ctx, t.ID, key)
				if err != nil {
					s.logger.Warn("read fired reminders", "task", t.ID, "err", err)
				} else if seen {
					continue
				}
			}
			at, _ := reminder.Trigger(t)
			due = append(due, DueReminder{
				TaskID:      t.ID,
				Title:       t.Title,
				ProjectID:   p.ID,
				ProjectName: p.Name,
				Type:        t.Reminder.Type,
				Key:         key,
				Trigger:     at,
				EndDate:     t.EndDate,
			})
		}
	})
	return due
}

func (s *ReminderService) dispatch(ctx context.Context, p Popup) {
	if s.notifier == nil {
		return
	}
	if perm := s.notifier.Permission(ctx); perm != PermissionGranted {
		s.logger.Debug("native notification skipped", "permission", perm)
		return
	}
	if err := s.notifier.Notify(ctx, p); err != nil {
		s.logger.Warn("native notification failed", "err", err)
	}
}
