package service

import (
	"context"
	"sync"
	"time"

	"melody-planner/internal/model"
	"melody-planner/internal/repository"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeTimers hands out timers that only run when fire is called.
type fakeTimers struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (ft *fakeTimers) AfterFunc(d time.Duration, f func()) Timer {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	t := &fakeTimer{d: d, f: f}
	ft.timers = append(ft.timers, t)
	return t
}

func (ft *fakeTimers) active() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	n := 0
	for _, t := range ft.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fire runs every active timer and returns how many ran.
func (ft *fakeTimers) fire() int {
	ft.mu.Lock()
	var due []*fakeTimer
	for _, t := range ft.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	ft.mu.Unlock()
	for _, t := range due {
		t.f()
	}
	return len(due)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeRemote struct {
	mu      sync.Mutex
	docs    map[string]model.Workspace
	writes  []model.Workspace
	failFor int
	readErr error
	onWrite func()
	// gate, when set, holds every Write until it is closed or ctx ends. entered
	// receives a value each time a Write starts waiting.
	gate    chan struct{}
	entered chan struct{}
}

func newRemote() *fakeRemote {
	return &fakeRemote{docs: make(map[string]model.Workspace)}
}

func (r *fakeRemote) Read(_ context.Context, userID string) (model.Workspace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return model.Workspace{}, r.readErr
	}
	ws, ok := r.docs[userID]
	if !ok {
		return model.Workspace{}, repository.ErrNotFound
	}
	return ws, nil
}

func (r *fakeRemote) Write(ctx context.Context, userID string, ws model.Workspace) error {
	if r.gate != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	hook := r.onWrite
	r.onWrite = nil
	r.writes = append(r.writes, ws)
	if r.failFor > 0 {
		r.failFor--
		r.mu.Unlock()
		return context.DeadlineExceeded
	}
	r.docs[userID] = ws
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (r *fakeRemote) Since(_ context.Context, userID string, since time.Time) (model.Workspace, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.docs[userID]
	if !ok || ws.LastUpdated == nil || !ws.LastUpdated.After(since) {
		return model.Workspace{}, false, nil
	}
	return ws, true, nil
}

func (r *fakeRemote) writeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

func (r *fakeRemote) lastWrite() model.Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes[len(r.writes)-1]
}

type fakeCache struct {
	mu         sync.Mutex
	ws         *model.Workspace
	saves      int
	lastSynced time.Time
	unsynced   bool
	fired      map[string]bool
	failFired  bool
}

func newCache() *fakeCache {
	return &fakeCache{fired: make(map[string]bool)}
}

func (c *fakeCache) LoadWorkspace(context.Context) (model.Workspace, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return model.Workspace{}, false, nil
	}
	return *c.ws, true, nil
}

func (c *fakeCache) SaveWorkspace(_ context.Context, ws model.Workspace) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws = &ws
	c.saves++
	return nil
}

func (c *fakeCache) LastSynced(context.Context) (time.Time, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSynced, !c.lastSynced.IsZero(), nil
}

func (c *fakeCache) SetLastSynced(_ context.Context, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSynced = at
	return nil
}

func (c *fakeCache) Unsynced(context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsynced, nil
}

func (c *fakeCache) SetUnsynced(_ context.Context, unsynced bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsynced = unsynced
	return nil
}

func (c *fakeCache) Fired(_ context.Context, taskID, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fired[taskID+"|"+key], nil
}

func (c *fakeCache) RecordFired(_ context.Context, taskID, key string, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failFired {
		return context.Canceled
	}
	c.fired[taskID+"|"+key] = true
	return nil
}

func (c *fakeCache) saveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}
