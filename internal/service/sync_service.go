package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"melody-planner/internal/model"
	"melody-planner/internal/repository"
)

// RemoteStore persists whole workspace documents per user.
type RemoteStore interface {
	Read(ctx context.Context, userID string) (model.Workspace, error)
	Write(ctx context.Context, userID string, ws model.Workspace) error
	Since(ctx context.Context, userID string, since time.Time) (model.Workspace, bool, error)
}

// LocalCache is the device-local copy written on every change.
type LocalCache interface {
	LoadWorkspace(ctx context.Context) (model.Workspace, bool, error)
	SaveWorkspace(ctx context.Context, ws model.Workspace) error
	LastSynced(ctx context.Context) (time.Time, bool, error)
	SetLastSynced(ctx context.Context, at time.Time) error
	// Unsynced reports whether the cached workspace holds edits the remote store
	// has not acknowledged yet.
	Unsynced(ctx context.Context) (bool, error)
	SetUnsynced(ctx context.Context, unsynced bool) error
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run once after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type SyncState int

const (
	StateIdle SyncState = iota
	StatePendingWrite
	StateWriting
)

func (s SyncState) String() string {
	switch s {
	case StatePendingWrite:
		return "pending_write"
	case StateWriting:
		return "writing"
	default:
		return "idle"
	}
}

// Badge values shown next to the workspace name.
const (
	BadgeLocal     = "local"
	BadgePending   = "pending"
	BadgeSyncing   = "syncing"
	BadgeSynced    = "synced"
	BadgeNotSynced = "not_synced"
)

// SyncStatus is the passive indicator the view layer renders.
type SyncStatus struct {
	State        string     `json:"state"`
	Badge        string     `json:"badge"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
}

type SyncOptions struct {
	Debounce  time.Duration
	Retries   int
	Backoff   time.Duration
	Now       func() time.Time
	AfterFunc AfterFunc
	// Sleep waits between retries; it returns early with an error when ctx ends.
	Sleep func(ctx context.Context, d time.Duration) error
}

// SyncService keeps the local cache current on every change and pushes the workspace
// to the remote store once edits settle. Remote snapshots are applied only while no
// local write is pending or in flight.
type SyncService struct {
	remote   RemoteStore
	cache    LocalCache
	identity Identity
	logger   *log.Logger
	opts     SyncOptions

	ctx    context.Context
	cancel context.CancelFunc

	store       *Store
	unsubscribe func()

	mu         sync.Mutex
	state      SyncState
	gen        int
	timer      Timer
	dirty      bool
	latest     model.Workspace
	lastSynced time.Time
	lastErr    error
	pushOnBind bool
	// settled is signalled whenever a write finishes.
	settled *sync.Cond
}

func NewSyncService(remote RemoteStore, cache LocalCache, identity Identity, logger *log.Logger, opts SyncOptions) *SyncService {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	if opts.Retries <= 0 {
		opts.Retries = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &SyncService{
		remote:   remote,
		cache:    cache,
		identity: identity,
		logger:   logger.WithPrefix("sync"),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.settled = sync.NewCond(&s.mu)
	return s
}

// Load picks the starting workspace: the local cache when it holds edits the remote
// store never acknowledged, else the remote copy when signed in and present, else the
// local cache, else a fresh seed. A workspace the remote store does not have yet is
// pushed as soon as a store is bound.
func (s *SyncService) Load(ctx context.Context) (model.Workspace, error) {
	if at, ok, err := s.cache.LastSynced(ctx); err != nil {
		s.logger.Warn("read last synced", "err", err)
	} else if ok {
		s.lastSynced = at
	}

	unsynced, err := s.cache.Unsynced(ctx)
	if err != nil {
		s.logger.Warn("read unsynced marker", "err", err)
	}
	userID, signedIn := s.identity.UserID()
	if signedIn && unsynced {
		ws, ok, err := s.cache.LoadWorkspace(ctx)
		switch {
		case err != nil:
			s.logger.Error("read cached workspace with unsynced edits", "err", err)
		case ok:
			s.logger.Info("loaded cached workspace with unsynced edits", "user", userID)
			s.pushOnBind = true
			return ws, nil
		}
	}

	if signedIn {
		ws, err := s.remote.Read(ctx, userID)
		switch {
		case err == nil:
			if ws.LastUpdated != nil {
				s.lastSynced = *ws.LastUpdated
			}
			s.logger.Info("loaded remote workspace", "user", userID)
			return ws, nil
		case errors.Is(err, repository.ErrNotFound):
			s.pushOnBind = true
		default:
			s.logger.Error("read remote workspace", "user", userID, "err", err)
			s.lastErr = err
		}
	}

	ws, ok, err := s.cache.LoadWorkspace(ctx)
	if err != nil {
		s.logger.Warn("read cached workspace", "err", err)
	}
	if ok {
		s.logger.Info("loaded cached workspace")
		return ws, nil
	}
	s.logger.Info("seeding new workspace")
	return model.SeedWorkspace(s.opts.Now()), nil
}

// Bind starts following store.
func (s *SyncService) Bind(store *Store) {
	s.store = store
	s.unsubscribe = store.Subscribe(s.onChange)

	ws := store.Snapshot()
	if err := s.cache.SaveWorkspace(s.ctx, ws); err != nil {
		s.logger.Error("write local cache", "err", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = ws
	if s.pushOnBind {
		s.pushOnBind = false
		s.scheduleLocked()
	}
}

// Close stops following the store and drains the write pipeline: an in-flight write
// is waited for, and a pending or dirty change is written before Close returns. The
// shared context is cancelled only after that.
func (s *SyncService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.mu.Lock()
	for s.state != StateIdle {
		if s.state == StateWriting {
			s.settled.Wait()
			continue
		}
		if s.timer != nil {
			s.timer.Stop()
		}
		gen := s.gen
		s.mu.Unlock()
		s.write(gen)
		s.mu.Lock()
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	s.mu.Unlock()
	s.cancel()
}

// Flush writes any pending change now instead of waiting for the debounce.
func (s *SyncService) Flush() {
	s.mu.Lock()
	if s.state != StatePendingWrite {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.gen
	s.mu.Unlock()
	s.write(gen)
}

func (s *SyncService) onChange(ch Change) {
	if err := s.cache.SaveWorkspace(s.ctx, ch.Workspace); err != nil {
		s.logger.Error("write local cache", "err", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = ch.Workspace

	if ch.Origin == OriginRemote {
		if err := s.cache.SetUnsynced(s.ctx, false); err != nil {
			s.logger.Warn("clear unsynced marker", "err", err)
		}
		if ch.Workspace.LastUpdated != nil {
			s.lastSynced = *ch.Workspace.LastUpdated
			s.lastErr = nil
			if err := s.cache.SetLastSynced(s.ctx, s.lastSynced); err != nil {
				s.logger.Warn("write last synced", "err", err)
			}
		}
		return
	}
	if err := s.cache.SetUnsynced(s.ctx, true); err != nil {
		s.logger.Warn("set unsynced marker", "err", err)
	}
	if _, ok := s.identity.UserID(); !ok {
		return
	}

	switch s.state {
	case StateIdle:
		s.scheduleLocked()
	case StatePendingWrite:
		s.timer.Stop()
		s.scheduleLocked()
	case StateWriting:
		s.dirty = true
	}
}

func (s *SyncService) scheduleLocked() {
	s.state = StatePendingWrite
	s.gen++
	gen := s.gen
	s.timer = s.opts.AfterFunc(s.opts.Debounce, func() { s.write(gen) })
}

func (s *SyncService) write(gen int) {
	s.mu.Lock()
	if gen != s.gen || s.state != StatePendingWrite {
		s.mu.Unlock()
		return
	}
	userID, ok := s.identity.UserID()
	if !ok {
		s.state = StateIdle
		s.mu.Unlock()
		return
	}
	s.state = StateWriting
	ws := s.latest
	s.mu.Unlock()

	stamp := s.opts.Now().UTC()
	ws.LastUpdated = &stamp
	err := s.writeWithRetry(userID, ws)
	if err == nil && s.store != nil {
		s.store.Stamp(stamp)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.settled.Broadcast()
	if err != nil {
		s.lastErr = err
		s.logger.Error("remote write failed", "user", userID, "attempts", s.opts.Retries, "err", err)
	} else {
		s.lastErr = nil
		if stamp.After(s.lastSynced) {
			s.lastSynced = stamp
		}
		if err := s.cache.SetLastSynced(s.ctx, s.lastSynced); err != nil {
			s.logger.Warn("write last synced", "err", err)
		}
		if !s.dirty {
			if err := s.cache.SetUnsynced(s.ctx, false); err != nil {
				s.logger.Warn("clear unsynced marker", "err", err)
			}
		}
		s.logger.Debug("remote write done", "user", userID)
	}
	if s.dirty && s.ctx.Err() == nil {
		s.dirty = false
		s.scheduleLocked()
		return
	}
	s.dirty = false
	s.state = StateIdle
}

func (s *SyncService) writeWithRetry(userID string, ws model.Workspace) error {
	var err error
	for attempt := 1; attempt <= s.opts.Retries; attempt++ {
		if err = s.remote.Write(s.ctx, userID, ws); err == nil {
			return nil
		}
		if attempt == s.opts.Retries {
			break
		}
		s.logger.Warn("remote write retry", "attempt", attempt, "err", err)
		if serr := s.opts.Sleep(s.ctx, s.opts.Backoff*time.Duration(attempt)); serr != nil {
			return fmt.Errorf("write workspace: %w", errors.Join(err, serr))
		}
	}
	return fmt.Errorf("write workspace: %w", err)
}

// ApplyRemote installs a snapshot pushed by another device. It is refused while a
// local write is pending or in flight, and when the snapshot is not newer than the
// last one exchanged with the remote store.
func (s *SyncService) ApplyRemote(ws model.Workspace) bool {
	if s.store == nil {
		return false
	}
	return s.store.ReplaceIf(ws, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state != StateIdle {
			return false
		}
		return ws.LastUpdated != nil && ws.LastUpdated.After(s.lastSynced)
	})
}

// Poll asks the remote store for a snapshot newer than the last synced one and
// applies it.
func (s *SyncService) Poll(ctx context.Context) error {
	userID, ok := s.identity.UserID()
	if !ok {
		return nil
	}
	s.mu.Lock()
	since := s.lastSynced
	busy := s.state != StateIdle
	s.mu.Unlock()
	if busy {
		return nil
	}

	ws, ok, err := s.remote.Since(ctx, userID, since)
	if err != nil {
		return fmt.Errorf("poll remote: %w", err)
	}
	if ok && s.ApplyRemote(ws) {
		s.logger.Info("applied remote snapshot", "user", userID, "lastUpdated", ws.LastUpdated)
	}
	return nil
}

// Status reports the sync badge.
func (s *SyncService) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SyncStatus{State: s.state.String()}
	if !s.lastSynced.IsZero() {
		at := s.lastSynced
		st.LastSyncedAt = &at
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	_, signedIn := s.identity.UserID()
	switch {
	case !signedIn:
		st.Badge = BadgeLocal
	case s.state == StatePendingWrite:
		st.Badge = BadgePending
	case s.state == StateWriting:
		st.Badge = BadgeSyncing
	case s.lastErr != nil:
		st.Badge = BadgeNotSynced
	default:
		st.Badge = BadgeSynced
	}
	return st
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
