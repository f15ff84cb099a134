package service

import (
	"sync"
	"time"

	"melody-planner/internal/model"
	"melody-planner/internal/tree"
)

// Origin tells listeners where a change came from.
type Origin int

const (
	OriginLocal Origin = iota
	OriginRemote
)

func (o Origin) String() string {
	if o == OriginRemote {
		return "remote"
	}
	return "local"
}

// Change is delivered to listeners after every successful mutation.
type Change struct {
	Workspace model.Workspace
	Origin    Origin
}

// Listener observes changes. Listeners run while the store is locked and must not
// call back into it.
type Listener func(Change)

// Store owns one session's workspace. Every mutation replaces the whole value, so a
// Snapshot is always consistent.
type Store struct {
	mu        sync.Mutex
	ws        model.Workspace
	listeners map[int]Listener
	nextID    int
}

func NewStore(ws model.Workspace) *Store {
	ws.Projects = tree.Heal(ws.Projects)
	if ws.Name == "" {
		ws.Name = model.DefaultWorkspaceName
	}
	if ws.Logo == "" {
		ws.Logo = model.DefaultWorkspaceLogo
	}
	return &Store{ws: ws, listeners: make(map[int]Listener)}
}

// Snapshot returns the current workspace. The value shares structure with the
// store's and must be treated as read-only.
func (s *Store) Snapshot() model.Workspace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws
}

// Projects returns the current forest.
func (s *Store) Projects() []model.Project {
	return s.Snapshot().Projects
}

// Subscribe registers l and returns a function that removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Apply runs cmds in order as one atomic step. Listeners hear about it once, and only
// if some command changed the forest.
func (s *Store) Apply(cmds ...tree.Command) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	forest := s.ws.Projects
	changed := false
	for _, cmd := range cmds {
		var ok bool
		forest, ok = tree.Apply(forest, cmd)
		changed = changed || ok
	}
	if !changed {
		return false
	}
	s.ws.Projects = tree.Heal(forest)
	s.notify(OriginLocal)
	return true
}

// UpdateWorkspace changes the workspace name and logo. Empty values keep the current ones.
func (s *Store) UpdateWorkspace(name, logo string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.ws
	if name != "" {
		next.Name = name
	}
	if logo != "" {
		next.Logo = logo
	}
	if next.Name == s.ws.Name && next.Logo == s.ws.Logo {
		return false
	}
	s.ws = next
	s.notify(OriginLocal)
	return true
}

// Replace swaps in a whole workspace, e.g. one imported from a file.
func (s *Store) Replace(ws model.Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace(ws, OriginLocal)
}

// ReplaceIf swaps in a snapshot received from another device, provided accept agrees.
// accept runs under the store lock, so no local mutation can slip in between the
// check and the swap.
func (s *Store) ReplaceIf(ws model.Workspace, accept func() bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !accept() {
		return false
	}
	s.replace(ws, OriginRemote)
	return true
}

// Stamp records when the workspace last reached the remote store. It is bookkeeping,
// not a mutation, so listeners are not called.
func (s *Store) Stamp(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ws.LastUpdated != nil && !at.After(*s.ws.LastUpdated) {
		return
	}
	s.ws.LastUpdated = &at
}

func (s *Store) replace(ws model.Workspace, origin Origin) {
	ws.Projects = tree.Heal(ws.Projects)
	if ws.Name == "" {
		ws.Name = s.ws.Name
	}
	if ws.Logo == "" {
		ws.Logo = s.ws.Logo
	}
	s.ws = ws
	s.notify(origin)
}

func (s *Store) notify(origin Origin) {
	ch := Change{Workspace: s.ws, Origin: origin}
	for _, l := range s.listeners {
		l(ch)
	}
}
