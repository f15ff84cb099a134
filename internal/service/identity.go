package service

import "sync"

// Identity tells the core whether somebody is signed in and who.
type Identity interface {
	UserID() (string, bool)
}

// StaticIdentity is an identity supplied by configuration. An empty id means signed out.
type StaticIdentity struct {
	mu sync.RWMutex
	id string
}

func NewStaticIdentity(id string) *StaticIdentity {
	return &StaticIdentity{id: id}
}

func (i *StaticIdentity) UserID() (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.id, i.id != ""
}

func (i *StaticIdentity) SignIn(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.id = id
}

func (i *StaticIdentity) SignOut() {
	i.SignIn("")
}
