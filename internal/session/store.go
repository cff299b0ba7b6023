// Package session holds the volatile alias -> credential table.
//
// The table lives for the process lifetime only. Deferred actions must
// snapshot the resolved credential at enqueue time; they never keep a live
// alias reference into this store.
package session

import (
	"strings"
	"sync"
)

type Store struct {
	mu    sync.RWMutex
	creds map[string]string
}

func NewStore() *Store {
	return &Store{creds: map[string]string{}}
}

// Register maps alias to credential, unconditionally overwriting any
// existing mapping.
func (s *Store) Register(alias, credential string) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return
	}
	s.mu.Lock()
	s.creds[alias] = credential
	s.mu.Unlock()
}

// Resolve returns the credential registered for alias, if any.
func (s *Store) Resolve(alias string) (string, bool) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return "", false
	}
	s.mu.RLock()
	cred, ok := s.creds[alias]
	s.mu.RUnlock()
	return cred, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creds)
}
