// Package cache provides the session-lifetime caches shared by the
// configuration resolver and the usernotes store. Handles are constructed
// once per session and handed to the services that need them; nothing in
// this package is global.
package cache

import "sync"

// Map is a mutex-guarded map keyed by subreddit name.
type Map[V any] struct {
	mu      sync.RWMutex
	entries map[string]V
}

// NewMap constructs an empty Map.
func NewMap[V any]() *Map[V] {
	return &Map[V]{entries: make(map[string]V)}
}

// Get returns the cached value for the subreddit, if present.
func (m *Map[V]) Get(subreddit string) (V, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.entries[subreddit]
	return value, ok
}

// Put stores the value for the subreddit, replacing any previous entry.
func (m *Map[V]) Put(subreddit string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[subreddit] = value
}

// Delete removes the entry for the subreddit.
func (m *Map[V]) Delete(subreddit string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, subreddit)
}

// Len reports the number of cached entries.
func (m *Map[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Reset drops every entry, equivalent to a tab reload.
func (m *Map[V]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]V)
}

// Set is a mutex-guarded membership set keyed by subreddit name. It backs the
// negative caches ("not enabled", "no notes") so repeated lookups for a
// subreddit known to have nothing do not hit the remote store again.
type Set struct {
	mu      sync.RWMutex
	members map[string]struct{}
}

// NewSet constructs an empty Set.
func NewSet() *Set {
	return &Set{members: make(map[string]struct{})}
}

// Add records the subreddit as a member.
func (s *Set) Add(subreddit string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[subreddit] = struct{}{}
}

// Has reports whether the subreddit is a member.
func (s *Set) Has(subreddit string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[subreddit]
	return ok
}

// Delete removes the subreddit from the set.
func (s *Set) Delete(subreddit string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, subreddit)
}

// Reset drops every member.
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = make(map[string]struct{})
}
