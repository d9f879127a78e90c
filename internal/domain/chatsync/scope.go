package chatsync

import (
	"time"
)

// Scope names an independent view that lists conversations.
type Scope string

const (
	ScopeChat    Scope = "chat"
	ScopeHistory Scope = "history"
	ScopeSidebar Scope = "sidebar"
)

// AllScopes lists every known view scope.
func AllScopes() []Scope {
	return []Scope{ScopeChat, ScopeHistory, ScopeSidebar}
}

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeChat, ScopeHistory, ScopeSidebar:
		return true
	}
	return false
}

// IncludesArchived reports whether the scope lists archived conversations.
// Only the history screen shows them.
func (s Scope) IncludesArchived() bool {
	return s == ScopeHistory
}

// cacheEntry is one scope's view over the normalized store.
type cacheEntry struct {
	ids        []string
	loaded     bool
	fetchedAt  time.Time
	generation uint64
}

func (e *cacheEntry) fresh(now time.Time, ttl time.Duration) bool {
	if !e.loaded {
		return false
	}
	return ttl <= 0 || now.Sub(e.fetchedAt) < ttl
}

// ScopeState is a read-only view of a scope's cache bookkeeping.
type ScopeState struct {
	Scope     Scope
	Loaded    bool
	FetchedAt time.Time
	Count     int
}
