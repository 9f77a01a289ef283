package build

import (
	"sort"
	"sync"
)

// SessionCache tracks which (arch, pkgname) pairs have been decided
// during the current top level Packages invocation.  Marking happens
// before recursing into a package's dependencies, which is what keeps
// cyclic dependency graphs from walking forever.
type SessionCache struct {
	mu      *sync.Mutex
	decided map[string]map[string]struct{}
}

// NewSessionCache returns an empty session cache.
func NewSessionCache() *SessionCache {
	return &SessionCache{
		mu:      new(sync.Mutex),
		decided: make(map[string]map[string]struct{}),
	}
}

// IsDecidedOrMark atomically marks (arch, pkgname) as decided and
// reports whether it already was.
func (s *SessionCache) IsDecidedOrMark(arch, pkgname string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.decided[arch]; !ok {
		s.decided[arch] = make(map[string]struct{})
	}
	if _, ok := s.decided[arch][pkgname]; ok {
		return true
	}
	s.decided[arch][pkgname] = struct{}{}
	return false
}

// Decided returns the packages decided so far for arch, sorted.
func (s *SessionCache) Decided(arch string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.decided[arch]))
	for name := range s.decided[arch] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Reset clears all decisions.  Called unconditionally when a top
// level invocation finishes so the next one starts fresh.
func (s *SessionCache) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decided = make(map[string]map[string]struct{})
}
