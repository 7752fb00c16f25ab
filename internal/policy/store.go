package policy

import (
	"fmt"
	"sync/atomic"
)

// Store holds the active policy snapshot. Readers get an immutable
// *LoadedPolicy; Reload swaps it atomically and keeps the old one on failure.
type Store struct {
	path    string
	current atomic.Pointer[LoadedPolicy]
}

func NewStore(path string) (*Store, error) {
	s := &Store{path: path}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticStore serves a fixed policy; Reload is a no-op.
func NewStaticStore(loaded LoadedPolicy) *Store {
	s := &Store{}
	s.current.Store(&loaded)
	return s
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Snapshot() *LoadedPolicy {
	return s.current.Load()
}

// Reload re-reads the policy file. It reports whether the hash changed.
func (s *Store) Reload() (bool, error) {
	if s.path == "" {
		return false, nil
	}
	loaded, err := LoadPolicy(s.path)
	if err != nil {
		return false, fmt.Errorf("reload policy %s: %w", s.path, err)
	}
	prev := s.current.Swap(&loaded)
	return prev == nil || prev.Hash != loaded.Hash, nil
}
