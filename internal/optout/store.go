// Package optout holds the opt-out phone number sets consulted before every
// reminder dispatch and conversational reply. The store is injected into the
// components that need it; membership lives for the process lifetime and is
// mutated only through explicit admin toggles.
package optout

import (
	"sort"
	"sync"
)

type Store struct {
	mu     sync.RWMutex
	global map[string]struct{}
	tenant map[string]map[string]struct{}
}

func NewStore() *Store {
	return &Store{
		global: make(map[string]struct{}),
		tenant: make(map[string]map[string]struct{}),
	}
}

// Toggle flips opt-out membership for phone. An empty tenantID addresses the
// global set. Returns true when the phone is opted out after the call.
func (s *Store) Toggle(tenantID, phone string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.global
	if tenantID != "" {
		set = s.tenant[tenantID]
		if set == nil {
			set = make(map[string]struct{})
			s.tenant[tenantID] = set
		}
	}
	if _, ok := set[phone]; ok {
		delete(set, phone)
		return false
	}
	set[phone] = struct{}{}
	return true
}

// Contains reports whether phone is opted out globally or for the tenant.
func (s *Store) Contains(tenantID, phone string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.global[phone]; ok {
		return true
	}
	if tenantID == "" {
		return false
	}
	_, ok := s.tenant[tenantID][phone]
	return ok
}

// Snapshot returns sorted copies of the global set and the tenant set.
func (s *Store) Snapshot(tenantID string) (global []string, tenant []string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for p := range s.global {
		global = append(global, p)
	}
	for p := range s.tenant[tenantID] {
		tenant = append(tenant, p)
	}
	sort.Strings(global)
	sort.Strings(tenant)
	return global, tenant
}
