package policy

import (
	"sync"
)

// Store persists one ToolPolicy per agent. Get is read-through: an agent
// with no stored document receives the default (unrestricted) policy.
// Policies are never deleted implicitly; only Remove drops one.
type Store interface {
	Get(agentID string) (*ToolPolicy, error)
	Set(agentID string, p *ToolPolicy) error
	Remove(agentID string) error
}

// MemoryStore is an in-process Store for tests and single-shot CLI use.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]*ToolPolicy
}

// NewMemoryStore creates an empty in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{policies: make(map[string]*ToolPolicy)}
}

// Get returns the agent's policy, or the default on miss.
func (s *MemoryStore) Get(agentID string) (*ToolPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.policies[agentID]; ok {
		return p.Clone(), nil
	}
	return Default(), nil
}

// Set stores a normalized copy of p for the agent.
func (s *MemoryStore) Set(agentID string, p *ToolPolicy) error {
	clone := p.Clone()
	if clone == nil {
		clone = Default()
	}
	clone.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[agentID] = clone
	return nil
}

// Remove drops the agent's stored policy; subsequent Gets see the default.
func (s *MemoryStore) Remove(agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, agentID)
	return nil
}
