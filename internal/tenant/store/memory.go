package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"fieldlink/internal/tenant/models"
)

// InMemory serves tenant mappings from memory. It is seeded once from a JSON
// document (the same shape the provisioning process writes) and is thereafter
// read-only, so lookups take only a read lock.
type InMemory struct {
	mu          sync.RWMutex
	byDomain    map[string]*models.Mapping
	byAccountID map[string]*models.Mapping
	byEmailDom  map[string]*models.Mapping
}

// NewInMemory creates an empty in-memory tenant store.
func NewInMemory() *InMemory {
	return &InMemory{
		byDomain:    make(map[string]*models.Mapping),
		byAccountID: make(map[string]*models.Mapping),
		byEmailDom:  make(map[string]*models.Mapping),
	}
}

// NewInMemoryFromSeed builds a store from an inline JSON seed document, or
// from a file when jsonSeed is empty and path is not.
func NewInMemoryFromSeed(jsonSeed, path string) (*InMemory, error) {
	raw := []byte(jsonSeed)
	if len(raw) == 0 && path != "" {
		var err error
		raw, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read tenant seed: %w", err)
		}
	}

	s := NewInMemory()
	if len(raw) == 0 {
		return s, nil
	}

	var mappings []*models.Mapping
	if err := json.Unmarshal(raw, &mappings); err != nil {
		return nil, fmt.Errorf("decode tenant seed: %w", err)
	}
	for _, m := range mappings {
		s.Add(m)
	}
	return s, nil
}

// Add indexes one mapping. First writer wins per key, mirroring the
// first-match-wins read contract.
func (s *InMemory) Add(m *models.Mapping) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key := strings.ToLower(m.Domain); key != "" {
		if _, exists := s.byDomain[key]; !exists {
			s.byDomain[key] = m
		}
	}
	if m.Account != nil {
		if key := strings.ToLower(m.Account.ID); key != "" {
			if _, exists := s.byAccountID[key]; !exists {
				s.byAccountID[key] = m
			}
		}
	}
	// A user email matches either the registered domain or the explicit
	// email domain, so index both.
	for _, emailDom := range []string{m.Domain, m.EmailDomain} {
		if key := strings.ToLower(emailDom); key != "" {
			if _, exists := s.byEmailDom[key]; !exists {
				s.byEmailDom[key] = m
			}
		}
	}
}

// FindByDomain retrieves a mapping by its registered collaboration domain.
func (s *InMemory) FindByDomain(_ context.Context, domain string) (*models.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.byDomain[strings.ToLower(domain)]; ok {
		return m, nil
	}
	return nil, ErrNotFound
}

// FindByAccountID retrieves a mapping by the field-service account number.
func (s *InMemory) FindByAccountID(_ context.Context, accountID string) (*models.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.byAccountID[strings.ToLower(accountID)]; ok {
		return m, nil
	}
	return nil, ErrNotFound
}

// FindByEmailDomain retrieves a mapping whose registered or explicit email
// domain matches.
func (s *InMemory) FindByEmailDomain(_ context.Context, emailDomain string) (*models.Mapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.byEmailDom[strings.ToLower(emailDomain)]; ok {
		return m, nil
	}
	return nil, ErrNotFound
}
