package directory

import (
	"context"
	"sync"

	"github.com/MrEthical07/shelfauth/identity"
)

// Memory is an in-process Directory.
type Memory struct {
	mu         sync.RWMutex
	principals map[string]identity.Principal
}

func NewMemory() *Memory {
	return &Memory{principals: make(map[string]identity.Principal)}
}

func (m *Memory) Upsert(_ context.Context, p identity.Principal) (identity.Principal, error) {
	if !p.Valid() {
		return identity.Principal{}, ErrInvalidPrincipal
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.principals[p.SubjectID]
	if !ok {
		m.principals[p.SubjectID] = p
		return p, nil
	}
	existing.DisplayName = p.DisplayName
	existing.AvatarURL = p.AvatarURL
	m.principals[p.SubjectID] = existing
	return existing, nil
}

func (m *Memory) ResolvePrincipal(_ context.Context, subjectID string) (identity.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.principals[subjectID]
	if !ok {
		return identity.Principal{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) Remove(_ context.Context, subjectID string) error {
	m.mu.Lock()
	delete(m.principals, subjectID)
	m.mu.Unlock()
	return nil
}
