package session

import (
	"context"
	"sync"

	"github.com/hoshinonyaruko/tabletop/rolls"
	"github.com/hoshinonyaruko/tabletop/structs"
)

// MemoryStore keeps sessions in process memory. Documents are copied on the
// way in and out so callers never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	docs  map[string]*structs.Document
	rolls map[string][]structs.RollRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]*structs.Document),
		rolls: make(map[string][]structs.RollRecord),
	}
}

func (m *MemoryStore) LoadDocument(_ context.Context, sessionID string) (*structs.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[sessionID]
	if !ok {
		return nil, ErrNoDocument
	}
	return doc.Clone(), nil
}

func (m *MemoryStore) CreateDocument(_ context.Context, sessionID string, doc *structs.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[sessionID]; ok {
		return ErrVersionConflict
	}
	m.docs[sessionID] = doc.Clone()
	return nil
}

func (m *MemoryStore) SaveDocument(_ context.Context, sessionID string, doc *structs.Document, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.docs[sessionID]
	if !ok || cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	m.docs[sessionID] = doc.Clone()
	return nil
}

func (m *MemoryStore) LoadRolls(_ context.Context, sessionID string) ([]structs.RollRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]structs.RollRecord{}, m.rolls[sessionID]...), nil
}

func (m *MemoryStore) AppendRoll(_ context.Context, sessionID string, rec structs.RollRecord, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rolls[sessionID] = rolls.Append(m.rolls[sessionID], rec, limit)
	return nil
}

func (m *MemoryStore) ClearRolls(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rolls, sessionID)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
