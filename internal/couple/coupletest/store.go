// Package coupletest provides an in-memory document store for module tests.
package coupletest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"nosotros/api/internal/couple"
	"nosotros/api/internal/store"
)

// MemoryStore keeps couple documents in memory and counts store calls.
type MemoryStore struct {
	mu        sync.Mutex
	documents map[string]json.RawMessage

	GetErr    error
	UpdateErr error
	// BeforeUpdate runs after the read and before the write of Update, which
	// lets tests simulate a remote device writing in between.
	BeforeUpdate func()

	Gets    int
	Updates int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{documents: map[string]json.RawMessage{}}
}

// Seed stores doc under coupleID, failing the test on encode errors.
func (m *MemoryStore) Seed(t testing.TB, coupleID string, doc couple.Document) {
	t.Helper()
	raw, err := couple.Encode(doc)
	if err != nil {
		t.Fatalf("encode seed document: %v", err)
	}
	m.SeedRaw(coupleID, raw)
}

// SeedRaw stores raw content as-is.
func (m *MemoryStore) SeedRaw(coupleID string, raw json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[coupleID] = append(json.RawMessage(nil), raw...)
}

// Raw returns the stored content.
func (m *MemoryStore) Raw(coupleID string) json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append(json.RawMessage(nil), m.documents[coupleID]...)
}

// Document returns the normalized stored document.
func (m *MemoryStore) Document(t testing.TB, coupleID string) couple.Document {
	t.Helper()
	doc, err := couple.Normalize(m.Raw(coupleID))
	if err != nil {
		t.Fatalf("normalize stored document: %v", err)
	}
	return doc
}

// Mutate applies fn to the stored document as a remote device would.
func (m *MemoryStore) Mutate(t testing.TB, coupleID string, fn func(*couple.Document)) {
	t.Helper()
	doc := m.Document(t, coupleID)
	fn(&doc)
	m.Seed(t, coupleID, doc)
}

func (m *MemoryStore) GetDocument(_ context.Context, coupleID string) (json.RawMessage, error) {
	m.mu.Lock()
	m.Gets++
	err := m.GetErr
	raw, ok := m.documents[coupleID]
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, store.ErrNotFound
	}
	return append(json.RawMessage(nil), raw...), nil
}

func (m *MemoryStore) InsertDocument(_ context.Context, coupleID string, content json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.documents[coupleID]; exists {
		return nil
	}
	m.documents[coupleID] = append(json.RawMessage(nil), content...)
	return nil
}

func (m *MemoryStore) UpdateDocument(_ context.Context, coupleID string, content json.RawMessage) error {
	if m.BeforeUpdate != nil {
		m.BeforeUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates++
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if _, ok := m.documents[coupleID]; !ok {
		return store.ErrNotFound
	}
	m.documents[coupleID] = append(json.RawMessage(nil), content...)
	return nil
}

// Calls returns the number of reads and writes seen so far.
func (m *MemoryStore) Calls() (gets, updates int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Gets, m.Updates
}
