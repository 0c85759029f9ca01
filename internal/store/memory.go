package store

import (
	"sync"

	"github.com/bmfreitas/carrinhos-etl/internal/models"
)

// MemoryStore caches the last parsed snapshot of each source. Snapshots are
// immutable once set, so concurrent readers share them without copying;
// Invalidate is the only way a snapshot goes away.
type MemoryStore struct {
	mu       sync.RWMutex
	carts    []models.CartRecord
	spend    []models.SpendRecord
	cartsSet bool
	spendSet bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Carts() ([]models.CartRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carts, s.cartsSet
}

func (s *MemoryStore) SetCarts(recs []models.CartRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts = recs
	s.cartsSet = true
}

func (s *MemoryStore) Spend() ([]models.SpendRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spend, s.spendSet
}

func (s *MemoryStore) SetSpend(recs []models.SpendRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spend = recs
	s.spendSet = true
}

// Invalidate drops both snapshots; the next read triggers a fresh fetch.
func (s *MemoryStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts = nil
	s.spend = nil
	s.cartsSet = false
	s.spendSet = false
}
