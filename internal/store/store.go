package store

import (
	"sync"
	"time"

	"github.com/fjod/cart_sync/internal/domain"
)

// CartStore is the local cart table, keyed by item key. Pure data operations,
// no I/O; persistence is coordinated by the engine after each mutation.
type CartStore struct {
	mu    sync.RWMutex
	items map[string]domain.LineItem
	order []string // insertion order for stable reads
	nowMs func() int64
}

func NewCartStore() *CartStore {
	return &CartStore{
		items: make(map[string]domain.LineItem),
		nowMs: func() int64 { return time.Now().UnixMilli() },
	}
}

// SetClock overrides the timestamp source. Tests only.
func (s *CartStore) SetClock(nowMs func() int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowMs = nowMs
}

// Get returns a copy of all items in insertion order.
func (s *CartStore) Get() []domain.LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.LineItem, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.items[key])
	}
	return out
}

// GetItem returns the item for key, if present.
func (s *CartStore) GetItem(key string) (domain.LineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[key]
	return it, ok
}

// Upsert inserts or replaces the item for its key and stamps LastModified.
// The caller decides SyncStatus.
func (s *CartStore) Upsert(item domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := item.Key()
	item.LastModified = s.nowMs()
	if _, exists := s.items[key]; !exists {
		s.order = append(s.order, key)
	}
	s.items[key] = item
}

// Remove deletes the item for key. Unknown keys are a no-op.
func (s *CartStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[key]; !exists {
		return
	}
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear drops every item.
func (s *CartStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]domain.LineItem)
	s.order = nil
}

// SetAll replaces the whole table with items as given, preserving their
// timestamps and statuses. Used by the reconciler and by state restore.
func (s *CartStore) SetAll(items []domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]domain.LineItem, len(items))
	s.order = make([]string, 0, len(items))
	for _, it := range items {
		key := it.Key()
		if _, exists := s.items[key]; !exists {
			s.order = append(s.order, key)
		}
		s.items[key] = it
	}
}

// TotalItems is the sum of quantities over current items.
func (s *CartStore) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, it := range s.items {
		total += it.Quantity
	}
	return total
}

// TotalPrice is the sum of unit price times quantity over current items.
func (s *CartStore) TotalPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0.0
	for _, it := range s.items {
		total += it.UnitPrice * float64(it.Quantity)
	}
	return total
}
