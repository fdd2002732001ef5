package engine

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/cart_sync/internal/domain"
	"github.com/fjod/cart_sync/internal/persist"
)

// mockRemote simulates the remote cart service: an in-memory cart with
// upsert add semantics, scriptable failures and latency.
type mockRemote struct {
	m     sync.Mutex
	items map[string]domain.ServerLineItem
	order []string

	err      error         // forced error for every call
	delay    time.Duration // simulated latency per call
	snapTime int64         // FetchedAt override, 0 means wall clock

	calls []string
}

func newMockRemote() *mockRemote {
	return &mockRemote{items: map[string]domain.ServerLineItem{}}
}

func (m *mockRemote) setErr(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.err = err
}

func (m *mockRemote) seed(items ...domain.ServerLineItem) {
	m.m.Lock()
	defer m.m.Unlock()
	for _, it := range items {
		key := it.Key()
		if _, ok := m.items[key]; !ok {
			m.order = append(m.order, key)
		}
		m.items[key] = it
	}
}

func (m *mockRemote) callLog() []string {
	m.m.Lock()
	defer m.m.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockRemote) callCount() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.calls)
}

func (m *mockRemote) snapshot() *domain.CartSnapshot {
	fetchedAt := m.snapTime
	if fetchedAt == 0 {
		fetchedAt = time.Now().UnixMilli()
	}
	items := make([]domain.ServerLineItem, 0, len(m.order))
	for _, key := range m.order {
		items = append(items, m.items[key])
	}
	return &domain.CartSnapshot{Items: items, FetchedAt: fetchedAt}
}

func (m *mockRemote) begin(call string) error {
	m.m.Lock()
	delay := m.delay
	m.calls = append(m.calls, call)
	err := m.err
	m.m.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

func (m *mockRemote) FetchCart(context.Context) (*domain.CartSnapshot, error) {
	if err := m.begin("fetch"); err != nil {
		return nil, err
	}
	m.m.Lock()
	defer m.m.Unlock()
	return m.snapshot(), nil
}

func (m *mockRemote) AddItem(_ context.Context, productID, variantID string, quantity int) (*domain.CartSnapshot, error) {
	if err := m.begin("add " + domain.ItemKey(productID, variantID)); err != nil {
		return nil, err
	}
	m.m.Lock()
	defer m.m.Unlock()
	key := domain.ItemKey(productID, variantID)
	if existing, ok := m.items[key]; ok {
		existing.Quantity = quantity
		m.items[key] = existing
	} else {
		m.order = append(m.order, key)
		m.items[key] = domain.ServerLineItem{
			ProductID:    productID,
			VariantID:    variantID,
			Quantity:     quantity,
			CurrentPrice: 10.0,
			InStock:      true,
		}
	}
	return m.snapshot(), nil
}

func (m *mockRemote) UpdateItem(_ context.Context, productID, variantID string, quantity int) (*domain.CartSnapshot, error) {
	if err := m.begin("update " + domain.ItemKey(productID, variantID)); err != nil {
		return nil, err
	}
	m.m.Lock()
	defer m.m.Unlock()
	key := domain.ItemKey(productID, variantID)
	if existing, ok := m.items[key]; ok {
		existing.Quantity = quantity
		m.items[key] = existing
	}
	return m.snapshot(), nil
}

func (m *mockRemote) RemoveItem(_ context.Context, productID, variantID string) (*domain.CartSnapshot, error) {
	if err := m.begin("remove " + domain.ItemKey(productID, variantID)); err != nil {
		return nil, err
	}
	m.m.Lock()
	defer m.m.Unlock()
	key := domain.ItemKey(productID, variantID)
	delete(m.items, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return m.snapshot(), nil
}

func (m *mockRemote) ClearCart(context.Context) (*domain.CartSnapshot, error) {
	if err := m.begin("clear"); err != nil {
		return nil, err
	}
	m.m.Lock()
	defer m.m.Unlock()
	m.items = map[string]domain.ServerLineItem{}
	m.order = nil
	return m.snapshot(), nil
}

// mockPersister keeps the last saved state in memory.
type mockPersister struct {
	m     sync.Mutex
	state *domain.PersistedState
	err   error
	saves int
}

func (m *mockPersister) Load(context.Context) (*domain.PersistedState, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.state == nil {
		return nil, persist.ErrNotFound
	}
	return m.state, nil
}

func (m *mockPersister) Save(_ context.Context, state *domain.PersistedState) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.state = state
	m.saves++
	return nil
}

func (m *mockPersister) lastState() *domain.PersistedState {
	m.m.Lock()
	defer m.m.Unlock()
	return m.state
}
