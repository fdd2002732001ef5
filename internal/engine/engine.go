package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/cart_sync/internal/domain"
	"github.com/fjod/cart_sync/internal/persist"
	"github.com/fjod/cart_sync/internal/reconcile"
	"github.com/fjod/cart_sync/internal/remote"
	"github.com/fjod/cart_sync/internal/store"
	"github.com/fjod/cart_sync/internal/syncqueue"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxQuantity caps the per-item quantity, matching the storefront's
// validation range.
const DefaultMaxQuantity = 99

// Engine is the local-first cart: mutations apply to local state immediately
// and a background leg reconciles them against the remote store. One engine
// per cart session; collaborators are injected so tests can substitute them.
type Engine struct {
	store     *store.CartStore
	queue     *syncqueue.Queue
	remote    remote.CartAPI
	persister persist.Persister

	maxQuantity int
	overlap     reconcile.OverlapPolicy
	syncTimeout time.Duration

	sfg singleflight.Group

	// opMu serializes local mutations and reconciliations so a read-modify-
	// write of an item can never interleave with another mutation.
	opMu sync.Mutex

	mu             sync.Mutex
	isSynced       bool
	lastServerSync int64
	draining       bool

	subMu       sync.Mutex
	subscribers []func([]domain.LineItem)
}

type Option func(*Engine)

// WithMaxQuantity overrides the per-item quantity cap.
func WithMaxQuantity(max int) Option {
	return func(e *Engine) { e.maxQuantity = max }
}

// WithOverlapPolicy sets how the login merge resolves items present in both
// the anonymous and the server cart.
func WithOverlapPolicy(p reconcile.OverlapPolicy) Option {
	return func(e *Engine) { e.overlap = p }
}

// WithSyncTimeout bounds each background network attempt.
func WithSyncTimeout(d time.Duration) Option {
	return func(e *Engine) { e.syncTimeout = d }
}

func New(api remote.CartAPI, persister persist.Persister, opts ...Option) *Engine {
	e := &Engine{
		store:       store.NewCartStore(),
		queue:       syncqueue.NewQueue(),
		remote:      api,
		persister:   persister,
		maxQuantity: DefaultMaxQuantity,
		overlap:     reconcile.ServerWins,
		syncTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load restores persisted items, queue entries and the last sync marker.
// A missing state is a fresh cart, not an error. isSynced always starts
// false and is re-derived from a real fetch.
func (e *Engine) Load(ctx context.Context) error {
	state, err := e.persister.Load(ctx)
	if errors.Is(err, persist.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load cart state: %w", err)
	}
	e.store.SetAll(state.Items)
	e.queue.Restore(state.SyncQueue)
	e.mu.Lock()
	e.lastServerSync = state.LastServerSync
	e.mu.Unlock()
	return nil
}

// Items returns the current local cart contents.
func (e *Engine) Items() []domain.LineItem {
	return e.store.Get()
}

// TotalItems is the sum of quantities, recomputed on every read.
func (e *Engine) TotalItems() int {
	return e.store.TotalItems()
}

// TotalPrice is the sum of unit price times quantity, recomputed on every read.
func (e *Engine) TotalPrice() float64 {
	return e.store.TotalPrice()
}

// Synced reports whether background network attempts are currently made.
func (e *Engine) Synced() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isSynced
}

// LastServerSync is the timestamp of the last accepted server snapshot.
func (e *Engine) LastServerSync() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastServerSync
}

// QueueLen exposes the pending-mutation count for observability.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Subscribe registers fn to be called with a fresh copy of the items after
// every state change. Callbacks run synchronously on the mutating goroutine.
func (e *Engine) Subscribe(fn func([]domain.LineItem)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subscribers = append(e.subscribers, fn)
}

func (e *Engine) notify() {
	items := e.store.Get()
	e.subMu.Lock()
	subs := make([]func([]domain.LineItem), len(e.subscribers))
	copy(subs, e.subscribers)
	e.subMu.Unlock()
	for _, fn := range subs {
		fn(items)
	}
}

func (e *Engine) setSynced(v bool) {
	e.mu.Lock()
	e.isSynced = v
	e.mu.Unlock()
}

func (e *Engine) setLastServerSync(ts int64) {
	e.mu.Lock()
	e.lastServerSync = ts
	e.mu.Unlock()
}

// persistState saves everything that must survive a restart. Failures are
// logged, never propagated into the UI call path.
func (e *Engine) persistState(ctx context.Context) {
	state := &domain.PersistedState{
		Items:          e.store.Get(),
		SyncQueue:      e.queue.Snapshot(),
		LastServerSync: e.LastServerSync(),
	}
	if err := e.persister.Save(ctx, state); err != nil {
		log.WithError(err).Error("failed to persist cart state")
	}
}
