package engine

import (
	"context"
	"errors"

	"github.com/fjod/cart_sync/internal/domain"
	"github.com/fjod/cart_sync/internal/reconcile"
	"github.com/fjod/cart_sync/internal/remote"
	log "github.com/sirupsen/logrus"
)

// dispatch starts the background network leg for a just-applied local
// mutation. While unsynced the engine is a pure local store: no attempt is
// made and nothing is enqueued.
func (e *Engine) dispatch(op domain.Operation, productID, variantID string, quantity int) {
	if !e.Synced() {
		return
	}
	go e.pushMutation(op, productID, variantID, quantity)
}

func (e *Engine) pushMutation(op domain.Operation, productID, variantID string, quantity int) {
	ctx, cancel := context.WithTimeout(context.Background(), e.syncTimeout)
	defer cancel()

	snap, err := e.callRemote(ctx, op, productID, variantID, quantity)
	if err == nil {
		e.applyMerge(ctx, snap)
		return
	}

	log.WithError(err).WithFields(log.Fields{
		"operation":  op,
		"product_id": productID,
	}).Warn("background sync attempt failed, enqueueing")
	e.queue.Enqueue(op, productID, variantID, quantity)
	e.persistState(ctx)

	if errors.Is(err, remote.ErrUnauthorized) {
		e.setSynced(false)
	}
}

func (e *Engine) callRemote(ctx context.Context, op domain.Operation, productID, variantID string, quantity int) (*domain.CartSnapshot, error) {
	switch op {
	case domain.OpAdd:
		return e.remote.AddItem(ctx, productID, variantID, quantity)
	case domain.OpUpdate:
		return e.remote.UpdateItem(ctx, productID, variantID, quantity)
	case domain.OpRemove:
		return e.remote.RemoveItem(ctx, productID, variantID)
	case domain.OpClear:
		return e.remote.ClearCart(ctx)
	}
	return nil, errors.New("unknown operation")
}

// applyMerge folds a server snapshot into local state. Merge mode is the
// only reconciliation allowed while local edits may be in flight: the
// per-item timestamp comparison is the sole ordering authority, so a stale
// confirmation can never overwrite a newer local edit. Edits are compared
// against the last accepted sync marker, not the incoming fetch time: an
// edit the server has never seen must survive no matter how fresh the
// snapshot is.
func (e *Engine) applyMerge(ctx context.Context, snap *domain.CartSnapshot) {
	e.opMu.Lock()
	merged := reconcile.Merge(e.store.Get(), snap, e.LastServerSync())
	e.store.SetAll(merged)
	e.opMu.Unlock()

	e.setLastServerSync(snap.FetchedAt)
	e.persistState(ctx)
	e.notify()
}

// applyReplace takes the snapshot as-is. Only valid when no local edit needs
// protection, i.e. right after the login merge pushed everything.
func (e *Engine) applyReplace(ctx context.Context, snap *domain.CartSnapshot) {
	e.opMu.Lock()
	e.store.SetAll(reconcile.Replace(snap))
	e.opMu.Unlock()

	e.setLastServerSync(snap.FetchedAt)
	e.persistState(ctx)
	e.notify()
}

// SyncTick is one scheduler cycle: pull-and-merge the server cart, then
// drain the retry queue. No-op while unsynced.
func (e *Engine) SyncTick(ctx context.Context) {
	if !e.Synced() {
		return
	}
	e.refresh(ctx)
	e.drainQueue(ctx)
}

// refresh fetches the server cart and merges it. Concurrent callers share a
// single fetch via singleflight.
func (e *Engine) refresh(ctx context.Context) {
	_, err, _ := e.sfg.Do("fetch", func() (interface{}, error) {
		snap, errFetch := e.remote.FetchCart(ctx)
		if errFetch != nil {
			return nil, errFetch
		}
		e.applyMerge(ctx, snap)
		return nil, nil
	})
	if err == nil {
		return
	}
	if errors.Is(err, remote.ErrUnauthorized) {
		e.setSynced(false)
		return
	}
	log.WithError(err).Warn("periodic cart refresh failed")
}

// drainQueue replays pending entries in FIFO order, one at a time. At most
// one drain cycle runs at any moment.
func (e *Engine) drainQueue(ctx context.Context) {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return
	}
	e.draining = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.draining = false
		e.mu.Unlock()
	}()

	entries := e.queue.Entries()
	if len(entries) == 0 {
		return
	}

	for _, entry := range entries {
		snap, err := e.callRemote(ctx, entry.Operation, entry.ProductID, entry.VariantID, entry.Quantity)
		if err == nil {
			e.queue.Remove(entry.ID)
			e.applyMerge(ctx, snap)
			continue
		}
		if errors.Is(err, remote.ErrUnauthorized) {
			// Not a transient fault: keep the entry, halt background sync.
			e.setSynced(false)
			break
		}
		log.WithError(err).WithFields(log.Fields{
			"entry_id":  entry.ID,
			"operation": entry.Operation,
		}).Warn("sync queue replay failed")
		e.queue.Fail(entry.ID)
	}

	e.persistState(ctx)
}
