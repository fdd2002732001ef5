package engine

import (
	"context"

	"github.com/fjod/cart_sync/internal/domain"
)

// AddItem puts item into the cart, or increments the quantity when the key
// already exists. The local store reflects the change before this returns;
// the network leg is fire-and-forget. Quantities below 1 are a silent no-op,
// the result is capped at the max quantity.
func (e *Engine) AddItem(ctx context.Context, item domain.LineItem) {
	if item.Quantity < 1 {
		return
	}

	e.opMu.Lock()
	key := item.Key()
	if existing, ok := e.store.GetItem(key); ok {
		existing.Quantity = e.clamp(existing.Quantity + item.Quantity)
		existing.SyncStatus = domain.SyncStatusLocal
		e.store.Upsert(existing)
		item = existing
	} else {
		item.Quantity = e.clamp(item.Quantity)
		item.SyncStatus = domain.SyncStatusLocal
		e.store.Upsert(item)
	}
	e.opMu.Unlock()

	e.persistState(ctx)
	e.notify()
	e.dispatch(domain.OpAdd, item.ProductID, item.VariantID, item.Quantity)
}

// UpdateQuantity sets the quantity for the item with key. Below 1 the call
// is a no-op; above the cap the value is clamped. Unknown keys are ignored.
func (e *Engine) UpdateQuantity(ctx context.Context, key string, quantity int) {
	if quantity < 1 {
		return
	}

	e.opMu.Lock()
	item, ok := e.store.GetItem(key)
	if !ok {
		e.opMu.Unlock()
		return
	}
	item.Quantity = e.clamp(quantity)
	item.SyncStatus = domain.SyncStatusLocal
	e.store.Upsert(item)
	e.opMu.Unlock()

	e.persistState(ctx)
	e.notify()
	e.dispatch(domain.OpUpdate, item.ProductID, item.VariantID, item.Quantity)
}

// RemoveItem deletes the item with key from the cart.
func (e *Engine) RemoveItem(ctx context.Context, key string) {
	e.opMu.Lock()
	item, ok := e.store.GetItem(key)
	if !ok {
		e.opMu.Unlock()
		return
	}
	e.store.Remove(key)
	e.opMu.Unlock()

	e.persistState(ctx)
	e.notify()
	e.dispatch(domain.OpRemove, item.ProductID, item.VariantID, 0)
}

// ClearCart empties the cart.
func (e *Engine) ClearCart(ctx context.Context) {
	e.opMu.Lock()
	e.store.Clear()
	e.opMu.Unlock()

	e.persistState(ctx)
	e.notify()
	e.dispatch(domain.OpClear, "", "", 0)
}

func (e *Engine) clamp(quantity int) int {
	if quantity > e.maxQuantity {
		return e.maxQuantity
	}
	return quantity
}
