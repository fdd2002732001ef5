package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/cart_sync/internal/domain"
	"github.com/fjod/cart_sync/internal/reconcile"
	"github.com/fjod/cart_sync/internal/remote"
	log "github.com/sirupsen/logrus"
)

// MergeOnLogin attaches the anonymous local cart to a freshly authenticated
// session. Every local item the server does not have is pushed sequentially,
// then local state is replaced from a fresh fetch. Overlapping keys are
// resolved by the configured policy (server wins by default). Running it
// again finds no local-only items, so it is idempotent.
func (e *Engine) MergeOnLogin(ctx context.Context) error {
	snap, err := e.remote.FetchCart(ctx)
	if err != nil {
		if errors.Is(err, remote.ErrUnauthorized) {
			e.setSynced(false)
		}
		return fmt.Errorf("login merge fetch failed: %w", err)
	}
	e.setSynced(true)

	local := e.store.Get()
	for _, li := range reconcile.LocalOnly(local, snap) {
		if _, errAdd := e.remote.AddItem(ctx, li.ProductID, li.VariantID, li.Quantity); errAdd != nil {
			if errors.Is(errAdd, remote.ErrUnauthorized) {
				e.setSynced(false)
				return fmt.Errorf("login merge add failed: %w", errAdd)
			}
			log.WithError(errAdd).WithField("product_id", li.ProductID).
				Warn("login merge add failed, enqueueing")
			e.queue.Enqueue(domain.OpAdd, li.ProductID, li.VariantID, li.Quantity)
		}
	}

	if e.overlap == reconcile.LocalWins {
		for _, li := range reconcile.Overlapping(local, snap) {
			if _, errUpd := e.remote.UpdateItem(ctx, li.ProductID, li.VariantID, li.Quantity); errUpd != nil {
				if errors.Is(errUpd, remote.ErrUnauthorized) {
					e.setSynced(false)
					return fmt.Errorf("login merge update failed: %w", errUpd)
				}
				log.WithError(errUpd).WithField("product_id", li.ProductID).
					Warn("login merge update failed, enqueueing")
				e.queue.Enqueue(domain.OpUpdate, li.ProductID, li.VariantID, li.Quantity)
			}
		}
	}

	fresh, err := e.remote.FetchCart(ctx)
	if err != nil {
		if errors.Is(err, remote.ErrUnauthorized) {
			e.setSynced(false)
		}
		return fmt.Errorf("login merge refetch failed: %w", err)
	}
	e.applyReplace(ctx, fresh)
	return nil
}

// OnAuthenticated is the external "user became authenticated" event.
func (e *Engine) OnAuthenticated(ctx context.Context) error {
	return e.MergeOnLogin(ctx)
}

// OnUnauthenticated halts background sync. Local items stay: the cart
// remains usable offline and anonymously.
func (e *Engine) OnUnauthenticated() {
	e.setSynced(false)
}
