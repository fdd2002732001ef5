package reconcile

import (
	"github.com/fjod/cart_sync/internal/domain"
)

// OverlapPolicy decides which quantity wins when the same item exists both
// locally and server-side during the login merge. Product has not settled
// this, so it stays configurable.
type OverlapPolicy int

const (
	// ServerWins discards the pre-login local quantity for overlapping keys.
	ServerWins OverlapPolicy = iota
	// LocalWins pushes the pre-login local quantity to the server.
	LocalWins
)

// FromServer maps one server item into a local line item.
func FromServer(si domain.ServerLineItem, status domain.SyncStatus, modifiedAt int64) domain.LineItem {
	image := ""
	if len(si.Images) > 0 {
		image = si.Images[0]
	}
	return domain.LineItem{
		ProductID:     si.ProductID,
		VariantID:     si.VariantID,
		Quantity:      si.Quantity,
		UnitPrice:     si.CurrentPrice,
		OriginalPrice: si.OriginalPrice,
		Title:         si.Title,
		Image:         image,
		Slug:          si.Slug,
		Color:         si.Color,
		Size:          si.Size,
		StockQuantity: si.StockQuantity,
		InStock:       si.InStock,
		OutOfStock:    si.OutOfStock,
		IsDeleted:     si.IsDeleted,
		SyncStatus:    status,
		LastModified:  modifiedAt,
	}
}

// Replace maps the server snapshot exactly; every item comes back synced.
// Used after the login merge has pushed local-only items, when the server is
// the single source of truth again.
func Replace(snap *domain.CartSnapshot) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(snap.Items))
	for _, si := range snap.Items {
		out = append(out, FromServer(si, domain.SyncStatusSynced, snap.FetchedAt))
	}
	return out
}

// Merge folds a server snapshot into current local state without losing
// unsent local edits. since is the timestamp of the last server state the
// engine accepted; an unsent edit newer than it cannot be known to the
// server and must survive. Per item key:
//   - present on both sides: the local copy wins only if it is an unsent edit
//     newer than since; it is marked pending for resync. When the server
//     already holds the same quantity the edit is confirmed, so the server
//     version is adopted as synced. Otherwise the server version wins.
//   - present only locally: unsent edits are kept as pending; items the
//     server confirmed earlier and has since dropped are removed.
//   - present only server-side: added as synced.
//
// Server item order is kept, with surviving local-only items appended after.
func Merge(local []domain.LineItem, snap *domain.CartSnapshot, since int64) []domain.LineItem {
	localByKey := make(map[string]domain.LineItem, len(local))
	for _, li := range local {
		localByKey[li.Key()] = li
	}

	out := make([]domain.LineItem, 0, len(snap.Items)+len(local))
	for _, si := range snap.Items {
		key := si.Key()
		if li, ok := localByKey[key]; ok && unsentEditNewerThan(li, since) && li.Quantity != si.Quantity {
			li.SyncStatus = domain.SyncStatusPending
			out = append(out, li)
			continue
		}
		out = append(out, FromServer(si, domain.SyncStatusSynced, snap.FetchedAt))
	}

	for _, li := range local {
		if snap.Has(li.Key()) {
			continue
		}
		if li.SyncStatus == domain.SyncStatusSynced {
			// Server no longer has it and no local edit protects it.
			continue
		}
		li.SyncStatus = domain.SyncStatusPending
		out = append(out, li)
	}

	return out
}

// LocalOnly returns local items whose key the snapshot does not contain.
// These are the anonymous-session items the login merge has to push.
func LocalOnly(local []domain.LineItem, snap *domain.CartSnapshot) []domain.LineItem {
	out := make([]domain.LineItem, 0)
	for _, li := range local {
		if !snap.Has(li.Key()) {
			out = append(out, li)
		}
	}
	return out
}

// Overlapping returns local items whose key the snapshot also contains but
// with a different quantity. Only relevant under the LocalWins policy.
func Overlapping(local []domain.LineItem, snap *domain.CartSnapshot) []domain.LineItem {
	out := make([]domain.LineItem, 0)
	for _, li := range local {
		if si, ok := snap.Item(li.Key()); ok && si.Quantity != li.Quantity {
			out = append(out, li)
		}
	}
	return out
}

func unsentEditNewerThan(li domain.LineItem, since int64) bool {
	return li.SyncStatus != domain.SyncStatusSynced && li.LastModified > since
}
