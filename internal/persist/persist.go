package persist

import (
	"context"
	"errors"

	"github.com/fjod/cart_sync/internal/domain"
)

// ErrNotFound is returned by Load when no state was ever saved under the
// storage key.
var ErrNotFound = errors.New("no persisted cart state")

// Persister stores the durable engine state under a fixed storage key so the
// cart survives restarts.
type Persister interface {
	Load(ctx context.Context) (*domain.PersistedState, error)
	Save(ctx context.Context, state *domain.PersistedState) error
}
