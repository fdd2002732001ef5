package syncqueue

import (
	"sync"
	"time"

	"github.com/fjod/cart_sync/internal/domain"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// MaxRetries bounds how often a deferred mutation is replayed before it is
// dropped. Dropping is silent towards the UI: the optimistic local state
// already reflects the user's intent.
const MaxRetries = 3

// Queue is the ordered list of mutations that failed to reach the server.
// FIFO for replay; per-key correctness is what matters, strict global order
// is not required.
type Queue struct {
	mu         sync.Mutex
	entries    []domain.SyncQueueEntry
	maxRetries int
}

func NewQueue() *Queue {
	return &Queue{maxRetries: MaxRetries}
}

// Enqueue appends a deferred operation and returns its entry ID.
func (q *Queue) Enqueue(op domain.Operation, productID, variantID string, quantity int) string {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry := domain.SyncQueueEntry{
		ID:         uuid.NewString(),
		Operation:  op,
		ProductID:  productID,
		VariantID:  variantID,
		Quantity:   quantity,
		EnqueuedAt: time.Now().UnixMilli(),
	}
	q.entries = append(q.entries, entry)
	return entry.ID
}

// Entries returns a copy of the queue in enqueue order.
func (q *Queue) Entries() []domain.SyncQueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.SyncQueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Remove drops the entry after a successful replay.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.remove(id)
}

// Fail increments the retry count for id. When the bound is reached the
// entry is dropped and false is returned; the drop is logged, never surfaced.
func (q *Queue) Fail(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].ID != id {
			continue
		}
		q.entries[i].RetryCount++
		if q.entries[i].RetryCount >= q.maxRetries {
			log.WithFields(log.Fields{
				"entry_id":  id,
				"operation": q.entries[i].Operation,
				"retries":   q.entries[i].RetryCount,
			}).Warn("sync queue entry exceeded max retries, dropping")
			q.remove(id)
			return false
		}
		return true
	}
	return false
}

// Snapshot returns the entries for persistence.
func (q *Queue) Snapshot() []domain.SyncQueueEntry {
	return q.Entries()
}

// Restore replaces the queue with previously persisted entries.
func (q *Queue) Restore(entries []domain.SyncQueueEntry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = make([]domain.SyncQueueEntry, len(entries))
	copy(q.entries, entries)
}

func (q *Queue) remove(id string) {
	for i := range q.entries {
		if q.entries[i].ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}
