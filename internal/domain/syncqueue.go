package domain

// Operation is the kind of deferred cart mutation.
type Operation string

const (
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
	OpRemove Operation = "remove"
	OpClear  Operation = "clear"
)

// SyncQueueEntry is one mutation that failed to reach the server and is
// waiting to be replayed.
type SyncQueueEntry struct {
	ID         string    `json:"id"`
	Operation  Operation `json:"operation"`
	ProductID  string    `json:"product_id,omitempty"`
	VariantID  string    `json:"variant_id,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	EnqueuedAt int64     `json:"enqueued_at"` // unix milliseconds
	RetryCount int       `json:"retry_count"`
}

// PersistedState is what survives a restart. Volatile flags (sync gate,
// drain-in-progress) are deliberately not part of it.
type PersistedState struct {
	Items          []LineItem       `json:"items"`
	SyncQueue      []SyncQueueEntry `json:"sync_queue"`
	LastServerSync int64            `json:"last_server_sync"`
}
