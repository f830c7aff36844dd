package repository

import (
	"context"

	"freshkeep-api/internal/model"
)

// Store defines data access for the three per-user collections: inventory
// items, the append-only history log, and backup snapshots. Every method is
// scoped by the owning user's uid; there are no cross-user references.
//
// Implementations perform no retries: an I/O failure surfaces to the caller,
// and retry policy is a caller concern.
type Store interface {
	// CreateItem inserts a new item and returns its store-assigned id.
	CreateItem(ctx context.Context, uid string, item model.Item) (string, error)

	// GetItem retrieves one item, returning nil when absent.
	GetItem(ctx context.Context, uid, id string) (*model.Item, error)

	// PutItem creates or overwrites the item at id. Used by restore paths.
	PutItem(ctx context.Context, uid, id string, item model.Item) error

	// DeleteItem removes the item at id. Deleting an absent id is not an error.
	DeleteItem(ctx context.Context, uid, id string) error

	// ListItems returns all of the user's items ordered by expiry ascending.
	// Items with unknown expiry sort with the backend's native ordering.
	ListItems(ctx context.Context, uid string) ([]model.Item, error)

	// AppendHistory appends an immutable log entry and returns its id.
	AppendHistory(ctx context.Context, uid string, entry model.HistoryEntry) (string, error)

	// GetHistoryEntry retrieves one log entry, returning nil when absent.
	GetHistoryEntry(ctx context.Context, uid, id string) (*model.HistoryEntry, error)

	// ListHistory returns log entries newest-first with the total count.
	ListHistory(ctx context.Context, uid string, limit, offset int) ([]model.HistoryEntry, int64, error)

	// SaveBackup persists a snapshot and returns its id.
	SaveBackup(ctx context.Context, uid string, snap model.BackupSnapshot) (string, error)

	// GetBackup retrieves one snapshot, returning nil when absent.
	GetBackup(ctx context.Context, uid, id string) (*model.BackupSnapshot, error)

	// LatestBackup returns the newest snapshot, or nil when none exist.
	LatestBackup(ctx context.Context, uid string) (*model.BackupSnapshot, error)

	// ListBackups returns all snapshots newest-first.
	ListBackups(ctx context.Context, uid string) ([]model.BackupSnapshot, error)

	// DeleteBackup removes a snapshot. Inventory and history are untouched.
	DeleteBackup(ctx context.Context, uid, id string) error

	// Stats returns statistics about the underlying store.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the store connection.
	Close() error
}
