package repository

import (
	"context"
	"sort"
	"sync"

	"freshkeep-api/internal/model"
	"freshkeep-api/pkg/uid"
)

// MemoryStore is an in-memory implementation of Store.
// Use this for development/testing or single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]map[string]model.Item // uid -> id -> item
	history map[string][]model.HistoryEntry  // uid -> entries, insertion order
	backups map[string][]model.BackupSnapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:   make(map[string]map[string]model.Item),
		history: make(map[string][]model.HistoryEntry),
		backups: make(map[string][]model.BackupSnapshot),
	}
}

// CreateItem inserts a new item and returns its assigned id.
func (s *MemoryStore) CreateItem(ctx context.Context, uidKey string, item model.Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uid.New()
	item.ID = id
	if s.items[uidKey] == nil {
		s.items[uidKey] = make(map[string]model.Item)
	}
	s.items[uidKey][id] = item
	return id, nil
}

// GetItem retrieves one item, returning nil when absent.
func (s *MemoryStore) GetItem(ctx context.Context, uidKey, id string) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[uidKey][id]
	if !ok {
		return nil, nil
	}
	copied := item.Clone()
	return &copied, nil
}

// PutItem creates or overwrites the item at id.
func (s *MemoryStore) PutItem(ctx context.Context, uidKey, id string, item model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item.ID = id
	if s.items[uidKey] == nil {
		s.items[uidKey] = make(map[string]model.Item)
	}
	s.items[uidKey][id] = item
	return nil
}

// DeleteItem removes the item at id.
func (s *MemoryStore) DeleteItem(ctx context.Context, uidKey, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items[uidKey], id)
	return nil
}

// ListItems returns the user's items ordered by expiry ascending.
func (s *MemoryStore) ListItems(ctx context.Context, uidKey string) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]model.Item, 0, len(s.items[uidKey]))
	for _, item := range s.items[uidKey] {
		items = append(items, item.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Expiry.Equal(items[j].Expiry) {
			return items[i].ID < items[j].ID
		}
		return items[i].Expiry.Before(items[j].Expiry)
	})
	return items, nil
}

// AppendHistory appends an immutable log entry and returns its id.
func (s *MemoryStore) AppendHistory(ctx context.Context, uidKey string, entry model.HistoryEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uid.New()
	}
	entry = cloneEntry(entry)
	s.history[uidKey] = append(s.history[uidKey], entry)
	return entry.ID, nil
}

// GetHistoryEntry retrieves one log entry, returning nil when absent.
func (s *MemoryStore) GetHistoryEntry(ctx context.Context, uidKey, id string) (*model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, entry := range s.history[uidKey] {
		if entry.ID == id {
			copied := cloneEntry(entry)
			return &copied, nil
		}
	}
	return nil, nil
}

// ListHistory returns log entries newest-first with the total count.
// Ties on timestamp are broken by insertion order.
func (s *MemoryStore) ListHistory(ctx context.Context, uidKey string, limit, offset int) ([]model.HistoryEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.history[uidKey]
	total := int64(len(all))

	reversed := make([]model.HistoryEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		reversed = append(reversed, cloneEntry(all[i]))
	}
	sort.SliceStable(reversed, func(i, j int) bool {
		return reversed[i].Timestamp.After(reversed[j].Timestamp)
	})

	if offset >= len(reversed) {
		return []model.HistoryEntry{}, total, nil
	}
	reversed = reversed[offset:]
	if limit > 0 && limit < len(reversed) {
		reversed = reversed[:limit]
	}
	return reversed, total, nil
}

// SaveBackup persists a snapshot and returns its id.
func (s *MemoryStore) SaveBackup(ctx context.Context, uidKey string, snap model.BackupSnapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = uid.New()
	}
	snap.Items = append([]model.BackupItem(nil), snap.Items...)
	s.backups[uidKey] = append(s.backups[uidKey], snap)
	return snap.ID, nil
}

// GetBackup retrieves one snapshot, returning nil when absent.
func (s *MemoryStore) GetBackup(ctx context.Context, uidKey, id string) (*model.BackupSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, snap := range s.backups[uidKey] {
		if snap.ID == id {
			copied := snap
			copied.Items = append([]model.BackupItem(nil), snap.Items...)
			return &copied, nil
		}
	}
	return nil, nil
}

// LatestBackup returns the newest snapshot, or nil when none exist.
func (s *MemoryStore) LatestBackup(ctx context.Context, uidKey string) (*model.BackupSnapshot, error) {
	snaps, err := s.ListBackups(ctx, uidKey)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	return &snaps[0], nil
}

// ListBackups returns all snapshots newest-first.
func (s *MemoryStore) ListBackups(ctx context.Context, uidKey string) ([]model.BackupSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := make([]model.BackupSnapshot, 0, len(s.backups[uidKey]))
	for i := len(s.backups[uidKey]) - 1; i >= 0; i-- {
		snap := s.backups[uidKey][i]
		snap.Items = append([]model.BackupItem(nil), snap.Items...)
		snaps = append(snaps, snap)
	}
	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].Timestamp.After(snaps[j].Timestamp)
	})
	return snaps, nil
}

// DeleteBackup removes a snapshot.
func (s *MemoryStore) DeleteBackup(ctx context.Context, uidKey, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := s.backups[uidKey]
	for i, snap := range snaps {
		if snap.ID == id {
			s.backups[uidKey] = append(snaps[:i], snaps[i+1:]...)
			return nil
		}
	}
	return nil
}

// Stats returns statistics about the in-memory store.
func (s *MemoryStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var itemCount, historyCount, backupCount int
	for _, m := range s.items {
		itemCount += len(m)
	}
	for _, h := range s.history {
		historyCount += len(h)
	}
	for _, b := range s.backups {
		backupCount += len(b)
	}

	return map[string]interface{}{
		"backend":         "memory",
		"users":           len(s.items),
		"total_items":     itemCount,
		"history_entries": historyCount,
		"backups":         backupCount,
	}, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func cloneEntry(e model.HistoryEntry) model.HistoryEntry {
	if e.Before != nil {
		before := e.Before.Clone()
		e.Before = &before
	}
	if e.After != nil {
		after := e.After.Clone()
		e.After = &after
	}
	return e
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
