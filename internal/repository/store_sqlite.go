package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"freshkeep-api/internal/model"
	"freshkeep-api/pkg/uid"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store using SQLite.
// Thread-safe with WAL mode for high-concurrency reads.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-backed store.
// dbPath is the path to the SQLite database file (e.g., "./data/freshkeep.db")
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Open with WAL mode and other optimizations
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0) // Keep connection alive

	if err := createSQLiteTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

// createSQLiteTables creates the items, history and backups tables.
func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS items (
		uid TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		qty INTEGER NOT NULL,
		storage TEXT NOT NULL,
		expiry DATETIME NOT NULL,
		PRIMARY KEY (uid, id)
	);
	CREATE INDEX IF NOT EXISTS idx_items_uid_expiry ON items(uid, expiry);

	CREATE TABLE IF NOT EXISTS history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL,
		id TEXT NOT NULL,
		action TEXT NOT NULL,
		target_id TEXT NOT NULL,
		before_json TEXT,
		after_json TEXT,
		qty_change TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT '',
		ts DATETIME NOT NULL,
		actor TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_history_uid_id ON history(uid, id);
	CREATE INDEX IF NOT EXISTS idx_history_uid_ts ON history(uid, ts);

	CREATE TABLE IF NOT EXISTS backups (
		uid TEXT NOT NULL,
		id TEXT NOT NULL,
		ts DATETIME NOT NULL,
		item_count INTEGER NOT NULL,
		items_json TEXT NOT NULL,
		PRIMARY KEY (uid, id)
	);
	CREATE INDEX IF NOT EXISTS idx_backups_uid_ts ON backups(uid, ts);
	`
	_, err := db.Exec(query)
	return err
}

// CreateItem inserts a new item and returns its assigned id.
func (s *SQLiteStore) CreateItem(ctx context.Context, uidKey string, item model.Item) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uid.New()
	query := `INSERT INTO items (uid, id, name, qty, storage, expiry) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, uidKey, id, item.Name, item.Qty, string(item.Storage), item.Expiry)
	if err != nil {
		return "", fmt.Errorf("failed to create item: %w", err)
	}
	return id, nil
}

// GetItem retrieves one item, returning nil when absent.
func (s *SQLiteStore) GetItem(ctx context.Context, uidKey, id string) (*model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, qty, storage, expiry FROM items WHERE uid = ? AND id = ?`

	var item model.Item
	var storage string
	err := s.db.QueryRowContext(ctx, query, uidKey, id).Scan(&item.ID, &item.Name, &item.Qty, &storage, &item.Expiry)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	item.Storage = model.StorageLocation(storage)
	return &item, nil
}

// PutItem creates or overwrites the item at id.
func (s *SQLiteStore) PutItem(ctx context.Context, uidKey, id string, item model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO items (uid, id, name, qty, storage, expiry)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid, id) DO UPDATE SET
			name = excluded.name,
			qty = excluded.qty,
			storage = excluded.storage,
			expiry = excluded.expiry`

	_, err := s.db.ExecContext(ctx, query, uidKey, id, item.Name, item.Qty, string(item.Storage), item.Expiry)
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// DeleteItem removes the item at id.
func (s *SQLiteStore) DeleteItem(ctx context.Context, uidKey, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE uid = ? AND id = ?`, uidKey, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// ListItems returns the user's items ordered by expiry ascending.
func (s *SQLiteStore) ListItems(ctx context.Context, uidKey string) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, qty, storage, expiry FROM items WHERE uid = ? ORDER BY expiry ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, uidKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		var item model.Item
		var storage string
		if err := rows.Scan(&item.ID, &item.Name, &item.Qty, &storage, &item.Expiry); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Storage = model.StorageLocation(storage)
		items = append(items, item)
	}
	return items, rows.Err()
}

// AppendHistory appends an immutable log entry and returns its id.
func (s *SQLiteStore) AppendHistory(ctx context.Context, uidKey string, entry model.HistoryEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uid.New()
	}

	beforeJSON, afterJSON, err := marshalSides(entry)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO history (uid, id, action, target_id, before_json, after_json, qty_change, note, ts, actor)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		uidKey, entry.ID, string(entry.Action), entry.TargetID,
		beforeJSON, afterJSON, entry.QtyChange, entry.Note, entry.Timestamp, entry.Actor)
	if err != nil {
		return "", fmt.Errorf("failed to append history: %w", err)
	}
	return entry.ID, nil
}

// GetHistoryEntry retrieves one log entry, returning nil when absent.
func (s *SQLiteStore) GetHistoryEntry(ctx context.Context, uidKey, id string) (*model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, action, target_id, before_json, after_json, qty_change, note, ts, actor
		FROM history WHERE uid = ? AND id = ?`

	entry, err := scanHistoryRow(s.db.QueryRowContext(ctx, query, uidKey, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}
	return entry, nil
}

// ListHistory returns log entries newest-first with the total count.
func (s *SQLiteStore) ListHistory(ctx context.Context, uidKey string, limit, offset int) ([]model.HistoryEntry, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history WHERE uid = ?`, uidKey).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, action, target_id, before_json, after_json, qty_change, note, ts, actor
		FROM history WHERE uid = ?
		ORDER BY ts DESC, seq DESC
		LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, uidKey, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		entry, err := scanHistoryRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, total, rows.Err()
}

// SaveBackup persists a snapshot and returns its id.
func (s *SQLiteStore) SaveBackup(ctx context.Context, uidKey string, snap model.BackupSnapshot) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = uid.New()
	}
	itemsJSON, err := json.Marshal(snap.Items)
	if err != nil {
		return "", fmt.Errorf("failed to serialize backup: %w", err)
	}

	query := `INSERT INTO backups (uid, id, ts, item_count, items_json) VALUES (?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, uidKey, snap.ID, snap.Timestamp, snap.ItemCount, string(itemsJSON))
	if err != nil {
		return "", fmt.Errorf("failed to save backup: %w", err)
	}
	return snap.ID, nil
}

// GetBackup retrieves one snapshot, returning nil when absent.
func (s *SQLiteStore) GetBackup(ctx context.Context, uidKey, id string) (*model.BackupSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, ts, item_count, items_json FROM backups WHERE uid = ? AND id = ?`
	snap, err := scanBackupRow(s.db.QueryRowContext(ctx, query, uidKey, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get backup: %w", err)
	}
	return snap, nil
}

// LatestBackup returns the newest snapshot, or nil when none exist.
func (s *SQLiteStore) LatestBackup(ctx context.Context, uidKey string) (*model.BackupSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, ts, item_count, items_json FROM backups WHERE uid = ? ORDER BY ts DESC LIMIT 1`
	snap, err := scanBackupRow(s.db.QueryRowContext(ctx, query, uidKey))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest backup: %w", err)
	}
	return snap, nil
}

// ListBackups returns all snapshots newest-first.
func (s *SQLiteStore) ListBackups(ctx context.Context, uidKey string) ([]model.BackupSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, ts, item_count, items_json FROM backups WHERE uid = ? ORDER BY ts DESC`
	rows, err := s.db.QueryContext(ctx, query, uidKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer rows.Close()

	snaps := []model.BackupSnapshot{}
	for rows.Next() {
		snap, err := scanBackupRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan backup: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// DeleteBackup removes a snapshot.
func (s *SQLiteStore) DeleteBackup(ctx context.Context, uidKey, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM backups WHERE uid = ? AND id = ?`, uidKey, id)
	if err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	return nil
}

// Stats returns statistics about the store database.
func (s *SQLiteStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{"backend": "sqlite"}

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&count); err != nil {
		return nil, err
	}
	stats["total_items"] = count

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM history").Scan(&count); err == nil {
		stats["history_entries"] = count
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM backups").Scan(&count); err == nil {
		stats["backups"] = count
	}

	// Database file size (approximate from page count)
	var pageCount, pageSize int64
	s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func marshalSides(entry model.HistoryEntry) (sql.NullString, sql.NullString, error) {
	var beforeJSON, afterJSON sql.NullString
	if entry.Before != nil {
		data, err := json.Marshal(entry.Before)
		if err != nil {
			return beforeJSON, afterJSON, fmt.Errorf("failed to serialize before state: %w", err)
		}
		beforeJSON = sql.NullString{String: string(data), Valid: true}
	}
	if entry.After != nil {
		data, err := json.Marshal(entry.After)
		if err != nil {
			return beforeJSON, afterJSON, fmt.Errorf("failed to serialize after state: %w", err)
		}
		afterJSON = sql.NullString{String: string(data), Valid: true}
	}
	return beforeJSON, afterJSON, nil
}

func scanHistoryRow(row rowScanner) (*model.HistoryEntry, error) {
	var entry model.HistoryEntry
	var action string
	var beforeJSON, afterJSON sql.NullString

	err := row.Scan(&entry.ID, &action, &entry.TargetID, &beforeJSON, &afterJSON,
		&entry.QtyChange, &entry.Note, &entry.Timestamp, &entry.Actor)
	if err != nil {
		return nil, err
	}
	entry.Action = model.Action(action)

	if beforeJSON.Valid {
		var before model.Item
		if err := json.Unmarshal([]byte(beforeJSON.String), &before); err != nil {
			return nil, fmt.Errorf("failed to parse before state: %w", err)
		}
		entry.Before = &before
	}
	if afterJSON.Valid {
		var after model.Item
		if err := json.Unmarshal([]byte(afterJSON.String), &after); err != nil {
			return nil, fmt.Errorf("failed to parse after state: %w", err)
		}
		entry.After = &after
	}
	return &entry, nil
}

func scanBackupRow(row rowScanner) (*model.BackupSnapshot, error) {
	var snap model.BackupSnapshot
	var itemsJSON string

	if err := row.Scan(&snap.ID, &snap.Timestamp, &snap.ItemCount, &itemsJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(itemsJSON), &snap.Items); err != nil {
		return nil, fmt.Errorf("failed to parse backup items: %w", err)
	}
	return &snap, nil
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
