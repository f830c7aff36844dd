package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"freshkeep-api/internal/model"
	"freshkeep-api/pkg/uid"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store using MongoDB, the closest analog to the
// hosted document database the tracker was originally built on.
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	items   *mongo.Collection
	history *mongo.Collection
	backups *mongo.Collection
}

// itemDocument is the stored form of an inventory item.
type itemDocument struct {
	UID     string    `bson:"uid"`
	ID      string    `bson:"id"`
	Name    string    `bson:"name"`
	Qty     int       `bson:"qty"`
	Storage string    `bson:"storage"`
	Expiry  time.Time `bson:"expiry"`
}

// historyDocument is the stored form of a history entry.
type historyDocument struct {
	UID       string      `bson:"uid"`
	ID        string      `bson:"id"`
	Action    string      `bson:"action"`
	TargetID  string      `bson:"target_id"`
	Before    *model.Item `bson:"before,omitempty"`
	After     *model.Item `bson:"after,omitempty"`
	QtyChange string      `bson:"qty_change,omitempty"`
	Note      string      `bson:"note,omitempty"`
	TS        time.Time   `bson:"ts"`
	Actor     string      `bson:"actor"`
}

// backupDocument is the stored form of a backup snapshot.
type backupDocument struct {
	UID       string             `bson:"uid"`
	ID        string             `bson:"id"`
	TS        time.Time          `bson:"ts"`
	ItemCount int                `bson:"item_count"`
	Items     []model.BackupItem `bson:"items"`
}

// NewMongoStore creates a new MongoDB-backed store.
func NewMongoStore(uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:  client,
		db:      db,
		items:   db.Collection("items"),
		history: db.Collection("history"),
		backups: db.Collection("backups"),
	}

	indexes := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.items, mongo.IndexModel{
			Keys:    bson.D{{Key: "uid", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.items, mongo.IndexModel{
			Keys: bson.D{{Key: "uid", Value: 1}, {Key: "expiry", Value: 1}},
		}},
		{s.history, mongo.IndexModel{
			Keys:    bson.D{{Key: "uid", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{s.history, mongo.IndexModel{
			Keys: bson.D{{Key: "uid", Value: 1}, {Key: "ts", Value: -1}},
		}},
		{s.backups, mongo.IndexModel{
			Keys:    bson.D{{Key: "uid", Value: 1}, {Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateOne(ctx, idx.model); err != nil {
			log.Printf("[MongoStore] Warning: failed to create index: %v", err)
		}
	}

	log.Printf("[MongoStore] Connected to %s", database)
	return s, nil
}

// CreateItem inserts a new item and returns its assigned id.
func (s *MongoStore) CreateItem(ctx context.Context, uidKey string, item model.Item) (string, error) {
	id := uid.New()
	doc := itemDocument{
		UID:     uidKey,
		ID:      id,
		Name:    item.Name,
		Qty:     item.Qty,
		Storage: string(item.Storage),
		Expiry:  item.Expiry,
	}
	if _, err := s.items.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to create item: %w", err)
	}
	return id, nil
}

// GetItem retrieves one item, returning nil when absent.
func (s *MongoStore) GetItem(ctx context.Context, uidKey, id string) (*model.Item, error) {
	var doc itemDocument
	err := s.items.FindOne(ctx, bson.M{"uid": uidKey, "id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	item := itemFromDocument(doc)
	return &item, nil
}

// PutItem creates or overwrites the item at id.
func (s *MongoStore) PutItem(ctx context.Context, uidKey, id string, item model.Item) error {
	doc := itemDocument{
		UID:     uidKey,
		ID:      id,
		Name:    item.Name,
		Qty:     item.Qty,
		Storage: string(item.Storage),
		Expiry:  item.Expiry,
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.items.ReplaceOne(ctx, bson.M{"uid": uidKey, "id": id}, doc, opts); err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}
	return nil
}

// DeleteItem removes the item at id.
func (s *MongoStore) DeleteItem(ctx context.Context, uidKey, id string) error {
	if _, err := s.items.DeleteOne(ctx, bson.M{"uid": uidKey, "id": id}); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	return nil
}

// ListItems returns the user's items ordered by expiry ascending.
func (s *MongoStore) ListItems(ctx context.Context, uidKey string) ([]model.Item, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "expiry", Value: 1}, {Key: "id", Value: 1}})
	cursor, err := s.items.Find(ctx, bson.M{"uid": uidKey}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer cursor.Close(ctx)

	items := []model.Item{}
	for cursor.Next(ctx) {
		var doc itemDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode item: %w", err)
		}
		items = append(items, itemFromDocument(doc))
	}
	return items, cursor.Err()
}

// AppendHistory appends an immutable log entry and returns its id.
func (s *MongoStore) AppendHistory(ctx context.Context, uidKey string, entry model.HistoryEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uid.New()
	}
	doc := historyDocument{
		UID:       uidKey,
		ID:        entry.ID,
		Action:    string(entry.Action),
		TargetID:  entry.TargetID,
		Before:    entry.Before,
		After:     entry.After,
		QtyChange: entry.QtyChange,
		Note:      entry.Note,
		TS:        entry.Timestamp,
		Actor:     entry.Actor,
	}
	if _, err := s.history.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to append history: %w", err)
	}
	return entry.ID, nil
}

// GetHistoryEntry retrieves one log entry, returning nil when absent.
func (s *MongoStore) GetHistoryEntry(ctx context.Context, uidKey, id string) (*model.HistoryEntry, error) {
	var doc historyDocument
	err := s.history.FindOne(ctx, bson.M{"uid": uidKey, "id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}
	entry := entryFromDocument(doc)
	return &entry, nil
}

// ListHistory returns log entries newest-first with the total count.
func (s *MongoStore) ListHistory(ctx context.Context, uidKey string, limit, offset int) ([]model.HistoryEntry, int64, error) {
	if limit <= 0 {
		limit = 50
	}
	findOpts := options.Find().
		SetSort(bson.D{{Key: "ts", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := s.history.Find(ctx, bson.M{"uid": uidKey}, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []model.HistoryEntry{}
	for cursor.Next(ctx) {
		var doc historyDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, 0, fmt.Errorf("failed to decode history entry: %w", err)
		}
		entries = append(entries, entryFromDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, 0, err
	}

	total, err := s.history.CountDocuments(ctx, bson.M{"uid": uidKey})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}
	return entries, total, nil
}

// SaveBackup persists a snapshot and returns its id.
func (s *MongoStore) SaveBackup(ctx context.Context, uidKey string, snap model.BackupSnapshot) (string, error) {
	if snap.ID == "" {
		snap.ID = uid.New()
	}
	doc := backupDocument{
		UID:       uidKey,
		ID:        snap.ID,
		TS:        snap.Timestamp,
		ItemCount: snap.ItemCount,
		Items:     snap.Items,
	}
	if _, err := s.backups.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("failed to save backup: %w", err)
	}
	return snap.ID, nil
}

// GetBackup retrieves one snapshot, returning nil when absent.
func (s *MongoStore) GetBackup(ctx context.Context, uidKey, id string) (*model.BackupSnapshot, error) {
	var doc backupDocument
	err := s.backups.FindOne(ctx, bson.M{"uid": uidKey, "id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backup: %w", err)
	}
	snap := snapshotFromDocument(doc)
	return &snap, nil
}

// LatestBackup returns the newest snapshot, or nil when none exist.
func (s *MongoStore) LatestBackup(ctx context.Context, uidKey string) (*model.BackupSnapshot, error) {
	findOpts := options.FindOne().SetSort(bson.D{{Key: "ts", Value: -1}})
	var doc backupDocument
	err := s.backups.FindOne(ctx, bson.M{"uid": uidKey}, findOpts).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest backup: %w", err)
	}
	snap := snapshotFromDocument(doc)
	return &snap, nil
}

// ListBackups returns all snapshots newest-first.
func (s *MongoStore) ListBackups(ctx context.Context, uidKey string) ([]model.BackupSnapshot, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "ts", Value: -1}})
	cursor, err := s.backups.Find(ctx, bson.M{"uid": uidKey}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	defer cursor.Close(ctx)

	snaps := []model.BackupSnapshot{}
	for cursor.Next(ctx) {
		var doc backupDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode backup: %w", err)
		}
		snaps = append(snaps, snapshotFromDocument(doc))
	}
	return snaps, cursor.Err()
}

// DeleteBackup removes a snapshot.
func (s *MongoStore) DeleteBackup(ctx context.Context, uidKey, id string) error {
	if _, err := s.backups.DeleteOne(ctx, bson.M{"uid": uidKey, "id": id}); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	return nil
}

// Stats returns statistics about the store database.
func (s *MongoStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"backend": "mongodb"}

	itemCount, err := s.items.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	stats["total_items"] = itemCount

	if n, err := s.history.CountDocuments(ctx, bson.M{}); err == nil {
		stats["history_entries"] = n
	}
	if n, err := s.backups.CountDocuments(ctx, bson.M{}); err == nil {
		stats["backups"] = n
	}
	return stats, nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func itemFromDocument(doc itemDocument) model.Item {
	return model.Item{
		ID:      doc.ID,
		Name:    doc.Name,
		Qty:     doc.Qty,
		Storage: model.StorageLocation(doc.Storage),
		Expiry:  doc.Expiry,
	}
}

func entryFromDocument(doc historyDocument) model.HistoryEntry {
	return model.HistoryEntry{
		ID:        doc.ID,
		Action:    model.Action(doc.Action),
		TargetID:  doc.TargetID,
		Before:    doc.Before,
		After:     doc.After,
		QtyChange: doc.QtyChange,
		Note:      doc.Note,
		Timestamp: doc.TS,
		Actor:     doc.Actor,
	}
}

func snapshotFromDocument(doc backupDocument) model.BackupSnapshot {
	return model.BackupSnapshot{
		ID:        doc.ID,
		Timestamp: doc.TS,
		ItemCount: doc.ItemCount,
		Items:     doc.Items,
	}
}

// Ensure MongoStore implements Store
var _ Store = (*MongoStore)(nil)
