package repository

import (
	"context"
	"testing"
	"time"

	"freshkeep-api/internal/model"
)

func TestMemoryStore_ItemRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.CreateItem(ctx, "u1", model.Item{Name: "Milk", Qty: 2, Storage: model.StorageRefrigerated})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetItem(ctx, "u1", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.Name != "Milk" || got.ID != id {
		t.Fatalf("unexpected item %+v", got)
	}

	// Per-user scoping.
	other, _ := store.GetItem(ctx, "u2", id)
	if other != nil {
		t.Error("items must not leak across users")
	}

	if err := store.DeleteItem(ctx, "u1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ = store.GetItem(ctx, "u1", id)
	if got != nil {
		t.Error("expected nil after delete")
	}

	// Deleting an absent id is not an error.
	if err := store.DeleteItem(ctx, "u1", "missing"); err != nil {
		t.Errorf("delete absent: %v", err)
	}
}

func TestMemoryStore_ListItemsSortedByExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	store.CreateItem(ctx, "u1", model.Item{Name: "Later", Expiry: base.AddDate(0, 0, 5)})
	store.CreateItem(ctx, "u1", model.Item{Name: "Sooner", Expiry: base.AddDate(0, 0, 1)})

	items, err := store.ListItems(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].Name != "Sooner" {
		t.Errorf("expected expiry-ascending order, got %v", items)
	}
}

func TestMemoryStore_HistoryNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := store.AppendHistory(ctx, "u1", model.HistoryEntry{
			Action:    model.ActionAdd,
			TargetID:  "x",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	entries, total, err := store.ListHistory(ctx, "u1", 3, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(entries) != 3 {
		t.Fatalf("expected limit 3, got %d", len(entries))
	}
	for i := 0; i < len(entries)-1; i++ {
		if entries[i].Timestamp.Before(entries[i+1].Timestamp) {
			t.Error("entries must be newest-first")
		}
	}

	// Offset past the end yields an empty page, not an error.
	page, total, err := store.ListHistory(ctx, "u1", 3, 10)
	if err != nil || total != 5 || len(page) != 0 {
		t.Errorf("expected empty page, got %v (total %d, err %v)", page, total, err)
	}
}

func TestMemoryStore_HistoryDeepCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	before := model.Item{ID: "x", Name: "Milk", Qty: 2}
	id, err := store.AppendHistory(ctx, "u1", model.HistoryEntry{
		Action:   model.ActionEdit,
		TargetID: "x",
		Before:   &before,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	// Mutating the caller's copy must not affect the stored entry.
	before.Qty = 99

	entry, err := store.GetHistoryEntry(ctx, "u1", id)
	if err != nil || entry == nil {
		t.Fatalf("get: %v", err)
	}
	if entry.Before.Qty != 2 {
		t.Errorf("stored entry was mutated: qty %d", entry.Before.Qty)
	}
}

func TestMemoryStore_Backups(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	oldID, _ := store.SaveBackup(ctx, "u1", model.BackupSnapshot{Timestamp: base})
	newID, _ := store.SaveBackup(ctx, "u1", model.BackupSnapshot{Timestamp: base.Add(time.Hour)})

	snaps, err := store.ListBackups(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID != newID {
		t.Errorf("expected newest-first, got %v", snaps)
	}

	latest, err := store.LatestBackup(ctx, "u1")
	if err != nil || latest == nil || latest.ID != newID {
		t.Errorf("expected latest %s, got %v", newID, latest)
	}

	if err := store.DeleteBackup(ctx, "u1", oldID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	snap, _ := store.GetBackup(ctx, "u1", oldID)
	if snap != nil {
		t.Error("expected nil after delete")
	}
}
