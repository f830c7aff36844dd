package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"freshkeep-api/internal/model"
	"freshkeep-api/internal/repository"
	"freshkeep-api/internal/sanitize"
)

var testSession = model.Session{UID: "user-1", DisplayName: "Tester"}

type testEnv struct {
	store     *repository.MemoryStore
	notifier  *ChangeNotifier
	history   *HistoryRecorder
	undo      *UndoService
	inventory *InventoryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := repository.NewMemoryStore()
	notifier := NewChangeNotifier()
	history := NewHistoryRecorder(store)
	undo := NewUndoService(store, history, notifier, 10*time.Second)
	t.Cleanup(undo.Stop)

	return &testEnv{
		store:     store,
		notifier:  notifier,
		history:   history,
		undo:      undo,
		inventory: NewInventoryService(store, history, undo, notifier),
	}
}

func (e *testEnv) historyEntries(t *testing.T) []model.HistoryEntry {
	t.Helper()
	entries, _, err := e.store.ListHistory(context.Background(), testSession.UID, 0, 0)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	return entries
}

func (e *testEnv) items(t *testing.T) []model.Item {
	t.Helper()
	items, err := e.store.ListItems(context.Background(), testSession.UID)
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	return items
}

func TestAdd_SanitizesAndRecords(t *testing.T) {
	env := newTestEnv(t)

	notified := 0
	env.notifier.Subscribe(func(uid string) {
		if uid == testSession.UID {
			notified++
		}
	})

	item, undo, err := env.inventory.Add(context.Background(), testSession, sanitize.RawRecord{
		Name: "Milk",
		Qty:  -5,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if item.Qty != 1 {
		t.Errorf("expected sanitized qty 1, got %d", item.Qty)
	}
	if item.Storage != model.DefaultStorage {
		t.Errorf("expected default storage, got %q", item.Storage)
	}
	if undo == nil || undo.Token == "" {
		t.Error("expected an undo offer")
	}
	if notified != 1 {
		t.Errorf("expected 1 change notification, got %d", notified)
	}

	entries := env.historyEntries(t)
	if len(entries) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(entries))
	}
	if entries[0].Action != model.ActionAdd {
		t.Errorf("expected ADD entry, got %s", entries[0].Action)
	}
	if entries[0].Before != nil {
		t.Error("ADD entry must have nil before")
	}
	if entries[0].After == nil || entries[0].After.Name != "Milk" {
		t.Error("ADD entry must capture the created item")
	}
	if entries[0].Actor != "Tester" {
		t.Errorf("expected actor Tester, got %q", entries[0].Actor)
	}
}

func TestAdd_RequiresName(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.inventory.Add(context.Background(), testSession, sanitize.RawRecord{Qty: 2})
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(env.historyEntries(t)) != 0 {
		t.Error("rejected add must not write history")
	}
}

func TestUpdate_MergesFields(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item, _, err := env.inventory.Add(ctx, testSession, sanitize.RawRecord{
		Name:    "Eggs",
		Qty:     12,
		Storage: "CC",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	updated, _, err := env.inventory.Update(ctx, testSession, item.ID, sanitize.RawRecord{Qty: 6})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Qty != 6 {
		t.Errorf("expected qty 6, got %d", updated.Qty)
	}
	if updated.Name != "Eggs" || updated.Storage != model.StorageCoolPantry {
		t.Error("unprovided fields must keep stored values")
	}

	entries := env.historyEntries(t)
	if entries[0].Action != model.ActionEdit {
		t.Fatalf("expected EDIT entry, got %s", entries[0].Action)
	}
	if entries[0].QtyChange != "(QTY: 12 -> 6)" {
		t.Errorf("expected qty annotation, got %q", entries[0].QtyChange)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.inventory.Update(context.Background(), testSession, "missing", sanitize.RawRecord{Qty: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_PartialQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item, _, err := env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "Yogurt", Qty: 5})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := env.inventory.Delete(ctx, testSession, item.ID, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stored, err := env.store.GetItem(ctx, testSession.UID, item.ID)
	if err != nil || stored == nil {
		t.Fatalf("item should survive a partial delete, err=%v", err)
	}
	if stored.Qty != 3 {
		t.Errorf("expected qty 3, got %d", stored.Qty)
	}

	entries := env.historyEntries(t)
	if entries[0].Action != model.ActionDelete {
		t.Fatalf("expected DELETE entry, got %s", entries[0].Action)
	}
	if entries[0].After == nil || entries[0].After.Qty != 3 {
		t.Error("partial delete entry must capture the reduced state")
	}
	if entries[0].QtyChange != "(QTY: 5 -> 3)" {
		t.Errorf("expected qty annotation, got %q", entries[0].QtyChange)
	}
}

func TestDelete_MoreThanStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item, _, err := env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "Yogurt", Qty: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err = env.inventory.Delete(ctx, testSession, item.ID, 3)
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	stored, _ := env.store.GetItem(ctx, testSession.UID, item.ID)
	if stored == nil || stored.Qty != 2 {
		t.Error("rejected delete must not touch the record")
	}
	if len(env.historyEntries(t)) != 1 {
		t.Error("rejected delete must not write history")
	}
}

func TestDelete_WholeRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item, _, err := env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "Butter", Qty: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := env.inventory.Delete(ctx, testSession, item.ID, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}

	stored, _ := env.store.GetItem(ctx, testSession.UID, item.ID)
	if stored != nil {
		t.Error("record should be gone after a whole delete")
	}

	entries := env.historyEntries(t)
	if entries[0].Action != model.ActionDelete || entries[0].After != nil {
		t.Error("whole delete entry must have nil after")
	}
	if entries[0].Before == nil || entries[0].Before.Qty != 2 {
		t.Error("whole delete entry must capture the state before removal")
	}
}

func TestList_StorageFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, raw := range []sanitize.RawRecord{
		{Name: "Milk", Storage: "RF"},
		{Name: "Peas", Storage: "FR"},
		{Name: "Rice", Storage: "CC"},
	} {
		if _, _, err := env.inventory.Add(ctx, testSession, raw); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	sess := testSession
	sess.StorageFilter = model.StorageFrozen
	items, err := env.inventory.List(ctx, sess)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Peas" {
		t.Errorf("expected only the frozen item, got %v", items)
	}

	all, err := env.inventory.List(ctx, testSession)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 items without a filter, got %d", len(all))
	}
}

func TestBulkAdd_ParsesPurchaseLines(t *testing.T) {
	env := newTestEnv(t)

	text := "[FreshFarm] Whole Milk 2\nnot a purchase line\n[Sunrise] Eggs\n"
	added, err := env.inventory.BulkAdd(context.Background(), testSession, text)
	if err != nil {
		t.Fatalf("bulk add: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("expected 2 items, got %d", len(added))
	}
	if added[0].Name != "FreshFarm Whole Milk" {
		t.Errorf("unexpected name %q", added[0].Name)
	}
	if added[1].Name != "Sunrise Eggs" {
		t.Errorf("unexpected name %q", added[1].Name)
	}
	for _, item := range added {
		if item.Qty != 1 {
			t.Errorf("bulk items default to qty 1, got %d", item.Qty)
		}
	}

	entries := env.historyEntries(t)
	if len(entries) != 2 {
		t.Errorf("expected one ADD entry per item, got %d", len(entries))
	}
}

func TestBulkAdd_NoMatches(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.inventory.BulkAdd(context.Background(), testSession, "nothing useful here")
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDeleteSelected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, _, _ := env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "A"})
	b, _, _ := env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "B"})

	deleted, failed, err := env.inventory.DeleteSelected(ctx, testSession, []string{a.ID, "missing", b.ID})
	if err != nil {
		t.Fatalf("delete selected: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}
	if len(failed) != 1 || failed[0] != "missing" {
		t.Errorf("expected the missing id reported, got %v", failed)
	}
	if len(env.items(t)) != 0 {
		t.Error("selected records should be gone")
	}
}

func TestDeleteAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		if _, _, err := env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: name}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	deleted, err := env.inventory.DeleteAll(ctx, testSession)
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}
	if len(env.items(t)) != 0 {
		t.Error("inventory should be empty")
	}
	// 3 ADD + 3 DELETE entries
	if got := len(env.historyEntries(t)); got != 6 {
		t.Errorf("expected 6 history entries, got %d", got)
	}
}

func TestMilkLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	milk, _, err := env.inventory.Add(ctx, testSession, sanitize.RawRecord{
		Name:   "Milk",
		Qty:    2,
		Expiry: "2025-06-20",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if _, err := env.inventory.Delete(ctx, testSession, milk.ID, 0); err != nil {
		t.Fatalf("delete: %v", err)
	}

	entries := env.historyEntries(t)
	deleteEntry := entries[0]
	if deleteEntry.Action != model.ActionDelete {
		t.Fatalf("expected DELETE newest, got %s", deleteEntry.Action)
	}

	if _, err := env.undo.UndoEntry(ctx, testSession, deleteEntry.ID); err != nil {
		t.Fatalf("undo entry: %v", err)
	}

	restored, _ := env.store.GetItem(ctx, testSession.UID, milk.ID)
	if restored == nil {
		t.Fatal("milk should be back after undoing the delete")
	}
	if restored.Name != "Milk" || restored.Qty != 2 {
		t.Errorf("restored state mismatch: %+v", restored)
	}

	entries = env.historyEntries(t)
	if len(entries) != 3 {
		t.Fatalf("expected ADD, DELETE, UNDO entries, got %d", len(entries))
	}
	if entries[0].Action != model.ActionUndo {
		t.Errorf("expected UNDO newest, got %s", entries[0].Action)
	}
	// Newest-first ordering: timestamps never increase down the list.
	for i := 0; i < len(entries)-1; i++ {
		if entries[i].Timestamp.Before(entries[i+1].Timestamp) {
			t.Errorf("entry %d is older than entry %d", i, i+1)
		}
	}
}
