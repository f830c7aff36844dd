package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"freshkeep-api/internal/model"
	"freshkeep-api/internal/sanitize"
)

func newBackupEnv(t *testing.T) (*testEnv, *BackupService) {
	t.Helper()
	env := newTestEnv(t)
	return env, NewBackupService(env.store, env.history, env.notifier)
}

func itemNames(items []model.Item) []string {
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	sort.Strings(names)
	return names
}

func TestBackupNow_CapturesInventory(t *testing.T) {
	env, backups := newBackupEnv(t)
	ctx := context.Background()

	env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "A"})
	env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "B"})

	snap, err := backups.BackupNow(ctx, testSession)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if snap.ID == "" {
		t.Error("snapshot must get an id")
	}
	if snap.ItemCount != 2 || len(snap.Items) != 2 {
		t.Errorf("expected 2 members, got count=%d len=%d", snap.ItemCount, len(snap.Items))
	}
}

func TestRestore_DiffsAgainstLiveSet(t *testing.T) {
	env, backups := newBackupEnv(t)
	ctx := context.Background()

	a, _, _ := env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "A", Qty: 2})
	b, _, _ := env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "B"})

	snap, err := backups.BackupNow(ctx, testSession)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}

	// Drift: delete A, edit B, add C.
	env.inventory.Delete(ctx, testSession, a.ID, 0)
	env.inventory.Update(ctx, testSession, b.ID, sanitize.RawRecord{Qty: 9})
	env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "C"})

	historyBefore := len(env.historyEntries(t))

	if _, err := backups.Restore(ctx, testSession, snap.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}

	items := env.items(t)
	if got := itemNames(items); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("expected exactly A and B after restore, got %v", got)
	}
	restoredA, _ := env.store.GetItem(ctx, testSession.UID, a.ID)
	if restoredA == nil || restoredA.Qty != 2 {
		t.Errorf("A must come back under its original id and state, got %+v", restoredA)
	}
	restoredB, _ := env.store.GetItem(ctx, testSession.UID, b.ID)
	if restoredB == nil || restoredB.Qty != 1 {
		t.Errorf("B must be reverted to the snapshot state, got %+v", restoredB)
	}

	// One summary entry, not one per record.
	entries := env.historyEntries(t)
	if len(entries) != historyBefore+1 {
		t.Fatalf("expected exactly 1 new history entry, got %d", len(entries)-historyBefore)
	}
	if entries[0].Action != model.ActionRestoreFull || entries[0].TargetID != model.BulkTarget {
		t.Errorf("expected a RESTORE_FULL summary entry, got %+v", entries[0])
	}
	if entries[0].Note == "" {
		t.Error("summary entry must carry a note")
	}
}

func TestRestore_Idempotent(t *testing.T) {
	env, backups := newBackupEnv(t)
	ctx := context.Background()

	env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "A", Qty: 3})
	snap, _ := backups.BackupNow(ctx, testSession)

	if _, err := backups.Restore(ctx, testSession, snap.ID); err != nil {
		t.Fatalf("first restore: %v", err)
	}
	first := env.items(t)

	if _, err := backups.Restore(ctx, testSession, snap.ID); err != nil {
		t.Fatalf("second restore: %v", err)
	}
	second := env.items(t)

	if len(first) != len(second) {
		t.Fatalf("restore must be idempotent: %d vs %d items", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("item %d changed between restores: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestRescueMerge_KeepsNewItems(t *testing.T) {
	env, backups := newBackupEnv(t)
	ctx := context.Background()

	a, _, _ := env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "A"})
	snap, _ := backups.BackupNow(ctx, testSession)

	env.inventory.Delete(ctx, testSession, a.ID, 0)
	env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "C"})

	if _, err := backups.RescueMerge(ctx, testSession, snap.ID); err != nil {
		t.Fatalf("rescue: %v", err)
	}

	got := itemNames(env.items(t))
	if len(got) != 2 || got[0] != "A" || got[1] != "C" {
		t.Fatalf("rescue must restore A and keep C, got %v", got)
	}

	entries := env.historyEntries(t)
	if entries[0].Action != model.ActionRescueMerge {
		t.Errorf("expected a RESCUE_MERGE summary entry, got %s", entries[0].Action)
	}
}

func TestRestoreLatest_PicksNewest(t *testing.T) {
	env, backups := newBackupEnv(t)
	ctx := context.Background()

	env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "Old"})
	backups.BackupNow(ctx, testSession)

	env.inventory.DeleteAll(ctx, testSession)
	env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "New"})
	newest, err := backups.BackupNow(ctx, testSession)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}

	env.inventory.DeleteAll(ctx, testSession)

	snap, err := backups.RestoreLatest(ctx, testSession)
	if err != nil {
		t.Fatalf("restore latest: %v", err)
	}
	if snap.ID != newest.ID {
		t.Errorf("expected the newest snapshot %s, got %s", newest.ID, snap.ID)
	}

	got := itemNames(env.items(t))
	if len(got) != 1 || got[0] != "New" {
		t.Errorf("expected only the newest snapshot's item, got %v", got)
	}

	entries := env.historyEntries(t)
	if entries[0].Action != model.ActionRestoreLatest {
		t.Errorf("expected a RESTORE_LATEST summary entry, got %s", entries[0].Action)
	}
}

func TestRestore_MissingBackup(t *testing.T) {
	_, backups := newBackupEnv(t)

	if _, err := backups.Restore(context.Background(), testSession, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteBackup(t *testing.T) {
	env, backups := newBackupEnv(t)
	ctx := context.Background()

	env.inventory.Add(ctx, testSession, sanitize.RawRecord{Name: "A"})
	snap, _ := backups.BackupNow(ctx, testSession)

	if err := backups.Delete(ctx, testSession, snap.ID); err != nil {
		t.Fatalf("delete backup: %v", err)
	}
	if err := backups.Delete(ctx, testSession, snap.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a deleted snapshot, got %v", err)
	}

	// Inventory untouched.
	if len(env.items(t)) != 1 {
		t.Error("deleting a backup must not touch the inventory")
	}
}
