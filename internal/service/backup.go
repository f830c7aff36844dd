package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"freshkeep-api/internal/model"
	"freshkeep-api/internal/repository"
	"freshkeep-api/internal/sanitize"
)

// BackupService captures and restores point-in-time snapshots of a user's
// inventory. Restores are diff-based against the live set so that running
// the same restore twice is a no-op, and the whole operation is logged as
// a single summary history entry rather than one entry per record.
type BackupService struct {
	store    repository.Store
	history  *HistoryRecorder
	notifier *ChangeNotifier
	now      func() time.Time
}

// NewBackupService creates the backup engine.
func NewBackupService(store repository.Store, history *HistoryRecorder, notifier *ChangeNotifier) *BackupService {
	return &BackupService{
		store:    store,
		history:  history,
		notifier: notifier,
		now:      time.Now,
	}
}

// BackupNow captures the current inventory into a new immutable snapshot.
func (s *BackupService) BackupNow(ctx context.Context, sess model.Session) (model.BackupSnapshot, error) {
	items, err := s.store.ListItems(ctx, sess.UID)
	if err != nil {
		return model.BackupSnapshot{}, storeErr("list items", err)
	}

	snap := model.BackupSnapshot{
		Timestamp: s.now().UTC(),
		ItemCount: len(items),
		Items:     make([]model.BackupItem, 0, len(items)),
	}
	for _, item := range items {
		snap.Items = append(snap.Items, model.BackupItem{ID: item.ID, Item: item.Clone()})
	}

	id, err := s.store.SaveBackup(ctx, sess.UID, snap)
	if err != nil {
		return model.BackupSnapshot{}, storeErr("save backup", err)
	}
	snap.ID = id
	return snap, nil
}

// Restore replaces the live inventory with the snapshot's contents:
// snapshot members are upserted under their original ids (sanitized on
// the way in), and live records absent from the snapshot are deleted.
// Per-record failures are logged and skipped; the rest of the restore
// proceeds.
func (s *BackupService) Restore(ctx context.Context, sess model.Session, backupID string) (model.BackupSnapshot, error) {
	snap, err := s.store.GetBackup(ctx, sess.UID, backupID)
	if err != nil {
		return model.BackupSnapshot{}, storeErr("get backup", err)
	}
	if snap == nil {
		return model.BackupSnapshot{}, ErrNotFound
	}

	restored, removed := s.applySnapshot(ctx, sess, *snap, true)

	note := fmt.Sprintf("restored backup %s: %d items written, %d removed", snap.ID, restored, removed)
	s.history.RecordSummary(ctx, sess, model.ActionRestoreFull, note)
	s.notifier.Publish(sess.UID)
	return *snap, nil
}

// RestoreLatest restores the newest snapshot, a convenience for the
// common "put everything back" case.
func (s *BackupService) RestoreLatest(ctx context.Context, sess model.Session) (model.BackupSnapshot, error) {
	snap, err := s.store.LatestBackup(ctx, sess.UID)
	if err != nil {
		return model.BackupSnapshot{}, storeErr("latest backup", err)
	}
	if snap == nil {
		return model.BackupSnapshot{}, ErrNotFound
	}

	restored, removed := s.applySnapshot(ctx, sess, *snap, true)

	note := fmt.Sprintf("restored latest backup %s: %d items written, %d removed", snap.ID, restored, removed)
	s.history.RecordSummary(ctx, sess, model.ActionRestoreLatest, note)
	s.notifier.Publish(sess.UID)
	return *snap, nil
}

// RescueMerge upserts the snapshot's members without deleting anything:
// records added since the snapshot survive. Used to recover from partial
// data loss without losing newer items.
func (s *BackupService) RescueMerge(ctx context.Context, sess model.Session, backupID string) (model.BackupSnapshot, error) {
	snap, err := s.store.GetBackup(ctx, sess.UID, backupID)
	if err != nil {
		return model.BackupSnapshot{}, storeErr("get backup", err)
	}
	if snap == nil {
		return model.BackupSnapshot{}, ErrNotFound
	}

	restored, _ := s.applySnapshot(ctx, sess, *snap, false)

	note := fmt.Sprintf("rescue-merged backup %s: %d items written", snap.ID, restored)
	s.history.RecordSummary(ctx, sess, model.ActionRescueMerge, note)
	s.notifier.Publish(sess.UID)
	return *snap, nil
}

// applySnapshot writes the snapshot's members back into the live set.
// When prune is true, live records not present in the snapshot are
// deleted. Returns the counts of written and removed records.
func (s *BackupService) applySnapshot(ctx context.Context, sess model.Session, snap model.BackupSnapshot, prune bool) (written, removed int) {
	now := s.now()
	inSnapshot := make(map[string]bool, len(snap.Items))

	for _, member := range snap.Items {
		if member.ID == "" {
			log.Printf("[BackupService] skipped snapshot member with empty id in %s", snap.ID)
			continue
		}
		inSnapshot[member.ID] = true

		item := sanitize.Record(sanitize.RawFromItem(member.Item), now)
		item.ID = member.ID
		if err := s.store.PutItem(ctx, sess.UID, member.ID, item); err != nil {
			log.Printf("[BackupService] restore of %s failed: %v", member.ID, err)
			continue
		}
		written++
	}

	if !prune {
		return written, 0
	}

	live, err := s.store.ListItems(ctx, sess.UID)
	if err != nil {
		log.Printf("[BackupService] could not list live items for prune: %v", err)
		return written, 0
	}
	for _, item := range live {
		if inSnapshot[item.ID] {
			continue
		}
		if err := s.store.DeleteItem(ctx, sess.UID, item.ID); err != nil {
			log.Printf("[BackupService] prune of %s failed: %v", item.ID, err)
			continue
		}
		removed++
	}
	return written, removed
}

// List returns the user's snapshots newest-first.
func (s *BackupService) List(ctx context.Context, sess model.Session) ([]model.BackupSnapshot, error) {
	snaps, err := s.store.ListBackups(ctx, sess.UID)
	if err != nil {
		return nil, storeErr("list backups", err)
	}
	return snaps, nil
}

// Delete removes one snapshot. Live inventory and history are untouched,
// and no history entry is written.
func (s *BackupService) Delete(ctx context.Context, sess model.Session, backupID string) error {
	snap, err := s.store.GetBackup(ctx, sess.UID, backupID)
	if err != nil {
		return storeErr("get backup", err)
	}
	if snap == nil {
		return ErrNotFound
	}
	if err := s.store.DeleteBackup(ctx, sess.UID, backupID); err != nil {
		return storeErr("delete backup", err)
	}
	return nil
}
