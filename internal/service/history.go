package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"freshkeep-api/internal/model"
	"freshkeep-api/internal/repository"
)

// HistoryRecorder appends one immutable log entry per mutation. Appends
// are fire-and-forget relative to the triggering mutation: a failed
// append is logged and swallowed, never rolled into the mutation's
// result. History is best-effort observability, not a transactional
// ledger.
type HistoryRecorder struct {
	store repository.Store
	now   func() time.Time
}

// NewHistoryRecorder creates a recorder over the given store.
func NewHistoryRecorder(store repository.Store) *HistoryRecorder {
	return &HistoryRecorder{store: store, now: time.Now}
}

// Record appends an entry capturing one mutation's before/after state.
// Both sides are deep-copied so later edits to the live record cannot
// leak into the log. Returns the entry as persisted, or nil when the
// append failed.
func (r *HistoryRecorder) Record(ctx context.Context, sess model.Session, action model.Action, targetID string, before, after *model.Item) *model.HistoryEntry {
	entry := model.HistoryEntry{
		Action:    action,
		TargetID:  targetID,
		Before:    cloneItemPtr(before),
		After:     cloneItemPtr(after),
		Timestamp: r.now().UTC(),
		Actor:     sess.Actor(),
	}

	if before != nil && after != nil && before.Qty != after.Qty {
		entry.QtyChange = fmt.Sprintf("(QTY: %d -> %d)", before.Qty, after.Qty)
	}

	id, err := r.store.AppendHistory(ctx, sess.UID, entry)
	if err != nil {
		log.Printf("[HistoryRecorder] append failed for %s/%s: %v", action, targetID, err)
		return nil
	}
	entry.ID = id
	return &entry
}

// RecordSummary appends a single entry summarizing a bulk operation
// (restore, rescue-merge) instead of one entry per touched record.
func (r *HistoryRecorder) RecordSummary(ctx context.Context, sess model.Session, action model.Action, note string) *model.HistoryEntry {
	entry := model.HistoryEntry{
		Action:    action,
		TargetID:  model.BulkTarget,
		Note:      note,
		Timestamp: r.now().UTC(),
		Actor:     sess.Actor(),
	}

	id, err := r.store.AppendHistory(ctx, sess.UID, entry)
	if err != nil {
		log.Printf("[HistoryRecorder] summary append failed for %s: %v", action, err)
		return nil
	}
	entry.ID = id
	return &entry
}

// List returns log entries newest-first with the total count.
func (r *HistoryRecorder) List(ctx context.Context, sess model.Session, limit, offset int) ([]model.HistoryEntry, int64, error) {
	entries, total, err := r.store.ListHistory(ctx, sess.UID, limit, offset)
	if err != nil {
		return nil, 0, storeErr("list history", err)
	}
	return entries, total, nil
}

func cloneItemPtr(item *model.Item) *model.Item {
	if item == nil {
		return nil
	}
	copied := item.Clone()
	return &copied
}
