package model

import "time"

// Action identifies the kind of mutation a history entry records.
type Action string

// History actions.
const (
	ActionAdd           Action = "ADD"
	ActionEdit          Action = "EDIT"
	ActionDelete        Action = "DELETE"
	ActionUndo          Action = "UNDO"
	ActionRestoreLatest Action = "RESTORE_LATEST"
	ActionRestoreFull   Action = "RESTORE_FULL"
	ActionRescueMerge   Action = "RESCUE_MERGE"
)

// BulkTarget is the sentinel target id used by entries that summarize a
// bulk operation (restore, rescue-merge) instead of touching one record.
const BulkTarget = "*"

// HistoryEntry is one immutable audit log row. Entries are append-only:
// undo never edits the log, it adds a new UNDO entry.
type HistoryEntry struct {
	ID       string `json:"id"`
	Action   Action `json:"action"`
	TargetID string `json:"target_id"`
	// Before is the record state prior to the action, nil when the action
	// created the record. After is the state afterwards, nil when the
	// action deleted it. Both are deep copies, never live references.
	Before *Item `json:"before,omitempty"`
	After  *Item `json:"after,omitempty"`
	// QtyChange is a human-readable annotation like "(QTY: 3 -> 1)",
	// set only when both sides carry a differing quantity.
	QtyChange string `json:"qty_change,omitempty"`
	// Note carries a summary for bulk entries (which backup, item count).
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"ts"`
	Actor     string    `json:"actor"`
}

// Invertible reports whether the entry can be reversed through historical
// undo. Undo and restore entries are deliberately not invertible.
func (e HistoryEntry) Invertible() bool {
	switch e.Action {
	case ActionAdd, ActionEdit, ActionDelete:
		return true
	}
	return false
}
