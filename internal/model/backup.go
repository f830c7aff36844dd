package model

import "time"

// BackupItem is one (id, record) pair captured in a snapshot.
type BackupItem struct {
	ID   string `json:"id"`
	Item Item   `json:"item"`
}

// BackupSnapshot is a full point-in-time capture of a user's inventory set.
// Immutable once created; deleted only explicitly by the user.
type BackupSnapshot struct {
	ID        string       `json:"id"`
	Timestamp time.Time    `json:"ts"`
	ItemCount int          `json:"item_count"`
	Items     []BackupItem `json:"items"`
}
