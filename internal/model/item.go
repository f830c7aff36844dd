package model

import "time"

// StorageLocation is the storage tag of an inventory item.
type StorageLocation string

// Known storage tags.
const (
	StorageRefrigerated StorageLocation = "RF" // refrigerated
	StorageFrozen       StorageLocation = "FR" // frozen
	StorageCoolPantry   StorageLocation = "CC" // cool / pantry
)

// DefaultStorage is applied when an item arrives without a recognized tag.
const DefaultStorage = StorageRefrigerated

// KnownStorage reports whether s is one of the known storage tags.
func KnownStorage(s StorageLocation) bool {
	switch s {
	case StorageRefrigerated, StorageFrozen, StorageCoolPantry:
		return true
	}
	return false
}

// Item represents one perishable inventory record owned by a user.
// A stored item always has Qty >= 1: quantity-partial deletes reduce Qty,
// deleting the last unit removes the record entirely.
type Item struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Qty     int             `json:"qty"`
	Storage StorageLocation `json:"storage"`
	// Expiry is a canonical UTC instant. The zero value means "unknown":
	// such items are excluded from time-based comparisons, never treated
	// as expiring today.
	Expiry time.Time `json:"expiry"`
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	return i
}

// ExpiringItem is one row of the soon-expiring projection.
type ExpiringItem struct {
	Item     Item `json:"item"`
	DaysLeft int  `json:"days_left"`
}
