package service

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"

	"freshkeep-api/internal/model"
	"freshkeep-api/internal/repository"
	"freshkeep-api/internal/sanitize"
)

// purchaseLine matches one line of pasted purchase text, e.g.
// "[FreshFarm] Whole Milk 2". Group 1 is the brand, group 2 the product
// name up to the first trailing digit.
var purchaseLine = regexp.MustCompile(`^\[(.*?)\]\s*(.+?)(\s+\d|$)`)

// InventoryService implements the item mutation paths: add, edit,
// quantity-aware delete, bulk import and bulk delete. Every successful
// mutation appends a history entry (best-effort) and notifies change
// subscribers before returning.
type InventoryService struct {
	store    repository.Store
	history  *HistoryRecorder
	undo     *UndoService
	notifier *ChangeNotifier
	now      func() time.Time
}

// NewInventoryService creates the mutation service. undo may be nil, in
// which case mutations do not offer immediate-undo tokens.
func NewInventoryService(store repository.Store, history *HistoryRecorder, undo *UndoService, notifier *ChangeNotifier) *InventoryService {
	return &InventoryService{
		store:    store,
		history:  history,
		undo:     undo,
		notifier: notifier,
		now:      time.Now,
	}
}

// Add sanitizes raw input and inserts it as a new item. The name must be
// a non-empty string; every other field is defaulted by the sanitizer.
// Returns the stored item and, when an undo engine is wired, a
// short-lived undo offer.
func (s *InventoryService) Add(ctx context.Context, sess model.Session, raw sanitize.RawRecord) (model.Item, *PendingUndo, error) {
	name, ok := raw.Name.(string)
	if !ok || strings.TrimSpace(name) == "" {
		return model.Item{}, nil, Invalidf("item name is required")
	}

	item := sanitize.Record(raw, s.now())

	id, err := s.store.CreateItem(ctx, sess.UID, item)
	if err != nil {
		return model.Item{}, nil, storeErr("create item", err)
	}
	item.ID = id

	s.history.Record(ctx, sess, model.ActionAdd, id, nil, &item)
	s.notifier.Publish(sess.UID)

	pending := s.offerUndo(sess, model.ActionAdd, Operation{DeleteTarget: true, TargetID: id})
	return item, pending, nil
}

// Get retrieves one item.
func (s *InventoryService) Get(ctx context.Context, sess model.Session, id string) (model.Item, error) {
	item, err := s.store.GetItem(ctx, sess.UID, id)
	if err != nil {
		return model.Item{}, storeErr("get item", err)
	}
	if item == nil {
		return model.Item{}, ErrNotFound
	}
	return *item, nil
}

// Update merges the provided fields over the stored record, sanitizes the
// result and overwrites the item. Absent fields keep their stored values.
func (s *InventoryService) Update(ctx context.Context, sess model.Session, id string, raw sanitize.RawRecord) (model.Item, *PendingUndo, error) {
	stored, err := s.store.GetItem(ctx, sess.UID, id)
	if err != nil {
		return model.Item{}, nil, storeErr("get item", err)
	}
	if stored == nil {
		return model.Item{}, nil, ErrNotFound
	}

	merged := sanitize.RawFromItem(*stored)
	if raw.Name != nil {
		merged.Name = raw.Name
	}
	if raw.Qty != nil {
		merged.Qty = raw.Qty
	}
	if raw.Storage != nil {
		merged.Storage = raw.Storage
	}
	if raw.Expiry != nil {
		merged.Expiry = raw.Expiry
	}

	after := sanitize.Record(merged, s.now())
	after.ID = id

	if err := s.store.PutItem(ctx, sess.UID, id, after); err != nil {
		return model.Item{}, nil, storeErr("put item", err)
	}

	before := stored.Clone()
	s.history.Record(ctx, sess, model.ActionEdit, id, &before, &after)
	s.notifier.Publish(sess.UID)

	pending := s.offerUndo(sess, model.ActionEdit, Operation{TargetID: id, Restore: &before})
	return after, pending, nil
}

// Delete removes units of an item. units <= 0 means the whole record.
// Removing fewer units than stored reduces the quantity in place; removing
// exactly the stored quantity deletes the record. Asking for more units
// than exist is rejected without touching the record.
func (s *InventoryService) Delete(ctx context.Context, sess model.Session, id string, units int) (*PendingUndo, error) {
	stored, err := s.store.GetItem(ctx, sess.UID, id)
	if err != nil {
		return nil, storeErr("get item", err)
	}
	if stored == nil {
		return nil, ErrNotFound
	}

	if units <= 0 {
		units = stored.Qty
	}
	if units > stored.Qty {
		return nil, Invalidf("cannot delete %d units of %q: only %d in stock", units, stored.Name, stored.Qty)
	}

	before := stored.Clone()

	if units < stored.Qty {
		after := stored.Clone()
		after.Qty -= units
		if err := s.store.PutItem(ctx, sess.UID, id, after); err != nil {
			return nil, storeErr("put item", err)
		}
		s.history.Record(ctx, sess, model.ActionDelete, id, &before, &after)
	} else {
		if err := s.store.DeleteItem(ctx, sess.UID, id); err != nil {
			return nil, storeErr("delete item", err)
		}
		s.history.Record(ctx, sess, model.ActionDelete, id, &before, nil)
	}

	s.notifier.Publish(sess.UID)

	pending := s.offerUndo(sess, model.ActionDelete, Operation{TargetID: id, Restore: &before})
	return pending, nil
}

// List returns the user's items, narrowed to the session's storage filter
// when one is set.
func (s *InventoryService) List(ctx context.Context, sess model.Session) ([]model.Item, error) {
	items, err := s.store.ListItems(ctx, sess.UID)
	if err != nil {
		return nil, storeErr("list items", err)
	}
	if sess.StorageFilter == "" {
		return items, nil
	}

	filtered := items[:0]
	for _, item := range items {
		if item.Storage == sess.StorageFilter {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// BulkAdd parses pasted purchase text and inserts one item per recognized
// line, named "Brand Product" with quantity 1 and default storage. Lines
// that do not match the purchase format are skipped. Each insert is
// independent: one failed write does not stop the rest.
func (s *InventoryService) BulkAdd(ctx context.Context, sess model.Session, text string) ([]model.Item, error) {
	var added []model.Item
	matched := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := purchaseLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		matched = true

		name := strings.TrimSpace(m[1] + " " + strings.TrimSpace(m[2]))
		item := sanitize.Record(sanitize.RawRecord{Name: name}, s.now())

		id, err := s.store.CreateItem(ctx, sess.UID, item)
		if err != nil {
			log.Printf("[InventoryService] bulk add skipped %q: %v", name, err)
			continue
		}
		item.ID = id

		s.history.Record(ctx, sess, model.ActionAdd, id, nil, &item)
		s.notifier.Publish(sess.UID)
		added = append(added, item)
	}

	if !matched {
		return nil, Invalidf("no purchase lines recognized")
	}
	return added, nil
}

// DeleteSelected removes the given records entirely, one by one. Each
// delete is independent; ids that fail (absent or store error) are
// returned so the caller can report them.
func (s *InventoryService) DeleteSelected(ctx context.Context, sess model.Session, ids []string) (int, []string, error) {
	if len(ids) == 0 {
		return 0, nil, Invalidf("no item ids given")
	}

	deleted := 0
	var failed []string
	for _, id := range ids {
		if err := s.deleteWhole(ctx, sess, id); err != nil {
			log.Printf("[InventoryService] bulk delete skipped %s: %v", id, err)
			failed = append(failed, id)
			continue
		}
		deleted++
	}
	return deleted, failed, nil
}

// DeleteAll removes every record in the user's inventory. Per-record
// failures are logged and skipped.
func (s *InventoryService) DeleteAll(ctx context.Context, sess model.Session) (int, error) {
	items, err := s.store.ListItems(ctx, sess.UID)
	if err != nil {
		return 0, storeErr("list items", err)
	}

	deleted := 0
	for _, item := range items {
		if err := s.deleteWhole(ctx, sess, item.ID); err != nil {
			log.Printf("[InventoryService] delete all skipped %s: %v", item.ID, err)
			continue
		}
		deleted++
	}
	return deleted, nil
}

// deleteWhole removes one record entirely, recording history and
// notifying. Used by the bulk delete paths, which do not offer undo
// tokens.
func (s *InventoryService) deleteWhole(ctx context.Context, sess model.Session, id string) error {
	stored, err := s.store.GetItem(ctx, sess.UID, id)
	if err != nil {
		return storeErr("get item", err)
	}
	if stored == nil {
		return ErrNotFound
	}

	before := stored.Clone()
	if err := s.store.DeleteItem(ctx, sess.UID, id); err != nil {
		return storeErr("delete item", err)
	}

	s.history.Record(ctx, sess, model.ActionDelete, id, &before, nil)
	s.notifier.Publish(sess.UID)
	return nil
}

func (s *InventoryService) offerUndo(sess model.Session, action model.Action, op Operation) *PendingUndo {
	if s.undo == nil {
		return nil
	}
	return s.undo.Offer(sess, action, op)
}
