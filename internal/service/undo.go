package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"freshkeep-api/internal/model"
	"freshkeep-api/internal/repository"
	"freshkeep-api/internal/sanitize"
	"freshkeep-api/pkg/uid"
)

// Operation is the inverse of a mutation expressed as data: either delete
// the target record, or merge-restore a captured state onto it. Keeping
// inverses as plain data (instead of captured closures) lets them be
// recomputed from any history entry, long after the mutation happened.
type Operation struct {
	TargetID     string
	DeleteTarget bool
	// Restore is the state to merge back when DeleteTarget is false.
	Restore *model.Item
}

// ComputeInverse derives the undo operation for a history entry.
// ADD inverts to a delete; EDIT and DELETE invert to restoring the
// captured before-state. UNDO and the restore/rescue summaries are not
// invertible.
func ComputeInverse(entry model.HistoryEntry) (Operation, error) {
	if !entry.Invertible() {
		return Operation{}, ErrNotUndoable
	}

	switch entry.Action {
	case model.ActionAdd:
		return Operation{TargetID: entry.TargetID, DeleteTarget: true}, nil
	case model.ActionEdit, model.ActionDelete:
		if entry.Before == nil {
			return Operation{}, ErrNotUndoable
		}
		restored := entry.Before.Clone()
		return Operation{TargetID: entry.TargetID, Restore: &restored}, nil
	}
	return Operation{}, ErrNotUndoable
}

// PendingUndo is the short-lived offer returned alongside a mutation.
type PendingUndo struct {
	Token     string       `json:"token"`
	Action    model.Action `json:"action"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type pendingOffer struct {
	sess      model.Session
	op        Operation
	expiresAt time.Time
	used      bool
}

// UndoService runs both undo paths. Immediate undo holds single-use
// tokens in memory for a short window; invoking one applies the inverse
// exactly once, and expired or reused tokens are silent no-ops.
// Historical undo recomputes the inverse from a stored history entry and
// applies it as a fresh UNDO mutation, appending to the log rather than
// editing it.
type UndoService struct {
	store    repository.Store
	history  *HistoryRecorder
	notifier *ChangeNotifier
	window   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingOffer

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewUndoService creates the undo engine and starts the background reaper
// that drops expired offers. window is how long an immediate-undo token
// stays valid.
func NewUndoService(store repository.Store, history *HistoryRecorder, notifier *ChangeNotifier, window time.Duration) *UndoService {
	s := &UndoService{
		store:    store,
		history:  history,
		notifier: notifier,
		window:   window,
		now:      time.Now,
		pending:  make(map[string]*pendingOffer),
		stopCh:   make(chan struct{}),
	}
	go s.reap()
	return s
}

// Stop halts the background reaper.
func (s *UndoService) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Offer registers the inverse of a just-applied mutation and returns a
// token valid for the configured window.
func (s *UndoService) Offer(sess model.Session, action model.Action, op Operation) *PendingUndo {
	token := uid.New()
	expires := s.now().Add(s.window)

	s.mu.Lock()
	s.pending[token] = &pendingOffer{
		sess:      sess,
		op:        op,
		expiresAt: expires,
	}
	s.mu.Unlock()

	return &PendingUndo{Token: token, Action: action, ExpiresAt: expires}
}

// Invoke applies the pending operation behind token. Returns true when
// the undo was applied. An unknown, expired or already-used token returns
// false with no error and no side effects; the token is consumed before
// the operation runs, so concurrent invocations apply it at most once.
func (s *UndoService) Invoke(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	offer, ok := s.pending[token]
	if !ok || offer.used || s.now().After(offer.expiresAt) {
		s.mu.Unlock()
		return false, nil
	}
	offer.used = true
	delete(s.pending, token)
	s.mu.Unlock()

	before, after, err := s.apply(ctx, offer.sess, offer.op)
	if err != nil {
		return false, err
	}

	s.history.Record(ctx, offer.sess, model.ActionUndo, offer.op.TargetID, before, after)
	s.notifier.Publish(offer.sess.UID)
	return true, nil
}

// UndoEntry reverses one stored history entry. The inverse is derived
// from the entry's captured state and applied as a new mutation with its
// own UNDO log entry. Non-invertible entries leave both the inventory and
// the log untouched.
func (s *UndoService) UndoEntry(ctx context.Context, sess model.Session, entryID string) (*model.HistoryEntry, error) {
	entry, err := s.store.GetHistoryEntry(ctx, sess.UID, entryID)
	if err != nil {
		return nil, storeErr("get history entry", err)
	}
	if entry == nil {
		return nil, ErrNotFound
	}

	op, err := ComputeInverse(*entry)
	if err != nil {
		return nil, err
	}

	before, after, err := s.apply(ctx, sess, op)
	if err != nil {
		return nil, err
	}

	undoEntry := s.history.Record(ctx, sess, model.ActionUndo, op.TargetID, before, after)
	if undoEntry == nil {
		undoEntry = &model.HistoryEntry{
			Action:   model.ActionUndo,
			TargetID: op.TargetID,
			Note:     fmt.Sprintf("reverted %s %s", entry.Action, entry.ID),
		}
	} else if undoEntry.Note == "" {
		undoEntry.Note = fmt.Sprintf("reverted %s %s", entry.Action, entry.ID)
	}
	s.notifier.Publish(sess.UID)
	return undoEntry, nil
}

// apply executes one inverse operation against the store and returns the
// observed before/after states for the resulting log entry.
func (s *UndoService) apply(ctx context.Context, sess model.Session, op Operation) (*model.Item, *model.Item, error) {
	current, err := s.store.GetItem(ctx, sess.UID, op.TargetID)
	if err != nil {
		return nil, nil, storeErr("get item", err)
	}

	if op.DeleteTarget {
		if err := s.store.DeleteItem(ctx, sess.UID, op.TargetID); err != nil {
			return nil, nil, storeErr("delete item", err)
		}
		return current, nil, nil
	}

	if op.Restore == nil {
		return nil, nil, ErrNotUndoable
	}

	restored := s.mergeRestore(current, *op.Restore)
	restored.ID = op.TargetID
	if err := s.store.PutItem(ctx, sess.UID, op.TargetID, restored); err != nil {
		return nil, nil, storeErr("put item", err)
	}
	return current, &restored, nil
}

// mergeRestore overlays a captured state onto the current record, then
// sanitizes the result. Restoring over a live record must not wipe fields
// the captured state never carried, so only populated fields overwrite.
func (s *UndoService) mergeRestore(current *model.Item, captured model.Item) model.Item {
	raw := sanitize.RawRecord{}
	if current != nil {
		raw = sanitize.RawFromItem(*current)
	}

	if captured.Name != "" {
		raw.Name = captured.Name
	}
	if captured.Qty != 0 {
		raw.Qty = captured.Qty
	}
	if captured.Storage != "" {
		raw.Storage = string(captured.Storage)
	}
	if !captured.Expiry.IsZero() {
		raw.Expiry = captured.Expiry
	}

	return sanitize.Record(raw, s.now())
}

// reap periodically drops expired and consumed offers.
func (s *UndoService) reap() {
	interval := s.window
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.dropExpired()
		case <-s.stopCh:
			return
		}
	}
}

func (s *UndoService) dropExpired() {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for token, offer := range s.pending {
		if offer.used || now.After(offer.expiresAt) {
			delete(s.pending, token)
			removed++
		}
	}
	remaining := len(s.pending)
	s.mu.Unlock()

	if removed > 0 {
		log.Printf("[UndoService] reaped %d expired offers, %d pending", removed, remaining)
	}
}
