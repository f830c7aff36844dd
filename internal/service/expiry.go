package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"freshkeep-api/internal/cache"
	"freshkeep-api/internal/model"
	"freshkeep-api/internal/repository"
	"freshkeep-api/internal/sanitize"
)

// ProjectExpiring computes the soon-expiring view of an inventory: every
// item whose expiry falls within windowDays of now, including items that
// already expired. Items with unknown expiry are excluded. Pure function;
// rounding is ceil, so any partial day counts as a full day left.
func ProjectExpiring(items []model.Item, now time.Time, windowDays int) []model.ExpiringItem {
	out := make([]model.ExpiringItem, 0)
	for _, item := range items {
		if item.Expiry.IsZero() {
			continue
		}
		days := sanitize.DaysLeft(item.Expiry, now)
		if days <= windowDays {
			out = append(out, model.ExpiringItem{Item: item.Clone(), DaysLeft: days})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysLeft < out[j].DaysLeft })
	return out
}

// ExpiryService serves the soon-expiring projection, caching the computed
// view per user and refreshing it eagerly whenever that user's inventory
// changes.
type ExpiryService struct {
	store       repository.Store
	cache       cache.Cache
	windowDays  int
	ttl         time.Duration
	now         func() time.Time
	unsubscribe func()
}

// NewExpiryService creates the projection service and subscribes it to
// inventory change notifications. notifier may be nil for tests that
// drive refreshes by hand.
func NewExpiryService(store repository.Store, c cache.Cache, notifier *ChangeNotifier, windowDays int, ttl time.Duration) *ExpiryService {
	s := &ExpiryService{
		store:      store,
		cache:      c,
		windowDays: windowDays,
		ttl:        ttl,
		now:        time.Now,
	}
	if notifier != nil {
		s.unsubscribe = notifier.Subscribe(s.onChange)
	}
	return s
}

// Close detaches the service from change notifications.
func (s *ExpiryService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// SoonExpiring returns the cached projection for the session's user,
// computing it on a miss.
func (s *ExpiryService) SoonExpiring(ctx context.Context, sess model.Session) ([]model.ExpiringItem, error) {
	data, err := s.cache.GetOrSet(ctx, s.cacheKey(sess.UID), s.ttl, func() ([]byte, error) {
		view, err := s.compute(ctx, sess.UID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(view)
	})
	if err != nil {
		return nil, err
	}

	var view []model.ExpiringItem
	if err := json.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("decode cached projection: %w", err)
	}
	return view, nil
}

func (s *ExpiryService) compute(ctx context.Context, uid string) ([]model.ExpiringItem, error) {
	items, err := s.store.ListItems(ctx, uid)
	if err != nil {
		return nil, storeErr("list items", err)
	}
	return ProjectExpiring(items, s.now(), s.windowDays), nil
}

// onChange recomputes the user's projection after a mutation. On failure
// the stale cache entry is dropped so the next read recomputes.
func (s *ExpiryService) onChange(uid string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	view, err := s.compute(ctx, uid)
	if err != nil {
		log.Printf("[ExpiryService] refresh for %s failed: %v", uid, err)
		if err := s.cache.Delete(ctx, s.cacheKey(uid)); err != nil {
			log.Printf("[ExpiryService] cache invalidation for %s failed: %v", uid, err)
		}
		return
	}

	data, err := json.Marshal(view)
	if err != nil {
		log.Printf("[ExpiryService] encode projection for %s failed: %v", uid, err)
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(uid), data, s.ttl); err != nil {
		log.Printf("[ExpiryService] cache update for %s failed: %v", uid, err)
	}
}

func (s *ExpiryService) cacheKey(uid string) string {
	return "expiry:" + uid
}
