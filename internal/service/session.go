package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"freshkeep-api/internal/cache"
	"freshkeep-api/internal/model"
	"freshkeep-api/pkg/uid"
)

// tokenPrefix marks issued session tokens so malformed tokens can be
// rejected before any cache lookup.
const tokenPrefix = "fk_"

const sessionKeyPrefix = "session:"

// SessionService issues and validates opaque session tokens. Token state
// lives in the cache layer, so a Redis-backed cache shares sessions
// across instances while the in-memory cache keeps them per-process.
type SessionService struct {
	cache cache.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionService creates the session service.
func NewSessionService(c cache.Cache, ttl time.Duration) *SessionService {
	return &SessionService{cache: c, ttl: ttl, now: time.Now}
}

// Create issues a new token bound to the given session identity.
func (s *SessionService) Create(ctx context.Context, sess model.Session) (string, model.SessionToken, error) {
	if strings.TrimSpace(sess.UID) == "" {
		return "", model.SessionToken{}, Invalidf("uid is required")
	}

	now := s.now().UTC()
	stored := model.SessionToken{
		Session:   sess,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return "", model.SessionToken{}, fmt.Errorf("encode session: %w", err)
	}

	token := tokenPrefix + uid.New()
	if err := s.cache.Set(ctx, sessionKeyPrefix+token, data, s.ttl); err != nil {
		return "", model.SessionToken{}, fmt.Errorf("store session: %w", err)
	}
	return token, stored, nil
}

// Validate resolves a token to its session. Unknown and expired tokens
// return ErrNotFound.
func (s *SessionService) Validate(ctx context.Context, token string) (*model.Session, error) {
	if !strings.HasPrefix(token, tokenPrefix) {
		return nil, ErrNotFound
	}

	data, err := s.cache.Get(ctx, sessionKeyPrefix+token)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var stored model.SessionToken
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.now().After(stored.ExpiresAt) {
		return nil, ErrNotFound
	}

	sess := stored.Session
	return &sess, nil
}

// Revoke invalidates a token immediately. Revoking an unknown token is
// not an error.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+token)
}

// Refresh replaces a valid token with a new one on a fresh TTL. The old
// token is revoked.
func (s *SessionService) Refresh(ctx context.Context, token string) (string, model.SessionToken, error) {
	sess, err := s.Validate(ctx, token)
	if err != nil {
		return "", model.SessionToken{}, err
	}

	newToken, stored, err := s.Create(ctx, *sess)
	if err != nil {
		return "", model.SessionToken{}, err
	}

	if err := s.Revoke(ctx, token); err != nil {
		return "", model.SessionToken{}, fmt.Errorf("revoke old session: %w", err)
	}
	return newToken, stored, nil
}
