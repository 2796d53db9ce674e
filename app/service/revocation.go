package service

import (
	"context"
	"strconv"
	"sync"
	"time"
)

const (
	revokedTokenKeyPrefix = "blacklisted_token:"
	userLogoutKeyPrefix   = "user_logout:"
)

// RevocationStore is the backing key/value store for revocation entries.
// The production implementation lives in repository.RedisRevocationStore;
// MemoryRevocationStore is the degraded single-instance fallback.
type RevocationStore interface {
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
}

// RevocationRegistry makes logout effective against otherwise-valid tokens.
// Entries carry the token's remaining lifetime, so they expire together with
// the token they shadow and need no cleanup pass.
type RevocationRegistry struct {
	store RevocationStore
}

func NewRevocationRegistry(store RevocationStore) *RevocationRegistry {
	return &RevocationRegistry{store: store}
}

func (r *RevocationRegistry) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	return r.store.SetWithTTL(ctx, revokedTokenKeyPrefix+token, "true", ttl)
}

func (r *RevocationRegistry) IsRevoked(ctx context.Context, token string) (bool, error) {
	_, found, err := r.store.Get(ctx, revokedTokenKeyPrefix+token)
	return found, err
}

// RevokeAllForUser is the "log out everywhere" switch. The entry records the
// cutoff instant: tokens issued at or before it are dead, tokens issued after
// it (a fresh login) are untouched.
func (r *RevocationRegistry) RevokeAllForUser(ctx context.Context, userID uint64, ttl time.Duration) error {
	cutoff := strconv.FormatInt(time.Now().Unix(), 10)
	return r.store.SetWithTTL(ctx, userLogoutKeyPrefix+strconv.FormatUint(userID, 10), cutoff, ttl)
}

// IsUserLoggedOut reports whether a token issued at issuedAt falls under a
// user-wide revocation. The cutoff second itself counts as revoked: iat has
// one-second resolution, so a token minted in the same second as the logout
// cannot be ordered against it and is rejected. An unparseable cutoff fails
// closed.
func (r *RevocationRegistry) IsUserLoggedOut(ctx context.Context, userID uint64, issuedAt time.Time) (bool, error) {
	value, found, err := r.store.Get(ctx, userLogoutKeyPrefix+strconv.FormatUint(userID, 10))
	if err != nil || !found {
		return false, err
	}
	cutoff, parseErr := strconv.ParseInt(value, 10, 64)
	if parseErr != nil {
		return true, nil
	}
	return issuedAt.Unix() <= cutoff, nil
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryRevocationStore keeps revocation entries in process memory. It has no
// cross-instance visibility: a token revoked here stays valid on every other
// instance. Acceptable only for single-instance deployments.
type MemoryRevocationStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryRevocationStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryRevocationStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}
