package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	identity  Identity
	expiresAt time.Time
}

// CachingVerifier remembers successful verifications so repeated requests with
// the same token skip the provider round trip. Failures are never cached.
type CachingVerifier struct {
	next  Verifier
	ttl   time.Duration
	cache *lru.Cache[string, *cacheEntry]
	now   func() time.Time
}

func NewCachingVerifier(next Verifier, size int, ttl time.Duration) (*CachingVerifier, error) {
	cache, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("token cache: %w", err)
	}
	return &CachingVerifier{next: next, ttl: ttl, cache: cache, now: time.Now}, nil
}

func (v *CachingVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	key := tokenKey(token)
	now := v.now()
	if e, ok := v.cache.Get(key); ok {
		if now.Before(e.expiresAt) {
			return e.identity, nil
		}
		v.cache.Remove(key)
	}

	id, err := v.next.Verify(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	expiresAt := now.Add(v.ttl)
	if !id.ExpiresAt.IsZero() && id.ExpiresAt.Before(expiresAt) {
		expiresAt = id.ExpiresAt
	}
	v.cache.Add(key, &cacheEntry{identity: id, expiresAt: expiresAt})
	return id, nil
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
