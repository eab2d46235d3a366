package oidc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

const (
	// DefaultJWKSTTL is how long a fetched key set is trusted before refetching
	DefaultJWKSTTL = time.Hour
	// minRefreshInterval stops tokens with unknown key IDs from hammering the issuer
	minRefreshInterval = time.Minute
)

type keySet struct {
	keys      jwk.Set
	fetchedAt time.Time
}

// JWKSManager fetches and caches key sets per JWKS URL
type JWKSManager struct {
	mu     sync.Mutex
	sets   map[string]keySet
	ttl    time.Duration
	client *http.Client
	now    func() time.Time
}

// NewJWKSManager creates a new JWKS manager. A non-positive ttl uses DefaultJWKSTTL.
func NewJWKSManager(ttl time.Duration) *JWKSManager {
	if ttl <= 0 {
		ttl = DefaultJWKSTTL
	}
	return &JWKSManager{
		sets:   make(map[string]keySet),
		ttl:    ttl,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// GetJWKS returns the cached key set for jwksURL, fetching it when missing or stale
func (m *JWKSManager) GetJWKS(ctx context.Context, jwksURL string) (jwk.Set, error) {
	m.mu.Lock()
	cached, ok := m.sets[jwksURL]
	m.mu.Unlock()
	if ok && m.now().Sub(cached.fetchedAt) < m.ttl {
		return cached.keys, nil
	}
	return m.fetch(ctx, jwksURL)
}

// Refresh refetches the key set after the issuer rotates keys. Calls within
// minRefreshInterval of the last fetch return the cached set.
func (m *JWKSManager) Refresh(ctx context.Context, jwksURL string) (jwk.Set, error) {
	m.mu.Lock()
	cached, ok := m.sets[jwksURL]
	m.mu.Unlock()
	if ok && m.now().Sub(cached.fetchedAt) < minRefreshInterval {
		return cached.keys, nil
	}
	return m.fetch(ctx, jwksURL)
}

// Invalidate drops the cached key set so the next lookup refetches it
func (m *JWKSManager) Invalidate(jwksURL string) {
	m.mu.Lock()
	delete(m.sets, jwksURL)
	m.mu.Unlock()
}

func (m *JWKSManager) fetch(ctx context.Context, jwksURL string) (jwk.Set, error) {
	keys, err := jwk.Fetch(ctx, jwksURL, jwk.WithHTTPClient(m.client))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}

	m.mu.Lock()
	m.sets[jwksURL] = keySet{keys: keys, fetchedAt: m.now()}
	m.mu.Unlock()
	return keys, nil
}
