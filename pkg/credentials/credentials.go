// Package credentials issues short-lived bearer handles for target
// clusters. The pipeline acquires a fresh handle per run and re-acquires
// instead of applying with a stale one.
package credentials

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrExpired signals a handle past its expiry instant.
var ErrExpired = errors.New("credential expired")

// Handle is a short-lived bearer credential for one cluster.
type Handle struct {
	Token     string
	Cluster   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the handle is unusable at the given instant.
func (h Handle) Expired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

// IsZero reports whether the handle was never issued.
func (h Handle) IsZero() bool {
	return h.Token == ""
}

// Source issues credential handles for target clusters.
type Source interface {
	Acquire(ctx context.Context, cluster string) (Handle, error)
}

// StaticSource mints random handles with a fixed lifetime. It stands in
// for a real identity provider in tests and dry runs.
type StaticSource struct {
	ttl time.Duration

	mu     sync.RWMutex
	issued map[string]Handle
}

// NewStaticSource creates a source issuing handles valid for ttl.
func NewStaticSource(ttl time.Duration) *StaticSource {
	return &StaticSource{
		ttl:    ttl,
		issued: make(map[string]Handle),
	}
}

// Acquire mints a fresh handle for the cluster.
func (s *StaticSource) Acquire(ctx context.Context, cluster string) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return Handle{}, fmt.Errorf("failed to generate credential token: %w", err)
	}

	now := time.Now()
	h := Handle{
		Token:     hex.EncodeToString(bytes),
		Cluster:   cluster,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.issued[cluster] = h
	s.mu.Unlock()

	return h, nil
}

// Validate checks that a token matches the cluster's current handle and
// is still live.
func (s *StaticSource) Validate(token, cluster string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, exists := s.issued[cluster]
	if !exists || h.Token != token {
		return errors.New("invalid credential")
	}

	if h.Expired(time.Now()) {
		return ErrExpired
	}

	return nil
}

// Revoke discards the cluster's current handle.
func (s *StaticSource) Revoke(cluster string) {
	s.mu.Lock()
	delete(s.issued, cluster)
	s.mu.Unlock()
}

// CachingSource reuses live handles and re-acquires ones that expire
// within the skew window, so callers never hold a handle about to die.
type CachingSource struct {
	source Source
	skew   time.Duration

	mu    sync.Mutex
	cache map[string]Handle
}

// NewCachingSource wraps a source with per-cluster handle reuse.
func NewCachingSource(source Source, skew time.Duration) *CachingSource {
	return &CachingSource{
		source: source,
		skew:   skew,
		cache:  make(map[string]Handle),
	}
}

// Acquire returns the cached handle if it survives the skew window,
// otherwise acquires a fresh one.
func (c *CachingSource) Acquire(ctx context.Context, cluster string) (Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if h, exists := c.cache[cluster]; exists && !h.Expired(time.Now().Add(c.skew)) {
		return h, nil
	}

	h, err := c.source.Acquire(ctx, cluster)
	if err != nil {
		return Handle{}, err
	}

	c.cache[cluster] = h
	return h, nil
}
