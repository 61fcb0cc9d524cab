package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryRequestState is an in-memory fallback for idempotency keys and
// rate limits, used when Redis is unavailable.
type MemoryRequestState struct {
	claims     sync.Map // key -> claimEntry
	rateLimits sync.Map // operatorID -> *rateLimitEntry
	mu         sync.Mutex
}

type claimEntry struct {
	bookingID string
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryRequestState() *MemoryRequestState {
	return &MemoryRequestState{}
}

func (m *MemoryRequestState) ClaimIdempotencyKey(_ context.Context, key, bookingID string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if v, ok := m.claims.Load(key); ok {
		entry := v.(claimEntry)
		if now.Before(entry.expiresAt) {
			return entry.bookingID, false, nil
		}
	}

	m.claims.Store(key, claimEntry{bookingID: bookingID, expiresAt: now.Add(ttl)})
	return bookingID, true, nil
}

func (m *MemoryRequestState) CheckRateLimit(_ context.Context, operatorID string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()

	var entry *rateLimitEntry
	if v, ok := m.rateLimits.Load(operatorID); ok {
		entry = v.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry = nil
		}
	}

	if entry == nil {
		entry = &rateLimitEntry{count: 0, expiresAt: now.Add(window)}
		m.rateLimits.Store(operatorID, entry)
	}

	entry.count++
	return entry.count <= limit, nil
}
