package repository

import (
	"context"
	"time"

	"live-poll/internal/domain"
)

// StateRepository holds short-lived shared state, backed by Redis.
type StateRepository interface {
	// === Rate Limiting ===

	// CheckRateLimit increments the counter for key and reports true once
	// it exceeds limit within window.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// === Result Caching ===

	// GetResultCache returns ErrCacheMiss when nothing is cached.
	GetResultCache(ctx context.Context, roomID string, pollID int64) (*domain.PollRecord, error)

	// SetResultCache caches a closed poll's record. ttl 0 means no expiry.
	SetResultCache(ctx context.Context, record *domain.PollRecord, ttl time.Duration) error

	// CleanupRoomState removes every cached key of roomID.
	CleanupRoomState(ctx context.Context, roomID string) error
}
