package repository

import (
	"context"
	"sync/atomic"
	"time"

	"unispace/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverRequestState delegates to a primary store and falls back to a
// secondary one when the primary errors. The primary is retried after
// recoveryInterval.
type FailoverRequestState struct {
	primary  domain.RequestState
	fallback domain.RequestState
	log      zerolog.Logger

	primaryDown atomic.Bool
	downSince   atomic.Int64
}

func NewFailoverRequestState(primary, fallback domain.RequestState, log *zerolog.Logger) *FailoverRequestState {
	return &FailoverRequestState{
		primary:  primary,
		fallback: fallback,
		log:      log.With().Str("component", "request_state").Logger(),
	}
}

func (f *FailoverRequestState) usePrimary() bool {
	if !f.primaryDown.Load() {
		return true
	}
	since := time.Unix(f.downSince.Load(), 0)
	if time.Since(since) >= recoveryInterval {
		f.primaryDown.Store(false)
		f.log.Info().Msg("retrying primary request state store")
		return true
	}
	return false
}

func (f *FailoverRequestState) markDown(err error) {
	f.primaryDown.Store(true)
	f.downSince.Store(time.Now().Unix())
	f.log.Error().Err(err).Msg("primary request state store failed, switching to fallback")
}

func (f *FailoverRequestState) ClaimIdempotencyKey(ctx context.Context, key, bookingID string, ttl time.Duration) (string, bool, error) {
	if f.usePrimary() {
		existing, claimed, err := f.primary.ClaimIdempotencyKey(ctx, key, bookingID, ttl)
		if err == nil {
			return existing, claimed, nil
		}
		f.markDown(err)
	}
	return f.fallback.ClaimIdempotencyKey(ctx, key, bookingID, ttl)
}

func (f *FailoverRequestState) CheckRateLimit(ctx context.Context, operatorID string, limit int, window time.Duration) (bool, error) {
	if f.usePrimary() {
		allowed, err := f.primary.CheckRateLimit(ctx, operatorID, limit, window)
		if err == nil {
			return allowed, nil
		}
		f.markDown(err)
	}
	return f.fallback.CheckRateLimit(ctx, operatorID, limit, window)
}
