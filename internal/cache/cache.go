package cache

import (
	"context"
	"time"

	"lojapos/backend/internal/domain"
)

// FeeScheduleCache keeps the active card fee schedule close to checkout so the
// hot path does not hit the database for it on every sale.
type FeeScheduleCache interface {
	Get(ctx context.Context) (*domain.CardFeeSchedule, bool, error)
	Set(ctx context.Context, schedule *domain.CardFeeSchedule, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopFeeScheduleCache struct{}

func (NoopFeeScheduleCache) Get(_ context.Context) (*domain.CardFeeSchedule, bool, error) {
	return nil, false, nil
}

func (NoopFeeScheduleCache) Set(_ context.Context, _ *domain.CardFeeSchedule, _ time.Duration) error {
	return nil
}

func (NoopFeeScheduleCache) Invalidate(_ context.Context) error {
	return nil
}
