package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"lojapos/backend/internal/domain"
)

const activeFeeScheduleKey = "lojapos:fee-schedule:active"

type RedisFeeScheduleCache struct {
	client *redis.Client
}

func NewRedisFeeScheduleCache(addr string, password string, db int) *RedisFeeScheduleCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisFeeScheduleCache{client: client}
}

func (c *RedisFeeScheduleCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisFeeScheduleCache) Close() error {
	return c.client.Close()
}

func (c *RedisFeeScheduleCache) Get(ctx context.Context) (*domain.CardFeeSchedule, bool, error) {
	val, err := c.client.Get(ctx, activeFeeScheduleKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var schedule domain.CardFeeSchedule
	if err := json.Unmarshal([]byte(val), &schedule); err != nil {
		return nil, false, err
	}
	return &schedule, true, nil
}

func (c *RedisFeeScheduleCache) Set(ctx context.Context, schedule *domain.CardFeeSchedule, ttl time.Duration) error {
	if schedule == nil {
		return nil
	}
	payload, err := json.Marshal(schedule)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, activeFeeScheduleKey, payload, ttl).Err()
}

func (c *RedisFeeScheduleCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, activeFeeScheduleKey).Err()
}
