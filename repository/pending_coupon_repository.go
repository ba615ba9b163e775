package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ticketshop/models"

	"github.com/redis/go-redis/v9"
)

// PendingCouponRepository stores the per-channel coupon selection awaiting a
// product choice. At most one association exists per channel; a new
// submission overwrites any existing one.
type PendingCouponRepository interface {
	Set(ctx context.Context, channelID string, snap models.CouponSnapshot) error
	// Get returns nil when no association exists for the channel.
	Get(ctx context.Context, channelID string) (*models.CouponSnapshot, error)
	Clear(ctx context.Context, channelID string) error
}

// RedisPendingCouponRepository implements PendingCouponRepository on Redis.
type RedisPendingCouponRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPendingCouponRepository creates a new RedisPendingCouponRepository.
func NewRedisPendingCouponRepository(client *redis.Client, ttl time.Duration) *RedisPendingCouponRepository {
	return &RedisPendingCouponRepository{client: client, ttl: ttl}
}

func (r *RedisPendingCouponRepository) getKey(channelID string) string {
	return fmt.Sprintf("pending_coupon:channel:%s", channelID)
}

// Set overwrites the pending coupon for a channel (last write wins).
func (r *RedisPendingCouponRepository) Set(ctx context.Context, channelID string, snap models.CouponSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.getKey(channelID), data, r.ttl).Err()
}

// Get returns the pending snapshot for a channel, or nil if there is none.
func (r *RedisPendingCouponRepository) Get(ctx context.Context, channelID string) (*models.CouponSnapshot, error) {
	data, err := r.client.Get(ctx, r.getKey(channelID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap models.CouponSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Clear removes the pending coupon for a channel.
func (r *RedisPendingCouponRepository) Clear(ctx context.Context, channelID string) error {
	return r.client.Del(ctx, r.getKey(channelID)).Err()
}
