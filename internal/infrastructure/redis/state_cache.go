package redis

import (
	"auction-engine/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisStateCache mirrors auction status and the latest snapshot so any
// instance can answer reads for auctions whose engine lives elsewhere.
type RedisStateCache struct {
	client *redis.Client
}

func NewRedisStateCache(client *redis.Client) *RedisStateCache {
	return &RedisStateCache{client: client}
}

func (r *RedisStateCache) SetAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	key := fmt.Sprintf("auction:%s:status", auctionID)
	return r.client.Set(ctx, key, string(status), 0).Err()
}

func (r *RedisStateCache) GetAuctionStatus(ctx context.Context, auctionID string) (domain.AuctionStatus, error) {
	key := fmt.Sprintf("auction:%s:status", auctionID)

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.StatusCreated, nil
		}
		return domain.StatusCreated, err
	}

	return domain.AuctionStatus(result), nil
}

func (r *RedisStateCache) SetAuctionSnapshot(ctx context.Context, data domain.AuctionData) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("auction:%s:snapshot", data.ID)
	return r.client.Set(ctx, key, payload, 0).Err()
}

func (r *RedisStateCache) GetAuctionSnapshot(ctx context.Context, auctionID string) (*domain.AuctionData, error) {
	key := fmt.Sprintf("auction:%s:snapshot", auctionID)

	payload, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var data domain.AuctionData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, err
	}
	return &data, nil
}
