package redis

import (
	"context"
	"encoding/json"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type RedisEventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client: client,
		log:    log,
	}
}

// SubscribeToLifecycleEvents blocks, feeding every published lifecycle
// event to handler until the context is cancelled.
func (r *RedisEventSubscriber) SubscribeToLifecycleEvents(ctx context.Context, handler domain.LifecycleHandler) error {
	pubsub := r.client.Subscribe(ctx, lifecycleChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	r.log.Info("Subscribed to lifecycle events")

	for {
		select {
		case msg := <-ch:
			var event domain.LifecycleEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.log.Error("Failed to parse lifecycle event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(&event); err != nil {
				r.log.Error("Failed to handle lifecycle event", "event", event.Event, "auction_id", event.AuctionID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}
