package redis

import (
	"auction-engine/internal/domain"
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
)

const lifecycleChannel = "auction_lifecycle_events"

type EventPublisherImpl struct {
	client *redis.Client
}

func NewEventPublisher(client *redis.Client) *EventPublisherImpl {
	return &EventPublisherImpl{client: client}
}

func (r *EventPublisherImpl) PublishLifecycleEvent(ctx context.Context, event *domain.LifecycleEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, lifecycleChannel, payload).Err()
}
