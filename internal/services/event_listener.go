package services

import (
	"context"
	"fmt"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
)

// EventListener fans published lifecycle events out to the agents connected
// to this instance. Every instance runs one, so a bid accepted anywhere
// reaches every watcher of that auction.
type EventListener struct {
	broadcaster       domain.AuctionBroadcaster
	connectionManager domain.ConnectionManager
	log               logger.Logger
}

func NewEventListener(connectionManager domain.ConnectionManager,
	broadcaster domain.AuctionBroadcaster, log logger.Logger) *EventListener {
	return &EventListener{
		broadcaster:       broadcaster,
		connectionManager: connectionManager,
		log:               log,
	}
}

func (el *EventListener) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	el.log.Info("Starting event listener")
	return subscriber.SubscribeToLifecycleEvents(ctx, el.handleLifecycleEvent)
}

func (el *EventListener) handleLifecycleEvent(event *domain.LifecycleEvent) error {
	el.log.Debug("Handling lifecycle event", "event", event.Event, "auction_id", event.AuctionID)

	switch event.Event {
	case domain.EventStarted:
		return el.broadcast(event, "auction_started")
	case domain.EventChanged:
		return el.broadcast(event, "auction_changed")
	case domain.EventEnded:
		return el.handleEnded(event)
	case domain.EventError:
		// Command errors go back to the issuing agent on its own
		// connection; nothing to fan out.
		return nil
	}

	return fmt.Errorf("unknown lifecycle event %q", event.Event)
}

func (el *EventListener) broadcast(event *domain.LifecycleEvent, msgType string) error {
	return el.broadcaster.BroadcastToAuction(context.Background(), event.AuctionID, map[string]interface{}{
		"type":      msgType,
		"auction":   event.Auction,
		"agentId":   event.AgentID,
		"timestamp": event.Timestamp,
	})
}

func (el *EventListener) handleEnded(event *domain.LifecycleEvent) error {
	if err := el.broadcast(event, "auction_ended"); err != nil {
		el.log.Error("Failed to broadcast auction ended event", "error", err)
		return err
	}

	if err := el.connectionManager.CloseAndUnregisterConnections(event.AuctionID); err != nil {
		el.log.Error("Failed to finalize connections for auction", "auction_id",
			event.AuctionID, "error", err)
		return err
	}
	return nil
}
