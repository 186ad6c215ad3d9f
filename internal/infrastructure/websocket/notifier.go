package websocket

import (
	"auction-engine/internal/domain"
	"context"
)

// WebSocketNotifier adapts the connection manager to the context-aware
// notification ports the services depend on.
type WebSocketNotifier struct {
	connManager domain.ConnectionManager
}

func NewWebSocketNotifier(connManager domain.ConnectionManager) *WebSocketNotifier {
	return &WebSocketNotifier{connManager: connManager}
}

func (n *WebSocketNotifier) NotifyAgent(ctx context.Context, agentID string, message interface{}) error {
	return n.connManager.NotifyAgent(agentID, message)
}

func (n *WebSocketNotifier) BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error {
	return n.connManager.BroadcastToAuction(auctionID, message)
}
