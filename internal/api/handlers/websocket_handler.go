package handlers

import (
	"net/http"

	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/websocket"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"
)

type WebSocketHandlers struct {
	wsHandler *websocket.WebSocketHandler
}

func NewWebSocketHandlers(auctions *services.AuctionService,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandlers {
	wsHandler := websocket.NewWebSocketHandler(auctions, connManager, log)
	return &WebSocketHandlers{
		wsHandler: wsHandler,
	}
}

func (h *WebSocketHandlers) HandleConnection(w http.ResponseWriter, r *http.Request) {
	h.wsHandler.HandleConnection(w, r)
}
