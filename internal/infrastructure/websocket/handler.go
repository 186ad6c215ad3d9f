package websocket

import (
	"context"
	"net/http"
	"sync"

	"auction-engine/internal/domain"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

// WebSocketHandler upgrades bidder connections and translates their
// messages into auction commands.
type WebSocketHandler struct {
	auctions    *services.AuctionService
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(auctions *services.AuctionService,
	connManager domain.ConnectionManager, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		auctions:    auctions,
		connManager: connManager,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	auctionID := vars["auctionID"]

	data, err := h.auctions.GetAuction(r.Context(), auctionID)
	if err != nil {
		h.log.Error("Failed to find auction", "error", err, "auction_id", auctionID)
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}
	if data.AuctionStatus == domain.StatusEnded {
		h.log.Info("Rejected connection, auction has ended", "auction_id", auctionID)
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		http.Error(w, "agent_id required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	wsConn := NewWebSocketConn(conn, agentID, auctionID)

	if err := h.connManager.RegisterConnection(agentID, auctionID, wsConn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	// Current state first, so the agent does not bid blind.
	if err := wsConn.Send(map[string]interface{}{"type": "snapshot", "auction": data}); err != nil {
		h.log.Error("Failed to send snapshot", "agent_id", agentID, "error", err)
	}

	go h.handleMessages(wsConn, agentID, auctionID)
}

type inboundMessage struct {
	Type     string   `json:"type"`
	Price    *float64 `json:"price,omitempty"`
	MaxPrice *float64 `json:"maxPrice,omitempty"`
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConn, agentID, auctionID string) {
	defer func() {
		h.connManager.UnregisterConnection(agentID, auctionID)
		conn.Close()
	}()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			h.log.Debug("Connection closed", "agent_id", agentID, "auction_id", auctionID, "error", err)
			return
		}

		switch msg.Type {
		case "place_bid":
			h.handleBidMessage(conn, agentID, auctionID, msg)
		case "ping":
			conn.Send(map[string]string{"type": "pong"})
		}
	}
}

func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConn, agentID, auctionID string, msg inboundMessage) {
	bid, err := h.auctions.PlaceBid(context.Background(), auctionID, agentID, msg.Price, msg.MaxPrice)
	if err != nil {
		conn.Send(map[string]string{"type": "bid_rejected", "message": err.Error()})
		return
	}

	conn.Send(map[string]interface{}{"type": "bid_accepted", "bid": bid})
}

// WebSocketConn wraps one gorilla connection. Writes are serialized; the
// broadcast fan-out and the message loop both send.
type WebSocketConn struct {
	conn      *websocket.Conn
	agentID   string
	auctionID string
	writeMu   sync.Mutex
}

func NewWebSocketConn(conn *websocket.Conn, agentID, auctionID string) *WebSocketConn {
	return &WebSocketConn{
		conn:      conn,
		agentID:   agentID,
		auctionID: auctionID,
	}
}

func (wsc *WebSocketConn) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()
	return wsc.conn.WriteJSON(message)
}

func (wsc *WebSocketConn) ReadJSON(v interface{}) error {
	return wsc.conn.ReadJSON(v)
}

func (wsc *WebSocketConn) Close() error {
	return wsc.conn.Close()
}

func (wsc *WebSocketConn) AgentID() string {
	return wsc.agentID
}

func (wsc *WebSocketConn) AuctionID() string {
	return wsc.auctionID
}
