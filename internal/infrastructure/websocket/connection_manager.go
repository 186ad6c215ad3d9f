package websocket

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"encoding/json"
	"sync"
)

// ConnectionManagerImpl indexes live connections two ways: per auction for
// lifecycle broadcasts and per agent for direct notifications.
type ConnectionManagerImpl struct {
	connections map[string]map[string]domain.WebSocketConnection // auctionID -> agentID -> connection
	agentConns  map[string][]domain.WebSocketConnection          // agentID -> connections
	mutex       sync.RWMutex
	log         logger.Logger
}

func NewConnectionManager(log logger.Logger) *ConnectionManagerImpl {
	return &ConnectionManagerImpl{
		connections: make(map[string]map[string]domain.WebSocketConnection),
		agentConns:  make(map[string][]domain.WebSocketConnection),
		log:         log,
	}
}

func (cm *ConnectionManagerImpl) RegisterConnection(agentID, auctionID string, conn domain.WebSocketConnection) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.connections[auctionID] == nil {
		cm.connections[auctionID] = make(map[string]domain.WebSocketConnection)
	}
	cm.connections[auctionID][agentID] = conn

	cm.agentConns[agentID] = append(cm.agentConns[agentID], conn)

	cm.log.Info("Connection registered", "agent_id", agentID, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManagerImpl) UnregisterConnection(agentID, auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if auctionConns, exists := cm.connections[auctionID]; exists {
		delete(auctionConns, agentID)
		if len(auctionConns) == 0 {
			delete(cm.connections, auctionID)
		}
	}

	cm.dropAgentConnsLocked(agentID, auctionID)

	cm.log.Info("Connection unregistered", "agent_id", agentID, "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManagerImpl) dropAgentConnsLocked(agentID, auctionID string) {
	agentConnections, exists := cm.agentConns[agentID]
	if !exists {
		return
	}

	var kept []domain.WebSocketConnection
	for _, existing := range agentConnections {
		if existing.AuctionID() != auctionID {
			kept = append(kept, existing)
		}
	}

	if len(kept) == 0 {
		delete(cm.agentConns, agentID)
	} else {
		cm.agentConns[agentID] = kept
	}
}

func (cm *ConnectionManagerImpl) CloseAndUnregisterConnections(auctionID string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if auctionConns, exists := cm.connections[auctionID]; exists {
		for agentID, conn := range auctionConns {
			if err := conn.Close(); err != nil {
				cm.log.Error("Failed to close connection", "agent_id", agentID,
					"auction_id", auctionID, "error", err)
			}
			cm.dropAgentConnsLocked(agentID, auctionID)
		}
		delete(cm.connections, auctionID)
	}

	cm.log.Info("Connections closed for auction", "auction_id", auctionID)
	return nil
}

func (cm *ConnectionManagerImpl) GetConnectionsForAuction(auctionID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var connections []domain.WebSocketConnection
	for _, conn := range cm.connections[auctionID] {
		connections = append(connections, conn)
	}

	return connections
}

func (cm *ConnectionManagerImpl) GetConnectionsForAgent(agentID string) []domain.WebSocketConnection {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	return cm.agentConns[agentID]
}

func (cm *ConnectionManagerImpl) BroadcastToAuction(auctionID string, message interface{}) error {
	connections := cm.GetConnectionsForAuction(auctionID)

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(messageBytes); err != nil {
			cm.log.Error("Failed to send message", "agent_id", conn.AgentID(),
				"auction_id", auctionID, "error", err)
			// Continue to other connections.
		}
	}

	return nil
}

func (cm *ConnectionManagerImpl) NotifyAgent(agentID string, message interface{}) error {
	connections := cm.GetConnectionsForAgent(agentID)

	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, conn := range connections {
		if err := conn.Send(messageBytes); err != nil {
			cm.log.Error("Failed to send message", "agent_id", agentID, "error", err)
		}
	}

	return nil
}
