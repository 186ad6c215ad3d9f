package services

import (
	"context"
	"errors"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
)

// ErrNotAuthorized is delivered to the command callback when the gate
// vetoes a command.
var ErrNotAuthorized = errors.New("Agent not authorized.")

// RoleAuthorizer builds the authorization gate consulted before every
// auction command: start and end require the auctioneer role, bid requires
// the bidder role. Unknown agents are vetoed; an empty agent id is passed
// through so the command's own validation reports it.
type RoleAuthorizer struct {
	agents domain.AgentRepository
	log    logger.Logger
}

func NewRoleAuthorizer(agents domain.AgentRepository, log logger.Logger) *RoleAuthorizer {
	return &RoleAuthorizer{
		agents: agents,
		log:    log,
	}
}

func (ra *RoleAuthorizer) Gate() domain.Authorizer {
	return func(cmd domain.Command, data interface{}, done func(error)) {
		agentID := requestAgentID(data)
		if agentID == "" {
			done(nil)
			return
		}

		agent, err := ra.agents.GetAgent(context.Background(), agentID)
		if err != nil {
			ra.log.Warn("Agent lookup failed", "agent_id", agentID, "error", err)
			done(ErrNotAuthorized)
			return
		}

		required := domain.RoleBidder
		if cmd == domain.CommandStart || cmd == domain.CommandEnd {
			required = domain.RoleAuctioneer
		}

		if agent.Role != required {
			ra.log.Info("Command vetoed", "command", cmd, "agent_id", agentID, "role", agent.Role)
			done(ErrNotAuthorized)
			return
		}

		done(nil)
	}
}

func requestAgentID(data interface{}) string {
	switch d := data.(type) {
	case domain.StartRequest:
		return d.AgentID
	case domain.BidRequest:
		return d.AgentID
	case domain.EndRequest:
		return d.AgentID
	}
	return ""
}
