package domain

import (
	"context"
	"time"
)

// AuctionRecord is the persistence snapshot of an auction's configuration
// and lifecycle status. The live bid state belongs to the engine; records
// exist so auctions survive process restarts.
type AuctionRecord struct {
	ID           string
	SaleID       string
	SaleDate     *time.Time
	OpenPrice    float64
	MinPrice     float64
	Increment    float64
	MinIncrement float64
	Status       AuctionStatus
	Auctioneer   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AgentRole separates who may run an auction from who may bid in it.
type AgentRole string

const (
	RoleAuctioneer AgentRole = "auctioneer"
	RoleBidder     AgentRole = "bidder"
)

type Agent struct {
	ID        string
	Name      string
	Role      AgentRole
	CreatedAt time.Time
}

// LifecycleEvent is the wire form of an engine event, published so other
// service instances can fan it out to their connected agents.
type LifecycleEvent struct {
	Event     Event        `json:"event"`
	AuctionID string       `json:"auction_id"`
	AgentID   string       `json:"agent_id,omitempty"`
	Auction   *AuctionData `json:"auction,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

type JobType string

const (
	JobOpenAuction  JobType = "open_auction"
	JobCloseAuction JobType = "close_auction"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)

// ScheduledJob is a deferred open or close of one auction, executed by the
// leader instance when RunAt passes.
type ScheduledJob struct {
	ID        string
	AuctionID string
	AgentID   string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

// BidIncrementRules maps price bands to the increment a new auction in
// that band is created with.
type BidIncrementRules struct {
	Rules map[string]float64 `json:"rules"`
}

type IncrementRuleProvider interface {
	LoadRules(ctx context.Context) error
	IncrementFor(amount float64) float64
	MinimumBid(currentAmount float64) float64
}

// Repository interfaces

type AuctionRepository interface {
	SaveAuction(ctx context.Context, record *AuctionRecord) error
	GetAuction(ctx context.Context, auctionID string) (*AuctionRecord, error)
	// MarkAuctionStarted stamps the started status together with the
	// auctioneer and the finalized open price, so a restart can replay
	// the start with the same agent and price.
	MarkAuctionStarted(ctx context.Context, auctionID, auctioneer string, openPrice float64) error
	UpdateAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	ListByStatus(ctx context.Context, status AuctionStatus) ([]*AuctionRecord, error)
}

type BidRepository interface {
	SaveBid(ctx context.Context, bid *BidData) error
	GetBidHistory(ctx context.Context, auctionID string) ([]*BidData, error)
}

// AuditRepository records the lifecycle event stream for later analysis.
type AuditRepository interface {
	RecordEvent(ctx context.Context, event *LifecycleEvent) error
	ListEvents(ctx context.Context, auctionID string) ([]*LifecycleEvent, error)
}

type AgentRepository interface {
	GetAgent(ctx context.Context, agentID string) (*Agent, error)
	SaveAgent(ctx context.Context, agent *Agent) error
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelJobsForAuction(ctx context.Context, auctionID string) error
}

// Cache interfaces

type StateCache interface {
	SetAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	GetAuctionStatus(ctx context.Context, auctionID string) (AuctionStatus, error)
	SetAuctionSnapshot(ctx context.Context, data AuctionData) error
	GetAuctionSnapshot(ctx context.Context, auctionID string) (*AuctionData, error)
}

// Event interfaces

type EventPublisher interface {
	PublishLifecycleEvent(ctx context.Context, event *LifecycleEvent) error
}

type LifecycleHandler func(event *LifecycleEvent) error

type EventSubscriber interface {
	SubscribeToLifecycleEvents(ctx context.Context, handler LifecycleHandler) error
}

// Notification interfaces

type AgentNotifier interface {
	NotifyAgent(ctx context.Context, agentID string, message interface{}) error
}

type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
}

// Leader election interface

type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// WebSocket interfaces

type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	AgentID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(agentID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(agentID, auctionID string) error
	GetConnectionsForAuction(auctionID string) []WebSocketConnection
	GetConnectionsForAgent(agentID string) []WebSocketConnection
	BroadcastToAuction(auctionID string, message interface{}) error
	NotifyAgent(agentID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}
