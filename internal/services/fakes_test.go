package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"auction-engine/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Fatal(string, ...interface{}) {}

type fakeAuctionRepo struct {
	mu      sync.Mutex
	records map[string]*domain.AuctionRecord
}

func newFakeAuctionRepo() *fakeAuctionRepo {
	return &fakeAuctionRepo{records: make(map[string]*domain.AuctionRecord)}
}

func (r *fakeAuctionRepo) SaveAuction(_ context.Context, record *domain.AuctionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *record
	r.records[record.ID] = &copied
	return nil
}

func (r *fakeAuctionRepo) GetAuction(_ context.Context, auctionID string) (*domain.AuctionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[auctionID]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (r *fakeAuctionRepo) MarkAuctionStarted(_ context.Context, auctionID, auctioneer string, openPrice float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[auctionID]
	if !ok {
		return errors.New("no such auction")
	}
	record.Status = domain.StatusStarted
	record.Auctioneer = auctioneer
	record.OpenPrice = openPrice
	record.UpdatedAt = time.Now()
	return nil
}

func (r *fakeAuctionRepo) UpdateAuctionStatus(_ context.Context, auctionID string, status domain.AuctionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[auctionID]
	if !ok {
		return errors.New("no such auction")
	}
	record.Status = status
	record.UpdatedAt = time.Now()
	return nil
}

func (r *fakeAuctionRepo) ListByStatus(_ context.Context, status domain.AuctionStatus) ([]*domain.AuctionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.AuctionRecord
	for _, record := range r.records {
		if record.Status == status {
			copied := *record
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) status(auctionID string) domain.AuctionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record, ok := r.records[auctionID]; ok {
		return record.Status
	}
	return ""
}

type fakeBidRepo struct {
	mu   sync.Mutex
	bids map[string][]*domain.BidData
}

func newFakeBidRepo() *fakeBidRepo {
	return &fakeBidRepo{bids: make(map[string][]*domain.BidData)}
}

func (r *fakeBidRepo) SaveBid(_ context.Context, bid *domain.BidData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *bid
	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], &copied)
	return nil
}

func (r *fakeBidRepo) GetBidHistory(_ context.Context, auctionID string) ([]*domain.BidData, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := make([]*domain.BidData, 0, len(r.bids[auctionID]))
	for _, bid := range r.bids[auctionID] {
		copied := *bid
		history = append(history, &copied)
	}
	return history, nil
}

func (r *fakeBidRepo) count(auctionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bids[auctionID])
}

type fakeAgentRepo struct {
	mu     sync.Mutex
	agents map[string]*domain.Agent
}

func newFakeAgentRepo(agents ...*domain.Agent) *fakeAgentRepo {
	r := &fakeAgentRepo{agents: make(map[string]*domain.Agent)}
	for _, agent := range agents {
		r.agents[agent.ID] = agent
	}
	return r
}

func (r *fakeAgentRepo) GetAgent(_ context.Context, agentID string) (*domain.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.agents[agentID]
	if !ok {
		return nil, errors.New("no such agent")
	}
	return agent, nil
}

func (r *fakeAgentRepo) SaveAgent(_ context.Context, agent *domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.ID] = agent
	return nil
}

type fakeSchedRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.ScheduledJob
}

func newFakeSchedRepo() *fakeSchedRepo {
	return &fakeSchedRepo{jobs: make(map[string]*domain.ScheduledJob)}
}

func (r *fakeSchedRepo) CreateJob(_ context.Context, job *domain.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *job
	r.jobs[job.ID] = &copied
	return nil
}

func (r *fakeSchedRepo) GetPendingJobs(_ context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ScheduledJob
	for _, job := range r.jobs {
		if job.Status == domain.JobPending && !job.RunAt.After(before) {
			copied := *job
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeSchedRepo) UpdateJobStatus(_ context.Context, jobID string, status domain.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return errors.New("no such job")
	}
	job.Status = status
	return nil
}

func (r *fakeSchedRepo) CancelJobsForAuction(_ context.Context, auctionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.AuctionID == auctionID && job.Status == domain.JobPending {
			job.Status = domain.JobCancelled
		}
	}
	return nil
}

func (r *fakeSchedRepo) jobStatus(jobID string) domain.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		return job.Status
	}
	return ""
}

func (r *fakeSchedRepo) pendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, job := range r.jobs {
		if job.Status == domain.JobPending {
			n++
		}
	}
	return n
}

type fakeStateCache struct {
	mu        sync.Mutex
	statuses  map[string]domain.AuctionStatus
	snapshots map[string]domain.AuctionData
}

func newFakeStateCache() *fakeStateCache {
	return &fakeStateCache{
		statuses:  make(map[string]domain.AuctionStatus),
		snapshots: make(map[string]domain.AuctionData),
	}
}

func (c *fakeStateCache) SetAuctionStatus(_ context.Context, auctionID string, status domain.AuctionStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[auctionID] = status
	return nil
}

func (c *fakeStateCache) GetAuctionStatus(_ context.Context, auctionID string) (domain.AuctionStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status, ok := c.statuses[auctionID]
	if !ok {
		return "", errors.New("no cached status")
	}
	return status, nil
}

func (c *fakeStateCache) SetAuctionSnapshot(_ context.Context, data domain.AuctionData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots[data.ID] = data
	return nil
}

func (c *fakeStateCache) GetAuctionSnapshot(_ context.Context, auctionID string) (*domain.AuctionData, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.snapshots[auctionID]
	if !ok {
		return nil, nil
	}
	return &data, nil
}

type fakePublisher struct {
	events chan *domain.LifecycleEvent
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{events: make(chan *domain.LifecycleEvent, 32)}
}

func (p *fakePublisher) PublishLifecycleEvent(_ context.Context, event *domain.LifecycleEvent) error {
	p.events <- event
	return nil
}

type fixedRules struct {
	increment float64
}

func (r fixedRules) LoadRules(context.Context) error    { return nil }
func (r fixedRules) IncrementFor(float64) float64       { return r.increment }
func (r fixedRules) MinimumBid(current float64) float64 { return current + r.increment }

type fakeLeader struct {
	leading bool
}

func (l *fakeLeader) BecomeLeader(context.Context, string) (bool, error) { return l.leading, nil }
func (l *fakeLeader) IsLeader(context.Context, string) (bool, error)     { return l.leading, nil }
func (l *fakeLeader) ReleaseLeadership(context.Context, string) error    { return nil }
