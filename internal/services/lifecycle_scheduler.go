package services

import (
	"context"
	"strings"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"

	"github.com/robfig/cron/v3"
)

// LifecycleScheduler executes deferred open and close jobs. Only the
// leader instance processes the queue, so a scheduled transition runs
// exactly once across the cluster.
type LifecycleScheduler struct {
	cron       *cron.Cron
	repo       domain.SchedulerRepository
	auctions   *AuctionService
	leader     domain.LeaderElection
	instanceID string
	log        logger.Logger
}

func NewLifecycleScheduler(
	repo domain.SchedulerRepository,
	auctions *AuctionService,
	leader domain.LeaderElection,
	instanceID string,
	log logger.Logger,
) *LifecycleScheduler {
	return &LifecycleScheduler{
		cron:       cron.New(cron.WithSeconds()),
		repo:       repo,
		auctions:   auctions,
		leader:     leader,
		instanceID: instanceID,
		log:        log,
	}
}

func (s *LifecycleScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting lifecycle scheduler")

	_, err := s.cron.AddFunc("@every 1m", func() {
		s.processDueJobs(ctx)
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *LifecycleScheduler) Stop() error {
	s.log.Info("Stopping lifecycle scheduler")
	s.cron.Stop()
	return nil
}

func (s *LifecycleScheduler) ScheduleOpen(ctx context.Context, auctionID, agentID string, at time.Time) error {
	return s.repo.CreateJob(ctx, &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		AuctionID: auctionID,
		AgentID:   agentID,
		JobType:   domain.JobOpenAuction,
		RunAt:     at,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	})
}

func (s *LifecycleScheduler) ScheduleClose(ctx context.Context, auctionID, agentID string, at time.Time) error {
	return s.repo.CreateJob(ctx, &domain.ScheduledJob{
		ID:        utils.GenerateID("job"),
		AuctionID: auctionID,
		AgentID:   agentID,
		JobType:   domain.JobCloseAuction,
		RunAt:     at,
		Status:    domain.JobPending,
		CreatedAt: time.Now(),
	})
}

func (s *LifecycleScheduler) CancelSchedule(ctx context.Context, auctionID string) error {
	return s.repo.CancelJobsForAuction(ctx, auctionID)
}

func (s *LifecycleScheduler) processDueJobs(ctx context.Context) {
	isLeader, err := s.leader.IsLeader(ctx, s.instanceID)
	if err != nil {
		s.log.Error("Leader check failed", "error", err)
		return
	}
	if !isLeader {
		return
	}

	jobs, err := s.repo.GetPendingJobs(ctx, time.Now())
	if err != nil {
		s.log.Error("Failed to get pending jobs", "error", err)
		return
	}

	for _, job := range jobs {
		s.log.Info("Processing job", "job_id", job.ID, "type", job.JobType, "auction_id", job.AuctionID)

		var err error
		switch job.JobType {
		case domain.JobOpenAuction:
			_, err = s.auctions.StartAuction(ctx, job.AuctionID, job.AgentID, nil)
		case domain.JobCloseAuction:
			_, err = s.auctions.EndAuction(ctx, job.AuctionID, job.AgentID)
		}

		if err != nil && !transitionSettled(err) {
			s.log.Error("Failed to execute job", "job_id", job.ID, "error", err)
			// Left pending, picked up again on the next tick.
			continue
		}

		if err := s.repo.UpdateJobStatus(ctx, job.ID, domain.JobExecuted); err != nil {
			s.log.Error("Failed to mark job executed", "job_id", job.ID, "error", err)
		}
	}
}

// transitionSettled reports whether the auction already passed the state
// the job was meant to reach, which makes the job a no-op rather than a
// retryable failure.
func transitionSettled(err error) bool {
	return strings.Contains(err.Error(), "already started") ||
		strings.Contains(err.Error(), "already ended")
}
