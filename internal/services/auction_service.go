package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"
)

var ErrAuctionNotFound = errors.New("auction not found")

// CreateAuctionParams carries everything needed to set up a new auction.
// OpenAt and CloseAt, when set, schedule the lifecycle transitions instead
// of leaving them to a manual start/end.
type CreateAuctionParams struct {
	AgentID   string
	SaleID    string
	SaleDate  *time.Time
	OpenPrice float64
	MinPrice  *float64
	Agents    []string
	OpenAt    *time.Time
	CloseAt   *time.Time
}

// AuctionService owns the live auction engines. Commands mutate an engine
// synchronously; the event bridge attached to every engine persists status
// changes and accepted bids and publishes lifecycle events for the other
// instances.
type AuctionService struct {
	auctionRepo domain.AuctionRepository
	bidRepo     domain.BidRepository
	stateCache  domain.StateCache
	eventPub    domain.EventPublisher
	schedRepo   domain.SchedulerRepository
	rules       domain.IncrementRuleProvider
	authorizer  *RoleAuthorizer
	log         logger.Logger

	mu       sync.RWMutex
	auctions map[string]*domain.Auction
}

func NewAuctionService(
	auctionRepo domain.AuctionRepository,
	bidRepo domain.BidRepository,
	stateCache domain.StateCache,
	eventPub domain.EventPublisher,
	schedRepo domain.SchedulerRepository,
	rules domain.IncrementRuleProvider,
	authorizer *RoleAuthorizer,
	log logger.Logger,
) *AuctionService {
	return &AuctionService{
		auctionRepo: auctionRepo,
		bidRepo:     bidRepo,
		stateCache:  stateCache,
		eventPub:    eventPub,
		schedRepo:   schedRepo,
		rules:       rules,
		authorizer:  authorizer,
		log:         log,
		auctions:    make(map[string]*domain.Auction),
	}
}

// CreateAuction builds a new engine with increments taken from the rule
// store, persists its record and registers it for commands.
func (s *AuctionService) CreateAuction(ctx context.Context, params CreateAuctionParams) (domain.AuctionData, error) {
	id := utils.GenerateID("auction")
	increment := s.rules.IncrementFor(params.OpenPrice)

	auction, err := domain.NewAuction(domain.AuctionOptions{
		ID:           id,
		OpenPrice:    &params.OpenPrice,
		MinPrice:     params.MinPrice,
		Increment:    &increment,
		MinIncrement: &increment,
		SaleID:       params.SaleID,
		SaleDate:     params.SaleDate,
		Agents:       params.Agents,
	}, nil)
	if err != nil {
		return domain.AuctionData{}, err
	}

	if s.authorizer != nil {
		if err := auction.Authorize(s.authorizer.Gate()); err != nil {
			return domain.AuctionData{}, err
		}
	}

	minPrice := 0.0
	if params.MinPrice != nil {
		minPrice = *params.MinPrice
	}
	record := &domain.AuctionRecord{
		ID:           id,
		SaleID:       params.SaleID,
		SaleDate:     params.SaleDate,
		OpenPrice:    params.OpenPrice,
		MinPrice:     minPrice,
		Increment:    increment,
		MinIncrement: increment,
		Status:       domain.StatusCreated,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.auctionRepo.SaveAuction(ctx, record); err != nil {
		auction.Destroy(nil)
		return domain.AuctionData{}, err
	}
	if err := s.stateCache.SetAuctionStatus(ctx, id, domain.StatusCreated); err != nil {
		s.log.Error("Failed to cache auction status", "auction_id", id, "error", err)
	}
	if err := s.stateCache.SetAuctionSnapshot(ctx, auction.Data()); err != nil {
		s.log.Error("Failed to cache auction snapshot", "auction_id", id, "error", err)
	}

	s.attachBridge(auction)

	s.mu.Lock()
	s.auctions[id] = auction
	s.mu.Unlock()

	if err := s.scheduleLifecycle(ctx, id, params); err != nil {
		return domain.AuctionData{}, err
	}

	s.log.Info("Auction created", "auction_id", id, "sale_id", params.SaleID, "open_price", params.OpenPrice)
	return auction.Data(), nil
}

func (s *AuctionService) scheduleLifecycle(ctx context.Context, auctionID string, params CreateAuctionParams) error {
	if params.OpenAt != nil {
		job := &domain.ScheduledJob{
			ID:        utils.GenerateID("job"),
			AuctionID: auctionID,
			AgentID:   params.AgentID,
			JobType:   domain.JobOpenAuction,
			RunAt:     *params.OpenAt,
			Status:    domain.JobPending,
			CreatedAt: time.Now(),
		}
		if err := s.schedRepo.CreateJob(ctx, job); err != nil {
			return err
		}
	}
	if params.CloseAt != nil {
		job := &domain.ScheduledJob{
			ID:        utils.GenerateID("job"),
			AuctionID: auctionID,
			AgentID:   params.AgentID,
			JobType:   domain.JobCloseAuction,
			RunAt:     *params.CloseAt,
			Status:    domain.JobPending,
			CreatedAt: time.Now(),
		}
		if err := s.schedRepo.CreateJob(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

// StartAuction runs the start command and waits for its outcome.
func (s *AuctionService) StartAuction(ctx context.Context, auctionID, agentID string, openPrice *float64) (domain.AuctionData, error) {
	auction, err := s.engine(auctionID)
	if err != nil {
		return domain.AuctionData{}, err
	}

	type result struct {
		err  error
		data domain.AuctionData
	}
	done := make(chan result, 1)
	auction.Start(domain.StartRequest{AgentID: agentID, OpenPrice: openPrice}, func(err error, data domain.AuctionData) {
		done <- result{err, data}
	})

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return domain.AuctionData{}, ctx.Err()
	}
}

// PlaceBid runs the bid command and waits for its outcome.
func (s *AuctionService) PlaceBid(ctx context.Context, auctionID, agentID string, price, maxPrice *float64) (domain.BidData, error) {
	auction, err := s.engine(auctionID)
	if err != nil {
		return domain.BidData{}, err
	}

	type result struct {
		err error
		bid domain.BidData
	}
	done := make(chan result, 1)
	auction.Bid(domain.BidRequest{AgentID: agentID, Price: price, MaxPrice: maxPrice}, func(err error, bid domain.BidData) {
		done <- result{err, bid}
	})

	select {
	case r := <-done:
		return r.bid, r.err
	case <-ctx.Done():
		return domain.BidData{}, ctx.Err()
	}
}

// EndAuction runs the end command and waits for its outcome.
func (s *AuctionService) EndAuction(ctx context.Context, auctionID, agentID string) (domain.AuctionData, error) {
	auction, err := s.engine(auctionID)
	if err != nil {
		return domain.AuctionData{}, err
	}

	type result struct {
		err  error
		data domain.AuctionData
	}
	done := make(chan result, 1)
	auction.End(domain.EndRequest{AgentID: agentID}, func(err error, data domain.AuctionData) {
		done <- result{err, data}
	})

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return domain.AuctionData{}, ctx.Err()
	}
}

// GetAuction returns the live snapshot when the engine is resident, falling
// back to the persisted record for ended or remote auctions.
func (s *AuctionService) GetAuction(ctx context.Context, auctionID string) (domain.AuctionData, error) {
	s.mu.RLock()
	auction, ok := s.auctions[auctionID]
	s.mu.RUnlock()
	if ok {
		return auction.Data(), nil
	}

	snapshot, err := s.stateCache.GetAuctionSnapshot(ctx, auctionID)
	if err != nil {
		s.log.Error("Failed to read auction snapshot", "auction_id", auctionID, "error", err)
	} else if snapshot != nil {
		return *snapshot, nil
	}

	record, err := s.auctionRepo.GetAuction(ctx, auctionID)
	if err != nil {
		return domain.AuctionData{}, err
	}
	if record == nil {
		return domain.AuctionData{}, ErrAuctionNotFound
	}

	bids, err := s.bidRepo.GetBidHistory(ctx, auctionID)
	if err != nil {
		return domain.AuctionData{}, err
	}
	return recordData(record, bids), nil
}

func (s *AuctionService) GetBidHistory(ctx context.Context, auctionID string) ([]*domain.BidData, error) {
	return s.bidRepo.GetBidHistory(ctx, auctionID)
}

// Subscribe attaches a handler to a live engine's events.
func (s *AuctionService) Subscribe(auctionID string, event domain.Event, handler domain.EventHandler) error {
	auction, err := s.engine(auctionID)
	if err != nil {
		return err
	}
	auction.On(event, handler)
	return nil
}

// DestroyAuction cancels pending jobs and detaches the engine. The
// persisted record stays.
func (s *AuctionService) DestroyAuction(ctx context.Context, auctionID string) error {
	auction, err := s.engine(auctionID)
	if err != nil {
		return err
	}

	if err := s.schedRepo.CancelJobsForAuction(ctx, auctionID); err != nil {
		s.log.Error("Failed to cancel jobs", "auction_id", auctionID, "error", err)
	}

	auction.Destroy(func() {
		s.mu.Lock()
		delete(s.auctions, auctionID)
		s.mu.Unlock()
	})
	s.log.Info("Auction destroyed", "auction_id", auctionID)
	return nil
}

// Restore rebuilds live engines from persisted records after a restart.
// Started auctions are replayed (start stamp, then the accepted bid
// history) before the event bridge is attached, so replay does not
// republish lifecycle events.
func (s *AuctionService) Restore(ctx context.Context) error {
	for _, status := range []domain.AuctionStatus{domain.StatusCreated, domain.StatusStarted} {
		records, err := s.auctionRepo.ListByStatus(ctx, status)
		if err != nil {
			return err
		}
		for _, record := range records {
			if err := s.restoreOne(ctx, record); err != nil {
				s.log.Error("Failed to restore auction", "auction_id", record.ID, "error", err)
			}
		}
	}
	return nil
}

func (s *AuctionService) restoreOne(ctx context.Context, record *domain.AuctionRecord) error {
	s.mu.RLock()
	_, exists := s.auctions[record.ID]
	s.mu.RUnlock()
	if exists {
		return nil
	}

	auction, err := domain.NewAuction(domain.AuctionOptions{
		ID:           record.ID,
		OpenPrice:    &record.OpenPrice,
		MinPrice:     &record.MinPrice,
		Increment:    &record.Increment,
		MinIncrement: &record.MinIncrement,
		SaleID:       record.SaleID,
		SaleDate:     record.SaleDate,
	}, nil)
	if err != nil {
		return err
	}

	if record.Status == domain.StatusStarted {
		if _, err := s.replayStart(ctx, auction, record); err != nil {
			auction.Destroy(nil)
			return err
		}
	}

	if s.authorizer != nil {
		if err := auction.Authorize(s.authorizer.Gate()); err != nil {
			auction.Destroy(nil)
			return err
		}
	}
	s.attachBridge(auction)

	s.mu.Lock()
	s.auctions[record.ID] = auction
	s.mu.Unlock()

	s.log.Info("Auction restored", "auction_id", record.ID, "status", record.Status)
	return nil
}

func (s *AuctionService) replayStart(ctx context.Context, auction *domain.Auction, record *domain.AuctionRecord) (domain.AuctionData, error) {
	done := make(chan error, 1)
	auction.Start(domain.StartRequest{AgentID: record.Auctioneer}, func(err error, _ domain.AuctionData) {
		done <- err
	})
	if err := <-done; err != nil {
		return domain.AuctionData{}, err
	}

	bids, err := s.bidRepo.GetBidHistory(ctx, record.ID)
	if err != nil {
		return domain.AuctionData{}, err
	}
	for _, bid := range bids {
		if bid.Status != domain.BidAccepted {
			continue
		}
		price := bid.Price
		bidDone := make(chan error, 1)
		auction.Bid(domain.BidRequest{AgentID: bid.AgentID, Price: &price}, func(err error, _ domain.BidData) {
			bidDone <- err
		})
		if err := <-bidDone; err != nil {
			return domain.AuctionData{}, err
		}
	}
	return auction.Data(), nil
}

func (s *AuctionService) engine(auctionID string) (*domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	auction, ok := s.auctions[auctionID]
	if !ok {
		return nil, ErrAuctionNotFound
	}
	return auction, nil
}

// attachBridge wires an engine's events to persistence and pub/sub. The
// handlers run on the engine's dispatcher goroutine, after the triggering
// command has already committed.
func (s *AuctionService) attachBridge(auction *domain.Auction) {
	auction.On(domain.EventStarted, func(payload interface{}) {
		data, ok := payload.(domain.AuctionData)
		if !ok {
			return
		}
		ctx := context.Background()
		// The record must carry the auctioneer and the finalized open
		// price, or Restore cannot replay the start after a restart.
		if err := s.auctionRepo.MarkAuctionStarted(ctx, data.ID, data.Auctioneer, data.OpenPrice); err != nil {
			s.log.Error("Failed to persist started status", "auction_id", data.ID, "error", err)
		}
		if err := s.stateCache.SetAuctionStatus(ctx, data.ID, domain.StatusStarted); err != nil {
			s.log.Error("Failed to cache started status", "auction_id", data.ID, "error", err)
		}
		if err := s.stateCache.SetAuctionSnapshot(ctx, data); err != nil {
			s.log.Error("Failed to cache auction snapshot", "auction_id", data.ID, "error", err)
		}
		s.publish(ctx, &domain.LifecycleEvent{
			Event:     domain.EventStarted,
			AuctionID: data.ID,
			AgentID:   data.Auctioneer,
			Auction:   &data,
			Timestamp: time.Now(),
		})
	})

	auction.On(domain.EventChanged, func(payload interface{}) {
		data, ok := payload.(domain.AuctionData)
		if !ok || len(data.Bids) == 0 {
			return
		}
		ctx := context.Background()
		accepted := data.Bids[len(data.Bids)-1]
		if err := s.bidRepo.SaveBid(ctx, &accepted); err != nil {
			s.log.Error("Failed to persist bid", "auction_id", data.ID, "bid_id", accepted.ID, "error", err)
		}
		if err := s.stateCache.SetAuctionSnapshot(ctx, data); err != nil {
			s.log.Error("Failed to cache auction snapshot", "auction_id", data.ID, "error", err)
		}
		s.publish(ctx, &domain.LifecycleEvent{
			Event:     domain.EventChanged,
			AuctionID: data.ID,
			AgentID:   accepted.AgentID,
			Auction:   &data,
			Timestamp: time.Now(),
		})
	})

	auction.On(domain.EventEnded, func(payload interface{}) {
		data, ok := payload.(domain.AuctionData)
		if !ok {
			return
		}
		ctx := context.Background()
		if err := s.auctionRepo.UpdateAuctionStatus(ctx, data.ID, domain.StatusEnded); err != nil {
			s.log.Error("Failed to persist ended status", "auction_id", data.ID, "error", err)
		}
		if err := s.stateCache.SetAuctionStatus(ctx, data.ID, domain.StatusEnded); err != nil {
			s.log.Error("Failed to cache ended status", "auction_id", data.ID, "error", err)
		}
		if err := s.stateCache.SetAuctionSnapshot(ctx, data); err != nil {
			s.log.Error("Failed to cache auction snapshot", "auction_id", data.ID, "error", err)
		}
		if err := s.schedRepo.CancelJobsForAuction(ctx, data.ID); err != nil {
			s.log.Error("Failed to cancel jobs", "auction_id", data.ID, "error", err)
		}
		agentID := ""
		if data.Ended != nil {
			agentID = data.Ended.AgentID
		}
		s.publish(ctx, &domain.LifecycleEvent{
			Event:     domain.EventEnded,
			AuctionID: data.ID,
			AgentID:   agentID,
			Auction:   &data,
			Timestamp: time.Now(),
		})
	})

	auctionID := auction.ID()
	auction.On(domain.EventError, func(payload interface{}) {
		err, ok := payload.(error)
		if !ok {
			return
		}
		s.publish(context.Background(), &domain.LifecycleEvent{
			Event:     domain.EventError,
			AuctionID: auctionID,
			Message:   err.Error(),
			Timestamp: time.Now(),
		})
	})
}

func (s *AuctionService) publish(ctx context.Context, event *domain.LifecycleEvent) {
	if err := s.eventPub.PublishLifecycleEvent(ctx, event); err != nil {
		s.log.Error("Failed to publish lifecycle event", "event", event.Event, "auction_id", event.AuctionID, "error", err)
	}
}

// recordData projects a persisted record and its bid history the way a live
// engine would.
func recordData(record *domain.AuctionRecord, bids []*domain.BidData) domain.AuctionData {
	history := make([]domain.BidData, 0, len(bids))
	var best *domain.BidData
	for _, bid := range bids {
		history = append(history, *bid)
		if bid.Status == domain.BidAccepted && (best == nil || bid.Price > best.Price) {
			b := *bid
			b.AuctionID = ""
			b.SaleID = ""
			best = &b
		}
	}

	current := record.OpenPrice
	if best != nil {
		current = best.Price
	}

	return domain.AuctionData{
		ID:            record.ID,
		Auctioneer:    record.Auctioneer,
		SaleID:        record.SaleID,
		SaleDate:      record.SaleDate,
		Bids:          history,
		BestBid:       best,
		MinPrice:      record.MinPrice,
		OpenPrice:     record.OpenPrice,
		CurrentPrice:  current,
		Increment:     record.Increment,
		AuctionStatus: record.Status,
	}
}
