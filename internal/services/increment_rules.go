package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"auction-engine/internal/domain"

	"github.com/go-redis/redis/v8"
)

const (
	incrementRulesKey = "bid_increment_rules"
	defaultIncrement  = 1.0
)

// IncrementRuleStore keeps the tiered bid increments in Redis so every
// instance creates auctions with the same price rules.
type IncrementRuleStore struct {
	client *redis.Client
	rules  *domain.BidIncrementRules
}

func NewIncrementRuleStore(client *redis.Client) *IncrementRuleStore {
	return &IncrementRuleStore{
		client: client,
	}
}

func (s *IncrementRuleStore) LoadRules(ctx context.Context) error {
	data, err := s.client.Get(ctx, incrementRulesKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// TODO: make the bands configurable per sale during auction setup.
			s.rules = &domain.BidIncrementRules{
				Rules: map[string]float64{
					"0-100":   1.0,
					"100-500": 5.0,
					"500+":    10.0,
				},
			}
			return s.saveRules(ctx)
		}
		return err
	}

	var rules domain.BidIncrementRules
	if err := json.Unmarshal([]byte(data), &rules); err != nil {
		return err
	}

	s.rules = &rules
	return nil
}

func (s *IncrementRuleStore) saveRules(ctx context.Context) error {
	data, err := json.Marshal(s.rules)
	if err != nil {
		return err
	}

	return s.client.Set(ctx, incrementRulesKey, string(data), 0).Err()
}

func (s *IncrementRuleStore) MinimumBid(currentAmount float64) float64 {
	return currentAmount + s.IncrementFor(currentAmount)
}

func (s *IncrementRuleStore) IncrementFor(amount float64) float64 {
	if s.rules == nil {
		return defaultIncrement
	}
	for band, increment := range s.rules.Rules {
		if bandContains(band, amount) {
			return increment
		}
	}
	return defaultIncrement
}

// bandContains parses "lo-hi" as the half-open range [lo, hi) and "lo+"
// as everything from lo up. Malformed bands match nothing.
func bandContains(band string, amount float64) bool {
	if rest, ok := strings.CutSuffix(band, "+"); ok {
		lo, err := strconv.ParseFloat(rest, 64)
		return err == nil && amount >= lo
	}
	lo, hi, ok := strings.Cut(band, "-")
	if !ok {
		return false
	}
	low, err := strconv.ParseFloat(lo, 64)
	if err != nil {
		return false
	}
	high, err := strconv.ParseFloat(hi, 64)
	if err != nil {
		return false
	}
	return amount >= low && amount < high
}
