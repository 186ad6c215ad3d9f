package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type BidStatus string

const (
	BidInitialized BidStatus = "initialized"
	BidAccepted    BidStatus = "accepted"
	BidRejected    BidStatus = "rejected"
)

// IDFunc generates identifiers for new entities. Injected so tests can
// supply deterministic ids.
type IDFunc func() string

func defaultIDFunc() string {
	return uuid.NewString()
}

// BidOptions enumerates every field a Bid can be constructed from.
type BidOptions struct {
	Price     *float64
	MaxPrice  *float64
	AuctionID string
	SaleID    string
	AgentID   string
}

// Bid is one price offer from an agent. It is owned by the Auction that
// created it and is resolved (accepted or rejected) exactly once.
type Bid struct {
	id        string
	agentID   string
	auctionID string
	saleID    string
	price     float64
	maxPrice  *float64
	status    BidStatus
	placed    bool
	timestamp time.Time
}

// BidData is the public projection of a Bid.
type BidData struct {
	ID        string    `json:"id"`
	Price     float64   `json:"price"`
	Placed    bool      `json:"placed"`
	Status    BidStatus `json:"status"`
	AgentID   string    `json:"agentId"`
	Timestamp time.Time `json:"timestamp"`
	AuctionID string    `json:"auctionId,omitempty"`
	SaleID    string    `json:"saleId,omitempty"`
}

// public strips the owning-auction references; bestBid and outBid
// projections never carry auctionId or saleId.
func (d BidData) public() BidData {
	d.AuctionID = ""
	d.SaleID = ""
	return d
}

// NewBid validates options field by field and returns an initialized bid.
// A price is required unless a maxPrice ceiling is supplied, in which case
// the price defaults to 0.
func NewBid(opts BidOptions, newID IDFunc) (*Bid, error) {
	if (opts.Price == nil || math.IsNaN(*opts.Price)) && opts.MaxPrice == nil {
		return nil, NewBidError("Invalid bid price.")
	}
	if opts.AuctionID == "" {
		return nil, NewBidError("Invalid auction id.")
	}
	if opts.AgentID == "" {
		return nil, NewBidError("Invalid agent.")
	}

	if newID == nil {
		newID = defaultIDFunc
	}

	price := 0.0
	if opts.Price != nil {
		price = *opts.Price
	}

	return &Bid{
		id:        newID(),
		agentID:   opts.AgentID,
		auctionID: opts.AuctionID,
		saleID:    opts.SaleID,
		price:     price,
		maxPrice:  opts.MaxPrice,
		status:    BidInitialized,
	}, nil
}

// place stamps the bid. A bid may be placed at most once; a second call
// returns nil so callers can detect double placement without an error.
func (b *Bid) place() *Bid {
	if b.placed {
		return nil
	}
	b.placed = true
	b.timestamp = time.Now()
	return b
}

// Accept places the bid and marks it as the terminal accepted state.
func (b *Bid) Accept() (BidData, error) {
	if b.place() == nil {
		return BidData{}, NewBidError("Bid already placed.")
	}
	b.status = BidAccepted
	return b.Data(), nil
}

// Reject places the bid and marks it as the terminal rejected state.
func (b *Bid) Reject() (BidData, error) {
	if b.place() == nil {
		return BidData{}, NewBidError("Bid already placed.")
	}
	b.status = BidRejected
	return b.Data(), nil
}

// Use invokes fn with the bid; an extension hook for caller-defined side
// effects.
func (b *Bid) Use(fn func(*Bid, interface{}), options interface{}) *Bid {
	if fn != nil {
		fn(b, options)
	}
	return b
}

func (b *Bid) Data() BidData {
	return BidData{
		ID:        b.id,
		Price:     b.price,
		Placed:    b.placed,
		Status:    b.status,
		AgentID:   b.agentID,
		Timestamp: b.timestamp,
		AuctionID: b.auctionID,
		SaleID:    b.saleID,
	}
}

func (b *Bid) ID() string          { return b.id }
func (b *Bid) AgentID() string     { return b.agentID }
func (b *Bid) AuctionID() string   { return b.auctionID }
func (b *Bid) Price() float64      { return b.price }
func (b *Bid) MaxPrice() *float64  { return b.maxPrice }
func (b *Bid) Status() BidStatus   { return b.status }
func (b *Bid) Placed() bool        { return b.placed }
func (b *Bid) Timestamp() time.Time { return b.timestamp }
