package domain

import (
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"
)

type AuctionStatus string

const (
	StatusCreated AuctionStatus = "created"
	StatusStarted AuctionStatus = "started"
	StatusEnded   AuctionStatus = "ended"
)

// Command names a state-mutating auction operation, as seen by the
// authorization gate.
type Command string

const (
	CommandStart Command = "start"
	CommandBid   Command = "bid"
	CommandEnd   Command = "end"
)

// Authorizer is an externally supplied capability consulted before every
// state-mutating command. It receives the command name and the raw request
// data and reports the decision through done; a non-nil error vetoes the
// command before any validation or mutation happens.
type Authorizer func(cmd Command, data interface{}, done func(err error))

// Callback receives a command outcome. Invoked exactly once, asynchronously,
// never with both an error and a result.
type Callback func(err error, data AuctionData)

// BidCallback receives a bid command outcome.
type BidCallback func(err error, bid BidData)

// Stamp records who triggered a lifecycle transition and when.
type Stamp struct {
	AgentID   string    `json:"agentId"`
	Timestamp time.Time `json:"timestamp"`
}

// StartRequest carries the start command payload. A supplied OpenPrice
// overwrites the auction's opening price before validation.
type StartRequest struct {
	AgentID   string   `json:"agentId"`
	OpenPrice *float64 `json:"openPrice,omitempty"`
}

// BidRequest carries the bid command payload.
type BidRequest struct {
	AgentID  string   `json:"agentId"`
	Price    *float64 `json:"price,omitempty"`
	MaxPrice *float64 `json:"maxPrice,omitempty"`
}

// EndRequest carries the end command payload.
type EndRequest struct {
	AgentID string `json:"agentId"`
}

// AuctionOptions enumerates every recognized construction field. Derived
// fields (status, bids, bestBid, outBid, started, ended) are never
// caller-supplied.
type AuctionOptions struct {
	ID            string
	OpenPrice     *float64
	MinPrice      *float64
	Increment     *float64
	MinIncrement  *float64
	SaleID        string
	SaleDate      *time.Time
	Agents        []string
	Authorization Authorizer

	// NewID and Dispatcher are injectable capabilities; nil selects the
	// uuid generator and the serial dispatcher.
	NewID      IDFunc
	Dispatcher Dispatcher
}

func (o AuctionOptions) check() error {
	if o.ID == "" {
		return NewAuctionError("Invalid auction ID.")
	}
	if o.OpenPrice == nil || math.IsNaN(*o.OpenPrice) {
		return NewAuctionError("Invalid open price.")
	}
	if o.MinPrice != nil && math.IsNaN(*o.MinPrice) {
		return NewAuctionError("Invalid minimum price.")
	}
	return nil
}

// Auction is the aggregate root: it owns lifecycle state, price rules and
// the ordered bid history, and emits lifecycle events. Commands mutate
// state synchronously; callbacks and event handlers are delivered
// asynchronously through the dispatcher.
type Auction struct {
	mu sync.Mutex

	id           string
	agents       []string
	saleID       string
	saleDate     *time.Time
	status       AuctionStatus
	openPrice    float64
	minPrice     float64
	increment    float64
	minIncrement float64
	bids         []*Bid
	bestBid      *BidData
	outBid       *BidData
	started      *Stamp
	ended        *Stamp
	destroyed    bool

	auth       Authorizer
	newID      IDFunc
	dispatcher Dispatcher
	events     emitter
}

// AuctionData is the public projection of an Auction.
type AuctionData struct {
	ID            string        `json:"id"`
	Agents        []string      `json:"agents"`
	Auctioneer    string        `json:"auctioneer"`
	Started       *Stamp        `json:"started"`
	Ended         *Stamp        `json:"ended"`
	SaleID        string        `json:"saleId"`
	SaleDate      *time.Time    `json:"saleDate"`
	Bids          []BidData     `json:"bids"`
	OutBid        *BidData      `json:"outBid"`
	BestBid       *BidData      `json:"bestBid"`
	MinPrice      float64       `json:"minPrice"`
	OpenPrice     float64       `json:"openPrice"`
	CurrentPrice  float64       `json:"currentPrice"`
	Increment     float64       `json:"increment"`
	AuctionStatus AuctionStatus `json:"auctionStatus"`
}

// NewAuction validates the options and builds an auction in the created
// state. With no callback, a validation failure is returned synchronously;
// with a callback, the failure is delivered asynchronously to it and the
// (unusable) instance is still returned so listeners can be attached.
func NewAuction(opts AuctionOptions, fn Callback) (*Auction, error) {
	a := &Auction{
		auth:       opts.Authorization,
		newID:      opts.NewID,
		dispatcher: opts.Dispatcher,
	}
	if a.newID == nil {
		a.newID = defaultIDFunc
	}
	if a.dispatcher == nil {
		a.dispatcher = NewSerialDispatcher()
	}
	a.Reset()

	if err := opts.check(); err != nil {
		if fn == nil {
			a.dispatcher.Close()
			return nil, err
		}
		a.dispatcher.Dispatch(func() { fn(err, AuctionData{}) })
		return a, nil
	}

	a.merge(opts)

	if fn != nil {
		snapshot := a.Data()
		a.dispatcher.Dispatch(func() { fn(nil, snapshot) })
	}
	return a, nil
}

// merge applies the caller-supplied fields on top of the reset defaults.
func (a *Auction) merge(opts AuctionOptions) {
	a.id = opts.ID
	a.openPrice = *opts.OpenPrice
	if opts.MinPrice != nil {
		a.minPrice = *opts.MinPrice
	}
	if opts.Increment != nil {
		a.increment = *opts.Increment
	}
	if opts.MinIncrement != nil {
		a.minIncrement = *opts.MinIncrement
	}
	a.saleID = opts.SaleID
	a.saleDate = opts.SaleDate
	a.agents = opts.Agents
}

// Reset forces the auction back to the created state with all derived
// fields cleared. A testing and reinitialization aid, not a lifecycle
// transition.
func (a *Auction) Reset() *Auction {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bids = nil
	a.outBid = nil
	a.bestBid = nil
	a.started = nil
	a.ended = nil
	a.saleID = ""
	a.saleDate = nil
	a.minPrice = 0
	a.openPrice = 0
	a.increment = 1
	a.minIncrement = 1
	a.destroyed = false
	a.status = StatusCreated
	return a
}

// On registers a handler for one event kind. Handlers run on the
// dispatcher goroutine, never inside the triggering command.
func (a *Auction) On(event Event, handler EventHandler) *Auction {
	a.events.on(event, handler)
	return a
}

// Authorize installs the authorization gate for subsequent commands.
func (a *Auction) Authorize(auth Authorizer) error {
	if auth == nil {
		return NewAuctionError("Authorize only accepts functions")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.auth = auth
	return nil
}

// Start transitions the auction from created to started.
func (a *Auction) Start(data StartRequest, fn Callback) *Auction {
	a.withAuth(CommandStart, data, func() { a.runStart(data, fn) }, func(err error) {
		a.callback(fn, err, AuctionData{})
	})
	return a
}

// Bid constructs, validates and resolves one bid against the current
// state. Accepted bids become the new bestBid and join the bid history;
// rejected bids leave the auction untouched.
func (a *Auction) Bid(data BidRequest, fn BidCallback) *Auction {
	a.withAuth(CommandBid, data, func() { a.runBid(data, fn) }, func(err error) {
		a.bidCallback(fn, err, BidData{})
	})
	return a
}

// End transitions the auction from started to ended.
func (a *Auction) End(data EndRequest, fn Callback) *Auction {
	a.withAuth(CommandEnd, data, func() { a.runEnd(data, fn) }, func(err error) {
		a.callback(fn, err, AuctionData{})
	})
	return a
}

// Destroy marks the auction destroyed, detaches every event listener and
// stops the dispatcher. All further commands fail with "Auction destroyed."
func (a *Auction) Destroy(fn func()) {
	a.mu.Lock()
	a.destroyed = true
	a.mu.Unlock()
	a.events.removeAll()
	a.dispatcher.Close()
	if fn != nil {
		fn()
	}
}

// Use invokes fn with the auction; an extension hook for caller-defined
// side effects.
func (a *Auction) Use(fn func(*Auction, interface{}), options interface{}) *Auction {
	if fn != nil {
		fn(a, options)
	}
	return a
}

func (a *Auction) withAuth(cmd Command, data interface{}, run func(), fail func(error)) {
	a.mu.Lock()
	auth := a.auth
	a.mu.Unlock()
	if auth == nil {
		run()
		return
	}
	auth(cmd, data, func(err error) {
		if err != nil {
			fail(err)
			return
		}
		run()
	})
}

func (a *Auction) runStart(data StartRequest, fn Callback) {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		a.callback(fn, NewAuctionError("Auction destroyed."), AuctionData{})
		return
	}

	// An opening price supplied at start time overwrites the stored one
	// before validation, so the price can be finalized here.
	// NaN compares unequal to zero, so it overwrites too and is caught
	// by the opening-price validation below.
	if data.OpenPrice != nil && *data.OpenPrice != 0 {
		a.openPrice = *data.OpenPrice
	}

	var message string
	switch {
	case data.AgentID == "":
		message = "Invalid agent."
	case a.status == StatusEnded:
		message = "Auction already ended."
	case a.status == StatusStarted:
		message = "Auction already started."
	case math.IsNaN(a.openPrice) || a.openPrice <= 0:
		message = "Invalid opening price."
	}

	if message != "" {
		a.mu.Unlock()
		err := NewAuctionError(message)
		a.emit(EventError, err)
		a.callback(fn, err, AuctionData{})
		return
	}

	a.status = StatusStarted
	a.started = &Stamp{AgentID: data.AgentID, Timestamp: time.Now()}
	snapshot := a.dataLocked()
	a.mu.Unlock()

	a.emit(EventStarted, snapshot)
	a.callback(fn, nil, snapshot)
}

func (a *Auction) runBid(data BidRequest, fn BidCallback) {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		a.bidCallback(fn, NewAuctionError("Auction destroyed."), BidData{})
		return
	}

	// The first bid raises over the opening price by minIncrement; later
	// bids raise over the best bid by increment.
	plus := a.increment
	if len(a.bids) == 0 {
		plus = a.minIncrement
	}

	// Defensive normalization: the stored bestBid never carries the
	// owning-auction references.
	if a.bestBid != nil {
		stripped := a.bestBid.public()
		a.bestBid = &stripped
	}

	bid, err := NewBid(BidOptions{
		Price:     data.Price,
		MaxPrice:  data.MaxPrice,
		AuctionID: a.id,
		SaleID:    a.saleID,
		AgentID:   data.AgentID,
	}, a.newID)
	if err != nil {
		a.mu.Unlock()
		a.bidCallback(fn, err, BidData{})
		return
	}

	price := bid.Price()
	floor := a.openPrice
	if a.bestBid != nil {
		floor = a.bestBid.Price
	}

	var message string
	switch {
	case data.AgentID == "":
		message = "Invalid agent."
	case bid.MaxPrice() != nil && price > *bid.MaxPrice():
		message = "Invalid bid price."
	case a.status == StatusCreated:
		message = "Auction not started."
	case a.status == StatusEnded:
		message = "Auction already ended."
	case price < floor+plus:
		message = fmt.Sprintf("Bid price %s must be %s higher than the current bid price $%s.",
			formatPrice(price), formatPrice(plus), formatPrice(floor))
	case price <= a.openPrice:
		message = fmt.Sprintf("Bid price %s must be at least %s higher than the current bid price $%s.",
			formatPrice(price), formatPrice(plus), formatPrice(a.openPrice))
	case a.bestBid != nil && a.bestBid.Price > price:
		// Unreachable once the floor check holds; kept as a guard.
		message = "Invalid bid price"
	}

	if message != "" {
		bid.Reject()
		a.mu.Unlock()
		cmdErr := NewAuctionError(message)
		a.emit(EventError, cmdErr)
		a.bidCallback(fn, cmdErr, BidData{})
		return
	}

	accepted, _ := bid.Accept()
	a.outBid = a.bestBid
	best := accepted.public()
	a.bestBid = &best
	a.bids = append(a.bids, bid)
	snapshot := a.dataLocked()
	a.mu.Unlock()

	a.emit(EventChanged, snapshot)
	a.bidCallback(fn, nil, accepted)
}

func (a *Auction) runEnd(data EndRequest, fn Callback) {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		a.callback(fn, NewAuctionError("Auction destroyed."), AuctionData{})
		return
	}

	var message string
	switch {
	case data.AgentID == "":
		message = "Invalid agent."
	case a.status == StatusEnded:
		message = "Auction already ended."
	case a.status != StatusStarted:
		message = "Auction not started."
	}

	if message != "" {
		a.mu.Unlock()
		err := NewAuctionError(message)
		a.emit(EventError, err)
		a.callback(fn, err, AuctionData{})
		return
	}

	a.status = StatusEnded
	a.ended = &Stamp{AgentID: data.AgentID, Timestamp: time.Now()}
	snapshot := a.dataLocked()
	a.mu.Unlock()

	a.emit(EventEnded, snapshot)
	a.callback(fn, nil, snapshot)
}

func (a *Auction) emit(event Event, payload interface{}) {
	for _, handler := range a.events.snapshot(event) {
		handler := handler
		a.dispatcher.Dispatch(func() { handler(payload) })
	}
}

func (a *Auction) callback(fn Callback, err error, data AuctionData) {
	if fn == nil {
		return
	}
	a.dispatcher.Dispatch(func() { fn(err, data) })
}

func (a *Auction) bidCallback(fn BidCallback, err error, bid BidData) {
	if fn == nil {
		return
	}
	a.dispatcher.Dispatch(func() { fn(err, bid) })
}

// Data returns the public projection of the auction.
func (a *Auction) Data() AuctionData {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dataLocked()
}

func (a *Auction) dataLocked() AuctionData {
	bids := make([]BidData, 0, len(a.bids))
	for _, b := range a.bids {
		bids = append(bids, b.Data())
	}

	current := a.openPrice
	if a.bestBid != nil {
		current = a.bestBid.Price
	}

	auctioneer := ""
	if a.started != nil {
		auctioneer = a.started.AgentID
	}

	return AuctionData{
		ID:            a.id,
		Agents:        a.agents,
		Auctioneer:    auctioneer,
		Started:       a.started,
		Ended:         a.ended,
		SaleID:        a.saleID,
		SaleDate:      a.saleDate,
		Bids:          bids,
		OutBid:        a.outBid,
		BestBid:       a.bestBid,
		MinPrice:      a.minPrice,
		OpenPrice:     a.openPrice,
		CurrentPrice:  current,
		Increment:     a.increment,
		AuctionStatus: a.status,
	}
}

func (a *Auction) ID() string {
	return a.id
}

func (a *Auction) Status() AuctionStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Auction) CurrentPrice() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bestBid != nil {
		return a.bestBid.Price
	}
	return a.openPrice
}

func (a *Auction) OpenPrice() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openPrice
}

func (a *Auction) BestBid() *BidData {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bestBid == nil {
		return nil
	}
	best := *a.bestBid
	return &best
}

func (a *Auction) OutBid() *BidData {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.outBid == nil {
		return nil
	}
	out := *a.outBid
	return &out
}

func (a *Auction) BidCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.bids)
}

func (a *Auction) Started() *Stamp {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started
}

func (a *Auction) Ended() *Stamp {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ended
}

func (a *Auction) Destroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}

// formatPrice renders a price the way it appears in validation messages:
// the shortest decimal representation that round-trips.
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
