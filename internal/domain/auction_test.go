package domain

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func nan() float64 {
	return math.NaN()
}

func newTestAuction(t *testing.T, open float64) *Auction {
	t.Helper()
	a, err := NewAuction(AuctionOptions{
		ID:        "A1",
		OpenPrice: price(open),
		NewID:     sequentialIDs(),
	}, nil)
	if err != nil {
		t.Fatalf("NewAuction failed: %v", err)
	}
	return a
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		return nil
	}
}

func mustStart(t *testing.T, a *Auction, agentID string) {
	t.Helper()
	done := make(chan error, 1)
	a.Start(StartRequest{AgentID: agentID}, func(err error, _ AuctionData) { done <- err })
	if err := waitErr(t, done); err != nil {
		t.Fatalf("start failed: %v", err)
	}
}

func placeBid(t *testing.T, a *Auction, agentID string, amount float64) (BidData, error) {
	t.Helper()
	done := make(chan error, 1)
	var placed BidData
	a.Bid(BidRequest{AgentID: agentID, Price: price(amount)}, func(err error, bid BidData) {
		placed = bid
		done <- err
	})
	err := waitErr(t, done)
	return placed, err
}

func TestNewAuction(t *testing.T) {
	a := newTestAuction(t, 100)

	if a.Status() != StatusCreated {
		t.Errorf("expected created status, got %q", a.Status())
	}
	if a.BidCount() != 0 {
		t.Errorf("expected no bids, got %d", a.BidCount())
	}
	if a.CurrentPrice() != 100 {
		t.Errorf("expected current price to derive from open price, got %v", a.CurrentPrice())
	}

	data := a.Data()
	if data.ID != "A1" || data.OpenPrice != 100 || data.AuctionStatus != StatusCreated {
		t.Errorf("unexpected projection: %+v", data)
	}
	if data.BestBid != nil || data.OutBid != nil {
		t.Error("fresh auction must not have bestBid/outBid")
	}
	if data.Started != nil || data.Ended != nil {
		t.Error("fresh auction must not carry lifecycle stamps")
	}
}

func TestNewAuction_ValidationWithoutCallback(t *testing.T) {
	cases := []struct {
		name string
		opts AuctionOptions
		want string
	}{
		{"missing id", AuctionOptions{OpenPrice: price(100)}, "Invalid auction ID."},
		{"missing open price", AuctionOptions{ID: "A1"}, "Invalid open price."},
		{"bad minimum price", AuctionOptions{ID: "A1", OpenPrice: price(100), MinPrice: price(nan())}, "Invalid minimum price."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := NewAuction(tc.opts, nil)
			if err == nil {
				t.Fatal("expected construction to fail")
			}
			if a != nil {
				t.Error("expected nil auction on synchronous failure")
			}
			var auctionErr *AuctionError
			if !errors.As(err, &auctionErr) {
				t.Fatalf("expected *AuctionError, got %T", err)
			}
			if auctionErr.Message != tc.want {
				t.Errorf("expected %q, got %q", tc.want, auctionErr.Message)
			}
		})
	}
}

func TestNewAuction_ValidationWithCallback(t *testing.T) {
	done := make(chan error, 1)
	a, err := NewAuction(AuctionOptions{OpenPrice: price(100)}, func(err error, _ AuctionData) {
		done <- err
	})
	if err != nil {
		t.Fatalf("expected the failure to go to the callback, got %v", err)
	}
	if a == nil {
		t.Fatal("expected an instance even on callback-delivered failure")
	}

	cbErr := waitErr(t, done)
	if cbErr == nil || cbErr.Error() != "Invalid auction ID." {
		t.Errorf("expected Invalid auction ID., got %v", cbErr)
	}
}

func TestNewAuction_CallbackReceivesData(t *testing.T) {
	type result struct {
		err  error
		data AuctionData
	}
	done := make(chan result, 1)
	_, err := NewAuction(AuctionOptions{ID: "A1", OpenPrice: price(100)}, func(err error, data AuctionData) {
		done <- result{err, data}
	})
	if err != nil {
		t.Fatalf("NewAuction failed: %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("callback got error: %v", r.err)
		}
		if r.data.ID != "A1" || r.data.AuctionStatus != StatusCreated {
			t.Errorf("unexpected callback data: %+v", r.data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for construction callback")
	}
}

func TestStart(t *testing.T) {
	a := newTestAuction(t, 100)
	before := time.Now()
	mustStart(t, a, "auctioneer")

	if a.Status() != StatusStarted {
		t.Errorf("expected started status, got %q", a.Status())
	}
	started := a.Started()
	if started == nil || started.AgentID != "auctioneer" {
		t.Fatalf("expected started stamp for auctioneer, got %+v", started)
	}
	if started.Timestamp.Before(before) || started.Timestamp.After(time.Now()) {
		t.Error("started timestamp out of range")
	}
	if a.Data().Auctioneer != "auctioneer" {
		t.Error("auctioneer must derive from the started stamp")
	}
}

func TestStart_FinalizesOpenPrice(t *testing.T) {
	a := newTestAuction(t, 100)
	done := make(chan error, 1)
	a.Start(StartRequest{AgentID: "auctioneer", OpenPrice: price(2000)}, func(err error, _ AuctionData) {
		done <- err
	})
	if err := waitErr(t, done); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if a.OpenPrice() != 2000 {
		t.Errorf("expected open price 2000, got %v", a.OpenPrice())
	}
}

func TestStart_Validation(t *testing.T) {
	t.Run("invalid agent", func(t *testing.T) {
		a := newTestAuction(t, 100)
		done := make(chan error, 1)
		a.Start(StartRequest{}, func(err error, _ AuctionData) { done <- err })
		err := waitErr(t, done)
		if err == nil || err.Error() != "Invalid agent." {
			t.Errorf("expected Invalid agent., got %v", err)
		}
		if a.Status() != StatusCreated {
			t.Error("failed start must not change status")
		}
	})

	t.Run("invalid opening price", func(t *testing.T) {
		a, err := NewAuction(AuctionOptions{ID: "A1", OpenPrice: price(0)}, nil)
		if err != nil {
			t.Fatalf("NewAuction failed: %v", err)
		}
		done := make(chan error, 1)
		a.Start(StartRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
		cbErr := waitErr(t, done)
		if cbErr == nil || cbErr.Error() != "Invalid opening price." {
			t.Errorf("expected Invalid opening price., got %v", cbErr)
		}
		if a.Status() != StatusCreated {
			t.Error("failed start must not change status")
		}
	})

	t.Run("NaN opening price at start", func(t *testing.T) {
		a := newTestAuction(t, 100)
		done := make(chan error, 1)
		a.Start(StartRequest{AgentID: "auctioneer", OpenPrice: price(nan())}, func(err error, _ AuctionData) { done <- err })
		err := waitErr(t, done)
		if err == nil || err.Error() != "Invalid opening price." {
			t.Errorf("expected Invalid opening price., got %v", err)
		}
		if a.Status() != StatusCreated {
			t.Error("failed start must not change status")
		}
	})

	t.Run("already started", func(t *testing.T) {
		a := newTestAuction(t, 100)
		mustStart(t, a, "auctioneer")

		done := make(chan error, 1)
		a.Start(StartRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
		err := waitErr(t, done)
		if err == nil || !strings.Contains(err.Error(), "already started") {
			t.Errorf("expected already started error, got %v", err)
		}
		if a.Status() != StatusStarted {
			t.Error("second start must not change status")
		}
	})

	t.Run("already ended", func(t *testing.T) {
		a := newTestAuction(t, 100)
		mustStart(t, a, "auctioneer")
		done := make(chan error, 1)
		a.End(EndRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
		if err := waitErr(t, done); err != nil {
			t.Fatalf("end failed: %v", err)
		}

		done = make(chan error, 1)
		a.Start(StartRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
		err := waitErr(t, done)
		if err == nil || !strings.Contains(err.Error(), "already ended") {
			t.Errorf("expected already ended error, got %v", err)
		}
	})
}

func TestEnd(t *testing.T) {
	a := newTestAuction(t, 100)
	mustStart(t, a, "auctioneer")

	done := make(chan error, 1)
	a.End(EndRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
	if err := waitErr(t, done); err != nil {
		t.Fatalf("end failed: %v", err)
	}

	if a.Status() != StatusEnded {
		t.Errorf("expected ended status, got %q", a.Status())
	}
	ended := a.Ended()
	if ended == nil || ended.AgentID != "auctioneer" || ended.Timestamp.After(time.Now()) {
		t.Errorf("unexpected ended stamp: %+v", ended)
	}
}

func TestEnd_Validation(t *testing.T) {
	t.Run("not started", func(t *testing.T) {
		a := newTestAuction(t, 100)
		done := make(chan error, 1)
		a.End(EndRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
		err := waitErr(t, done)
		if err == nil || !strings.Contains(err.Error(), "not started") {
			t.Errorf("expected not started error, got %v", err)
		}
	})

	t.Run("invalid agent", func(t *testing.T) {
		a := newTestAuction(t, 100)
		done := make(chan error, 1)
		a.End(EndRequest{}, func(err error, _ AuctionData) { done <- err })
		err := waitErr(t, done)
		if err == nil || err.Error() != "Invalid agent." {
			t.Errorf("expected Invalid agent., got %v", err)
		}
	})

	t.Run("already ended", func(t *testing.T) {
		a := newTestAuction(t, 100)
		mustStart(t, a, "auctioneer")
		done := make(chan error, 1)
		a.End(EndRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
		if err := waitErr(t, done); err != nil {
			t.Fatalf("end failed: %v", err)
		}

		done = make(chan error, 1)
		a.End(EndRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
		err := waitErr(t, done)
		if err == nil || !strings.Contains(err.Error(), "already ended") {
			t.Errorf("expected already ended error, got %v", err)
		}
	})
}

func TestBidCommand_FirstBidBoundaries(t *testing.T) {
	t.Run("exactly open price is rejected", func(t *testing.T) {
		a := newTestAuction(t, 100)
		mustStart(t, a, "auctioneer")

		_, err := placeBid(t, a, "x", 100)
		if err == nil {
			t.Fatal("bid at open price must be rejected")
		}
		if !strings.HasSuffix(err.Error(), "higher than the current bid price $100.") {
			t.Errorf("unexpected message: %q", err.Error())
		}
		if a.BidCount() != 0 || a.BestBid() != nil {
			t.Error("rejected bid must not mutate the auction")
		}
	})

	t.Run("open price plus minIncrement is accepted", func(t *testing.T) {
		a := newTestAuction(t, 100)
		mustStart(t, a, "auctioneer")

		bid, err := placeBid(t, a, "x", 101)
		if err != nil {
			t.Fatalf("bid failed: %v", err)
		}
		if !bid.Placed || bid.Status != BidAccepted {
			t.Errorf("expected placed accepted bid, got %+v", bid)
		}
		if a.BidCount() != 1 {
			t.Errorf("expected 1 bid, got %d", a.BidCount())
		}
	})
}

func TestBidCommand_IncrementBoundaries(t *testing.T) {
	a := newTestAuction(t, 100)
	mustStart(t, a, "auctioneer")

	first, err := placeBid(t, a, "x", 150)
	if err != nil {
		t.Fatalf("first bid failed: %v", err)
	}

	// One below bestBid.price + increment.
	_, err = placeBid(t, a, "y", 150)
	if err == nil {
		t.Fatal("bid below the increment must be rejected")
	}
	want := "Bid price 150 must be 1 higher than the current bid price $150."
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	// Exactly bestBid.price + increment.
	second, err := placeBid(t, a, "y", first.Price+1)
	if err != nil {
		t.Fatalf("minimum raise must be accepted: %v", err)
	}
	if second.Price != 151 {
		t.Errorf("expected price 151, got %v", second.Price)
	}
}

func TestBidCommand_BestAndOutBid(t *testing.T) {
	a := newTestAuction(t, 100)
	mustStart(t, a, "auctioneer")

	first, err := placeBid(t, a, "x", 150)
	if err != nil {
		t.Fatalf("first bid failed: %v", err)
	}
	second, err := placeBid(t, a, "y", 200)
	if err != nil {
		t.Fatalf("second bid failed: %v", err)
	}

	if a.BidCount() != 2 {
		t.Fatalf("expected 2 bids, got %d", a.BidCount())
	}

	best := a.BestBid()
	if best == nil || best.ID != second.ID || best.Price != 200 || best.AgentID != "y" {
		t.Errorf("unexpected bestBid: %+v", best)
	}
	out := a.OutBid()
	if out == nil || out.ID != first.ID || out.Price != 150 || out.AgentID != "x" {
		t.Errorf("unexpected outBid: %+v", out)
	}
	if best.AuctionID != "" || best.SaleID != "" || out.AuctionID != "" || out.SaleID != "" {
		t.Error("bestBid/outBid must not carry auctionId/saleId")
	}

	// The command callback keeps the full projection.
	if second.AuctionID != "A1" {
		t.Errorf("bid callback data must carry auctionId, got %+v", second)
	}
}

func TestBidCommand_Validation(t *testing.T) {
	t.Run("not started", func(t *testing.T) {
		a := newTestAuction(t, 100)
		_, err := placeBid(t, a, "x", 150)
		if err == nil || !strings.Contains(err.Error(), "not started") {
			t.Errorf("expected not started error, got %v", err)
		}
	})

	t.Run("already ended", func(t *testing.T) {
		a := newTestAuction(t, 100)
		mustStart(t, a, "auctioneer")
		done := make(chan error, 1)
		a.End(EndRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
		if err := waitErr(t, done); err != nil {
			t.Fatalf("end failed: %v", err)
		}

		_, err := placeBid(t, a, "x", 150)
		if err == nil || !strings.Contains(err.Error(), "already ended") {
			t.Errorf("expected already ended error, got %v", err)
		}
	})

	t.Run("invalid agent", func(t *testing.T) {
		a := newTestAuction(t, 100)
		_, err := placeBid(t, a, "", 150)
		if err == nil || err.Error() != "Invalid agent." {
			t.Errorf("expected Invalid agent., got %v", err)
		}
	})

	t.Run("missing price", func(t *testing.T) {
		a := newTestAuction(t, 100)
		mustStart(t, a, "auctioneer")

		done := make(chan error, 1)
		a.Bid(BidRequest{AgentID: "x"}, func(err error, _ BidData) { done <- err })
		err := waitErr(t, done)
		if err == nil || !strings.Contains(err.Error(), "Invalid bid price") {
			t.Errorf("expected Invalid bid price error, got %v", err)
		}
	})

	t.Run("price above maxPrice ceiling", func(t *testing.T) {
		a := newTestAuction(t, 100)
		mustStart(t, a, "auctioneer")

		done := make(chan error, 1)
		a.Bid(BidRequest{AgentID: "x", Price: price(300), MaxPrice: price(200)}, func(err error, _ BidData) {
			done <- err
		})
		err := waitErr(t, done)
		if err == nil || err.Error() != "Invalid bid price." {
			t.Errorf("expected Invalid bid price., got %v", err)
		}
		if a.BidCount() != 0 {
			t.Error("rejected bid must not be recorded")
		}
	})
}

func TestBidCommand_RejectionLeavesStateUntouched(t *testing.T) {
	a := newTestAuction(t, 100)
	mustStart(t, a, "auctioneer")

	accepted, err := placeBid(t, a, "x", 150)
	if err != nil {
		t.Fatalf("bid failed: %v", err)
	}

	if _, err := placeBid(t, a, "y", 150); err == nil {
		t.Fatal("expected rejection")
	}

	if a.BidCount() != 1 {
		t.Errorf("rejected bid must not grow the history, got %d", a.BidCount())
	}
	best := a.BestBid()
	if best == nil || best.ID != accepted.ID {
		t.Errorf("rejected bid must not change bestBid, got %+v", best)
	}
	if a.OutBid() != nil {
		t.Error("rejected bid must not set outBid")
	}
}

func TestBidCommand_FractionalPricesInMessage(t *testing.T) {
	a := newTestAuction(t, 100)
	mustStart(t, a, "auctioneer")

	if _, err := placeBid(t, a, "x", 150.5); err != nil {
		t.Fatalf("bid failed: %v", err)
	}

	_, err := placeBid(t, a, "y", 150.75)
	if err == nil {
		t.Fatal("expected rejection")
	}
	want := "Bid price 150.75 must be 1 higher than the current bid price $150.5."
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestAuctionFlow_Example(t *testing.T) {
	a := newTestAuction(t, 100)
	mustStart(t, a, "auctioneer")

	if _, err := placeBid(t, a, "x", 150); err != nil {
		t.Fatalf("bid x failed: %v", err)
	}
	_, err := placeBid(t, a, "y", 150)
	if err == nil {
		t.Fatal("equal bid must be rejected")
	}
	if !strings.Contains(err.Error(), "must be 1 higher than the current bid price $150.") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestEvents(t *testing.T) {
	a := newTestAuction(t, 100)

	events := make(chan Event, 16)
	a.On(EventStarted, func(interface{}) { events <- EventStarted })
	a.On(EventChanged, func(interface{}) { events <- EventChanged })
	a.On(EventEnded, func(interface{}) { events <- EventEnded })
	a.On(EventError, func(interface{}) { events <- EventError })

	expect := func(want Event) {
		t.Helper()
		select {
		case got := <-events:
			if got != want {
				t.Fatalf("expected %q event, got %q", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q event", want)
		}
	}

	mustStart(t, a, "auctioneer")
	expect(EventStarted)

	if _, err := placeBid(t, a, "x", 150); err != nil {
		t.Fatalf("bid failed: %v", err)
	}
	expect(EventChanged)

	if _, err := placeBid(t, a, "y", 150); err == nil {
		t.Fatal("expected rejection")
	}
	expect(EventError)

	done := make(chan error, 1)
	a.End(EndRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
	if err := waitErr(t, done); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	expect(EventEnded)
}

func TestEvents_ChangedCarriesSnapshot(t *testing.T) {
	a := newTestAuction(t, 100)
	snapshots := make(chan AuctionData, 1)
	a.On(EventChanged, func(payload interface{}) {
		if data, ok := payload.(AuctionData); ok {
			snapshots <- data
		}
	})

	mustStart(t, a, "auctioneer")
	if _, err := placeBid(t, a, "x", 150); err != nil {
		t.Fatalf("bid failed: %v", err)
	}

	select {
	case data := <-snapshots:
		if data.CurrentPrice != 150 || data.BestBid == nil || len(data.Bids) != 1 {
			t.Errorf("unexpected changed snapshot: %+v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for changed snapshot")
	}
}

func TestAuthorize(t *testing.T) {
	t.Run("rejects nil gate", func(t *testing.T) {
		a := newTestAuction(t, 100)
		if err := a.Authorize(nil); err == nil {
			t.Fatal("expected Authorize(nil) to fail")
		}
	})

	t.Run("gate failure blocks the command", func(t *testing.T) {
		a := newTestAuction(t, 100)
		startedEvents := make(chan struct{}, 1)
		a.On(EventStarted, func(interface{}) { startedEvents <- struct{}{} })

		gateErr := errors.New("not authorized")
		if err := a.Authorize(func(cmd Command, data interface{}, done func(error)) {
			done(gateErr)
		}); err != nil {
			t.Fatalf("Authorize failed: %v", err)
		}

		done := make(chan error, 1)
		a.Start(StartRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
		if err := waitErr(t, done); err != gateErr {
			t.Errorf("expected the gate error to pass through, got %v", err)
		}
		if a.Status() != StatusCreated {
			t.Error("vetoed start must not change status")
		}
		select {
		case <-startedEvents:
			t.Error("vetoed start must not emit started")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("role gate example", func(t *testing.T) {
		roles := map[string]string{
			"abc123": "auctioneer",
			"abc456": "bidder",
		}
		gate := func(cmd Command, data interface{}, done func(error)) {
			agentID := ""
			switch d := data.(type) {
			case StartRequest:
				agentID = d.AgentID
			case BidRequest:
				agentID = d.AgentID
			case EndRequest:
				agentID = d.AgentID
			}
			want := "bidder"
			if cmd == CommandStart || cmd == CommandEnd {
				want = "auctioneer"
			}
			if roles[agentID] != want {
				done(errors.New("not authorized"))
				return
			}
			done(nil)
		}

		a := newTestAuction(t, 100)
		if err := a.Authorize(gate); err != nil {
			t.Fatalf("Authorize failed: %v", err)
		}

		done := make(chan error, 1)
		a.Start(StartRequest{AgentID: "abc456"}, func(err error, _ AuctionData) { done <- err })
		if err := waitErr(t, done); err == nil {
			t.Fatal("bidder must not start the auction")
		}

		mustStart(t, a, "abc123")

		if _, err := placeBid(t, a, "abc123", 150); err == nil {
			t.Fatal("auctioneer must not bid")
		}
		if _, err := placeBid(t, a, "abc456", 150); err != nil {
			t.Fatalf("bidder must be allowed to bid: %v", err)
		}
	})

	t.Run("gate supplied at construction", func(t *testing.T) {
		calls := make(chan Command, 1)
		a, err := NewAuction(AuctionOptions{
			ID:        "A1",
			OpenPrice: price(100),
			Authorization: func(cmd Command, data interface{}, done func(error)) {
				calls <- cmd
				done(nil)
			},
		}, nil)
		if err != nil {
			t.Fatalf("NewAuction failed: %v", err)
		}

		mustStart(t, a, "auctioneer")
		select {
		case cmd := <-calls:
			if cmd != CommandStart {
				t.Errorf("expected start command, got %q", cmd)
			}
		default:
			t.Error("gate was not consulted")
		}
	})
}

func TestReset(t *testing.T) {
	a := newTestAuction(t, 100)
	mustStart(t, a, "auctioneer")
	if _, err := placeBid(t, a, "x", 150); err != nil {
		t.Fatalf("bid failed: %v", err)
	}

	a.Reset()

	data := a.Data()
	if data.AuctionStatus != StatusCreated {
		t.Errorf("expected created status after reset, got %q", data.AuctionStatus)
	}
	if len(data.Bids) != 0 || data.BestBid != nil || data.OutBid != nil {
		t.Error("reset must clear bid state")
	}
	if data.Started != nil || data.Ended != nil {
		t.Error("reset must clear lifecycle stamps")
	}
	if data.OpenPrice != 0 || data.MinPrice != 0 || data.Increment != 1 {
		t.Errorf("reset must restore price defaults, got %+v", data)
	}
}

func TestDestroy(t *testing.T) {
	a := newTestAuction(t, 100)

	notified := make(chan struct{}, 1)
	a.On(EventStarted, func(interface{}) { notified <- struct{}{} })

	var called bool
	a.Destroy(func() { called = true })

	if !called {
		t.Error("Destroy must invoke its callback")
	}
	if !a.Destroyed() {
		t.Error("expected destroyed flag")
	}

	done := make(chan error, 1)
	a.Start(StartRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
	err := waitErr(t, done)
	if err == nil || err.Error() != "Auction destroyed." {
		t.Errorf("expected Auction destroyed., got %v", err)
	}
	if a.Status() != StatusCreated {
		t.Error("destroyed auction must not mutate")
	}

	select {
	case <-notified:
		t.Error("destroyed auction must not notify listeners")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDestroy_BlocksBidAndEnd(t *testing.T) {
	a := newTestAuction(t, 100)
	mustStart(t, a, "auctioneer")
	a.Destroy(nil)

	if _, err := placeBid(t, a, "x", 150); err == nil || err.Error() != "Auction destroyed." {
		t.Errorf("expected Auction destroyed. on bid, got %v", err)
	}

	done := make(chan error, 1)
	a.End(EndRequest{AgentID: "auctioneer"}, func(err error, _ AuctionData) { done <- err })
	if err := waitErr(t, done); err == nil || err.Error() != "Auction destroyed." {
		t.Errorf("expected Auction destroyed. on end, got %v", err)
	}
}

func TestUse(t *testing.T) {
	a := newTestAuction(t, 100)
	var seen *Auction
	got := a.Use(func(auction *Auction, options interface{}) {
		seen = auction
	}, nil)
	if seen != a || got != a {
		t.Error("Use must invoke fn with the auction and return it")
	}
}
