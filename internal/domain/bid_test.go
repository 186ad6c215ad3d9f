package domain

import (
	"fmt"
	"testing"
)

func price(v float64) *float64 {
	return &v
}

func sequentialIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("bid-%d", n)
	}
}

func TestNewBid(t *testing.T) {
	bid, err := NewBid(BidOptions{
		Price:     price(150),
		AuctionID: "A1",
		AgentID:   "agent-1",
	}, sequentialIDs())
	if err != nil {
		t.Fatalf("NewBid failed: %v", err)
	}

	if bid.ID() != "bid-1" {
		t.Errorf("expected injected id, got %q", bid.ID())
	}
	if bid.Status() != BidInitialized {
		t.Errorf("expected initialized status, got %q", bid.Status())
	}
	if bid.Placed() {
		t.Error("new bid must not be placed")
	}
	if bid.Price() != 150 {
		t.Errorf("expected price 150, got %v", bid.Price())
	}
}

func TestNewBid_DefaultsPriceWithMaxPrice(t *testing.T) {
	bid, err := NewBid(BidOptions{
		MaxPrice:  price(500),
		AuctionID: "A1",
		AgentID:   "agent-1",
	}, nil)
	if err != nil {
		t.Fatalf("NewBid failed: %v", err)
	}
	if bid.Price() != 0 {
		t.Errorf("expected price to default to 0, got %v", bid.Price())
	}
	if bid.ID() == "" {
		t.Error("expected a generated id")
	}
}

func TestNewBid_Validation(t *testing.T) {
	cases := []struct {
		name string
		opts BidOptions
		want string
	}{
		{"missing price", BidOptions{AuctionID: "A1", AgentID: "x"}, "Invalid bid price."},
		{"missing auction", BidOptions{Price: price(10), AgentID: "x"}, "Invalid auction id."},
		{"missing agent", BidOptions{Price: price(10), AuctionID: "A1"}, "Invalid agent."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBid(tc.opts, nil)
			if err == nil {
				t.Fatal("expected construction to fail")
			}
			bidErr, ok := err.(*BidError)
			if !ok {
				t.Fatalf("expected *BidError, got %T", err)
			}
			if bidErr.Message != tc.want {
				t.Errorf("expected %q, got %q", tc.want, bidErr.Message)
			}
		})
	}
}

func TestBid_AcceptPlacesOnce(t *testing.T) {
	bid, err := NewBid(BidOptions{Price: price(100), AuctionID: "A1", AgentID: "x"}, nil)
	if err != nil {
		t.Fatalf("NewBid failed: %v", err)
	}

	data, err := bid.Accept()
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if data.Status != BidAccepted || !data.Placed {
		t.Errorf("expected accepted+placed projection, got %+v", data)
	}
	if data.Timestamp.IsZero() {
		t.Error("expected placement timestamp")
	}

	if _, err := bid.Accept(); err == nil {
		t.Fatal("second Accept must fail")
	} else if err.Error() != "Bid already placed." {
		t.Errorf("expected placement guard message, got %q", err)
	}
	if _, err := bid.Reject(); err == nil {
		t.Fatal("Reject after Accept must fail")
	}
}

func TestBid_Reject(t *testing.T) {
	bid, err := NewBid(BidOptions{Price: price(100), AuctionID: "A1", AgentID: "x"}, nil)
	if err != nil {
		t.Fatalf("NewBid failed: %v", err)
	}

	data, err := bid.Reject()
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if data.Status != BidRejected {
		t.Errorf("expected rejected status, got %q", data.Status)
	}
}

func TestBidData_PublicStripsOwnerReferences(t *testing.T) {
	bid, err := NewBid(BidOptions{
		Price:     price(100),
		AuctionID: "A1",
		SaleID:    "S1",
		AgentID:   "x",
	}, nil)
	if err != nil {
		t.Fatalf("NewBid failed: %v", err)
	}

	data := bid.Data()
	if data.AuctionID != "A1" || data.SaleID != "S1" {
		t.Fatalf("full projection must carry owner references, got %+v", data)
	}

	pub := data.public()
	if pub.AuctionID != "" || pub.SaleID != "" {
		t.Errorf("public projection must not carry auctionId/saleId, got %+v", pub)
	}
}

func TestBid_Use(t *testing.T) {
	bid, err := NewBid(BidOptions{Price: price(100), AuctionID: "A1", AgentID: "x"}, nil)
	if err != nil {
		t.Fatalf("NewBid failed: %v", err)
	}

	var seen *Bid
	got := bid.Use(func(b *Bid, options interface{}) {
		seen = b
		if options != "opts" {
			t.Errorf("expected options to pass through, got %v", options)
		}
	}, "opts")

	if seen != bid || got != bid {
		t.Error("Use must invoke fn with the bid and return it")
	}
}
