package domain

// AuctionError reports lifecycle, authorization and command validation
// failures. The message text is part of the public contract.
type AuctionError struct {
	Message string
}

func NewAuctionError(message string) *AuctionError {
	return &AuctionError{Message: message}
}

func (e *AuctionError) Error() string {
	return e.Message
}

// BidError reports bid construction and placement failures.
type BidError struct {
	Message string
}

func NewBidError(message string) *BidError {
	return &BidError{Message: message}
}

func (e *BidError) Error() string {
	return e.Message
}
