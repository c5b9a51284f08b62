package types

import (
	"errors"
	"fmt"
)

// The closed set of domain errors. Every rejected command maps to exactly one
// of these; they are recoverable values, never panics.
var (
	ErrUnknownAuction       = errors.New("unknown auction")
	ErrUnknownBid           = errors.New("unknown bid")
	ErrAuctionAlreadyExists = errors.New("auction already exists")
	ErrBidAlreadyExists     = errors.New("bid already exists")
	ErrAuctionHasEnded      = errors.New("auction has ended")

	// ErrAuctionNotFound belongs to the wire error vocabulary alongside
	// ErrUnknownAuction; no command rejects with it today, but API clients
	// are expected to handle both spellings.
	ErrAuctionNotFound = errors.New("auction not found")

	ErrSellerCannotBid        = errors.New("seller cannot place bids on own auction")
	ErrSupportCannotBid       = errors.New("support users cannot place bids")
	ErrCurrencyMismatch       = errors.New("bid currency does not match auction currency")
	ErrAlreadyPlacedBid       = errors.New("bidder already placed a bid")
	ErrCannotRetractOthersBid = errors.New("cannot retract another user's bid")
)

// BelowHighestBidError rejects a bid that does not clear the current bar: the
// highest active bid plus the minimum raise, or the reserve price when the
// auction has no bids yet.
type BelowHighestBidError struct {
	Highest Amount
}

func (e BelowHighestBidError) Error() string {
	return fmt.Sprintf("bid must exceed %s", e.Highest)
}

// IsDomainError reports whether err belongs to the closed domain error set,
// as opposed to an infrastructure failure.
func IsDomainError(err error) bool {
	var below BelowHighestBidError
	if errors.As(err, &below) {
		return true
	}
	for _, domain := range []error{
		ErrUnknownAuction, ErrUnknownBid, ErrAuctionAlreadyExists,
		ErrBidAlreadyExists, ErrAuctionHasEnded, ErrAuctionNotFound,
		ErrSellerCannotBid, ErrSupportCannotBid, ErrCurrencyMismatch,
		ErrAlreadyPlacedBid, ErrCannotRetractOthersBid,
	} {
		if errors.Is(err, domain) {
			return true
		}
	}
	return false
}
