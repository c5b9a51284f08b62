package state

import (
	"sort"
	"time"

	"github.com/wallymathieu/auctions-site/types"
)

// AuctionState is the materialized projection of a single auction: the
// auction record, every bid ever accepted (tombstones included) and the
// effective end time. It is a pure fold over the auction's ordered history;
// replaying the same events always yields the same state.
//
// Methods return a new state and never mutate the receiver, so a rejected
// transition leaves no trace.
type AuctionState struct {
	Auction types.Auction
	// Bids holds all accepted bids in placement order, including retracted
	// ones. Audit history; never pruned.
	Bids []types.Bid
	// Expiry is the effective end time. It starts at Auction.Expiry and only
	// moves forward (anti-snipe extension).
	Expiry time.Time
}

// NewAuctionState returns the projection for a freshly registered auction.
func NewAuctionState(a types.Auction) AuctionState {
	return AuctionState{Auction: a, Expiry: a.Expiry}
}

// ActiveBids returns the non-retracted bids in placement order.
func (s AuctionState) ActiveBids() []types.Bid {
	active := make([]types.Bid, 0, len(s.Bids))
	for _, b := range s.Bids {
		if !b.Retracted() {
			active = append(active, b)
		}
	}
	return active
}

// HasEnded reports whether the auction's effective end has passed.
func (s AuctionState) HasEnded(now time.Time) bool {
	return now.After(s.Expiry)
}

// AddBid validates bid against the auction and its protocol and, on success,
// returns the state with the bid appended. Validation order is fixed:
// currency, seller, end time, then the protocol rule; the first failure
// wins.
func (s AuctionState) AddBid(bid types.Bid, now time.Time) (AuctionState, error) {
	if bid.Amount.Currency != s.Auction.Currency {
		return s, types.ErrCurrencyMismatch
	}
	if bid.Bidder.UserID() == s.Auction.Seller.UserID() {
		return s, types.ErrSellerCannotBid
	}
	if s.HasEnded(now) {
		return s, types.ErrAuctionHasEnded
	}

	next := s
	switch p := s.Auction.Protocol.(type) {
	case types.TimedAscending:
		highest, ok := s.highestActive()
		if !ok {
			// opening bid must clear the reserve
			if bid.Amount.Cmp(p.ReservePrice) < 0 {
				return s, types.BelowHighestBidError{Highest: p.ReservePrice}
			}
		} else if bid.Amount.Cmp(highest.Amount.Add(p.MinRaise)) <= 0 {
			return s, types.BelowHighestBidError{Highest: highest.Amount}
		}
		// anti-snipe: a bid near the end pushes the end out
		if extended := bid.PlacedAt.Add(p.TimeFrame); extended.After(next.Expiry) {
			next.Expiry = extended
		}

	case types.Blind, types.Vickrey:
		for _, b := range s.ActiveBids() {
			if b.Bidder.UserID() == bid.Bidder.UserID() {
				return s, types.ErrAlreadyPlacedBid
			}
		}

	default:
		panic("unknown auction protocol")
	}

	next.Bids = append(append([]types.Bid(nil), s.Bids...), bid)
	return next, nil
}

// RetractBid tombstones the given bid. Only the bid's author, or a support
// user, may retract; retraction after the effective end is rejected. The
// retracted bid is returned alongside the new state.
func (s AuctionState) RetractBid(id types.BidID, requester types.User, now time.Time) (AuctionState, types.Bid, error) {
	idx := -1
	for i, b := range s.Bids {
		if b.ID == id && !b.Retracted() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, types.Bid{}, types.ErrUnknownBid
	}
	if s.HasEnded(now) {
		return s, types.Bid{}, types.ErrAuctionHasEnded
	}
	bid := s.Bids[idx]
	if bid.Bidder.UserID() != requester.UserID() && !types.IsSupport(requester) {
		return s, types.Bid{}, types.ErrCannotRetractOthersBid
	}

	retractedAt := now
	bid.RetractedAt = &retractedAt

	next := s
	next.Bids = append([]types.Bid(nil), s.Bids...)
	next.Bids[idx] = bid
	return next, bid, nil
}

// Winner determines the winning bidder and the price they pay. It is defined
// only once the effective end has passed; before that it reports false.
//
// TimedAscending and Blind pay first price. Vickrey pays the second-highest
// active bid; with a single active bid the winner pays their own bid.
func (s AuctionState) Winner(now time.Time) (types.Amount, types.UserID, bool) {
	if !s.HasEnded(now) {
		return types.Amount{}, "", false
	}
	sorted := s.sortedActive()
	if len(sorted) == 0 {
		return types.Amount{}, "", false
	}

	switch s.Auction.Protocol.(type) {
	case types.TimedAscending, types.Blind:
		return sorted[0].Amount, sorted[0].Bidder.UserID(), true
	case types.Vickrey:
		if len(sorted) > 1 {
			return sorted[1].Amount, sorted[0].Bidder.UserID(), true
		}
		return sorted[0].Amount, sorted[0].Bidder.UserID(), true
	default:
		panic("unknown auction protocol")
	}
}

// highestActive returns the leading active bid, if any.
func (s AuctionState) highestActive() (types.Bid, bool) {
	sorted := s.sortedActive()
	if len(sorted) == 0 {
		return types.Bid{}, false
	}
	return sorted[0], true
}

// sortedActive returns active bids ordered by amount descending, ties broken
// by earliest placement.
func (s AuctionState) sortedActive() []types.Bid {
	sorted := s.ActiveBids()
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := sorted[i].Amount.Cmp(sorted[j].Amount); c != 0 {
			return c > 0
		}
		return sorted[i].PlacedAt.Before(sorted[j].PlacedAt)
	})
	return sorted
}
