package state

import (
	"sort"

	"github.com/wallymathieu/auctions-site/types"
)

// Repository is the storage capability the command processor operates
// against. All calls are synchronous, in-memory logical operations; the
// delegator's worker is the only goroutine allowed to touch a repository.
type Repository interface {
	// FindAuction returns the projection for id, or ErrUnknownAuction.
	FindAuction(id types.AuctionID) (AuctionState, error)
	// SaveAuction stores a new auction projection. Fails with
	// ErrAuctionAlreadyExists if the id is taken; auctions are never
	// overwritten.
	SaveAuction(s AuctionState) error
	// FindBid locates a bid and the projection of its auction, or
	// ErrUnknownBid.
	FindBid(id types.BidID) (AuctionState, types.Bid, error)
	// SaveBid commits a post-accept projection together with its new bid.
	// Fails with ErrBidAlreadyExists if the bid id is taken.
	SaveBid(s AuctionState, bid types.Bid) error
	// UpdateBid commits a post-retraction projection. The bid must already
	// be registered.
	UpdateBid(s AuctionState, bid types.Bid) error
	// Auctions lists all projections ordered by auction id.
	Auctions() []AuctionState
}

// MemRepository is the in-memory Repository the delegator owns. It is not
// safe for concurrent use; serialization is the delegator's job.
type MemRepository struct {
	auctions map[types.AuctionID]AuctionState
	bids     map[types.BidID]types.AuctionID
}

var _ Repository = (*MemRepository)(nil)

// NewMemRepository returns an empty repository.
func NewMemRepository() *MemRepository {
	return &MemRepository{
		auctions: make(map[types.AuctionID]AuctionState),
		bids:     make(map[types.BidID]types.AuctionID),
	}
}

// FindAuction implements Repository.
func (r *MemRepository) FindAuction(id types.AuctionID) (AuctionState, error) {
	s, ok := r.auctions[id]
	if !ok {
		return AuctionState{}, types.ErrUnknownAuction
	}
	return s, nil
}

// SaveAuction implements Repository.
func (r *MemRepository) SaveAuction(s AuctionState) error {
	if _, ok := r.auctions[s.Auction.ID]; ok {
		return types.ErrAuctionAlreadyExists
	}
	r.auctions[s.Auction.ID] = s
	return nil
}

// FindBid implements Repository.
func (r *MemRepository) FindBid(id types.BidID) (AuctionState, types.Bid, error) {
	auctionID, ok := r.bids[id]
	if !ok {
		return AuctionState{}, types.Bid{}, types.ErrUnknownBid
	}
	s := r.auctions[auctionID]
	for _, b := range s.Bids {
		if b.ID == id {
			return s, b, nil
		}
	}
	// index said the bid exists; the projection must agree
	panic("bid index out of sync with auction state")
}

// SaveBid implements Repository.
func (r *MemRepository) SaveBid(s AuctionState, bid types.Bid) error {
	if _, ok := r.bids[bid.ID]; ok {
		return types.ErrBidAlreadyExists
	}
	r.bids[bid.ID] = s.Auction.ID
	r.auctions[s.Auction.ID] = s
	return nil
}

// UpdateBid implements Repository.
func (r *MemRepository) UpdateBid(s AuctionState, bid types.Bid) error {
	if _, ok := r.bids[bid.ID]; !ok {
		return types.ErrUnknownBid
	}
	r.auctions[s.Auction.ID] = s
	return nil
}

// Auctions implements Repository.
func (r *MemRepository) Auctions() []AuctionState {
	out := make([]AuctionState, 0, len(r.auctions))
	for _, s := range r.auctions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Auction.ID < out[j].Auction.ID })
	return out
}
