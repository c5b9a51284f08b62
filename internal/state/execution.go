package state

import (
	"fmt"

	"github.com/wallymathieu/auctions-site/types"
)

// Execute validates cmd against the repository and, on success, commits the
// transition and returns the derived event. A rejected command leaves the
// repository exactly as it was: every validation runs before the first
// write, and commits replace whole projections atomically.
//
// Execute is the single validation path for both live traffic and replay;
// the delegator feeds recorded commands back through it at bootstrap.
func Execute(repo Repository, cmd types.Command) (types.Event, error) {
	switch c := cmd.(type) {
	case types.AddAuction:
		return executeAddAuction(repo, c)
	case types.PlaceBid:
		return executePlaceBid(repo, c)
	case types.RetractBid:
		return executeRetractBid(repo, c)
	default:
		return nil, fmt.Errorf("unknown command %T", cmd)
	}
}

func executeAddAuction(repo Repository, c types.AddAuction) (types.Event, error) {
	if err := c.Auction.Validate(); err != nil {
		return nil, err
	}
	if err := repo.SaveAuction(NewAuctionState(c.Auction)); err != nil {
		return nil, err
	}
	return types.AuctionAdded{Time: c.Time, Auction: c.Auction}, nil
}

func executePlaceBid(repo Repository, c types.PlaceBid) (types.Event, error) {
	s, err := repo.FindAuction(c.Bid.AuctionID)
	if err != nil {
		return nil, err
	}
	if !c.Bid.Bidder.CanPlaceBid() {
		return nil, types.ErrSupportCannotBid
	}
	if _, _, err := repo.FindBid(c.Bid.ID); err == nil {
		return nil, types.ErrBidAlreadyExists
	}

	next, err := s.AddBid(c.Bid, c.Time)
	if err != nil {
		return nil, err
	}
	if err := repo.SaveBid(next, c.Bid); err != nil {
		return nil, err
	}
	return types.BidAccepted{Time: c.Time, Bid: c.Bid}, nil
}

func executeRetractBid(repo Repository, c types.RetractBid) (types.Event, error) {
	s, _, err := repo.FindBid(c.BidID)
	if err != nil {
		return nil, err
	}
	next, bid, err := s.RetractBid(c.BidID, c.Requester, c.Time)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateBid(next, bid); err != nil {
		return nil, err
	}
	return types.BidRetracted{Time: c.Time, AuctionID: bid.AuctionID, BidID: bid.ID}, nil
}
