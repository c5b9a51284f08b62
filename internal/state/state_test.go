package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallymathieu/auctions-site/types"
)

var (
	t0 = time.Date(2016, 1, 1, 8, 0, 0, 0, time.UTC)

	seller  = types.BuyerOrSeller{ID: "s1", Name: "Sam"}
	bidderX = types.BuyerOrSeller{ID: "x1", Name: "Xena"}
	bidderY = types.BuyerOrSeller{ID: "y1", Name: "Yuri"}
	bidderZ = types.BuyerOrSeller{ID: "z1", Name: "Zoe"}
)

func vac(v int64) types.Amount { return types.NewAmount(types.CurrencyVAC, v) }

func englishAuction(reserve, minRaise int64, timeFrame time.Duration) types.Auction {
	return types.Auction{
		ID:       1,
		StartsAt: t0,
		Expiry:   t0.Add(time.Minute),
		Title:    "English",
		Seller:   seller,
		Currency: types.CurrencyVAC,
		Protocol: types.TimedAscending{
			ReservePrice: vac(reserve),
			MinRaise:     vac(minRaise),
			TimeFrame:    timeFrame,
		},
	}
}

func sealedAuction(p types.Protocol) types.Auction {
	return types.Auction{
		ID:       2,
		StartsAt: t0,
		Expiry:   t0.Add(time.Minute),
		Title:    "Sealed",
		Seller:   seller,
		Currency: types.CurrencyVAC,
		Protocol: p,
	}
}

func bid(id string, bidder types.User, amount types.Amount, at time.Time, auctionID types.AuctionID) types.Bid {
	return types.Bid{
		ID:        types.BidID(id),
		AuctionID: auctionID,
		Bidder:    bidder,
		Amount:    amount,
		PlacedAt:  at,
	}
}

func TestAddBidValidationOrder(t *testing.T) {
	a := englishAuction(0, 5, 10*time.Second)
	s := NewAuctionState(a)

	testCases := map[string]struct {
		bid  types.Bid
		now  time.Time
		want error
	}{
		"currency checked first": {
			// also placed by the seller, after the end; currency still wins
			bid:  bid("b1", seller, types.NewAmount(types.CurrencySEK, 10), t0.Add(2*time.Minute), a.ID),
			now:  t0.Add(2 * time.Minute),
			want: types.ErrCurrencyMismatch,
		},
		"seller before end time": {
			bid:  bid("b2", seller, vac(10), t0.Add(2*time.Minute), a.ID),
			now:  t0.Add(2 * time.Minute),
			want: types.ErrSellerCannotBid,
		},
		"ended": {
			bid:  bid("b3", bidderX, vac(10), t0.Add(2*time.Minute), a.ID),
			now:  t0.Add(2 * time.Minute),
			want: types.ErrAuctionHasEnded,
		},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			_, err := s.AddBid(tc.bid, tc.now)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTimedAscendingMinRaise(t *testing.T) {
	a := englishAuction(0, 5, 10*time.Second)
	s := NewAuctionState(a)

	s, err := s.AddBid(bid("a", bidderX, vac(100), t0, a.ID), t0)
	require.NoError(t, err)

	// 104 does not exceed 100+5
	_, err = s.AddBid(bid("b", bidderY, vac(104), t0.Add(time.Second), a.ID), t0.Add(time.Second))
	var below types.BelowHighestBidError
	require.ErrorAs(t, err, &below)
	assert.Equal(t, vac(100), below.Highest)

	// 110 does
	s, err = s.AddBid(bid("c", bidderY, vac(110), t0.Add(time.Second), a.ID), t0.Add(time.Second))
	require.NoError(t, err)

	highest, ok := s.highestActive()
	require.True(t, ok)
	assert.Equal(t, vac(110), highest.Amount)
}

func TestTimedAscendingReserve(t *testing.T) {
	a := englishAuction(50, 0, 0)
	s := NewAuctionState(a)

	_, err := s.AddBid(bid("a", bidderX, vac(49), t0, a.ID), t0)
	var below types.BelowHighestBidError
	require.ErrorAs(t, err, &below)
	assert.Equal(t, vac(50), below.Highest)

	_, err = s.AddBid(bid("b", bidderX, vac(50), t0, a.ID), t0)
	require.NoError(t, err)
}

func TestAntiSnipeExtension(t *testing.T) {
	a := englishAuction(0, 0, 10*time.Second)
	s := NewAuctionState(a)
	require.Equal(t, t0.Add(time.Minute), s.Expiry)

	// a bid at t0+55s lands inside the window and extends the end to t0+65s
	s, err := s.AddBid(bid("a", bidderX, vac(10), t0.Add(55*time.Second), a.ID), t0.Add(55*time.Second))
	require.NoError(t, err)
	assert.Equal(t, t0.Add(65*time.Second), s.Expiry)

	// t0+66s is past the extended end
	_, err = s.AddBid(bid("b", bidderY, vac(20), t0.Add(66*time.Second), a.ID), t0.Add(66*time.Second))
	require.ErrorIs(t, err, types.ErrAuctionHasEnded)
}

func TestZeroTimeFrameIsFixedEnd(t *testing.T) {
	a := englishAuction(0, 0, 0)
	s := NewAuctionState(a)

	s, err := s.AddBid(bid("a", bidderX, vac(10), t0.Add(59*time.Second), a.ID), t0.Add(59*time.Second))
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute), s.Expiry)
}

func TestSealedOneBidPerBidder(t *testing.T) {
	for _, p := range []types.Protocol{types.Blind{}, types.Vickrey{}} {
		p := p
		t.Run(p.String(), func(t *testing.T) {
			a := sealedAuction(p)
			s := NewAuctionState(a)

			s, err := s.AddBid(bid("a", bidderX, vac(100), t0, a.ID), t0)
			require.NoError(t, err)

			_, err = s.AddBid(bid("b", bidderX, vac(200), t0.Add(time.Second), a.ID), t0.Add(time.Second))
			require.ErrorIs(t, err, types.ErrAlreadyPlacedBid)

			// the first bid is still active and counted
			require.Len(t, s.ActiveBids(), 1)
			assert.Equal(t, vac(100), s.ActiveBids()[0].Amount)
		})
	}
}

func TestVickreyWinner(t *testing.T) {
	a := sealedAuction(types.Vickrey{})
	s := NewAuctionState(a)

	s, err := s.AddBid(bid("x", bidderX, vac(100), t0, a.ID), t0)
	require.NoError(t, err)
	s, err = s.AddBid(bid("y", bidderY, vac(150), t0.Add(time.Second), a.ID), t0.Add(time.Second))
	require.NoError(t, err)

	// not decided before the end
	_, _, ok := s.Winner(t0.Add(30 * time.Second))
	require.False(t, ok)

	price, winner, ok := s.Winner(t0.Add(2 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, bidderY.ID, winner)
	assert.Equal(t, vac(100), price, "winner pays the second-highest bid")
}

func TestVickreySingleBidPaysOwnBid(t *testing.T) {
	a := sealedAuction(types.Vickrey{})
	s := NewAuctionState(a)

	s, err := s.AddBid(bid("x", bidderX, vac(100), t0, a.ID), t0)
	require.NoError(t, err)

	price, winner, ok := s.Winner(t0.Add(2 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, bidderX.ID, winner)
	assert.Equal(t, vac(100), price)
}

func TestBlindWinnerFirstPrice(t *testing.T) {
	a := sealedAuction(types.Blind{})
	s := NewAuctionState(a)

	s, err := s.AddBid(bid("x", bidderX, vac(100), t0, a.ID), t0)
	require.NoError(t, err)
	s, err = s.AddBid(bid("y", bidderY, vac(150), t0.Add(time.Second), a.ID), t0.Add(time.Second))
	require.NoError(t, err)

	price, winner, ok := s.Winner(t0.Add(2 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, bidderY.ID, winner)
	assert.Equal(t, vac(150), price)
}

func TestWinnerTieBreaksOnEarliestBid(t *testing.T) {
	a := sealedAuction(types.Blind{})
	s := NewAuctionState(a)

	s, err := s.AddBid(bid("y", bidderY, vac(100), t0.Add(time.Second), a.ID), t0.Add(time.Second))
	require.NoError(t, err)
	s, err = s.AddBid(bid("x", bidderX, vac(100), t0, a.ID), t0)
	require.NoError(t, err)
	s, err = s.AddBid(bid("z", bidderZ, vac(90), t0, a.ID), t0)
	require.NoError(t, err)

	_, winner, ok := s.Winner(t0.Add(2 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, bidderX.ID, winner)
}

func TestRetractBid(t *testing.T) {
	a := sealedAuction(types.Blind{})
	s := NewAuctionState(a)

	s, err := s.AddBid(bid("x", bidderX, vac(100), t0, a.ID), t0)
	require.NoError(t, err)
	s, err = s.AddBid(bid("y", bidderY, vac(50), t0, a.ID), t0)
	require.NoError(t, err)

	// someone else may not retract
	_, _, err = s.RetractBid("x", bidderY, t0.Add(time.Second))
	require.ErrorIs(t, err, types.ErrCannotRetractOthersBid)

	// the author may
	s, retracted, err := s.RetractBid("x", bidderX, t0.Add(time.Second))
	require.NoError(t, err)
	require.True(t, retracted.Retracted())

	// the tombstone stays in history but not in the active set
	require.Len(t, s.Bids, 2)
	require.Len(t, s.ActiveBids(), 1)

	// and no longer counts toward the winner
	_, winner, ok := s.Winner(t0.Add(2 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, bidderY.ID, winner)

	// retracting again fails as unknown
	_, _, err = s.RetractBid("x", bidderX, t0.Add(2*time.Second))
	require.ErrorIs(t, err, types.ErrUnknownBid)
}

func TestSupportMayRetractAnyBid(t *testing.T) {
	a := sealedAuction(types.Blind{})
	s := NewAuctionState(a)

	s, err := s.AddBid(bid("x", bidderX, vac(100), t0, a.ID), t0)
	require.NoError(t, err)

	_, retracted, err := s.RetractBid("x", types.Support{ID: "ops"}, t0.Add(time.Second))
	require.NoError(t, err)
	assert.True(t, retracted.Retracted())
}

func TestRetractAfterEnd(t *testing.T) {
	a := sealedAuction(types.Blind{})
	s := NewAuctionState(a)

	s, err := s.AddBid(bid("x", bidderX, vac(100), t0, a.ID), t0)
	require.NoError(t, err)

	_, _, err = s.RetractBid("x", bidderX, t0.Add(2*time.Minute))
	require.ErrorIs(t, err, types.ErrAuctionHasEnded)
}

func TestAddBidDoesNotMutateReceiver(t *testing.T) {
	a := englishAuction(0, 0, 0)
	s := NewAuctionState(a)

	next, err := s.AddBid(bid("a", bidderX, vac(10), t0, a.ID), t0)
	require.NoError(t, err)
	require.Len(t, next.Bids, 1)
	require.Empty(t, s.Bids, "original state must be untouched")
}
