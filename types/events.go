package types

import (
	"time"

	"github.com/wallymathieu/auctions-site/internal/jsontypes"
)

// Event is the closed set of facts derived from successfully executed
// commands. Events are what gets appended to the log and handed to
// observers; they are never replayed directly (replay re-executes the
// recorded commands through the same validation path).
type Event interface {
	jsontypes.Tagged

	// At returns the time the originating command carried.
	At() time.Time

	event()
}

// AuctionAdded records that an auction was registered.
type AuctionAdded struct {
	Time    time.Time `json:"at"`
	Auction Auction   `json:"auction"`
}

// BidAccepted records that a bid passed validation and joined the auction's
// active bids.
type BidAccepted struct {
	Time time.Time `json:"at"`
	Bid  Bid       `json:"bid"`
}

// BidRetracted records that a bid was tombstoned.
type BidRetracted struct {
	Time      time.Time `json:"at"`
	AuctionID AuctionID `json:"auction"`
	BidID     BidID     `json:"bid"`
}

var (
	_ Event = AuctionAdded{}
	_ Event = BidAccepted{}
	_ Event = BidRetracted{}
)

func (AuctionAdded) event() {}
func (BidAccepted) event()  {}
func (BidRetracted) event() {}

func (e AuctionAdded) At() time.Time { return e.Time }
func (e BidAccepted) At() time.Time  { return e.Time }
func (e BidRetracted) At() time.Time { return e.Time }

// TypeTag implements jsontypes.Tagged.
func (AuctionAdded) TypeTag() string { return "event/AuctionAdded" }

// TypeTag implements jsontypes.Tagged.
func (BidAccepted) TypeTag() string { return "event/BidAccepted" }

// TypeTag implements jsontypes.Tagged.
func (BidRetracted) TypeTag() string { return "event/BidRetracted" }

func init() {
	jsontypes.MustRegister(AuctionAdded{})
	jsontypes.MustRegister(BidAccepted{})
	jsontypes.MustRegister(BidRetracted{})
}
