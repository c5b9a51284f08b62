package types

import (
	"encoding/json"
	"time"

	"github.com/wallymathieu/auctions-site/internal/jsontypes"
)

// Command is the closed set of externally submitted intents. Commands carry
// the timestamp supplied by the caller; the core never reads the wall clock
// while validating, which keeps replay deterministic.
type Command interface {
	jsontypes.Tagged

	// At returns the externally supplied command timestamp.
	At() time.Time

	command()
}

// AddAuction registers a new auction.
type AddAuction struct {
	Time    time.Time `json:"at"`
	Auction Auction   `json:"auction"`
}

// PlaceBid submits a bid on an auction.
type PlaceBid struct {
	Time time.Time `json:"at"`
	Bid  Bid       `json:"bid"`
}

// RetractBid logically deletes a previously placed bid. Only the bid's
// author, or a support user, may retract it.
type RetractBid struct {
	Time      time.Time `json:"at"`
	BidID     BidID     `json:"bid"`
	Requester User      `json:"user"`
}

var (
	_ Command = AddAuction{}
	_ Command = PlaceBid{}
	_ Command = RetractBid{}
)

func (AddAuction) command() {}
func (PlaceBid) command()   {}
func (RetractBid) command() {}

func (c AddAuction) At() time.Time { return c.Time }
func (c PlaceBid) At() time.Time   { return c.Time }
func (c RetractBid) At() time.Time { return c.Time }

// TypeTag implements jsontypes.Tagged.
func (AddAuction) TypeTag() string { return "command/AddAuction" }

// TypeTag implements jsontypes.Tagged.
func (PlaceBid) TypeTag() string { return "command/PlaceBid" }

// TypeTag implements jsontypes.Tagged.
func (RetractBid) TypeTag() string { return "command/RetractBid" }

func init() {
	jsontypes.MustRegister(AddAuction{})
	jsontypes.MustRegister(PlaceBid{})
	jsontypes.MustRegister(RetractBid{})
}

type retractBidJSON struct {
	Time      time.Time `json:"at"`
	BidID     BidID     `json:"bid"`
	Requester string    `json:"user"`
}

// MarshalJSON implements json.Marshaler.
func (c RetractBid) MarshalJSON() ([]byte, error) {
	return json.Marshal(retractBidJSON{Time: c.Time, BidID: c.BidID, Requester: c.Requester.String()})
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *RetractBid) UnmarshalJSON(data []byte) error {
	var aux retractBidJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	requester, err := ParseUser(aux.Requester)
	if err != nil {
		return err
	}
	*c = RetractBid{Time: aux.Time, BidID: aux.BidID, Requester: requester}
	return nil
}
