package types

import (
	"encoding/json"
	"time"
)

// BidID uniquely identifies a bid across all auctions.
type BidID string

// Bid is a single offer on an auction. Bids are never deleted: retraction
// sets RetractedAt, leaving a tombstone so that history and replay stay
// intact.
type Bid struct {
	ID          BidID
	AuctionID   AuctionID
	Bidder      User
	Amount      Amount
	PlacedAt    time.Time
	RetractedAt *time.Time
}

// Retracted reports whether the bid has been logically deleted.
func (b Bid) Retracted() bool { return b.RetractedAt != nil }

type bidJSON struct {
	ID          BidID      `json:"id"`
	AuctionID   AuctionID  `json:"auction"`
	Bidder      string     `json:"user"`
	Amount      Amount     `json:"amount"`
	PlacedAt    time.Time  `json:"at"`
	RetractedAt *time.Time `json:"retractedAt,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (b Bid) MarshalJSON() ([]byte, error) {
	return json.Marshal(bidJSON{
		ID:          b.ID,
		AuctionID:   b.AuctionID,
		Bidder:      b.Bidder.String(),
		Amount:      b.Amount,
		PlacedAt:    b.PlacedAt,
		RetractedAt: b.RetractedAt,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bid) UnmarshalJSON(data []byte) error {
	var aux bidJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	bidder, err := ParseUser(aux.Bidder)
	if err != nil {
		return err
	}
	*b = Bid{
		ID:          aux.ID,
		AuctionID:   aux.AuctionID,
		Bidder:      bidder,
		Amount:      aux.Amount,
		PlacedAt:    aux.PlacedAt,
		RetractedAt: aux.RetractedAt,
	}
	return nil
}
