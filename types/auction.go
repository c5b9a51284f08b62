package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// AuctionID uniquely identifies an auction. IDs are externally assigned and
// never reused.
type AuctionID int64

// Auction describes a single timed auction. An auction is created exactly
// once and is immutable afterwards; the effective end time tracked by the
// projection may move past Expiry under the TimedAscending protocol, but the
// record itself never changes.
type Auction struct {
	ID       AuctionID
	StartsAt time.Time
	// Expiry is the initially scheduled end. The projection's effective end
	// starts here and can only move forward.
	Expiry   time.Time
	Title    string
	Seller   User
	Currency Currency
	Protocol Protocol
}

// Validate checks structural invariants that hold regardless of protocol.
func (a Auction) Validate() error {
	if a.Seller == nil {
		return fmt.Errorf("auction %d: missing seller", a.ID)
	}
	if a.Protocol == nil {
		return fmt.Errorf("auction %d: missing protocol", a.ID)
	}
	if !a.Expiry.After(a.StartsAt) {
		return fmt.Errorf("auction %d: expiry %v does not follow start %v", a.ID, a.Expiry, a.StartsAt)
	}
	if p, ok := a.Protocol.(TimedAscending); ok {
		if p.ReservePrice.Currency != a.Currency || p.MinRaise.Currency != a.Currency {
			return fmt.Errorf("auction %d: protocol amounts not in auction currency %s", a.ID, a.Currency)
		}
	}
	return nil
}

type auctionJSON struct {
	ID       AuctionID `json:"id"`
	StartsAt time.Time `json:"startsAt"`
	Expiry   time.Time `json:"expiry"`
	Title    string    `json:"title"`
	Seller   string    `json:"user"`
	Currency Currency  `json:"currency"`
	Protocol string    `json:"type"`
}

// MarshalJSON implements json.Marshaler. Seller and protocol travel in their
// string wire forms.
func (a Auction) MarshalJSON() ([]byte, error) {
	return json.Marshal(auctionJSON{
		ID:       a.ID,
		StartsAt: a.StartsAt,
		Expiry:   a.Expiry,
		Title:    a.Title,
		Seller:   a.Seller.String(),
		Currency: a.Currency,
		Protocol: a.Protocol.String(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Auction) UnmarshalJSON(data []byte) error {
	var aux auctionJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	seller, err := ParseUser(aux.Seller)
	if err != nil {
		return err
	}
	protocol, err := ParseProtocol(aux.Protocol)
	if err != nil {
		return err
	}
	*a = Auction{
		ID:       aux.ID,
		StartsAt: aux.StartsAt,
		Expiry:   aux.Expiry,
		Title:    aux.Title,
		Seller:   seller,
		Currency: aux.Currency,
		Protocol: protocol,
	}
	return nil
}
