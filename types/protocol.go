package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Protocol is the closed set of bidding protocols an auction can run. The
// three implementations are TimedAscending, Blind and Vickrey; validation and
// winner determination switch exhaustively over them.
type Protocol interface {
	fmt.Stringer
	protocol()
}

// TimedAscending is the classic open ("English") auction: bids must climb by
// at least MinRaise over the current highest, and a bid landing within
// TimeFrame of the end pushes the end out (anti-snipe). TimeFrame of zero
// degrades to a fixed end time.
type TimedAscending struct {
	ReservePrice Amount
	MinRaise     Amount
	TimeFrame    time.Duration
}

// Blind is a sealed first-price auction: one bid per bidder, highest bid wins
// and pays its own amount.
type Blind struct{}

// Vickrey is a sealed second-price auction: one bid per bidder, highest bid
// wins and pays the second-highest amount.
type Vickrey struct{}

func (TimedAscending) protocol() {}
func (Blind) protocol()          {}
func (Vickrey) protocol()        {}

func (p TimedAscending) String() string {
	return fmt.Sprintf("English|%s|%s|%d", p.ReservePrice, p.MinRaise, int64(p.TimeFrame/time.Second))
}

func (Blind) String() string   { return "Blind" }
func (Vickrey) String() string { return "Vickrey" }

// DefaultProtocol is used when an auction is registered without an explicit
// protocol: an English auction with zero reserve, zero min raise and no
// anti-snipe window.
func DefaultProtocol(c Currency) Protocol {
	zero := Amount{Currency: c}
	return TimedAscending{ReservePrice: zero, MinRaise: zero}
}

// ParseProtocol parses the wire form of a protocol:
// "English|<reserve>|<minRaise>|<timeFrameSeconds>", "Blind" or "Vickrey".
func ParseProtocol(s string) (Protocol, error) {
	switch {
	case s == "Blind":
		return Blind{}, nil
	case s == "Vickrey":
		return Vickrey{}, nil
	case strings.HasPrefix(s, "English|"):
		parts := strings.Split(s, "|")
		if len(parts) != 4 {
			return nil, fmt.Errorf("malformed protocol %q", s)
		}
		reserve, err := ParseAmount(parts[1])
		if err != nil {
			return nil, fmt.Errorf("malformed protocol %q: %w", s, err)
		}
		minRaise, err := ParseAmount(parts[2])
		if err != nil {
			return nil, fmt.Errorf("malformed protocol %q: %w", s, err)
		}
		seconds, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil || seconds < 0 {
			return nil, fmt.Errorf("malformed protocol %q", s)
		}
		if reserve.Currency != minRaise.Currency {
			return nil, fmt.Errorf("malformed protocol %q: mixed currencies", s)
		}
		return TimedAscending{
			ReservePrice: reserve,
			MinRaise:     minRaise,
			TimeFrame:    time.Duration(seconds) * time.Second,
		}, nil
	default:
		return nil, fmt.Errorf("unknown protocol %q", s)
	}
}
