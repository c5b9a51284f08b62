package types

import (
	"fmt"
	"strings"
)

// UserID uniquely identifies a user. Identity comparisons are always on the
// ID, never on the display name.
type UserID string

// User is a closed set of participant roles. The two implementations are
// BuyerOrSeller and Support; no other roles exist.
//
// Support users administer the site: they may retract any bid but may never
// place one.
type User interface {
	UserID() UserID
	// CanPlaceBid reports whether this role is allowed to author bids.
	CanPlaceBid() bool
	fmt.Stringer
}

// BuyerOrSeller is a regular user who can sell and bid.
type BuyerOrSeller struct {
	ID   UserID
	Name string
}

var _ User = BuyerOrSeller{}

func (u BuyerOrSeller) UserID() UserID    { return u.ID }
func (u BuyerOrSeller) CanPlaceBid() bool { return true }

func (u BuyerOrSeller) String() string {
	return fmt.Sprintf("BuyerOrSeller|%s|%s", u.ID, u.Name)
}

// Support is a site administrator.
type Support struct {
	ID UserID
}

var _ User = Support{}

func (u Support) UserID() UserID    { return u.ID }
func (u Support) CanPlaceBid() bool { return false }

func (u Support) String() string {
	return fmt.Sprintf("Support|%s", u.ID)
}

// IsSupport reports whether u holds the support role.
func IsSupport(u User) bool {
	_, ok := u.(Support)
	return ok
}

// ParseUser parses the wire form of a user, either
// "BuyerOrSeller|<id>|<name>" or "Support|<id>".
func ParseUser(s string) (User, error) {
	parts := strings.Split(s, "|")
	switch parts[0] {
	case "BuyerOrSeller":
		if len(parts) != 3 || parts[1] == "" {
			return nil, fmt.Errorf("malformed user %q", s)
		}
		return BuyerOrSeller{ID: UserID(parts[1]), Name: parts[2]}, nil
	case "Support":
		if len(parts) != 2 || parts[1] == "" {
			return nil, fmt.Errorf("malformed user %q", s)
		}
		return Support{ID: UserID(parts[1])}, nil
	default:
		return nil, fmt.Errorf("unknown user role in %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (u BuyerOrSeller) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

// MarshalText implements encoding.TextMarshaler.
func (u Support) MarshalText() ([]byte, error) { return []byte(u.String()), nil }
