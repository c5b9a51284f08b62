package rpc

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wallymathieu/auctions-site/types"
)

// IdentityHeader carries the caller identity, set by an authenticating proxy
// in front of this server. The value is base64 of a JSON object with the
// already-verified JWT claims; this server trusts it as-is.
const IdentityHeader = "x-jwt-payload"

// ErrNoIdentity is returned when the identity header is absent.
var ErrNoIdentity = errors.New("missing identity header")

type jwtPayload struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
	UTyp string `json:"u_typ"`
}

// ParseIdentity decodes an IdentityHeader value into a user. u_typ "0" is a
// buyer-or-seller, "1" is support staff.
func ParseIdentity(header string) (types.User, error) {
	if header == "" {
		return nil, ErrNoIdentity
	}

	raw, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		// some proxies strip the padding
		raw, err = base64.RawStdEncoding.DecodeString(header)
		if err != nil {
			return nil, fmt.Errorf("decoding identity header: %w", err)
		}
	}

	var payload jwtPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding identity payload: %w", err)
	}
	if payload.Sub == "" {
		return nil, errors.New("identity payload missing sub")
	}

	switch payload.UTyp {
	case "0", "":
		if payload.Name == "" {
			return nil, errors.New("identity payload missing name")
		}
		return types.BuyerOrSeller{ID: types.UserID(payload.Sub), Name: payload.Name}, nil
	case "1":
		return types.Support{ID: types.UserID(payload.Sub)}, nil
	default:
		return nil, fmt.Errorf("unknown u_typ %q", payload.UTyp)
	}
}
