package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Currency identifies the currency an auction is held in. Every bid on an
// auction must be denominated in the auction's currency.
type Currency string

const (
	// CurrencyVAC is a virtual auction currency used for testing and demos.
	CurrencyVAC Currency = "VAC"
	// CurrencySEK is Swedish krona.
	CurrencySEK Currency = "SEK"
	// CurrencyDKK is Danish krone.
	CurrencyDKK Currency = "DKK"
)

// ParseCurrency parses a currency code, rejecting unknown codes.
func ParseCurrency(s string) (Currency, error) {
	switch c := Currency(strings.ToUpper(strings.TrimSpace(s))); c {
	case CurrencyVAC, CurrencySEK, CurrencyDKK:
		return c, nil
	default:
		return "", fmt.Errorf("unknown currency %q", s)
	}
}

// Amount is a sum of money in a single currency. Arithmetic is defined only
// between amounts of the same currency; mixing currencies is a programming
// error and panics. Domain-level currency mismatches are caught by validation
// before any arithmetic happens.
type Amount struct {
	Currency Currency
	Value    int64
}

// NewAmount returns an amount of value v in currency c.
func NewAmount(c Currency, v int64) Amount {
	return Amount{Currency: c, Value: v}
}

// ParseAmount parses the wire form of an amount, e.g. "VAC100".
func ParseAmount(s string) (Amount, error) {
	i := 0
	for i < len(s) && (s[i] < '0' || s[i] > '9') {
		i++
	}
	if i == 0 || i == len(s) {
		return Amount{}, fmt.Errorf("malformed amount %q", s)
	}
	c, err := ParseCurrency(s[:i])
	if err != nil {
		return Amount{}, err
	}
	v, err := strconv.ParseInt(s[i:], 10, 64)
	if err != nil {
		return Amount{}, fmt.Errorf("malformed amount %q: %w", s, err)
	}
	return Amount{Currency: c, Value: v}, nil
}

func (a Amount) String() string {
	return fmt.Sprintf("%s%d", a.Currency, a.Value)
}

// Add returns a+b. Panics if the currencies differ.
func (a Amount) Add(b Amount) Amount {
	a.mustMatch(b)
	return Amount{Currency: a.Currency, Value: a.Value + b.Value}
}

// Sub returns a-b. Panics if the currencies differ. The protocol rules only
// compare amounts; Sub rounds out the arithmetic for consumers computing
// price differences.
func (a Amount) Sub(b Amount) Amount {
	a.mustMatch(b)
	return Amount{Currency: a.Currency, Value: a.Value - b.Value}
}

// Cmp compares a to b, returning -1, 0 or +1. Panics if the currencies
// differ.
func (a Amount) Cmp(b Amount) int {
	a.mustMatch(b)
	switch {
	case a.Value < b.Value:
		return -1
	case a.Value > b.Value:
		return 1
	default:
		return 0
	}
}

func (a Amount) mustMatch(b Amount) {
	if a.Currency != b.Currency {
		panic(fmt.Sprintf("currency mismatch: %s vs %s", a.Currency, b.Currency))
	}
}

// MarshalText implements encoding.TextMarshaler. Amounts travel as strings
// like "VAC100".
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(text []byte) error {
	parsed, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
