package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	testCases := map[string]struct {
		input     string
		want      Amount
		expectErr bool
	}{
		"vac":              {input: "VAC100", want: Amount{Currency: CurrencyVAC, Value: 100}},
		"sek zero":         {input: "SEK0", want: Amount{Currency: CurrencySEK, Value: 0}},
		"unknown currency": {input: "XYZ10", expectErr: true},
		"no value":         {input: "VAC", expectErr: true},
		"no currency":      {input: "100", expectErr: true},
		"empty":            {input: "", expectErr: true},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			got, err := ParseAmount(tc.input)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.input, got.String())
		})
	}
}

func TestAmountArithmetic(t *testing.T) {
	a := NewAmount(CurrencyVAC, 100)
	b := NewAmount(CurrencyVAC, 5)

	assert.Equal(t, int64(105), a.Add(b).Value)
	assert.Equal(t, int64(95), a.Sub(b).Value)
	assert.Equal(t, 1, a.Cmp(b))
	assert.Equal(t, -1, b.Cmp(a))
	assert.Equal(t, 0, a.Cmp(a))
}

func TestAmountMismatchedCurrencyPanics(t *testing.T) {
	a := NewAmount(CurrencyVAC, 100)
	b := NewAmount(CurrencySEK, 100)

	assert.Panics(t, func() { a.Add(b) })
	assert.Panics(t, func() { a.Sub(b) })
	assert.Panics(t, func() { a.Cmp(b) })
}
