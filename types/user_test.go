package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUser(t *testing.T) {
	testCases := map[string]struct {
		input     string
		want      User
		expectErr bool
	}{
		"buyer or seller": {
			input: "BuyerOrSeller|a1|Adam",
			want:  BuyerOrSeller{ID: "a1", Name: "Adam"},
		},
		"support": {
			input: "Support|ops",
			want:  Support{ID: "ops"},
		},
		"missing id":      {input: "BuyerOrSeller||x", expectErr: true},
		"missing name":    {input: "BuyerOrSeller|a1", expectErr: true},
		"support no id":   {input: "Support|", expectErr: true},
		"unknown variant": {input: "Admin|a1", expectErr: true},
	}

	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			got, err := ParseUser(tc.input)
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

func TestUserRoles(t *testing.T) {
	seller := BuyerOrSeller{ID: "s1", Name: "Sam"}
	support := Support{ID: "ops"}

	assert.True(t, seller.CanPlaceBid())
	assert.False(t, support.CanPlaceBid())
	assert.False(t, IsSupport(seller))
	assert.True(t, IsSupport(support))
}
