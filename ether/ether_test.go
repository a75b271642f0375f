package ether

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1000000000000000000"},
		{"0.5", "500000000000000000"},
		{"2100", "2100000000000000000000"},
		{" 0.000000000000000001 ", "1"},
		{"0", "0"},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String(), tt.in)
	}

	for _, bad := range []string{"", "abc", "-1", "0.0000000000000000001", "3/2", "1e2", "+1", ".5", "1.", "0x10"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0", Format(nil))
	assert.Equal(t, "0", Format(big.NewInt(0)))
	assert.Equal(t, "1.5", Format(big.NewInt(1.5e18)))
	assert.Equal(t, "250000", Format(FromUint(250000)))
	assert.Equal(t, "0.000000000000000001", Format(big.NewInt(1)))
}

func TestToFloat(t *testing.T) {
	assert.Equal(t, 0.25, ToFloat(big.NewInt(0.25e18)))
	assert.Equal(t, float64(0), ToFloat(nil))
}
