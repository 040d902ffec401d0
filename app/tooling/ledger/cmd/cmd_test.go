package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTokens(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		bad  bool
	}{
		{in: "0", want: 0},
		{in: "1", want: 1_000_000_000},
		{in: "1.5", want: 1_500_000_000},
		{in: "0.000000001", want: 1},
		{in: "0.0000000001", bad: true},
		{in: "1.x", bad: true},
		{in: "-1", bad: true},
		{in: "18446744074", bad: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseTokens(tt.in)
			if tt.bad {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, tt.want, mustParse(t, formatTokens(got)))
		})
	}
}

func mustParse(t *testing.T, s string) uint64 {
	v, err := parseTokens(s)
	require.NoError(t, err)
	return v
}
