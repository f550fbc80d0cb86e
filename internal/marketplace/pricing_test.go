package marketplace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundUpToNearestNine(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{10.00, 10.09},
		{10.09, 10.09},
		{10.91, 10.99},
		{10.99, 10.99},
		{4.333, 4.39},
		{0.0, 0.09},
		{7.5, 7.59},
		{19.999, 20.09}, // banker's rounding to 20.00 first
		{129.90, 129.99},
	}
	for _, tc := range cases {
		require.InDelta(t, tc.want, RoundUpToNearestNine(tc.in), 1e-9, "input %v", tc.in)
	}
}

func TestRoundUpToNearestNine_Idempotent(t *testing.T) {
	for _, in := range []float64{10.00, 10.04, 10.05, 10.91, 3.14159, 0.01, 55.55} {
		once := RoundUpToNearestNine(in)
		require.InDelta(t, once, RoundUpToNearestNine(once), 1e-9, "input %v", in)
	}
}

func TestRoundUpToNearestNine_NeverBelowInput(t *testing.T) {
	for _, in := range []float64{10.00, 10.09, 10.91, 1.23, 99.93} {
		require.GreaterOrEqual(t, RoundUpToNearestNine(in), in)
	}
}
