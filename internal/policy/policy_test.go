package policy_test

import (
	"math"
	"testing"

	"codeberg.org/veldt/ventctl/internal/policy"
	"github.com/stretchr/testify/assert"
)

func TestRateForThresholds(t *testing.T) {
	table := policy.Default()

	cases := []struct {
		saturation float64
		want       int
	}{
		{50, 20},
		{88, 20},
		{89.9, 20},
		{90, 17},
		{92, 17},
		{94.9, 17},
		{95, 15},
		{98, 15},
		{100, 15},
	}

	for _, tc := range cases {
		assert.Equalf(t, tc.want, table.RateFor(tc.saturation), "saturation %.1f", tc.saturation)
	}
}

func TestRateForFallsBackWithoutReading(t *testing.T) {
	table := policy.Default()

	assert.Equal(t, 15, table.RateFor(math.NaN()))
}

// The output set is fixed and the mapping never increases the rate as
// saturation improves.
func TestRateForMonotonicNonIncreasing(t *testing.T) {
	table := policy.Default()

	valid := map[int]bool{20: true, 17: true, 15: true}
	prev := table.RateFor(0)
	for s := 0.0; s <= 100.0; s += 0.25 {
		rate := table.RateFor(s)
		assert.True(t, valid[rate], "rate %d outside output set", rate)
		assert.LessOrEqual(t, rate, prev, "rate increased as saturation rose")
		prev = rate
	}
}
