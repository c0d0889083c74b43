package orderkey

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	k, err := Parse("99998.50000.00007")
	require.NoError(t, err)
	assert.Equal(t, Key{99998, 50000, 7}, k)
	assert.Equal(t, "99998.50000.00007", k.String())

	for _, bad := range []string{"", "123", "1234a", "00001..00002"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalid, bad)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b Key
		want int
	}{
		{Key{5}, Key{5}, 0},
		{Key{5}, Key{5, 0}, 0},
		{Key{5}, Key{5, 1}, -1},
		{Key{6}, Key{5, 99999}, 1},
		{nil, Key{0, 1}, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Compare(tt.a, tt.b), "%v vs %v", tt.a, tt.b)
	}
}

func TestBetween(t *testing.T) {
	tests := []struct {
		name   string
		lo, hi Key
		want   Key
	}{
		{name: "wide gap", lo: Key{10}, hi: Key{20}, want: Key{15}},
		{name: "adjacent digits descend", lo: Key{10}, hi: Key{11}, want: Key{10, 50000}},
		{name: "unbounded", lo: Key{10}, hi: nil, want: Key{50005}},
		{name: "common prefix", lo: Key{7, 3}, hi: Key{7, 9}, want: Key{7, 6}},
		{name: "nines cascade", lo: Key{7, 99999}, hi: Key{8}, want: Key{7, 99999, 50000}},
		{name: "zero lower", lo: nil, hi: Key{1}, want: Key{0, 50000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Between(tt.lo, tt.hi)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, tt.lo.Less(got))
			if tt.hi != nil {
				assert.True(t, got.Less(tt.hi))
			}
		})
	}

	_, err := Between(Key{5}, Key{5})
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestBetweenNeverExhausts(t *testing.T) {
	lo, hi := Key{1}, Key{2}
	for range 200 {
		mid, err := Between(lo, hi)
		require.NoError(t, err)
		require.True(t, lo.Less(mid) && mid.Less(hi), "%s < %s < %s", lo, mid, hi)
		require.NotZero(t, mid[len(mid)-1], "generated key must not end in zero")
		hi = mid
	}
}

func TestRangeAboveBelowMonotonic(t *testing.T) {
	r := BandRange(TopBand, DefaultStep)
	k, err := r.Initial()
	require.NoError(t, err)
	assert.Equal(t, "99998.50000", k.String())

	top := k
	for range 500 {
		next, err := r.Above(top)
		require.NoError(t, err)
		require.True(t, top.Less(next))
		require.True(t, r.Contains(next))
		top = next
	}

	bottom := k
	for range 500 {
		next, err := r.Below(bottom)
		require.NoError(t, err)
		require.True(t, next.Less(bottom))
		require.True(t, r.Contains(next))
		bottom = next
	}
}

func TestRangeRejectsForeignKeys(t *testing.T) {
	r := BandRange(10, DefaultStep)
	_, err := r.Above(Key{11, 5})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = r.Below(Key{10})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestBandsOrderSegments(t *testing.T) {
	upper := BandRange(TopBand, DefaultStep)
	lowerBand, err := NextBand(TopBand)
	require.NoError(t, err)
	lower := BandRange(lowerBand, DefaultStep)

	// Every key of the lower band sorts below every key of the upper one.
	highestLower, err := lower.Above(Key{lowerBand, 99999})
	require.NoError(t, err)
	lowestUpper, err := upper.Below(Key{TopBand, 1})
	require.NoError(t, err)
	assert.True(t, highestLower.Less(lowestUpper))

	_, err = NextBand(0)
	assert.ErrorIs(t, err, ErrExhausted)
}
