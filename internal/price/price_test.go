package price

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimit_Interned(t *testing.T) {
	a := Limit(1234)
	b := Limit(1234)
	assert.Same(t, a, b)
	assert.NotSame(t, a, Limit(1235))
	assert.Same(t, Market(), Market())
	assert.False(t, a.IsMarket())
	assert.True(t, Market().IsMarket())

	before := Interned()
	fresh := Limit(987654321)
	assert.Equal(t, before+1, Interned())
	assert.Same(t, fresh, Limit(987654321))
	Market()
	assert.Equal(t, before+1, Interned(), "no new entry for a known value or the market price")
}

func TestMustParse(t *testing.T) {
	assert.Same(t, Limit(123456), MustParse("$1,234.56"))
	assert.Panics(t, func() { MustParse("1.2.3") })
}

func TestParse(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
	}{
		{"", 0},
		{"0", 0},
		{"10", 1000},
		{"10.5", 1050},
		{"$1,234.56", 123456},
		{"9.50", 950},
		{"1.999", 200},
		{"10.005", 1000}, // half to even
		{"10.015", 1002},
		{"-3.5", -350},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			p, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.cents, p.Cents())
			assert.Same(t, Limit(tc.cents), p)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"abc", "1.2.3", "--1"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalidPrice, in)
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "$12.34", Limit(1234).String())
	assert.Equal(t, "$0.05", Limit(5).String())
	assert.Equal(t, "$1,234.56", Limit(123456).String())
	assert.Equal(t, "$1,000,000.00", Limit(100000000).String())
	assert.Equal(t, "-$10.50", Limit(-1050).String())
	assert.Equal(t, "-$1.00", Limit(-100).String())
	assert.Equal(t, "-$1,234.56", Limit(-123456).String())
	assert.Equal(t, "MKT", Market().String())
}

func TestArithmetic(t *testing.T) {
	sum, err := Limit(1000).Add(Limit(250))
	require.NoError(t, err)
	assert.Same(t, Limit(1250), sum)

	diff, err := Limit(1000).Subtract(Limit(1250))
	require.NoError(t, err)
	assert.Equal(t, int64(-250), diff.Cents())
	assert.True(t, diff.IsNegative())

	product, err := Limit(125).Multiply(4)
	require.NoError(t, err)
	assert.Same(t, Limit(500), product)
}

func TestArithmetic_MarketPrice(t *testing.T) {
	_, err := Limit(100).Add(Market())
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = Market().Subtract(Limit(100))
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = Market().Multiply(3)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	assert.False(t, Market().IsNegative())
}

func TestOrdering(t *testing.T) {
	lo, hi := Limit(900), Limit(910)

	assert.True(t, lo.LessThan(hi))
	assert.True(t, lo.LessOrEqual(hi))
	assert.True(t, lo.LessOrEqual(Limit(900)))
	assert.True(t, hi.GreaterThan(lo))
	assert.True(t, hi.GreaterOrEqual(lo))
	assert.True(t, lo.Equals(Limit(900)))
	assert.False(t, lo.GreaterThan(hi))
	assert.False(t, hi.LessThan(lo))
}

func TestOrdering_MarketNeverComparable(t *testing.T) {
	mkt, lim := Market(), Limit(100)

	for _, pair := range [][2]*Price{{mkt, lim}, {lim, mkt}, {mkt, mkt}} {
		a, b := pair[0], pair[1]
		assert.False(t, a.LessThan(b))
		assert.False(t, a.LessOrEqual(b))
		assert.False(t, a.GreaterThan(b))
		assert.False(t, a.GreaterOrEqual(b))
		assert.False(t, a.Equals(b))
	}
	assert.False(t, lim.Equals(nil))
}
