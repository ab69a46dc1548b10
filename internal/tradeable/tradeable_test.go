package tradeable

import (
	"testing"

	"bourse/internal/common"
	"bourse/internal/price"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	o, err := NewOrder("alice", "X", price.Limit(1000), 100, common.Buy)
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID())
	assert.Equal(t, "alice", o.User())
	assert.Equal(t, "X", o.Product())
	assert.Equal(t, common.Buy, o.Side())
	assert.Same(t, price.Limit(1000), o.Price())
	assert.False(t, o.IsQuote())
	assert.Equal(t, 100, o.OriginalVolume())
	assert.Equal(t, 100, o.RemainingVolume())
	assert.Equal(t, 0, o.CancelledVolume())

	other, err := NewOrder("alice", "X", price.Limit(1000), 100, common.Buy)
	require.NoError(t, err)
	assert.NotEqual(t, o.ID(), other.ID())
}

func TestNewOrder_Validation(t *testing.T) {
	p := price.Limit(1000)
	tests := []struct {
		name    string
		user    string
		product string
		price   *price.Price
		volume  int
		side    common.Side
		err     error
	}{
		{"empty user", "", "X", p, 1, common.Buy, ErrInvalidInput},
		{"empty product", "alice", "", p, 1, common.Buy, ErrInvalidInput},
		{"nil price", "alice", "X", nil, 1, common.Buy, ErrInvalidInput},
		{"bad side", "alice", "X", p, 1, common.Side(7), ErrInvalidInput},
		{"zero volume", "alice", "X", p, 0, common.Buy, ErrInvalidVolume},
		{"negative volume", "alice", "X", p, -5, common.Sell, ErrInvalidVolume},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOrder(tc.user, tc.product, tc.price, tc.volume, tc.side)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestVolumeSetters(t *testing.T) {
	o, err := NewOrder("alice", "X", price.Limit(1000), 10, common.Sell)
	require.NoError(t, err)

	assert.ErrorIs(t, o.SetRemainingVolume(-1), ErrInvalidVolume)
	assert.ErrorIs(t, o.SetRemainingVolume(11), ErrInvalidVolume)
	assert.ErrorIs(t, o.SetCancelledVolume(11), ErrInvalidVolume)

	require.NoError(t, o.SetRemainingVolume(4))
	assert.Equal(t, 4, o.RemainingVolume())

	// remaining + cancelled may never exceed original
	assert.ErrorIs(t, o.SetCancelledVolume(7), ErrInvalidVolume)
	require.NoError(t, o.SetCancelledVolume(6))
	assert.Equal(t, 6, o.CancelledVolume())
}

func TestRetire(t *testing.T) {
	o, err := NewOrder("alice", "X", price.Limit(1000), 10, common.Sell)
	require.NoError(t, err)
	require.NoError(t, o.SetRemainingVolume(3))

	require.NoError(t, o.Retire())
	assert.True(t, o.Retired())
	assert.Equal(t, 0, o.RemainingVolume())
	assert.Equal(t, 3, o.CancelledVolume())

	assert.ErrorIs(t, o.Retire(), ErrTerminal)
	assert.Equal(t, 3, o.CancelledVolume())
	assert.ErrorIs(t, o.SetRemainingVolume(0), ErrTerminal)
	assert.ErrorIs(t, o.SetCancelledVolume(0), ErrTerminal)
}

func TestNewQuote(t *testing.T) {
	q, err := NewQuote("bob", "X", price.Limit(900), 100, price.Limit(910), 50)
	require.NoError(t, err)

	assert.True(t, q.Buy.IsQuote())
	assert.True(t, q.Sell.IsQuote())
	assert.Equal(t, common.Buy, q.Side(common.Buy).Side())
	assert.Equal(t, common.Sell, q.Side(common.Sell).Side())
	assert.Equal(t, 50, q.Sell.OriginalVolume())
	assert.NotEqual(t, q.Buy.ID(), q.Sell.ID())

	_, err = NewQuote("bob", "X", price.Limit(900), 0, price.Limit(910), 50)
	assert.ErrorIs(t, err, ErrInvalidVolume)
}

func TestSnapshot(t *testing.T) {
	o, err := NewOrder("alice", "X", price.Limit(900), 100, common.Buy)
	require.NoError(t, err)

	snap := o.Snapshot()
	require.NoError(t, o.SetRemainingVolume(40))

	// the snapshot does not alias book state
	assert.Equal(t, 100, snap.RemainingVolume)
	assert.Equal(t, "$9.00 x 100 (Original Vol: 100, CXL'd: 0) ["+o.ID()+"]", snap.String())
	assert.Equal(t, 40, o.Snapshot().RemainingVolume)
}

func TestRetire_KeepsEarlierCancel(t *testing.T) {
	o, err := NewOrder("alice", "X", price.Limit(1000), 10, common.Buy)
	require.NoError(t, err)
	require.NoError(t, o.SetRemainingVolume(6))
	require.NoError(t, o.SetCancelledVolume(2))

	require.NoError(t, o.Retire())
	assert.Equal(t, 8, o.CancelledVolume())
	assert.LessOrEqual(t, o.RemainingVolume()+o.CancelledVolume(), o.OriginalVolume())
}
