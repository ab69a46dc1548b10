// Package tradeable holds the units of interest that rest in a book: standalone
// orders and the two sides of a quote.
package tradeable

import (
	"errors"
	"fmt"

	"bourse/internal/common"
	"bourse/internal/price"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput  = errors.New("invalid tradeable input")
	ErrInvalidVolume = errors.New("invalid volume")
	ErrTerminal      = errors.New("tradeable is terminal")
)

// Tradeable is an Order or one side of a Quote. Only the matching and cancel
// logic of the owning book mutates it, under that book's lock.
//
// Invariants:
//   - originalVolume >= 1
//   - remainingVolume + cancelledVolume <= originalVolume
//   - once retired, no further mutation is accepted
type Tradeable struct {
	id      string
	user    string
	product string
	side    common.Side
	price   *price.Price
	quote   bool

	originalVolume  int
	remainingVolume int
	cancelledVolume int
	retired         bool
}

// NewOrder creates a standalone order with a fresh id.
func NewOrder(user, product string, p *price.Price, volume int, side common.Side) (*Tradeable, error) {
	return newTradeable(user, product, p, volume, side, false)
}

// NewQuoteSide creates one side of a quote. The two sides of a quote are linked
// only by user and product, so each can trade, retire or be cancelled alone.
func NewQuoteSide(user, product string, p *price.Price, volume int, side common.Side) (*Tradeable, error) {
	return newTradeable(user, product, p, volume, side, true)
}

func newTradeable(user, product string, p *price.Price, volume int, side common.Side, quote bool) (*Tradeable, error) {
	switch {
	case user == "":
		return nil, fmt.Errorf("%w: empty user", ErrInvalidInput)
	case product == "":
		return nil, fmt.Errorf("%w: empty product", ErrInvalidInput)
	case p == nil:
		return nil, fmt.Errorf("%w: nil price", ErrInvalidInput)
	case !side.Valid():
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, side)
	case volume < 1:
		return nil, fmt.Errorf("%w: original volume %d", ErrInvalidVolume, volume)
	}

	return &Tradeable{
		id:              uuid.New().String(),
		user:            user,
		product:         product,
		side:            side,
		price:           p,
		quote:           quote,
		originalVolume:  volume,
		remainingVolume: volume,
	}, nil
}

func (t *Tradeable) ID() string           { return t.id }
func (t *Tradeable) User() string         { return t.user }
func (t *Tradeable) Product() string      { return t.product }
func (t *Tradeable) Side() common.Side    { return t.side }
func (t *Tradeable) Price() *price.Price  { return t.price }
func (t *Tradeable) IsQuote() bool        { return t.quote }
func (t *Tradeable) OriginalVolume() int  { return t.originalVolume }
func (t *Tradeable) RemainingVolume() int { return t.remainingVolume }
func (t *Tradeable) CancelledVolume() int { return t.cancelledVolume }
func (t *Tradeable) Retired() bool        { return t.retired }

func (t *Tradeable) SetRemainingVolume(v int) error {
	if err := t.checkVolume(v, t.cancelledVolume); err != nil {
		return err
	}
	t.remainingVolume = v
	return nil
}

func (t *Tradeable) SetCancelledVolume(v int) error {
	if err := t.checkVolume(v, t.remainingVolume); err != nil {
		return err
	}
	t.cancelledVolume = v
	return nil
}

func (t *Tradeable) checkVolume(v, other int) error {
	if t.retired {
		return fmt.Errorf("%w: %s", ErrTerminal, t.id)
	}
	if v < 0 || v > t.originalVolume || v+other > t.originalVolume {
		return fmt.Errorf("%w: %d outside [0, %d]", ErrInvalidVolume, v, t.originalVolume-other)
	}
	return nil
}

// Retire makes the tradeable terminal. Whatever volume is still remaining is
// moved to cancelled. A tradeable can be retired exactly once.
func (t *Tradeable) Retire() error {
	if t.retired {
		return fmt.Errorf("%w: %s", ErrTerminal, t.id)
	}
	t.cancelledVolume += t.remainingVolume
	t.remainingVolume = 0
	t.retired = true
	return nil
}

// Snapshot returns an immutable copy of the current state.
func (t *Tradeable) Snapshot() Snapshot {
	return Snapshot{
		ID:              t.id,
		User:            t.user,
		Product:         t.product,
		Side:            t.side,
		Price:           t.price,
		IsQuote:         t.quote,
		OriginalVolume:  t.originalVolume,
		RemainingVolume: t.remainingVolume,
		CancelledVolume: t.cancelledVolume,
	}
}

func (t *Tradeable) String() string {
	return t.Snapshot().String()
}
