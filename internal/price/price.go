// Package price implements the venue's fixed-point money value.
//
// Prices are held as integer cents and are never floating point. Every distinct
// limit value has exactly one canonical *Price, and there is a single market
// price instance, so two prices of the same value are the same pointer. This
// makes *Price usable directly as a map key or a book level key.
package price

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidOperation = errors.New("invalid price operation")
	ErrInvalidPrice     = errors.New("invalid price")
)

// Price is an immutable limit or market price. A market price carries no
// meaningful value and takes part in neither ordering nor arithmetic.
type Price struct {
	cents  int64
	market bool
}

var (
	internMu sync.Mutex
	interned = make(map[int64]*Price)
	market   = &Price{market: true}
)

// Limit returns the canonical limit price for the given number of cents.
func Limit(cents int64) *Price {
	internMu.Lock()
	defer internMu.Unlock()

	if p, ok := interned[cents]; ok {
		return p
	}
	p := &Price{cents: cents}
	interned[cents] = p
	return p
}

// Market returns the canonical market price.
func Market() *Price {
	return market
}

// Parse builds a limit price from a dollar string such as "$1,234.56" or
// "10.005". Characters other than digits, '-' and '.' are ignored and the
// value is rounded to two decimal places using banker's rounding. An empty
// string is zero.
func Parse(s string) (*Price, error) {
	if s == "" {
		return Limit(0), nil
	}

	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '-' || r == '.' {
			return r
		}
		return -1
	}, s)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
	}
	return Limit(d.RoundBank(2).Shift(2).IntPart()), nil
}

// MustParse is Parse for constants known to be valid.
func MustParse(s string) *Price {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Interned reports how many distinct limit prices have been created.
func Interned() int {
	internMu.Lock()
	defer internMu.Unlock()
	return len(interned)
}

func (p *Price) IsMarket() bool {
	return p.market
}

// Cents returns the value in cents. It is zero for the market price.
func (p *Price) Cents() int64 {
	return p.cents
}

func (p *Price) IsNegative() bool {
	return !p.market && p.cents < 0
}

func (p *Price) Add(o *Price) (*Price, error) {
	if err := checkArithmetic("add", p, o); err != nil {
		return nil, err
	}
	return Limit(p.cents + o.cents), nil
}

func (p *Price) Subtract(o *Price) (*Price, error) {
	if err := checkArithmetic("subtract", p, o); err != nil {
		return nil, err
	}
	return Limit(p.cents - o.cents), nil
}

func (p *Price) Multiply(volume int) (*Price, error) {
	if p.market {
		return nil, fmt.Errorf("%w: multiply on a market price", ErrInvalidOperation)
	}
	return Limit(p.cents * int64(volume)), nil
}

func checkArithmetic(op string, a, b *Price) error {
	if a == nil || b == nil {
		return fmt.Errorf("%w: %s with a nil price", ErrInvalidOperation, op)
	}
	if a.market || b.market {
		return fmt.Errorf("%w: %s on a market price", ErrInvalidOperation, op)
	}
	return nil
}

// ordered reports whether both prices are limit prices. Every ordering
// predicate is false when it is not.
func ordered(a, b *Price) bool {
	return a != nil && b != nil && !a.market && !b.market
}

func (p *Price) LessThan(o *Price) bool {
	return ordered(p, o) && p.cents < o.cents
}

func (p *Price) LessOrEqual(o *Price) bool {
	return ordered(p, o) && p.cents <= o.cents
}

func (p *Price) GreaterThan(o *Price) bool {
	return ordered(p, o) && p.cents > o.cents
}

func (p *Price) GreaterOrEqual(o *Price) bool {
	return ordered(p, o) && p.cents >= o.cents
}

func (p *Price) Equals(o *Price) bool {
	return ordered(p, o) && p.cents == o.cents
}

// String renders "$1,234.56" (or "-$1,234.56") for limit prices and "MKT" for
// the market price.
func (p *Price) String() string {
	if p == nil {
		return "<nil>"
	}
	if p.market {
		return "MKT"
	}

	cents := p.cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	whole := strconv.FormatInt(cents/100, 10)
	var sb strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, sb.String(), cents%100)
}
