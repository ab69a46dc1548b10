package engine

import (
	"fmt"

	"bourse/internal/common"
	"bourse/internal/price"
	"bourse/internal/tradeable"

	"github.com/tidwall/btree"
)

// PriceLevel holds the tradeables resting at one price, in arrival order.
type PriceLevel struct {
	price   *price.Price
	entries []*tradeable.Tradeable
}

func (l *PriceLevel) volume() int {
	sum := 0
	for _, t := range l.entries {
		sum += t.RemainingVolume()
	}
	return sum
}

type PriceLevels = btree.BTreeG[*PriceLevel]

// PriceLevelBook is one side of one product's book. It is owned by its
// SecurityBook and is only touched while the SecurityBook lock is held.
type PriceLevelBook struct {
	// Pointer to the owning book, which archives terminal tradeables and
	// publishes cancels.
	book *SecurityBook
	side common.Side

	// Price levels sorted best first. Within a level entries are sorted by
	// time added as they are appended.
	levels *PriceLevels
}

func newPriceLevelBook(book *SecurityBook, side common.Side) *PriceLevelBook {
	less := askLess
	if side == common.Buy {
		less = bidLess
	}
	return &PriceLevelBook{
		book:   book,
		side:   side,
		levels: btree.NewBTreeGOptions(less, btree.Options{NoLocks: true}),
	}
}

// A market price level, which should never normally rest, sorts ahead of every
// limit level on both sides.
func marketFirst(a, b *PriceLevel) (less, decided bool) {
	am, bm := a.price.IsMarket(), b.price.IsMarket()
	if am || bm {
		return am && !bm, true
	}
	return false, false
}

// Sorted greatest first.
func bidLess(a, b *PriceLevel) bool {
	if less, ok := marketFirst(a, b); ok {
		return less
	}
	return a.price.Cents() > b.price.Cents()
}

// Sorted least first.
func askLess(a, b *PriceLevel) bool {
	if less, ok := marketFirst(a, b); ok {
		return less
	}
	return a.price.Cents() < b.price.Cents()
}

func (pl *PriceLevelBook) Side() common.Side {
	return pl.side
}

func (pl *PriceLevelBook) IsEmpty() bool {
	return pl.levels.Len() == 0
}

// TopOfBookPrice returns the best price, or nil when the side is empty.
func (pl *PriceLevelBook) TopOfBookPrice() *price.Price {
	level, ok := pl.levels.Min()
	if !ok {
		return nil
	}
	return level.price
}

// TopOfBookVolume returns the remaining volume at the best price, or 0.
func (pl *PriceLevelBook) TopOfBookVolume() int {
	level, ok := pl.levels.Min()
	if !ok {
		return 0
	}
	return level.volume()
}

// EntriesAtPrice returns a copy of the queue at p, or nil.
func (pl *PriceLevelBook) EntriesAtPrice(p *price.Price) []*tradeable.Tradeable {
	level, ok := pl.levels.Get(&PriceLevel{price: p})
	if !ok {
		return nil
	}
	return append([]*tradeable.Tradeable(nil), level.entries...)
}

func (pl *PriceLevelBook) HasMarketPrice() bool {
	_, ok := pl.levels.Get(&PriceLevel{price: price.Market()})
	return ok
}

// HasOnlyMarketPrice reports whether all resting liquidity is non-displayable.
func (pl *PriceLevelBook) HasOnlyMarketPrice() bool {
	return pl.levels.Len() == 1 && pl.HasMarketPrice()
}

// AddToBook appends t to the tail of its price level, creating the level if
// needed.
func (pl *PriceLevelBook) AddToBook(t *tradeable.Tradeable) {
	// Levels comparator only accounts for price levels, so we create a dummy
	// price level for the search.
	level, ok := pl.levels.GetMut(&PriceLevel{price: t.Price()})
	if ok {
		level.entries = append(level.entries, t)
		return
	}
	pl.levels.Set(&PriceLevel{
		price:   t.Price(),
		entries: []*tradeable.Tradeable{t},
	})
}

// RemoveTradeable removes t by identity and prunes its level if it becomes
// empty. It reports whether t was resting here.
func (pl *PriceLevelBook) RemoveTradeable(t *tradeable.Tradeable) bool {
	level, ok := pl.levels.GetMut(&PriceLevel{price: t.Price()})
	if !ok {
		return false
	}
	for i, e := range level.entries {
		if e != t {
			continue
		}
		level.entries = append(level.entries[:i], level.entries[i+1:]...)
		if len(level.entries) == 0 {
			pl.levels.Delete(level)
		}
		return true
	}
	return false
}

func (pl *PriceLevelBook) find(match func(*tradeable.Tradeable) bool) *tradeable.Tradeable {
	var found *tradeable.Tradeable
	pl.levels.Scan(func(level *PriceLevel) bool {
		for _, t := range level.entries {
			if match(t) {
				found = t
				return false
			}
		}
		return true
	})
	return found
}

func (pl *PriceLevelBook) findOrder(id string) *tradeable.Tradeable {
	return pl.find(func(t *tradeable.Tradeable) bool { return t.ID() == id })
}

func (pl *PriceLevelBook) findQuote(user string) *tradeable.Tradeable {
	return pl.find(func(t *tradeable.Tradeable) bool { return t.IsQuote() && t.User() == user })
}

// CancelAll cancels every resting entry: quote sides by user, orders by id.
// Each cancel removes an entry, so the levels are copied before iterating.
func (pl *PriceLevelBook) CancelAll() error {
	var resting []*tradeable.Tradeable
	for _, level := range pl.levels.Items() {
		resting = append(resting, level.entries...)
	}

	for _, t := range resting {
		var err error
		if t.IsQuote() {
			err = pl.book.cancelQuoteSide(pl, t.User())
		} else {
			err = pl.book.cancelOrderOnSide(pl, t.ID())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Depth renders every level best first as "price x volume".
func (pl *PriceLevelBook) Depth() []string {
	depth := make([]string, 0, pl.levels.Len())
	pl.levels.Scan(func(level *PriceLevel) bool {
		depth = append(depth, fmt.Sprintf("%s x %d", level.price, level.volume()))
		return true
	})
	return depth
}

// OrdersWithRemainingQty returns snapshots of user's resting orders, quotes
// excluded.
func (pl *PriceLevelBook) OrdersWithRemainingQty(user string) []tradeable.Snapshot {
	var out []tradeable.Snapshot
	pl.levels.Scan(func(level *PriceLevel) bool {
		for _, t := range level.entries {
			if t.User() == user && t.RemainingVolume() > 0 && !t.IsQuote() {
				out = append(out, t.Snapshot())
			}
		}
		return true
	})
	return out
}
