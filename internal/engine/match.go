package engine

import (
	"fmt"

	"bourse/internal/common"
	"bourse/internal/price"
	"bourse/internal/tradeable"
)

type fillKey struct {
	user  string
	id    string
	price *price.Price
}

// Fills is the set of fill records produced by one matching pass. A record is
// keyed by (user, tradeable id, execution price); a key that recurs within the
// pass is merged into the existing record so each tuple settles exactly once.
type Fills struct {
	order     []fillKey
	byKey     map[fillKey]*common.FillMessage
	lastPrice *price.Price
}

func newFills() *Fills {
	return &Fills{byKey: make(map[fillKey]*common.FillMessage)}
}

func (f *Fills) add(m common.FillMessage) {
	key := fillKey{user: m.User, id: m.ID, price: m.Price}
	if existing, ok := f.byKey[key]; ok {
		existing.Volume += m.Volume
		existing.Details = m.Details
		return
	}
	f.order = append(f.order, key)
	f.byKey[key] = &m
}

func (f *Fills) merge(o *Fills) {
	for _, key := range o.order {
		f.add(*o.byKey[key])
	}
	if o.lastPrice != nil {
		f.lastPrice = o.lastPrice
	}
}

func (f *Fills) Len() int {
	return len(f.order)
}

// Messages returns the records in the order their keys were first seen.
func (f *Fills) Messages() []common.FillMessage {
	out := make([]common.FillMessage, 0, len(f.order))
	for _, key := range f.order {
		out = append(out, *f.byKey[key])
	}
	return out
}

// VolumeFor sums the traded volume recorded for one tradeable.
func (f *Fills) VolumeFor(id string) int {
	sum := 0
	for _, key := range f.order {
		if key.id == id {
			sum += f.byKey[key].Volume
		}
	}
	return sum
}

// LastPrice is the execution price of the most recent trade in the pass.
func (f *Fills) LastPrice() *price.Price {
	return f.lastPrice
}

func newFill(t *tradeable.Tradeable, execution *price.Price, volume, leaving int) common.FillMessage {
	return common.FillMessage{ExecutionReport: common.ExecutionReport{
		User:    t.User(),
		Product: t.Product(),
		Price:   execution,
		Volume:  volume,
		Details: fmt.Sprintf("leaving %d", leaving),
		Side:    t.Side(),
		ID:      t.ID(),
	}}
}

// crosses reports whether trd may trade against the best price of this side:
// either party is a market price, or trd is priced at or through it.
func (pl *PriceLevelBook) crosses(trd *tradeable.Tradeable) bool {
	top := pl.TopOfBookPrice()
	if top == nil {
		return false
	}
	if trd.Price().IsMarket() || top.IsMarket() {
		return true
	}
	if pl.side == common.Sell {
		return trd.Price().GreaterOrEqual(top)
	}
	return trd.Price().LessOrEqual(top)
}

// TryTrade matches the aggressor trd against this side in price-time priority,
// level by level, while trd has volume left, the side is not empty and the
// best price still crosses. Tradeables that reach zero remaining volume are
// archived as they trade out, trd included.
func (pl *PriceLevelBook) TryTrade(trd *tradeable.Tradeable) (*Fills, error) {
	all := newFills()
	for trd.RemainingVolume() > 0 && !pl.IsEmpty() && pl.crosses(trd) {
		fills, err := pl.doTrade(trd)
		// Fills already applied to volumes are reported even on failure.
		all.merge(fills)
		if err != nil {
			return all, err
		}
		if fills.Len() == 0 {
			return all, fmt.Errorf("%w: crossing level %s produced no fills",
				ErrInternal, pl.TopOfBookPrice())
		}
	}
	return all, nil
}

// doTrade consumes the entries at the best price level, oldest first, until
// trd is exhausted or the level is.
func (pl *PriceLevelBook) doTrade(trd *tradeable.Tradeable) (*Fills, error) {
	fills := newFills()

	level, ok := pl.levels.Min()
	if !ok {
		return fills, nil
	}
	entries := append([]*tradeable.Tradeable(nil), level.entries...)

	for _, t := range entries {
		if trd.RemainingVolume() == 0 {
			break
		}

		qty := min(trd.RemainingVolume(), t.RemainingVolume())
		execution := t.Price()
		if execution.IsMarket() {
			execution = trd.Price()
		}
		restingLeft := t.RemainingVolume() - qty
		aggressorLeft := trd.RemainingVolume() - qty

		fills.add(newFill(t, execution, qty, restingLeft))
		fills.add(newFill(trd, execution, qty, aggressorLeft))
		fills.lastPrice = execution

		if err := t.SetRemainingVolume(restingLeft); err != nil {
			return fills, fmt.Errorf("%w: %w", ErrInternal, err)
		}
		if err := trd.SetRemainingVolume(aggressorLeft); err != nil {
			return fills, fmt.Errorf("%w: %w", ErrInternal, err)
		}

		if restingLeft == 0 {
			if err := pl.book.retire(t); err != nil {
				return fills, err
			}
		}
		if aggressorLeft == 0 {
			if err := pl.book.retire(trd); err != nil {
				return fills, err
			}
		}
	}
	return fills, nil
}
