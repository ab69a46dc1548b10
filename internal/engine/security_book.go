package engine

import (
	"fmt"
	"strings"
	"sync"

	"bourse/internal/common"
	"bourse/internal/price"
	"bourse/internal/tradeable"

	"github.com/rs/zerolog/log"
)

// Depth is the rendered book of one product, best price first on each side.
type Depth struct {
	Buy  []string
	Sell []string
}

func (d Depth) String() string {
	render := func(levels []string) string {
		if len(levels) == 0 {
			return "<Empty>"
		}
		return strings.Join(levels, ", ")
	}
	return fmt.Sprintf("BUY: [%s] SELL: [%s]", render(d.Buy), render(d.Sell))
}

type topOfBook struct {
	buyPrice   *price.Price
	buyVolume  int
	sellPrice  *price.Price
	sellVolume int
}

// SecurityBook is the book of one product. Every exported method holds the
// book lock for the whole logical operation, so all fills, cancels and
// market data of a product are published in one total order.
type SecurityBook struct {
	mu     sync.Mutex
	symbol string
	pub    Publisher

	buy  *PriceLevelBook
	sell *PriceLevelBook

	// Terminal tradeables, kept for late cancel detection.
	archive    map[*price.Price][]*tradeable.Tradeable
	archivedID map[string]*tradeable.Tradeable

	quoteUsers map[string]struct{}

	lastMarket topOfBook
	published  bool
}

func NewSecurityBook(symbol string, pub Publisher) *SecurityBook {
	if pub == nil {
		pub = nopPublisher{}
	}
	b := &SecurityBook{
		symbol:     symbol,
		pub:        pub,
		archive:    make(map[*price.Price][]*tradeable.Tradeable),
		archivedID: make(map[string]*tradeable.Tradeable),
		quoteUsers: make(map[string]struct{}),
	}
	b.buy = newPriceLevelBook(b, common.Buy)
	b.sell = newPriceLevelBook(b, common.Sell)
	return b
}

func (b *SecurityBook) Symbol() string {
	return b.symbol
}

func (b *SecurityBook) bookSide(side common.Side) *PriceLevelBook {
	if side == common.Buy {
		return b.buy
	}
	return b.sell
}

// AddOrder places an order. In PREOPEN it rests without matching; otherwise it
// matches against the opposite side first and any remainder rests, or is
// cancelled if the order is priced at market.
func (b *SecurityBook) AddOrder(state common.MarketState, o *tradeable.Tradeable) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if o.IsQuote() {
		return fmt.Errorf("%w: quote side %s submitted as an order", ErrInvalidInput, o.ID())
	}
	if err := b.addToBook(state, o); err != nil {
		return err
	}
	b.updateCurrentMarket()
	return nil
}

// AddQuote validates q and places both sides. A live quote of the same user is
// removed first, and market data is refreshed before the new sides go in.
func (b *SecurityBook) AddQuote(state common.MarketState, q *tradeable.Quote) error {
	if err := validateQuote(q.Buy.Price(), q.Buy.OriginalVolume(), q.Sell.Price(), q.Sell.OriginalVolume()); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.quoteUsers[q.User]; ok {
		if err := b.removeQuote(q.User); err != nil {
			return err
		}
		b.updateCurrentMarket()
		log.Debug().Str("product", b.symbol).Str("user", q.User).Msg("quote replaced")
	}

	if err := b.addToBook(state, q.Buy); err != nil {
		return err
	}
	if err := b.addToBook(state, q.Sell); err != nil {
		return err
	}
	b.quoteUsers[q.User] = struct{}{}
	b.updateCurrentMarket()
	return nil
}

// validateQuote checks the data of a quote before any side is built.
func validateQuote(buyPrice *price.Price, buyVolume int, sellPrice *price.Price, sellVolume int) error {
	if buyPrice == nil || sellPrice == nil {
		return fmt.Errorf("%w: nil quote price", ErrInvalidInput)
	}
	if buyPrice.IsMarket() || sellPrice.IsMarket() {
		return fmt.Errorf("%w: quote prices must be limit prices", ErrInvalidQuote)
	}
	if sellPrice.LessOrEqual(buyPrice) {
		return fmt.Errorf("%w: sell price %s must be greater than buy price %s",
			ErrInvalidQuote, sellPrice, buyPrice)
	}
	zero := price.Limit(0)
	if buyPrice.LessOrEqual(zero) || sellPrice.LessOrEqual(zero) {
		return fmt.Errorf("%w: prices must be greater than zero", ErrInvalidQuote)
	}
	if buyVolume <= 0 || sellVolume <= 0 {
		return fmt.Errorf("%w: volumes must be greater than zero", ErrInvalidQuote)
	}
	return nil
}

// CancelOrder cancels a resting entry by id. An id that already traded out or
// was cancelled produces a "too late to cancel" notice instead; an id never
// seen is ErrOrderNotFound.
func (b *SecurityBook) CancelOrder(side common.Side, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.cancelOrderOnSide(b.bookSide(side), id); err != nil {
		return err
	}
	b.updateCurrentMarket()
	return nil
}

// CancelQuote cancels both sides of user's quote. A missing side is not an
// error.
func (b *SecurityBook) CancelQuote(user string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.cancelQuoteSide(b.buy, user); err != nil {
		return err
	}
	if err := b.cancelQuoteSide(b.sell, user); err != nil {
		return err
	}
	delete(b.quoteUsers, user)
	b.updateCurrentMarket()
	return nil
}

// OpenMarket runs the opening sweep: while the book is crossed, the entries at
// the best bid trade against the ask side. Each sweep iteration publishes one
// last sale.
func (b *SecurityBook) OpenMarket() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for {
		buyPrice, sellPrice := b.buy.TopOfBookPrice(), b.sell.TopOfBookPrice()
		if buyPrice == nil || sellPrice == nil {
			break
		}
		if !buyPrice.GreaterOrEqual(sellPrice) && !buyPrice.IsMarket() && !sellPrice.IsMarket() {
			break
		}

		sweep := newFills()
		traded := 0
		for _, t := range b.buy.EntriesAtPrice(buyPrice) {
			fills, err := b.sell.TryTrade(t)
			b.publishFills(fills)
			if err != nil {
				return err
			}
			sweep.merge(fills)
			traded += fills.VolumeFor(t.ID())
		}
		if sweep.Len() == 0 {
			return fmt.Errorf("%w: crossed book %s/%s produced no fills", ErrInternal, buyPrice, sellPrice)
		}

		b.updateCurrentMarket()
		b.pub.PublishLastSale(b.symbol, sweep.LastPrice(), traded)
	}

	log.Debug().Str("product", b.symbol).Msg("opening sweep complete")
	return nil
}

// CloseMarket cancels every resting entry on both sides.
func (b *SecurityBook) CloseMarket() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.buy.CancelAll(); err != nil {
		return err
	}
	if err := b.sell.CancelAll(); err != nil {
		return err
	}
	clear(b.quoteUsers)
	b.updateCurrentMarket()
	return nil
}

func (b *SecurityBook) MarketData() common.MarketData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.marketData()
}

func (b *SecurityBook) Depth() Depth {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Depth{Buy: b.buy.Depth(), Sell: b.sell.Depth()}
}

func (b *SecurityBook) OrdersWithRemainingQty(user string) []tradeable.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append(b.buy.OrdersWithRemainingQty(user), b.sell.OrdersWithRemainingQty(user)...)
}

// ---- Internal methods, the caller holds b.mu ----

func (b *SecurityBook) addToBook(state common.MarketState, trd *tradeable.Tradeable) error {
	own := b.bookSide(trd.Side())
	if state == common.PreOpen {
		own.AddToBook(trd)
		return nil
	}

	fills, err := b.bookSide(trd.Side().Opposite()).TryTrade(trd)
	b.publishFills(fills)
	if err != nil {
		return err
	}
	if fills.Len() > 0 {
		b.updateCurrentMarket()
		b.pub.PublishLastSale(b.symbol, fills.LastPrice(), fills.VolumeFor(trd.ID()))
	}

	if trd.RemainingVolume() == 0 {
		return nil
	}
	if trd.Price().IsMarket() {
		// Market orders never rest.
		b.publishCancel(trd, fmt.Sprintf("%s Order Cancelled", trd.Side()))
		return b.retire(trd)
	}
	own.AddToBook(trd)
	log.Debug().
		Str("product", b.symbol).
		Str("id", trd.ID()).
		Int("volume", trd.RemainingVolume()).
		Msg("tradeable resting")
	return nil
}

// retire moves t out of its side of the book, if it rests there, and into the
// archive. It is the only path by which a tradeable becomes terminal.
func (b *SecurityBook) retire(t *tradeable.Tradeable) error {
	b.bookSide(t.Side()).RemoveTradeable(t)
	if err := t.Retire(); err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	b.archive[t.Price()] = append(b.archive[t.Price()], t)
	b.archivedID[t.ID()] = t
	return nil
}

func (b *SecurityBook) cancelOrderOnSide(pl *PriceLevelBook, id string) error {
	t := pl.findOrder(id)
	if t == nil {
		return b.checkTooLateToCancel(id)
	}
	b.publishCancel(t, fmt.Sprintf("%s Order Cancelled", t.Side()))
	return b.retire(t)
}

// checkTooLateToCancel reports a cancel that lost the race to a match or an
// earlier cancel. The notice carries the archived entry's remaining volume,
// which is always zero: the request itself cancelled nothing.
func (b *SecurityBook) checkTooLateToCancel(id string) error {
	t, ok := b.archivedID[id]
	if !ok {
		return fmt.Errorf("%w: %s in %s", ErrOrderNotFound, id, b.symbol)
	}
	log.Warn().Str("product", b.symbol).Str("id", id).Msg("too late to cancel")
	b.publishCancel(t, "Too late to cancel order ID: "+id)
	return nil
}

func (b *SecurityBook) cancelQuoteSide(pl *PriceLevelBook, user string) error {
	t := pl.findQuote(user)
	if t == nil {
		return nil
	}
	b.publishCancel(t, fmt.Sprintf("Quote %s-Side Cancelled.", t.Side()))
	return b.retire(t)
}

// removeQuote retires both sides of user's quote without publishing cancels.
func (b *SecurityBook) removeQuote(user string) error {
	for _, pl := range []*PriceLevelBook{b.buy, b.sell} {
		if t := pl.findQuote(user); t != nil {
			if err := b.retire(t); err != nil {
				return err
			}
		}
	}
	delete(b.quoteUsers, user)
	return nil
}

func (b *SecurityBook) publishFills(fills *Fills) {
	if fills == nil {
		return
	}
	for _, fill := range fills.Messages() {
		b.pub.PublishFill(fill)
	}
}

func (b *SecurityBook) publishCancel(t *tradeable.Tradeable, details string) {
	b.pub.PublishCancel(common.CancelMessage{ExecutionReport: common.ExecutionReport{
		User:    t.User(),
		Product: t.Product(),
		Price:   t.Price(),
		Volume:  t.RemainingVolume(),
		Details: details,
		Side:    t.Side(),
		ID:      t.ID(),
	}})
}

func (b *SecurityBook) topOfBook() topOfBook {
	return topOfBook{
		buyPrice:   b.buy.TopOfBookPrice(),
		buyVolume:  b.buy.TopOfBookVolume(),
		sellPrice:  b.sell.TopOfBookPrice(),
		sellVolume: b.sell.TopOfBookVolume(),
	}
}

func (b *SecurityBook) marketData() common.MarketData {
	top := b.topOfBook()
	md := common.MarketData{
		Product:    b.symbol,
		BuyPrice:   top.buyPrice,
		BuyVolume:  top.buyVolume,
		SellPrice:  top.sellPrice,
		SellVolume: top.sellVolume,
	}
	if md.BuyPrice == nil {
		md.BuyPrice = price.Limit(0)
	}
	if md.SellPrice == nil {
		md.SellPrice = price.Limit(0)
	}
	return md
}

// updateCurrentMarket publishes the top of book only when it differs from the
// last one published for this product.
func (b *SecurityBook) updateCurrentMarket() {
	top := b.topOfBook()
	if b.published && top == b.lastMarket {
		return
	}
	b.lastMarket = top
	b.published = true
	b.pub.PublishCurrentMarket(b.marketData())
}
