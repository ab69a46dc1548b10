// Package engine is the matching engine of the venue: the per-side price level
// books, the price-time matching algorithm, the per-product security books and
// the Exchange that owns them together with the market state.
package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"bourse/internal/common"
	"bourse/internal/price"
	"bourse/internal/tradeable"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("invalid market state transition")
	ErrMarketState       = errors.New("not allowed in current market state")
	ErrNoSuchProduct     = errors.New("no such product")
	ErrProductExists     = errors.New("product already exists")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidQuote      = errors.New("invalid quote")
	// ErrInternal marks a logic defect, never a rejected request.
	ErrInternal = errors.New("internal consistency fault")
)

// Publisher receives everything the books produce. Calls are made while the
// producing book is locked, so a Publisher must not call back into the
// Exchange on the same goroutine.
type Publisher interface {
	PublishCurrentMarket(md common.MarketData)
	PublishLastSale(product string, p *price.Price, volume int)
	PublishFill(f common.FillMessage)
	PublishCancel(c common.CancelMessage)
	PublishMarketState(state common.MarketState)
}

type nopPublisher struct{}

func (nopPublisher) PublishCurrentMarket(common.MarketData)    {}
func (nopPublisher) PublishLastSale(string, *price.Price, int) {}
func (nopPublisher) PublishFill(common.FillMessage)            {}
func (nopPublisher) PublishCancel(common.CancelMessage)        {}
func (nopPublisher) PublishMarketState(common.MarketState)     {}

// Exchange is the registry of security books plus the market state machine.
//
// The exchange lock guards the state and the registry. Commands take it
// shared, so different products trade concurrently and each is serialized by
// its own book lock; state transitions and product creation take it
// exclusively, so an opening sweep completes before any new order reaches a
// book.
type Exchange struct {
	mu    sync.RWMutex
	state common.MarketState
	books map[string]*SecurityBook
	pub   Publisher
}

func New(pub Publisher) *Exchange {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Exchange{
		state: common.Closed,
		books: make(map[string]*SecurityBook),
		pub:   pub,
	}
}

func (e *Exchange) CreateProduct(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty product symbol", ErrInvalidInput)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.books[symbol]; ok {
		return fmt.Errorf("%w: %s", ErrProductExists, symbol)
	}
	e.books[symbol] = NewSecurityBook(symbol, e.pub)
	log.Info().Str("product", symbol).Msg("product created")
	return nil
}

// Products returns the symbols of every product, sorted.
func (e *Exchange) Products() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	symbols := make([]string, 0, len(e.books))
	for symbol := range e.books {
		symbols = append(symbols, symbol)
	}
	slices.Sort(symbols)
	return symbols
}

func (e *Exchange) MarketState() common.MarketState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

func validTransition(from, to common.MarketState) bool {
	switch from {
	case common.Closed:
		return to == common.PreOpen
	case common.PreOpen:
		return to == common.Open
	case common.Open:
		return to == common.Closed
	}
	return false
}

// SetMarketState moves the market through CLOSED -> PREOPEN -> OPEN -> CLOSED.
// Entering OPEN runs the opening sweep of every book and entering CLOSED
// cancels everything resting.
func (e *Exchange) SetMarketState(state common.MarketState) error {
	if !state.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidInput, state)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !validTransition(e.state, state) {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, e.state, state)
	}
	log.Info().Str("from", e.state.String()).Str("to", state.String()).Msg("market state change")
	e.state = state
	e.pub.PublishMarketState(state)

	switch state {
	case common.Open:
		return e.forEachBook((*SecurityBook).OpenMarket)
	case common.Closed:
		return e.forEachBook((*SecurityBook).CloseMarket)
	}
	return nil
}

// forEachBook runs fn on every book concurrently; books are independent of
// each other. The first error is returned once all have finished.
func (e *Exchange) forEachBook(fn func(*SecurityBook) error) error {
	if len(e.books) == 0 {
		return nil
	}

	var t tomb.Tomb
	t.Go(func() error {
		for _, book := range e.books {
			t.Go(func() error {
				if err := fn(book); err != nil {
					return fmt.Errorf("%s: %w", book.Symbol(), err)
				}
				return nil
			})
		}
		return nil
	})
	return t.Wait()
}

// book looks up a product. The caller holds e.mu.
func (e *Exchange) book(product string) (*SecurityBook, error) {
	book, ok := e.books[product]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchProduct, product)
	}
	return book, nil
}

// tradingBook checks the market accepts submissions and looks up a product.
// The caller holds e.mu.
func (e *Exchange) tradingBook(product string) (*SecurityBook, error) {
	if e.state == common.Closed {
		return nil, fmt.Errorf("%w: market is %s", ErrMarketState, e.state)
	}
	return e.book(product)
}

// SubmitOrder places an order and returns its id.
func (e *Exchange) SubmitOrder(user, product string, p *price.Price, volume int, side common.Side) (string, error) {
	order, err := tradeable.NewOrder(user, product, p, volume, side)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	book, err := e.tradingBook(product)
	if err != nil {
		return "", err
	}
	if e.state == common.PreOpen && p.IsMarket() {
		return "", fmt.Errorf("%w: market orders are not accepted in %s", ErrMarketState, e.state)
	}

	if err := book.AddOrder(e.state, order); err != nil {
		return "", err
	}
	log.Debug().
		Str("product", product).
		Str("user", user).
		Str("id", order.ID()).
		Str("side", side.String()).
		Str("price", p.String()).
		Int("volume", volume).
		Msg("order accepted")
	return order.ID(), nil
}

func (e *Exchange) SubmitOrderCancel(product string, side common.Side, id string) error {
	if id == "" || !side.Valid() {
		return fmt.Errorf("%w: cancel of %q on %v", ErrInvalidInput, id, side)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	book, err := e.tradingBook(product)
	if err != nil {
		return err
	}
	return book.CancelOrder(side, id)
}

func (e *Exchange) SubmitQuote(user, product string, buyPrice *price.Price, buyVolume int, sellPrice *price.Price, sellVolume int) error {
	if user == "" || product == "" {
		return fmt.Errorf("%w: empty user or product", ErrInvalidInput)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	book, err := e.tradingBook(product)
	if err != nil {
		return err
	}
	if err := validateQuote(buyPrice, buyVolume, sellPrice, sellVolume); err != nil {
		return err
	}
	quote, err := tradeable.NewQuote(user, product, buyPrice, buyVolume, sellPrice, sellVolume)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return book.AddQuote(e.state, quote)
}

func (e *Exchange) SubmitQuoteCancel(user, product string) error {
	if user == "" {
		return fmt.Errorf("%w: empty user", ErrInvalidInput)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	book, err := e.tradingBook(product)
	if err != nil {
		return err
	}
	return book.CancelQuote(user)
}

func (e *Exchange) BookDepth(product string) (Depth, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	book, err := e.book(product)
	if err != nil {
		return Depth{}, err
	}
	return book.Depth(), nil
}

func (e *Exchange) MarketData(product string) (common.MarketData, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	book, err := e.book(product)
	if err != nil {
		return common.MarketData{}, err
	}
	return book.MarketData(), nil
}

// OrdersWithRemainingQty returns the resting orders of user in product.
func (e *Exchange) OrdersWithRemainingQty(user, product string) ([]tradeable.Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	book, err := e.book(product)
	if err != nil {
		return nil, err
	}
	return book.OrdersWithRemainingQty(user), nil
}
