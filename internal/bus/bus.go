// Package bus fans the events produced by the engine out to subscribers.
//
// Subscriptions are held per channel and per product. Current market, last
// sale and ticker events are broadcast to every subscriber of the product;
// fills and cancels are delivered only to the subscriber whose name is the
// report's user; market state changes go once to every subscriber of any
// channel and product.
package bus

import (
	"errors"
	"fmt"
	"sync"

	"bourse/internal/common"
	"bourse/internal/price"

	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrNotSubscribed     = errors.New("not subscribed")
)

// Subscriber receives events. Subscribers are compared by identity, so
// implementations should be pointer types. Callbacks run on the publishing
// goroutine while the product's book is locked and must not call back into
// the exchange; wrap slow or reentrant subscribers in an AsyncSubscriber.
type Subscriber interface {
	// Name identifies the user whose fills and cancels this subscriber
	// receives.
	Name() string
	OnCurrentMarket(md common.MarketData)
	OnLastSale(product string, p *price.Price, volume int)
	OnTicker(product string, p *price.Price, direction common.Direction)
	OnFill(f common.FillMessage)
	OnCancel(c common.CancelMessage)
	OnMarketStateChange(state common.MarketState)
}

type registryKey struct {
	channel common.Channel
	product string
}

// registry is the subscriber set of one channel and product, in subscription
// order.
type registry struct {
	mu   sync.Mutex
	subs []Subscriber
}

func (r *registry) snapshot() []Subscriber {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Subscriber(nil), r.subs...)
}

type Bus struct {
	mu         sync.RWMutex
	registries map[registryKey]*registry

	tickerMu   sync.Mutex
	lastTicker map[string]*price.Price
}

func New() *Bus {
	return &Bus{
		registries: make(map[registryKey]*registry),
		lastTicker: make(map[string]*price.Price),
	}
}

// lookup returns the registry of ch and product, or nil.
func (b *Bus) lookup(ch common.Channel, product string) *registry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.registries[registryKey{ch, product}]
}

// registry returns the registry of ch and product, creating it if needed.
func (b *Bus) registry(ch common.Channel, product string) *registry {
	if r := b.lookup(ch, product); r != nil {
		return r
	}

	key := registryKey{ch, product}

	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.registries[key]
	if !ok {
		r = &registry{}
		b.registries[key] = r
	}
	return r
}

func validate(ch common.Channel, sub Subscriber, product string) error {
	if !ch.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidInput, ch)
	}
	if sub == nil {
		return fmt.Errorf("%w: nil subscriber", ErrInvalidInput)
	}
	if product == "" {
		return fmt.Errorf("%w: empty product", ErrInvalidInput)
	}
	return nil
}

func (b *Bus) Subscribe(ch common.Channel, sub Subscriber, product string) error {
	if err := validate(ch, sub, product); err != nil {
		return err
	}

	r := b.registry(ch, product)
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.subs {
		if s == sub {
			return fmt.Errorf("%w: %s to %s for %s", ErrAlreadySubscribed, sub.Name(), ch, product)
		}
	}
	r.subs = append(r.subs, sub)
	log.Debug().Str("subscriber", sub.Name()).Str("channel", ch.String()).Str("product", product).Msg("subscribed")
	return nil
}

func (b *Bus) Unsubscribe(ch common.Channel, sub Subscriber, product string) error {
	if err := validate(ch, sub, product); err != nil {
		return err
	}

	r := b.lookup(ch, product)
	if r == nil {
		return fmt.Errorf("%w: %s to %s for %s", ErrNotSubscribed, sub.Name(), ch, product)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, s := range r.subs {
		if s == sub {
			r.subs = append(r.subs[:i], r.subs[i+1:]...)
			log.Debug().Str("subscriber", sub.Name()).Str("channel", ch.String()).Str("product", product).Msg("unsubscribed")
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s for %s", ErrNotSubscribed, sub.Name(), ch, product)
}

// deliver calls fn on sub. A panicking subscriber is logged and skipped so the
// rest of the broadcast still goes out.
func deliver(sub Subscriber, event string, fn func(Subscriber)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("subscriber", sub.Name()).
				Str("event", event).
				Interface("panic", r).
				Msg("subscriber fault")
		}
	}()
	fn(sub)
}

func (b *Bus) broadcast(ch common.Channel, product, event string, fn func(Subscriber)) {
	for _, sub := range b.lookup(ch, product).snapshot() {
		deliver(sub, event, fn)
	}
}

func (b *Bus) PublishCurrentMarket(md common.MarketData) {
	b.broadcast(common.CurrentMarketChannel, md.Product, "current market", func(s Subscriber) {
		s.OnCurrentMarket(md)
	})
}

// PublishLastSale broadcasts a trade and then the ticker move it implies.
func (b *Bus) PublishLastSale(product string, p *price.Price, volume int) {
	b.broadcast(common.LastSaleChannel, product, "last sale", func(s Subscriber) {
		s.OnLastSale(product, p, volume)
	})
	b.publishTicker(product, p)
}

func (b *Bus) publishTicker(product string, p *price.Price) {
	b.tickerMu.Lock()
	direction := tickerDirection(b.lastTicker[product], p)
	b.lastTicker[product] = p
	b.tickerMu.Unlock()

	b.broadcast(common.TickerChannel, product, "ticker", func(s Subscriber) {
		s.OnTicker(product, p, direction)
	})
}

// tickerDirection compares a trade price with the previous one. Unknown is
// returned for the first trade and whenever the prices do not compare.
func tickerDirection(prev, p *price.Price) common.Direction {
	switch {
	case prev == nil:
		return common.Unknown
	case p.GreaterThan(prev):
		return common.Up
	case p.LessThan(prev):
		return common.Down
	case p.Equals(prev):
		return common.Equal
	}
	return common.Unknown
}

// sendTo delivers an execution report to the subscribers of product named
// user.
func (b *Bus) sendTo(product, user, event string, fn func(Subscriber)) {
	for _, sub := range b.lookup(common.MessageChannel, product).snapshot() {
		if sub.Name() == user {
			deliver(sub, event, fn)
		}
	}
}

func (b *Bus) PublishFill(f common.FillMessage) {
	b.sendTo(f.Product, f.User, "fill", func(s Subscriber) {
		s.OnFill(f)
	})
}

func (b *Bus) PublishCancel(c common.CancelMessage) {
	b.sendTo(c.Product, c.User, "cancel", func(s Subscriber) {
		s.OnCancel(c)
	})
}

// PublishMarketState notifies every subscriber of any channel and product,
// once each.
func (b *Bus) PublishMarketState(state common.MarketState) {
	b.mu.RLock()
	registries := make([]*registry, 0, len(b.registries))
	for _, r := range b.registries {
		registries = append(registries, r)
	}
	b.mu.RUnlock()

	seen := make(map[Subscriber]struct{})
	for _, r := range registries {
		for _, sub := range r.snapshot() {
			if _, ok := seen[sub]; ok {
				continue
			}
			seen[sub] = struct{}{}
			deliver(sub, "market state", func(s Subscriber) {
				s.OnMarketStateChange(state)
			})
		}
	}
}
