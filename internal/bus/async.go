package bus

import (
	"sync/atomic"

	"bourse/internal/common"
	"bourse/internal/price"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const DEFAULT_MAILBOX_SIZE = 1024

type event struct {
	name    string
	deliver func(Subscriber)
}

// AsyncSubscriber decouples a Subscriber from the publishing goroutine. Events
// are queued on a bounded mailbox and handed to the wrapped subscriber, in
// order, by a single worker. An event that finds the mailbox full is dropped
// and counted rather than block the book that produced it.
type AsyncSubscriber struct {
	sub     Subscriber
	mailbox chan event
	t       tomb.Tomb
	dropped atomic.Uint64
}

func NewAsyncSubscriber(sub Subscriber, size int) *AsyncSubscriber {
	if size <= 0 {
		size = DEFAULT_MAILBOX_SIZE
	}
	a := &AsyncSubscriber{
		sub:     sub,
		mailbox: make(chan event, size),
	}
	a.t.Go(a.worker)
	return a
}

// worker drains the mailbox until Stop, then hands over what is still queued.
func (a *AsyncSubscriber) worker() error {
	for {
		select {
		case <-a.t.Dying():
			for {
				select {
				case ev := <-a.mailbox:
					deliver(a.sub, ev.name, ev.deliver)
				default:
					return nil
				}
			}
		case ev := <-a.mailbox:
			deliver(a.sub, ev.name, ev.deliver)
		}
	}
}

func (a *AsyncSubscriber) enqueue(name string, fn func(Subscriber)) {
	select {
	case <-a.t.Dying():
		a.drop(name)
		return
	default:
	}

	select {
	case a.mailbox <- event{name: name, deliver: fn}:
	default:
		a.drop(name)
	}
}

func (a *AsyncSubscriber) drop(name string) {
	n := a.dropped.Add(1)
	log.Warn().
		Str("subscriber", a.sub.Name()).
		Str("event", name).
		Uint64("dropped", n).
		Msg("subscriber mailbox full, event dropped")
}

// Dropped is the number of events discarded so far.
func (a *AsyncSubscriber) Dropped() uint64 {
	return a.dropped.Load()
}

// Stop delivers the events already queued and waits for the worker to exit.
func (a *AsyncSubscriber) Stop() error {
	a.t.Kill(nil)
	return a.t.Wait()
}

func (a *AsyncSubscriber) Name() string {
	return a.sub.Name()
}

func (a *AsyncSubscriber) OnCurrentMarket(md common.MarketData) {
	a.enqueue("current market", func(s Subscriber) { s.OnCurrentMarket(md) })
}

func (a *AsyncSubscriber) OnLastSale(product string, p *price.Price, volume int) {
	a.enqueue("last sale", func(s Subscriber) { s.OnLastSale(product, p, volume) })
}

func (a *AsyncSubscriber) OnTicker(product string, p *price.Price, direction common.Direction) {
	a.enqueue("ticker", func(s Subscriber) { s.OnTicker(product, p, direction) })
}

func (a *AsyncSubscriber) OnFill(f common.FillMessage) {
	a.enqueue("fill", func(s Subscriber) { s.OnFill(f) })
}

func (a *AsyncSubscriber) OnCancel(c common.CancelMessage) {
	a.enqueue("cancel", func(s Subscriber) { s.OnCancel(c) })
}

func (a *AsyncSubscriber) OnMarketStateChange(state common.MarketState) {
	a.enqueue("market state", func(s Subscriber) { s.OnMarketStateChange(state) })
}
