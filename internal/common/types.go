package common

import "fmt"

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the side a tradeable on s matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type MarketState int

const (
	// Closed accepts no orders, quotes or cancels.
	Closed MarketState = iota
	// PreOpen accumulates limit orders and quotes without matching them.
	PreOpen
	// Open matches continuously. Entering it runs the opening sweep.
	Open
)

func (s MarketState) String() string {
	switch s {
	case Closed:
		return "CLOSED"
	case PreOpen:
		return "PREOPEN"
	case Open:
		return "OPEN"
	default:
		return fmt.Sprintf("MarketState(%d)", int(s))
	}
}

func (s MarketState) Valid() bool {
	return s == Closed || s == PreOpen || s == Open
}

// Direction is the ticker movement of a trade price relative to the previous
// trade price of the same product.
type Direction int

const (
	// Unknown is reported for the first trade seen for a product.
	Unknown Direction = iota
	Up
	Down
	Equal
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "↑"
	case Down:
		return "↓"
	case Equal:
		return "="
	default:
		return " "
	}
}

// Channel is one of the event kinds a subscriber can register for.
type Channel int

const (
	CurrentMarketChannel Channel = iota
	LastSaleChannel
	TickerChannel
	MessageChannel // fills, cancels and market state changes
)

func (c Channel) String() string {
	switch c {
	case CurrentMarketChannel:
		return "current-market"
	case LastSaleChannel:
		return "last-sale"
	case TickerChannel:
		return "ticker"
	case MessageChannel:
		return "message"
	default:
		return fmt.Sprintf("Channel(%d)", int(c))
	}
}

func (c Channel) Valid() bool {
	return c >= CurrentMarketChannel && c <= MessageChannel
}
