package common

import (
	"fmt"

	"bourse/internal/price"
)

// MarketData is the top of book of one product. An empty side is reported
// with a $0.00 price and zero volume.
type MarketData struct {
	Product    string
	BuyPrice   *price.Price
	BuyVolume  int
	SellPrice  *price.Price
	SellVolume int
}

func (m MarketData) String() string {
	return fmt.Sprintf("%s %d@%s x %d@%s",
		m.Product, m.BuyVolume, m.BuyPrice, m.SellVolume, m.SellPrice)
}

// ExecutionReport holds the fields shared by fills and cancels. Reports are
// addressed to User only.
type ExecutionReport struct {
	User    string
	Product string
	Price   *price.Price
	Volume  int
	Details string
	Side    Side
	ID      string // Tradeable the report refers to
}

// FillMessage reports volume traded by one tradeable at one price.
type FillMessage struct {
	ExecutionReport
}

func (f FillMessage) String() string {
	return fmt.Sprintf(
		"User: %s, Product: %s, Price: %s, Volume: %d, Details: %s, Side: %s",
		f.User, f.Product, f.Price, f.Volume, f.Details, f.Side,
	)
}

// CancelMessage reports volume removed from the book without trading, or a
// cancel request that arrived after the tradeable had already left the book.
type CancelMessage struct {
	ExecutionReport
}

func (c CancelMessage) String() string {
	return fmt.Sprintf(
		"User: %s, Product: %s, Price: %s, Volume: %d, Details: %s, Side: %s, Id: %s",
		c.User, c.Product, c.Price, c.Volume, c.Details, c.Side, c.ID,
	)
}
