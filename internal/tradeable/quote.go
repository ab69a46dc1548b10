package tradeable

import (
	"fmt"

	"bourse/internal/common"
	"bourse/internal/price"
)

// Quote is a two-sided standing interest of one user in one product.
type Quote struct {
	User    string
	Product string
	Buy     *Tradeable
	Sell    *Tradeable
}

func NewQuote(user, product string, buyPrice *price.Price, buyVolume int, sellPrice *price.Price, sellVolume int) (*Quote, error) {
	buy, err := NewQuoteSide(user, product, buyPrice, buyVolume, common.Buy)
	if err != nil {
		return nil, fmt.Errorf("buy side: %w", err)
	}
	sell, err := NewQuoteSide(user, product, sellPrice, sellVolume, common.Sell)
	if err != nil {
		return nil, fmt.Errorf("sell side: %w", err)
	}
	return &Quote{User: user, Product: product, Buy: buy, Sell: sell}, nil
}

// Side returns the quote side trading on s.
func (q *Quote) Side(s common.Side) *Tradeable {
	if s == common.Buy {
		return q.Buy
	}
	return q.Sell
}

func (q *Quote) String() string {
	return fmt.Sprintf("%s quote: %s - %s", q.User, q.Buy, q.Sell)
}
