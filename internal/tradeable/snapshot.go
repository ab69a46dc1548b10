package tradeable

import (
	"fmt"

	"bourse/internal/common"
	"bourse/internal/price"
)

// Snapshot is a point-in-time copy of a Tradeable, safe to hand outside the
// book's lock.
type Snapshot struct {
	ID              string
	User            string
	Product         string
	Side            common.Side
	Price           *price.Price
	IsQuote         bool
	OriginalVolume  int
	RemainingVolume int
	CancelledVolume int
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s x %d (Original Vol: %d, CXL'd: %d) [%s]",
		s.Price, s.RemainingVolume, s.OriginalVolume, s.CancelledVolume, s.ID)
}
