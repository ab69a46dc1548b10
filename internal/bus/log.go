package bus

import (
	"bourse/internal/common"
	"bourse/internal/price"

	"github.com/rs/zerolog"
)

// LogSubscriber writes every event it receives as a structured log line.
type LogSubscriber struct {
	name   string
	logger zerolog.Logger
}

func NewLogSubscriber(name string, logger zerolog.Logger) *LogSubscriber {
	return &LogSubscriber{
		name:   name,
		logger: logger.With().Str("subscriber", name).Logger(),
	}
}

func (l *LogSubscriber) Name() string {
	return l.name
}

func (l *LogSubscriber) OnCurrentMarket(md common.MarketData) {
	l.logger.Info().
		Str("product", md.Product).
		Str("bid", md.BuyPrice.String()).
		Int("bid_volume", md.BuyVolume).
		Str("ask", md.SellPrice.String()).
		Int("ask_volume", md.SellVolume).
		Msg("current market")
}

func (l *LogSubscriber) OnLastSale(product string, p *price.Price, volume int) {
	l.logger.Info().
		Str("product", product).
		Str("price", p.String()).
		Int("volume", volume).
		Msg("last sale")
}

func (l *LogSubscriber) OnTicker(product string, p *price.Price, direction common.Direction) {
	l.logger.Info().
		Str("product", product).
		Str("price", p.String()).
		Str("direction", direction.String()).
		Msg("ticker")
}

func (l *LogSubscriber) report(r common.ExecutionReport, msg string) {
	l.logger.Info().
		Str("user", r.User).
		Str("product", r.Product).
		Str("side", r.Side.String()).
		Str("price", r.Price.String()).
		Int("volume", r.Volume).
		Str("id", r.ID).
		Str("details", r.Details).
		Msg(msg)
}

func (l *LogSubscriber) OnFill(f common.FillMessage) {
	l.report(f.ExecutionReport, "fill")
}

func (l *LogSubscriber) OnCancel(c common.CancelMessage) {
	l.report(c.ExecutionReport, "cancel")
}

func (l *LogSubscriber) OnMarketStateChange(state common.MarketState) {
	l.logger.Info().Str("state", state.String()).Msg("market state")
}
