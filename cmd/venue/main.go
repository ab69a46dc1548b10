package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bourse/internal/bus"
	"bourse/internal/common"
	"bourse/internal/config"
	"bourse/internal/engine"

	"github.com/rs/zerolog/log"
)

func main() {
	path := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := config.SetupLogging(cfg, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("venue exiting")
		os.Exit(1)
	}
}

// run builds the venue, trades until ctx is done and closes the market so
// every resting entry is cancelled before returning.
func run(ctx context.Context, cfg *config.Config) error {
	b := bus.New()
	ex := engine.New(b)

	var displays []*bus.AsyncSubscriber
	defer func() {
		for _, d := range displays {
			if err := d.Stop(); err != nil {
				log.Error().Err(err).Str("subscriber", d.Name()).Msg("unable to stop subscriber")
			}
		}
	}()

	for _, product := range cfg.Market.Products {
		if err := ex.CreateProduct(product); err != nil {
			return err
		}
		if !cfg.Events.LogProducts {
			continue
		}

		display := bus.NewAsyncSubscriber(bus.NewLogSubscriber("display-"+product, log.Logger), cfg.Events.Buffer)
		displays = append(displays, display)
		for _, ch := range []common.Channel{
			common.CurrentMarketChannel,
			common.LastSaleChannel,
			common.TickerChannel,
		} {
			if err := b.Subscribe(ch, display, product); err != nil {
				return err
			}
		}
	}

	if cfg.Market.OpenOnStart {
		if err := ex.SetMarketState(common.PreOpen); err != nil {
			return err
		}
		if err := ex.SetMarketState(common.Open); err != nil {
			return err
		}
	}

	log.Info().Strs("products", ex.Products()).Str("state", ex.MarketState().String()).Msg("venue running")

	// Block until shutdown.
	<-ctx.Done()

	log.Info().Msg("venue shutting down")
	return closeMarket(ex)
}

// closeMarket walks the market to CLOSED from wherever it is.
func closeMarket(ex *engine.Exchange) error {
	if ex.MarketState() == common.PreOpen {
		if err := ex.SetMarketState(common.Open); err != nil {
			return err
		}
	}
	if ex.MarketState() == common.Open {
		return ex.SetMarketState(common.Closed)
	}
	return nil
}
