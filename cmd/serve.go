package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"arbix/internal/aggregation"
	"arbix/internal/api"
	"arbix/internal/cache"
	"arbix/internal/config"
	"arbix/internal/exchange"
	"arbix/internal/factory"
	"arbix/internal/history"
	"arbix/internal/metrics"
	"arbix/internal/monitor"
	"arbix/internal/notify"
	"arbix/internal/pricebook"
	"arbix/internal/transport"
	"arbix/internal/watchlist"
	"arbix/internal/websocket"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the refresh loop, HTTP API and WebSocket push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logCloser, err := loadConfig()
			if err != nil {
				return err
			}
			defer logCloser.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

// buildAggregator wires transport, cache and sources into an aggregator
func buildAggregator(ctx context.Context, cfg *config.Config, m *metrics.Registry) (*aggregation.Aggregator, cache.Cache, error) {
	client := transport.New(cfg.TransportOptions(), m).Client()

	sources, err := factory.NewSources(cfg.Sources.Enabled, cfg.SourceDeps(client))
	if err != nil {
		return nil, nil, err
	}

	var resolver aggregation.SymbolResolver
	for _, src := range sources {
		if r, ok := src.(aggregation.SymbolResolver); ok && src.GetName() == exchange.Uniswap {
			resolver = r
		}
	}

	quotes, err := cache.New(ctx, cfg.CacheOptions())
	if err != nil {
		return nil, nil, err
	}

	return aggregation.New(sources, resolver, quotes, m, cfg.AggregatorOptions()), quotes, nil
}

func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.Telegram.Token == "" {
		return notify.Nop{}, nil
	}
	return notify.NewTelegram(cfg.NotifierConfig(), nil)
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.NewRegistry()

	agg, quotes, err := buildAggregator(ctx, cfg, m)
	if err != nil {
		return err
	}
	if c, ok := quotes.(io.Closer); ok {
		defer c.Close()
	}

	tokens, err := watchlist.Load(cfg.Monitor.Watchlist)
	if err != nil {
		return err
	}

	var (
		store   monitor.SignalStore
		signals api.SignalReader
	)
	if cfg.History.Path != "" {
		h, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer h.Close()
		store, signals = h, h
	}

	notifier, err := newNotifier(cfg)
	if err != nil {
		return errors.Wrap(err, "telegram notifier")
	}

	book := pricebook.NewBook()
	mon := monitor.New(agg, book, tokens, store, notifier, cfg.Monitor.Interval)
	ws := websocket.NewServer(book, cfg.WebSocket.PushInterval, m)

	server := api.NewServer(api.ServerConfig{
		Addr:           cfg.Server.Addr,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, api.Deps{
		Collector: agg,
		Book:      book,
		Watchlist: tokens,
		Sources:   agg.Sources(),
		Signals:   signals,
		Metrics:   m.Handler(),
		WebSocket: http.HandlerFunc(ws.HandleWebSocket),
	})

	names := make([]string, 0, len(agg.Sources()))
	for _, src := range agg.Sources() {
		names = append(names, string(src.GetName()))
	}
	log.Info().
		Strs("sources", names).
		Int("tokens", len(tokens)).
		Dur("interval", cfg.Monitor.Interval).
		Msg("starting arbix")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := mon.Run(ctx); err != nil {
			log.Error().Err(err).Msg("monitor stopped")
		}
	}()
	go func() {
		defer wg.Done()
		ws.Run(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err = <-errCh:
		if err != nil {
			err = errors.Wrap(err, "http server")
		}
		cancel()
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if serr := server.Shutdown(shutdownCtx); serr != nil {
			log.Error().Err(serr).Msg("http shutdown")
		}
	}

	wg.Wait()
	log.Info().Msg("arbix stopped. Goodbye!")
	return err
}
