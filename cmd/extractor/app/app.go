package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/roman-kulish/gantry-extractors/internal/bus"
	"github.com/roman-kulish/gantry-extractors/internal/clowder"
	"github.com/roman-kulish/gantry-extractors/internal/extractor"
	"github.com/roman-kulish/gantry-extractors/internal/ledger"
	"github.com/roman-kulish/gantry-extractors/internal/status"
)

// Plugin is an extractor ready to be attached to the broker
type Plugin struct {
	Extractor   extractor.Extractor
	RoutingKeys []string

	// close releases resources held by the extractor, may be nil
	close func() error
}

func (p *Plugin) Close() error {
	if p.close == nil {
		return nil
	}
	return p.close()
}

// Builder creates a plugin from the application configuration
type Builder func(ctx context.Context, config *Config, store ledger.Store, logger *slog.Logger) (*Plugin, error)

// Run consumes extraction events for the plugin created by build until ctx is
// cancelled. Lost broker connections are re-established with a capped
// exponential backoff.
func Run(ctx context.Context, config *Config, build Builder, logger *slog.Logger) (err error) {
	store := ledger.NewSqliteStore(config.Ledger.Path)
	defer closeWithError(store, &err)

	plugin, err := build(ctx, config, store, logger)
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}
	defer closeWithError(plugin, &err)

	name := plugin.Extractor.Name()

	runner, err := extractor.NewRunner(plugin.Extractor, config.ExtractorConfig(name),
		extractor.WithLogger(logger),
		extractor.WithStore(store),
		extractor.WithClientOptions(clientOptions(config, logger)...),
	)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	consumer, err := bus.NewConsumer(config.BusConfig(name, plugin.RoutingKeys), runner, bus.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consume(gctx, consumer, config.Broker, logger)
	})

	if config.Settings.StatusAddr != "" {
		srv := status.NewServer(store, status.WithLogger(logger))
		g.Go(func() error {
			return srv.ListenAndServe(gctx, config.Settings.StatusAddr)
		})
	}

	return g.Wait()
}

// Migrate applies the ledger schema migrations
func Migrate(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	db, err := sql.Open("sqlite3", config.Ledger.Path)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer closeWithError(db, &err)

	results, err := ledger.Migrate(ctx, db)
	if err != nil {
		return err
	}

	for _, r := range results {
		logger.Info("applied migration", slog.Int64("version", r.Version), slog.String("source", r.Source))
	}
	if len(results) == 0 {
		logger.Info("ledger schema is up to date", slog.String("path", config.Ledger.Path))
	}
	return nil
}

func consume(ctx context.Context, consumer *bus.Consumer, config BrokerConfig, logger *slog.Logger) error {
	backoff := retry.WithCappedDuration(config.MaxRetryDelay.Duration(), retry.NewExponential(config.RetryDelay.Duration()))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := consumer.Run(ctx)
		if err == nil {
			return nil
		}

		logger.Warn("consumer stopped, reconnecting", slog.String("error", err.Error()))
		return retry.RetryableError(err)
	})

	if ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)) {
		return nil
	}
	return err
}

func clientOptions(config *Config, logger *slog.Logger) []func(c *clowder.Client) {
	options := []func(c *clowder.Client){
		clowder.WithLogger(logger),
		clowder.WithHTTPClient(&http.Client{Timeout: config.Clowder.Timeout.Duration()}),
	}
	if config.Clowder.User != "" {
		options = append(options, clowder.WithBasicAuth(config.Clowder.User, config.Clowder.Password))
	}
	return options
}

func closeWithError(cl interface{ Close() error }, err *error) {
	if cerr := cl.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
