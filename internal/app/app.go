// Package app assembles the collector, analyzer and sinks from a Config. It
// is shared by the long-running service and the command-line tool.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/agro-monitor/internal/adapter/agro"
	"github.com/couchcryptid/agro-monitor/internal/adapter/filestore"
	httpadapter "github.com/couchcryptid/agro-monitor/internal/adapter/http"
	"github.com/couchcryptid/agro-monitor/internal/adapter/influx"
	kafkaadapter "github.com/couchcryptid/agro-monitor/internal/adapter/kafka"
	"github.com/couchcryptid/agro-monitor/internal/adapter/mqtt"
	"github.com/couchcryptid/agro-monitor/internal/adapter/postgres"
	"github.com/couchcryptid/agro-monitor/internal/adapter/sqlite"
	"github.com/couchcryptid/agro-monitor/internal/config"
	"github.com/couchcryptid/agro-monitor/internal/domain"
	"github.com/couchcryptid/agro-monitor/internal/observability"
	"github.com/couchcryptid/agro-monitor/internal/pipeline"
)

// Normalizer returns the payload normalizer configured by cfg.
func Normalizer(cfg *config.Config) domain.Normalizer {
	return domain.Normalizer{LegacyMissingDefaults: cfg.LegacyMissingDefaults}
}

// NewClient creates the upstream API client.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *agro.Client {
	return agro.NewClient(agro.Options{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.RequestTimeout,
		Retry:   agro.DefaultRetryPolicy(cfg.MaxRetries),
	}, metrics, logger)
}

// NewPipeline wires the collector and analyzer for the configured polygon in
// front of the given loaders.
func NewPipeline(cfg *config.Config, client *agro.Client, loaders []pipeline.Loader, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *pipeline.Pipeline {
	collector := agro.NewCollector(client, agro.NewCachedStats(client, cfg.StatsCacheSize, metrics), agro.CollectorConfig{
		PolygonID:   cfg.PolygonID,
		PolygonName: cfg.PolygonName,
		Lookback:    cfg.VegetationLookback,
		Normalizer:  Normalizer(cfg),
	}, clock, logger, metrics)

	return pipeline.New(collector, pipeline.NewAnalyzer(cfg.ReportLocation, ""), loaders, logger, metrics,
		pipeline.WithClock(clock),
		pipeline.WithInterval(cfg.CollectInterval),
	)
}

// Sinks holds every enabled loader plus the handles callers need directly.
type Sinks struct {
	Loaders []pipeline.Loader
	// Store is the relational store, nil when STORE_DRIVER is none.
	Store httpadapter.Store
	// Files is the flat-file history, nil when FILES_ENABLED is false.
	Files *filestore.Store

	closers []func()
}

// OpenSinks connects every sink enabled in cfg. On error the sinks opened so
// far are closed.
func OpenSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Sinks, error) {
	s := &Sinks{}
	if err := s.open(ctx, cfg, logger); err != nil {
		s.Close()
		return nil, err
	}
	names := make([]string, len(s.Loaders))
	for i, l := range s.Loaders {
		names[i] = l.Name()
	}
	logger.Info("sinks ready", "loaders", names)
	return s, nil
}

func (s *Sinks) open(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg.FilesEnabled {
		files, err := filestore.New(cfg.DataDir)
		if err != nil {
			return err
		}
		s.Files = files
		s.Loaders = append(s.Loaders, files)
	}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		store, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.ReportLocation)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		s.add(store, store.Close)
		s.Store = store
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath, cfg.ReportLocation)
		if err != nil {
			return fmt.Errorf("sqlite: %w", err)
		}
		s.add(store, func() {
			if err := store.Close(); err != nil {
				logger.Error("sqlite close error", "error", err)
			}
		})
		s.Store = store
	}

	if cfg.KafkaEnabled {
		w := kafkaadapter.NewWriter(cfg, logger)
		s.add(w, func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		})
	}

	if cfg.InfluxEnabled() {
		w, err := influx.NewWriter(influx.Config{
			URL:     cfg.InfluxURL,
			Token:   cfg.InfluxToken,
			Org:     cfg.InfluxOrg,
			Bucket:  cfg.InfluxBucket,
			Timeout: cfg.RequestTimeout,
		}, logger)
		if err != nil {
			return err
		}
		s.add(w, w.Close)
	}

	if cfg.MQTTEnabled() {
		p, err := mqtt.Connect(mqtt.Config{
			Broker:         cfg.MQTTBroker,
			ClientID:       cfg.MQTTClientID,
			Topic:          cfg.MQTTTopic,
			ConnectTimeout: cfg.RequestTimeout,
		}, logger)
		if err != nil {
			return err
		}
		s.add(p, p.Close)
	}
	return nil
}

func (s *Sinks) add(l pipeline.Loader, closeFn func()) {
	s.Loaders = append(s.Loaders, l)
	s.closers = append(s.closers, closeFn)
}

// Close releases the sinks in reverse order of opening.
func (s *Sinks) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
