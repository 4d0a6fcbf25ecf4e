package agro

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/agro-monitor/internal/domain"
	"github.com/couchcryptid/agro-monitor/internal/observability"
)

// Index names in an image's stats map.
const (
	IndexNDVI = "ndvi"
	IndexNDWI = "ndwi"
)

// API is the subset of the Agromonitoring client the collector needs.
type API interface {
	CurrentWeather(ctx context.Context, polygonID string) (domain.RawWeather, error)
	CurrentSoil(ctx context.Context, polygonID string) (domain.RawSoil, error)
	Forecast(ctx context.Context, polygonID string) ([]domain.RawForecastItem, error)
	SearchImages(ctx context.Context, polygonID string, start, end time.Time) ([]domain.RawImage, error)
}

// CollectorConfig identifies the polygon and the vegetation window.
type CollectorConfig struct {
	PolygonID   string
	PolygonName string
	Lookback    time.Duration
	Normalizer  domain.Normalizer
}

// Collector fetches everything one analysis needs and normalizes it into a
// snapshot. Weather, soil, forecast and image search are required; a failed
// statistics document only drops that pass from the series.
type Collector struct {
	api     API
	stats   StatsFetcher
	cfg     CollectorConfig
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewCollector creates a Collector.
func NewCollector(api API, stats StatsFetcher, cfg CollectorConfig, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Collector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{api: api, stats: stats, cfg: cfg, clock: clock, logger: logger, metrics: metrics}
}

// Extract runs the four upstream fetches concurrently and returns the
// normalized snapshot. Any required fetch or parse failure fails the whole
// snapshot.
func (c *Collector) Extract(ctx context.Context) (domain.Snapshot, error) {
	now := c.clock.Now().UTC()
	snap := domain.Snapshot{
		PolygonID:   c.cfg.PolygonID,
		PolygonName: c.cfg.PolygonName,
		CollectedAt: now,
	}

	var (
		rawWeather  domain.RawWeather
		rawSoil     domain.RawSoil
		rawForecast []domain.RawForecastItem
		images      []domain.RawImage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rawWeather, err = c.api.CurrentWeather(gctx, c.cfg.PolygonID)
		return c.sourceErr("weather", err)
	})
	g.Go(func() (err error) {
		rawSoil, err = c.api.CurrentSoil(gctx, c.cfg.PolygonID)
		return c.sourceErr("soil", err)
	})
	g.Go(func() (err error) {
		rawForecast, err = c.api.Forecast(gctx, c.cfg.PolygonID)
		return c.sourceErr("forecast", err)
	})
	g.Go(func() (err error) {
		images, err = c.api.SearchImages(gctx, c.cfg.PolygonID, now.Add(-c.cfg.Lookback), now)
		return c.sourceErr("images", err)
	})
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, err
	}

	var err error
	if snap.Weather, err = c.cfg.Normalizer.Weather(rawWeather); err != nil {
		return domain.Snapshot{}, fmt.Errorf("normalize weather: %w", err)
	}
	if snap.Soil, err = c.cfg.Normalizer.Soil(rawSoil); err != nil {
		return domain.Snapshot{}, fmt.Errorf("normalize soil: %w", err)
	}
	if snap.Forecast, err = c.cfg.Normalizer.Forecast(rawForecast); err != nil {
		return domain.Snapshot{}, fmt.Errorf("normalize forecast: %w", err)
	}

	snap.Vegetation, err = c.vegetation(ctx, images)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Vegetation = snap.Vegetation.Sorted()
	return snap, nil
}

// vegetation resolves the NDVI (and NDWI when present) statistics for each
// image. Images without NDVI statistics are skipped.
func (c *Collector) vegetation(ctx context.Context, images []domain.RawImage) (domain.VegetationSeries, error) {
	series := make(domain.VegetationSeries, 0, len(images))
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ndviURL := img.Stats[IndexNDVI]
		if ndviURL == "" {
			continue
		}

		ndvi, err := c.stats.IndexStats(ctx, ndviURL)
		if err != nil {
			c.metrics.CollectErrors.WithLabelValues("stats").Inc()
			c.logger.Warn("skipping image without index statistics", "image_dt", img.Dt, "error", err)
			continue
		}

		var ndwi *domain.RawIndexStats
		if u := img.Stats[IndexNDWI]; u != "" {
			if s, err := c.stats.IndexStats(ctx, u); err == nil {
				ndwi = &s
			} else {
				c.metrics.CollectErrors.WithLabelValues("stats").Inc()
				c.logger.Debug("water index statistics unavailable", "image_dt", img.Dt, "error", err)
			}
		}

		series = append(series, c.cfg.Normalizer.Vegetation(img, ndvi, ndwi))
	}
	return series, nil
}

func (c *Collector) sourceErr(source string, err error) error {
	if err == nil {
		return nil
	}
	c.metrics.CollectErrors.WithLabelValues(source).Inc()
	return fmt.Errorf("fetch %s: %w", source, err)
}

// ListPolygons returns the polygons registered under the client's API key.
func ListPolygons(ctx context.Context, c *Client, n domain.Normalizer) ([]domain.Polygon, error) {
	raw, err := c.Polygons(ctx)
	if err != nil {
		c.metrics.CollectErrors.WithLabelValues("polygons").Inc()
		return nil, err
	}
	out := make([]domain.Polygon, len(raw))
	for i, p := range raw {
		out[i] = n.Polygon(p)
	}
	return out, nil
}
