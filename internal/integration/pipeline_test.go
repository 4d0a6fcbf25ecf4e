//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/agro-monitor/internal/adapter/agro"
	"github.com/couchcryptid/agro-monitor/internal/adapter/kafka"
	"github.com/couchcryptid/agro-monitor/internal/adapter/postgres"
	"github.com/couchcryptid/agro-monitor/internal/config"
	"github.com/couchcryptid/agro-monitor/internal/domain"
	"github.com/couchcryptid/agro-monitor/internal/observability"
	"github.com/couchcryptid/agro-monitor/internal/pipeline"
)

const (
	testTopic   = "test-assessments"
	testPolygon = "poly-int"
)

// TestPipelineEndToEnd drives a run from a fake upstream API through the
// collector and analyzer into PostgreSQL and Kafka, then reads both back.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	now := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	domain.SetClock(clock)
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)
	dsn := startPostgres(ctx, t)
	upstream := fakeUpstream(t, now)

	metrics := observability.NewMetricsForTesting()
	logger := discardLogger()

	client := agro.NewClient(agro.Options{
		APIKey:  "integration",
		BaseURL: upstream.URL,
		Timeout: 5 * time.Second,
		Retry:   agro.DefaultRetryPolicy(1),
	}, metrics, logger)
	collector := agro.NewCollector(client, agro.NewCachedStats(client, 16, metrics), agro.CollectorConfig{
		PolygonID:   testPolygon,
		PolygonName: "Integration Field",
		Lookback:    30 * 24 * time.Hour,
	}, clock, logger, metrics)

	store, err := postgres.Connect(ctx, dsn, time.UTC)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	writer := kafka.NewWriter(&config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}, logger)
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(collector, pipeline.NewAnalyzer(time.UTC, ""), []pipeline.Loader{store, writer}, logger, metrics,
		pipeline.WithClock(clock))

	a, err := p.RunOnce(ctx)
	require.NoError(t, err)
	require.NoError(t, p.CheckReadiness(ctx))

	// Dry soil, no rain and 33°C: every factor is at or near its maximum.
	assert.Equal(t, domain.UrgencyCritical, a.Analysis.Irrigation.Urgency)
	assert.Equal(t, 100, a.Analysis.Irrigation.Score)
	assert.Equal(t, domain.TrendDeclining, a.Analysis.Trend.Trend)
	assert.Len(t, a.Analysis.Forecast, domain.ReportForecastDays)
	assert.Contains(t, a.Report, "Integration Field")

	t.Run("postgres", func(t *testing.T) {
		w, err := store.LatestWeather(ctx, testPolygon)
		require.NoError(t, err)
		assert.InDelta(t, 33, w.AirTempC, 1e-6)

		soil, err := store.LatestSoil(ctx, testPolygon)
		require.NoError(t, err)
		require.NotNil(t, soil.SoilTempC)
		assert.InDelta(t, 31, *soil.SoilTempC, 1e-6)

		series, err := store.VegetationHistory(ctx, testPolygon, now.AddDate(0, 0, -30), 100)
		require.NoError(t, err)
		require.Len(t, series, 2)
		assert.InDelta(t, 0.72, series[0].Mean, 1e-9)
		require.NotNil(t, series[1].WaterIndex)

		days, err := store.UpcomingForecast(ctx, testPolygon, now, 5)
		require.NoError(t, err)
		assert.Len(t, days, domain.StoredForecastDays)

		// A second run appends readings but not vegetation or forecast rows.
		_, err = p.RunOnce(ctx)
		require.NoError(t, err)
		stats, err := store.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.WeatherRecords)
		assert.Equal(t, int64(2), stats.SoilRecords)
		assert.Equal(t, int64(2), stats.VegetationRecords)
		assert.Equal(t, int64(domain.StoredForecastDays), stats.ForecastRecords)
	})

	t.Run("kafka", func(t *testing.T) {
		consumer := kafkago.NewReader(kafkago.ReaderConfig{
			Brokers:     []string{broker},
			Topic:       testTopic,
			GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
			StartOffset: kafkago.FirstOffset,
		})
		t.Cleanup(func() { _ = consumer.Close() })

		readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read from assessments topic")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		assert.Equal(t, testPolygon, string(msg.Key))
		assert.Equal(t, "CRITICAL", headers["urgency"])
		assert.Equal(t, a.Analysis.ID, headers["analysis_id"])
		_, err = time.Parse(time.RFC3339, headers["analyzed_at"])
		assert.NoError(t, err)

		var got domain.Assessment
		require.NoError(t, json.Unmarshal(msg.Value, &got))
		assert.Equal(t, a.Analysis.Irrigation, got.Analysis.Irrigation)
		assert.Len(t, got.Snapshot.Vegetation, 2)
	})
}
