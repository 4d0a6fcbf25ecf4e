package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/agro-monitor/internal/domain"
)

var collected = time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testAssessment(at time.Time, temp float64) domain.Assessment {
	forecast := make([]domain.ForecastPeriod, 40)
	for i := range forecast {
		forecast[i] = domain.ForecastPeriod{
			Timestamp:       time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * 3 * time.Hour),
			TempC:           20 + float64(i%8),
			HumidityPct:     60,
			PrecipitationMM: 0.5,
			Condition:       "Rain",
		}
	}
	return domain.Assessment{
		Snapshot: domain.Snapshot{
			PolygonID:   "poly-1",
			CollectedAt: at,
			Weather:     domain.WeatherReading{Timestamp: at, AirTempC: temp, HumidityPct: 55, Condition: "Clear"},
			Soil:        domain.SoilReading{Timestamp: at, SoilMoisture: 0.3, SoilMoisturePct: 30},
			Forecast:    forecast,
			Vegetation: domain.VegetationSeries{
				{Date: collected.AddDate(0, 0, -10), Mean: 0.55, CloudCoverPct: 4},
				{Date: collected.AddDate(0, 0, -5), Mean: 0.6, WaterIndex: ptr(0.1)},
			},
		},
	}
}

func TestStore_EmptyReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LatestWeather(ctx, "poly-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.LatestSoil(ctx, "poly-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.LatestVegetation(ctx, "poly-1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.WeatherRecords)
	assert.Nil(t, st.LastUpdate)
}

func TestStore_LoadAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, testAssessment(collected, 28)))
	require.NoError(t, s.Load(ctx, testAssessment(collected.Add(time.Hour), 31)))

	w, err := s.LatestWeather(ctx, "poly-1")
	require.NoError(t, err)
	assert.Equal(t, 31.0, w.AirTempC)
	assert.Equal(t, collected.Add(time.Hour), w.Timestamp)
	assert.Equal(t, "Clear", w.Condition)

	history, err := s.WeatherHistory(ctx, "poly-1", collected.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 31.0, history[0].AirTempC, "newest first")

	history, err = s.WeatherHistory(ctx, "poly-1", collected.Add(30*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	soil, err := s.LatestSoil(ctx, "poly-1")
	require.NoError(t, err)
	assert.Equal(t, 30.0, soil.SoilMoisturePct)
	assert.Nil(t, soil.SoilTempC)

	series, err := s.VegetationHistory(ctx, "poly-1", collected.AddDate(0, 0, -30), 100)
	require.NoError(t, err)
	require.Len(t, series, 2, "repeated samples are stored once")
	assert.Equal(t, 0.55, series[0].Mean)
	assert.Nil(t, series[0].WaterIndex)
	require.NotNil(t, series[1].WaterIndex)
	assert.Equal(t, 0.1, *series[1].WaterIndex)

	latest, err := s.LatestVegetation(ctx, "poly-1")
	require.NoError(t, err)
	assert.Equal(t, 0.6, latest.Mean)

	days, err := s.UpcomingForecast(ctx, "poly-1", collected, 7)
	require.NoError(t, err)
	require.Len(t, days, 5)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), days[0].Date)
	assert.Equal(t, 20.0, days[0].TempMinC)
	assert.Equal(t, 27.0, days[0].TempMaxC)
	assert.InDelta(t, 4.0, days[0].PrecipitationMM, 1e-9)
	assert.Equal(t, "Rain", days[0].Condition)

	days, err = s.UpcomingForecast(ctx, "poly-1", collected.AddDate(0, 0, 3), 7)
	require.NoError(t, err)
	assert.Len(t, days, 2)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.WeatherRecords)
	assert.Equal(t, int64(2), st.SoilRecords)
	assert.Equal(t, int64(2), st.VegetationRecords)
	assert.Equal(t, int64(5), st.ForecastRecords)
	require.NotNil(t, st.LastUpdate)
	assert.Equal(t, collected.Add(time.Hour), *st.LastUpdate)
}

func TestStore_VegetationHistoryKeepsNewestWithinLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := testAssessment(collected, 25)
	a.Snapshot.Vegetation = nil
	for i := range 5 {
		a.Snapshot.Vegetation = append(a.Snapshot.Vegetation, domain.VegetationSample{
			Date: collected.AddDate(0, 0, -25+5*i),
			Mean: 0.1 * float64(i+1),
		})
	}
	require.NoError(t, s.Load(ctx, a))

	got, err := s.VegetationHistory(ctx, "poly-1", collected.AddDate(0, 0, -30), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, collected.AddDate(0, 0, -10), got[0].Date.UTC())
	assert.Equal(t, collected.AddDate(0, 0, -5), got[1].Date.UTC(), "newest pass is kept")
	assert.InDelta(t, 0.5, got[1].Mean, 1e-9)
}

func TestStore_SoilTemperatureRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := testAssessment(collected, 25)
	a.Snapshot.Soil.SoilTempC = ptr(18.5)
	require.NoError(t, s.Load(ctx, a))

	soil, err := s.LatestSoil(ctx, "poly-1")
	require.NoError(t, err)
	require.NotNil(t, soil.SoilTempC)
	assert.Equal(t, 18.5, *soil.SoilTempC)
}

func TestStore_OtherPolygonIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Load(ctx, testAssessment(collected, 25)))

	_, err := s.LatestWeather(ctx, "poly-2")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agro.db")
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.FileExists(t, path)
	assert.Equal(t, "sqlite", s.Name())
}
