package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() Snapshot {
	collected := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)
	return Snapshot{
		PolygonID:   "poly-1",
		PolygonName: "North plot",
		CollectedAt: collected,
		Weather:     WeatherReading{Timestamp: collected, AirTempC: 33, HumidityPct: 35},
		Soil:        SoilReading{Timestamp: collected, SoilMoisture: 0.15, SoilMoisturePct: 15, SoilTempC: ptr(24)},
		Forecast:    periodsFrom(collected, 16),
		Vegetation: VegetationSeries{
			{Date: collected.AddDate(0, 0, -5), Mean: 0.5},
			{Date: collected.AddDate(0, 0, -20), Mean: 0.7},
			{Date: collected.AddDate(0, 0, -10), Mean: 0.6},
		},
	}
}

func TestAnalyze(t *testing.T) {
	now := time.Date(2026, time.March, 1, 7, 30, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })

	s := testSnapshot()
	for i := range s.Forecast {
		s.Forecast[i].PrecipitationMM = 0
	}

	a := Analyze(s, AnalyzeOptions{})

	assert.Equal(t, now, a.AnalyzedAt)
	assert.Equal(t, "poly-1", a.PolygonID)
	assert.True(t, strings.HasPrefix(a.ID, "agro-"))

	assert.Equal(t, 100, a.Irrigation.Score)
	assert.Equal(t, UrgencyCritical, a.Irrigation.Urgency)

	// Samples arrive out of order; the analyzer sees 0.7, 0.6, 0.5.
	assert.Equal(t, TrendDeclining, a.Trend.Trend)
	assert.Equal(t, 0.7, a.Trend.InitialIndex)
	assert.Equal(t, 0.5, a.Trend.CurrentIndex)

	assert.Equal(t, []string{StressHighHeat, StressSevereWaterStress, StressLowHumidity}, categories(a.Stress))
	require.Len(t, a.Forecast, 3)
}

func TestAnalysisID_Stable(t *testing.T) {
	at := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)

	assert.Equal(t, analysisID("poly-1", at), analysisID("poly-1", at.In(time.FixedZone("X", 3600))))
	assert.NotEqual(t, analysisID("poly-1", at), analysisID("poly-2", at))
	assert.NotEqual(t, analysisID("poly-1", at), analysisID("poly-1", at.Add(time.Second)))
	assert.Len(t, analysisID("poly-1", at), len("agro-")+16)
}
