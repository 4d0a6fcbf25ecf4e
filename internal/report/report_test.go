package report

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/agro-monitor/internal/domain"
)

var analyzedAt = time.Date(2026, time.March, 1, 7, 30, 0, 0, time.UTC)

func ptr(v float64) *float64 { return &v }

func fixedSnapshot() domain.Snapshot {
	collected := time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC)
	forecast := make([]domain.ForecastPeriod, 40)
	for i := range forecast {
		forecast[i] = domain.ForecastPeriod{
			Timestamp:       time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * 3 * time.Hour),
			TempC:           24 + float64(i%8),
			HumidityPct:     70,
			PrecipitationMM: 0.05,
			Condition:       "Clouds",
		}
	}
	return domain.Snapshot{
		PolygonID:   "poly-1",
		PolygonName: "North plot",
		CollectedAt: collected,
		Weather:     domain.WeatherReading{AirTempC: 33, HumidityPct: 35, WindSpeedMS: 2.4, CloudPct: 20},
		Soil:        domain.SoilReading{SoilMoisture: 0.15, SoilMoisturePct: 15, SoilTempC: ptr(26.5)},
		Forecast:    forecast,
		Vegetation: domain.VegetationSeries{
			{Date: collected.AddDate(0, 0, -20), Mean: 0.62},
			{Date: collected.AddDate(0, 0, -10), Mean: 0.51},
			{Date: collected.AddDate(0, 0, -5), Mean: 0.44},
		},
	}
}

func analyze(t *testing.T, s domain.Snapshot) domain.Analysis {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(analyzedAt))
	t.Cleanup(func() { domain.SetClock(nil) })
	return domain.Analyze(s, domain.AnalyzeOptions{Location: time.UTC})
}

func titles(r Report) []string {
	out := make([]string, len(r.Sections))
	for i, s := range r.Sections {
		out[i] = s.Title
	}
	return out
}

func TestCompose_SectionOrder(t *testing.T) {
	s := fixedSnapshot()
	r := Compose(s, analyze(t, s), Options{})

	want := []string{TitleConditions, TitleVegetation, TitleIrrigation, TitleStress, TitleForecast, TitleCrops, TitleActions}
	if diff := cmp.Diff(want, titles(r)); diff != "" {
		t.Errorf("section order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "WEEKLY FIELD REPORT - North plot (poly-1)", r.Header[1])
	assert.Equal(t, "Generated: 01 March 2026 - 07:30 UTC", r.Header[2])
	assert.Equal(t, "End of report", r.Footer[1])
}

func TestRender_Deterministic(t *testing.T) {
	s := fixedSnapshot()
	a := analyze(t, s)

	first := Render(s, a, Options{})
	for range 5 {
		require.Equal(t, first, Render(s, a, Options{}))
	}
}

func TestRender_InterpolatesValues(t *testing.T) {
	s := fixedSnapshot()
	text := Render(s, analyze(t, s), Options{})

	for _, want := range []string{
		"  Air temperature: 33.0°C",
		"  Humidity: 35%",
		"  Soil moisture: 15%",
		"  Soil temperature: 26.5°C",
		"  Trend: DECLINING",
		"  Urgency: CRITICAL (score: 100/100)",
		"  Expected rain next 48h: 0.8mm",
		"  Irrigate today: soil moisture very low (15%) and no rain expected (0.8mm)",
		"  HIGH_HEAT - HIGH",
		"  SEVERE_WATER_STRESS - CRITICAL",
		"  LOW_HUMIDITY - MODERATE",
		"  Sunday 01/03:",
		"    Temperature: 24.0°C - 31.0°C (avg 27.5°C)",
		"    Rain: 0.4mm",
		"  Tuesday 03/03:",
		"     Low vegetation index, review nutrition and check for Sigatoka",
		"     High temperature, increase irrigation",
		"     Shade from intense midday sun where possible",
	} {
		assert.Contains(t, text, want)
	}
	assert.NotContains(t, text, "Wednesday 04/03")
	assert.True(t, strings.HasSuffix(text, strings.Repeat("=", ruleWidth)))
}

func TestCompose_SuggestedActionsNumberedSequentially(t *testing.T) {
	s := fixedSnapshot()
	r := Compose(s, analyze(t, s), Options{})
	actions := r.Sections[len(r.Sections)-1]

	assert.Equal(t, []string{
		"1. Priority IRRIGATION as recommended",
		"2. Detailed visual INSPECTION of crops",
		"3. Identify the cause of decline (pests, disease, nutrition)",
		"4. URGENT attention to critical stress conditions",
		"5. Weed control in all zones",
		"6. Pest monitoring, especially vegetables",
		"7. Apply fertilization per schedule",
	}, actions.Lines)
}

func TestCompose_CalmConditions(t *testing.T) {
	s := fixedSnapshot()
	s.Weather = domain.WeatherReading{AirTempC: 24, HumidityPct: 70}
	s.Soil = domain.SoilReading{SoilMoisturePct: 75}
	s.Vegetation = s.Vegetation[:1]
	for i := range s.Forecast {
		s.Forecast[i].PrecipitationMM = 2
	}

	r := Compose(s, analyze(t, s), Options{Title: "FIELD REPORT"})
	text := r.Text()

	assert.Equal(t, TitleNoStress, r.Sections[3].Title)
	assert.Contains(t, text, "Crops are in optimal condition")
	assert.Contains(t, text, "Soil temperature: n/a")
	assert.Contains(t, text, "Trend: INSUFFICIENT")
	assert.Contains(t, text, "Vegetation index not available yet")
	assert.Contains(t, text, "Excess moisture, risk of tuber rot")
	assert.NotContains(t, text, "Need more frequent irrigation")
	assert.Equal(t, []string{
		"1. Weed control in all zones",
		"2. Pest monitoring, especially vegetables",
		"3. Apply fertilization per schedule",
	}, r.Sections[len(r.Sections)-1].Lines)
	assert.True(t, strings.HasPrefix(r.Header[1], "FIELD REPORT"))
}

func TestCompose_HighVariabilityNote(t *testing.T) {
	s := fixedSnapshot()
	s.Vegetation = domain.VegetationSeries{
		{Date: s.CollectedAt.AddDate(0, 0, -10), Mean: 0.2},
		{Date: s.CollectedAt.AddDate(0, 0, -5), Mean: 0.8},
	}

	text := Render(s, analyze(t, s), Options{})
	assert.Contains(t, text, "High variability detected, check crop uniformity")
	assert.Contains(t, text, "Good vegetative development")
}

func TestCompose_UsesLocationForHeader(t *testing.T) {
	s := fixedSnapshot()
	loc := time.FixedZone("CET", 3600)

	r := Compose(s, analyze(t, s), Options{Location: loc})
	assert.Equal(t, "Generated: 01 March 2026 - 08:30 CET", r.Header[2])
}
