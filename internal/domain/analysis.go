package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Analysis bundles the three derived signals for one snapshot.
type Analysis struct {
	ID         string               `json:"id"`
	PolygonID  string               `json:"polygon_id"`
	AnalyzedAt time.Time            `json:"analyzed_at"`
	Irrigation IrrigationAssessment `json:"irrigation"`
	Trend      TrendAssessment      `json:"trend"`
	Stress     []StressFinding      `json:"stress"`
	Forecast   []DailyForecast      `json:"forecast"`
}

// Assessment is the unit handed to every sink: the readings, what was derived
// from them, and the rendered report.
type Assessment struct {
	Snapshot Snapshot `json:"snapshot"`
	Analysis Analysis `json:"analysis"`
	Report   string   `json:"report"`
}

// AnalyzeOptions tunes the parts of the analysis that depend on locale.
type AnalyzeOptions struct {
	// Location is used to group forecast periods into calendar days.
	Location *time.Location
}

// Analyze runs the irrigation scorer, trend analyzer and stress classifier
// over a snapshot. The three models share no state.
func Analyze(s Snapshot, opts AnalyzeOptions) Analysis {
	series := s.Vegetation.Sorted()

	return Analysis{
		ID:         analysisID(s.PolygonID, s.CollectedAt),
		PolygonID:  s.PolygonID,
		AnalyzedAt: clock.Now().UTC(),
		Irrigation: ScoreIrrigation(s.Soil.SoilMoisturePct, Rain48h(s.Forecast), s.Weather.AirTempC),
		Trend:      AnalyzeTrend(series),
		Stress:     ClassifyStress(StressInputsFrom(s.Weather, s.Soil)),
		Forecast:   SummarizeForecast(s.Forecast, opts.Location, ReportForecastPeriods, ReportForecastDays),
	}
}

// analysisID derives a stable identifier so a replayed snapshot maps onto the
// same record downstream.
func analysisID(polygonID string, collectedAt time.Time) string {
	input := fmt.Sprintf("%s|%s", polygonID, collectedAt.UTC().Format(time.RFC3339Nano))
	hash := sha256.Sum256([]byte(input))
	return "agro-" + hex.EncodeToString(hash[:8])
}
