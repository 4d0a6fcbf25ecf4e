package domain

import "fmt"

// Urgency is the categorical irrigation priority.
type Urgency string

const (
	UrgencyNone     Urgency = "NONE"
	UrgencyLow      Urgency = "LOW"
	UrgencyModerate Urgency = "MODERATE"
	UrgencyHigh     Urgency = "HIGH"
	UrgencyCritical Urgency = "CRITICAL"
)

// RainHorizonPeriods is the number of 3-hour forecast periods covering 48h.
const RainHorizonPeriods = 16

// IrrigationAssessment is the outcome of the irrigation scorer.
type IrrigationAssessment struct {
	Urgency        Urgency `json:"urgency"`
	Recommendation string  `json:"recommendation"`
	Score          int     `json:"score"`
	MoisturePct    float64 `json:"moisture_pct"`
	Rain48hMM      float64 `json:"rain_48h_mm"`
	AirTempC       float64 `json:"air_temp_c"`
}

// Rain48h sums precipitation over the first 16 periods, or over all periods
// when fewer are available.
func Rain48h(periods []ForecastPeriod) float64 {
	n := min(len(periods), RainHorizonPeriods)
	var total float64
	for _, p := range periods[:n] {
		total += p.PrecipitationMM
	}
	return total
}

// ScoreIrrigation combines soil moisture, expected rain and air temperature
// into a 0–100 urgency score.
func ScoreIrrigation(moisturePct, rain48hMM, airTempC float64) IrrigationAssessment {
	score := moistureFactor(moisturePct) + rainFactor(rain48hMM) + temperatureFactor(airTempC)
	urgency := UrgencyForScore(score)
	return IrrigationAssessment{
		Urgency:        urgency,
		Recommendation: irrigationRecommendation(urgency, moisturePct, rain48hMM),
		Score:          score,
		MoisturePct:    moisturePct,
		Rain48hMM:      rain48hMM,
		AirTempC:       airTempC,
	}
}

// UrgencyForScore maps a score to its urgency band. First match wins, highest
// threshold first.
func UrgencyForScore(score int) Urgency {
	switch {
	case score >= 80:
		return UrgencyCritical
	case score >= 60:
		return UrgencyHigh
	case score >= 40:
		return UrgencyModerate
	case score >= 20:
		return UrgencyLow
	default:
		return UrgencyNone
	}
}

func moistureFactor(pct float64) int {
	switch {
	case pct < 20:
		return 40
	case pct < 30:
		return 30
	case pct < 40:
		return 20
	case pct < 50:
		return 10
	default:
		return 0
	}
}

func rainFactor(mm float64) int {
	switch {
	case mm < 2:
		return 40
	case mm < 5:
		return 30
	case mm < 10:
		return 20
	case mm < 20:
		return 10
	default:
		return 0
	}
}

func temperatureFactor(c float64) int {
	switch {
	case c > 32:
		return 20
	case c > 28:
		return 10
	default:
		return 0
	}
}

func irrigationRecommendation(u Urgency, moisturePct, rainMM float64) string {
	switch u {
	case UrgencyCritical:
		return fmt.Sprintf("Irrigate today: soil moisture very low (%.0f%%) and no rain expected (%.1fmm)", moisturePct, rainMM)
	case UrgencyHigh:
		return fmt.Sprintf("Irrigate within 24h: low soil moisture (%.0f%%), insufficient rain (%.1fmm)", moisturePct, rainMM)
	case UrgencyModerate:
		return fmt.Sprintf("Consider irrigating: soil moisture %.0f%%, expected rain %.1fmm", moisturePct, rainMM)
	case UrgencyLow:
		return fmt.Sprintf("Irrigation optional: acceptable conditions (soil moisture %.0f%%)", moisturePct)
	default:
		return fmt.Sprintf("Do not irrigate: sufficient soil moisture (%.0f%%) or expected rain (%.1fmm)", moisturePct, rainMM)
	}
}
