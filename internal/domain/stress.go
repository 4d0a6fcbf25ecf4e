package domain

import "fmt"

// Severity grades a stress finding.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityModerate Severity = "MODERATE"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Stress categories.
const (
	StressExtremeHeat       = "EXTREME_HEAT"
	StressHighHeat          = "HIGH_HEAT"
	StressSevereWaterStress = "SEVERE_WATER_STRESS"
	StressWaterStress       = "WATER_STRESS"
	StressLowHumidity       = "LOW_HUMIDITY"
	StressColdSoil          = "COLD_SOIL"
	StressHotSoil           = "HOT_SOIL"
)

// StressFinding is one detected adverse condition.
type StressFinding struct {
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Action   string   `json:"action"`
}

// StressInputs are the current readings the classifier evaluates. SoilTempC
// is nil when the soil temperature is unknown.
type StressInputs struct {
	AirTempC        float64
	HumidityPct     float64
	SoilMoisturePct float64
	SoilTempC       *float64
}

// StressInputsFrom extracts classifier inputs from normalized readings.
func StressInputsFrom(w WeatherReading, s SoilReading) StressInputs {
	return StressInputs{
		AirTempC:        w.AirTempC,
		HumidityPct:     w.HumidityPct,
		SoilMoisturePct: s.SoilMoisturePct,
		SoilTempC:       s.SoilTempC,
	}
}

// ClassifyStress evaluates the stress rules in fixed order: heat, water,
// air dryness, soil temperature. The result is empty, never nil.
func ClassifyStress(in StressInputs) []StressFinding {
	findings := make([]StressFinding, 0, 4)

	switch {
	case in.AirTempC > 35:
		findings = append(findings, StressFinding{
			Category: StressExtremeHeat,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Extreme heat: %.1f°C", in.AirTempC),
			Action:   "Extra irrigation, apply mulch, consider temporary shade",
		})
	case in.AirTempC > 32:
		findings = append(findings, StressFinding{
			Category: StressHighHeat,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("High heat: %.1f°C", in.AirTempC),
			Action:   "Increase irrigation frequency, monitor sensitive plants",
		})
	}

	switch {
	case in.SoilMoisturePct < 20:
		findings = append(findings, StressFinding{
			Category: StressSevereWaterStress,
			Severity: SeverityCritical,
			Message:  fmt.Sprintf("Severe water stress: soil moisture %.0f%%", in.SoilMoisturePct),
			Action:   "Irrigate urgently, risk of wilting",
		})
	case in.SoilMoisturePct < 30:
		findings = append(findings, StressFinding{
			Category: StressWaterStress,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("Water stress: soil moisture %.0f%%", in.SoilMoisturePct),
			Action:   "Schedule irrigation within 24h",
		})
	}

	if in.HumidityPct < 40 {
		findings = append(findings, StressFinding{
			Category: StressLowHumidity,
			Severity: SeverityModerate,
			Message:  fmt.Sprintf("Low relative humidity: %.0f%%", in.HumidityPct),
			Action:   "Evapotranspiration may increase, adjust irrigation",
		})
	}

	if in.SoilTempC != nil {
		switch t := *in.SoilTempC; {
		case t < 15:
			findings = append(findings, StressFinding{
				Category: StressColdSoil,
				Severity: SeverityLow,
				Message:  fmt.Sprintf("Cold soil: %.1f°C", t),
				Action:   "Slow root development, consider dark mulch",
			})
		case t > 30:
			findings = append(findings, StressFinding{
				Category: StressHotSoil,
				Severity: SeverityModerate,
				Message:  fmt.Sprintf("Hot soil: %.1f°C", t),
				Action:   "Apply light-coloured mulch to cool, increase irrigation",
			})
		}
	}

	return findings
}

// HasSeverity reports whether any finding has the given severity.
func HasSeverity(findings []StressFinding, sev Severity) bool {
	for _, f := range findings {
		if f.Severity == sev {
			return true
		}
	}
	return false
}
