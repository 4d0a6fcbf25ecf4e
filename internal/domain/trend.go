package domain

import (
	"fmt"
	"math"
)

// Trend classifies the direction of a vegetation index series.
type Trend string

const (
	TrendInsufficient Trend = "INSUFFICIENT"
	TrendImproving    Trend = "IMPROVING"
	TrendDeclining    Trend = "DECLINING"
	TrendStable       Trend = "STABLE"
)

const (
	// trendSlopeThreshold is the per-sample slope that leaves the STABLE band.
	// The comparison is strict: exactly ±0.01 stays STABLE.
	trendSlopeThreshold = 0.01

	// highVariabilityStdDev flags non-uniform canopy across passes.
	highVariabilityStdDev = 0.1

	minTrendSamples = 2
)

// TrendAssessment is the outcome of the vegetation trend analyzer.
type TrendAssessment struct {
	Trend           Trend   `json:"trend"`
	Slope           float64 `json:"slope"`
	ChangePct       float64 `json:"change_pct"`
	CurrentIndex    float64 `json:"current_index"`
	InitialIndex    float64 `json:"initial_index"`
	StdDev          float64 `json:"std_dev"`
	Samples         int     `json:"samples"`
	HighVariability bool    `json:"high_variability"`
	Message         string  `json:"message"`
	Recommendation  string  `json:"recommendation"`
}

// Defined reports whether the assessment carries index values.
func (t TrendAssessment) Defined() bool {
	return t.Trend != TrendInsufficient && t.Trend != ""
}

// AnalyzeTrend fits a linear trend to the mean index of a date-sorted series.
func AnalyzeTrend(series VegetationSeries) TrendAssessment {
	n := len(series)
	if n < minTrendSamples {
		return TrendAssessment{
			Trend:          TrendInsufficient,
			Samples:        n,
			Message:        "Not enough satellite samples for trend analysis",
			Recommendation: fmt.Sprintf("Wait for at least %d satellite measurements", minTrendSamples),
		}
	}

	values := make([]float64, n)
	for i, s := range series {
		values[i] = s.Mean
	}

	first, last := values[0], values[n-1]
	slope := olsSlope(values)
	change := percentChange(first, last)
	std := sampleStdDev(values)

	a := TrendAssessment{
		Trend:           classifySlope(slope),
		Slope:           slope,
		ChangePct:       change,
		CurrentIndex:    last,
		InitialIndex:    first,
		StdDev:          std,
		Samples:         n,
		HighVariability: std > highVariabilityStdDev,
	}

	switch a.Trend {
	case TrendImproving:
		a.Message = fmt.Sprintf("Vegetation health improving (%+.1f%%). Index went from %.3f to %.3f", change, first, last)
		a.Recommendation = "Maintain current practices, they are working"
	case TrendDeclining:
		a.Message = fmt.Sprintf("Vegetation health declining (%.1f%%). Index went from %.3f to %.3f", change, first, last)
		a.Recommendation = "Inspect the field: possible pest, disease or nutrient deficiency"
	default:
		a.Message = fmt.Sprintf("Vegetation health stable. Index holding at ~%.3f", last)
		a.Recommendation = "Continue normal management"
	}
	return a
}

func classifySlope(slope float64) Trend {
	switch {
	case slope > trendSlopeThreshold:
		return TrendImproving
	case slope < -trendSlopeThreshold:
		return TrendDeclining
	default:
		return TrendStable
	}
}

// olsSlope regresses y on its index 0..n-1.
func olsSlope(y []float64) float64 {
	n := float64(len(y))
	xMean := (n - 1) / 2
	yMean := mean(y)

	var num, den float64
	for i, v := range y {
		dx := float64(i) - xMean
		num += dx * (v - yMean)
		den += dx * dx
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// percentChange is 0 when first is 0.
func percentChange(first, last float64) float64 {
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

func sampleStdDev(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	m := mean(v)
	var ss float64
	for _, x := range v {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(v)-1))
}
