// Package report renders an analysis as a plain-text field report.
//
// Rendering is a pure function of the snapshot, the analysis and the options:
// the only time printed is Analysis.AnalyzedAt, so a fixed input always
// produces the same bytes.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/couchcryptid/agro-monitor/internal/domain"
)

const ruleWidth = 70

// Section titles, in rendering order.
const (
	TitleConditions = "CURRENT CONDITIONS"
	TitleVegetation = "VEGETATION HEALTH (NDVI)"
	TitleIrrigation = "IRRIGATION NEED"
	TitleStress     = "STRESS CONDITIONS DETECTED"
	TitleNoStress   = "NO STRESS CONDITIONS DETECTED"
	TitleForecast   = "FORECAST NEXT 3 DAYS"
	TitleCrops      = "CROP ADVISORIES"
	TitleActions    = "SUGGESTED ACTIONS THIS WEEK"
)

// Options controls presentation details that do not affect the analysis.
type Options struct {
	// Title heads the report. Defaults to "WEEKLY FIELD REPORT".
	Title string
	// Location is used for the header timestamp and forecast day names.
	Location *time.Location
}

// Section is one titled block of the report body.
type Section struct {
	Title string
	Lines []string
}

// Report is a composed report. Text renders it.
type Report struct {
	Header   []string
	Sections []Section
	Footer   []string
}

// Compose builds the report for an analysis of the given snapshot.
func Compose(s domain.Snapshot, a domain.Analysis, opts Options) Report {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	title := opts.Title
	if title == "" {
		title = "WEEKLY FIELD REPORT"
	}

	field := s.PolygonID
	if s.PolygonName != "" {
		field = fmt.Sprintf("%s (%s)", s.PolygonName, s.PolygonID)
	}

	r := Report{
		Header: []string{
			rule("="),
			fmt.Sprintf("%s - %s", title, field),
			"Generated: " + a.AnalyzedAt.In(loc).Format("02 January 2006 - 15:04 MST"),
			rule("="),
		},
		Footer: []string{rule("="), "End of report", rule("=")},
	}

	r.Sections = append(r.Sections,
		conditionsSection(s),
		vegetationSection(a.Trend),
		irrigationSection(a.Irrigation),
		stressSection(a.Stress),
		forecastSection(a.Forecast, loc),
		cropSection(s, a.Trend),
		actionsSection(a),
	)
	return r
}

// Text renders the report as newline-separated lines.
func (r Report) Text() string {
	var b strings.Builder
	for _, l := range r.Header {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	for _, sec := range r.Sections {
		b.WriteString(sec.Title)
		b.WriteByte('\n')
		b.WriteString(rule("-"))
		b.WriteByte('\n')
		for _, l := range sec.Lines {
			if l != "" {
				b.WriteString("  ")
				b.WriteString(l)
			}
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	for i, l := range r.Footer {
		b.WriteString(l)
		if i < len(r.Footer)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Render composes and renders in one step.
func Render(s domain.Snapshot, a domain.Analysis, opts Options) string {
	return Compose(s, a, opts).Text()
}

func conditionsSection(s domain.Snapshot) Section {
	soilTemp := "n/a"
	if s.Soil.SoilTempC != nil {
		soilTemp = fmt.Sprintf("%.1f°C", *s.Soil.SoilTempC)
	}
	return Section{
		Title: TitleConditions,
		Lines: []string{
			fmt.Sprintf("Air temperature: %.1f°C", s.Weather.AirTempC),
			fmt.Sprintf("Humidity: %.0f%%", s.Weather.HumidityPct),
			fmt.Sprintf("Wind: %.1f m/s", s.Weather.WindSpeedMS),
			fmt.Sprintf("Cloud cover: %.0f%%", s.Weather.CloudPct),
			"",
			fmt.Sprintf("Soil moisture: %.0f%%", s.Soil.SoilMoisturePct),
			"Soil temperature: " + soilTemp,
		},
	}
}

func vegetationSection(t domain.TrendAssessment) Section {
	lines := []string{
		"Trend: " + string(t.Trend),
		t.Message,
		"Recommendation: " + t.Recommendation,
	}
	if t.HighVariability {
		lines = append(lines, "High variability detected, check crop uniformity")
	}
	return Section{Title: TitleVegetation, Lines: lines}
}

func irrigationSection(a domain.IrrigationAssessment) Section {
	return Section{
		Title: TitleIrrigation,
		Lines: []string{
			fmt.Sprintf("Urgency: %s (score: %d/100)", a.Urgency, a.Score),
			fmt.Sprintf("Expected rain next 48h: %.1fmm", a.Rain48hMM),
			a.Recommendation,
		},
	}
}

func stressSection(findings []domain.StressFinding) Section {
	if len(findings) == 0 {
		return Section{Title: TitleNoStress, Lines: []string{"Crops are in optimal condition"}}
	}
	lines := make([]string, 0, len(findings)*4)
	for i, f := range findings {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines,
			fmt.Sprintf("%s - %s", f.Category, f.Severity),
			"   "+f.Message,
			"   Action: "+f.Action,
		)
	}
	return Section{Title: TitleStress, Lines: lines}
}

func forecastSection(days []domain.DailyForecast, loc *time.Location) Section {
	if len(days) == 0 {
		return Section{Title: TitleForecast, Lines: []string{"No forecast available"}}
	}
	var lines []string
	for i, d := range days {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines,
			d.Date.In(loc).Format("Monday 02/01")+":",
			fmt.Sprintf("  Temperature: %.1f°C - %.1f°C (avg %.1f°C)", d.TempMinC, d.TempMaxC, d.TempAvgC),
			fmt.Sprintf("  Rain: %.1fmm", d.PrecipitationMM),
			"  Conditions: "+orDash(d.Condition),
		)
	}
	return Section{Title: TitleForecast, Lines: lines}
}

func cropSection(s domain.Snapshot, t domain.TrendAssessment) Section {
	temp := s.Weather.AirTempC
	moisture := s.Soil.SoilMoisturePct

	lines := []string{"PLANTAIN:"}
	switch {
	case !t.Defined():
		lines = append(lines, "   Vegetation index not available yet")
	case t.CurrentIndex < 0.5:
		lines = append(lines, "   Low vegetation index, review nutrition and check for Sigatoka")
	default:
		lines = append(lines, "   Good vegetative development")
	}
	if temp > 30 {
		lines = append(lines, "   High temperature, increase irrigation")
	}

	lines = append(lines, "", "VEGETABLES:")
	if moisture < 40 {
		lines = append(lines, "   Need more frequent irrigation than other crops")
	}
	if temp > 32 {
		lines = append(lines, "   Shade from intense midday sun where possible")
	}
	lines = append(lines, "   Review fertilization schedule")

	lines = append(lines, "", "TUBERS AND FRUIT TREES:")
	if moisture > 70 {
		lines = append(lines, "   Excess moisture, risk of tuber rot")
	} else {
		lines = append(lines, "   Adequate moisture for development")
	}
	lines = append(lines, "   Young fruit trees: keep the area free of weeds")

	return Section{Title: TitleCrops, Lines: lines}
}

// SuggestedActions lists the week's actions, priority items first.
func SuggestedActions(a domain.Analysis) []string {
	var actions []string
	if a.Irrigation.Urgency == domain.UrgencyCritical || a.Irrigation.Urgency == domain.UrgencyHigh {
		actions = append(actions, "Priority IRRIGATION as recommended")
	}
	if a.Trend.Trend == domain.TrendDeclining {
		actions = append(actions,
			"Detailed visual INSPECTION of crops",
			"Identify the cause of decline (pests, disease, nutrition)",
		)
	}
	if domain.HasSeverity(a.Stress, domain.SeverityCritical) {
		actions = append(actions, "URGENT attention to critical stress conditions")
	}
	return append(actions,
		"Weed control in all zones",
		"Pest monitoring, especially vegetables",
		"Apply fertilization per schedule",
	)
}

func actionsSection(a domain.Analysis) Section {
	actions := SuggestedActions(a)
	lines := make([]string, len(actions))
	for i, act := range actions {
		lines[i] = fmt.Sprintf("%d. %s", i+1, act)
	}
	return Section{Title: TitleActions, Lines: lines}
}

func rule(ch string) string {
	return strings.Repeat(ch, ruleWidth)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
