package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/couchcryptid/agro-monitor/internal/domain"
)

func printCurrent(w io.Writer, s domain.Snapshot) {
	wx := s.Weather
	fmt.Fprintf(w, "Polygon:      %s\n", s.PolygonID)
	fmt.Fprintf(w, "Weather:      %.1f°C (feels %.1f°C), humidity %.0f%%, wind %.1f m/s, %s\n",
		wx.AirTempC, wx.FeelsLikeC, wx.HumidityPct, wx.WindSpeedMS, wx.Description)

	soil := s.Soil
	temp := "n/a"
	if soil.SoilTempC != nil {
		temp = fmt.Sprintf("%.1f°C", *soil.SoilTempC)
	}
	fmt.Fprintf(w, "Soil:         moisture %.1f%%, temperature %s\n", soil.SoilMoisturePct, temp)

	if v, ok := s.Vegetation.Sorted().Latest(); ok {
		fmt.Fprintf(w, "Vegetation:   NDVI %.3f on %s (%d passes)\n", v.Mean, v.Date.Format("2006-01-02"), len(s.Vegetation))
	} else {
		fmt.Fprintln(w, "Vegetation:   no satellite passes in range")
	}
	fmt.Fprintf(w, "Rain (48h):   %.1f mm\n", domain.Rain48h(s.Forecast))
}

func printTrend(w io.Writer, t domain.TrendAssessment) {
	fmt.Fprintf(w, "Trend:          %s\n", t.Trend)
	if t.Defined() {
		fmt.Fprintf(w, "Index:          %.3f -> %.3f (%+.1f%%)\n", t.InitialIndex, t.CurrentIndex, t.ChangePct)
		fmt.Fprintf(w, "Slope:          %.4f per pass over %d passes\n", t.Slope, t.Samples)
		if t.HighVariability {
			fmt.Fprintf(w, "Variability:    high (std dev %.3f)\n", t.StdDev)
		}
	}
	fmt.Fprintf(w, "%s\n%s\n", t.Message, t.Recommendation)
}

func printIrrigation(w io.Writer, a domain.IrrigationAssessment) {
	fmt.Fprintf(w, "Urgency:  %s (score %d/100)\n", a.Urgency, a.Score)
	fmt.Fprintf(w, "Inputs:   soil moisture %.1f%%, rain 48h %.1f mm, air %.1f°C\n", a.MoisturePct, a.Rain48hMM, a.AirTempC)
	fmt.Fprintln(w, a.Recommendation)
}

func printStress(w io.Writer, findings []domain.StressFinding) {
	if len(findings) == 0 {
		fmt.Fprintln(w, "No stress conditions detected")
		return
	}
	for _, f := range findings {
		fmt.Fprintf(w, "[%s] %s: %s\n    -> %s\n", f.Severity, f.Category, f.Message, f.Action)
	}
}

func printPolygons(w io.Writer, polygons []domain.Polygon) {
	if len(polygons) == 0 {
		fmt.Fprintln(w, "No polygons registered")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAREA (ha)\tCENTER")
	for _, p := range polygons {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.5f, %.5f\n", p.ID, p.Name, p.AreaHa, p.CenterLat, p.CenterLon)
	}
	tw.Flush()
}
