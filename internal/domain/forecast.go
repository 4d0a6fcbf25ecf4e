package domain

import "time"

// Periods and days used for the report and for persistence.
const (
	ReportForecastPeriods = 24 // 3 days of 3-hour periods
	ReportForecastDays    = 3
	StoredForecastDays    = 5
)

// DailyForecast aggregates the 3-hour periods that fall on one calendar day.
type DailyForecast struct {
	Date            time.Time `json:"date"`
	TempMinC        float64   `json:"temp_min_c"`
	TempMaxC        float64   `json:"temp_max_c"`
	TempAvgC        float64   `json:"temp_avg_c"`
	HumidityAvgPct  float64   `json:"humidity_avg_pct"`
	PrecipitationMM float64   `json:"precipitation_mm"`
	Condition       string    `json:"condition,omitempty"` // condition of the day's first period
}

// SummarizeForecast groups the first maxPeriods periods by calendar day in loc
// and returns at most maxDays days in first-seen order. A non-positive
// maxPeriods considers every period.
func SummarizeForecast(periods []ForecastPeriod, loc *time.Location, maxPeriods, maxDays int) []DailyForecast {
	if loc == nil {
		loc = time.UTC
	}
	if maxPeriods > 0 && len(periods) > maxPeriods {
		periods = periods[:maxPeriods]
	}

	type acc struct {
		day      DailyForecast
		temps    []float64
		humidity []float64
	}
	var order []string
	byDay := make(map[string]*acc)

	for _, p := range periods {
		local := p.Timestamp.In(loc)
		key := local.Format(time.DateOnly)
		a, ok := byDay[key]
		if !ok {
			a = &acc{day: DailyForecast{
				Date:      time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
				Condition: p.Condition,
			}}
			byDay[key] = a
			order = append(order, key)
		}
		a.temps = append(a.temps, p.TempC)
		a.humidity = append(a.humidity, p.HumidityPct)
		a.day.PrecipitationMM += p.PrecipitationMM
	}

	if maxDays > 0 && len(order) > maxDays {
		order = order[:maxDays]
	}

	out := make([]DailyForecast, 0, len(order))
	for _, key := range order {
		a := byDay[key]
		d := a.day
		d.TempMinC, d.TempMaxC = minMax(a.temps)
		d.TempAvgC = mean(a.temps)
		d.HumidityAvgPct = mean(a.humidity)
		out = append(out, d)
	}
	return out
}

func minMax(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	lo, hi := v[0], v[0]
	for _, x := range v[1:] {
		lo = min(lo, x)
		hi = max(hi, x)
	}
	return lo, hi
}
