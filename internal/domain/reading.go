package domain

import (
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned by stores when no reading matches a query.
var ErrNotFound = errors.New("not found")

// WeatherReading is a snapshot of current conditions over the polygon.
type WeatherReading struct {
	Timestamp   time.Time `json:"timestamp"`
	AirTempC    float64   `json:"air_temp_c"`
	FeelsLikeC  float64   `json:"feels_like_c"`
	TempMinC    float64   `json:"temp_min_c"`
	TempMaxC    float64   `json:"temp_max_c"`
	HumidityPct float64   `json:"humidity_pct"`
	PressureHPa float64   `json:"pressure_hpa"`
	WindSpeedMS float64   `json:"wind_speed_ms"`
	WindDeg     float64   `json:"wind_deg"`
	CloudPct    float64   `json:"cloud_pct"`
	Condition   string    `json:"condition"`
	Description string    `json:"description,omitempty"`
}

// SoilReading is a snapshot of soil conditions. SoilTempC is nil when the
// upstream omitted the depth temperature.
type SoilReading struct {
	Timestamp       time.Time `json:"timestamp"`
	SoilTempC       *float64  `json:"soil_temp_c"`
	SoilMoisture    float64   `json:"soil_moisture"`
	SoilMoisturePct float64   `json:"soil_moisture_pct"`
}

// ForecastPeriod is one 3-hour forecast bucket.
type ForecastPeriod struct {
	Timestamp       time.Time `json:"timestamp"`
	TempC           float64   `json:"temp_c"`
	HumidityPct     float64   `json:"humidity_pct"`
	PrecipitationMM float64   `json:"precipitation_mm"`
	Condition       string    `json:"condition,omitempty"`
}

// VegetationSample holds aggregate index statistics for one satellite pass.
type VegetationSample struct {
	Date          time.Time `json:"date"`
	Mean          float64   `json:"mean"`
	Min           float64   `json:"min"`
	Max           float64   `json:"max"`
	Std           float64   `json:"std"`
	WaterIndex    *float64  `json:"water_index_mean,omitempty"` // NDWI mean when available
	CloudCoverPct float64   `json:"cloud_cover_pct"`
}

// VegetationSeries is a sequence of samples ordered by date.
type VegetationSeries []VegetationSample

// Sorted returns a copy of the series ordered ascending by date. Samples with
// equal dates keep their relative order.
func (s VegetationSeries) Sorted() VegetationSeries {
	out := make(VegetationSeries, len(s))
	copy(out, s)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

// Latest returns the most recent sample, or false for an empty series.
// The series must already be sorted.
func (s VegetationSeries) Latest() (VegetationSample, bool) {
	if len(s) == 0 {
		return VegetationSample{}, false
	}
	return s[len(s)-1], true
}

// Snapshot bundles every reading fetched for one polygon in a single run.
type Snapshot struct {
	PolygonID   string           `json:"polygon_id"`
	PolygonName string           `json:"polygon_name,omitempty"`
	CollectedAt time.Time        `json:"collected_at"`
	Weather     WeatherReading   `json:"weather"`
	Soil        SoilReading      `json:"soil"`
	Forecast    []ForecastPeriod `json:"forecast"`
	Vegetation  VegetationSeries `json:"vegetation"`
}

// Polygon describes a monitored field registered with the upstream API.
type Polygon struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AreaHa    float64   `json:"area_ha"`
	CenterLat float64   `json:"center_lat"`
	CenterLon float64   `json:"center_lon"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreStats summarises the relational store contents.
type StoreStats struct {
	WeatherRecords    int64      `json:"weather_records"`
	SoilRecords       int64      `json:"soil_records"`
	VegetationRecords int64      `json:"ndvi_records"`
	ForecastRecords   int64      `json:"forecast_records"`
	LastUpdate        *time.Time `json:"last_update"`
}
