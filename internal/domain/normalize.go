package domain

import (
	"errors"
	"fmt"
	"time"
)

// KelvinBaseline is the value assumed for an absent temperature under legacy
// defaults. It converts to exactly 0 °C.
const KelvinBaseline = 273.15

// ErrMissingField is wrapped by parse errors for required upstream fields.
var ErrMissingField = errors.New("missing required field")

// KelvinToCelsius converts an absolute temperature to Celsius.
func KelvinToCelsius(k float64) float64 {
	return k - KelvinBaseline
}

// FractionToPercent converts a 0–1 fraction to a 0–100 percentage.
func FractionToPercent(f float64) float64 {
	return f * 100
}

// Normalizer turns raw API payloads into canonical readings.
type Normalizer struct {
	// LegacyMissingDefaults substitutes 273.15 K for an absent soil
	// temperature and 0 for absent soil moisture instead of reporting them as
	// missing.
	LegacyMissingDefaults bool
}

// Weather converts a /weather payload. The air temperature is required.
func (n Normalizer) Weather(raw RawWeather) (WeatherReading, error) {
	if raw.Main.Temp == nil {
		return WeatherReading{}, fmt.Errorf("weather main.temp: %w", ErrMissingField)
	}
	temp := KelvinToCelsius(*raw.Main.Temp)

	r := WeatherReading{
		Timestamp:   unixOrNow(raw.Dt),
		AirTempC:    temp,
		FeelsLikeC:  celsiusOr(raw.Main.FeelsLike, temp),
		TempMinC:    celsiusOr(raw.Main.TempMin, temp),
		TempMaxC:    celsiusOr(raw.Main.TempMax, temp),
		HumidityPct: raw.Main.Humidity,
		PressureHPa: raw.Main.Pressure,
		WindSpeedMS: raw.Wind.Speed,
		WindDeg:     raw.Wind.Deg,
		CloudPct:    raw.Clouds.All,
	}
	if len(raw.Weather) > 0 {
		r.Condition = raw.Weather[0].Main
		r.Description = raw.Weather[0].Description
	}
	return r, nil
}

// Soil converts a /soil payload.
func (n Normalizer) Soil(raw RawSoil) (SoilReading, error) {
	r := SoilReading{Timestamp: unixOrNow(raw.Dt)}

	switch {
	case raw.T10 != nil:
		c := KelvinToCelsius(*raw.T10)
		r.SoilTempC = &c
	case n.LegacyMissingDefaults:
		c := KelvinToCelsius(KelvinBaseline)
		r.SoilTempC = &c
	}

	switch {
	case raw.Moisture != nil:
		r.SoilMoisture = *raw.Moisture
	case n.LegacyMissingDefaults:
		r.SoilMoisture = 0
	default:
		return SoilReading{}, fmt.Errorf("soil moisture: %w", ErrMissingField)
	}
	r.SoilMoisturePct = FractionToPercent(r.SoilMoisture)
	return r, nil
}

// Forecast converts the /weather/forecast array, preserving upstream order.
// Items without a temperature are rejected rather than silently dropped.
func (n Normalizer) Forecast(items []RawForecastItem) ([]ForecastPeriod, error) {
	out := make([]ForecastPeriod, 0, len(items))
	for i, item := range items {
		if item.Main.Temp == nil {
			return nil, fmt.Errorf("forecast[%d] main.temp: %w", i, ErrMissingField)
		}
		p := ForecastPeriod{
			Timestamp:   time.Unix(item.Dt, 0).UTC(),
			TempC:       KelvinToCelsius(*item.Main.Temp),
			HumidityPct: item.Main.Humidity,
		}
		if item.Rain != nil {
			p.PrecipitationMM = item.Rain.ThreeHour
		}
		if len(item.Weather) > 0 {
			p.Condition = item.Weather[0].Main
		}
		out = append(out, p)
	}
	return out, nil
}

// Vegetation converts an image and its index statistics into a sample.
// waterIndex may be nil when the image has no NDWI statistics.
func (n Normalizer) Vegetation(img RawImage, stats RawIndexStats, waterIndex *RawIndexStats) VegetationSample {
	s := VegetationSample{
		Date:          time.Unix(img.Dt, 0).UTC(),
		Mean:          stats.Mean,
		Min:           stats.Min,
		Max:           stats.Max,
		Std:           stats.Std,
		CloudCoverPct: img.CloudCover,
	}
	if waterIndex != nil {
		m := waterIndex.Mean
		s.WaterIndex = &m
	}
	return s
}

// Polygon converts a /polygons entry.
func (n Normalizer) Polygon(raw RawPolygon) Polygon {
	p := Polygon{
		ID:     raw.ID,
		Name:   raw.Name,
		AreaHa: raw.Area,
	}
	if len(raw.Center) == 2 {
		p.CenterLon = raw.Center[0]
		p.CenterLat = raw.Center[1]
	}
	if raw.CreatedAt > 0 {
		p.CreatedAt = time.Unix(raw.CreatedAt, 0).UTC()
	}
	return p
}

func celsiusOr(k *float64, fallback float64) float64 {
	if k == nil {
		return fallback
	}
	return KelvinToCelsius(*k)
}

// unixOrNow converts an upstream epoch, falling back to the package clock when
// the field is absent.
func unixOrNow(dt int64) time.Time {
	if dt <= 0 {
		return clock.Now().UTC()
	}
	return time.Unix(dt, 0).UTC()
}
