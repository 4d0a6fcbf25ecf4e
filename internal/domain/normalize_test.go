package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKelvinToCelsius(t *testing.T) {
	assert.Equal(t, 0.0, KelvinToCelsius(273.15))
	assert.InDelta(t, 25.0, KelvinToCelsius(298.15), 1e-9)
	assert.InDelta(t, -273.15, KelvinToCelsius(0), 1e-9)
}

func TestNormalizer_Weather(t *testing.T) {
	data := []byte(`{
		"dt": 1771502400,
		"weather": [{"main": "Clouds", "description": "scattered clouds"}],
		"main": {"temp": 303.15, "feels_like": 305.15, "temp_min": 301.15, "temp_max": 304.15, "pressure": 1012, "humidity": 58},
		"wind": {"speed": 3.4, "deg": 120},
		"clouds": {"all": 40}
	}`)
	var raw RawWeather
	require.NoError(t, json.Unmarshal(data, &raw))

	w, err := Normalizer{}.Weather(raw)
	require.NoError(t, err)

	assert.Equal(t, time.Unix(1771502400, 0).UTC(), w.Timestamp)
	assert.InDelta(t, 30.0, w.AirTempC, 1e-9)
	assert.InDelta(t, 32.0, w.FeelsLikeC, 1e-9)
	assert.InDelta(t, 28.0, w.TempMinC, 1e-9)
	assert.InDelta(t, 31.0, w.TempMaxC, 1e-9)
	assert.Equal(t, 58.0, w.HumidityPct)
	assert.Equal(t, 1012.0, w.PressureHPa)
	assert.Equal(t, 3.4, w.WindSpeedMS)
	assert.Equal(t, 40.0, w.CloudPct)
	assert.Equal(t, "Clouds", w.Condition)
	assert.Equal(t, "scattered clouds", w.Description)
}

func TestNormalizer_WeatherMissingTemperature(t *testing.T) {
	_, err := Normalizer{}.Weather(RawWeather{Main: RawMain{Humidity: 50}})
	require.ErrorIs(t, err, ErrMissingField)

	_, err = Normalizer{LegacyMissingDefaults: true}.Weather(RawWeather{})
	require.ErrorIs(t, err, ErrMissingField, "air temperature has no legacy default")
}

func TestNormalizer_WeatherAbsentTimestampUsesClock(t *testing.T) {
	now := time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { SetClock(nil) })

	w, err := Normalizer{}.Weather(RawWeather{Main: RawMain{Temp: ptr(290)}})
	require.NoError(t, err)
	assert.Equal(t, now, w.Timestamp)
	assert.InDelta(t, w.AirTempC, w.FeelsLikeC, 1e-9)
}

func TestNormalizer_Soil(t *testing.T) {
	t.Run("complete payload", func(t *testing.T) {
		s, err := Normalizer{}.Soil(RawSoil{Dt: 1771502400, T10: ptr(295.15), Moisture: ptr(0.32)})
		require.NoError(t, err)
		require.NotNil(t, s.SoilTempC)
		assert.InDelta(t, 22.0, *s.SoilTempC, 1e-9)
		assert.Equal(t, 0.32, s.SoilMoisture)
		assert.InDelta(t, 32.0, s.SoilMoisturePct, 1e-9)
	})

	t.Run("absent t10 is unknown", func(t *testing.T) {
		s, err := Normalizer{}.Soil(RawSoil{Dt: 1771502400, Moisture: ptr(0.4)})
		require.NoError(t, err)
		assert.Nil(t, s.SoilTempC)
	})

	t.Run("absent moisture fails", func(t *testing.T) {
		_, err := Normalizer{}.Soil(RawSoil{Dt: 1771502400, T10: ptr(290)})
		require.ErrorIs(t, err, ErrMissingField)
	})

	t.Run("legacy defaults fill both", func(t *testing.T) {
		s, err := Normalizer{LegacyMissingDefaults: true}.Soil(RawSoil{Dt: 1771502400})
		require.NoError(t, err)
		require.NotNil(t, s.SoilTempC)
		assert.Equal(t, 0.0, *s.SoilTempC)
		assert.Zero(t, s.SoilMoisturePct)
	})

	t.Run("out of range moisture passes through", func(t *testing.T) {
		s, err := Normalizer{}.Soil(RawSoil{Dt: 1771502400, Moisture: ptr(1.2)})
		require.NoError(t, err)
		assert.InDelta(t, 120.0, s.SoilMoisturePct, 1e-9)
	})
}

func TestNormalizer_Forecast(t *testing.T) {
	data := []byte(`[
		{"dt": 1771502400, "main": {"temp": 300.15, "humidity": 70}, "weather": [{"main": "Rain"}], "rain": {"3h": 2.5}},
		{"dt": 1771513200, "main": {"temp": 298.15, "humidity": 75}, "weather": [{"main": "Clouds"}]}
	]`)
	var raw []RawForecastItem
	require.NoError(t, json.Unmarshal(data, &raw))

	periods, err := Normalizer{}.Forecast(raw)
	require.NoError(t, err)
	require.Len(t, periods, 2)

	assert.InDelta(t, 27.0, periods[0].TempC, 1e-9)
	assert.Equal(t, 2.5, periods[0].PrecipitationMM)
	assert.Equal(t, "Rain", periods[0].Condition)
	assert.Zero(t, periods[1].PrecipitationMM, "missing rain block means no rain")
	assert.True(t, periods[0].Timestamp.Before(periods[1].Timestamp))
}

func TestNormalizer_ForecastMissingTemperature(t *testing.T) {
	_, err := Normalizer{}.Forecast([]RawForecastItem{{Dt: 1}, {Dt: 2}})
	require.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "forecast[0]")
}

func TestNormalizer_Vegetation(t *testing.T) {
	img := RawImage{Dt: 1771502400, Type: "Sentinel-2", CloudCover: 12.5}
	stats := RawIndexStats{Mean: 0.61, Min: 0.2, Max: 0.85, Std: 0.09}

	s := Normalizer{}.Vegetation(img, stats, &RawIndexStats{Mean: 0.14})
	assert.Equal(t, time.Unix(1771502400, 0).UTC(), s.Date)
	assert.Equal(t, 0.61, s.Mean)
	assert.Equal(t, 12.5, s.CloudCoverPct)
	require.NotNil(t, s.WaterIndex)
	assert.Equal(t, 0.14, *s.WaterIndex)

	s = Normalizer{}.Vegetation(img, stats, nil)
	assert.Nil(t, s.WaterIndex)
}

func TestNormalizer_Polygon(t *testing.T) {
	p := Normalizer{}.Polygon(RawPolygon{
		ID:        "5aaa8052cbbbb5000b73ff66",
		Name:      "North plot",
		Area:      12.4,
		Center:    []float64{-4.02, 5.35},
		CreatedAt: 1771502400,
	})

	assert.Equal(t, "North plot", p.Name)
	assert.Equal(t, -4.02, p.CenterLon)
	assert.Equal(t, 5.35, p.CenterLat)
	assert.Equal(t, time.Unix(1771502400, 0).UTC(), p.CreatedAt)
}
