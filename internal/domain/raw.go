package domain

// Raw Agromonitoring API payloads. Optional numeric fields are pointers so
// the normalizer can tell "absent" from zero.

// RawCondition is one entry of the "weather" array.
type RawCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
}

// RawMain carries the thermodynamic block of a weather or forecast item.
type RawMain struct {
	Temp      *float64 `json:"temp"`
	FeelsLike *float64 `json:"feels_like"`
	TempMin   *float64 `json:"temp_min"`
	TempMax   *float64 `json:"temp_max"`
	Pressure  float64  `json:"pressure"`
	Humidity  float64  `json:"humidity"`
}

// RawWind carries wind speed (m/s) and direction (degrees).
type RawWind struct {
	Speed float64 `json:"speed"`
	Deg   float64 `json:"deg"`
}

// RawClouds carries cloudiness in percent.
type RawClouds struct {
	All float64 `json:"all"`
}

// RawRain carries precipitation accumulated over the last 3 hours.
type RawRain struct {
	ThreeHour float64 `json:"3h"`
}

// RawWeather is the /weather response.
type RawWeather struct {
	Dt      int64          `json:"dt"`
	Weather []RawCondition `json:"weather"`
	Main    RawMain        `json:"main"`
	Wind    RawWind        `json:"wind"`
	Clouds  RawClouds      `json:"clouds"`
}

// RawForecastItem is one element of the /weather/forecast array.
type RawForecastItem struct {
	Dt      int64          `json:"dt"`
	Weather []RawCondition `json:"weather"`
	Main    RawMain        `json:"main"`
	Rain    *RawRain       `json:"rain,omitempty"`
}

// RawSoil is the /soil response. Temperatures are in Kelvin, moisture is a
// volumetric fraction.
type RawSoil struct {
	Dt       int64    `json:"dt"`
	T10      *float64 `json:"t10"`
	T0       *float64 `json:"t0"`
	Moisture *float64 `json:"moisture"`
}

// RawImage is one element of the /image/search array. Stats maps an index
// name ("ndvi", "ndwi", ...) to the URL of its statistics document.
type RawImage struct {
	Dt         int64             `json:"dt"`
	Type       string            `json:"type"`
	CloudCover float64           `json:"cl"`
	Stats      map[string]string `json:"stats"`
}

// RawIndexStats is the statistics document behind a RawImage stats URL.
type RawIndexStats struct {
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Std    float64 `json:"std"`
	Median float64 `json:"median"`
	Num    int64   `json:"num"`
}

// RawPolygon is one element of the /polygons array.
type RawPolygon struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Area      float64   `json:"area"`
	Center    []float64 `json:"center"` // [lon, lat]
	CreatedAt int64     `json:"created_at"`
}
