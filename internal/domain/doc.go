// Package domain models agronomic telemetry for a monitored field polygon and
// the signals derived from it.
//
// # Data Source
//
// Readings come from the Agromonitoring polygon API
// (https://agromonitoring.com/api). The collector fetches current weather,
// current soil conditions, a 5-day forecast in 3-hour periods, and satellite
// imagery statistics for the vegetation (NDVI) and water (NDWI) indices. The
// raw JSON shapes are declared in raw.go and converted by [Normalizer].
//
// # Unit Conventions
//
// Temperatures:
//
//	The API reports every temperature in Kelvin. Canonical unit is Celsius:
//	°C = K − 273.15.
//
// Soil moisture:
//
//	Reported as a volumetric fraction (0–1). Canonical unit is percent:
//	% = fraction × 100. Values are passed through unclamped; the API has been
//	observed to exceed 1.0 and humidity to exceed 100, and guarding against
//	that is the upstream's job.
//
// Missing fields:
//
//	The soil depth temperature ("t10") is sometimes absent. By default it is
//	kept absent (nil) and the soil temperature stress rule is skipped. With
//	[Normalizer.LegacyMissingDefaults] the historical behaviour applies: a
//	273.15 K baseline (0 °C) and zero moisture, which downstream consumers of
//	the old CSV files rely on.
//
// # Irrigation Urgency
//
// Additive score of three saturating factors:
//
//	Moisture:    <20% 40 | <30% 30 | <40% 20 | <50% 10 | else 0
//	Rain (48h):  <2mm 40 | <5mm 30 | <10mm 20 | <20mm 10 | else 0
//	Air temp:    >32°C 20 | >28°C 10 | else 0
//
// The 48-hour rain total is the sum over the first 16 forecast periods.
// Urgency by score: ≥80 CRITICAL | ≥60 HIGH | ≥40 MODERATE | ≥20 LOW | else NONE.
//
// # Vegetation Trend
//
// Ordinary least-squares slope of the mean index against the sample position
// (0..n-1). slope > 0.01 IMPROVING | slope < −0.01 DECLINING | else STABLE.
// Fewer than two samples yields INSUFFICIENT. A sample standard deviation above
// 0.1 flags high variability.
//
// # Stress Rules
//
// Evaluated in this order, each contributing at most one finding:
//
//	Heat:          >35°C CRITICAL | >32°C HIGH
//	Water:         moisture <20% CRITICAL | <30% HIGH
//	Air dryness:   humidity <40% MODERATE
//	Soil temp:     <15°C LOW | >30°C MODERATE
//
// # IDs
//
// Analysis IDs are deterministic SHA-256 hashes of polygon|collected_at so that
// re-running the same snapshot produces the same ID in every sink. See
// [analysisID].
package domain
