// Package influx writes assessment readings to an InfluxDB v2 bucket as time
// series points.
package influx

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/couchcryptid/agro-monitor/internal/domain"
)

// Measurement names.
const (
	MeasurementWeather    = "weather"
	MeasurementSoil       = "soil"
	MeasurementVegetation = "vegetation"
	MeasurementIrrigation = "irrigation"
)

// pointWriter is the subset of api.WriteAPIBlocking used by Writer.
type pointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Config holds the connection settings for the target bucket.
type Config struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

// Writer implements pipeline.Loader on top of the blocking write API.
type Writer struct {
	client influxdb2.Client
	api    pointWriter
	logger *slog.Logger
}

// timeoutSeconds rounds d up to whole seconds, never below one.
func timeoutSeconds(d time.Duration) uint {
	return uint(max(math.Ceil(d.Seconds()), 1))
}

// NewWriter connects a client to the configured bucket.
func NewWriter(cfg Config, logger *slog.Logger) (*Writer, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("influx config incomplete: url, org and bucket are required")
	}
	opts := influxdb2.DefaultOptions()
	if cfg.Timeout > 0 {
		opts.SetHTTPRequestTimeout(timeoutSeconds(cfg.Timeout))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	return &Writer{
		client: client,
		api:    client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		logger: logger,
	}, nil
}

func newWriterWithAPI(api pointWriter, logger *slog.Logger) *Writer {
	return &Writer{api: api, logger: logger}
}

func (w *Writer) Name() string { return "influx" }

// Load writes one point per reading kind. Only the latest vegetation sample
// is written; older passes were written by earlier runs.
func (w *Writer) Load(ctx context.Context, a domain.Assessment) error {
	points := Points(a)
	if err := w.api.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	w.logger.Debug("influx points written", "count", len(points), "polygon_id", a.Snapshot.PolygonID)
	return nil
}

// Ping reports whether the server is reachable.
func (w *Writer) Ping(ctx context.Context) error {
	if w.client == nil {
		return nil
	}
	ok, err := w.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return fmt.Errorf("influx ping: server not ready")
	}
	return nil
}

// Close releases the client.
func (w *Writer) Close() {
	if w.client != nil {
		w.client.Close()
	}
}

// Points converts an assessment into line-protocol points.
func Points(a domain.Assessment) []*write.Point {
	snap := a.Snapshot
	tags := map[string]string{"polygon_id": snap.PolygonID}

	wx := snap.Weather
	points := []*write.Point{
		influxdb2.NewPoint(MeasurementWeather, tags, map[string]interface{}{
			"temp_c":        wx.AirTempC,
			"feels_like_c":  wx.FeelsLikeC,
			"humidity_pct":  wx.HumidityPct,
			"pressure_hpa":  wx.PressureHPa,
			"wind_speed_ms": wx.WindSpeedMS,
			"cloud_pct":     wx.CloudPct,
		}, wx.Timestamp),
	}

	soilFields := map[string]interface{}{
		"moisture":     snap.Soil.SoilMoisture,
		"moisture_pct": snap.Soil.SoilMoisturePct,
	}
	if snap.Soil.SoilTempC != nil {
		soilFields["temp_c"] = *snap.Soil.SoilTempC
	}
	points = append(points, influxdb2.NewPoint(MeasurementSoil, tags, soilFields, snap.Soil.Timestamp))

	if v, ok := snap.Vegetation.Sorted().Latest(); ok {
		fields := map[string]interface{}{
			"ndvi_mean":       v.Mean,
			"ndvi_min":        v.Min,
			"ndvi_max":        v.Max,
			"ndvi_std":        v.Std,
			"cloud_cover_pct": v.CloudCoverPct,
		}
		if v.WaterIndex != nil {
			fields["ndwi_mean"] = *v.WaterIndex
		}
		points = append(points, influxdb2.NewPoint(MeasurementVegetation, tags, fields, v.Date))
	}

	irr := a.Analysis.Irrigation
	points = append(points, influxdb2.NewPoint(MeasurementIrrigation,
		map[string]string{"polygon_id": snap.PolygonID, "urgency": string(irr.Urgency)},
		map[string]interface{}{
			"score":       irr.Score,
			"rain_48h_mm": irr.Rain48hMM,
			"stress":      len(a.Analysis.Stress),
		}, a.Analysis.AnalyzedAt))

	return points
}
