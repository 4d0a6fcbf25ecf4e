// Package sqlite persists readings and forecasts in a local SQLite file, for
// single-node deployments without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/couchcryptid/agro-monitor/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS weather_data (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	polygon_id    TEXT NOT NULL,
	recorded_at   DATETIME NOT NULL,
	temp_c        REAL NOT NULL,
	feels_like_c  REAL NOT NULL,
	temp_min_c    REAL NOT NULL,
	temp_max_c    REAL NOT NULL,
	humidity_pct  REAL NOT NULL,
	pressure_hpa  REAL NOT NULL,
	wind_speed_ms REAL NOT NULL,
	wind_deg      REAL NOT NULL,
	cloud_pct     REAL NOT NULL,
	condition     TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS weather_data_polygon_time ON weather_data (polygon_id, recorded_at);

CREATE TABLE IF NOT EXISTS soil_data (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	polygon_id   TEXT NOT NULL,
	recorded_at  DATETIME NOT NULL,
	soil_temp_c  REAL,
	moisture     REAL NOT NULL,
	moisture_pct REAL NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS soil_data_polygon_time ON soil_data (polygon_id, recorded_at);

CREATE TABLE IF NOT EXISTS ndvi_data (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	polygon_id      TEXT NOT NULL,
	image_date      DATETIME NOT NULL,
	ndvi_mean       REAL NOT NULL,
	ndvi_min        REAL NOT NULL,
	ndvi_max        REAL NOT NULL,
	ndvi_std        REAL NOT NULL,
	ndwi_mean       REAL,
	cloud_cover_pct REAL NOT NULL,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (polygon_id, image_date)
);

CREATE TABLE IF NOT EXISTS forecast_data (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	polygon_id       TEXT NOT NULL,
	forecast_date    TEXT NOT NULL,
	temp_min_c       REAL NOT NULL,
	temp_max_c       REAL NOT NULL,
	temp_avg_c       REAL NOT NULL,
	humidity_avg_pct REAL NOT NULL,
	precipitation_mm REAL NOT NULL,
	condition        TEXT NOT NULL DEFAULT '',
	created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (polygon_id, forecast_date)
);
`

// Store is a SQLite implementation of the reading store.
// It implements pipeline.Loader.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

// Open opens (creating if needed) the database file and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, loc *time.Location) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; an in-memory database also lives on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}, nil
}

func (s *Store) Name() string { return "sqlite" }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Load writes the snapshot of an assessment in one transaction. Vegetation
// samples and forecast days already stored are left untouched.
func (s *Store) Load(ctx context.Context, a domain.Assessment) error {
	snap := a.Snapshot
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	w := snap.Weather
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO weather_data (polygon_id, recorded_at, temp_c, feels_like_c, temp_min_c, temp_max_c,
			humidity_pct, pressure_hpa, wind_speed_ms, wind_deg, cloud_pct, condition, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.PolygonID, w.Timestamp.UTC(), w.AirTempC, w.FeelsLikeC, w.TempMinC, w.TempMaxC,
		w.HumidityPct, w.PressureHPa, w.WindSpeedMS, w.WindDeg, w.CloudPct, w.Condition, w.Description,
	); err != nil {
		return fmt.Errorf("insert weather: %w", err)
	}

	soil := snap.Soil
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO soil_data (polygon_id, recorded_at, soil_temp_c, moisture, moisture_pct)
		VALUES (?, ?, ?, ?, ?)`,
		snap.PolygonID, soil.Timestamp.UTC(), nullable(soil.SoilTempC), soil.SoilMoisture, soil.SoilMoisturePct,
	); err != nil {
		return fmt.Errorf("insert soil: %w", err)
	}

	for _, v := range snap.Vegetation {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO ndvi_data (polygon_id, image_date, ndvi_mean, ndvi_min, ndvi_max, ndvi_std, ndwi_mean, cloud_cover_pct)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.PolygonID, v.Date.UTC(), v.Mean, v.Min, v.Max, v.Std, nullable(v.WaterIndex), v.CloudCoverPct,
		); err != nil {
			return fmt.Errorf("insert vegetation: %w", err)
		}
	}

	for _, d := range domain.SummarizeForecast(snap.Forecast, s.loc, 0, domain.StoredForecastDays) {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO forecast_data (polygon_id, forecast_date, temp_min_c, temp_max_c, temp_avg_c,
				humidity_avg_pct, precipitation_mm, condition)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.PolygonID, d.Date.Format(time.DateOnly), d.TempMinC, d.TempMaxC, d.TempAvgC,
			d.HumidityAvgPct, d.PrecipitationMM, d.Condition,
		); err != nil {
			return fmt.Errorf("insert forecast: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

const weatherColumns = `recorded_at, temp_c, feels_like_c, temp_min_c, temp_max_c, humidity_pct,
	pressure_hpa, wind_speed_ms, wind_deg, cloud_pct, condition, description`

func scanWeather(row scanner) (domain.WeatherReading, error) {
	var w domain.WeatherReading
	err := row.Scan(&w.Timestamp, &w.AirTempC, &w.FeelsLikeC, &w.TempMinC, &w.TempMaxC, &w.HumidityPct,
		&w.PressureHPa, &w.WindSpeedMS, &w.WindDeg, &w.CloudPct, &w.Condition, &w.Description)
	w.Timestamp = w.Timestamp.UTC()
	return w, err
}

// LatestWeather returns the most recent weather reading for the polygon.
func (s *Store) LatestWeather(ctx context.Context, polygonID string) (domain.WeatherReading, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+weatherColumns+` FROM weather_data
		WHERE polygon_id = ? ORDER BY recorded_at DESC, id DESC LIMIT 1`, polygonID)
	w, err := scanWeather(row)
	return w, notFound(err)
}

// WeatherHistory returns readings recorded since the given time, newest first.
func (s *Store) WeatherHistory(ctx context.Context, polygonID string, since time.Time, limit int) ([]domain.WeatherReading, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+weatherColumns+` FROM weather_data
		WHERE polygon_id = ? AND recorded_at >= ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		polygonID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query weather history: %w", err)
	}
	defer rows.Close()

	out := []domain.WeatherReading{}
	for rows.Next() {
		w, err := scanWeather(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanSoil(row scanner) (domain.SoilReading, error) {
	var r domain.SoilReading
	var temp sql.NullFloat64
	err := row.Scan(&r.Timestamp, &temp, &r.SoilMoisture, &r.SoilMoisturePct)
	r.Timestamp = r.Timestamp.UTC()
	r.SoilTempC = fromNullable(temp)
	return r, err
}

// LatestSoil returns the most recent soil reading for the polygon.
func (s *Store) LatestSoil(ctx context.Context, polygonID string) (domain.SoilReading, error) {
	row := s.db.QueryRowContext(ctx, `SELECT recorded_at, soil_temp_c, moisture, moisture_pct FROM soil_data
		WHERE polygon_id = ? ORDER BY recorded_at DESC, id DESC LIMIT 1`, polygonID)
	r, err := scanSoil(row)
	return r, notFound(err)
}

// SoilHistory returns soil readings recorded since the given time, newest first.
func (s *Store) SoilHistory(ctx context.Context, polygonID string, since time.Time, limit int) ([]domain.SoilReading, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT recorded_at, soil_temp_c, moisture, moisture_pct FROM soil_data
		WHERE polygon_id = ? AND recorded_at >= ? ORDER BY recorded_at DESC, id DESC LIMIT ?`,
		polygonID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query soil history: %w", err)
	}
	defer rows.Close()

	out := []domain.SoilReading{}
	for rows.Next() {
		r, err := scanSoil(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const vegetationColumns = `image_date, ndvi_mean, ndvi_min, ndvi_max, ndvi_std, ndwi_mean, cloud_cover_pct`

func scanVegetation(row scanner) (domain.VegetationSample, error) {
	var v domain.VegetationSample
	var ndwi sql.NullFloat64
	err := row.Scan(&v.Date, &v.Mean, &v.Min, &v.Max, &v.Std, &ndwi, &v.CloudCoverPct)
	v.Date = v.Date.UTC()
	v.WaterIndex = fromNullable(ndwi)
	return v, err
}

// LatestVegetation returns the most recent satellite sample for the polygon.
func (s *Store) LatestVegetation(ctx context.Context, polygonID string) (domain.VegetationSample, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+vegetationColumns+` FROM ndvi_data
		WHERE polygon_id = ? ORDER BY image_date DESC LIMIT 1`, polygonID)
	v, err := scanVegetation(row)
	return v, notFound(err)
}

// VegetationHistory returns the newest limit samples taken since the given
// time, ordered oldest first.
func (s *Store) VegetationHistory(ctx context.Context, polygonID string, since time.Time, limit int) (domain.VegetationSeries, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+vegetationColumns+` FROM ndvi_data
		WHERE polygon_id = ? AND image_date >= ? ORDER BY image_date DESC LIMIT ?`,
		polygonID, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("query vegetation history: %w", err)
	}
	defer rows.Close()

	out := domain.VegetationSeries{}
	for rows.Next() {
		v, err := scanVegetation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out.Sorted(), nil
}

// UpcomingForecast returns up to days stored forecast days starting at from's
// calendar date.
func (s *Store) UpcomingForecast(ctx context.Context, polygonID string, from time.Time, days int) ([]domain.DailyForecast, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT forecast_date, temp_min_c, temp_max_c, temp_avg_c, humidity_avg_pct, precipitation_mm, condition
		FROM forecast_data
		WHERE polygon_id = ? AND forecast_date >= ?
		ORDER BY forecast_date ASC LIMIT ?`,
		polygonID, from.In(s.loc).Format(time.DateOnly), days)
	if err != nil {
		return nil, fmt.Errorf("query forecast: %w", err)
	}
	defer rows.Close()

	out := []domain.DailyForecast{}
	for rows.Next() {
		var d domain.DailyForecast
		var date string
		if err := rows.Scan(&date, &d.TempMinC, &d.TempMaxC, &d.TempAvgC, &d.HumidityAvgPct, &d.PrecipitationMM, &d.Condition); err != nil {
			return nil, err
		}
		if d.Date, err = time.ParseInLocation(time.DateOnly, date, s.loc); err != nil {
			return nil, fmt.Errorf("parse forecast date %q: %w", date, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats counts stored records per table.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	var st domain.StoreStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM weather_data),
			(SELECT count(*) FROM soil_data),
			(SELECT count(*) FROM ndvi_data),
			(SELECT count(*) FROM forecast_data)`,
	).Scan(&st.WeatherRecords, &st.SoilRecords, &st.VegetationRecords, &st.ForecastRecords)
	if err != nil {
		return st, fmt.Errorf("query stats: %w", err)
	}

	// max() loses the column's declared type, so read the newest row instead.
	var last time.Time
	err = s.db.QueryRowContext(ctx, `SELECT recorded_at FROM weather_data ORDER BY recorded_at DESC LIMIT 1`).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return st, fmt.Errorf("query last update: %w", err)
	default:
		last = last.UTC()
		st.LastUpdate = &last
	}
	return st, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func fromNullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
