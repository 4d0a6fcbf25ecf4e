// Package postgres persists readings and forecasts in PostgreSQL and serves
// the read side of the HTTP API.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/agro-monitor/internal/domain"
)

// Store is a PostgreSQL implementation of the reading store.
// It implements pipeline.Loader.
type Store struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// Connect opens a pool, verifies it and applies the schema. loc decides the
// calendar days forecasts are stored under.
func Connect(ctx context.Context, databaseURL string, loc *time.Location) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	poolConfig.MaxConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(pool, loc)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{pool: pool, loc: loc}
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Name() string { return "postgres" }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Load writes the snapshot of an assessment in one transaction. Vegetation
// samples and forecast days already stored are left untouched.
func (s *Store) Load(ctx context.Context, a domain.Assessment) error {
	snap := a.Snapshot
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	w := snap.Weather
	if _, err := tx.Exec(ctx, `
		INSERT INTO weather_data (polygon_id, recorded_at, temp_c, feels_like_c, temp_min_c, temp_max_c,
			humidity_pct, pressure_hpa, wind_speed_ms, wind_deg, cloud_pct, condition, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		snap.PolygonID, w.Timestamp.UTC(), w.AirTempC, w.FeelsLikeC, w.TempMinC, w.TempMaxC,
		w.HumidityPct, w.PressureHPa, w.WindSpeedMS, w.WindDeg, w.CloudPct, w.Condition, w.Description,
	); err != nil {
		return fmt.Errorf("insert weather: %w", err)
	}

	soil := snap.Soil
	if _, err := tx.Exec(ctx, `
		INSERT INTO soil_data (polygon_id, recorded_at, soil_temp_c, moisture, moisture_pct)
		VALUES ($1, $2, $3, $4, $5)`,
		snap.PolygonID, soil.Timestamp.UTC(), soil.SoilTempC, soil.SoilMoisture, soil.SoilMoisturePct,
	); err != nil {
		return fmt.Errorf("insert soil: %w", err)
	}

	batch := &pgx.Batch{}
	for _, v := range snap.Vegetation {
		batch.Queue(`
			INSERT INTO ndvi_data (polygon_id, image_date, ndvi_mean, ndvi_min, ndvi_max, ndvi_std, ndwi_mean, cloud_cover_pct)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (polygon_id, image_date) DO NOTHING`,
			snap.PolygonID, v.Date.UTC(), v.Mean, v.Min, v.Max, v.Std, v.WaterIndex, v.CloudCoverPct)
	}
	for _, d := range domain.SummarizeForecast(snap.Forecast, s.loc, 0, domain.StoredForecastDays) {
		batch.Queue(`
			INSERT INTO forecast_data (polygon_id, forecast_date, temp_min_c, temp_max_c, temp_avg_c,
				humidity_avg_pct, precipitation_mm, condition)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (polygon_id, forecast_date) DO NOTHING`,
			snap.PolygonID, calendarDate(d.Date), d.TempMinC, d.TempMaxC, d.TempAvgC,
			d.HumidityAvgPct, d.PrecipitationMM, d.Condition)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert vegetation and forecast: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const weatherColumns = `recorded_at, temp_c, feels_like_c, temp_min_c, temp_max_c, humidity_pct,
	pressure_hpa, wind_speed_ms, wind_deg, cloud_pct, condition, description`

func scanWeather(row pgx.Row) (domain.WeatherReading, error) {
	var w domain.WeatherReading
	err := row.Scan(&w.Timestamp, &w.AirTempC, &w.FeelsLikeC, &w.TempMinC, &w.TempMaxC, &w.HumidityPct,
		&w.PressureHPa, &w.WindSpeedMS, &w.WindDeg, &w.CloudPct, &w.Condition, &w.Description)
	w.Timestamp = w.Timestamp.UTC()
	return w, err
}

// LatestWeather returns the most recent weather reading for the polygon.
func (s *Store) LatestWeather(ctx context.Context, polygonID string) (domain.WeatherReading, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+weatherColumns+` FROM weather_data
		WHERE polygon_id = $1 ORDER BY recorded_at DESC LIMIT 1`, polygonID)
	w, err := scanWeather(row)
	return w, notFound(err)
}

// WeatherHistory returns readings recorded since the given time, newest first.
func (s *Store) WeatherHistory(ctx context.Context, polygonID string, since time.Time, limit int) ([]domain.WeatherReading, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+weatherColumns+` FROM weather_data
		WHERE polygon_id = $1 AND recorded_at >= $2 ORDER BY recorded_at DESC LIMIT $3`,
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

func scanSoil(row pgx.Row) (domain.SoilReading, error) {
	var r domain.SoilReading
	err := row.Scan(&r.Timestamp, &r.SoilTempC, &r.SoilMoisture, &r.SoilMoisturePct)
	r.Timestamp = r.Timestamp.UTC()
	return r, err
}

// LatestSoil returns the most recent soil reading for the polygon.
func (s *Store) LatestSoil(ctx context.Context, polygonID string) (domain.SoilReading, error) {
	row := s.pool.QueryRow(ctx, `SELECT recorded_at, soil_temp_c, moisture, moisture_pct FROM soil_data
		WHERE polygon_id = $1 ORDER BY recorded_at DESC LIMIT 1`, polygonID)
	r, err := scanSoil(row)
	return r, notFound(err)
}

// SoilHistory returns soil readings recorded since the given time, newest first.
func (s *Store) SoilHistory(ctx context.Context, polygonID string, since time.Time, limit int) ([]domain.SoilReading, error) {
	rows, err := s.pool.Query(ctx, `SELECT recorded_at, soil_temp_c, moisture, moisture_pct FROM soil_data
		WHERE polygon_id = $1 AND recorded_at >= $2 ORDER BY recorded_at DESC LIMIT $3`,
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

func scanVegetation(row pgx.Row) (domain.VegetationSample, error) {
	var v domain.VegetationSample
	err := row.Scan(&v.Date, &v.Mean, &v.Min, &v.Max, &v.Std, &v.WaterIndex, &v.CloudCoverPct)
	v.Date = v.Date.UTC()
	return v, err
}

// LatestVegetation returns the most recent satellite sample for the polygon.
func (s *Store) LatestVegetation(ctx context.Context, polygonID string) (domain.VegetationSample, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+vegetationColumns+` FROM ndvi_data
		WHERE polygon_id = $1 ORDER BY image_date DESC LIMIT 1`, polygonID)
	v, err := scanVegetation(row)
	return v, notFound(err)
}

// VegetationHistory returns the newest limit samples taken since the given
// time, ordered oldest first.
func (s *Store) VegetationHistory(ctx context.Context, polygonID string, since time.Time, limit int) (domain.VegetationSeries, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+vegetationColumns+` FROM ndvi_data
		WHERE polygon_id = $1 AND image_date >= $2 ORDER BY image_date DESC LIMIT $3`,
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
	rows, err := s.pool.Query(ctx, `
		SELECT forecast_date, temp_min_c, temp_max_c, temp_avg_c, humidity_avg_pct, precipitation_mm, condition
		FROM forecast_data
		WHERE polygon_id = $1 AND forecast_date >= $2
		ORDER BY forecast_date ASC LIMIT $3`,
		polygonID, calendarDate(from.In(s.loc)), days)
	if err != nil {
		return nil, fmt.Errorf("query forecast: %w", err)
	}
	defer rows.Close()

	out := []domain.DailyForecast{}
	for rows.Next() {
		var d domain.DailyForecast
		var date time.Time
		if err := rows.Scan(&date, &d.TempMinC, &d.TempMaxC, &d.TempAvgC, &d.HumidityAvgPct, &d.PrecipitationMM, &d.Condition); err != nil {
			return nil, err
		}
		d.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.loc)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats counts stored records per table.
func (s *Store) Stats(ctx context.Context) (domain.StoreStats, error) {
	var st domain.StoreStats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM weather_data),
			(SELECT count(*) FROM soil_data),
			(SELECT count(*) FROM ndvi_data),
			(SELECT count(*) FROM forecast_data),
			(SELECT max(recorded_at) FROM weather_data)`,
	).Scan(&st.WeatherRecords, &st.SoilRecords, &st.VegetationRecords, &st.ForecastRecords, &st.LastUpdate)
	if err != nil {
		return st, fmt.Errorf("query stats: %w", err)
	}
	if st.LastUpdate != nil {
		t := st.LastUpdate.UTC()
		st.LastUpdate = &t
	}
	return st, nil
}

// calendarDate keeps the wall-clock date of t, as DATE columns expect.
func calendarDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}
