package postgres

const schema = `
CREATE TABLE IF NOT EXISTS weather_data (
	id            BIGSERIAL PRIMARY KEY,
	polygon_id    TEXT NOT NULL,
	recorded_at   TIMESTAMPTZ NOT NULL,
	temp_c        DOUBLE PRECISION NOT NULL,
	feels_like_c  DOUBLE PRECISION NOT NULL,
	temp_min_c    DOUBLE PRECISION NOT NULL,
	temp_max_c    DOUBLE PRECISION NOT NULL,
	humidity_pct  DOUBLE PRECISION NOT NULL,
	pressure_hpa  DOUBLE PRECISION NOT NULL,
	wind_speed_ms DOUBLE PRECISION NOT NULL,
	wind_deg      DOUBLE PRECISION NOT NULL,
	cloud_pct     DOUBLE PRECISION NOT NULL,
	condition     TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS weather_data_polygon_time ON weather_data (polygon_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS soil_data (
	id           BIGSERIAL PRIMARY KEY,
	polygon_id   TEXT NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL,
	soil_temp_c  DOUBLE PRECISION,
	moisture     DOUBLE PRECISION NOT NULL,
	moisture_pct DOUBLE PRECISION NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS soil_data_polygon_time ON soil_data (polygon_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS ndvi_data (
	id              BIGSERIAL PRIMARY KEY,
	polygon_id      TEXT NOT NULL,
	image_date      TIMESTAMPTZ NOT NULL,
	ndvi_mean       DOUBLE PRECISION NOT NULL,
	ndvi_min        DOUBLE PRECISION NOT NULL,
	ndvi_max        DOUBLE PRECISION NOT NULL,
	ndvi_std        DOUBLE PRECISION NOT NULL,
	ndwi_mean       DOUBLE PRECISION,
	cloud_cover_pct DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (polygon_id, image_date)
);

CREATE TABLE IF NOT EXISTS forecast_data (
	id               BIGSERIAL PRIMARY KEY,
	polygon_id       TEXT NOT NULL,
	forecast_date    DATE NOT NULL,
	temp_min_c       DOUBLE PRECISION NOT NULL,
	temp_max_c       DOUBLE PRECISION NOT NULL,
	temp_avg_c       DOUBLE PRECISION NOT NULL,
	humidity_avg_pct DOUBLE PRECISION NOT NULL,
	precipitation_mm DOUBLE PRECISION NOT NULL,
	condition        TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (polygon_id, forecast_date)
);
`
