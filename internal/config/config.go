package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreNone     = "none"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// DefaultBaseURL is the Agromonitoring API root.
const DefaultBaseURL = "http://api.agromonitoring.com/agro/1.0"

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Upstream API.
	APIKey         string
	PolygonID      string
	PolygonName    string
	BaseURL        string
	RequestTimeout time.Duration
	MaxRetries     int
	StatsCacheSize int

	VegetationLookback    time.Duration
	CollectInterval       time.Duration
	ReportLocation        *time.Location
	LegacyMissingDefaults bool

	HTTPAddr        string
	APIRateLimit    int // requests per minute per client IP, 0 disables
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Sinks.
	DataDir      string
	FilesEnabled bool
	StoreDriver  string
	DatabaseURL  string
	SQLitePath   string

	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	MQTTBroker   string
	MQTTTopic    string
	MQTTClientID string
}

// LoadDotEnv reads variables from the given files (".env" when none are
// named) without overriding the real environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	var errs []error
	duration := func(key, def string) time.Duration {
		d, err := parsePositiveDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}
	integer := func(key string, def, minimum int) int {
		n, err := parseInt(key, def, minimum)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}

	cfg := &Config{
		APIKey:         strings.TrimSpace(os.Getenv("AGRO_API_KEY")),
		PolygonID:      strings.TrimSpace(os.Getenv("AGRO_POLYGON_ID")),
		PolygonName:    os.Getenv("AGRO_POLYGON_NAME"),
		BaseURL:        strings.TrimRight(envOrDefault("AGRO_BASE_URL", DefaultBaseURL), "/"),
		RequestTimeout: duration("AGRO_TIMEOUT", "10s"),
		MaxRetries:     integer("AGRO_MAX_RETRIES", 3, 0),
		StatsCacheSize: integer("AGRO_STATS_CACHE_SIZE", 256, 1),

		VegetationLookback:    duration("VEGETATION_LOOKBACK", "720h"),
		CollectInterval:       duration("COLLECT_INTERVAL", "1h"),
		LegacyMissingDefaults: envBool("LEGACY_MISSING_DEFAULTS", false),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		APIRateLimit:    integer("API_RATE_LIMIT", 60, 0),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: duration("SHUTDOWN_TIMEOUT", "10s"),

		DataDir:      envOrDefault("DATA_DIR", "data"),
		FilesEnabled: envBool("FILES_ENABLED", true),
		StoreDriver:  strings.ToLower(envOrDefault("STORE_DRIVER", StoreSQLite)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		SQLitePath:   os.Getenv("SQLITE_PATH"),

		KafkaEnabled: envBool("KAFKA_ENABLED", false),
		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "agro-assessments"),

		InfluxURL:    os.Getenv("INFLUX_URL"),
		InfluxToken:  os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:    os.Getenv("INFLUX_ORG"),
		InfluxBucket: envOrDefault("INFLUX_BUCKET", "agro"),

		MQTTBroker:   os.Getenv("MQTT_BROKER"),
		MQTTTopic:    envOrDefault("MQTT_TOPIC", "agro/alerts"),
		MQTTClientID: envOrDefault("MQTT_CLIENT_ID", "agro-monitor"),
	}

	loc, err := time.LoadLocation(envOrDefault("REPORT_TIMEZONE", "UTC"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid REPORT_TIMEZONE: %w", err))
	}
	cfg.ReportLocation = loc

	if cfg.SQLitePath == "" {
		cfg.SQLitePath = cfg.DataDir + "/agro_monitor.db"
	}

	if cfg.APIKey == "" {
		errs = append(errs, errors.New("AGRO_API_KEY is required"))
	}
	switch cfg.StoreDriver {
	case StoreNone, StoreSQLite:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("STORE_DRIVER is postgres but DATABASE_URL is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid STORE_DRIVER %q", cfg.StoreDriver))
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required"))
		}
		if cfg.KafkaTopic == "" {
			errs = append(errs, errors.New("KAFKA_TOPIC is required"))
		}
	}
	if cfg.InfluxURL != "" && (cfg.InfluxToken == "" || cfg.InfluxOrg == "") {
		errs = append(errs, errors.New("INFLUX_URL is set but INFLUX_TOKEN or INFLUX_ORG is not"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// RequirePolygon fails when no polygon is configured. Commands that only list
// polygons do not need one.
func (c *Config) RequirePolygon() error {
	if c.PolygonID == "" {
		return errors.New("AGRO_POLYGON_ID is required")
	}
	return nil
}

// InfluxEnabled reports whether the time-series sink is configured.
func (c *Config) InfluxEnabled() bool { return c.InfluxURL != "" }

// MQTTEnabled reports whether field alerts are published.
func (c *Config) MQTTEnabled() bool { return c.MQTTBroker != "" }

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
