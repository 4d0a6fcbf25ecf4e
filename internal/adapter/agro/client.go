package agro

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/agro-monitor/internal/domain"
	"github.com/couchcryptid/agro-monitor/internal/observability"
)

// Client talks to the Agromonitoring REST API. It returns raw payloads;
// conversion to canonical readings is left to domain.Normalizer.
type Client struct {
	apiKey  string
	baseURL string
	fetch   *fetcher
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Retry   RetryPolicy
}

// NewClient creates an Agromonitoring client with retries and a circuit breaker.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		fetch:   newFetcher(&http.Client{Timeout: opts.Timeout}, opts.Retry, metrics, logger),
		logger:  logger,
		metrics: metrics,
	}
}

// CurrentWeather returns current conditions over the polygon.
func (c *Client) CurrentWeather(ctx context.Context, polygonID string) (domain.RawWeather, error) {
	var out domain.RawWeather
	err := c.getJSON(ctx, "weather", "/weather", url.Values{"polyid": {polygonID}}, &out)
	return out, err
}

// CurrentSoil returns current soil temperature and moisture for the polygon.
func (c *Client) CurrentSoil(ctx context.Context, polygonID string) (domain.RawSoil, error) {
	var out domain.RawSoil
	err := c.getJSON(ctx, "soil", "/soil", url.Values{"polyid": {polygonID}}, &out)
	return out, err
}

// Forecast returns the 5-day forecast in 3-hour periods.
func (c *Client) Forecast(ctx context.Context, polygonID string) ([]domain.RawForecastItem, error) {
	var out []domain.RawForecastItem
	err := c.getJSON(ctx, "forecast", "/weather/forecast", url.Values{"polyid": {polygonID}}, &out)
	return out, err
}

// SearchImages lists satellite passes over the polygon between start and end.
func (c *Client) SearchImages(ctx context.Context, polygonID string, start, end time.Time) ([]domain.RawImage, error) {
	params := url.Values{
		"polyid": {polygonID},
		"start":  {strconv.FormatInt(start.Unix(), 10)},
		"end":    {strconv.FormatInt(end.Unix(), 10)},
	}
	var out []domain.RawImage
	err := c.getJSON(ctx, "images", "/image/search", params, &out)
	return out, err
}

// IndexStats fetches the statistics document an image links to. The URL is
// used as returned by the image search.
func (c *Client) IndexStats(ctx context.Context, statsURL string) (domain.RawIndexStats, error) {
	var out domain.RawIndexStats
	body, err := c.fetch.get(ctx, "stats", statsURL)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode stats response: %w", err)
	}
	return out, nil
}

// Polygons lists the polygons registered under the API key.
func (c *Client) Polygons(ctx context.Context) ([]domain.RawPolygon, error) {
	var out []domain.RawPolygon
	err := c.getJSON(ctx, "polygons", "/polygons", url.Values{}, &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, params url.Values, dst any) error {
	params.Set("appid", c.apiKey)
	body, err := c.fetch.get(ctx, endpoint, c.baseURL+path+"?"+params.Encode())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}
