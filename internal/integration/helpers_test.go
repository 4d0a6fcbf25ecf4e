//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("agro-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// startPostgres runs a throwaway database and returns its connection string.
func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("agro"),
		tcpostgres.WithUsername("agro"),
		tcpostgres.WithPassword("agro"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// fakeUpstream serves the monitoring API endpoints the collector calls,
// anchored at now: two satellite passes, a dry soil reading and a forecast
// without rain.
func fakeUpstream(t *testing.T, now time.Time) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	reply := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	k := func(c float64) float64 { return c + 273.15 }

	mux.HandleFunc("/weather", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, map[string]any{
			"dt":      now.Unix(),
			"weather": []map[string]string{{"main": "Clear", "description": "clear sky"}},
			"main":    map[string]any{"temp": k(33), "humidity": 35, "pressure": 1012},
			"wind":    map[string]any{"speed": 3.2, "deg": 120},
			"clouds":  map[string]any{"all": 10},
		})
	})
	mux.HandleFunc("/soil", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, map[string]any{"dt": now.Unix(), "t10": k(31), "moisture": 0.18})
	})
	mux.HandleFunc("/weather/forecast", func(w http.ResponseWriter, _ *http.Request) {
		items := make([]map[string]any, 0, 40)
		for i := range 40 {
			items = append(items, map[string]any{
				"dt":      now.Add(time.Duration(i*3) * time.Hour).Unix(),
				"weather": []map[string]string{{"main": "Clear"}},
				"main":    map[string]any{"temp": k(30), "humidity": 50},
			})
		}
		reply(w, items)
	})
	mux.HandleFunc("/image/search", func(w http.ResponseWriter, _ *http.Request) {
		reply(w, []map[string]any{
			{"dt": now.AddDate(0, 0, -10).Unix(), "type": "Sentinel-2", "cl": 4, "stats": map[string]string{"ndvi": srv.URL + "/stats/ndvi/1"}},
			{"dt": now.AddDate(0, 0, -2).Unix(), "type": "Sentinel-2", "cl": 1, "stats": map[string]string{
				"ndvi": srv.URL + "/stats/ndvi/2",
				"ndwi": srv.URL + "/stats/ndwi/2",
			}},
		})
	})
	stats := map[string]float64{"/stats/ndvi/1": 0.72, "/stats/ndvi/2": 0.58, "/stats/ndwi/2": 0.11}
	mux.HandleFunc("/stats/", func(w http.ResponseWriter, r *http.Request) {
		mean, ok := stats[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		reply(w, map[string]any{"mean": mean, "min": mean - 0.2, "max": mean + 0.1, "std": 0.05, "num": 1000})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, fmt.Sprintf("unexpected path %s", r.URL.Path), http.StatusNotFound)
	})
	return srv
}
