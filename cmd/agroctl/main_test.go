package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/agro-monitor/internal/domain"
)

// upstream serves a hot, dry field with one satellite pass.
func upstream(t *testing.T) *httptest.Server {
	t.Helper()
	now := time.Now().Unix()
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	reply := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		}
	}
	mux.HandleFunc("/weather", reply(`{"dt":0,"weather":[{"main":"Clear","description":"clear sky"}],"main":{"temp":309.15,"humidity":30,"pressure":1010},"wind":{"speed":1.5},"clouds":{"all":0}}`))
	mux.HandleFunc("/soil", reply(`{"dt":0,"t10":300.15,"moisture":0.15}`))
	mux.HandleFunc("/weather/forecast", reply(`[{"dt":0,"main":{"temp":305.15,"humidity":35},"weather":[{"main":"Clear"}]}]`))
	mux.HandleFunc("/polygons", reply(`[{"id":"poly-1","name":"North Plot","area":2.5,"center":[-76.9,-12.1]}]`))
	mux.HandleFunc("/stats/ndvi", reply(`{"mean":0.61,"min":0.3,"max":0.8,"std":0.07}`))
	mux.HandleFunc("/image/search", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"dt": now - 86400, "cl": 2, "stats": map[string]string{"ndvi": srv.URL + "/stats/ndvi"}},
		})
	})
	return srv
}

func setEnv(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AGRO_API_KEY", "test-key")
	t.Setenv("AGRO_POLYGON_ID", "poly-1")
	t.Setenv("AGRO_BASE_URL", baseURL)
	t.Setenv("AGRO_MAX_RETRIES", "0")
	t.Setenv("STORE_DRIVER", "none")
	t.Setenv("FILES_ENABLED", "false")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_Usage(t *testing.T) {
	_, stderr, err := runCmd(t)
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "commands:")
	assert.Contains(t, stderr, "polygons")

	_, stderr, err = runCmd(t, "plant")
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, `unknown command "plant"`)
}

func TestRun_RequiresPolygon(t *testing.T) {
	srv := upstream(t)
	setEnv(t, srv.URL)
	t.Setenv("AGRO_POLYGON_ID", "")

	_, _, err := runCmd(t, "irrigation")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AGRO_POLYGON_ID")

	out, _, err := runCmd(t, "polygons")
	require.NoError(t, err)
	assert.Contains(t, out, "North Plot")
	assert.Contains(t, out, "2.50")
}

func TestRun_Analyses(t *testing.T) {
	srv := upstream(t)
	setEnv(t, srv.URL)

	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"current"}, []string{"36.0°C", "moisture 15.0%", "NDVI 0.610"}},
		{[]string{"irrigation"}, []string{"Urgency:  CRITICAL (score 100/100)"}},
		{[]string{"trend"}, []string{"Trend:          INSUFFICIENT"}},
		{[]string{"stress"}, []string{domain.StressExtremeHeat, domain.StressSevereWaterStress, domain.StressLowHumidity}},
		{[]string{"report"}, []string{"WEEKLY FIELD REPORT"}},
	}
	for _, tt := range tests {
		t.Run(tt.args[0], func(t *testing.T) {
			out, _, err := runCmd(t, tt.args...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}
}

func TestRun_ReportSave(t *testing.T) {
	srv := upstream(t)
	dir := setEnv(t, srv.URL)

	out, _, err := runCmd(t, "report", "-save")
	require.NoError(t, err)
	assert.Contains(t, out, "Report saved to "+dir)

	matches, err := filepath.Glob(filepath.Join(dir, "report_poly-1_*.txt"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestRun_Export(t *testing.T) {
	srv := upstream(t)
	setEnv(t, srv.URL)
	path := filepath.Join(t.TempDir(), "assessment.json")

	out, _, err := runCmd(t, "export", "-out", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var a domain.Assessment
	require.NoError(t, json.Unmarshal(data, &a))
	assert.Equal(t, "poly-1", a.Analysis.PolygonID)
	assert.Equal(t, domain.UrgencyCritical, a.Analysis.Irrigation.Urgency)
}

func TestRun_Collect(t *testing.T) {
	srv := upstream(t)
	dir := setEnv(t, srv.URL)
	t.Setenv("FILES_ENABLED", "true")

	out, _, err := runCmd(t, "collect")
	require.NoError(t, err)
	assert.Contains(t, out, "irrigation CRITICAL (score 100)")
	assert.FileExists(t, filepath.Join(dir, "weather_history.csv"))
	assert.FileExists(t, filepath.Join(dir, "complete_records.json"))
}

func TestRun_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"Invalid API key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()
	setEnv(t, srv.URL)

	_, _, err := runCmd(t, "irrigation")
	require.Error(t, err)
}

func TestRun_BadFlag(t *testing.T) {
	srv := upstream(t)
	setEnv(t, srv.URL)

	_, _, err := runCmd(t, "trend", "-bogus")
	require.Error(t, err)
}
