// Package filestore keeps a plain-file history of every run: one CSV per
// reading kind and a JSON array of complete assessments.
package filestore

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/agro-monitor/internal/domain"
)

// File names inside the data directory.
const (
	WeatherFile  = "weather_history.csv"
	SoilFile     = "soil_history.csv"
	NDVIFile     = "ndvi_history.csv"
	RecordsFile  = "complete_records.json"
	filePerm     = 0o644
	dirPerm      = 0o755
	timeLayout   = time.RFC3339
	floatDigits  = 4
	reportSuffix = ".txt"
)

var (
	weatherHeader = []string{"timestamp", "polygon_id", "temp_c", "feels_like_c", "temp_min_c", "temp_max_c",
		"humidity_pct", "pressure_hpa", "wind_speed_ms", "wind_deg", "cloud_pct", "condition", "description"}
	soilHeader = []string{"timestamp", "polygon_id", "soil_temp_c", "moisture", "moisture_pct"}
	ndviHeader = []string{"date", "polygon_id", "ndvi_mean", "ndvi_min", "ndvi_max", "ndvi_std", "ndwi_mean", "cloud_cover_pct"}
)

// Store appends run results under a data directory.
// It implements pipeline.Loader.
type Store struct {
	dir string
	mu  sync.Mutex
}

// New creates the data directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Name() string { return "files" }

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Load appends the weather and soil readings, the latest vegetation sample
// and the full assessment.
func (s *Store) Load(_ context.Context, a domain.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := a.Snapshot
	w := snap.Weather
	if err := s.appendCSV(WeatherFile, weatherHeader, []string{
		w.Timestamp.UTC().Format(timeLayout), snap.PolygonID,
		ff(w.AirTempC), ff(w.FeelsLikeC), ff(w.TempMinC), ff(w.TempMaxC),
		ff(w.HumidityPct), ff(w.PressureHPa), ff(w.WindSpeedMS), ff(w.WindDeg), ff(w.CloudPct),
		w.Condition, w.Description,
	}); err != nil {
		return err
	}

	soil := snap.Soil
	if err := s.appendCSV(SoilFile, soilHeader, []string{
		soil.Timestamp.UTC().Format(timeLayout), snap.PolygonID,
		fp(soil.SoilTempC), ff(soil.SoilMoisture), ff(soil.SoilMoisturePct),
	}); err != nil {
		return err
	}

	if v, ok := snap.Vegetation.Sorted().Latest(); ok {
		if err := s.appendCSV(NDVIFile, ndviHeader, []string{
			v.Date.UTC().Format(time.DateOnly), snap.PolygonID,
			ff(v.Mean), ff(v.Min), ff(v.Max), ff(v.Std), fp(v.WaterIndex), ff(v.CloudCoverPct),
		}); err != nil {
			return err
		}
	}

	return s.appendRecord(a)
}

// Records returns every assessment in the JSON history.
func (s *Store) Records() ([]domain.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readRecords()
}

// SaveReport writes a rendered report next to the history files and returns
// its path.
func (s *Store) SaveReport(a domain.Assessment) (string, error) {
	name := fmt.Sprintf("report_%s_%s%s", a.Analysis.PolygonID, a.Analysis.AnalyzedAt.UTC().Format("20060102_150405"), reportSuffix)
	path := filepath.Join(s.dir, name)
	if err := writeFileAtomic(path, []byte(a.Report)); err != nil {
		return "", err
	}
	return path, nil
}

// ExportJSON writes one assessment as an indented JSON document.
func ExportJSON(path string, a domain.Assessment) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode assessment: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	return writeFileAtomic(path, data)
}

func (s *Store) appendCSV(name string, header, row []string) error {
	path := filepath.Join(s.dir, name)
	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write %s header: %w", name, err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", name, err)
	}
	return nil
}

func (s *Store) appendRecord(a domain.Assessment) error {
	records, err := s.readRecords()
	if err != nil {
		return err
	}
	records = append(records, a)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, RecordsFile), data)
}

func (s *Store) readRecords() ([]domain.Assessment, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, RecordsFile))
	if errors.Is(err, os.ErrNotExist) {
		return []domain.Assessment{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var records []domain.Assessment
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", RecordsFile, err)
	}
	return records, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func ff(v float64) string {
	return strconv.FormatFloat(v, 'f', floatDigits, 64)
}

// fp formats an optional value, leaving the cell empty when absent.
func fp(v *float64) string {
	if v == nil {
		return ""
	}
	return ff(*v)
}
