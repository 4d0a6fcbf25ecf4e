package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/agro-monitor/internal/domain"
	"github.com/couchcryptid/agro-monitor/internal/observability"
)

// Extractor collects one snapshot of the monitored polygon.
type Extractor interface {
	Extract(ctx context.Context) (domain.Snapshot, error)
}

// Transformer derives the assessment (analysis and report) from a snapshot.
type Transformer interface {
	Transform(ctx context.Context, s domain.Snapshot) (domain.Assessment, error)
}

// Loader persists or publishes an assessment. Name labels logs and metrics.
type Loader interface {
	Name() string
	Load(ctx context.Context, a domain.Assessment) error
}

// Pipeline runs collect, analyze and load as one unit of work, either on a
// schedule or on demand. Runs never overlap.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	loaders     []Loader
	logger      *slog.Logger
	metrics     *observability.Metrics
	clock       clockwork.Clock
	interval    time.Duration

	runMu sync.Mutex
	ready atomic.Bool
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock driving the scheduler.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithInterval sets the time between scheduled runs.
func WithInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.interval = d }
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, t Transformer, loaders []Loader, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		extractor:   e,
		transformer: t,
		loaders:     loaders,
		logger:      logger,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
		interval:    time.Hour,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CheckReadiness returns nil once a run has produced an assessment.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no assessment has been produced yet")
	}
	return nil
}

// Run executes a run immediately and then once per interval until the
// context is cancelled. A failed run is logged and the next tick proceeds as
// usual.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("scheduler started", "interval", p.interval.String(), "loaders", p.loaderNames())
	p.metrics.SchedulerRunning.Set(1)
	defer p.metrics.SchedulerRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("run failed", "error", err)
		}

		select {
		case <-ctx.Done():
			p.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}

// Assess collects and analyzes without loading anything.
func (p *Pipeline) Assess(ctx context.Context) (domain.Assessment, error) {
	snap, err := p.extractor.Extract(ctx)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("extract: %w", err)
	}
	a, err := p.transformer.Transform(ctx, snap)
	if err != nil {
		return domain.Assessment{}, fmt.Errorf("transform: %w", err)
	}
	return a, nil
}

// RunOnce performs one collect-analyze-load cycle. Every loader is attempted
// even when an earlier one fails; load failures are joined into the returned
// error alongside the assessment.
func (p *Pipeline) RunOnce(ctx context.Context) (domain.Assessment, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)
	start := p.clock.Now()

	a, err := p.Assess(ctx)
	if err != nil {
		p.metrics.RunsTotal.WithLabelValues("error").Inc()
		return domain.Assessment{}, err
	}
	p.ready.Store(true)
	p.recordAnalysis(a.Analysis)

	var loadErrs []error
	for _, l := range p.loaders {
		if err := l.Load(ctx, a); err != nil {
			logger.Error("load failed", "loader", l.Name(), "error", err)
			p.metrics.SinkWrites.WithLabelValues(l.Name(), "error").Inc()
			loadErrs = append(loadErrs, fmt.Errorf("%s: %w", l.Name(), err))
			continue
		}
		p.metrics.SinkWrites.WithLabelValues(l.Name(), "success").Inc()
	}

	outcome := "success"
	if len(loadErrs) > 0 {
		outcome = "partial"
	}
	p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
	p.metrics.RunDuration.Observe(p.clock.Since(start).Seconds())

	logger.Info("run complete",
		"analysis_id", a.Analysis.ID,
		"polygon_id", a.Analysis.PolygonID,
		"urgency", a.Analysis.Irrigation.Urgency,
		"score", a.Analysis.Irrigation.Score,
		"trend", a.Analysis.Trend.Trend,
		"stress_findings", len(a.Analysis.Stress),
		"load_failures", len(loadErrs),
	)
	return a, errors.Join(loadErrs...)
}

func (p *Pipeline) recordAnalysis(a domain.Analysis) {
	p.metrics.IrrigationScore.Set(float64(a.Irrigation.Score))
	p.metrics.SoilMoisture.Set(a.Irrigation.MoisturePct)
	if a.Trend.Defined() {
		p.metrics.VegetationIndex.Set(a.Trend.CurrentIndex)
	}
	counts := map[domain.Severity]int{
		domain.SeverityLow:      0,
		domain.SeverityModerate: 0,
		domain.SeverityHigh:     0,
		domain.SeverityCritical: 0,
	}
	for _, f := range a.Stress {
		counts[f.Severity]++
	}
	for sev, n := range counts {
		p.metrics.StressFindings.WithLabelValues(string(sev)).Set(float64(n))
	}
}

func (p *Pipeline) loaderNames() []string {
	names := make([]string, len(p.loaders))
	for i, l := range p.loaders {
		names[i] = l.Name()
	}
	return names
}
