package pipeline

import (
	"context"
	"time"

	"github.com/couchcryptid/agro-monitor/internal/domain"
	"github.com/couchcryptid/agro-monitor/internal/report"
)

// Analyzer implements Transformer with the domain models and the text report.
type Analyzer struct {
	location    *time.Location
	reportTitle string
}

// NewAnalyzer creates an Analyzer that groups forecast days and stamps
// reports in loc. A nil loc means UTC.
func NewAnalyzer(loc *time.Location, reportTitle string) *Analyzer {
	if loc == nil {
		loc = time.UTC
	}
	return &Analyzer{location: loc, reportTitle: reportTitle}
}

func (t *Analyzer) Transform(_ context.Context, s domain.Snapshot) (domain.Assessment, error) {
	a := domain.Analyze(s, domain.AnalyzeOptions{Location: t.location})
	text := report.Render(s, a, report.Options{Title: t.reportTitle, Location: t.location})
	return domain.Assessment{Snapshot: s, Analysis: a, Report: text}, nil
}
