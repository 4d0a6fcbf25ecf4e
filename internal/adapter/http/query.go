package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
	maxHistoryDays      = 365
)

type historyQuery struct {
	days  int
	limit int
}

func (q historyQuery) since(c clockwork.Clock) time.Time {
	return c.Now().Add(-time.Duration(q.days) * 24 * time.Hour)
}

func parseHistoryQuery(r *http.Request, defaultDays int) (historyQuery, error) {
	days, err := parseIntParam(r, "days", defaultDays, 1, maxHistoryDays)
	if err != nil {
		return historyQuery{}, err
	}
	limit, err := parseIntParam(r, "limit", defaultHistoryLimit, 1, maxHistoryLimit)
	if err != nil {
		return historyQuery{}, err
	}
	return historyQuery{days: days, limit: limit}, nil
}

// parseIntParam reads an optional integer query parameter bounded to [lo, hi].
func parseIntParam(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return n, nil
}
