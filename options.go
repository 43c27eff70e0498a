package mapper

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Mapper.
type Option interface {
	apply(*Mapper)
}

type optionFunc func(*Mapper)

func (f optionFunc) apply(m *Mapper) { f(m) }

// WithLogger sets the logger used by the mapper and its components.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(m *Mapper) {
		if l != nil {
			m.logger = l
		}
	})
}

// WithJournal records every bulk run in j.
func WithJournal(j Journal) Option {
	return optionFunc(func(m *Mapper) {
		m.journal = j
	})
}

// WithHTTPClient sets the HTTP client used for remote queries.
func WithHTTPClient(hc *http.Client) Option {
	return optionFunc(func(m *Mapper) {
		m.httpClient = hc
	})
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(m *Mapper) {
		if now != nil {
			m.now = now
		}
	})
}
