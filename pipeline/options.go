package pipeline

import (
	"log/slog"
	"time"

	"github.com/sig-0/centavo/metrics"
	"github.com/sig-0/centavo/provider/currencies"
	"github.com/sig-0/centavo/storage/types"
)

type Option func(p *Pipeline)

// WithLogger specifies the logger for the pipeline
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithMetrics specifies the metrics sink for runs
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithTarget specifies the target currency. Defaults to MXN
func WithTarget(c types.Currency) Option {
	return func(p *Pipeline) {
		if c != "" {
			p.target = c
		}
	}
}

// WithResolver specifies the country to currency resolver
func WithResolver(r currencies.Resolver) Option {
	return func(p *Pipeline) {
		p.resolver = r
	}
}

// WithWriter specifies the artifact writer used by Run
func WithWriter(w ArtifactWriter) Option {
	return func(p *Pipeline) {
		p.writer = w
	}
}

// WithClock specifies the clock used to stamp runs
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithIDGenerator specifies the run ID generator. Defaults to xid
func WithIDGenerator(newID func() string) Option {
	return func(p *Pipeline) {
		p.newID = newID
	}
}
