package fixer

import (
	"log/slog"
	"time"

	"github.com/sig-0/centavo/storage/types"
)

type Option func(p *Provider)

// WithLogger specifies the logger for the provider
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// WithAnchor specifies the base currency assumed when the response omits it
func WithAnchor(c types.Currency) Option {
	return func(p *Provider) {
		p.anchor = c
	}
}

// WithClock specifies the clock used to stamp fetched tables
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}
