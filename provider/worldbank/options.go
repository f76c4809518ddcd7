package worldbank

import "log/slog"

type Option func(p *Provider)

// WithLogger specifies the logger for the provider
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = l
	}
}

// WithBaseURL specifies the API base URL, without a trailing slash
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = u
	}
}

// WithIndicator specifies the population indicator code
func WithIndicator(indicator string) Option {
	return func(p *Provider) {
		p.indicator = indicator
	}
}

// WithPerPage specifies the page size of the indicator call
func WithPerPage(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.perPage = n
		}
	}
}

// WithCountriesPerPage specifies the page size of the country registry call
func WithCountriesPerPage(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.countriesPerPage = n
		}
	}
}

// WithAggregateRegion specifies the region id that marks aggregates
func WithAggregateRegion(id string) Option {
	return func(p *Provider) {
		p.aggregateRegion = id
	}
}
