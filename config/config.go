// Package config holds the TOML configuration shared by every command
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/sig-0/centavo/provider/currencies"
)

const (
	DefaultListenAddress = "0.0.0.0:8545"
	DefaultOutputRoot    = "out"
	DefaultTop           = 10
	MaxTop               = 250

	DefaultPopulationURL    = "https://api.worldbank.org/v2"
	DefaultIndicator        = "SP.POP.TOTL"
	DefaultPerPage          = 20000
	DefaultCountriesPerPage = 400
	DefaultAggregateRegion  = "NA"

	DefaultFXURL          = "https://data.fixer.io/api/latest"
	DefaultTargetCurrency = "MXN"

	DefaultTimeoutSeconds       = 30
	DefaultInitialBackoffMillis = 1000
	DefaultMaxAttempts          = 5
)

var (
	ErrInvalidListenAddress = errors.New("invalid listen address")
	ErrInvalidURL           = errors.New("invalid url")
	ErrInvalidCurrency      = errors.New("invalid target currency")
	ErrInvalidPageSize      = errors.New("invalid page size")
	ErrInvalidHTTPConfig    = errors.New("invalid http config")
	ErrInvalidTop           = errors.New("invalid default top")
	ErrInvalidOutputRoot    = errors.New("invalid output root")
)

var listenAddressRegex = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}:\d+$`)

// Config is the full centavo configuration
type Config struct {
	Population PopulationConfig `toml:"population"`
	FX         FXConfig         `toml:"fx"`
	HTTP       HTTPConfig       `toml:"http"`
	Output     OutputConfig     `toml:"output"`
	Server     ServerConfig     `toml:"server"`
}

// PopulationConfig configures the World Bank source
type PopulationConfig struct {
	BaseURL          string `toml:"base_url"`
	Indicator        string `toml:"indicator"`
	AggregateRegion  string `toml:"aggregate_region"`
	PerPage          int    `toml:"per_page"`
	CountriesPerPage int    `toml:"countries_per_page"`
}

// FXConfig configures the Fixer source.
// The access key is never read from file, only from the environment
type FXConfig struct {
	URL            string `toml:"url"`
	TargetCurrency string `toml:"target_currency"`
}

// HTTPConfig configures the fetch client
type HTTPConfig struct {
	TimeoutSeconds       int `toml:"timeout_seconds"`
	InitialBackoffMillis int `toml:"initial_backoff_ms"`
	MaxAttempts          int `toml:"max_attempts"`
}

// Timeout returns the per-attempt timeout
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// InitialBackoff returns the wait before the first retry
func (c HTTPConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMillis) * time.Millisecond
}

// OutputConfig configures where run artifacts are written
type OutputConfig struct {
	Root string `toml:"root"`
}

// ServerConfig defines the base-level server configuration
type ServerConfig struct {
	// The associated CORS config, if any
	CORSConfig *CORS `toml:"cors_config"`

	// The address at which the server will be served.
	// Format should be: <IP>:<PORT>
	ListenAddress string `toml:"listen_address"`

	// The number of countries in a dashboard run, when not specified
	DefaultTop int `toml:"default_top"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Population: PopulationConfig{
			BaseURL:          DefaultPopulationURL,
			Indicator:        DefaultIndicator,
			AggregateRegion:  DefaultAggregateRegion,
			PerPage:          DefaultPerPage,
			CountriesPerPage: DefaultCountriesPerPage,
		},
		FX: FXConfig{
			URL:            DefaultFXURL,
			TargetCurrency: DefaultTargetCurrency,
		},
		HTTP: HTTPConfig{
			TimeoutSeconds:       DefaultTimeoutSeconds,
			InitialBackoffMillis: DefaultInitialBackoffMillis,
			MaxAttempts:          DefaultMaxAttempts,
		},
		Output: OutputConfig{
			Root: DefaultOutputRoot,
		},
		Server: ServerConfig{
			ListenAddress: DefaultListenAddress,
			DefaultTop:    DefaultTop,
			CORSConfig:    DefaultCORSConfig(),
		},
	}
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	if err := ValidateServerConfig(&config.Server); err != nil {
		return err
	}

	for _, raw := range []string{config.Population.BaseURL, config.FX.URL} {
		if err := validateURL(raw); err != nil {
			return err
		}
	}

	if !currencies.IsISO(config.FX.TargetCurrency) {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, config.FX.TargetCurrency)
	}

	if config.Population.PerPage <= 0 || config.Population.CountriesPerPage <= 0 {
		return ErrInvalidPageSize
	}

	if config.HTTP.TimeoutSeconds <= 0 ||
		config.HTTP.InitialBackoffMillis <= 0 ||
		config.HTTP.MaxAttempts <= 0 {
		return ErrInvalidHTTPConfig
	}

	if config.Output.Root == "" {
		return ErrInvalidOutputRoot
	}

	return nil
}

// ValidateServerConfig validates the server section of the configuration
func ValidateServerConfig(config *ServerConfig) error {
	if !listenAddressRegex.MatchString(config.ListenAddress) {
		return ErrInvalidListenAddress
	}

	if config.DefaultTop < 1 || config.DefaultTop > MaxTop {
		return fmt.Errorf("%w: %d, expected 1..%d", ErrInvalidTop, config.DefaultTop, MaxTop)
	}

	return nil
}

// Read reads the configuration from the given path.
// Fields missing from the file keep their default values
func Read(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg, DefaultConfig())

	return &cfg, nil
}

// applyDefaults fills every zero field from the defaults
func applyDefaults(cfg, defaults *Config) {
	setString(&cfg.Population.BaseURL, defaults.Population.BaseURL)
	setString(&cfg.Population.Indicator, defaults.Population.Indicator)
	setString(&cfg.Population.AggregateRegion, defaults.Population.AggregateRegion)
	setInt(&cfg.Population.PerPage, defaults.Population.PerPage)
	setInt(&cfg.Population.CountriesPerPage, defaults.Population.CountriesPerPage)

	setString(&cfg.FX.URL, defaults.FX.URL)
	setString(&cfg.FX.TargetCurrency, defaults.FX.TargetCurrency)

	setInt(&cfg.HTTP.TimeoutSeconds, defaults.HTTP.TimeoutSeconds)
	setInt(&cfg.HTTP.InitialBackoffMillis, defaults.HTTP.InitialBackoffMillis)
	setInt(&cfg.HTTP.MaxAttempts, defaults.HTTP.MaxAttempts)

	setString(&cfg.Output.Root, defaults.Output.Root)

	setString(&cfg.Server.ListenAddress, defaults.Server.ListenAddress)
	setInt(&cfg.Server.DefaultTop, defaults.Server.DefaultTop)

	if cfg.Server.CORSConfig == nil {
		cfg.Server.CORSConfig = defaults.Server.CORSConfig
	}
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}

	return nil
}

func setString(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

func setInt(field *int, value int) {
	if *field == 0 {
		*field = value
	}
}
