package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment override: DEMAND_SERVER_PORT -> server.port.
const EnvPrefix = "DEMAND_"

// PathEnvVar overrides the config file path when no -config flag is given.
const PathEnvVar = "DEMAND_CONFIG"

// Source kinds.
const (
	SourceFile     = "file"
	SourceGCS      = "gcs"
	SourceBigQuery = "bigquery"
)

// Config is the complete process configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Source   SourceConfig   `koanf:"source"`
	Forecast ForecastConfig `koanf:"forecast"`
	API      APIConfig      `koanf:"api"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// SourceConfig selects where the sales dataset is loaded from.
type SourceConfig struct {
	Kind     string         `koanf:"kind" validate:"oneof=file gcs bigquery"`
	Path     string         `koanf:"path" validate:"required_if=Kind file"`
	GCSURI   string         `koanf:"gcs_uri" validate:"required_if=Kind gcs"`
	BigQuery BigQueryConfig `koanf:"bigquery"`
}

type BigQueryConfig struct {
	Project string `koanf:"project"`
	Dataset string `koanf:"dataset"`
	Table   string `koanf:"table"`
}

// ForecastConfig tunes the forecasting model and its worker pool.
type ForecastConfig struct {
	ChangepointPriorScale float64       `koanf:"changepoint_prior_scale" validate:"gt=0"`
	SeasonalityPriorScale float64       `koanf:"seasonality_prior_scale" validate:"gt=0"`
	Samples               int           `koanf:"samples" validate:"min=100,max=100000"`
	Seed                  uint64        `koanf:"seed"`
	FitBudget             time.Duration `koanf:"fit_budget" validate:"gt=0"`
	Workers               int           `koanf:"workers" validate:"min=1,max=64"`
	QueueSize             int           `koanf:"queue_size" validate:"min=1"`
}

type APIConfig struct {
	TrendWindowDays   int           `koanf:"trend_window_days" validate:"min=1"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Source: SourceConfig{
			Kind: SourceFile,
			Path: "data/sales.xlsx",
		},
		Forecast: ForecastConfig{
			ChangepointPriorScale: 0.15,
			SeasonalityPriorScale: 0.1,
			Samples:               1000,
			Seed:                  42,
			FitBudget:             5 * time.Second,
			Workers:               4,
			QueueSize:             64,
		},
		API: APIConfig{
			TrendWindowDays:   60,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{"*"},
		},
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Load builds the configuration from defaults, an optional YAML file and
// DEMAND_* environment variables, in increasing priority. An empty path
// falls back to $DEMAND_CONFIG; no file at all is fine.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("Load: defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(PathEnvVar)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("Load: config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envToKey), nil); err != nil {
		return nil, fmt.Errorf("Load: environment: %w", err)
	}

	// Comma separated lists from the environment.
	if raw, ok := k.Get("api.cors_origins").(string); ok {
		if err := k.Set("api.cors_origins", splitList(raw)); err != nil {
			return nil, fmt.Errorf("Load: cors origins: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("Load: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field source requirements.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Source.Kind == SourceGCS && !strings.HasPrefix(c.Source.GCSURI, "gs://") {
		return fmt.Errorf("invalid configuration: source.gcs_uri %q is not a gs:// URI", c.Source.GCSURI)
	}
	if c.Source.Kind == SourceBigQuery {
		bq := c.Source.BigQuery
		if bq.Project == "" || bq.Dataset == "" || bq.Table == "" {
			return fmt.Errorf("invalid configuration: source.bigquery needs project, dataset and table")
		}
	}
	return nil
}

// envToKey maps DEMAND_FORECAST_FIT_BUDGET to forecast.fit_budget: the first
// segment after the prefix is the section, the rest is the field name.
// DEMAND_CONFIG is the file path, not a key, and is skipped.
func envToKey(s string) string {
	if s == PathEnvVar {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	if section == "source" && strings.HasPrefix(field, "bigquery_") {
		return "source.bigquery." + strings.TrimPrefix(field, "bigquery_")
	}
	return section + "." + field
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
