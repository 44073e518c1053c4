// Package config defines the configuration structure for the ingestion
// pipeline. Configuration is loaded once at process initialization and is
// immutable thereafter, following 12-Factor principles: values are resolved
// from the OS environment with an optional dotenv file underneath.
//
// Any missing required value or invalid format fails the process immediately
// on startup. Entity lists and API credentials are opaque read-only inputs;
// the ingestion core never mutates them.
package config

import (
	"time"

	"envistream/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used for credentials to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the ingestion pipeline.
// It is populated once during process initialization and never modified.
// Components receive only the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Fetch      FetchConfig
	Weather    WeatherConfig
	AirQuality AirQualityConfig
	Metrics    MetricsConfig
}

// FetchConfig holds scheduler and HTTP resilience tuning parameters.
type FetchConfig struct {
	// Concurrency bounds simultaneously in-flight requests per vendor.
	// Kept small to respect third-party rate limits.
	Concurrency   int           `envconfig:"FETCH_CONCURRENCY" default:"5" validate:"min=1,max=10"`
	CallTimeout   time.Duration `envconfig:"FETCH_CALL_TIMEOUT" default:"60s"`
	MaxAttempts   int           `envconfig:"FETCH_MAX_ATTEMPTS" default:"3" validate:"min=1"`
	BackoffFactor float64       `envconfig:"FETCH_BACKOFF_FACTOR" default:"2" validate:"min=1"`
	MaxBackoff    time.Duration `envconfig:"FETCH_MAX_BACKOFF" default:"30s"`
	UserAgent     string        `envconfig:"FETCH_USER_AGENT" default:"Envistream/1.0"`
}

// WeatherConfig holds the weather vendor endpoint, credentials, and station
// list.
type WeatherConfig struct {
	BaseURL string       `envconfig:"WEATHER_BASE_URL" validate:"required,url"`
	APIKey  SecretString `envconfig:"WEATHER_API_KEY" validate:"required"`
	Units   string       `envconfig:"WEATHER_UNITS" default:"m" validate:"oneof=m e h"`
	// StationsJSON is a JSON array of entities:
	// [{"id":"KMAB1","name":"Rooftop north","lat":42.36,"lon":-71.06}]
	StationsJSON string `envconfig:"WEATHER_STATIONS_JSON" validate:"required,json"`

	// Stations is parsed from StationsJSON during Load.
	Stations []types.Entity `envconfig:"-" validate:"min=1,dive"`
}

// AirQualityConfig holds the air-quality vendor endpoints, OAuth2 client
// credentials, and device list.
type AirQualityConfig struct {
	BaseURL      string       `envconfig:"AIRQUALITY_BASE_URL" validate:"required,url"`
	TokenURL     string       `envconfig:"AIRQUALITY_TOKEN_URL" validate:"required,url"`
	ClientID     string       `envconfig:"AIRQUALITY_CLIENT_ID" validate:"required"`
	ClientSecret SecretString `envconfig:"AIRQUALITY_CLIENT_SECRET" validate:"required"`
	// DevicesJSON is a JSON array of entities: [{"id":"aq-0012","name":"Lobby"}]
	DevicesJSON string `envconfig:"AIRQUALITY_DEVICES_JSON" validate:"required,json"`

	// Devices is parsed from DevicesJSON during Load.
	Devices []types.Entity `envconfig:"-" validate:"min=1,dive"`
}

// MetricsConfig holds CloudWatch publishing settings.
type MetricsConfig struct {
	Enabled bool   `envconfig:"METRICS_ENABLED" default:"false"`
	Region  string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
)
