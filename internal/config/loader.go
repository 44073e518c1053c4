// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Enforce UTC timezone to prevent drift bugs in day-window arithmetic.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Parse the entity list JSON values into typed slices.
//  5. Validate the struct using go-playground/validator.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"envistream/internal/types"
)

// ConfigError is a diagnostic error type returned by Load to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Load reads configuration from the environment (with an optional .env file
// underneath), parses the entity lists, and validates the result. It is the
// single entry point for process configuration; a non-nil error means the
// process must not start.
func Load() (*Config, error) {
	time.Local = time.UTC

	// Dotenv is a local-development convenience; absence is not an error.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment variables",
			Err:     err,
		}
	}

	stations, err := parseEntities(cfg.Weather.StationsJSON, types.VendorWeather)
	if err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to parse WEATHER_STATIONS_JSON",
			Err:     err,
		}
	}
	cfg.Weather.Stations = stations

	devices, err := parseEntities(cfg.AirQuality.DevicesJSON, types.VendorAirQuality)
	if err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to parse AIRQUALITY_DEVICES_JSON",
			Err:     err,
		}
	}
	cfg.AirQuality.Devices = devices

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration failed validation",
			Err:     err,
		}
	}

	return &cfg, nil
}

// parseEntities decodes a JSON entity list and stamps each entity with its
// vendor tag so downstream logs and metrics can attribute rows.
func parseEntities(raw string, vendor types.Vendor) ([]types.Entity, error) {
	var entities []types.Entity
	if err := json.Unmarshal([]byte(raw), &entities); err != nil {
		return nil, err
	}
	for i := range entities {
		entities[i].Vendor = vendor
	}
	return entities, nil
}
