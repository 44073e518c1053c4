package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"envistream/internal/external"
	"envistream/internal/types"
)

// weatherHistoryPath is the per-station per-day history endpoint.
const weatherHistoryPath = "/v2/pws/history/all"

// weatherDateFormat is the vendor's day-granularity date parameter format.
const weatherDateFormat = "20060102"

// WeatherClientConfig holds the configuration for the weather vendor client.
type WeatherClientConfig struct {
	BaseURL  string
	APIKey   types.SecretString
	Units    string // unit system query parameter; defaults to "m" (metric)
	Stations []types.Entity
	Logger   *slog.Logger
}

// WeatherClient implements VendorClient for the multi-station weather history
// API. The vendor authenticates via an API key query parameter, so
// Authenticate is a no-op. Every observation element carries a nested
// "metric" sub-object that is merged up into the flat record.
type WeatherClient struct {
	exec     *external.Executor
	baseURL  string
	apiKey   types.SecretString
	units    string
	stations []types.Entity
	logger   *slog.Logger
}

// NewWeatherClient creates a WeatherClient with the given executor and config.
func NewWeatherClient(exec *external.Executor, cfg WeatherClientConfig) *WeatherClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	units := cfg.Units
	if units == "" {
		units = "m"
	}
	return &WeatherClient{
		exec:     exec,
		baseURL:  cfg.BaseURL,
		apiKey:   cfg.APIKey,
		units:    units,
		stations: cfg.Stations,
		logger:   logger,
	}
}

// Name returns "weather".
func (c *WeatherClient) Name() types.Vendor {
	return types.VendorWeather
}

// Authenticate is a no-op: the weather vendor authenticates per request via
// the apiKey query parameter.
func (c *WeatherClient) Authenticate(ctx context.Context) error {
	return nil
}

// ListEntities returns the static configured station list.
func (c *WeatherClient) ListEntities() []types.Entity {
	return c.stations
}

// FetchDay performs a single GET against the per-station per-day history
// endpoint and flattens every observation element via the nested-metric rule.
//
// The API sometimes returns a slightly wider window than requested, so rows
// whose observation timestamp falls outside [day 00:00, day+1 00:00) UTC are
// filtered out. A station with zero valid rows is not an error; stations go
// offline routinely.
func (c *WeatherClient) FetchDay(ctx context.Context, entityID string, day time.Time) ([]types.RawObservation, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	params := url.Values{}
	params.Set("stationId", entityID)
	params.Set("date", dayStart.Format(weatherDateFormat))
	params.Set("format", "json")
	params.Set("units", c.units)
	params.Set("apiKey", c.apiKey.Unmask())

	resp, err := c.exec.Execute(ctx, external.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + weatherHistoryPath,
		Params: params,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		// No data for this station-day; contributes zero rows.
		return nil, nil
	}

	var payload weatherAPIResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamBadPayload,
			fmt.Sprintf("weather history response for station %s is not valid JSON", entityID),
			err,
		)
	}

	rows := make([]types.RawObservation, 0, len(payload.Observations))
	skipped := 0
	for _, obs := range payload.Observations {
		flat := flattenWeatherObservation(entityID, obs)
		if flat == nil {
			skipped++
			continue
		}
		if flat.Timestamp.Before(dayStart) || !flat.Timestamp.Before(dayEnd) {
			skipped++
			continue
		}
		rows = append(rows, *flat)
	}

	if skipped > 0 {
		c.logger.DebugContext(ctx, "skipped weather observations outside window or malformed",
			"station_id", entityID,
			"day", dayStart.Format(time.DateOnly),
			"skipped", skipped,
		)
	}

	return rows, nil
}

// Compile-time assertion that WeatherClient satisfies VendorClient.
var _ VendorClient = (*WeatherClient)(nil)
