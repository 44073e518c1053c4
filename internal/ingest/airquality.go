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

// airQualityTelemetryPathFmt is the per-device telemetry endpoint.
const airQualityTelemetryPathFmt = "/v1/devices/%s/telemetry"

// AirQualityClientConfig holds the configuration for the air-quality vendor
// client.
type AirQualityClientConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret types.SecretString
	Devices      []types.Entity
	Logger       *slog.Logger
}

// AirQualityClient implements VendorClient for the multi-device air-quality
// telemetry API. The vendor requires an OAuth2 client-credentials token,
// acquired once per run by Authenticate and shared read-only across all
// concurrent fetch tasks.
//
// The token field is written only by Authenticate, which the scheduler calls
// before any FetchDay task is submitted; no lock is needed because the
// happens-before edge is established by task submission.
type AirQualityClient struct {
	exec         *external.Executor
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret types.SecretString
	devices      []types.Entity
	logger       *slog.Logger

	token string
}

// NewAirQualityClient creates an AirQualityClient with the given executor and
// config.
func NewAirQualityClient(exec *external.Executor, cfg AirQualityClientConfig) *AirQualityClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AirQualityClient{
		exec:         exec,
		baseURL:      cfg.BaseURL,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		devices:      cfg.Devices,
		logger:       logger,
	}
}

// Name returns "air_quality".
func (c *AirQualityClient) Name() types.Vendor {
	return types.VendorAirQuality
}

// tokenResponse is the OAuth2 token endpoint payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Authenticate performs the OAuth2 client-credentials exchange and stores the
// bearer token for the rest of the run. Any failure here is fatal for the
// whole fetch: without a token no device data is retrievable.
func (c *AirQualityClient) Authenticate(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret.Unmask())

	headers := http.Header{}
	headers.Set("Content-Type", "application/x-www-form-urlencoded")
	headers.Set("Accept", "application/json")

	resp, err := c.exec.Execute(ctx, external.Request{
		Method:  http.MethodPost,
		URL:     c.tokenURL,
		Headers: headers,
		Body:    []byte(form.Encode()),
	})
	if err != nil {
		return types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"air-quality token request failed",
			err,
		)
	}
	if resp == nil {
		return types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"air-quality token endpoint returned no content",
			nil,
		)
	}

	var token tokenResponse
	if err := json.Unmarshal(resp.Body, &token); err != nil {
		return types.NewAppError(
			types.ErrCodeAuthTokenInvalid,
			"air-quality token response is not valid JSON",
			err,
		)
	}
	if token.AccessToken == "" {
		return types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"air-quality token endpoint returned empty access token",
			nil,
		)
	}

	c.token = token.AccessToken
	c.logger.InfoContext(ctx, "air-quality client authenticated",
		"token_type", token.TokenType,
		"expires_in_s", token.ExpiresIn,
	)
	return nil
}

// ListEntities returns the static configured device list.
func (c *AirQualityClient) ListEntities() []types.Entity {
	return c.devices
}

// FetchDay performs a single bearer-authenticated GET against the telemetry
// endpoint for [day 00:00Z, day+1 00:00Z) and applies the measurement-list
// flattening rule to every element.
//
// A 401 mid-run fails this task only; the token is never refreshed
// concurrently, so the error surfaces as a permanent per-task failure rather
// than triggering ad hoc re-authentication.
func (c *AirQualityClient) FetchDay(ctx context.Context, entityID string, day time.Time) ([]types.RawObservation, error) {
	if c.token == "" {
		return nil, types.NewAppError(
			types.ErrCodeAuthTokenMissing,
			"FetchDay called before Authenticate",
			nil,
		)
	}

	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	params := url.Values{}
	params.Set("start", dayStart.Format(time.RFC3339))
	params.Set("end", dayEnd.Format(time.RFC3339))

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+c.token)
	headers.Set("Accept", "application/json")

	resp, err := c.exec.Execute(ctx, external.Request{
		Method:  http.MethodGet,
		URL:     c.baseURL + fmt.Sprintf(airQualityTelemetryPathFmt, url.PathEscape(entityID)),
		Params:  params,
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	var elements []airQualityElement
	if err := json.Unmarshal(resp.Body, &elements); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamBadPayload,
			fmt.Sprintf("telemetry response for device %s is not valid JSON", entityID),
			err,
		)
	}

	rows := make([]types.RawObservation, 0, len(elements))
	skipped := 0
	for _, el := range elements {
		flat := flattenAirQualityElement(entityID, el)
		if flat == nil {
			skipped++
			continue
		}
		rows = append(rows, *flat)
	}

	if skipped > 0 {
		c.logger.DebugContext(ctx, "skipped telemetry elements with zero usable fields",
			"device_id", entityID,
			"day", dayStart.Format(time.DateOnly),
			"skipped", skipped,
		)
	}

	return rows, nil
}

// Compile-time assertion that AirQualityClient satisfies VendorClient.
var _ VendorClient = (*AirQualityClient)(nil)
