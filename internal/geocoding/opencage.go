package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/meridian/internal/models"
)

// OpenCageBaseURL -- OpenCage Geocoding API base URL.
const OpenCageBaseURL = "https://api.opencagedata.com/geocode/v1/json"

// OpenCageProvider implements geocoding using the OpenCage Data API.
// OpenCage reports its own match confidence on a 0-10 scale, which is
// carried through as RawConfidence for scoring.
type OpenCageProvider struct {
	client  HTTPClient   // HTTP client for making requests
	baseURL string       // Base URL for the OpenCage API
	apiKey  string       // API key with geocoding access
	log     *slog.Logger // Logger for logging operations
}

// Common errors for OpenCage provider.
var (
	ErrOpenCageEmptyResponse = errors.New("opencage API returned empty response")
	ErrOpenCageEmptyAddress  = errors.New("opencage provider got empty address")
	ErrOpenCageUnauthorized  = errors.New("opencage API unauthorized (invalid API key)")
)

// OpenCage API response (simplified for the geocoding use-case).
type openCageResponse struct {
	Results []struct {
		Confidence float64 `json:"confidence"`
		Formatted  string  `json:"formatted"`
		Components struct {
			HouseNumber   string `json:"house_number"`
			Road          string `json:"road"`
			Neighbourhood string `json:"neighbourhood"`
			Suburb        string `json:"suburb"`
			City          string `json:"city"`
			Town          string `json:"town"`
			Village       string `json:"village"`
			State         string `json:"state"`
			Postcode      string `json:"postcode"`
			Country       string `json:"country"`
			CountryCode   string `json:"country_code"`
		} `json:"components"`
		Geometry struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
}

// NewOpenCageProvider creates a new OpenCage geocoding adapter.
func NewOpenCageProvider(apiKey string, log *slog.Logger) *OpenCageProvider {
	const timeout = 10

	return &OpenCageProvider{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		baseURL: OpenCageBaseURL,
		apiKey:  apiKey,
		log:     log,
	}
}

// NewOpenCageProviderWithClient allows injecting a custom HTTP client.
func NewOpenCageProviderWithClient(client HTTPClient, apiKey string, log *slog.Logger) *OpenCageProvider {
	return &OpenCageProvider{
		client:  client,
		baseURL: OpenCageBaseURL,
		apiKey:  apiKey,
		log:     log,
	}
}

// Name returns the stable provider identifier.
func (op *OpenCageProvider) Name() string { return ProviderOpenCage }

// Reverse resolves coordinates to an address. OpenCage uses the same
// endpoint for both directions; reverse queries pass "lat,lng" as the query.
func (op *OpenCageProvider) Reverse(ctx context.Context, lat, lng float64) (*models.RawGeoResult, error) {
	op.log.DebugContext(ctx, "Reverse geocoding using OpenCage", "lat", lat, "lng", lng)

	q := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
	return op.geocode(ctx, q)
}

// Forward resolves a free-text address to coordinates.
func (op *OpenCageProvider) Forward(ctx context.Context, address string) (*models.RawGeoResult, error) {
	op.log.DebugContext(ctx, "Forward geocoding using OpenCage", "address", address)

	if strings.TrimSpace(address) == "" {
		return nil, ErrOpenCageEmptyAddress
	}
	return op.geocode(ctx, address)
}

func (op *OpenCageProvider) geocode(ctx context.Context, q string) (*models.RawGeoResult, error) {
	reqURL, err := url.Parse(op.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("q", q)
	query.Set("key", op.apiKey)
	query.Set("limit", "1")
	query.Set("no_annotations", "1")
	reqURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := op.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrOpenCageUnauthorized
	default:
		body, _ := io.ReadAll(resp.Body)
		op.log.ErrorContext(ctx, "OpenCage API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("opencage API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	op.log.DebugContext(ctx, "OpenCage raw response", "body", string(body))

	var result openCageResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode opencage response: %w", err)
	}

	if len(result.Results) == 0 {
		return nil, ErrOpenCageEmptyResponse
	}

	top := result.Results[0]
	return &models.RawGeoResult{
		Provider:      ProviderOpenCage,
		Formatted:     top.Formatted,
		HouseNumber:   top.Components.HouseNumber,
		Road:          top.Components.Road,
		Neighbourhood: top.Components.Neighbourhood,
		Suburb:        top.Components.Suburb,
		City:          top.Components.City,
		Town:          top.Components.Town,
		Village:       top.Components.Village,
		State:         top.Components.State,
		Postcode:      top.Components.Postcode,
		Country:       top.Components.Country,
		CountryCode:   strings.ToLower(top.Components.CountryCode),
		RawConfidence: top.Confidence,
		Latitude:      top.Geometry.Lat,
		Longitude:     top.Geometry.Lng,
		HasCoords:     top.Geometry.Lat != 0 || top.Geometry.Lng != 0,
	}, nil
}
