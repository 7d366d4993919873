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

// Geoapify API endpoints.
const (
	GeoapifySearchURL  = "https://api.geoapify.com/v1/geocode/search"
	GeoapifyReverseURL = "https://api.geoapify.com/v1/geocode/reverse"
)

// GeoapifyProvider implements geocoding using the Geoapify API.
// Geoapify reports match confidence on a 0-1 scale under rank.confidence.
type GeoapifyProvider struct {
	client     HTTPClient   // HTTP client for making requests
	searchURL  string       // Endpoint for forward lookups
	reverseURL string       // Endpoint for reverse lookups
	apiKey     string       // API key with geocoding access
	log        *slog.Logger // Logger for logging operations
}

// Common errors for Geoapify provider.
var (
	ErrGeoapifyEmptyResponse = errors.New("geoapify API returned empty response")
	ErrGeoapifyEmptyAddress  = errors.New("geoapify provider got empty address")
	ErrGeoapifyUnauthorized  = errors.New("geoapify API unauthorized (invalid API key)")
)

// Geoapify API response in format=json mode (simplified).
type geoapifyResponse struct {
	Results []struct {
		HouseNumber string  `json:"housenumber"`
		Street      string  `json:"street"`
		Suburb      string  `json:"suburb"`
		City        string  `json:"city"`
		State       string  `json:"state"`
		Postcode    string  `json:"postcode"`
		Country     string  `json:"country"`
		CountryCode string  `json:"country_code"`
		Lat         float64 `json:"lat"`
		Lon         float64 `json:"lon"`
		Formatted   string  `json:"formatted"`
		Rank        struct {
			Confidence float64 `json:"confidence"`
		} `json:"rank"`
	} `json:"results"`
}

// NewGeoapifyProvider creates a new Geoapify geocoding adapter.
func NewGeoapifyProvider(apiKey string, log *slog.Logger) *GeoapifyProvider {
	const timeout = 10

	return &GeoapifyProvider{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		searchURL:  GeoapifySearchURL,
		reverseURL: GeoapifyReverseURL,
		apiKey:     apiKey,
		log:        log,
	}
}

// NewGeoapifyProviderWithClient allows injecting a custom HTTP client.
func NewGeoapifyProviderWithClient(client HTTPClient, apiKey string, log *slog.Logger) *GeoapifyProvider {
	return &GeoapifyProvider{
		client:     client,
		searchURL:  GeoapifySearchURL,
		reverseURL: GeoapifyReverseURL,
		apiKey:     apiKey,
		log:        log,
	}
}

// Name returns the stable provider identifier.
func (gp *GeoapifyProvider) Name() string { return ProviderGeoapify }

// Reverse resolves coordinates to an address.
func (gp *GeoapifyProvider) Reverse(ctx context.Context, lat, lng float64) (*models.RawGeoResult, error) {
	gp.log.DebugContext(ctx, "Reverse geocoding using Geoapify", "lat", lat, "lng", lng)

	reqURL, err := url.Parse(gp.reverseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	query.Set("format", "json")
	query.Set("apiKey", gp.apiKey)
	reqURL.RawQuery = query.Encode()

	return gp.execute(ctx, reqURL)
}

// Forward resolves a free-text address to coordinates.
func (gp *GeoapifyProvider) Forward(ctx context.Context, address string) (*models.RawGeoResult, error) {
	gp.log.DebugContext(ctx, "Forward geocoding using Geoapify", "address", address)

	if strings.TrimSpace(address) == "" {
		return nil, ErrGeoapifyEmptyAddress
	}

	reqURL, err := url.Parse(gp.searchURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("text", address)
	query.Set("format", "json")
	query.Set("limit", "1")
	query.Set("apiKey", gp.apiKey)
	reqURL.RawQuery = query.Encode()

	return gp.execute(ctx, reqURL)
}

func (gp *GeoapifyProvider) execute(ctx context.Context, reqURL *url.URL) (*models.RawGeoResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := gp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrGeoapifyUnauthorized
	default:
		body, _ := io.ReadAll(resp.Body)
		gp.log.ErrorContext(ctx, "Geoapify API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("geoapify API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	gp.log.DebugContext(ctx, "Geoapify raw response", "body", string(body))

	var result geoapifyResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode geoapify response: %w", err)
	}

	if len(result.Results) == 0 {
		return nil, ErrGeoapifyEmptyResponse
	}

	top := result.Results[0]
	return &models.RawGeoResult{
		Provider:      ProviderGeoapify,
		Formatted:     top.Formatted,
		HouseNumber:   top.HouseNumber,
		Road:          top.Street,
		Suburb:        top.Suburb,
		City:          top.City,
		State:         top.State,
		Postcode:      top.Postcode,
		Country:       top.Country,
		CountryCode:   strings.ToLower(top.CountryCode),
		RawConfidence: top.Rank.Confidence,
		Latitude:      top.Lat,
		Longitude:     top.Lon,
		HasCoords:     top.Lat != 0 || top.Lon != 0,
	}, nil
}
