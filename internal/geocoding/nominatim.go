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
	"time"

	"github.com/UnknownOlympus/meridian/internal/models"
	"golang.org/x/time/rate"
)

// Nominatim API endpoints.
const (
	NominatimSearchURL  = "https://nominatim.openstreetmap.org/search"
	NominatimReverseURL = "https://nominatim.openstreetmap.org/reverse"
)

// NominatimProvider implements the Adapter interface using OpenStreetMap's
// Nominatim API. This is a free geocoding service with usage limits
// (1 request/second for fair use), enforced here with a client-side limiter.
type NominatimProvider struct {
	client     HTTPClient    // HTTP client for making requests
	searchURL  string        // Endpoint for forward lookups
	reverseURL string        // Endpoint for reverse lookups
	log        *slog.Logger  // Logger for logging operations
	limiter    *rate.Limiter // Fair-use rate limiter
	// userAgent is required by Nominatim usage policy
	userAgent string
}

// nominatimAddress is the detailed address breakdown returned when
// addressdetails=1 is requested.
type nominatimAddress struct {
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
}

// nominatimResponse represents a single result object from the Nominatim API.
type nominatimResponse struct {
	Lat         string           `json:"lat"` // Latitude as string
	Lon         string           `json:"lon"` // Longitude as string
	DisplayName string           `json:"display_name"`
	Importance  float64          `json:"importance"`
	Address     nominatimAddress `json:"address"`
}

// Common errors for Nominatim provider.
var (
	ErrNominatimEmptyResponse = errors.New("nominatim API returned empty response")
	ErrNominatimInvalidCoords = errors.New("nominatim API returned invalid coordinates")
)

// NewNominatimProvider creates a new Nominatim geocoding adapter.
// Uses the public Nominatim API endpoints by default.
func NewNominatimProvider(rateLimit int, log *slog.Logger) *NominatimProvider {
	const timeout = 10
	if rateLimit <= 0 {
		rateLimit = 1
	}
	return &NominatimProvider{
		client: &http.Client{
			Timeout: timeout * time.Second,
		},
		searchURL:  NominatimSearchURL,
		reverseURL: NominatimReverseURL,
		log:        log,
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		// User-Agent MUST include valid contact info per Nominatim usage policy:
		// https://operations.osmfoundation.org/policies/nominatim/
		userAgent: "Meridian-Geocoding-Service/1.0 (https://github.com/UnknownOlympus/meridian)",
	}
}

// NewNominatimProviderWithClient creates a Nominatim adapter with a custom
// HTTP client and limiter. Useful for testing with mocked HTTP clients.
func NewNominatimProviderWithClient(client HTTPClient, limiter *rate.Limiter, log *slog.Logger) *NominatimProvider {
	return &NominatimProvider{
		client:     client,
		searchURL:  NominatimSearchURL,
		reverseURL: NominatimReverseURL,
		log:        log,
		limiter:    limiter,
		userAgent:  "Meridian-Geocoding-Service/1.0 (https://github.com/UnknownOlympus/meridian)",
	}
}

// Name returns the stable provider identifier.
func (np *NominatimProvider) Name() string { return ProviderNominatim }

// Reverse resolves a coordinate pair to an address using the Nominatim
// reverse endpoint with full address details.
func (np *NominatimProvider) Reverse(ctx context.Context, lat, lng float64) (*models.RawGeoResult, error) {
	np.log.DebugContext(ctx, "Reverse geocoding using Nominatim", "lat", lat, "lng", lng)

	reqURL, err := url.Parse(np.reverseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	query.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	query.Set("format", "json")
	query.Set("addressdetails", "1") // Include detailed address breakdown
	reqURL.RawQuery = query.Encode()

	body, err := np.execute(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	// The reverse endpoint returns a single object, not an array.
	var result nominatimResponse
	if err = json.Unmarshal(body, &result); err != nil {
		np.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if result.DisplayName == "" {
		return nil, ErrNominatimEmptyResponse
	}

	return np.mapResult(&result)
}

// Forward resolves a free-text address to coordinates using the Nominatim
// search endpoint. Only the top-ranked result is used.
func (np *NominatimProvider) Forward(ctx context.Context, address string) (*models.RawGeoResult, error) {
	np.log.DebugContext(ctx, "Forward geocoding using Nominatim", "address", address)

	reqURL, err := url.Parse(np.searchURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}

	query := reqURL.Query()
	query.Set("q", address)
	query.Set("format", "json")
	query.Set("limit", "1") // Only need the top result
	query.Set("addressdetails", "1")
	reqURL.RawQuery = query.Encode()

	body, err := np.execute(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var results []nominatimResponse
	if err = json.Unmarshal(body, &results); err != nil {
		np.log.ErrorContext(ctx, "Failed to parse Nominatim response", "error", err, "body", string(body))
		return nil, fmt.Errorf("failed to decode nominatim response: %w", err)
	}

	if len(results) == 0 {
		return nil, ErrNominatimEmptyResponse
	}

	return np.mapResult(&results[0])
}

// execute performs a rate-limited GET against the given URL and returns the
// raw response body.
func (np *NominatimProvider) execute(ctx context.Context, reqURL *url.URL) ([]byte, error) {
	if err := np.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	np.log.DebugContext(ctx, "Nominatim request URL", "url", reqURL.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set required headers per Nominatim usage policy
	req.Header.Set("User-Agent", np.userAgent)

	resp, err := np.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute geocoding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		np.log.ErrorContext(ctx, "Nominatim API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("nominatim API returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	np.log.DebugContext(ctx, "Nominatim raw response", "body", string(body))

	return body, nil
}

// mapResult converts a Nominatim result object into the common shape.
func (np *NominatimProvider) mapResult(res *nominatimResponse) (*models.RawGeoResult, error) {
	out := &models.RawGeoResult{
		Provider:      ProviderNominatim,
		Formatted:     res.DisplayName,
		HouseNumber:   res.Address.HouseNumber,
		Road:          res.Address.Road,
		Neighbourhood: res.Address.Neighbourhood,
		Suburb:        res.Address.Suburb,
		City:          res.Address.City,
		Town:          res.Address.Town,
		Village:       res.Address.Village,
		State:         res.Address.State,
		Postcode:      res.Address.Postcode,
		Country:       res.Address.Country,
		CountryCode:   res.Address.CountryCode,
		Importance:    res.Importance,
	}

	if res.Lat != "" && res.Lon != "" {
		lat, err := strconv.ParseFloat(res.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid latitude: %s", ErrNominatimInvalidCoords, res.Lat)
		}
		lng, err := strconv.ParseFloat(res.Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid longitude: %s", ErrNominatimInvalidCoords, res.Lon)
		}
		out.Latitude = lat
		out.Longitude = lng
		out.HasCoords = true
	}

	return out, nil
}
