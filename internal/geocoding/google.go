package geocoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/UnknownOlympus/meridian/internal/models"
	"googlemaps.github.io/maps"
)

// GoogleProvider is a struct that holds the client for Google Maps API
// and a logger for logging purposes. It is used to interact with the
// Google Maps geocoding services in both directions.
type GoogleProvider struct {
	client GoogleAPIClient // client is the Google Maps API client
	log    *slog.Logger    // log is the logger for logging operations
}

type GoogleAPIClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	ReverseGeocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// ErrGoogleEmptyResponse is returned when the Google Maps API responds with an empty result.
var ErrGoogleEmptyResponse = errors.New("get empty response from Google Maps API")

// NewGoogleProvider initializes a new GoogleProvider with the given API client and logger.
func NewGoogleProvider(client GoogleAPIClient, log *slog.Logger) *GoogleProvider {
	return &GoogleProvider{client: client, log: log}
}

// Name returns the stable provider identifier.
func (gp *GoogleProvider) Name() string { return ProviderGoogle }

// Reverse resolves a coordinate pair to an address using the Google Maps
// Geocoding API and maps the address components into the common shape.
func (gp *GoogleProvider) Reverse(ctx context.Context, lat, lng float64) (*models.RawGeoResult, error) {
	gp.log.DebugContext(ctx, "Reverse geocoding using Google Maps", "lat", lat, "lng", lng)

	req := maps.GeocodingRequest{LatLng: &maps.LatLng{Lat: lat, Lng: lng}}
	geocodeResponse, err := gp.client.ReverseGeocode(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to reverse geocode coordinates: %w", err)
	}

	if len(geocodeResponse) == 0 {
		return nil, ErrGoogleEmptyResponse
	}

	return gp.mapResult(&geocodeResponse[0]), nil
}

// Forward resolves a free-text address to coordinates using the Google Maps
// Geocoding API.
func (gp *GoogleProvider) Forward(ctx context.Context, address string) (*models.RawGeoResult, error) {
	gp.log.DebugContext(ctx, "Forward geocoding using Google Maps", "address", address)

	req := maps.GeocodingRequest{Address: address}
	geocodeResponse, err := gp.client.Geocode(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("failed to geocode address: %w", err)
	}

	if len(geocodeResponse) == 0 {
		return nil, ErrGoogleEmptyResponse
	}

	return gp.mapResult(&geocodeResponse[0]), nil
}

// mapResult flattens a Google geocoding result by address component type.
func (gp *GoogleProvider) mapResult(res *maps.GeocodingResult) *models.RawGeoResult {
	out := &models.RawGeoResult{
		Provider:  ProviderGoogle,
		Formatted: res.FormattedAddress,
		Latitude:  res.Geometry.Location.Lat,
		Longitude: res.Geometry.Location.Lng,
		HasCoords: res.Geometry.Location.Lat != 0 || res.Geometry.Location.Lng != 0,
	}

	for _, comp := range res.AddressComponents {
		for _, typ := range comp.Types {
			switch typ {
			case "street_number":
				out.HouseNumber = comp.LongName
			case "route":
				out.Road = comp.LongName
			case "neighborhood", "sublocality", "sublocality_level_1":
				if out.Neighbourhood == "" {
					out.Neighbourhood = comp.LongName
				}
			case "locality":
				out.City = comp.LongName
			case "administrative_area_level_1":
				out.State = comp.LongName
			case "postal_code":
				out.Postcode = comp.LongName
			case "country":
				out.Country = comp.LongName
				out.CountryCode = strings.ToLower(comp.ShortName)
			}
		}
	}

	return out
}
