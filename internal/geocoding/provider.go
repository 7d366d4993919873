package geocoding

import (
	"context"
	"net/http"

	"github.com/UnknownOlympus/meridian/internal/models"
)

// Adapter is implemented once per external geocoding backend. Both methods
// translate the input into a provider-specific request and map the response
// into the common RawGeoResult shape. Implementations own their endpoint,
// credentials, and call timeout; a timeout surfaces as an ordinary error.
type Adapter interface {
	// Name returns the stable provider identifier used for quota keys,
	// metrics labels, and the Source field of resolved addresses.
	Name() string

	// Reverse resolves a coordinate pair to an address.
	Reverse(ctx context.Context, lat, lng float64) (*models.RawGeoResult, error)

	// Forward resolves a free-text address to coordinates.
	Forward(ctx context.Context, address string) (*models.RawGeoResult, error)
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Stable provider identifiers, in resolution priority order: the free
// provider first, then commercial backends by ascending restriction.
const (
	ProviderNominatim = "nominatim"
	ProviderGoogle    = "google"
	ProviderOpenCage  = "opencage"
	ProviderGeoapify  = "geoapify"
)
