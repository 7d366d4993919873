package geocoding

import (
	"fmt"
	"log/slog"

	"googlemaps.github.io/maps"
)

// ProvidersConfig holds the credentials and limits needed to construct the
// adapter chain. A commercial provider with an empty key is simply left out
// of the chain, so it is never contacted.
type ProvidersConfig struct {
	GoogleAPIKey     string       // API key for Google Maps (empty disables the adapter)
	OpenCageAPIKey   string       // API key for OpenCage (empty disables the adapter)
	GeoapifyAPIKey   string       // API key for Geoapify (empty disables the adapter)
	NominatimRateRPS int          // Client-side fair-use limit for Nominatim
	GoogleRateQPS    int          // Rate limit for the Google Maps client
	Logger           *slog.Logger // Logger shared by all adapters
}

// NewProviders builds the ordered adapter chain the resolver iterates over:
// the free provider first, then commercial backends by ascending restriction.
// Adapters whose credentials are missing are skipped with an info log entry,
// so a deployment with no commercial keys still degrades to Nominatim only.
func NewProviders(config ProvidersConfig) ([]Adapter, error) {
	log := config.Logger
	adapters := []Adapter{NewNominatimProvider(config.NominatimRateRPS, log)}

	if config.GoogleAPIKey != "" {
		clientOpts := []maps.ClientOption{maps.WithAPIKey(config.GoogleAPIKey)}
		if config.GoogleRateQPS > 0 {
			clientOpts = append(clientOpts, maps.WithRateLimit(config.GoogleRateQPS))
		}

		client, err := maps.NewClient(clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
		}
		adapters = append(adapters, NewGoogleProvider(client, log))
	} else {
		log.Info("Google provider disabled, no API key configured")
	}

	if config.OpenCageAPIKey != "" {
		adapters = append(adapters, NewOpenCageProvider(config.OpenCageAPIKey, log))
	} else {
		log.Info("OpenCage provider disabled, no API key configured")
	}

	if config.GeoapifyAPIKey != "" {
		adapters = append(adapters, NewGeoapifyProvider(config.GeoapifyAPIKey, log))
	} else {
		log.Info("Geoapify provider disabled, no API key configured")
	}

	return adapters, nil
}
