package models

// Direction distinguishes the two lookup kinds handled by the resolver.
type Direction string

const (
	// DirectionReverse resolves coordinates to an address.
	DirectionReverse Direction = "reverse"
	// DirectionForward resolves a free-text address to coordinates.
	DirectionForward Direction = "forward"
)

// RawGeoResult is the provider-neutral shape every adapter maps its
// response into. Fields are best-effort: a provider fills whatever its
// response carried and leaves the rest empty. Adapters never mutate a
// result after returning it.
type RawGeoResult struct {
	Provider      string // Provider identifier ("nominatim", "google", ...).
	Formatted     string // Provider's own single-line display string.
	HouseNumber   string
	Road          string
	Neighbourhood string
	Suburb        string
	City          string
	Town          string
	Village       string
	State         string
	Postcode      string
	Country       string
	CountryCode   string // Lowercase ISO 3166-1 alpha-2.

	// Importance is Nominatim's 0-1 relevance signal; zero elsewhere.
	Importance float64
	// RawConfidence is the provider's native confidence value on its own
	// scale (OpenCage 0-10, Geoapify 0-1); zero for providers without one.
	RawConfidence float64

	Latitude  float64
	Longitude float64
	// HasCoords reports whether Latitude/Longitude were present in the
	// response. Forward lookups require it; reverse responses may omit it.
	HasCoords bool
}

// BestCity returns the most specific populated-place field, preferring
// city over town over village.
func (r *RawGeoResult) BestCity() string {
	if r.City != "" {
		return r.City
	}
	if r.Town != "" {
		return r.Town
	}
	return r.Village
}
