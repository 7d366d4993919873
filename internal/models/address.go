package models

import "time"

// ResolvedAddress is the value the resolver hands back to callers, and the
// value stored in the result cache. Once produced it is never mutated;
// cache entries are only replaced after TTL expiry.
type ResolvedAddress struct {
	DisplayName   string    `json:"display_name"`
	HouseNumber   string    `json:"house_number,omitempty"`
	Road          string    `json:"road,omitempty"`
	Neighbourhood string    `json:"neighbourhood,omitempty"`
	City          string    `json:"city,omitempty"`
	State         string    `json:"state,omitempty"`
	Postcode      string    `json:"postcode,omitempty"`
	Country       string    `json:"country,omitempty"`
	Confidence    float64   `json:"confidence"`
	Source        string    `json:"source"`
	Kind          Direction `json:"kind"`
	Latitude      float64   `json:"latitude,omitempty"`
	Longitude     float64   `json:"longitude,omitempty"`
	ResolvedAt    time.Time `json:"resolved_at"`
}

// SourceFallback marks a reverse result synthesized from raw coordinates
// after every provider failed or was skipped.
const SourceFallback = "fallback"

// IsFallback reports whether the address was synthesized rather than
// resolved by a provider. Callers should treat such results as low quality.
func (a *ResolvedAddress) IsFallback() bool {
	return a.Source == SourceFallback
}
