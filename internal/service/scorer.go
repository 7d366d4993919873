package service

import (
	"github.com/UnknownOlympus/meridian/internal/geocoding"
	"github.com/UnknownOlympus/meridian/internal/models"
)

// Weights holds the scoring constants. They are heuristic and deliberately
// tunable at construction time rather than baked into the scoring code;
// DefaultWeights carries the values the service ships with.
type Weights struct {
	Base float64 // Starting score before any bonus.

	// Provider trust bonuses.
	Nominatim           float64 // Flat bonus for the free OSM provider.
	NominatimImportance float64 // Extra bonus when Nominatim importance > 0.5.
	Google              float64 // Flat bonus for Google Maps.
	OpenCageScale       float64 // Max bonus scaled from OpenCage's 0-10 confidence.
	GeoapifyScale       float64 // Max bonus scaled from Geoapify's 0-1 confidence.

	// Data-completeness bonuses per direction. Forward weights are smaller:
	// for forward lookups the coordinates matter more than field richness.
	Reverse CompletenessWeights
	Forward CompletenessWeights
}

// CompletenessWeights rewards results that carry more address detail.
type CompletenessWeights struct {
	HouseNumber float64
	Road        float64
	City        float64
	Postcode    float64
}

// DefaultWeights returns the shipped scoring constants.
func DefaultWeights() Weights {
	return Weights{
		Base:                0.5,
		Nominatim:           0.2,
		NominatimImportance: 0.1,
		Google:              0.3,
		OpenCageScale:       0.3,
		GeoapifyScale:       0.2,
		Reverse: CompletenessWeights{
			HouseNumber: 0.15,
			Road:        0.15,
			City:        0.10,
			Postcode:    0.05,
		},
		Forward: CompletenessWeights{
			HouseNumber: 0.10,
			Road:        0.10,
			City:        0.10,
			Postcode:    0.05,
		},
	}
}

// Scorer assigns a confidence in [0, 1] to a raw provider result.
// Provider trust is applied before data richness on purpose: a generally
// reliable provider should outrank a less-trusted one with a marginally
// more complete record, unless the richness gap is large.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score is deterministic: the same result and direction always produce the
// same confidence.
func (s *Scorer) Score(res *models.RawGeoResult, direction models.Direction) float64 {
	score := s.weights.Base

	switch res.Provider {
	case geocoding.ProviderNominatim:
		score += s.weights.Nominatim
		if res.Importance > 0.5 {
			score += s.weights.NominatimImportance
		}
	case geocoding.ProviderGoogle:
		score += s.weights.Google
	case geocoding.ProviderOpenCage:
		score += s.weights.OpenCageScale * clamp01(res.RawConfidence/10)
	case geocoding.ProviderGeoapify:
		score += s.weights.GeoapifyScale * clamp01(res.RawConfidence)
	}

	completeness := s.weights.Reverse
	if direction == models.DirectionForward {
		completeness = s.weights.Forward
	}

	if res.HouseNumber != "" {
		score += completeness.HouseNumber
	}
	if res.Road != "" {
		score += completeness.Road
	}
	if res.BestCity() != "" {
		score += completeness.City
	}
	if res.Postcode != "" {
		score += completeness.Postcode
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
