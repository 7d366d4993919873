package service_test

import (
	"testing"

	"github.com/UnknownOlympus/meridian/internal/geocoding"
	"github.com/UnknownOlympus/meridian/internal/models"
	"github.com/UnknownOlympus/meridian/internal/service"
	"github.com/stretchr/testify/assert"
)

func TestScorer_ProviderBonuses(t *testing.T) {
	scorer := service.NewScorer(service.DefaultWeights())

	tests := []struct {
		name     string
		result   models.RawGeoResult
		expected float64
	}{
		{
			name:     "unknown provider gets base score only",
			result:   models.RawGeoResult{Provider: "unknown"},
			expected: 0.5,
		},
		{
			name:     "nominatim gets flat trust bonus",
			result:   models.RawGeoResult{Provider: geocoding.ProviderNominatim},
			expected: 0.7,
		},
		{
			name:     "nominatim with high importance gets extra bonus",
			result:   models.RawGeoResult{Provider: geocoding.ProviderNominatim, Importance: 0.8},
			expected: 0.8,
		},
		{
			name:     "nominatim importance at threshold gets no extra bonus",
			result:   models.RawGeoResult{Provider: geocoding.ProviderNominatim, Importance: 0.5},
			expected: 0.7,
		},
		{
			name:     "google gets the largest flat bonus",
			result:   models.RawGeoResult{Provider: geocoding.ProviderGoogle},
			expected: 0.8,
		},
		{
			name:     "opencage bonus scales with its 0-10 confidence",
			result:   models.RawGeoResult{Provider: geocoding.ProviderOpenCage, RawConfidence: 5},
			expected: 0.65,
		},
		{
			name:     "opencage full confidence reaches its max bonus",
			result:   models.RawGeoResult{Provider: geocoding.ProviderOpenCage, RawConfidence: 10},
			expected: 0.8,
		},
		{
			name:     "geoapify bonus scales with its 0-1 confidence",
			result:   models.RawGeoResult{Provider: geocoding.ProviderGeoapify, RawConfidence: 0.5},
			expected: 0.6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := scorer.Score(&tt.result, models.DirectionReverse)
			assert.InDelta(t, tt.expected, score, 0.0001)
		})
	}
}

func TestScorer_Completeness(t *testing.T) {
	scorer := service.NewScorer(service.DefaultWeights())

	t.Run("reverse score grows with each address field", func(t *testing.T) {
		res := models.RawGeoResult{Provider: "unknown"}
		prev := scorer.Score(&res, models.DirectionReverse)

		res.HouseNumber = "12"
		score := scorer.Score(&res, models.DirectionReverse)
		assert.Greater(t, score, prev)
		prev = score

		res.Road = "MG Road"
		score = scorer.Score(&res, models.DirectionReverse)
		assert.Greater(t, score, prev)
		prev = score

		res.City = "Bengaluru"
		score = scorer.Score(&res, models.DirectionReverse)
		assert.Greater(t, score, prev)
		prev = score

		res.Postcode = "560001"
		score = scorer.Score(&res, models.DirectionReverse)
		assert.Greater(t, score, prev)
	})

	t.Run("town and village count as city", func(t *testing.T) {
		town := models.RawGeoResult{Provider: "unknown", Town: "Hosur"}
		village := models.RawGeoResult{Provider: "unknown", Village: "Mawlynnong"}
		city := models.RawGeoResult{Provider: "unknown", City: "Bengaluru"}

		expected := scorer.Score(&city, models.DirectionReverse)
		assert.InDelta(t, expected, scorer.Score(&town, models.DirectionReverse), 0.0001)
		assert.InDelta(t, expected, scorer.Score(&village, models.DirectionReverse), 0.0001)
	})

	t.Run("forward completeness weighs less than reverse", func(t *testing.T) {
		res := models.RawGeoResult{
			Provider:    "unknown",
			HouseNumber: "12",
			Road:        "MG Road",
		}

		reverse := scorer.Score(&res, models.DirectionReverse)
		forward := scorer.Score(&res, models.DirectionForward)
		assert.Greater(t, reverse, forward)
	})

	t.Run("score is clamped to one", func(t *testing.T) {
		res := models.RawGeoResult{
			Provider:    geocoding.ProviderNominatim,
			Importance:  0.9,
			HouseNumber: "12",
			Road:        "MG Road",
			City:        "Bengaluru",
			Postcode:    "560001",
		}

		score := scorer.Score(&res, models.DirectionReverse)
		assert.InDelta(t, 1.0, score, 0.0001)
	})

	t.Run("score is deterministic", func(t *testing.T) {
		res := models.RawGeoResult{
			Provider: geocoding.ProviderGoogle,
			Road:     "MG Road",
			City:     "Bengaluru",
		}

		first := scorer.Score(&res, models.DirectionForward)
		second := scorer.Score(&res, models.DirectionForward)
		assert.InDelta(t, first, second, 0)
	})
}
