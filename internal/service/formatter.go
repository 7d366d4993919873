package service

import (
	"strings"

	"github.com/UnknownOlympus/meridian/internal/models"
)

// Formatter builds a single human-readable address line from whichever
// fields a provider returned. The home country is omitted from domestic
// addresses so users do not see a redundant country suffix on every line.
type Formatter struct {
	homeCountryCode string // Lowercase ISO 3166-1 alpha-2 of the deployment's home country.
}

// NewFormatter creates a formatter for the given home country code.
func NewFormatter(homeCountryCode string) *Formatter {
	return &Formatter{homeCountryCode: strings.ToLower(homeCountryCode)}
}

// Format joins the present address parts in fixed order: house number with
// road (or road alone), neighbourhood or suburb, city/town/village, state,
// and finally the country for foreign addresses.
func (f *Formatter) Format(res *models.RawGeoResult) string {
	var parts []string

	switch {
	case res.HouseNumber != "" && res.Road != "":
		parts = append(parts, res.HouseNumber+" "+res.Road)
	case res.Road != "":
		parts = append(parts, res.Road)
	}

	if res.Neighbourhood != "" {
		parts = append(parts, res.Neighbourhood)
	} else if res.Suburb != "" {
		parts = append(parts, res.Suburb)
	}

	if city := res.BestCity(); city != "" {
		parts = append(parts, city)
	}

	if res.State != "" {
		parts = append(parts, res.State)
	}

	if res.Country != "" && !strings.EqualFold(res.CountryCode, f.homeCountryCode) {
		parts = append(parts, res.Country)
	}

	return strings.Join(parts, ", ")
}
