// Package geo enriches foreign addresses with a coarse geolocation.
//
// Enrichment is optional and never fails a run: lookups that error are
// remembered as an empty Location for the rest of the run.
package geo

import "errors"

var (
	// ErrNoToken is returned when no API token is configured.
	ErrNoToken = errors.New("no geolocation token")

	// ErrLookupFailed wraps non-success responses from the lookup service.
	ErrLookupFailed = errors.New("geolocation lookup failed")
)

// Location is the part of a geolocation record whotalks displays.
type Location struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

// IsZero reports whether nothing is known about the location.
func (l Location) IsZero() bool {
	return l.Country == "" && l.City == ""
}

// String renders "City, Country", either part optional; empty when unknown.
func (l Location) String() string {
	switch {
	case l.City != "" && l.Country != "":
		return l.City + ", " + l.Country
	case l.Country != "":
		return l.Country
	default:
		return l.City
	}
}
