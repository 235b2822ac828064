package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// GeocodingResult is one candidate from the geocoding collaborator. A zero
// value means the provider had no candidates.
type GeocodingResult struct {
	Lat     float64
	Lon     float64
	Address string // formatted address line
}

// IsZero reports whether the provider returned no usable candidate.
func (r GeocodingResult) IsZero() bool {
	return r.Lat == 0 && r.Lon == 0 && r.Address == ""
}

// Geocoder is the forward/reverse lookup collaborator. Both directions may
// legitimately return a zero result; that is a soft failure, never fatal.
type Geocoder interface {
	// ForwardGeocode resolves free text to coordinates, first candidate only.
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)

	// ReverseGeocode resolves coordinates to an address line.
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// ResolvePoint interprets a free-text location query. The literal token
// "my" (case-insensitive) resolves to the caller's current fix, failing
// with ErrNoFixAvailable when none exists. Any other text is forwarded to
// the geocoder; no candidates, a nil geocoder, or a provider error all
// resolve to ErrNotFound.
func ResolvePoint(ctx context.Context, text string, fix *Fix, geocoder Geocoder) (Point, error) {
	text = strings.TrimSpace(text)

	if strings.EqualFold(text, "my") {
		if fix == nil {
			return Point{}, ErrNoFixAvailable
		}
		return fix.Point, nil
	}

	if geocoder == nil {
		return Point{}, ErrNotFound
	}

	result, err := geocoder.ForwardGeocode(ctx, text)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %q: %v", ErrNotFound, text, err)
	}
	if result.IsZero() {
		return Point{}, fmt.Errorf("%w: %q", ErrNotFound, text)
	}

	p := Point{Lat: result.Lat, Lon: result.Lon}
	if err := p.Validate(); err != nil {
		return Point{}, fmt.Errorf("%w: %q", ErrNotFound, text)
	}
	return p, nil
}

// AnnotateAddress reverse-geocodes a point into an address line. Failures
// are absorbed: any provider error or empty result yields "" and a warning
// log, never an error — the address is annotation, not a precondition.
func AnnotateAddress(ctx context.Context, p Point, geocoder Geocoder, logger *slog.Logger) string {
	if geocoder == nil {
		return ""
	}

	result, err := geocoder.ReverseGeocode(ctx, p.Lat, p.Lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", p.Lat,
			"lon", p.Lon,
			"error", err,
		)
		return ""
	}
	return result.Address
}
