// Package geocode turns free-text addresses into coordinates. The search
// path treats every failure here as degradable: no coordinates just means
// text-only matching.
package geocode

import (
	"context"
	"errors"

	"googlemaps.github.io/maps"

	"github.com/example/efterskole-rides/internal/models"
)

var (
	// ErrNotFound means the provider answered but had no result for the text.
	ErrNotFound = errors.New("address not found")
	// ErrUnavailable wraps transport or quota failures from the provider.
	ErrUnavailable = errors.New("geocoder unavailable")
)

// Result is a resolved address: the provider's formatted label plus a point.
type Result struct {
	Label string            `json:"label"`
	Coord models.Coordinate `json:"coord"`
}

// Resolver is the lookup capability the search path consumes.
type Resolver interface {
	Resolve(ctx context.Context, text string) (*Result, error)
}

// GoogleResolver resolves through the Google Geocoding API, biased to
// Denmark the same way the webapp's geocoder was.
type GoogleResolver struct {
	client *maps.Client
}

func NewGoogleResolver(apiKey string) (*GoogleResolver, error) {
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GoogleResolver{client: c}, nil
}

func (g *GoogleResolver) Resolve(ctx context.Context, text string) (*Result, error) {
	req := &maps.GeocodingRequest{
		Address: text,
		Region:  "dk",
		Components: map[maps.Component]string{
			maps.ComponentCountry: "DK",
		},
	}
	results, err := g.client.Geocode(ctx, req)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	if len(results) == 0 {
		return nil, ErrNotFound
	}
	first := results[0]
	return &Result{
		Label: first.FormattedAddress,
		Coord: models.Coordinate{Lat: first.Geometry.Location.Lat, Lng: first.Geometry.Location.Lng},
	}, nil
}
