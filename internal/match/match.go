// Package match decides which active, upcoming rides satisfy a search query.
// A ride qualifies when both legs fall within the search radius of the
// query's geocoded points, or when both location labels contain the query
// text. The OR is deliberate: recall over precision.
package match

import (
	"strings"

	"github.com/example/efterskole-rides/internal/geo"
	"github.com/example/efterskole-rides/internal/models"
)

// Filter narrows candidates to rides matching q. Candidates are expected to
// already be restricted to status=active with a future departure time, in
// ascending departure order; the filter keeps that order and never re-sorts.
func Filter(q models.SearchQuery, candidates []models.Ride) []models.Ride {
	out := make([]models.Ride, 0, len(candidates))
	for _, r := range candidates {
		if Matches(q, r) {
			out = append(out, r)
		}
	}
	return out
}

// Matches reports whether a single ride satisfies the query.
func Matches(q models.SearchQuery, r models.Ride) bool {
	return geoMatch(q, r) || textMatch(q, r)
}

// geoMatch requires both legs: ride departure within radius of the query
// origin AND ride destination within radius of the query destination. Any
// missing coordinate on either side makes the branch false.
func geoMatch(q models.SearchQuery, r models.Ride) bool {
	if q.DepartureCoord == nil || q.DestinationCoord == nil {
		return false
	}
	if r.DepartureCoord == nil || r.DestinationCoord == nil {
		return false
	}
	radius := models.NormalizeRadius(q.RadiusKm)
	if geo.DistanceKm(*q.DepartureCoord, *r.DepartureCoord) > radius {
		return false
	}
	return geo.DistanceKm(*q.DestinationCoord, *r.DestinationCoord) <= radius
}

// textMatch does case-insensitive substring matching on both labels. Empty
// query text disqualifies the branch outright: every string contains "", so
// without this check an empty field would match every ride.
func textMatch(q models.SearchQuery, r models.Ride) bool {
	dep := strings.TrimSpace(q.Departure)
	dst := strings.TrimSpace(q.Destination)
	if dep == "" || dst == "" {
		return false
	}
	return containsFold(r.DepartureLocation, dep) && containsFold(r.Destination, dst)
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
