package geo

import (
	"math"
	"testing"

	"github.com/example/efterskole-rides/internal/models"
)

func TestDistanceIdenticalPoints(t *testing.T) {
	p := models.Coordinate{Lat: 55.6761, Lng: 12.5683}
	if d := DistanceKm(p, p); d > 1e-6 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := models.Coordinate{Lat: 55.6761, Lng: 12.5683}
	b := models.Coordinate{Lat: 56.1572, Lng: 10.2107}
	if d1, d2 := DistanceKm(a, b), DistanceKm(b, a); math.Abs(d1-d2) > 1e-9 {
		t.Fatalf("asymmetric distance: %f vs %f", d1, d2)
	}
}

func TestDistanceCopenhagenRoskilde(t *testing.T) {
	cph := models.Coordinate{Lat: 55.6761, Lng: 12.5683}
	ros := models.Coordinate{Lat: 55.6415, Lng: 12.0803}
	d := DistanceKm(cph, ros)
	if d < 28 || d > 34 {
		t.Fatalf("Copenhagen-Roskilde distance out of range: %f km", d)
	}
}
