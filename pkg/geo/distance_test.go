package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		delta                  float64
	}{
		{
			name: "same point",
			lat1: 42.8746, lon1: 74.5698,
			lat2: 42.8746, lon2: 74.5698,
			wantKm: 0, delta: 0.0001,
		},
		{
			name: "one degree of longitude at the equator",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 1,
			wantKm: 111.19, delta: 0.05,
		},
		{
			name: "paris to london",
			lat1: 48.8566, lon1: 2.3522,
			lat2: 51.5074, lon2: -0.1278,
			wantKm: 343.5, delta: 1.5,
		},
		{
			name: "antipodal points",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 180,
			wantKm: 20015.1, delta: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.wantKm, got, tt.delta)
		})
	}
}

func TestHaversineSymmetry(t *testing.T) {
	forward := Haversine(42.8746, 74.5698, 42.8810, 74.5826)
	backward := Haversine(42.8810, 74.5826, 42.8746, 74.5698)
	assert.InDelta(t, forward, backward, 1e-9)
}

func TestHaversineShortDistancesOrdered(t *testing.T) {
	// Three drivers progressively further from the same pickup point.
	pickupLat, pickupLng := 42.8746, 74.5698
	near := Haversine(pickupLat, pickupLng, 42.8750, 74.5700)
	mid := Haversine(pickupLat, pickupLng, 42.8800, 74.5780)
	far := Haversine(pickupLat, pickupLng, 42.9000, 74.6100)

	assert.Less(t, near, mid)
	assert.Less(t, mid, far)
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, 0, EstimateDuration(0))
	assert.Equal(t, 15, EstimateDuration(10))
	assert.Equal(t, 30, EstimateDuration(20))
	assert.Equal(t, 60, EstimateDuration(40))
}
