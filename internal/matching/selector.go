package matching

import "github.com/cityhail/dispatch/pkg/geo"

// Candidate is a driver eligible for an offer, as returned by the store
// snapshot.
type Candidate struct {
	ID        int64
	Latitude  float64
	Longitude float64
}

// Nearest picks the candidate closest to the pickup point within radiusKm.
// Equal distances break deterministically toward the lower driver id. The
// second return is the winner's distance in km; ok is false when the radius
// filter leaves nothing.
func Nearest(pickupLat, pickupLng, radiusKm float64, candidates []Candidate) (Candidate, float64, bool) {
	var (
		best     Candidate
		bestDist float64
		found    bool
	)

	for _, c := range candidates {
		dist := geo.Haversine(pickupLat, pickupLng, c.Latitude, c.Longitude)
		if dist > radiusKm {
			continue
		}

		switch {
		case !found:
			best, bestDist, found = c, dist, true
		case dist < bestDist:
			best, bestDist = c, dist
		case dist == bestDist && c.ID < best.ID:
			best = c
		}
	}

	return best, bestDist, found
}

// SearchRadius computes the adaptive radius for a dispatch pass from the
// ride's persisted attempt counter.
func SearchRadius(baseKm, incrementKm float64, attempts int) float64 {
	return baseKm + float64(attempts)*incrementKm
}
