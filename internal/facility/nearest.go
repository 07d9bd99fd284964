package facility

import (
	"math"
	"sort"

	"github.com/swasthyasetu/swasthyasetu/internal/geo"
)

// tieToleranceKm is the resolution distances are compared at. Candidates
// whose distances round to the same step are equidistant and resolve to the
// earliest in pool order.
const tieToleranceKm = 1e-9

// distanceKey rounds d to the tie tolerance so comparisons are exact.
func distanceKey(d float64) int64 {
	return int64(math.Round(d / tieToleranceKm))
}

// Nearest returns the pool member closest to origin.
func Nearest[F Facility](pool []F, origin geo.Coordinate) (Match[F], error) {
	if len(pool) == 0 {
		return Match[F]{}, ErrEmptyPool
	}

	best := Match[F]{
		Facility:   pool[0],
		DistanceKm: geo.DistanceKm(origin, pool[0].Position()),
	}
	bestKey := distanceKey(best.DistanceKm)
	for _, f := range pool[1:] {
		d := geo.DistanceKm(origin, f.Position())
		if k := distanceKey(d); k < bestKey {
			best, bestKey = Match[F]{Facility: f, DistanceKm: d}, k
		}
	}
	return best, nil
}

// NearestWhere returns the closest pool member satisfying keep. When no
// member satisfies it, the closest member of the whole pool is returned with
// Fallback set.
func NearestWhere[F Facility](pool []F, origin geo.Coordinate, keep func(F) bool) (Match[F], error) {
	if len(pool) == 0 {
		return Match[F]{}, ErrEmptyPool
	}

	filtered := make([]F, 0, len(pool))
	for _, f := range pool {
		if keep(f) {
			filtered = append(filtered, f)
		}
	}

	if len(filtered) == 0 {
		m, err := Nearest(pool, origin)
		if err != nil {
			return m, err
		}
		m.Fallback = true
		return m, nil
	}
	return Nearest(filtered, origin)
}

// NearestAvailable returns the closest ambulance with status Available,
// falling back to the closest ambulance of any status when none is free.
func NearestAvailable(ambulances []Ambulance, origin geo.Coordinate) (Match[Ambulance], error) {
	return NearestWhere(ambulances, origin, Ambulance.Available)
}

// NearestN returns up to n pool members ordered by distance from origin.
// Equidistant members keep their pool order.
func NearestN[F Facility](pool []F, origin geo.Coordinate, n int) []Match[F] {
	if n <= 0 || len(pool) == 0 {
		return nil
	}

	matches := make([]Match[F], len(pool))
	for i, f := range pool {
		matches[i] = Match[F]{Facility: f, DistanceKm: geo.DistanceKm(origin, f.Position())}
	}
	sortByDistance(matches)

	if n > len(matches) {
		n = len(matches)
	}
	return matches[:n]
}

// sortByDistance orders matches by rounded distance, keeping the existing
// order among equal keys.
func sortByDistance[F Facility](matches []Match[F]) {
	keys := make([]int64, len(matches))
	for i, m := range matches {
		keys[i] = distanceKey(m.DistanceKm)
	}
	sort.Stable(byKey[F]{matches, keys})
}

type byKey[F Facility] struct {
	matches []Match[F]
	keys    []int64
}

func (b byKey[F]) Len() int           { return len(b.matches) }
func (b byKey[F]) Less(i, j int) bool { return b.keys[i] < b.keys[j] }
func (b byKey[F]) Swap(i, j int) {
	b.matches[i], b.matches[j] = b.matches[j], b.matches[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}
