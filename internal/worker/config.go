// Package worker runs background jobs that keep the route cache warm so the
// first SOS of a session does not wait on the routing provider.
package worker

import (
	"sort"
	"time"

	"github.com/swasthyasetu/swasthyasetu/internal/geo"
)

// WarmupTarget is an origin whose routes to every destination are prefetched.
type WarmupTarget struct {
	// Name is the human-readable name of the target.
	Name string

	// Origin is where routes start, usually a patient address.
	Origin geo.Coordinate

	// Priority determines warm-up order (lower = higher priority).
	Priority int
}

// WarmupConfig holds configuration for the route warm-up job.
type WarmupConfig struct {
	// Targets are the origins to warm. If empty, uses DefaultWarmupTargets.
	Targets []WarmupTarget

	// Destinations are the facilities routes lead to, usually the hospitals.
	Destinations []geo.Coordinate

	// Concurrency is the number of concurrent lookups.
	// Default: 3
	Concurrency int

	// Timeout bounds a single lookup.
	// Default: 15 seconds
	Timeout time.Duration
}

// DefaultWarmupConfig returns the default warm-up configuration. Callers
// fill in Destinations from the facility registry.
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Targets:     DefaultWarmupTargets(),
		Concurrency: 3,
		Timeout:     15 * time.Second,
	}
}

// DefaultWarmupTargets returns origins around Thane West where the demo
// patient and most ad-hoc lookups start.
func DefaultWarmupTargets() []WarmupTarget {
	return []WarmupTarget{
		{Name: "Thane West", Priority: 1, Origin: geo.Coordinate{Lat: 19.2183, Lng: 72.9781}},
		{Name: "Thane Station", Priority: 2, Origin: geo.Coordinate{Lat: 19.1860, Lng: 72.9756}},
		{Name: "Majiwada", Priority: 3, Origin: geo.Coordinate{Lat: 19.2340, Lng: 72.9850}},
	}
}

// Pair is one origin/destination lookup.
type Pair struct {
	Target      string
	Origin      geo.Coordinate
	Destination geo.Coordinate
}

// Pairs returns every target/destination combination, highest priority
// targets first.
func (c WarmupConfig) Pairs() []Pair {
	targets := append([]WarmupTarget(nil), c.Targets...)
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Priority < targets[j].Priority
	})

	pairs := make([]Pair, 0, c.TotalPairs())
	for _, t := range targets {
		for _, d := range c.Destinations {
			pairs = append(pairs, Pair{Target: t.Name, Origin: t.Origin, Destination: d})
		}
	}
	return pairs
}

// TotalPairs returns the number of lookups one run performs.
func (c WarmupConfig) TotalPairs() int {
	return len(c.Targets) * len(c.Destinations)
}
