package timeline

import (
	"sort"

	"trackline/internal/gpx"
)

// Merge combines an existing timeline with newly decoded points.
//
// Duplicates by (lat, lon, timestamp) keep the first-encountered copy, so an
// existing entry wins over a new one and retains whatever optional fields
// earlier merges gave it. The sort is stable: equal timestamps keep insertion
// order (existing before new), which makes repeated merges deterministic.
func Merge(existing, incoming []gpx.Point) []gpx.Point {
	merged := make([]gpx.Point, 0, len(existing)+len(incoming))
	seen := make(map[gpx.Key]struct{}, len(existing)+len(incoming))

	for _, points := range [][]gpx.Point{existing, incoming} {
		for _, p := range points {
			key := p.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, p)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})
	return merged
}

// DropYear2000 filters out points whose clock reported the year 2000, a known
// tracker bug when a phone boots before acquiring network time. Returns the
// kept points and how many were dropped.
func DropYear2000(points []gpx.Point) ([]gpx.Point, int) {
	kept := points[:0:len(points)]
	dropped := 0
	for _, p := range points {
		if p.Time.UTC().Year() == 2000 {
			dropped++
			continue
		}
		kept = append(kept, p)
	}
	return kept, dropped
}
