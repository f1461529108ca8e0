package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/rendis/sectorscan/internal/model"
)

// FilterTiles removes tiles that do not touch the region polygon. An empty
// region keeps every tile.
func FilterTiles(tiles []model.Bounds, region orb.MultiPolygon) []model.Bounds {
	if len(region) == 0 {
		return tiles
	}
	regionBound := region.Bound()

	var kept []model.Bounds
	for _, t := range tiles {
		if touchesRegion(t, region, regionBound) {
			kept = append(kept, t)
		}
	}
	return kept
}

func touchesRegion(t model.Bounds, region orb.MultiPolygon, regionBound orb.Bound) bool {
	tb := toOrbBound(t)
	if !tb.Intersects(regionBound) {
		return false
	}

	// orb.Point is [lng, lat]
	lat, lng := t.Center()
	probes := []orb.Point{
		{lng, lat},
		{t.MinLng, t.MinLat},
		{t.MaxLng, t.MinLat},
		{t.MinLng, t.MaxLat},
		{t.MaxLng, t.MaxLat},
	}
	for _, p := range probes {
		if planar.MultiPolygonContains(region, p) {
			return true
		}
	}

	// Region smaller than the tile, or only clipping an edge.
	for _, poly := range region {
		for _, ring := range poly {
			for _, p := range ring {
				if tb.Contains(p) {
					return true
				}
			}
		}
	}
	return false
}

func toOrbBound(b model.Bounds) orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLng, b.MinLat},
		Max: orb.Point{b.MaxLng, b.MaxLat},
	}
}
