package geo

import (
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// LoadRegion reads a GeoJSON file (feature collection, feature or bare
// geometry) and returns the union of its polygons.
func LoadRegion(path string) (orb.MultiPolygon, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user supplied region file
	if err != nil {
		return nil, eris.Wrapf(err, "region: read %s", path)
	}
	return ParseRegion(data)
}

// ParseRegion decodes GeoJSON bytes into a MultiPolygon.
func ParseRegion(data []byte) (orb.MultiPolygon, error) {
	var geoms []orb.Geometry

	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	} else if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		geoms = append(geoms, f.Geometry)
	} else if g, err := geojson.UnmarshalGeometry(data); err == nil && g.Geometry() != nil {
		geoms = append(geoms, g.Geometry())
	} else {
		return nil, eris.New("region: no GeoJSON geometry found")
	}

	var mp orb.MultiPolygon
	for _, g := range geoms {
		switch v := g.(type) {
		case orb.Polygon:
			mp = append(mp, v)
		case orb.MultiPolygon:
			mp = append(mp, v...)
		case orb.Bound:
			mp = append(mp, v.ToPolygon())
		}
	}
	if len(mp) == 0 {
		return nil, eris.New("region: geometry contains no polygon")
	}
	return mp, nil
}

// RegionCenter returns the center of the region's bounding box.
func RegionCenter(region orb.MultiPolygon) (lat, lng float64) {
	c := region.Bound().Center()
	return c.Lat(), c.Lon()
}
