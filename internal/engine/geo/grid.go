package geo

import (
	"math"

	"github.com/rendis/sectorscan/internal/model"
)

const (
	// DefaultBlockSizeKM is the side length of an initial tile.
	DefaultBlockSizeKM = 70.0
	// MaxCenterLat bounds the grid center. Closer to the poles cos(lat)
	// vanishes and longitude spans blow up.
	MaxCenterLat = 85.0

	kmPerDegreeLat = 111.32
	earthRadiusM   = 6371000.0
)

// ComputeTiling creates an n x n grid of square tiles of blockSizeKM centered
// on the given point. Rows run north to south and columns west to east.
// Longitude spans are corrected by cos(centerLat) so tiles keep a constant
// physical width.
func ComputeTiling(centerLat, centerLng float64, n int, blockSizeKM float64) []model.Bounds {
	if n <= 0 {
		return nil
	}
	if blockSizeKM <= 0 {
		blockSizeKM = DefaultBlockSizeKM
	}

	dLat := blockSizeKM / kmPerDegreeLat
	dLng := blockSizeKM / (kmPerDegreeLat * math.Cos(centerLat*math.Pi/180.0))

	offset := float64(n-1) / 2.0
	startLat := centerLat + offset*dLat
	startLng := centerLng - offset*dLng

	tiles := make([]model.Bounds, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			lat := startLat - float64(row)*dLat
			lng := startLng + float64(col)*dLng
			tiles = append(tiles, model.Bounds{
				MinLat: lat - dLat/2,
				MinLng: lng - dLng/2,
				MaxLat: lat + dLat/2,
				MaxLng: lng + dLng/2,
			})
		}
	}
	return tiles
}

// SplitQuadrants bisects b at its midpoints and returns the children in
// bottom-left, bottom-right, top-left, top-right order.
func SplitQuadrants(b model.Bounds) [4]model.Bounds {
	midLat, midLng := b.Center()
	return [4]model.Bounds{
		{MinLat: b.MinLat, MinLng: b.MinLng, MaxLat: midLat, MaxLng: midLng},
		{MinLat: b.MinLat, MinLng: midLng, MaxLat: midLat, MaxLng: b.MaxLng},
		{MinLat: midLat, MinLng: b.MinLng, MaxLat: b.MaxLat, MaxLng: midLng},
		{MinLat: midLat, MinLng: midLng, MaxLat: b.MaxLat, MaxLng: b.MaxLng},
	}
}

// BoxRadiusMeters returns the great-circle distance from the box center to
// its farthest corner, so a circle of that radius encloses the box. East and
// west corners are symmetric; north and south differ away from the equator.
func BoxRadiusMeters(b model.Bounds) float64 {
	lat, lng := b.Center()
	north := HaversineMeters(lat, lng, b.MaxLat, b.MaxLng)
	south := HaversineMeters(lat, lng, b.MinLat, b.MaxLng)
	return math.Max(north, south)
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLng := (lng2 - lng1) * math.Pi / 180.0
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}
