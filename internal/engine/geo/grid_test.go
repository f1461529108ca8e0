package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/sectorscan/internal/model"
)

const eps = 1e-9

func TestComputeTiling_CountAndSize(t *testing.T) {
	for _, lat := range []float64{0, 45.764, -33.8688, 60} {
		for n := 1; n <= 6; n++ {
			tiles := ComputeTiling(lat, 4.8357, n, DefaultBlockSizeKM)
			require.Len(t, tiles, n*n)

			for _, b := range tiles {
				require.True(t, b.Valid())
				heightKM := (b.MaxLat - b.MinLat) * kmPerDegreeLat
				widthKM := (b.MaxLng - b.MinLng) * kmPerDegreeLat * math.Cos(lat*math.Pi/180)
				assert.InDelta(t, DefaultBlockSizeKM, heightKM, 1e-6)
				assert.InDelta(t, DefaultBlockSizeKM, widthKM, 1e-6)
			}
		}
	}
}

func TestComputeTiling_EdgeToEdge(t *testing.T) {
	const n = 4
	tiles := ComputeTiling(48.8566, 2.3522, n, 70)

	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			b := tiles[row*n+col]
			if col+1 < n {
				east := tiles[row*n+col+1]
				assert.InDelta(t, b.MaxLng, east.MinLng, eps, "gap between columns")
				assert.InDelta(t, b.MinLat, east.MinLat, eps)
			}
			if row+1 < n {
				south := tiles[(row+1)*n+col]
				assert.InDelta(t, b.MinLat, south.MaxLat, eps, "gap between rows")
				assert.InDelta(t, b.MinLng, south.MinLng, eps)
			}
		}
	}
}

func TestComputeTiling_CenteredRowMajor(t *testing.T) {
	tiles := ComputeTiling(45.0, 5.0, 3, 70)

	// Middle tile is centered on the requested point.
	lat, lng := tiles[4].Center()
	assert.InDelta(t, 45.0, lat, eps)
	assert.InDelta(t, 5.0, lng, eps)

	// First tile is north-west, last is south-east.
	assert.Greater(t, tiles[0].MinLat, tiles[8].MinLat)
	assert.Less(t, tiles[0].MinLng, tiles[8].MinLng)
	// Row-major: second tile is east of the first.
	assert.Greater(t, tiles[1].MinLng, tiles[0].MinLng)
	assert.InDelta(t, tiles[0].MinLat, tiles[1].MinLat, eps)
}

func TestComputeTiling_Degenerate(t *testing.T) {
	assert.Empty(t, ComputeTiling(45, 5, 0, 70))
	assert.Len(t, ComputeTiling(45, 5, 1, 0), 1, "zero block size falls back to the default")
}

func TestSplitQuadrants_UnionAndOrder(t *testing.T) {
	b := model.Bounds{MinLat: 10, MinLng: 20, MaxLat: 12, MaxLng: 24}
	q := SplitQuadrants(b)

	// bottom-left, bottom-right, top-left, top-right
	assert.Equal(t, model.Bounds{MinLat: 10, MinLng: 20, MaxLat: 11, MaxLng: 22}, q[0])
	assert.Equal(t, model.Bounds{MinLat: 10, MinLng: 22, MaxLat: 11, MaxLng: 24}, q[1])
	assert.Equal(t, model.Bounds{MinLat: 11, MinLng: 20, MaxLat: 12, MaxLng: 22}, q[2])
	assert.Equal(t, model.Bounds{MinLat: 11, MinLng: 22, MaxLat: 12, MaxLng: 24}, q[3])

	var area float64
	for _, c := range q {
		require.True(t, c.Valid())
		area += (c.MaxLat - c.MinLat) * (c.MaxLng - c.MinLng)
	}
	assert.InDelta(t, (b.MaxLat-b.MinLat)*(b.MaxLng-b.MinLng), area, eps)

	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			assert.InDelta(t, 0, overlapArea(q[i], q[j]), eps, "quadrants %d and %d overlap", i, j)
		}
	}
}

func TestBoxRadiusMeters_EnclosesBox(t *testing.T) {
	b := ComputeTiling(48.8566, 2.3522, 1, 70)[0]
	r := BoxRadiusMeters(b)

	// Half diagonal of a 70 km square is ~49.5 km.
	assert.InDelta(t, 49497, r, 400)

	lat, lng := b.Center()
	corners := [][2]float64{
		{b.MinLat, b.MinLng}, {b.MinLat, b.MaxLng},
		{b.MaxLat, b.MinLng}, {b.MaxLat, b.MaxLng},
	}
	for _, c := range corners {
		assert.LessOrEqual(t, HaversineMeters(lat, lng, c[0], c[1]), r+1e-6)
	}
}

func TestBoxRadiusMeters_Monotonic(t *testing.T) {
	prev := 0.0
	for _, half := range []float64{0.001, 0.01, 0.1, 0.5, 1, 2} {
		b := model.Bounds{MinLat: 45 - half, MinLng: 5 - half, MaxLat: 45 + half, MaxLng: 5 + half}
		r := BoxRadiusMeters(b)
		assert.Greater(t, r, prev)
		prev = r
	}
}

func TestBoxRadiusMeters_TranslationInvariant(t *testing.T) {
	b := model.Bounds{MinLat: 45, MinLng: 5, MaxLat: 45.2, MaxLng: 5.3}
	base := BoxRadiusMeters(b)

	for _, shift := range []float64{-120, -10, 0.5, 33, 150} {
		moved := model.Bounds{MinLat: b.MinLat, MinLng: b.MinLng + shift, MaxLat: b.MaxLat, MaxLng: b.MaxLng + shift}
		assert.InDelta(t, base, BoxRadiusMeters(moved), 1e-6)
	}
}

func overlapArea(a, b model.Bounds) float64 {
	h := math.Min(a.MaxLat, b.MaxLat) - math.Max(a.MinLat, b.MinLat)
	w := math.Min(a.MaxLng, b.MaxLng) - math.Max(a.MinLng, b.MinLng)
	if h <= 0 || w <= 0 {
		return 0
	}
	return h * w
}
