package run

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/sectorscan/internal/config"
	"github.com/rendis/sectorscan/internal/model"
)

const squareRegion = `{"type":"Polygon","coordinates":[[[2.0,48.5],[2.8,48.5],[2.8,49.1],[2.0,49.1],[2.0,48.5]]]}`

func writeRegion(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "region.geojson")
	require.NoError(t, os.WriteFile(path, []byte(squareRegion), 0o644))
	return path
}

func TestResolveParams_ExplicitCenterWins(t *testing.T) {
	p := model.SearchParams{Zone: "Lyon", CenterLat: 1.5, CenterLng: 2.5, OutputPath: "out"}

	got, region, err := ResolveParams(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, region)
	assert.Equal(t, 1.5, got.CenterLat)
	assert.Equal(t, 2.5, got.CenterLng)
	assert.Equal(t, "Lyon", got.Zone)
	assert.Equal(t, "out.csv", got.OutputPath)
}

func TestResolveParams_PresetZone(t *testing.T) {
	got, _, err := ResolveParams(context.Background(), model.SearchParams{Zone: "lyon"})
	require.NoError(t, err)
	assert.Equal(t, "Lyon, France", got.Zone)
	assert.InDelta(t, 45.7640, got.CenterLat, 1e-9)
	assert.InDelta(t, 4.8357, got.CenterLng, 1e-9)
	assert.Equal(t, "resultats.csv", got.OutputPath)
}

func TestResolveParams_DefaultZone(t *testing.T) {
	got, _, err := ResolveParams(context.Background(), model.SearchParams{})
	require.NoError(t, err)
	assert.Equal(t, "Paris, France", got.Zone)
	assert.InDelta(t, 48.8566, got.CenterLat, 1e-9)
}

func TestResolveParams_RegionCenter(t *testing.T) {
	p := model.SearchParams{RegionPath: writeRegion(t)}

	got, region, err := ResolveParams(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, region, 1)
	assert.InDelta(t, 48.8, got.CenterLat, 1e-9)
	assert.InDelta(t, 2.4, got.CenterLng, 1e-9)
	assert.Empty(t, got.Zone)
}

func TestResolveParams_ZoneBeatsRegionCenter(t *testing.T) {
	p := model.SearchParams{RegionPath: writeRegion(t), Zone: "Paris"}

	got, region, err := ResolveParams(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, region, 1)
	assert.Equal(t, "Paris, France", got.Zone)
	assert.InDelta(t, 2.3522, got.CenterLng, 1e-9)
}

func TestResolveParams_RejectsPolarCenter(t *testing.T) {
	p := model.SearchParams{CenterLat: 89.9, CenterLng: 10}

	_, _, err := ResolveParams(context.Background(), p)
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "search.center_lat", cfgErr.Key)
}

func TestResolveParams_MissingRegion(t *testing.T) {
	p := model.SearchParams{RegionPath: filepath.Join(t.TempDir(), "nope.geojson")}
	_, _, err := ResolveParams(context.Background(), p)
	assert.Error(t, err)
}

func TestNewProvider_MissingCredential(t *testing.T) {
	cfg := &config.Config{}
	searcher, err := NewProvider(cfg)
	assert.Nil(t, searcher)

	var cfgErr *config.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
