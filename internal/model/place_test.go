package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlace_KeepsFieldOrder(t *testing.T) {
	p, err := ParsePlace([]byte(`{"name":"Cabinet A","place_id":"abc","rating":4.5,"types":["health"]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "place_id", "rating", "types"}, p.Keys())
	assert.Equal(t, "abc", p.ID())
	assert.InDelta(t, 4.5, p.Float("rating"), 0.0001)
	assert.Equal(t, `["health"]`, p.String("types"))
}

func TestParsePlace_RejectsNonObject(t *testing.T) {
	_, err := ParsePlace([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestPlace_SetKeepsPosition(t *testing.T) {
	p, err := ParsePlace([]byte(`{"place_id":"abc","name":"old"}`))
	require.NoError(t, err)

	p.SetString("name", "new")
	p.SetString(SourceSectorField, "S-000003")

	assert.Equal(t, []string{"place_id", "name", SourceSectorField}, p.Keys())
	assert.Equal(t, "new", p.String("name"))
	assert.Equal(t, "S-000003", p.SourceSectorID())
}

func TestPlace_MarshalPreservesUnknownFields(t *testing.T) {
	in := `{"z":1,"place_id":"p1","opening_hours":{"open_now":true},"a":null}`
	p, err := ParsePlace([]byte(in))
	require.NoError(t, err)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestPlace_Location(t *testing.T) {
	p, err := ParsePlace([]byte(`{"geometry":{"location":{"lat":48.85,"lng":2.35}}}`))
	require.NoError(t, err)

	lat, lng, ok := p.Location()
	require.True(t, ok)
	assert.InDelta(t, 48.85, lat, 1e-9)
	assert.InDelta(t, 2.35, lng, 1e-9)

	_, _, ok = Place{}.Location()
	assert.False(t, ok)
}

func TestPlace_CloneIsIndependent(t *testing.T) {
	p, err := ParsePlace([]byte(`{"place_id":"p1"}`))
	require.NoError(t, err)

	c := p.Clone()
	c.SetString("extra", "x")

	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 2, c.Len())
}

func TestNewProcessed_Labels(t *testing.T) {
	s := Sector{ID: SectorID(4), Bounds: Bounds{MinLat: 1, MinLng: 1, MaxLat: 2, MaxLng: 2}}

	split := NewProcessed(s, ActionSplit, 25, time.Time{})
	assert.Equal(t, "Split", split.Label)
	assert.Equal(t, ColorSplit, split.Color)
	assert.Equal(t, "Split S-000004 (25+)", split.Status)

	dense := NewProcessed(s, ActionSaveDense, 52, time.Time{})
	assert.Equal(t, "Saved", dense.Label)
	assert.Equal(t, "Saved S-000004 (52)", dense.Status)
}
