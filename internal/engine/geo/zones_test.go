package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupZone(t *testing.T) {
	z, ok := LookupZone("paris, france")
	require.True(t, ok)
	assert.InDelta(t, 48.8566, z.Lat, 1e-9)

	z, ok = LookupZone("  Tokyo ")
	require.True(t, ok)
	assert.Equal(t, "Tokyo, Japan", z.Name)

	_, ok = LookupZone("Atlantis")
	assert.False(t, ok)
	_, ok = LookupZone("")
	assert.False(t, ok)
}

func TestZones_Sorted(t *testing.T) {
	zones := Zones()
	require.Len(t, zones, len(presetZones))
	for i := 1; i < len(zones); i++ {
		assert.Less(t, zones[i-1].Name, zones[i].Name)
	}
}

func withNominatim(t *testing.T, h http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(h)
	orig := nominatimURL
	nominatimURL = srv.URL
	t.Cleanup(func() {
		nominatimURL = orig
		srv.Close()
	})
}

func TestResolveCenter_PresetSkipsGeocoder(t *testing.T) {
	withNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("geocoder must not be called for presets")
		w.WriteHeader(http.StatusInternalServerError)
	})

	z, err := ResolveCenter(context.Background(), "Lyon")
	require.NoError(t, err)
	assert.Equal(t, "Lyon, France", z.Name)
}

func TestResolveCenter_Geocodes(t *testing.T) {
	withNominatim(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Nantes", r.URL.Query().Get("q"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`[{"lat":"47.2184","lon":"-1.5536","display_name":"Nantes, France"}]`))
	})

	z, err := ResolveCenter(context.Background(), "Nantes")
	require.NoError(t, err)
	assert.Equal(t, "Nantes, France", z.Name)
	assert.InDelta(t, 47.2184, z.Lat, 1e-9)
	assert.InDelta(t, -1.5536, z.Lng, 1e-9)
}

func TestGeocodeCenter_NotFound(t *testing.T) {
	withNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, _, _, err := GeocodeCenter(context.Background(), "nowhere")
	assert.Error(t, err)
}

func TestGeocodeCenter_BadStatus(t *testing.T) {
	withNominatim(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, _, _, err := GeocodeCenter(context.Background(), "Nantes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
