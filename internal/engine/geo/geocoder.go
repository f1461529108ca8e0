package geo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// nominatimURL is a variable so tests can point it at a local server.
var nominatimURL = "https://nominatim.openstreetmap.org/search"

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// GeocodeCenter resolves a free-form place name to a center point using the
// OSM Nominatim API.
func GeocodeCenter(ctx context.Context, query string) (lat, lng float64, name string, err error) {
	u := nominatimURL + "?" + url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, "", eris.Wrap(err, "geocode: create request")
	}
	req.Header.Set("User-Agent", "sectorscan/0.1 (sector search)")

	resp, err := client.Do(req)
	if err != nil {
		return 0, 0, "", eris.Wrap(err, "geocode: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return 0, 0, "", eris.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return 0, 0, "", eris.Wrap(err, "geocode: decode response")
	}
	if len(results) == 0 {
		return 0, 0, "", eris.Errorf("geocode: %q not found", query)
	}

	lat, err = strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return 0, 0, "", eris.Wrap(err, "geocode: parse lat")
	}
	lng, err = strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return 0, 0, "", eris.Wrap(err, "geocode: parse lon")
	}
	return lat, lng, results[0].DisplayName, nil
}

// ResolveCenter returns a preset zone when name matches one, and otherwise
// asks the geocoder.
func ResolveCenter(ctx context.Context, name string) (Zone, error) {
	if z, ok := LookupZone(name); ok {
		return z, nil
	}
	lat, lng, display, err := GeocodeCenter(ctx, name)
	if err != nil {
		return Zone{}, err
	}
	return Zone{Name: display, Lat: lat, Lng: lng}, nil
}
