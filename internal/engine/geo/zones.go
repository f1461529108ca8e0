package geo

import (
	"sort"
	"strings"
)

// Zone is a named search center.
type Zone struct {
	Name string
	Lat  float64
	Lng  float64
}

var presetZones = []Zone{
	// Europe
	{"Paris, France", 48.8566, 2.3522},
	{"Lyon, France", 45.7640, 4.8357},
	{"Marseille, France", 43.2965, 5.3698},
	{"London, UK", 51.5074, -0.1278},
	{"Berlin, Germany", 52.5200, 13.4050},
	{"Madrid, Spain", 40.4168, -3.7038},
	{"Rome, Italy", 41.9028, 12.4964},
	// North America
	{"New York, USA", 40.7128, -74.0060},
	{"Los Angeles, USA", 34.0522, -118.2437},
	{"Chicago, USA", 41.8781, -87.6298},
	{"Toronto, Canada", 43.6532, -79.3832},
	// Other
	{"Tokyo, Japan", 35.6762, 139.6503},
	{"Sydney, Australia", -33.8688, 151.2093},
	{"Dubai, UAE", 25.2048, 55.2708},
}

// DefaultZone is used when no center is configured.
const DefaultZone = "Paris, France"

// Zones returns the preset centers sorted by name.
func Zones() []Zone {
	out := make([]Zone, len(presetZones))
	copy(out, presetZones)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// LookupZone finds a preset by full name or by its city part, ignoring case.
func LookupZone(name string) (Zone, bool) {
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return Zone{}, false
	}
	for _, z := range presetZones {
		full := strings.ToLower(z.Name)
		city, _, _ := strings.Cut(full, ",")
		if full == q || city == q {
			return z, true
		}
	}
	return Zone{}, false
}
