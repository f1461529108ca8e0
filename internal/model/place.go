package model

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
)

const (
	// IdentityField is the stable key used to deduplicate places.
	IdentityField = "place_id"
	// SourceSectorField records which sector discovered a place.
	SourceSectorField = "source_sector_id"
)

// Place is one provider record. Fields keep their provider order and raw
// JSON encoding so unknown attributes survive merge, storage and export.
type Place struct {
	keys   []string
	fields map[string]json.RawMessage
}

// ParsePlace decodes a JSON object into a Place.
func ParsePlace(data []byte) (Place, error) {
	var p Place
	if err := json.Unmarshal(data, &p); err != nil {
		return Place{}, err
	}
	return p, nil
}

// ID returns the identity key, or "" when the record has none.
func (p Place) ID() string {
	return p.String(IdentityField)
}

// SourceSectorID returns the sector that discovered the place.
func (p Place) SourceSectorID() string {
	return p.String(SourceSectorField)
}

// Keys returns field names in insertion order.
func (p Place) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of fields.
func (p Place) Len() int {
	return len(p.keys)
}

// Raw returns the undecoded value of a field.
func (p Place) Raw(key string) (json.RawMessage, bool) {
	v, ok := p.fields[key]
	return v, ok
}

// String returns a field as text. JSON strings are unquoted, other values
// are returned in their JSON form.
func (p Place) String(key string) string {
	raw, ok := p.fields[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return ""
	}
	return string(raw)
}

// Float returns a numeric field, or 0 when absent or not a number.
func (p Place) Float(key string) float64 {
	raw, ok := p.fields[key]
	if !ok {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	f, _ = strconv.ParseFloat(p.String(key), 64)
	return f
}

// Location returns geometry.location as reported by the provider.
func (p Place) Location() (lat, lng float64, ok bool) {
	raw, found := p.fields["geometry"]
	if !found {
		return 0, 0, false
	}
	var g struct {
		Location *struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	}
	if err := json.Unmarshal(raw, &g); err != nil || g.Location == nil {
		return 0, 0, false
	}
	return g.Location.Lat, g.Location.Lng, true
}

// Set stores a raw JSON value. Existing keys keep their position.
func (p *Place) Set(key string, raw json.RawMessage) {
	if p.fields == nil {
		p.fields = make(map[string]json.RawMessage)
	}
	if _, ok := p.fields[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.fields[key] = raw
}

// SetString stores a string value.
func (p *Place) SetString(key, value string) {
	b, _ := json.Marshal(value)
	p.Set(key, b)
}

// Clone returns a deep copy.
func (p Place) Clone() Place {
	c := Place{
		keys:   make([]string, len(p.keys)),
		fields: make(map[string]json.RawMessage, len(p.fields)),
	}
	copy(c.keys, p.keys)
	for k, v := range p.fields {
		c.fields[k] = append(json.RawMessage(nil), v...)
	}
	return c
}

// MarshalJSON writes the fields as an object in insertion order.
func (p Place) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		v := p.fields[k]
		if len(v) == 0 {
			v = json.RawMessage("null")
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, remembering key order.
func (p *Place) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "place: read opening token")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return eris.New("place: expected a JSON object")
	}

	p.keys = nil
	p.fields = make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "place: read key")
		}
		key, ok := tok.(string)
		if !ok {
			return eris.Errorf("place: unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return eris.Wrapf(err, "place: decode field %q", key)
		}
		p.Set(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "place: read closing token")
	}
	return nil
}
