package model

import (
	"fmt"
	"time"
)

// Bounds is a latitude/longitude rectangle in WGS84 degrees.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// Center returns the midpoint of the rectangle.
func (b Bounds) Center() (lat, lng float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// Valid reports whether both ranges are non-empty.
func (b Bounds) Valid() bool {
	return b.MinLat < b.MaxLat && b.MinLng < b.MaxLng
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%.5f, %.5f]-[%.5f, %.5f]", b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
}

// Sector is a rectangular cell of the search space waiting to be queried.
type Sector struct {
	ID string `json:"id"`
	Bounds
}

// SectorID formats the n-th issued sector identifier.
func SectorID(n int) string {
	return fmt.Sprintf("S-%06d", n)
}

// Action is the decision taken for a queried sector.
type Action string

const (
	ActionSave      Action = "save"
	ActionSplit     Action = "split"
	ActionSaveDense Action = "save_dense"
)

// Terminal reports whether the action commits results.
func (a Action) Terminal() bool {
	return a == ActionSave || a == ActionSaveDense
}

// Status colors used by the map renderers.
const (
	ColorSplit = "#ff4b4b"
	ColorSaved = "#0df2c9"
)

// ProcessedSector is the immutable record of a completed sector.
type ProcessedSector struct {
	Sector
	Action      Action    `json:"action"`
	Label       string    `json:"label"`
	Color       string    `json:"color"`
	Status      string    `json:"status"`
	Count       int       `json:"count"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewProcessed builds the record for a sector that finished with the given
// action. count is the number of places seen by the decisive query.
func NewProcessed(s Sector, action Action, count int, at time.Time) ProcessedSector {
	p := ProcessedSector{
		Sector:      s,
		Action:      action,
		Count:       count,
		CompletedAt: at,
	}
	if action == ActionSplit {
		p.Label = "Split"
		p.Color = ColorSplit
		p.Status = fmt.Sprintf("Split %s (%d+)", s.ID, count)
	} else {
		p.Label = "Saved"
		p.Color = ColorSaved
		p.Status = fmt.Sprintf("Saved %s (%d)", s.ID, count)
	}
	return p
}
