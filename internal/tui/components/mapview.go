package components

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/sectorscan/internal/model"
	"github.com/rendis/sectorscan/internal/tui/styles"
)

// Point is a geographic position to plot.
type Point struct {
	Lat float64
	Lng float64
}

// Layer orders what the map draws. Higher layers win when several share a
// terminal cell.
type Layer int

const (
	LayerBorder Layer = iota
	LayerQueued
	LayerNextBatch
	LayerSaved
	LayerSplit
	LayerPoints
	LayerSelected
	layerCount
)

// Rect is a sector outline drawn on a given layer.
type Rect struct {
	Bounds model.Bounds
	Layer  Layer
}

var layerStyles = [layerCount]lipgloss.Style{
	LayerBorder:    lipgloss.NewStyle().Foreground(styles.Muted),
	LayerQueued:    lipgloss.NewStyle().Foreground(styles.Queued),
	LayerNextBatch: lipgloss.NewStyle().Foreground(styles.NextBatch),
	LayerSaved:     lipgloss.NewStyle().Foreground(styles.SectorSaved),
	LayerSplit:     lipgloss.NewStyle().Foreground(styles.SectorSplit),
	LayerPoints:    lipgloss.NewStyle().Foreground(styles.Warning),
	LayerSelected:  lipgloss.NewStyle().Foreground(styles.Primary).Bold(true),
}

const (
	minZoom = 0.5
	maxZoom = 20
)

// MapView renders sector outlines and result points with Braille
// characters. Each terminal cell holds a 2x4 dot matrix.
type MapView struct {
	width    int
	height   int
	rects    []Rect
	points   []Point
	border   []Point
	selected int

	frame  model.Bounds // area before zoom and pan
	zoom   float64
	panLat float64
	panLng float64
}

func NewMapView(width, height int) MapView {
	return MapView{
		width:    width,
		height:   height,
		selected: -1,
		zoom:     1,
	}
}

func (m *MapView) SetSize(width, height int) {
	m.width, m.height = width, height
}

// SetBorder sets a region outline. Consecutive vertices are joined; long
// jumps between rings are skipped when drawing.
func (m *MapView) SetBorder(points []Point) {
	m.border = points
	m.refit()
}

// SetRects replaces the sector outlines.
func (m *MapView) SetRects(rects []Rect) {
	m.rects = rects
	m.refit()
}

// SetPoints replaces the plotted places.
func (m *MapView) SetPoints(points []Point) {
	m.points = points
	m.refit()
}

// SetSelected highlights the point at idx, or nothing when idx is -1.
func (m *MapView) SetSelected(idx int) {
	m.selected = idx
}

func (m *MapView) ZoomIn() {
	m.zoom = math.Min(m.zoom*1.5, maxZoom)
}

func (m *MapView) ZoomOut() {
	m.zoom = math.Max(m.zoom/1.5, minZoom)
}

func (m *MapView) ZoomReset() {
	m.zoom = 1
	m.panLat, m.panLng = 0, 0
}

// Pan moves the view by a tenth of the visible span per step.
func (m *MapView) Pan(dLat, dLng float64) {
	m.panLat += dLat * (m.frame.MaxLat - m.frame.MinLat) * 0.1 / m.zoom
	m.panLng += dLng * (m.frame.MaxLng - m.frame.MinLng) * 0.1 / m.zoom
}

// visible returns the frame after zoom and pan.
func (m MapView) visible() model.Bounds {
	cLat, cLng := m.frame.Center()
	cLat += m.panLat
	cLng += m.panLng
	hLat := (m.frame.MaxLat - m.frame.MinLat) / 2 / m.zoom
	hLng := (m.frame.MaxLng - m.frame.MinLng) / 2 / m.zoom
	return model.Bounds{MinLat: cLat - hLat, MinLng: cLng - hLng, MaxLat: cLat + hLat, MaxLng: cLng + hLng}
}

// refit frames every rect, border vertex and point with a 5% margin.
func (m *MapView) refit() {
	var b model.Bounds
	seen := false
	grow := func(lat, lng float64) {
		if !seen {
			b = model.Bounds{MinLat: lat, MinLng: lng, MaxLat: lat, MaxLng: lng}
			seen = true
			return
		}
		b.MinLat, b.MaxLat = math.Min(b.MinLat, lat), math.Max(b.MaxLat, lat)
		b.MinLng, b.MaxLng = math.Min(b.MinLng, lng), math.Max(b.MaxLng, lng)
	}
	for _, r := range m.rects {
		grow(r.Bounds.MinLat, r.Bounds.MinLng)
		grow(r.Bounds.MaxLat, r.Bounds.MaxLng)
	}
	for _, p := range m.border {
		grow(p.Lat, p.Lng)
	}
	for _, p := range m.points {
		grow(p.Lat, p.Lng)
	}
	if !seen {
		return
	}
	padLat := math.Max((b.MaxLat-b.MinLat)*0.05, 0.01)
	padLng := math.Max((b.MaxLng-b.MinLng)*0.05, 0.01)
	m.frame = model.Bounds{
		MinLat: b.MinLat - padLat,
		MinLng: b.MinLng - padLng,
		MaxLat: b.MaxLat + padLat,
		MaxLng: b.MaxLng + padLng,
	}
}

// projection maps coordinates to dot positions, keeping the geographic
// aspect ratio and centering the drawing.
type projection struct {
	view     model.Bounds
	w, h     int
	offX     int
	offY     int
	lngRange float64
	latRange float64
}

func newProjection(view model.Bounds, dotW, dotH int) (projection, bool) {
	p := projection{
		view:     view,
		w:        dotW,
		h:        dotH,
		latRange: view.MaxLat - view.MinLat,
		lngRange: view.MaxLng - view.MinLng,
	}
	if p.latRange <= 0 || p.lngRange <= 0 {
		return p, false
	}
	// Braille dots are roughly square, so only the cos(lat) shrink of
	// longitude needs correcting.
	midLat, _ := view.Center()
	geoAspect := p.lngRange * math.Cos(midLat*math.Pi/180) / p.latRange
	if geoAspect < float64(dotW)/float64(dotH) {
		p.w = max(int(float64(dotH)*geoAspect), 4)
		p.offX = (dotW - p.w) / 2
	} else {
		p.h = max(int(float64(dotW)/geoAspect), 4)
		p.offY = (dotH - p.h) / 2
	}
	return p, true
}

func (p projection) dot(lat, lng float64) (int, int) {
	x := p.offX + int((lng-p.view.MinLng)/p.lngRange*float64(p.w-1))
	y := p.offY + int((p.view.MaxLat-lat)/p.latRange*float64(p.h-1))
	return x, y
}

func (m MapView) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	c := newCanvas(m.width, m.height)
	proj, ok := newProjection(m.visible(), c.dotW(), c.dotH())
	if !ok {
		return c.String()
	}

	for i := range m.border {
		next := m.border[(i+1)%len(m.border)]
		x0, y0 := proj.dot(m.border[i].Lat, m.border[i].Lng)
		x1, y1 := proj.dot(next.Lat, next.Lng)
		if abs(x1-x0) > c.dotW()/2 || abs(y1-y0) > c.dotH()/2 {
			continue
		}
		c.line(LayerBorder, x0, y0, x1, y1)
	}

	for _, r := range m.rects {
		x0, y0 := proj.dot(r.Bounds.MaxLat, r.Bounds.MinLng)
		x1, y1 := proj.dot(r.Bounds.MinLat, r.Bounds.MaxLng)
		c.line(r.Layer, x0, y0, x1, y0)
		c.line(r.Layer, x1, y0, x1, y1)
		c.line(r.Layer, x1, y1, x0, y1)
		c.line(r.Layer, x0, y1, x0, y0)
	}

	for i, pt := range m.points {
		x, y := proj.dot(pt.Lat, pt.Lng)
		if i == m.selected {
			c.set(LayerSelected, x, y)
		} else {
			c.set(LayerPoints, x, y)
		}
	}
	return c.String()
}

// dotBits[row][col] is the Braille bit of a dot within its cell.
var dotBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// canvas stores one Braille dot mask per cell and layer.
type canvas struct {
	cols, rows int
	cells      [layerCount][]uint8
}

func newCanvas(cols, rows int) *canvas {
	c := &canvas{cols: cols, rows: rows}
	for l := range c.cells {
		c.cells[l] = make([]uint8, cols*rows)
	}
	return c
}

func (c *canvas) dotW() int { return c.cols * 2 }
func (c *canvas) dotH() int { return c.rows * 4 }

func (c *canvas) set(l Layer, x, y int) {
	if x < 0 || y < 0 || x >= c.dotW() || y >= c.dotH() {
		return
	}
	c.cells[l][(y/4)*c.cols+x/2] |= dotBits[y%4][x%2]
}

// line plots a segment with Bresenham's algorithm.
func (c *canvas) line(l Layer, x0, y0, x1, y1 int) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 >= x1 {
		sx = -1
	}
	if y0 >= y1 {
		sy = -1
	}
	e := dx + dy
	for {
		c.set(l, x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// String renders each cell with its highest non-empty layer.
func (c *canvas) String() string {
	var sb strings.Builder
	for row := 0; row < c.rows; row++ {
		if row > 0 {
			sb.WriteByte('\n')
		}
		for col := 0; col < c.cols; col++ {
			i := row*c.cols + col
			drawn := false
			for l := layerCount - 1; l >= 0; l-- {
				if mask := c.cells[l][i]; mask != 0 {
					sb.WriteString(layerStyles[l].Render(string(rune(0x2800 + int(mask)))))
					drawn = true
					break
				}
			}
			if !drawn {
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String()
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
