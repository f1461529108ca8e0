package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"

	"github.com/rendis/sectorscan/internal/engine/run"
	"github.com/rendis/sectorscan/internal/engine/scraper"
	"github.com/rendis/sectorscan/internal/model"
	"github.com/rendis/sectorscan/internal/tui/components"
	"github.com/rendis/sectorscan/internal/tui/styles"
)

// maxQueuedShown caps how many queued sectors the map outlines.
const maxQueuedShown = 50

// runShared holds data written by the auto-run goroutine. It lives behind a
// pointer so it survives bubbletea's value copies.
type runShared struct {
	mu      sync.Mutex
	cancel  context.CancelFunc
	last    scraper.BatchReport
	batches int
	failed  int
}

func (s *runShared) record(r scraper.BatchReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = r
	s.batches++
	s.failed += len(r.Failures)
}

func (s *runShared) snapshot() (scraper.BatchReport, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.batches, s.failed
}

func (s *runShared) setCancel(c context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = c
}

// stop cancels a running auto run. It reports whether one was running.
func (s *runShared) stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return false
	}
	s.cancel()
	s.cancel = nil
	return true
}

func (s *runShared) auto() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// RunModel drives a run.Session: single steps, auto run, reset and export,
// with the sector map and the counters.
type RunModel struct {
	session   *run.Session
	dbPath    string
	mapView   components.MapView
	progress  progress.Model
	shared    *runShared
	startTime time.Time
	status    string
	err       error
	width     int
	height    int
}

type runTickMsg time.Time

type stepDoneMsg struct {
	Report scraper.BatchReport
	Ran    bool
	Err    error
}

type autoDoneMsg struct {
	Err error
}

type exportDoneMsg struct {
	Path    string
	Written int
	Err     error
}

// NavigateToExplorer opens the results of a stored run.
type NavigateToExplorer struct {
	DBPath string
	RunID  string
}

func NewRunModel(session *run.Session, region orb.MultiPolygon, dbPath string) RunModel {
	m := RunModel{
		session:   session,
		dbPath:    dbPath,
		mapView:   components.NewMapView(60, 20),
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		shared:    &runShared{},
		startTime: time.Now(),
	}
	m.mapView.SetBorder(borderPoints(region))
	m.refreshMap()
	if !session.Enabled() {
		m.err = session.DisabledReason()
	}
	return m
}

func borderPoints(region orb.MultiPolygon) []components.Point {
	var pts []components.Point
	for _, poly := range region {
		for _, ring := range poly {
			for _, p := range ring {
				pts = append(pts, components.Point{Lat: p.Lat(), Lng: p.Lon()})
			}
		}
	}
	return pts
}

func (m RunModel) Init() tea.Cmd {
	return runTickCmd()
}

func runTickCmd() tea.Cmd {
	return tea.Tick(300*time.Millisecond, func(t time.Time) tea.Msg {
		return runTickMsg(t)
	})
}

func (m RunModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
	case runTickMsg:
		m.refreshMap()
		return m, runTickCmd()
	case stepDoneMsg:
		m.err = msg.Err
		switch {
		case msg.Err != nil:
		case !msg.Ran:
			m.status = "Queue empty, nothing to do"
		default:
			m.shared.record(msg.Report)
			m.status = describeBatch(msg.Report)
		}
		m.refreshMap()
		return m, nil
	case autoDoneMsg:
		m.shared.stop()
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			m.err = msg.Err
		} else if m.session.State().Empty() {
			m.status = "Run complete"
		} else {
			m.status = "Auto run paused"
		}
		m.refreshMap()
		return m, nil
	case exportDoneMsg:
		if msg.Err != nil {
			m.err = msg.Err
		} else {
			m.status = fmt.Sprintf("Exported %d rows to %s", msg.Written, msg.Path)
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m RunModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.shared.stop()
		return m, tea.Quit
	case "esc", "q":
		m.shared.stop()
		return m, navigate(NavigateToHome{})
	case "s", " ":
		if !m.session.Enabled() || m.session.Running() {
			return m, nil
		}
		m.err = nil
		m.status = "Running batch..."
		return m, m.stepCmd()
	case "a":
		if m.shared.stop() {
			m.status = "Stopping after the current batch..."
			return m, nil
		}
		if !m.session.Enabled() || m.session.Running() {
			return m, nil
		}
		m.err = nil
		m.status = "Auto run"
		return m, m.autoCmd()
	case "r":
		if m.session.Running() {
			m.status = "Wait for the current batch to finish"
			return m, nil
		}
		if err := m.session.Reset(m.session.Params()); err != nil {
			m.err = err
			return m, nil
		}
		m.err = m.session.Save()
		m.shared = &runShared{}
		m.startTime = time.Now()
		m.status = "Run reset"
		m.refreshMap()
		return m, nil
	case "e":
		return m, m.exportCmd()
	case "x":
		if m.dbPath == "" {
			return m, nil
		}
		m.shared.stop()
		return m, navigate(NavigateToExplorer{DBPath: m.dbPath, RunID: m.session.ID()})
	case "+", "=":
		m.mapView.ZoomIn()
	case "-":
		m.mapView.ZoomOut()
	case "0":
		m.mapView.ZoomReset()
	case "up":
		m.mapView.Pan(1, 0)
	case "down":
		m.mapView.Pan(-1, 0)
	case "left":
		m.mapView.Pan(0, -1)
	case "right":
		m.mapView.Pan(0, 1)
	}
	return m, nil
}

func (m RunModel) stepCmd() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		report, ran, err := session.Step(context.Background())
		return stepDoneMsg{Report: report, Ran: ran, Err: err}
	}
}

func (m RunModel) autoCmd() tea.Cmd {
	session, shared := m.session, m.shared
	ctx, cancel := context.WithCancel(context.Background())
	shared.setCancel(cancel)
	return func() tea.Msg {
		err := session.AutoRun(ctx, shared.record)
		return autoDoneMsg{Err: err}
	}
}

func (m RunModel) exportCmd() tea.Cmd {
	session := m.session
	return func() tea.Msg {
		stats, err := session.Export()
		return exportDoneMsg{Path: stats.Path, Written: stats.Written, Err: err}
	}
}

func describeBatch(r scraper.BatchReport) string {
	parts := make([]string, 0, len(r.Processed)+1)
	for _, p := range r.Processed {
		parts = append(parts, p.Status)
	}
	if len(r.Failures) > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", len(r.Failures)))
	}
	return strings.Join(parts, " • ")
}

func (m *RunModel) layout() {
	mapW := m.width - 36
	if mapW < 30 {
		mapW = 30
	}
	mapH := m.height - 10
	if mapH < 10 {
		mapH = 10
	}
	m.mapView.SetSize(mapW, mapH)
}

// refreshMap rebuilds the map layers from the live state.
func (m *RunModel) refreshMap() {
	st := m.session.State()
	processed := st.Processed()
	queue := st.Queue()
	batch := m.session.BatchSize()

	rects := make([]components.Rect, 0, len(processed)+maxQueuedShown)
	for _, p := range processed {
		layer := components.LayerSaved
		if p.Action == model.ActionSplit {
			layer = components.LayerSplit
		}
		rects = append(rects, components.Rect{Bounds: p.Bounds, Layer: layer})
	}
	for i, s := range queue {
		if i >= maxQueuedShown {
			break
		}
		layer := components.LayerQueued
		if i < batch {
			layer = components.LayerNextBatch
		}
		rects = append(rects, components.Rect{Bounds: s.Bounds, Layer: layer})
	}
	m.mapView.SetRects(rects)

	places := st.Results()
	pts := make([]components.Point, 0, len(places))
	for _, p := range places {
		if lat, lng, ok := p.Location(); ok {
			pts = append(pts, components.Point{Lat: lat, Lng: lng})
		}
	}
	m.mapView.SetPoints(pts)
}

func (m RunModel) View() string {
	var b strings.Builder

	params := m.session.Params()
	where := params.Zone
	if where == "" {
		where = fmt.Sprintf("%.4f, %.4f", params.CenterLat, params.CenterLng)
	}
	b.WriteString(styles.Title.Render(fmt.Sprintf("Run: %q in %s", params.Keyword, where)))
	b.WriteString("\n")

	side := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Muted).
		Padding(0, 1).
		Width(32).
		Render(m.renderStats() + "\n" + m.renderLegend())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, side, " ", m.mapView.View()))
	b.WriteString("\n")

	counts := m.session.State().Counts()
	var pct float64
	if total := counts.Processed + counts.Queued; total > 0 {
		pct = float64(counts.Processed) / float64(total)
	}
	b.WriteString(m.progress.ViewAs(pct))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.ErrorText.Render("Error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Text).Render(truncate(m.status, max(m.width-2, 40))))
	}
	b.WriteString("\n")
	b.WriteString(m.renderControls())

	return b.String()
}

func (m RunModel) renderStats() string {
	var sb strings.Builder
	counts := m.session.State().Counts()
	_, batches, failed := m.shared.snapshot()

	statLabel := lipgloss.NewStyle().Foreground(styles.Muted).Width(12)
	statVal := lipgloss.NewStyle().Foreground(styles.Text).Bold(true)
	row := func(label, value string) {
		sb.WriteString(statLabel.Render(label))
		sb.WriteString(statVal.Render(value))
		sb.WriteString("\n")
	}

	row("Queue:", fmt.Sprintf("%d", counts.Queued))
	row("Processed:", fmt.Sprintf("%d", counts.Processed))
	row("Places:", fmt.Sprintf("%d", counts.Results))
	row("API calls:", fmt.Sprintf("%d", counts.Credits))
	row("Batches:", fmt.Sprintf("%d", batches))
	if failed > 0 {
		sb.WriteString(statLabel.Render("Failed:"))
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.Error).Bold(true).Render(fmt.Sprintf("%d", failed)))
		sb.WriteString("\n")
	}
	row("Phase:", m.session.Phase().String())
	row("Elapsed:", time.Since(m.startTime).Truncate(time.Second).String())
	return sb.String()
}

func (m RunModel) renderLegend() string {
	swatch := func(c lipgloss.Color, label string) string {
		return lipgloss.NewStyle().Foreground(c).Render("■ ") +
			lipgloss.NewStyle().Foreground(styles.Muted).Render(label) + "\n"
	}
	return swatch(styles.SectorSplit, "split") +
		swatch(styles.SectorSaved, "saved") +
		swatch(styles.NextBatch, "next batch") +
		swatch(styles.Queued, "queued") +
		swatch(styles.Warning, "place")
}

func (m RunModel) renderControls() string {
	enabled := m.session.Enabled()
	ctl := func(label string, active bool) string {
		if !active {
			return styles.Disabled.Render(label)
		}
		return label
	}
	auto := "a auto"
	if m.shared.auto() {
		auto = "a stop"
	}
	parts := []string{
		ctl("s step", enabled),
		ctl(auto, enabled),
		"r reset",
		"e export",
		ctl("x explore", m.dbPath != ""),
		"+/- zoom",
		"esc back",
	}
	return styles.StatusBar.Render(strings.Join(parts, " • "))
}
