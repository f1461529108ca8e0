package views

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/sectorscan/internal/engine/results"
	"github.com/rendis/sectorscan/internal/engine/storage"
	"github.com/rendis/sectorscan/internal/model"
	"github.com/rendis/sectorscan/internal/tui/components"
	"github.com/rendis/sectorscan/internal/tui/styles"
)

type focusArea int

const (
	focusTable focusArea = iota
	focusFilter
	focusCard
	focusJSON
)

// ExplorerModel browses the deduplicated places of a stored run.
type ExplorerModel struct {
	dbPath    string
	runID     string
	places    []model.Place
	filtered  []model.Place
	raw       int
	table     table.Model
	filter    textinput.Model
	mapView   components.MapView
	pointOf   []int
	focus     focusArea
	selected  int
	width     int
	height    int
	err       error
	statusMsg string

	cardScrollY int
	cardLines   []string
	jsonScrollY int
	jsonScrollX int
	jsonLines   []string
	jsonRaw     string
}

type placesLoadedMsg struct {
	RunID  string
	Places []model.Place
	Err    error
}

// NewExplorerModel opens runID in dbPath. An empty runID selects the most
// recently updated run.
func NewExplorerModel(dbPath, runID string) ExplorerModel {
	filter := textinput.New()
	filter.Placeholder = "Type to filter..."
	filter.CharLimit = 50

	return ExplorerModel{
		dbPath:   dbPath,
		runID:    runID,
		filter:   filter,
		mapView:  components.NewMapView(40, 12),
		selected: -1,
	}
}

func (m ExplorerModel) Init() tea.Cmd {
	dbPath, runID := m.dbPath, m.runID
	return func() tea.Msg {
		store, err := storage.NewStore(dbPath)
		if err != nil {
			return placesLoadedMsg{Err: err}
		}
		defer store.Close()
		if runID == "" {
			info, err := store.LatestRun()
			if err != nil {
				return placesLoadedMsg{Err: err}
			}
			runID = info.ID
		}
		places, err := store.Places(runID)
		return placesLoadedMsg{RunID: runID, Places: places, Err: err}
	}
}

func (m ExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
	case tea.KeyMsg:
		key := msg.String()
		if key == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.focus {
		case focusTable:
			switch key {
			case "esc", "q":
				return m, navigate(NavigateToHome{})
			case "/", "tab":
				m.focus = focusFilter
				m.filter.Focus()
				return m, textinput.Blink
			case "1":
				m.focus = focusCard
				m.table.SetStyles(m.unfocusedTableStyles())
				return m, nil
			case "2":
				m.focus = focusJSON
				m.table.SetStyles(m.unfocusedTableStyles())
				return m, nil
			case "e":
				m.export()
				return m, nil
			}

		case focusFilter:
			switch key {
			case "esc", "enter", "tab":
				m.focus = focusTable
				m.filter.Blur()
				return m, nil
			}

		case focusCard, focusJSON:
			return m.scrollPanel(key), nil
		}

	case placesLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.runID = msg.RunID
		m.raw = len(msg.Places)
		m.places = results.ExportDeduplicated(msg.Places)
		m.filtered = m.places
		m.buildTable(m.filtered)
		m.updateLayout()
		m.updatePoints()
		if len(m.filtered) > 0 {
			m.selected = 0
			m.cacheDetailContent()
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusTable:
		m.table, cmd = m.table.Update(msg)
		cursor := m.table.Cursor()
		if cursor != m.selected && cursor < len(m.filtered) {
			m.selected = cursor
			m.cardScrollY = 0
			m.jsonScrollY = 0
			m.jsonScrollX = 0
			m.cacheDetailContent()
		}
	case focusFilter:
		m.filter, cmd = m.filter.Update(msg)
		m.applyFilter()
	}
	return m, cmd
}

func (m ExplorerModel) scrollPanel(key string) ExplorerModel {
	lines := m.cardLines
	scrollY := &m.cardScrollY
	if m.focus == focusJSON {
		lines = m.jsonLines
		scrollY = &m.jsonScrollY
	}
	maxScroll := max(len(lines)-m.panelHeight(), 0)

	switch key {
	case "esc":
		m.focus = focusTable
		m.table.SetStyles(m.focusedTableStyles())
	case "up", "k":
		if *scrollY > 0 {
			*scrollY--
		}
	case "down", "j":
		if *scrollY < maxScroll {
			*scrollY++
		}
	case "left", "h":
		if m.focus == focusJSON {
			m.jsonScrollX = max(m.jsonScrollX-4, 0)
		}
	case "right", "l":
		if m.focus == focusJSON {
			m.jsonScrollX += 4
		}
	case "c":
		if m.focus == focusJSON {
			m.copyToClipboard()
		}
	}
	return m
}

func (m *ExplorerModel) cacheDetailContent() {
	point := -1
	if m.selected >= 0 && m.selected < len(m.pointOf) {
		point = m.pointOf[m.selected]
	}
	m.mapView.SetSelected(point)
	if m.selected < 0 || m.selected >= len(m.filtered) {
		m.cardLines = nil
		m.jsonLines = nil
		m.jsonRaw = ""
		return
	}

	p := m.filtered[m.selected]
	m.cardLines = buildCardLines(p)

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		m.jsonLines = []string{"JSON error"}
		m.jsonRaw = ""
		return
	}
	m.jsonRaw = string(data)
	m.jsonLines = strings.Split(m.jsonRaw, "\n")
}

func buildCardLines(p model.Place) []string {
	lines := []string{p.String("name")}

	if rating := p.Float("rating"); rating > 0 {
		r := fmt.Sprintf("%.1f", rating)
		if n := p.Float("user_ratings_total"); n > 0 {
			r += fmt.Sprintf(" (%d reviews)", int(n))
		}
		lines = append(lines, r)
	}

	var types []string
	if raw, ok := p.Raw("types"); ok {
		_ = json.Unmarshal(raw, &types)
	}
	if len(types) > 0 {
		lines = append(lines, strings.Join(types, ", "))
	}
	lines = append(lines, "")

	addRow := func(label, value string) {
		if value != "" {
			lines = append(lines, fmt.Sprintf("%-10s %s", label, value))
		}
	}
	addRow("Address:", p.String("vicinity"))
	addRow("Status:", p.String("business_status"))
	if lat, lng, ok := p.Location(); ok {
		addRow("Coords:", fmt.Sprintf("%.6f, %.6f", lat, lng))
	}
	addRow("PlaceID:", p.ID())
	addRow("Sector:", p.SourceSectorID())
	return lines
}

func (m *ExplorerModel) buildTable(places []model.Place) {
	nameW, addrW, ratingW, sectorW := 28, 36, 6, 10
	if m.width > 100 {
		extra := m.width - 100
		nameW += extra * 4 / 10
		addrW += extra * 6 / 10
	}

	columns := []table.Column{
		{Title: "Name", Width: nameW},
		{Title: "Address", Width: addrW},
		{Title: "Rating", Width: ratingW},
		{Title: "Sector", Width: sectorW},
	}

	rows := make([]table.Row, len(places))
	for i, p := range places {
		rating := ""
		if r := p.Float("rating"); r > 0 {
			rating = fmt.Sprintf("%.1f", r)
		}
		rows[i] = table.Row{
			truncate(p.String("name"), nameW),
			truncate(p.String("vicinity"), addrW),
			rating,
			p.SourceSectorID(),
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(m.height/2-4, 5)),
	)
	t.SetStyles(m.focusedTableStyles())
	m.table = t
}

func (m ExplorerModel) focusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Secondary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(styles.Primary).
		Bold(true)
	return s
}

func (m ExplorerModel) unfocusedTableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.Muted).
		BorderBottom(true).
		Bold(true).
		Foreground(styles.Muted)
	s.Selected = s.Selected.
		Foreground(styles.Text).
		Background(lipgloss.Color("#333333")).
		Bold(false)
	return s
}

func (m ExplorerModel) panelHeight() int {
	return max(m.height/2-6, 6)
}

func (m *ExplorerModel) updateLayout() {
	if m.width <= 0 {
		return
	}
	m.buildTable(m.filtered)
	m.mapView.SetSize(max(m.width/4, 20), m.panelHeight())
}

// updatePoints plots the filtered places that carry a location and maps
// each row to its point, -1 when it has none.
func (m *ExplorerModel) updatePoints() {
	pts := make([]components.Point, 0, len(m.filtered))
	m.pointOf = make([]int, len(m.filtered))
	for i, p := range m.filtered {
		lat, lng, ok := p.Location()
		if !ok {
			m.pointOf[i] = -1
			continue
		}
		m.pointOf[i] = len(pts)
		pts = append(pts, components.Point{Lat: lat, Lng: lng})
	}
	m.mapView.SetPoints(pts)
}

func (m *ExplorerModel) applyFilter() {
	raw := strings.TrimSpace(m.filter.Value())
	if raw == "" {
		m.filtered = m.places
	} else {
		m.filtered = nil
		for _, p := range m.places {
			if matchAll(raw, p.String("name"), p.String("vicinity"), p.String("types"), p.SourceSectorID()) {
				m.filtered = append(m.filtered, p)
			}
		}
	}
	m.buildTable(m.filtered)
	m.updatePoints()
	m.selected = -1
	if len(m.filtered) > 0 {
		m.selected = 0
	}
	m.cacheDetailContent()
}

func (m ExplorerModel) View() string {
	if m.err != nil {
		return styles.ErrorText.Render(fmt.Sprintf("Error loading run: %v", m.err)) + "\n\n" +
			styles.StatusBar.Render("esc back")
	}

	var b strings.Builder

	b.WriteString(styles.Title.Render(fmt.Sprintf("Explorer: %d places", len(m.places))))
	muted := lipgloss.NewStyle().Foreground(styles.Muted)
	b.WriteString(muted.Render(fmt.Sprintf(" (%d raw results", m.raw)))
	if len(m.filtered) != len(m.places) {
		b.WriteString(muted.Render(fmt.Sprintf(", showing %d", len(m.filtered))))
	}
	b.WriteString(muted.Render(")"))
	b.WriteString("\n\n")

	filterStyle := muted
	if m.focus == focusFilter {
		filterStyle = lipgloss.NewStyle().Foreground(styles.Primary)
	}
	b.WriteString(filterStyle.Render("Filter: "))
	b.WriteString(m.filter.View())
	b.WriteString("\n")

	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	panelH := m.panelHeight()
	mapW := max(m.width/4, 20)
	detailW := max(m.width-mapW-4, 40)
	cardOuterW := detailW * 2 / 5
	jsonOuterW := detailW - cardOuterW - 1

	cardBox := m.panel("[1] Details", m.focus == focusCard, cardOuterW, panelH,
		m.viewCardPanel(max(cardOuterW-4, 20), panelH))
	jsonBox := m.panel("[2] JSON", m.focus == focusJSON, jsonOuterW, panelH,
		m.viewJSONPanel(max(jsonOuterW-4, 20), panelH))
	mapBox := muted.Bold(true).Render("Map") + "\n" + m.mapView.View()

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cardBox, " ", jsonBox, " ", mapBox))
	b.WriteString("\n\n")

	if m.statusMsg != "" {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Success).Render(m.statusMsg))
		b.WriteString("\n")
	}

	var statusText string
	switch m.focus {
	case focusTable:
		statusText = "↑↓ navigate • 1 details • 2 json • / filter • e export • esc back"
	case focusFilter:
		statusText = "type to filter • esc back"
	case focusCard:
		statusText = "↑↓ scroll • esc back to table"
	case focusJSON:
		statusText = "↑↓ scroll • ←→ pan • c copy json • esc back to table"
	}
	b.WriteString(styles.StatusBar.Render(statusText))

	return b.String()
}

func (m ExplorerModel) panel(title string, focused bool, outerW, h int, content string) string {
	color := styles.Muted
	if focused {
		color = styles.Primary
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(outerW - 2).
		Height(h).
		Render(content)
	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(title) + "\n" + box
}

// window clamps a scroll offset and returns the visible slice bounds.
func window(n, scrollY, h int) (int, int) {
	if scrollY > n-h {
		scrollY = n - h
	}
	if scrollY < 0 {
		scrollY = 0
	}
	return scrollY, min(scrollY+h, n)
}

func (m ExplorerModel) viewCardPanel(w, h int) string {
	label := lipgloss.NewStyle().Foreground(styles.Muted)
	if m.selected < 0 || m.selected >= len(m.filtered) || len(m.cardLines) == 0 {
		return label.Italic(true).Render("Select a place\nto view details")
	}

	start, end := window(len(m.cardLines), m.cardScrollY, h)
	var sb strings.Builder
	for i := start; i < end; i++ {
		line := truncate(m.cardLines[i], w)
		switch {
		case i == 0:
			sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(styles.Text).Render(line))
		case i == 1 && strings.Contains(line, "review"):
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.Warning).Render(line))
		case strings.HasPrefix(line, "Sector:"):
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.SectorSaved).Render(line))
		default:
			sb.WriteString(lipgloss.NewStyle().Foreground(styles.Text).Render(line))
		}
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	if start > 0 {
		sb.WriteString("\n" + label.Render("  ▲ more above"))
	}
	if end < len(m.cardLines) {
		sb.WriteString("\n" + label.Render("  ▼ more below"))
	}
	return sb.String()
}

func (m ExplorerModel) viewJSONPanel(w, h int) string {
	plain := lipgloss.NewStyle().Foreground(styles.Muted)
	if m.selected < 0 || m.selected >= len(m.filtered) || len(m.jsonLines) == 0 {
		return plain.Italic(true).Render("Select a place\nto view JSON")
	}
	keyStyle := lipgloss.NewStyle().Foreground(styles.Secondary)
	valStyle := lipgloss.NewStyle().Foreground(styles.Success)

	start, end := window(len(m.jsonLines), m.jsonScrollY, h)
	var sb strings.Builder
	for i := start; i < end; i++ {
		display := m.jsonLines[i]
		if m.jsonScrollX < len(display) {
			display = display[m.jsonScrollX:]
		} else {
			display = ""
		}
		display = truncate(display, w)

		if idx := strings.Index(display, "\":"); idx > 0 && strings.HasPrefix(strings.TrimSpace(display), "\"") {
			sb.WriteString(keyStyle.Render(display[:idx+1]))
			sb.WriteString(valStyle.Render(display[idx+1:]))
		} else {
			sb.WriteString(plain.Render(display))
		}
		if i < end-1 {
			sb.WriteString("\n")
		}
	}
	if start > 0 || end < len(m.jsonLines) {
		indicator := fmt.Sprintf("  [%d/%d]", start+1, len(m.jsonLines))
		if m.jsonScrollX > 0 {
			indicator += fmt.Sprintf(" ←%d", m.jsonScrollX)
		}
		sb.WriteString("\n" + plain.Render(indicator))
	}
	return sb.String()
}

func (m *ExplorerModel) copyToClipboard() {
	if m.jsonRaw == "" {
		return
	}
	if err := clipboard.WriteAll(m.jsonRaw); err != nil {
		m.statusMsg = fmt.Sprintf("Copy failed: %v", err)
		return
	}
	m.statusMsg = "JSON copied to clipboard"
}

// export merges the visible places into a CSV next to the database.
func (m *ExplorerModel) export() {
	dir := filepath.Dir(m.dbPath)
	base := strings.TrimSuffix(filepath.Base(m.dbPath), filepath.Ext(m.dbPath))
	csvPath := filepath.Join(dir, base+".csv")

	data := m.filtered
	if len(data) == 0 {
		data = m.places
	}
	stats, err := storage.ExportToFile(data, csvPath)
	if err != nil {
		m.statusMsg = fmt.Sprintf("Export error: %v", err)
		return
	}
	m.statusMsg = fmt.Sprintf("Exported %d rows to %s", stats.Written, stats.Path)
}
