package views

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/paulmach/orb"

	"github.com/rendis/sectorscan/internal/engine/geo"
	"github.com/rendis/sectorscan/internal/engine/run"
	"github.com/rendis/sectorscan/internal/model"
	"github.com/rendis/sectorscan/internal/tui/styles"
)

const (
	fieldKeyword = iota
	fieldZone
	fieldLat
	fieldLng
	fieldGrid
	fieldBlock
	fieldMinRadius
	fieldRPS
	fieldOutput
	fieldCount
)

var fieldLabels = [fieldCount]string{
	fieldKeyword:   "Keyword:",
	fieldZone:      "Zone:",
	fieldLat:       "Latitude:",
	fieldLng:       "Longitude:",
	fieldGrid:      "Grid (n×n):",
	fieldBlock:     "Block (km):",
	fieldMinRadius: "Min radius m:",
	fieldRPS:       "Requests/s:",
	fieldOutput:    "Output CSV:",
}

const resolveTimeout = 15 * time.Second

// SetupModel collects the parameters of a new run.
type SetupModel struct {
	base        model.SearchParams
	inputs      []textinput.Model
	focused     int
	err         string
	resolving   bool
	zones       []geo.Zone
	suggestions []geo.Zone
	suggIdx     int
}

// StartRunMsg carries resolved parameters to the run view.
type StartRunMsg struct {
	Params model.SearchParams
	Region orb.MultiPolygon
}

type setupFailedMsg struct {
	Err error
}

// NewSetupModel prefills the form from base, usually the configured defaults.
func NewSetupModel(base model.SearchParams) SetupModel {
	inputs := make([]textinput.Model, fieldCount)
	inputs[fieldKeyword] = newInput("infirmier libéral", base.Keyword, 50)
	inputs[fieldZone] = newInput("type to search zones...", base.Zone, 40)
	inputs[fieldLat] = newInput("optional", formatCoord(base.CenterLat), 15)
	inputs[fieldLng] = newInput("optional", formatCoord(base.CenterLng), 15)
	inputs[fieldGrid] = newInput("3", strconv.Itoa(base.GridSize), 5)
	inputs[fieldBlock] = newInput("70", formatFloat(base.BlockSizeKM), 8)
	inputs[fieldMinRadius] = newInput("100", formatFloat(base.MinRadiusMeters), 8)
	inputs[fieldRPS] = newInput("2", strconv.Itoa(base.RequestsPerSecond), 5)
	inputs[fieldOutput] = newInput("resultats.csv", base.OutputPath, 50)
	inputs[fieldKeyword].Focus()

	return SetupModel{
		base:    base,
		inputs:  inputs,
		zones:   geo.Zones(),
		suggIdx: -1,
	}
}

func newInput(placeholder, value string, width int) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 100
	if width > 0 {
		ti.Width = width
	}
	if value != "" && value != "0" {
		ti.SetValue(value)
	}
	return ti
}

func formatCoord(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (m SetupModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case setupFailedMsg:
		m.resolving = false
		m.err = msg.Err.Error()
		return m, nil
	case tea.KeyMsg:
		if m.resolving {
			return m, nil
		}
		switch msg.String() {
		case "esc":
			return m, navigate(NavigateToHome{})
		case "up":
			if m.focused == fieldZone && m.suggIdx > 0 {
				m.suggIdx--
				return m, nil
			}
			m.err = ""
			return m, m.focusTo(m.focused - 1)
		case "down":
			if m.focused == fieldZone && m.suggIdx >= 0 && m.suggIdx < len(m.suggestions)-1 {
				m.suggIdx++
				return m, nil
			}
			m.err = ""
			return m, m.focusTo(m.focused + 1)
		case "tab":
			m.err = ""
			if m.focused == fieldZone {
				m.selectSuggestion()
			}
			return m, m.focusTo(m.focused + 1)
		case "shift+tab":
			m.err = ""
			return m, m.focusTo(m.focused - 1)
		case "enter":
			if m.focused == fieldZone && len(m.suggestions) > 0 {
				m.selectSuggestion()
				return m, m.focusTo(m.focused + 1)
			}
			return m, m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	if m.focused == fieldZone {
		m.updateSuggestions()
	}
	return m, cmd
}

func (m *SetupModel) focusTo(idx int) tea.Cmd {
	m.inputs[m.focused].Blur()
	m.focused = (idx + fieldCount) % fieldCount
	m.suggestions = nil
	m.suggIdx = -1
	m.inputs[m.focused].Focus()
	return textinput.Blink
}

func (m *SetupModel) selectSuggestion() {
	if m.suggIdx >= 0 && m.suggIdx < len(m.suggestions) {
		m.inputs[fieldZone].SetValue(m.suggestions[m.suggIdx].Name)
	}
	m.suggestions = nil
	m.suggIdx = -1
}

func (m *SetupModel) updateSuggestions() {
	raw := strings.TrimSpace(m.inputs[fieldZone].Value())
	m.suggestions = nil
	m.suggIdx = -1
	if raw == "" {
		return
	}
	for _, z := range m.zones {
		if matchAll(raw, z.Name) {
			m.suggestions = append(m.suggestions, z)
			if len(m.suggestions) >= 5 {
				break
			}
		}
	}
	if len(m.suggestions) > 0 {
		m.suggIdx = 0
	}
}

// params reads the form on top of the base parameters.
func (m *SetupModel) params() (model.SearchParams, error) {
	p := m.base
	p.Keyword = strings.TrimSpace(m.inputs[fieldKeyword].Value())
	if p.Keyword == "" {
		return p, fmt.Errorf("keyword is required")
	}
	p.Zone = strings.TrimSpace(m.inputs[fieldZone].Value())
	p.OutputPath = strings.TrimSpace(m.inputs[fieldOutput].Value())

	lat, lng := strings.TrimSpace(m.inputs[fieldLat].Value()), strings.TrimSpace(m.inputs[fieldLng].Value())
	p.CenterLat, p.CenterLng = 0, 0
	if lat != "" || lng != "" {
		var err error
		if p.CenterLat, err = strconv.ParseFloat(lat, 64); err != nil || math.Abs(p.CenterLat) > geo.MaxCenterLat {
			return p, fmt.Errorf("latitude must be a number between -%g and %g", geo.MaxCenterLat, geo.MaxCenterLat)
		}
		if p.CenterLng, err = strconv.ParseFloat(lng, 64); err != nil || p.CenterLng < -180 || p.CenterLng > 180 {
			return p, fmt.Errorf("longitude must be a number between -180 and 180")
		}
	}

	var err error
	if p.GridSize, err = positiveInt(m.inputs[fieldGrid].Value(), "grid"); err != nil {
		return p, err
	}
	if p.RequestsPerSecond, err = positiveInt(m.inputs[fieldRPS].Value(), "requests/s"); err != nil {
		return p, err
	}
	if p.BlockSizeKM, err = positiveFloat(m.inputs[fieldBlock].Value(), "block size"); err != nil {
		return p, err
	}
	if p.MinRadiusMeters, err = positiveFloat(m.inputs[fieldMinRadius].Value(), "min radius"); err != nil {
		return p, err
	}
	return p, nil
}

func positiveInt(s, name string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return n, nil
}

func positiveFloat(s, name string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f <= 0 {
		return 0, fmt.Errorf("%s must be a positive number", name)
	}
	return f, nil
}

func (m *SetupModel) submit() tea.Cmd {
	p, err := m.params()
	if err != nil {
		m.err = err.Error()
		return nil
	}
	m.err = ""
	m.resolving = true
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		resolved, region, err := run.ResolveParams(ctx, p)
		if err != nil {
			return setupFailedMsg{Err: err}
		}
		return StartRunMsg{Params: resolved, Region: region}
	}
}

func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("New Run") + "\n\n")

	for i := range m.inputs {
		if i == fieldGrid {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("%s %s\n", styles.Label.Render(fieldLabels[i]), m.inputs[i].View()))
		if i == fieldZone && m.focused == fieldZone && len(m.suggestions) > 0 {
			b.WriteString(m.renderSuggestions())
		}
		if i == fieldLng && m.focused >= fieldLat && m.focused <= fieldLng {
			b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).
				Render("  coordinates override the zone when set") + "\n")
		}
	}

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorText.Render("  " + m.err))
	}
	if m.resolving {
		b.WriteString("\n")
		b.WriteString(styles.WarningText.Render("  resolving zone..."))
	}

	b.WriteString("\n\n")
	b.WriteString(styles.StatusBar.Render("enter start • tab next • esc back"))

	return styles.Border.Render(b.String())
}

func (m SetupModel) renderSuggestions() string {
	var sb strings.Builder
	active := lipgloss.NewStyle().Foreground(styles.Primary).Bold(true)
	inactive := lipgloss.NewStyle().Foreground(styles.Muted)
	for i, z := range m.suggestions {
		label := fmt.Sprintf("%s (%.4f, %.4f)", z.Name, z.Lat, z.Lng)
		if i == m.suggIdx {
			sb.WriteString(active.Render("  > " + label))
		} else {
			sb.WriteString(inactive.Render("    " + label))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
