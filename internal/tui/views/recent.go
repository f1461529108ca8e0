package views

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/sectorscan/internal/tui/styles"
)

// RecentEntry is a database opened earlier.
type RecentEntry struct {
	Path     string
	OpenedAt time.Time
	Keyword  string
}

// ForgetRecentMsg removes a database from the recent list.
type ForgetRecentMsg struct {
	Path string
}

// RecentModel lists recently used databases, newest first.
type RecentModel struct {
	entries []RecentEntry
	missing map[string]bool
	cursor  int
}

func NewRecentModel(entries []RecentEntry) RecentModel {
	missing := make(map[string]bool)
	for _, e := range entries {
		if _, err := os.Stat(e.Path); os.IsNotExist(err) {
			missing[e.Path] = true
		}
	}
	return RecentModel{entries: entries, missing: missing}
}

func (m RecentModel) Init() tea.Cmd {
	return nil
}

func (m RecentModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = max(min(m.cursor+1, len(m.entries)-1), 0)
	case "enter":
		if m.cursor < len(m.entries) && !m.missing[m.entries[m.cursor].Path] {
			return m, navigate(NavigateToRuns{DBPath: m.entries[m.cursor].Path})
		}
	case "d":
		if m.cursor >= len(m.entries) {
			return m, nil
		}
		path := m.entries[m.cursor].Path
		m.entries = append(m.entries[:m.cursor:m.cursor], m.entries[m.cursor+1:]...)
		m.cursor = max(min(m.cursor, len(m.entries)-1), 0)
		return m, navigate(ForgetRecentMsg{Path: path})
	case "esc":
		return m, navigate(NavigateToHome{})
	}
	return m, nil
}

func (m RecentModel) View() string {
	var b strings.Builder
	muted := lipgloss.NewStyle().Foreground(styles.Muted)
	gone := lipgloss.NewStyle().Foreground(styles.Error).Strikethrough(true)

	b.WriteString(styles.Title.Render("Recent Databases") + "\n")
	if len(m.entries) == 0 {
		b.WriteString(muted.Italic(true).Render("Nothing opened yet") + "\n")
		b.WriteString(styles.StatusBar.Render("esc back"))
		return styles.Border.Render(b.String())
	}

	for i, e := range m.entries {
		style, pointer := styles.InactiveItem, "  "
		if i == m.cursor {
			style, pointer = styles.ActiveItem, "▸ "
		}
		name := style.Render(filepath.Base(e.Path))
		if m.missing[e.Path] {
			name = gone.Render(filepath.Base(e.Path))
		}
		detail := filepath.Dir(e.Path) + " • " + timeAgo(e.OpenedAt)
		if e.Keyword != "" {
			detail += fmt.Sprintf(" • %q", e.Keyword)
		}
		b.WriteString(pointer + name + "\n    " + muted.Render(detail) + "\n")
	}

	b.WriteString(styles.StatusBar.Render("enter open • d forget • esc back"))
	return styles.Border.Render(b.String())
}

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	switch d := time.Since(t); {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
