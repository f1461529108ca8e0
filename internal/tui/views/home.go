package views

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/sectorscan/internal/tui/styles"
)

// Navigation messages
type NavigateToHome struct{}
type NavigateToSetup struct{}
type NavigateToLoad struct{}
type NavigateToRecent struct{}

type homeEntry struct {
	hotkey string
	title  string
	hint   string
	target tea.Msg // nil quits
}

// HomeModel is the main menu.
type HomeModel struct {
	entries  []homeEntry
	cursor   int
	version  string
	disabled error
	notice   error
}

// NewHomeModel builds the main menu. A non-nil disabled error is shown as a
// banner: runs can still be set up and explored but not advanced.
func NewHomeModel(version string, disabled error) HomeModel {
	return HomeModel{
		version:  version,
		disabled: disabled,
		entries: []homeEntry{
			{"n", "New Run", "decompose an area for a keyword", NavigateToSetup{}},
			{"l", "Open Database", "resume or explore stored runs", NavigateToLoad{}},
			{"r", "Recent Databases", "reopen a recently used file", NavigateToRecent{}},
			{"q", "Quit", "leave sectorscan", nil},
		},
	}
}

// WithNotice shows err under the menu until the next navigation.
func (m HomeModel) WithNotice(err error) HomeModel {
	m.notice = err
	return m
}

func (m HomeModel) Init() tea.Cmd {
	return nil
}

func (m HomeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch k := key.String(); k {
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = min(m.cursor+1, len(m.entries)-1)
	case "enter":
		return m, m.activate(m.cursor)
	default:
		for i, e := range m.entries {
			if e.hotkey == k {
				m.cursor = i
				return m, m.activate(i)
			}
		}
	}
	return m, nil
}

func (m HomeModel) activate(i int) tea.Cmd {
	if m.entries[i].target == nil {
		return tea.Quit
	}
	return navigate(m.entries[i].target)
}

func (m HomeModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("sectorscan") + " " + styles.InactiveItem.Render(m.version) + "\n")
	b.WriteString(lipgloss.NewStyle().Foreground(styles.Secondary).Italic(true).
		Render("Adaptive sector search for places") + "\n\n")

	hotkey := lipgloss.NewStyle().Foreground(styles.Secondary).Bold(true)
	for i, e := range m.entries {
		pointer, title := "  ", styles.InactiveItem.Render(e.title)
		if i == m.cursor {
			pointer, title = "▸ ", styles.ActiveItem.Render(e.title)
		}
		b.WriteString(pointer + hotkey.Render(e.hotkey) + "  " + title +
			styles.InactiveItem.Render("  "+e.hint) + "\n")
	}

	if m.notice != nil {
		b.WriteString("\n" + styles.ErrorText.Render("Error: "+m.notice.Error()) + "\n")
	}
	if m.disabled != nil {
		b.WriteString("\n" + styles.WarningText.Render("Search disabled: "+m.disabled.Error()) + "\n")
	}

	b.WriteString(styles.StatusBar.Render("↑↓ move • enter open • q quit"))
	return styles.Border.Render(b.String())
}

func navigate(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}
