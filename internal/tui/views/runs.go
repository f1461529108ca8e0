package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/sectorscan/internal/engine/storage"
	"github.com/rendis/sectorscan/internal/tui/styles"
)

// NavigateToRuns lists the runs stored in a database.
type NavigateToRuns struct {
	DBPath string
}

// ResumeRunMsg asks the app to reopen a stored run in the run view.
type ResumeRunMsg struct {
	DBPath string
	RunID  string
}

type runsLoadedMsg struct {
	Runs []storage.RunInfo
	Err  error
}

// RunsModel lists the runs of one database, newest first.
type RunsModel struct {
	dbPath string
	runs   []storage.RunInfo
	cursor int
	err    error
}

func NewRunsModel(dbPath string) RunsModel {
	return RunsModel{dbPath: dbPath}
}

func (m RunsModel) Init() tea.Cmd {
	path := m.dbPath
	return func() tea.Msg {
		store, err := storage.NewStore(path)
		if err != nil {
			return runsLoadedMsg{Err: err}
		}
		defer store.Close()
		runs, err := store.ListRuns()
		return runsLoadedMsg{Runs: runs, Err: err}
	}
}

func (m RunsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runsLoadedMsg:
		m.runs = msg.Runs
		m.err = msg.Err
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.runs)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.runs) {
				return m, navigate(ResumeRunMsg{DBPath: m.dbPath, RunID: m.runs[m.cursor].ID})
			}
		case "x":
			if m.cursor < len(m.runs) {
				return m, navigate(NavigateToExplorer{DBPath: m.dbPath, RunID: m.runs[m.cursor].ID})
			}
		case "esc":
			return m, navigate(NavigateToHome{})
		}
	}
	return m, nil
}

func (m RunsModel) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("Runs"))
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Render(m.dbPath))
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(styles.StatusBar.Render("esc back"))
		return styles.Border.Render(b.String())
	}
	if len(m.runs) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Muted).Italic(true).Render("No runs in this database"))
	}

	muted := lipgloss.NewStyle().Foreground(styles.Muted)
	for i, r := range m.runs {
		cursor := "  "
		style := styles.InactiveItem
		if i == m.cursor {
			cursor = "> "
			style = styles.ActiveItem
		}
		state := styles.WarningText.Render("in progress")
		if r.Done() {
			state = styles.SuccessText.Render("done")
		}
		title := fmt.Sprintf("%q in %s", r.Keyword, r.Zone)
		b.WriteString(fmt.Sprintf("%s%s  %s\n", cursor, style.Render(title), state))
		b.WriteString(muted.Render(fmt.Sprintf("    %s • queue %d • processed %d • places %d • calls %d • %s",
			r.ID[:min(8, len(r.ID))], r.Queued, r.Processed, r.Results, r.Credits, timeAgo(r.UpdatedAt))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.StatusBar.Render("enter resume • x explore results • esc back"))
	return styles.Border.Render(b.String())
}
