package views

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/sectorscan/internal/tui/styles"
)

const pickerPage = 15

type pickerItem struct {
	name    string
	dir     bool
	size    int64
	modTime time.Time
}

// FilePickerModel browses directories for run databases.
type FilePickerModel struct {
	home   string
	dir    string
	items  []pickerItem
	cursor int
	err    error
}

// NewFilePickerModel starts in home, falling back to the working directory
// when home does not exist yet.
func NewFilePickerModel(home string) FilePickerModel {
	if fi, err := os.Stat(home); err != nil || !fi.IsDir() {
		home, _ = os.Getwd()
	}
	m := FilePickerModel{home: home}
	m.chdir(home)
	return m
}

func isDatabase(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	}
	return false
}

// listDir returns subdirectories by name, then databases newest first.
// Hidden entries are skipped.
func listDir(dir string) ([]pickerItem, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var items []pickerItem
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || (!e.IsDir() && !isDatabase(e.Name())) {
			continue
		}
		it := pickerItem{name: e.Name(), dir: e.IsDir()}
		if info, err := e.Info(); err == nil {
			it.size, it.modTime = info.Size(), info.ModTime()
		}
		items = append(items, it)
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.dir != b.dir {
			return a.dir
		}
		if a.dir {
			return a.name < b.name
		}
		return a.modTime.After(b.modTime)
	})
	return items, nil
}

func (m *FilePickerModel) chdir(dir string) {
	items, err := listDir(dir)
	m.dir, m.items, m.err, m.cursor = dir, items, err, 0
}

func (m FilePickerModel) Init() tea.Cmd {
	return nil
}

func (m FilePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = max(min(m.cursor+1, len(m.items)-1), 0)
	case "enter", "right":
		if m.cursor >= len(m.items) {
			return m, nil
		}
		it := m.items[m.cursor]
		target := filepath.Join(m.dir, it.name)
		if it.dir {
			m.chdir(target)
			return m, nil
		}
		return m, navigate(NavigateToRuns{DBPath: target})
	case "backspace", "left":
		if parent := filepath.Dir(m.dir); parent != m.dir {
			m.chdir(parent)
		}
	case "~":
		m.chdir(m.home)
	case "esc":
		return m, navigate(NavigateToHome{})
	}
	return m, nil
}

func (m FilePickerModel) View() string {
	var b strings.Builder
	muted := lipgloss.NewStyle().Foreground(styles.Muted)

	b.WriteString(styles.Title.Render("Open Database") + "\n")
	b.WriteString(muted.Render(m.dir) + "\n\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.ErrorText.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	case len(m.items) == 0:
		b.WriteString(muted.Italic(true).Render("Nothing to open here") + "\n")
	}

	start := max(0, m.cursor-pickerPage+3)
	end := min(start+pickerPage, len(m.items))
	for i := start; i < end; i++ {
		it := m.items[i]
		style, pointer := styles.InactiveItem, "  "
		if i == m.cursor {
			style, pointer = styles.ActiveItem, "▸ "
		}
		if it.dir {
			b.WriteString(pointer + style.Render(it.name+"/") + "\n")
			continue
		}
		b.WriteString(pointer + style.Render(it.name) +
			muted.Render(fmt.Sprintf("  %s  %s", humanSize(it.size), timeAgo(it.modTime))) + "\n")
	}

	b.WriteString(styles.StatusBar.Render("enter open • ← parent • ~ data dir • esc back"))
	return styles.Border.Render(b.String())
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
