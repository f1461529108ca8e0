// Package styles holds the palette and the shared lipgloss styles.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	Primary   = lipgloss.Color("#0EA5A4")
	Secondary = lipgloss.Color("#38BDF8")
	Success   = lipgloss.Color("#22C55E")
	Warning   = lipgloss.Color("#FBBF24")
	Error     = lipgloss.Color("#F43F5E")
	Muted     = lipgloss.Color("#71717A")
	Text      = lipgloss.Color("#F4F4F5")
)

// Sector outcomes on the map, matching the colors stored with processed
// sectors.
var (
	SectorSplit = lipgloss.Color("#ff4b4b")
	SectorSaved = lipgloss.Color("#0df2c9")
	NextBatch   = lipgloss.Color("#3B82F6")
	Queued      = lipgloss.Color("#52525B")
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	Title        = fg(Primary).Bold(true).MarginBottom(1)
	Label        = fg(Muted).Width(14)
	ActiveItem   = fg(Primary).Bold(true)
	InactiveItem = fg(Muted)
	StatusBar    = fg(Muted).MarginTop(1)
	ErrorText    = fg(Error).Bold(true)
	WarningText  = fg(Warning)
	SuccessText  = fg(Success).Bold(true)
	Disabled     = fg(Muted).Strikethrough(true)

	Border = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Muted).
		Padding(1, 2)
)
