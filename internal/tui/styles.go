package tui

import "github.com/charmbracelet/lipgloss"

// Palette.
const (
	ColorOK      = lipgloss.Color("42")
	ColorWarning = lipgloss.Color("214")
	ColorError   = lipgloss.Color("196")
	ColorMuted   = lipgloss.Color("246")
	ColorAccent  = lipgloss.Color("33")
)

// Status icons.
const (
	IconOK      = "✓"
	IconSkipped = "○"
	IconFailed  = "✗"
)

// Layout defaults.
const (
	defaultWidth  = 80
	defaultHeight = 20
	borderPadding = 2
)

//nolint:gochecknoglobals // Shared immutable styles.
var (
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	SubtleStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	OKStyle     = lipgloss.NewStyle().Bold(true).Foreground(ColorOK)
	WarnStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorWarning)
	ErrorStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorError)
	LabelStyle  = lipgloss.NewStyle().Bold(true)

	BoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	TableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color("240")).
				BorderBottom(true)
	TableSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))
)
