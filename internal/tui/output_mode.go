package tui

import (
	"os"

	"golang.org/x/term"
)

// OutputMode selects how results are rendered.
type OutputMode int

const (
	// OutputModePlain is uncoloured text, used for pipes and files.
	OutputModePlain OutputMode = iota
	// OutputModeStyled is lipgloss-styled text without interaction.
	OutputModeStyled
	// OutputModeInteractive runs a Bubble Tea program.
	OutputModeInteractive
)

// String returns the mode name.
func (m OutputMode) String() string {
	switch m {
	case OutputModePlain:
		return "plain"
	case OutputModeStyled:
		return "styled"
	case OutputModeInteractive:
		return "interactive"
	default:
		return "unknown"
	}
}

// IsTTY reports whether stdout is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// DetectOutputMode picks a mode from flags and the environment. noColor and
// NO_COLOR force plain output; interactive requires a TTY.
func DetectOutputMode(forceColor, noColor, interactive bool) OutputMode {
	return detectOutputMode(forceColor, noColor, interactive, IsTTY(), os.Getenv("NO_COLOR") != "")
}

func detectOutputMode(forceColor, noColor, interactive, tty, noColorEnv bool) OutputMode {
	switch {
	case noColor || (noColorEnv && !forceColor):
		return OutputModePlain
	case interactive && tty:
		return OutputModeInteractive
	case tty || forceColor:
		return OutputModeStyled
	default:
		return OutputModePlain
	}
}
