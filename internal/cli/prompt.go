package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptResult contains the result of a user prompt interaction.
type PromptResult struct {
	// Accepted is true if the user accepted the prompt (typed "y" or "yes").
	Accepted bool
	// Cancelled is true if reading input failed.
	Cancelled bool
}

// ConfirmDelete asks the user to confirm deleting ids. It declines without
// prompting when interactive is false. Empty input defaults to "No".
func ConfirmDelete(writer io.Writer, reader io.Reader, ids []int64, interactive bool) PromptResult {
	if !interactive {
		return PromptResult{Accepted: false}
	}

	_, _ = fmt.Fprintf(writer, "? Delete %d record(s) %v? [y/N] ", len(ids), ids)

	scanner := bufio.NewScanner(reader)
	if !scanner.Scan() {
		if scanner.Err() != nil {
			return PromptResult{Cancelled: true}
		}
		return PromptResult{Accepted: false}
	}

	switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
	case "y", "yes":
		return PromptResult{Accepted: true}
	default:
		return PromptResult{Accepted: false}
	}
}
