package util

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// IsTerminal checks if stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ShouldUseColors determines if coloured output should be used.
// See https://no-color.org/.
func ShouldUseColors() bool {
	if noColor := os.Getenv("NO_COLOR"); noColor != "" {
		return false
	}

	if forceColor := os.Getenv("FORCE_COLOR"); forceColor != "" {
		return forceColor != "0"
	}

	if ferryColors := os.Getenv("FERRY_FORCE_COLORS"); ferryColors != "" {
		return strings.ToLower(ferryColors) == "true"
	}

	return IsTerminal()
}
