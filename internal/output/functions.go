package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/tanq16/ferry/internal/utils"
	"golang.org/x/term"
)

// ProgressBar renders current/total as a fixed-width bar. An unknown total
// renders the byte count alone.
func ProgressBar(current, total uint64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total == 0 {
		return fmt.Sprintf("%s %s ", StyleSymbols["bullet"], utils.FormatBytes(current))
	}
	if current > total {
		current = total
	}
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"]
	bar += strings.Repeat(StyleSymbols["hline"], filled)
	if filled < width {
		bar += strings.Repeat(" ", width-filled)
	}
	bar += StyleSymbols["bullet"]
	return fmt.Sprintf("%s %.1f%% %s ", bar, percent*100, StyleSymbols["bullet"])
}

func getTerminalHeight() int {
	_, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || height <= 0 {
		return 24 // Default fallback height
	}
	return height
}

// IsTerminal reports whether stdout can take cursor movement.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
