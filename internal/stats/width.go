package stats

import (
	"os"

	"golang.org/x/term"
)

const (
	terminalWidthBackup = 80
	minCurveWidth       = 10
)

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}
