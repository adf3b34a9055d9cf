package tui

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// normalizePane forces s to be exactly width columns wide (ANSI-aware) and height
// lines tall, so the header, list and minibuffer stack without jitter.
func normalizePane(s string, width, height int) string {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}

	lines := strings.Split(s, "\n")
	if height > 0 {
		if len(lines) > height {
			lines = lines[:height]
		}
		for len(lines) < height {
			lines = append(lines, "")
		}
	}

	for i, ln := range lines {
		lines[i] = fitLine(ln, width)
	}
	return strings.Join(lines, "\n")
}

// fitLine pads or cuts one line to width columns.
func fitLine(ln string, width int) string {
	if width <= 0 {
		return ""
	}
	w := xansi.StringWidth(ln)
	if w > width {
		if width == 1 {
			return xansi.Cut(ln, 0, 1)
		}
		ln = xansi.Cut(ln, 0, width-1) + "…"
		w = xansi.StringWidth(ln)
	}
	if w < width {
		ln += strings.Repeat(" ", width-w)
	}
	return ln
}

// oneLine flattens text so it renders on a single visual row.
func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
