package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

const (
	modalMaxWidth = 72
	modalMinWidth = 24
)

type confirmFocus int

const (
	confirmFocusConfirm confirmFocus = iota
	confirmFocusCancel
)

func modalWidth(width int) int {
	w := width - 4
	if w > modalMaxWidth {
		w = modalMaxWidth
	}
	if w < modalMinWidth {
		w = modalMinWidth
	}
	return w
}

// modalBodyWidth is the content width inside the modal's padding and border.
func modalBodyWidth(width int) int {
	return modalWidth(width) - 4
}

func renderModalBox(width int, title, content string) string {
	w := modalWidth(width)
	bodyW := w - 4

	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(colorSurfaceFg).
		Background(colorModalHeadBg).
		Width(bodyW).
		Render(" " + xansi.Truncate(oneLine(title), bodyW-1, "…"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1).
		Width(w - 2)

	return box.Render(head + "\n\n" + content)
}

func renderConfirmModal(width int, title, body, confirmLabel, cancelLabel string, destructive bool, focus confirmFocus) string {
	// No borders on the buttons: nested borders inside a colored modal leave artifacts on
	// some terminals.
	btnBase := lipgloss.NewStyle().
		Padding(0, 1).
		Foreground(colorSurfaceFg).
		Background(colorControlBg)
	btnActive := btnBase.
		Foreground(colorSelectedFg).
		Background(colorSelectedBg).
		Bold(true)
	if destructive {
		btnActive = btnActive.Foreground(colorDangerFg).Background(colorDangerBg)
	}

	confirm := btnBase.Render(confirmLabel)
	cancel := btnBase.Render(cancelLabel)
	switch focus {
	case confirmFocusConfirm:
		confirm = btnActive.Render(confirmLabel)
	case confirmFocusCancel:
		cancel = btnActive.Render(cancelLabel)
	}
	controls := lipgloss.JoinHorizontal(lipgloss.Top, confirm, " ", cancel)

	bodyW := modalBodyWidth(width)
	help := styleMuted().Width(bodyW).Render("tab: focus   enter: select   y/n   esc: cancel")

	content := strings.Join([]string{
		lipgloss.NewStyle().Width(bodyW).Render(body),
		"",
		controls,
		"",
		help,
	}, "\n")
	return renderModalBox(width, title, content)
}

func renderInputLine(bodyW int, inputView string) string {
	if bodyW < 10 {
		bodyW = 10
	}
	// A text input must stay on one visual line; wrapping looks like inserted newlines.
	inputView = oneLine(inputView)

	line := lipgloss.PlaceHorizontal(
		bodyW,
		lipgloss.Left,
		" "+inputView+" ",
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceBackground(colorInputBg),
	)
	if xansi.StringWidth(line) > bodyW {
		// Terminate ANSI styling to prevent bleed.
		line = xansi.Cut(line, 0, bodyW) + "\x1b[0m"
	}
	return line
}
