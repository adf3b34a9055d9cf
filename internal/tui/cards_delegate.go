package tui

import (
	"fmt"
	"io"
	"strings"

	"ocr-verifier/internal/review"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// cardItem is one visible region in the list. save is the per-item save control.
type cardItem struct {
	row  review.Row
	save review.Phase
}

func (it cardItem) FilterValue() string { return it.row.Region.Text }

type cardDelegate struct {
	normalCard   lipgloss.Style
	selectedCard lipgloss.Style

	titleStyle  lipgloss.Style
	metaStyle   lipgloss.Style
	verified    lipgloss.Style
	lowConf     lipgloss.Style
	changedMark lipgloss.Style
}

func newCardDelegate() cardDelegate {
	base := lipgloss.NewStyle().
		Padding(0, 1, 0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorCardBorder).
		Foreground(colorSurfaceFg)

	return cardDelegate{
		normalCard:   base,
		selectedCard: base.BorderForeground(colorAccent),
		titleStyle:   lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg),
		metaStyle:    lipgloss.NewStyle().Foreground(colorCardMetaFg),
		verified:     lipgloss.NewStyle().Foreground(colorVerifiedFg).Bold(true),
		lowConf:      lipgloss.NewStyle().Foreground(colorLowConfFg),
		changedMark:  lipgloss.NewStyle().Foreground(colorAccent).Bold(true),
	}
}

func (d cardDelegate) Height() int  { return 5 } // 3 inner lines + border top/bottom
func (d cardDelegate) Spacing() int { return 0 }
func (d cardDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

func (d cardDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(cardItem)
	totalW := m.Width()
	if !ok || totalW < 16 {
		fmt.Fprint(w, "")
		return
	}

	card := d.normalCard
	if index == m.Index() {
		card = d.selectedCard
	}
	innerW := totalW - card.GetHorizontalFrameSize()
	if innerW < 1 {
		innerW = 1
	}
	card = card.Width(innerW)

	r := it.row.Region
	box := "[ ]"
	if it.row.Selected {
		box = "[x]"
	}
	title := fmt.Sprintf("%s %s  #%d", box, d.titleStyle.Render(r.ImageName), r.RegionIdx)

	meta := []string{d.metaStyle.Render(fmt.Sprintf("conf %.2f", r.Confidence))}
	if r.LowConfidence() {
		meta = append(meta, d.lowConf.Render("low"))
	}
	if r.Verified {
		meta = append(meta, d.verified.Render("✓ verified"))
	} else {
		meta = append(meta, d.metaStyle.Render("○ unverified"))
	}
	switch it.save {
	case review.PhaseBusy:
		meta = append(meta, d.metaStyle.Render("saving…"))
	case review.PhaseSuccess:
		meta = append(meta, d.verified.Render("saved"))
	}

	text := oneLine(r.Text)
	if text == "" {
		text = styleMuted().Render("(empty)")
	}
	if r.Changed() {
		text = d.changedMark.Render("* ") + text
	}

	lines := []string{
		xansi.Truncate(title+"  "+strings.Join(meta, "  "), innerW, "…"),
		xansi.Truncate(text, innerW, "…"),
		xansi.Truncate(d.originalLine(r.OriginalText, r.Changed()), innerW, "…"),
	}
	fmt.Fprint(w, card.Render(strings.Join(lines, "\n")))
}

func (d cardDelegate) originalLine(original string, changed bool) string {
	if !changed {
		return ""
	}
	return styleMuted().Render("was: " + oneLine(original))
}
