package tui

import (
	"fmt"
	"strings"

	"ocr-verifier/internal/model"
	"ocr-verifier/internal/review"

	"github.com/charmbracelet/lipgloss"
)

const (
	headerHeight = 2
	footerHeight = 1
)

func (m appModel) View() string {
	bodyH := m.height - headerHeight - footerHeight
	if bodyH < 1 {
		bodyH = 1
	}

	body := ""
	switch m.mode {
	case modeEdit:
		body = m.centered(m.viewEditor(), bodyH)
	case modeUpload:
		body = m.centered(m.viewUpload(), bodyH)
	case modeConfirm:
		body = m.centered(m.viewConfirm(), bodyH)
	case modeBatchMenu:
		body = m.centered(m.viewBatchMenu(), bodyH)
	case modeProcessing:
		body = m.centered(m.viewProcessing(), bodyH)
	case modeHelp:
		body = m.centered(renderModalBox(m.width, "Keys", renderMarkdown(m.keys.helpMarkdown(), modalBodyWidth(m.width))), bodyH)
	default:
		body = m.viewCards(bodyH)
	}

	return strings.Join([]string{
		normalizePane(m.viewHeader(), m.width, headerHeight),
		normalizePane(body, m.width, bodyH),
		normalizePane(m.viewFooter(), m.width, footerHeight),
	}, "\n")
}

func (m appModel) centered(s string, h int) string {
	return lipgloss.Place(m.width, h, lipgloss.Center, lipgloss.Center, s)
}

func (m appModel) viewHeader() string {
	v := m.ctrl.View()
	title := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render("OCR review")
	chrome := lipgloss.NewStyle().Foreground(colorChromeFg)

	selected := len(m.ctrl.SelectedKeys())
	line1 := strings.Join([]string{
		title,
		chrome.Render("filter: " + v.Filter.Label()),
		chrome.Render("sort: " + v.Sort.Label()),
		chrome.Render(fmt.Sprintf("%d of %d shown", len(m.cards.Items()), len(m.ctrl.Regions()))),
		chrome.Render(fmt.Sprintf("%d selected", selected)),
		styleMuted().Render("a: " + m.ctrl.SelectAllLabel()),
	}, "  ·  ")

	return line1 + "\n" + styleMuted().Render(m.statsLine())
}

func (m appModel) statsLine() string {
	st, ok := m.ctrl.Stats()
	if !ok {
		return "stats unavailable"
	}
	mark := func(b bool) string {
		if b {
			return "✓"
		}
		return "–"
	}
	return fmt.Sprintf("total %d  verified %d  low confidence %d  dataset %s  lmdb %s",
		st.Total, st.Verified, st.LowConfidence, mark(st.DatasetExists), mark(st.LMDBExists))
}

func (m appModel) viewCards(h int) string {
	if m.loading && len(m.cards.Items()) == 0 {
		return m.centered(styleMuted().Render(m.spin.View()+" Loading cards…"), h)
	}
	if len(m.cards.Items()) == 0 {
		msg := "No cards match the filter (f to change it, r to reload)"
		if len(m.ctrl.Regions()) == 0 {
			msg = "No cards loaded (u to upload an image, r to reload)"
		}
		return m.centered(styleMuted().Render(msg), h)
	}
	return m.cards.View()
}

func (m appModel) viewFooter() string {
	if m.minibufferText != "" && m.now().Sub(m.minibufferSetAt) < minibufferAutoClearAfter {
		return m.minibufferText
	}
	if m.ctrl.Busy() {
		return styleMuted().Render(m.spin.View() + " Working…")
	}
	return styleMuted().Render("?: help  space: select  v: save  x: delete  b: batch  g/l/R: pipeline  q: quit")
}

func (m appModel) viewEditor() string {
	bodyW := modalBodyWidth(m.width)
	r, _ := m.ctrl.Region(m.editKey)
	content := strings.Join([]string{
		styleMuted().Render(fmt.Sprintf("%s  #%d  conf %.2f", r.ImageName, r.RegionIdx, r.Confidence)),
		styleMuted().Width(bodyW).Render("original: " + oneLine(r.OriginalText)),
		"",
		renderInputLine(bodyW, m.editor.View()),
		"",
		styleMuted().Width(bodyW).Render("enter: keep   ctrl+s: save   esc: discard"),
	}, "\n")
	return renderModalBox(m.width, "Edit text", content)
}

func (m appModel) viewUpload() string {
	bodyW := modalBodyWidth(m.width)
	content := strings.Join([]string{
		"Image file (.jpg, .jpeg or .png):",
		"",
		renderInputLine(bodyW, m.upload.View()),
		"",
		styleMuted().Width(bodyW).Render("enter: upload   esc: cancel"),
	}, "\n")
	return renderModalBox(m.width, "Upload image", content)
}

func (m appModel) viewConfirm() string {
	if m.confirm == nil {
		return ""
	}
	p := m.confirm.prompt
	label := p.ConfirmLabel
	if label == "" {
		label = "OK"
	}
	return renderConfirmModal(m.width, p.Title, p.Body, label, "Cancel", p.Destructive, m.confirmFocus)
}

func (m appModel) viewBatchMenu() string {
	bodyW := modalBodyWidth(m.width)
	sel := lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)

	lines := []string{fmt.Sprintf("%d item(s) selected", len(m.ctrl.SelectedKeys())), ""}
	for i, a := range model.BatchActions() {
		ln := fitLine("  "+a.Label(), bodyW)
		if i == m.batchIdx {
			ln = sel.Render(ln)
		}
		lines = append(lines, ln)
	}
	lines = append(lines, "", styleMuted().Width(bodyW).Render("j/k: move   enter: run   esc: close"))
	return renderModalBox(m.width, "Batch action", strings.Join(lines, "\n"))
}

func (m appModel) viewProcessing() string {
	p := m.proc
	if p == nil {
		return ""
	}
	bodyW := modalBodyWidth(m.width)

	if !p.done {
		lines := []string{}
		if p.bar != nil {
			lines = append(lines,
				reprocessStep(p.bar.Fraction()),
				"",
				m.bar.ViewAs(p.bar.Fraction()),
			)
		} else {
			lines = append(lines, m.spin.View()+" Working…")
		}
		lines = append(lines, "", styleMuted().Render("This can take a while; the server reports no progress."))
		return renderModalBox(m.width, p.title, strings.Join(lines, "\n"))
	}

	var md string
	title := "Done"
	if p.err != nil {
		title = "Failed"
		md = "**Error:** " + p.err.Error()
	} else {
		md = resultMarkdown(p.result)
	}
	lines := []string{}
	if p.bar != nil && p.err == nil {
		lines = append(lines, m.bar.ViewAs(1), "")
	}
	lines = append(lines,
		renderMarkdown(md, bodyW),
		"",
		styleMuted().Render("enter: close"),
	)
	return renderModalBox(m.width, title+": "+strings.TrimSuffix(p.title, "…"), strings.Join(lines, "\n"))
}

func reprocessStep(frac float64) string {
	n := len(review.ReprocessSteps)
	i := int(frac * float64(n))
	if i >= n {
		i = n - 1
	}
	return review.ReprocessSteps[i]
}

func resultMarkdown(res review.Result) string {
	var b strings.Builder
	if res.Message != "" {
		b.WriteString(res.Message)
		b.WriteString("\n\n")
	}
	for _, ln := range strings.Split(res.Hint, "\n") {
		if strings.TrimSpace(ln) != "" {
			b.WriteString("- " + ln + "\n")
		}
	}
	if b.Len() == 0 {
		return "Finished."
	}
	return b.String()
}
