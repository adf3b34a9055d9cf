package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ocr-verifier/internal/model"
	"ocr-verifier/internal/review"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case loadedMsg:
		m.loading = false
		if msg.err != nil {
			m.showMinibuffer("Load failed: " + msg.err.Error())
		}
		m.refreshCards()
		return m, nil

	case resultMsg:
		return m.handleResult(msg)

	case statsMsg:
		if msg.err != nil {
			m.log.Warn("tui: refresh stats", "err", msg.err)
		}
		m.refreshCards()
		return m, nil

	case refreshMsg:
		m.refreshCards()
		return m, nil

	case progressTickMsg:
		if m.proc == nil || m.proc.done || m.proc.bar == nil || msg.seq != m.proc.seq {
			return m, nil
		}
		m.proc.bar.Step()
		return m, progressTick(msg.seq)

	case spinner.TickMsg:
		if m.proc == nil || m.proc.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		m.expireMinibuffer()
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.mode {
		case modeEdit:
			return m.updateEditor(msg)
		case modeUpload:
			return m.updateUpload(msg)
		case modeConfirm:
			return m.updateConfirm(msg)
		case modeBatchMenu:
			return m.updateBatchMenu(msg)
		case modeProcessing:
			return m.updateProcessing(msg)
		case modeHelp:
			switch msg.String() {
			case "?", "esc", "q", "enter":
				m.mode = modeList
			}
			return m, nil
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m appModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit

	case key.Matches(msg, k.Help):
		m.mode = modeHelp
		return m, nil

	case key.Matches(msg, k.navigationKey):
		var cmd tea.Cmd
		m.cards, cmd = m.cards.Update(msg)
		return m, cmd

	case key.Matches(msg, k.Toggle):
		if cur, ok := m.currentKey(); ok {
			_ = m.ctrl.ToggleSelected(cur)
			m.refreshCards()
		}
		return m, nil

	case key.Matches(msg, k.SelectAll):
		m.ctrl.ToggleSelectAll()
		m.refreshCards()
		return m, nil

	case key.Matches(msg, k.Filter):
		f := m.ctrl.View().Filter.Next()
		if err := m.ctrl.SetFilter(f); err != nil {
			m.showMinibuffer("Save filter: " + err.Error())
		} else {
			m.showMinibuffer("Filter: " + f.Label())
		}
		m.refreshCards()
		return m, nil

	case key.Matches(msg, k.Sort):
		s := m.ctrl.View().Sort.Next()
		if err := m.ctrl.SetSort(s); err != nil {
			m.showMinibuffer("Save sort: " + err.Error())
		} else {
			m.showMinibuffer("Sort: " + s.Label())
		}
		m.refreshCards()
		return m, nil

	case key.Matches(msg, k.Edit):
		r, ok := m.currentRegion()
		if !ok {
			return m, nil
		}
		m.mode = modeEdit
		m.editKey = r.Key
		m.editor.SetValue(r.Text)
		m.editor.CursorEnd()
		return m, m.editor.Focus()

	case key.Matches(msg, k.Save):
		cur, ok := m.currentKey()
		if !ok {
			return m, nil
		}
		return m.save(cur)

	case key.Matches(msg, k.Check):
		r, ok := m.currentRegion()
		if !ok {
			return m, nil
		}
		if err := m.ctrl.SetVerified(r.Key, !r.Verified); err != nil {
			m.showMinibuffer(errorText(err))
			return m, nil
		}
		m.refreshCards()
		return m, nil

	case key.Matches(msg, k.SaveAll):
		return m, m.runCmd(m.ctrl.SaveAll)

	case key.Matches(msg, k.BatchVerify):
		if len(m.ctrl.SelectedKeys()) == 0 {
			m.showMinibuffer(review.ErrEmptySelection.Error())
			return m, nil
		}
		return m, m.runCmd(m.ctrl.BatchVerifySelected)

	case key.Matches(msg, k.Delete):
		if n := len(m.ctrl.SelectedKeys()); n > 0 {
			m.askConfirm(review.BatchDeletePrompt(n), func(m *appModel) tea.Cmd {
				return m.runCmd(func(ctx context.Context) (review.Result, error) {
					return m.ctrl.BatchDeleteSelected(ctx, review.Approve)
				})
			})
			return m, nil
		}
		cur, ok := m.currentKey()
		if !ok {
			return m, nil
		}
		m.askConfirm(review.DeletePrompt(cur), func(m *appModel) tea.Cmd {
			return m.runCmd(func(ctx context.Context) (review.Result, error) {
				return m.ctrl.DeleteItem(ctx, cur, review.Approve)
			})
		})
		return m, nil

	case key.Matches(msg, k.DeleteImage):
		cur, ok := m.currentKey()
		if !ok {
			return m, nil
		}
		name := cur.ImageName
		m.askConfirm(review.DeleteImagePrompt(name), func(m *appModel) tea.Cmd {
			return m.runCmd(func(ctx context.Context) (review.Result, error) {
				return m.ctrl.DeleteImage(ctx, name, review.Approve)
			})
		})
		return m, nil

	case key.Matches(msg, k.BatchMenu):
		m.mode = modeBatchMenu
		m.batchIdx = 0
		return m, nil

	case key.Matches(msg, k.Generate):
		m.askConfirm(review.GeneratePrompt(), func(m *appModel) tea.Cmd {
			return m.startProcessing("Generating dataset…", false, func(ctx context.Context) (review.Result, error) {
				return m.ctrl.GenerateDataset(ctx, review.Approve)
			})
		})
		return m, nil

	case key.Matches(msg, k.LMDB):
		if !m.ctrl.LMDBReady() {
			m.showMinibuffer("LMDB: " + review.ErrDatasetMissing.Error() + " (press g first)")
			return m, nil
		}
		m.askConfirm(review.LMDBPrompt(), func(m *appModel) tea.Cmd {
			return m.startProcessing("Converting to LMDB…", false, func(ctx context.Context) (review.Result, error) {
				return m.ctrl.ConvertToLMDB(ctx, review.Approve)
			})
		})
		return m, nil

	case key.Matches(msg, k.Reprocess):
		m.askConfirm(review.ReprocessPrompt(), func(m *appModel) tea.Cmd {
			return m.startProcessing("Reprocessing images…", true, func(ctx context.Context) (review.Result, error) {
				return m.ctrl.ReprocessImages(ctx, review.Approve)
			})
		})
		return m, nil

	case key.Matches(msg, k.Upload):
		m.mode = modeUpload
		m.upload.SetValue("")
		return m, m.upload.Focus()

	case key.Matches(msg, k.Copy):
		r, ok := m.currentRegion()
		if !ok {
			return m, nil
		}
		if err := copyToClipboard(r.Text); err != nil {
			m.showMinibuffer("Clipboard error: " + err.Error())
		} else {
			m.showMinibuffer("Copied: " + oneLine(r.Text))
		}
		return m, nil

	case key.Matches(msg, k.Reload):
		m.loading = true
		return m, m.loadCmd()
	}
	return m, nil
}

func (m appModel) save(k model.Key) (tea.Model, tea.Cmd) {
	return m, m.runCmd(func(ctx context.Context) (review.Result, error) {
		return m.ctrl.SaveItem(ctx, k)
	})
}

func (m *appModel) askConfirm(p review.Prompt, run func(*appModel) tea.Cmd) {
	m.mode = modeConfirm
	m.confirm = &pendingConfirm{prompt: p, run: run}
	m.confirmFocus = confirmFocusConfirm
	if p.Destructive {
		// Destructive prompts start on Cancel.
		m.confirmFocus = confirmFocusCancel
	}
}

func (m appModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirm == nil {
		m.mode = modeList
		return m, nil
	}
	accept := false
	switch msg.String() {
	case "tab", "shift+tab", "left", "right", "h", "l":
		if m.confirmFocus == confirmFocusConfirm {
			m.confirmFocus = confirmFocusCancel
		} else {
			m.confirmFocus = confirmFocusConfirm
		}
		return m, nil
	case "enter":
		accept = m.confirmFocus == confirmFocusConfirm
	case "y", "Y":
		accept = true
	case "n", "N", "esc", "ctrl+g", "q":
	default:
		return m, nil
	}

	pending := m.confirm
	m.confirm = nil
	m.mode = modeList
	if !accept {
		m.showMinibuffer(errorText(review.ErrCanceled))
		return m, nil
	}
	// Processing actions switch the mode themselves.
	cmd := pending.run(&m)
	return m, cmd
}

func (m appModel) updateEditor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+g":
		m.mode = modeList
		m.editor.Blur()
		return m, nil
	case "enter", "ctrl+s":
		m.mode = modeList
		m.editor.Blur()
		if err := m.ctrl.Edit(m.editKey, m.editor.Value()); err != nil {
			m.showMinibuffer("Edit: " + err.Error())
			return m, nil
		}
		m.refreshCards()
		if msg.String() == "ctrl+s" {
			return m.save(m.editKey)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m appModel) updateUpload(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+g":
		m.mode = modeList
		m.upload.Blur()
		return m, nil
	case "enter":
		m.mode = modeList
		m.upload.Blur()
		path := strings.TrimSpace(m.upload.Value())
		if path == "" {
			return m, nil
		}
		if err := review.CheckUploadName(path); err != nil {
			m.showMinibuffer("Upload: " + err.Error())
			return m, nil
		}
		m.showMinibuffer("Uploading " + path + "…")
		return m, m.runCmd(func(ctx context.Context) (review.Result, error) {
			return m.ctrl.Upload(ctx, path)
		})
	}
	var cmd tea.Cmd
	m.upload, cmd = m.upload.Update(msg)
	return m, cmd
}

func (m appModel) updateBatchMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	actions := model.BatchActions()
	switch msg.String() {
	case "esc", "ctrl+g", "q", "b":
		m.mode = modeList
		return m, nil
	case "j", "down", "ctrl+n":
		if m.batchIdx < len(actions)-1 {
			m.batchIdx++
		}
		return m, nil
	case "k", "up", "ctrl+p":
		if m.batchIdx > 0 {
			m.batchIdx--
		}
		return m, nil
	case "enter":
	default:
		return m, nil
	}

	m.mode = modeList
	a := actions[m.batchIdx]
	run := func(m *appModel) tea.Cmd {
		return m.runCmd(func(ctx context.Context) (review.Result, error) {
			return m.ctrl.ExecuteBatchAction(ctx, a, review.Approve)
		})
	}
	if a == model.BatchDelete {
		n := len(m.ctrl.SelectedKeys())
		if n == 0 {
			m.showMinibuffer(review.ErrEmptySelection.Error())
			return m, nil
		}
		m.askConfirm(review.BatchDeletePrompt(n), run)
		return m, nil
	}
	return m, run(&m)
}

func (m appModel) updateProcessing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.proc == nil || !m.proc.done {
		return m, nil
	}
	switch msg.String() {
	case "enter", "esc", "q", " ":
		m.proc = nil
		m.mode = modeList
		return m, m.statsCmd()
	}
	return m, nil
}

// startProcessing returns the commands for a pipeline step shown in the processing modal.
func (m *appModel) startProcessing(title string, withBar bool, op func(context.Context) (review.Result, error)) tea.Cmd {
	m.procSeq++
	p := &processing{title: title, seq: m.procSeq}
	if withBar {
		seed := m.seed
		if seed == 0 {
			seed = m.now().UnixNano()
		}
		p.bar = review.NewSimulatedProgress(seed)
	}
	m.proc = p
	m.mode = modeProcessing

	ctx := m.ctx
	run := func() tea.Msg {
		res, err := op(ctx)
		return resultMsg{res: res, err: err, proc: true}
	}
	if withBar {
		return tea.Batch(run, progressTick(p.seq))
	}
	return tea.Batch(run, m.spin.Tick)
}

func progressTick(seq int) tea.Cmd {
	return tea.Tick(review.ProgressTick, func(_ time.Time) tea.Msg { return progressTickMsg{seq: seq} })
}

func (m appModel) handleResult(msg resultMsg) (tea.Model, tea.Cmd) {
	m.refreshCards()

	if msg.proc && m.proc != nil {
		m.proc.done = true
		m.proc.result = msg.res
		m.proc.err = msg.err
		if m.proc.bar != nil && msg.err == nil {
			m.proc.bar.Complete()
		}
		return m, nil
	}

	if msg.err != nil {
		m.showMinibuffer(errorText(msg.err))
		return m, nil
	}
	m.showMinibuffer(resultText(msg.res))
	if msg.res.Kind == review.KindSave {
		// Redraw once the save control's success state has expired.
		return m, tea.Tick(review.SuccessHold, func(time.Time) tea.Msg { return refreshMsg{} })
	}
	return m, nil
}

func errorText(err error) string {
	switch {
	case errors.Is(err, review.ErrCanceled):
		return "Canceled"
	case errors.Is(err, review.ErrEmptySelection), errors.Is(err, review.ErrBusy):
		return err.Error()
	default:
		return "Error: " + err.Error()
	}
}

func resultText(res review.Result) string {
	parts := []string{}
	if res.Message != "" {
		parts = append(parts, oneLine(res.Message))
	}
	if res.Hint != "" {
		parts = append(parts, oneLine(res.Hint))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s: %d item(s)", res.Kind, res.Count)
	}
	return strings.Join(parts, "  ·  ")
}
