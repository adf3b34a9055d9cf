package tui

import (
	"context"
	"log/slog"
	"time"

	"ocr-verifier/internal/model"
	"ocr-verifier/internal/review"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const minibufferAutoClearAfter = 6 * time.Second

type mode int

const (
	modeList mode = iota
	modeEdit
	modeConfirm
	modeBatchMenu
	modeUpload
	modeProcessing
	modeHelp
)

// pendingConfirm is an action waiting on the confirm modal. run starts it with the
// prompt already answered.
type pendingConfirm struct {
	prompt review.Prompt
	run    func(*appModel) tea.Cmd
}

// processing is the modal shown while a pipeline request is in flight.
type processing struct {
	title string
	// bar is nil for steps that report no progress; the spinner runs instead.
	bar *review.SimulatedProgress
	seq int

	done   bool
	result review.Result
	err    error
}

type (
	loadedMsg struct{ err error }
	resultMsg struct {
		res review.Result
		err error
		// proc marks results that belong to the processing modal.
		proc bool
	}
	statsMsg        struct{ err error }
	refreshMsg      struct{}
	progressTickMsg struct{ seq int }
)

type appModel struct {
	ctx  context.Context
	ctrl *review.Controller
	log  *slog.Logger
	keys keyMap
	now  func() time.Time

	width  int
	height int

	mode    mode
	loading bool

	cards list.Model

	editor  textinput.Model
	editKey model.Key
	upload  textinput.Model

	confirm      *pendingConfirm
	confirmFocus confirmFocus

	batchIdx int

	proc    *processing
	procSeq int
	spin    spinner.Model
	bar     progress.Model
	seed    int64

	minibufferText  string
	minibufferSetAt time.Time
}

func newAppModel(ctx context.Context, ctrl *review.Controller, opts Options) appModel {
	if ctx == nil {
		ctx = context.Background()
	}
	l := opts.Logger
	if l == nil {
		l = slog.Default()
	}

	cards := list.New(nil, newCardDelegate(), 80, 20)
	cards.SetShowTitle(false)
	cards.SetShowStatusBar(false)
	cards.SetShowHelp(false)
	cards.SetFilteringEnabled(false)
	cards.DisableQuitKeybindings()

	editor := textinput.New()
	editor.Prompt = ""
	editor.CharLimit = 0

	upload := textinput.New()
	upload.Prompt = ""
	upload.Placeholder = "path/to/scan.jpg"

	return appModel{
		ctx:     ctx,
		ctrl:    ctrl,
		log:     l,
		keys:    newKeyMap(),
		now:     time.Now,
		width:   80,
		height:  24,
		loading: true,
		cards:   cards,
		editor:  editor,
		upload:  upload,
		spin:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		bar:     progress.New(progress.WithDefaultGradient()),
		seed:    opts.Seed,
	}
}

func (m appModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m appModel) loadCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return loadedMsg{err: ctrl.Load(ctx)}
	}
}

func (m appModel) statsCmd() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		_, err := ctrl.RefreshStats(ctx)
		return statsMsg{err: err}
	}
}

// runCmd runs one controller operation off the update loop.
func (m appModel) runCmd(op func(context.Context) (review.Result, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		res, err := op(ctx)
		return resultMsg{res: res, err: err}
	}
}

// refreshCards rebuilds the list from the controller, keeping the cursor on the same card.
func (m *appModel) refreshCards() {
	cur, hadCur := m.currentKey()
	idx := m.cards.Index()

	rows := m.ctrl.VisibleRows()
	items := make([]list.Item, 0, len(rows))
	for i, row := range rows {
		items = append(items, cardItem{row: row, save: m.ctrl.Control(review.SaveControl(row.Region.Key))})
		if hadCur && row.Region.Key == cur {
			idx = i
		}
	}
	m.cards.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.cards.Select(idx)
	}
}

func (m appModel) currentKey() (model.Key, bool) {
	it, ok := m.cards.SelectedItem().(cardItem)
	if !ok {
		return model.Key{}, false
	}
	return it.row.Region.Key, true
}

func (m appModel) currentRegion() (model.Region, bool) {
	k, ok := m.currentKey()
	if !ok {
		return model.Region{}, false
	}
	return m.ctrl.Region(k)
}

func (m *appModel) showMinibuffer(text string) {
	m.minibufferText = text
	m.minibufferSetAt = m.now()
}

func (m *appModel) expireMinibuffer() {
	if m.minibufferText != "" && m.now().Sub(m.minibufferSetAt) >= minibufferAutoClearAfter {
		m.minibufferText = ""
	}
}

func (m *appModel) resize() {
	h := m.height - headerHeight - footerHeight
	if h < 1 {
		h = 1
	}
	m.cards.SetSize(m.width, h)
	bodyW := modalBodyWidth(m.width) - 2
	m.editor.Width = bodyW
	m.upload.Width = bodyW
	m.bar.Width = modalBodyWidth(m.width)
}
