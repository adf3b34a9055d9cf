package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"ocr-verifier/internal/model"
	"ocr-verifier/internal/review"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeAPI struct {
	mu      sync.Mutex
	regions []model.Region
	dataset bool

	updates  [][]model.Update
	verified [][]model.Key
	deleted  [][]model.Key
	pipeline []string
}

func (f *fakeAPI) Regions(context.Context) ([]model.Region, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Region(nil), f.regions...), nil
}

func (f *fakeAPI) Verify(_ context.Context, updates []model.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updates)
	return nil
}

func (f *fakeAPI) BatchVerify(_ context.Context, items []model.Key) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verified = append(f.verified, items)
	return len(items), nil
}

func (f *fakeAPI) DeleteRegions(_ context.Context, items []model.Key) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, items)
	drop := map[model.Key]bool{}
	for _, k := range items {
		drop[k] = true
	}
	var kept []model.Region
	for _, r := range f.regions {
		if !drop[r.Key] {
			kept = append(kept, r)
		}
	}
	f.regions = kept
	return len(items), nil
}

func (f *fakeAPI) DeleteImage(context.Context, string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeAPI) Upload(context.Context, string, io.Reader) (model.UploadResult, error) {
	return model.UploadResult{}, errors.New("not used")
}

func (f *fakeAPI) GenerateDataset(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pipeline = append(f.pipeline, "generate")
	f.dataset = true
	return "Dataset generated", nil
}

func (f *fakeAPI) ConvertToLMDB(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pipeline = append(f.pipeline, "lmdb")
	return "Converted", nil
}

func (f *fakeAPI) ReprocessImages(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pipeline = append(f.pipeline, "reprocess")
	return "Cleared 3 annotations\nProcessed 2 images", nil
}

func (f *fakeAPI) Stats(context.Context) (model.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.Stats{Total: len(f.regions), DatasetExists: f.dataset}, nil
}

func region(img string, idx int, conf float64, verified bool, text string) model.Region {
	return model.Region{
		Key:          model.Key{ImageName: img, RegionIdx: idx},
		Confidence:   conf,
		Verified:     verified,
		Text:         text,
		OriginalText: text,
	}
}

func newTestModel(t *testing.T, rs ...model.Region) (appModel, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{regions: rs}
	ctrl := review.New(review.Options{
		API:    api,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	m := newAppModel(context.Background(), ctrl, Options{Seed: 1})
	m = feed(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = execCmd(t, m, m.Init())
	return m, api
}

func feed(t *testing.T, m appModel, msg tea.Msg) appModel {
	t.Helper()
	mm, _ := m.Update(msg)
	out, ok := mm.(appModel)
	if !ok {
		t.Fatalf("Update returned %T", mm)
	}
	return out
}

// execCmd runs cmd (one level of batching) and feeds its messages back. Follow-up
// commands returned by Update are dropped.
func execCmd(t *testing.T, m appModel, cmd tea.Cmd) appModel {
	t.Helper()
	if cmd == nil {
		return m
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c != nil {
				m = feed(t, m, c())
			}
		}
		return m
	}
	return feed(t, m, msg)
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(t *testing.T, m appModel, s string) (appModel, tea.Cmd) {
	t.Helper()
	mm, cmd := m.Update(keyMsg(s))
	return mm.(appModel), cmd
}

func cardKeys(m appModel) []string {
	var out []string
	for _, it := range m.cards.Items() {
		out = append(out, it.(cardItem).row.Region.Key.ID())
	}
	return out
}

func TestInit_LoadsCardsInDisplayOrder(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t,
		region("page01", 0, 0.95, true, "TOTAL"),
		region("page01", 1, 0.40, false, "T0TAL"),
	)
	if got := strings.Join(cardKeys(m), ","); got != "page01_1,page01_0" {
		t.Fatalf("order = %s", got)
	}
	view := m.View()
	for _, s := range []string{"T0TAL", "2 of 2 shown", "total 2"} {
		if !strings.Contains(view, s) {
			t.Fatalf("view missing %q:\n%s", s, view)
		}
	}
}

func TestSelection_SpaceAndSelectAll(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t,
		region("a", 0, 0.5, false, "x"),
		region("a", 1, 0.6, false, "y"),
	)
	m, _ = press(t, m, "space")
	if got := m.ctrl.SelectedKeys(); len(got) != 1 || got[0].ID() != "a_0" {
		t.Fatalf("selected = %v", got)
	}
	if !strings.Contains(m.View(), "[x]") {
		t.Fatalf("expected a checked box in view")
	}

	m, _ = press(t, m, "a")
	if len(m.ctrl.SelectedKeys()) != 2 || m.ctrl.SelectAllLabel() != "Deselect all" {
		t.Fatalf("select all failed: %v", m.ctrl.SelectedKeys())
	}
	m, _ = press(t, m, "a")
	if len(m.ctrl.SelectedKeys()) != 0 {
		t.Fatalf("deselect all failed: %v", m.ctrl.SelectedKeys())
	}
}

func TestFilterKey_HidesCards(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t,
		region("a", 0, 0.95, true, "x"),
		region("a", 1, 0.40, false, "y"),
	)
	m, _ = press(t, m, "f")
	if m.ctrl.View().Filter != model.FilterVerified {
		t.Fatalf("filter = %s", m.ctrl.View().Filter)
	}
	if got := strings.Join(cardKeys(m), ","); got != "a_0" {
		t.Fatalf("visible = %s", got)
	}
	if !strings.HasPrefix(m.minibufferText, "Filter: ") {
		t.Fatalf("minibuffer = %q", m.minibufferText)
	}
}

func TestSaveKey_VerifiesCurrentCard(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t, region("a", 0, 0.4, false, "x"))
	m, cmd := press(t, m, "v")
	m = execCmd(t, m, cmd)

	if len(api.updates) != 1 || !api.updates[0][0].Verified || api.updates[0][0].CorrectedText != nil {
		t.Fatalf("updates = %+v", api.updates)
	}
	r, _ := m.ctrl.Region(model.Key{ImageName: "a", RegionIdx: 0})
	if !r.Verified {
		t.Fatalf("card not verified")
	}
	if !strings.Contains(m.minibufferText, "Saved") {
		t.Fatalf("minibuffer = %q", m.minibufferText)
	}
}

func TestEditor_CtrlSSendsCorrectedText(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t, region("a", 0, 0.4, false, "T0TAL"))
	m, _ = press(t, m, "enter")
	if m.mode != modeEdit || m.editor.Value() != "T0TAL" {
		t.Fatalf("editor not opened: mode=%d value=%q", m.mode, m.editor.Value())
	}
	m.editor.SetValue("TOTAL")
	m, cmd := press(t, m, "ctrl+s")
	m = execCmd(t, m, cmd)

	if m.mode != modeList {
		t.Fatalf("mode = %d", m.mode)
	}
	if len(api.updates) != 1 {
		t.Fatalf("updates = %+v", api.updates)
	}
	u := api.updates[0][0]
	if u.CorrectedText == nil || *u.CorrectedText != "TOTAL" {
		t.Fatalf("corrected text = %v", u.CorrectedText)
	}
}

func TestEditor_EscDiscards(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t, region("a", 0, 0.4, false, "T0TAL"))
	m, _ = press(t, m, "e")
	m.editor.SetValue("changed")
	m, _ = press(t, m, "esc")
	r, _ := m.ctrl.Region(model.Key{ImageName: "a"})
	if r.Text != "T0TAL" || m.mode != modeList {
		t.Fatalf("edit not discarded: %q mode=%d", r.Text, m.mode)
	}
}

func TestDelete_ConfirmModal(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t,
		region("a", 0, 0.4, false, "x"),
		region("a", 1, 0.5, false, "y"),
	)

	m, _ = press(t, m, "x")
	if m.mode != modeConfirm || m.confirmFocus != confirmFocusCancel {
		t.Fatalf("expected confirm modal focused on cancel, mode=%d focus=%d", m.mode, m.confirmFocus)
	}
	if !strings.Contains(m.View(), "Region: 0") {
		t.Fatalf("prompt should name the region:\n%s", m.View())
	}
	m, cmd := press(t, m, "enter")
	if cmd != nil || len(api.deleted) != 0 || m.minibufferText != "Canceled" {
		t.Fatalf("cancel sent a request or no notice: %v %q", api.deleted, m.minibufferText)
	}

	m, _ = press(t, m, "x")
	m, cmd = press(t, m, "y")
	m = execCmd(t, m, cmd)
	if len(api.deleted) != 1 || api.deleted[0][0].ID() != "a_0" {
		t.Fatalf("deleted = %v", api.deleted)
	}
	if got := strings.Join(cardKeys(m), ","); got != "a_1" {
		t.Fatalf("cards after delete = %s", got)
	}
}

func TestBatchVerify_EmptySelectionWarns(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t, region("a", 0, 0.4, false, "x"))
	m, cmd := press(t, m, "V")
	if cmd != nil || len(api.verified) != 0 {
		t.Fatalf("expected no request")
	}
	if m.minibufferText != review.ErrEmptySelection.Error() {
		t.Fatalf("minibuffer = %q", m.minibufferText)
	}
}

func TestBatchMenu_DeleteConfirmsCount(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t,
		region("a", 0, 0.4, false, "x"),
		region("a", 1, 0.5, false, "y"),
	)
	m, _ = press(t, m, "a")
	m, _ = press(t, m, "b")
	m, _ = press(t, m, "j")
	m, _ = press(t, m, "enter")
	if m.mode != modeConfirm || !strings.Contains(m.confirm.prompt.Body, "Delete 2 item(s)?") {
		t.Fatalf("expected batch delete confirm, mode=%d", m.mode)
	}
	m, cmd := press(t, m, "y")
	m = execCmd(t, m, cmd)
	if len(api.deleted) != 1 || len(api.deleted[0]) != 2 {
		t.Fatalf("deleted = %v", api.deleted)
	}
	if m.ctrl.BatchMenu() != model.BatchNone {
		t.Fatalf("batch menu not reset")
	}
}

func TestReprocess_ProcessingModal(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t, region("a", 0, 0.4, false, "x"))
	m, _ = press(t, m, "R")
	if m.mode != modeConfirm || !m.confirm.prompt.Destructive {
		t.Fatalf("expected destructive confirm")
	}
	m, cmd := press(t, m, "y")
	if m.mode != modeProcessing || m.proc == nil || m.proc.bar == nil {
		t.Fatalf("expected processing modal with progress bar")
	}
	m = execCmd(t, m, cmd)

	if len(api.pipeline) != 1 || api.pipeline[0] != "reprocess" {
		t.Fatalf("pipeline = %v", api.pipeline)
	}
	if !m.proc.done || m.proc.bar.Percent() != 100 {
		t.Fatalf("processing not finished: %+v", m.proc)
	}
	if got := m.proc.result.Message; got != "Cleared 3 annotations | Processed 2 images" {
		t.Fatalf("message = %q", got)
	}
	if !strings.Contains(m.View(), "Done") {
		t.Fatalf("expected done modal:\n%s", m.View())
	}

	m, cmd = press(t, m, "enter")
	if m.mode != modeList || m.proc != nil || cmd == nil {
		t.Fatalf("dismiss should close the modal and refresh stats")
	}
}

func TestLMDB_RefusedWithoutDataset(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t, region("a", 0, 0.4, true, "x"))
	m, _ = press(t, m, "l")
	if m.mode != modeList || !strings.Contains(m.minibufferText, review.ErrDatasetMissing.Error()) {
		t.Fatalf("expected refusal, mode=%d minibuffer=%q", m.mode, m.minibufferText)
	}

	m, _ = press(t, m, "g")
	m, cmd := press(t, m, "y")
	m = execCmd(t, m, cmd)
	m, cmd = press(t, m, "enter")
	m = execCmd(t, m, cmd)

	m, _ = press(t, m, "l")
	if m.mode != modeConfirm {
		t.Fatalf("expected LMDB confirm after dataset exists, mode=%d", m.mode)
	}
	if strings.Join(api.pipeline, ",") != "generate" {
		t.Fatalf("pipeline = %v", api.pipeline)
	}
}

func TestUpload_RejectsExtension(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	m, _ = press(t, m, "u")
	if m.mode != modeUpload {
		t.Fatalf("mode = %d", m.mode)
	}
	m.upload.SetValue("scan.pdf")
	m, cmd := press(t, m, "enter")
	if cmd != nil || !strings.Contains(m.minibufferText, "unsupported file type") {
		t.Fatalf("expected rejection, minibuffer=%q", m.minibufferText)
	}
}

func TestCopy_WritesClipboard(t *testing.T) {
	orig := copyToClipboard
	t.Cleanup(func() { copyToClipboard = orig })
	var got string
	copyToClipboard = func(s string) error {
		got = s
		return nil
	}

	m, _ := newTestModel(t, region("a", 0, 0.4, false, "合計 1,200"))
	m, _ = press(t, m, "y")
	if got != "合計 1,200" || !strings.HasPrefix(m.minibufferText, "Copied: ") {
		t.Fatalf("clipboard = %q minibuffer = %q", got, m.minibufferText)
	}
}

func TestHelp_ListsBindings(t *testing.T) {
	t.Parallel()

	m, _ := newTestModel(t)
	m, _ = press(t, m, "?")
	if m.mode != modeHelp {
		t.Fatalf("mode = %d", m.mode)
	}
	if !strings.Contains(m.View(), "Keys") || !strings.Contains(m.keys.helpMarkdown(), "| `R` | reprocess all images |") {
		t.Fatalf("help missing binding:\n%s", m.View())
	}
	m, _ = press(t, m, "esc")
	if m.mode != modeList {
		t.Fatalf("mode = %d", m.mode)
	}
}

func TestCheckKey_UncheckedCardSavedAsUnverified(t *testing.T) {
	t.Parallel()

	m, api := newTestModel(t, region("a", 0, 0.9, true, "x"), region("b", 0, 0.95, true, "y"))
	m, cmd := press(t, m, "c")
	if cmd != nil {
		t.Fatalf("toggling the checkbox must not contact the server")
	}
	r, _ := m.ctrl.Region(model.Key{ImageName: "a", RegionIdx: 0})
	if r.Verified {
		t.Fatalf("card still verified after c")
	}
	if !strings.Contains(m.View(), "○ unverified") {
		t.Fatalf("unchecked card not rendered:\n%s", m.View())
	}

	m, cmd = press(t, m, "ctrl+s")
	_ = execCmd(t, m, cmd)
	if len(api.updates) != 1 || len(api.updates[0]) != 2 {
		t.Fatalf("updates = %+v", api.updates)
	}
	got := map[string]bool{}
	for _, u := range api.updates[0] {
		got[u.ImageName] = u.Verified
	}
	if got["a"] || !got["b"] {
		t.Fatalf("verified flags = %v, want a=false b=true", got)
	}
}

// blockingVerifyAPI holds Verify until release is closed.
type blockingVerifyAPI struct {
	*fakeAPI
	started chan struct{}
	release chan struct{}
}

func (b blockingVerifyAPI) Verify(ctx context.Context, updates []model.Update) error {
	close(b.started)
	<-b.release
	return b.fakeAPI.Verify(ctx, updates)
}

func TestFooter_ShowsWorkingWhileRequestInFlight(t *testing.T) {
	t.Parallel()

	api := blockingVerifyAPI{
		fakeAPI: &fakeAPI{regions: []model.Region{region("a", 0, 0.4, false, "x")}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	ctrl := review.New(review.Options{API: api, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	m := newAppModel(context.Background(), ctrl, Options{Seed: 1})
	m = feed(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m = execCmd(t, m, m.Init())

	if strings.Contains(m.viewFooter(), "Working") {
		t.Fatalf("idle footer = %q", m.viewFooter())
	}

	m, cmd := press(t, m, "v")
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	<-api.started
	if !strings.Contains(m.viewFooter(), "Working") {
		t.Fatalf("footer while saving = %q", m.viewFooter())
	}

	close(api.release)
	m = feed(t, m, <-done)
	if ctrl.Busy() {
		t.Fatalf("controller still busy after the save returned")
	}
}
