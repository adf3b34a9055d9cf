package review

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"ocr-verifier/internal/model"
	"ocr-verifier/internal/store"
)

// API is the review server surface the controller drives. *api.Client implements it.
type API interface {
	Regions(ctx context.Context) ([]model.Region, error)
	Verify(ctx context.Context, updates []model.Update) error
	BatchVerify(ctx context.Context, items []model.Key) (int, error)
	DeleteRegions(ctx context.Context, items []model.Key) (int, error)
	DeleteImage(ctx context.Context, imageName string) (string, error)
	Upload(ctx context.Context, filename string, body io.Reader) (model.UploadResult, error)
	GenerateDataset(ctx context.Context) (string, error)
	ConvertToLMDB(ctx context.Context) (string, error)
	ReprocessImages(ctx context.Context) (string, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// StateStore is the persistent key-value store holding the filter and sort choices.
type StateStore interface {
	GetItem(key string) (string, bool, error)
	SetItem(key, value string) error
}

type Options struct {
	API     API
	State   StateStore
	Journal Journal
	Logger  *slog.Logger
	// Now is the clock used for transient control states. Defaults to time.Now.
	Now func() time.Time
}

// Result is what a finished action reports to the reviewer.
type Result struct {
	Kind    CommandKind
	Message string
	// Hint is a follow-up line, e.g. the next pipeline step.
	Hint     string
	Count    int
	Reloaded bool
}

// Controller owns the cards, the view state and the per-control state machines.
// All methods are safe for concurrent use; network calls run without the lock held.
type Controller struct {
	mu sync.Mutex

	api     API
	state   StateStore
	journal Journal
	log     *slog.Logger
	now     func() time.Time

	// regions are kept in server order; display order is computed by Render.
	regions     []model.Region
	view        ViewState
	stats       model.Stats
	statsLoaded bool
	controls    map[ControlID]controlState
	batch       model.BatchAction
	last        *Command
}

func New(opts Options) *Controller {
	c := &Controller{
		api:      opts.API,
		state:    opts.State,
		journal:  opts.Journal,
		log:      opts.Logger,
		now:      opts.Now,
		view:     NewViewState(),
		controls: map[ControlID]controlState{},
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Load fetches the cards, restores the persisted view state and refreshes the stats.
// Selection does not survive a load.
func (c *Controller) Load(ctx context.Context) error {
	rs, err := c.api.Regions(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.regions = rs
	c.view.Selected = map[model.Key]bool{}
	c.restoreLocked()
	c.mu.Unlock()

	c.refreshStatsQuiet(ctx)
	return nil
}

// Restore re-applies the persisted filter, then the persisted sort.
func (c *Controller) Restore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restoreLocked()
}

func (c *Controller) restoreLocked() {
	if c.state == nil {
		return
	}
	if v, ok, err := c.state.GetItem(store.FilterStateKey); err != nil {
		c.log.Warn("restore filter", "err", err)
	} else if ok {
		f, err := model.ParseFilter(v)
		if err != nil {
			c.log.Warn("restore filter: falling back to all", "value", v)
			f = model.FilterAll
		}
		c.view.Filter = f
	}
	if v, ok, err := c.state.GetItem(store.SortStateKey); err != nil {
		c.log.Warn("restore sort", "err", err)
	} else if ok {
		s, err := model.ParseSort(v)
		if err != nil {
			c.log.Warn("restore sort: falling back to confidence-asc", "value", v)
		}
		c.view.Sort = s
	}
}

// SetFilter applies and persists f. The view changes even if persisting fails.
func (c *Controller) SetFilter(f model.Filter) error {
	c.mu.Lock()
	c.view.Filter = f
	c.mu.Unlock()
	return c.persist(store.FilterStateKey, string(f))
}

// SetSort applies and persists s. The view changes even if persisting fails.
func (c *Controller) SetSort(s model.Sort) error {
	c.mu.Lock()
	c.view.Sort = s
	c.mu.Unlock()
	return c.persist(store.SortStateKey, string(s))
}

// UseView applies f and s without persisting them.
func (c *Controller) UseView(f model.Filter, s model.Sort) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.Filter = f
	c.view.Sort = s
}

func (c *Controller) persist(key, value string) error {
	if c.state == nil {
		return nil
	}
	if err := c.state.SetItem(key, value); err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}
	return nil
}

// View returns a copy of the current view state.
func (c *Controller) View() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.view
	v.Selected = make(map[model.Key]bool, len(c.view.Selected))
	for k, on := range c.view.Selected {
		v.Selected[k] = on
	}
	return v
}

// Render returns every card in display order with visibility and selection marks.
func (c *Controller) Render() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.Render(c.regions)
}

// VisibleRows returns the visible cards in display order.
func (c *Controller) VisibleRows() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.VisibleRows(c.regions)
}

// Regions returns the cards in server order.
func (c *Controller) Regions() []model.Region {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Region(nil), c.regions...)
}

func (c *Controller) Region(k model.Key) (model.Region, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(k)
	if i < 0 {
		return model.Region{}, false
	}
	return c.regions[i], true
}

// Stats returns the last fetched stats and whether any fetch succeeded.
func (c *Controller) Stats() (model.Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats, c.statsLoaded
}

func (c *Controller) indexOf(k model.Key) int {
	for i := range c.regions {
		if c.regions[i].Key == k {
			return i
		}
	}
	return -1
}

// ToggleSelectAll selects all visible cards, or deselects them when all are selected.
func (c *Controller) ToggleSelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.view.ToggleSelectAll(c.regions)
}

func (c *Controller) SelectAllLabel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.SelectAllLabel(c.regions)
}

func (c *Controller) SetSelected(k model.Key, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOf(k) < 0 {
		return ErrNotFound
	}
	if on {
		c.view.Selected[k] = true
	} else {
		delete(c.view.Selected, k)
	}
	return nil
}

func (c *Controller) ToggleSelected(k model.Key) error {
	c.mu.Lock()
	on := !c.view.Selected[k]
	c.mu.Unlock()
	return c.SetSelected(k, on)
}

// SelectedKeys returns the selected visible cards in display order.
func (c *Controller) SelectedKeys() []model.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.SelectedVisible(c.regions)
}

// Edit changes a card's editable text. The original text is kept for change detection.
func (c *Controller) Edit(k model.Key, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(k)
	if i < 0 {
		return ErrNotFound
	}
	c.regions[i].Text = text
	return nil
}

// SetVerified toggles a card's local verify checkbox without contacting the server.
func (c *Controller) SetVerified(k model.Key, verified bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexOf(k)
	if i < 0 {
		return ErrNotFound
	}
	c.regions[i].Verified = verified
	return nil
}

// SaveItem verifies one card, sending its text only when it differs from the original.
func (c *Controller) SaveItem(ctx context.Context, k model.Key) (Result, error) {
	id := SaveControl(k)

	c.mu.Lock()
	i := c.indexOf(k)
	if i < 0 {
		c.mu.Unlock()
		return Result{}, ErrNotFound
	}
	if err := c.acquire(id); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	upd := model.UpdateFor(c.regions[i], true)
	cmd := c.begin(ctx, KindSave, []model.Key{k})
	c.mu.Unlock()

	err := c.api.Verify(ctx, []model.Update{upd})

	c.mu.Lock()
	if err != nil {
		c.revert(ctx, cmd, err)
		c.release(id, false, 0)
		c.remember(cmd)
		c.mu.Unlock()
		return Result{}, err
	}
	if i := c.indexOf(k); i >= 0 {
		c.regions[i].Verified = true
	}
	c.applied(ctx, cmd)
	c.release(id, true, SuccessHold)
	c.remember(cmd)
	c.mu.Unlock()

	c.refreshStatsQuiet(ctx)
	return Result{Kind: KindSave, Count: 1, Message: "Saved " + k.ID()}, nil
}

// DeleteItem removes one card after confirmation. No reload follows.
func (c *Controller) DeleteItem(ctx context.Context, k model.Key, confirm Confirmer) (Result, error) {
	id := DeleteControl(k)

	c.mu.Lock()
	if c.indexOf(k) < 0 {
		c.mu.Unlock()
		return Result{}, ErrNotFound
	}
	c.mu.Unlock()

	if !confirmed(confirm, DeletePrompt(k)) {
		return Result{}, ErrCanceled
	}

	c.mu.Lock()
	if err := c.acquire(id); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	cmd := c.begin(ctx, KindDelete, []model.Key{k})
	c.mu.Unlock()

	_, err := c.api.DeleteRegions(ctx, []model.Key{k})

	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.remember(cmd)
	defer c.release(id, false, 0)
	if err != nil {
		c.revert(ctx, cmd, err)
		return Result{}, err
	}
	if i := c.indexOf(k); i >= 0 {
		c.regions = append(c.regions[:i], c.regions[i+1:]...)
	}
	c.view.prune(c.regions)
	c.applied(ctx, cmd)
	return Result{Kind: KindDelete, Count: 1, Message: "Deleted " + k.ID()}, nil
}

// SaveAll sends one update per card, each with its own verify checkbox, then reloads.
func (c *Controller) SaveAll(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if err := c.acquire(ControlSaveAll); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	updates := make([]model.Update, 0, len(c.regions))
	keys := make([]model.Key, 0, len(c.regions))
	for _, r := range c.regions {
		updates = append(updates, model.UpdateFor(r, r.Verified))
		keys = append(keys, r.Key)
	}
	cmd := c.begin(ctx, KindSaveAll, keys)
	c.mu.Unlock()

	err := c.api.Verify(ctx, updates)
	if err := c.finish(ctx, cmd, ControlSaveAll, err); err != nil {
		return Result{}, err
	}

	res := Result{Kind: KindSaveAll, Count: len(updates), Message: "Saved"}
	return c.reload(ctx, res)
}

// BatchVerifySelected verifies the selected visible cards. The selection is cleared and
// the cards are checked before the request; a failure restores both.
func (c *Controller) BatchVerifySelected(ctx context.Context) (Result, error) {
	c.mu.Lock()
	keys := c.view.SelectedVisible(c.regions)
	if len(keys) == 0 {
		c.mu.Unlock()
		return Result{}, ErrEmptySelection
	}
	if err := c.acquire(ControlBatch); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	cmd := c.begin(ctx, KindBatchVerify, keys)
	for _, k := range keys {
		delete(c.view.Selected, k)
		i := c.indexOf(k)
		prev := c.regions[i].Verified
		c.regions[i].Verified = true
		cmd.onRevert(func() {
			c.view.Selected[k] = true
			if j := c.indexOf(k); j >= 0 {
				c.regions[j].Verified = prev
			}
		})
	}
	c.mu.Unlock()

	n, err := c.api.BatchVerify(ctx, keys)
	if err := c.finish(ctx, cmd, ControlBatch, err); err != nil {
		return Result{}, err
	}

	res := Result{Kind: KindBatchVerify, Count: n, Message: fmt.Sprintf("Verified %d item(s)", n)}
	return c.reload(ctx, res)
}

// BatchDeleteSelected deletes the selected visible cards after confirming the count.
func (c *Controller) BatchDeleteSelected(ctx context.Context, confirm Confirmer) (Result, error) {
	keys := c.SelectedKeys()
	if len(keys) == 0 {
		return Result{}, ErrEmptySelection
	}
	if !confirmed(confirm, BatchDeletePrompt(len(keys))) {
		return Result{}, ErrCanceled
	}

	c.mu.Lock()
	if err := c.acquire(ControlBatch); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	cmd := c.begin(ctx, KindBatchDelete, keys)
	for _, k := range keys {
		delete(c.view.Selected, k)
		cmd.onRevert(func() { c.view.Selected[k] = true })
	}
	c.mu.Unlock()

	n, err := c.api.DeleteRegions(ctx, keys)
	if err := c.finish(ctx, cmd, ControlBatch, err); err != nil {
		return Result{}, err
	}

	res := Result{Kind: KindBatchDelete, Count: n, Message: fmt.Sprintf("Deleted %d item(s)", n)}
	return c.reload(ctx, res)
}

// BatchMenu is the current batch action selection. It is empty outside ExecuteBatchAction.
func (c *Controller) BatchMenu() model.BatchAction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batch
}

// ExecuteBatchAction runs one batch action and resets the menu to empty.
func (c *Controller) ExecuteBatchAction(ctx context.Context, a model.BatchAction, confirm Confirmer) (Result, error) {
	c.mu.Lock()
	c.batch = a
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.batch = model.BatchNone
		c.mu.Unlock()
	}()

	switch a {
	case model.BatchVerify:
		return c.BatchVerifySelected(ctx)
	case model.BatchDelete:
		return c.BatchDeleteSelected(ctx, confirm)
	case model.BatchSaveAll:
		return c.SaveAll(ctx)
	default:
		return Result{}, nil
	}
}

// DeleteImage removes every region of one source image, then reloads.
func (c *Controller) DeleteImage(ctx context.Context, name string, confirm Confirmer) (Result, error) {
	if !confirmed(confirm, DeleteImagePrompt(name)) {
		return Result{}, ErrCanceled
	}
	id := DeleteImageControl(name)

	c.mu.Lock()
	if err := c.acquire(id); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	var keys []model.Key
	for _, r := range c.regions {
		if r.ImageName == name {
			keys = append(keys, r.Key)
		}
	}
	cmd := c.begin(ctx, KindDeleteImage, keys)
	c.mu.Unlock()

	msg, err := c.api.DeleteImage(ctx, name)
	if err := c.finish(ctx, cmd, id, err); err != nil {
		return Result{}, err
	}
	return c.reload(ctx, Result{Kind: KindDeleteImage, Count: len(keys), Message: msg})
}

// RefreshStats fetches the dashboard counters.
func (c *Controller) RefreshStats(ctx context.Context) (model.Stats, error) {
	st, err := c.api.Stats(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	c.mu.Lock()
	c.stats = st
	c.statsLoaded = true
	c.mu.Unlock()
	return st, nil
}

func (c *Controller) refreshStatsQuiet(ctx context.Context) {
	if _, err := c.RefreshStats(ctx); err != nil {
		c.log.Warn("refresh stats", "err", err)
	}
}

// finish settles cmd after its request returned err and idles the control.
func (c *Controller) finish(ctx context.Context, cmd *Command, id ControlID, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.remember(cmd)
	c.release(id, false, 0)
	if err != nil {
		c.revert(ctx, cmd, err)
		return err
	}
	c.applied(ctx, cmd)
	return nil
}

func (c *Controller) reload(ctx context.Context, res Result) (Result, error) {
	if err := c.Load(ctx); err != nil {
		return res, fmt.Errorf("reload cards: %w", err)
	}
	res.Reloaded = true
	return res, nil
}
