package review

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	hintGenerate = "Next step: convert to LMDB"
	hintLMDB     = "Output: dataset_lmdb/train/\nNext step: train with deep-text-recognition-benchmark/train.py"
)

var uploadExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// CheckUploadName rejects file names the server will not accept.
func CheckUploadName(name string) error {
	if !uploadExts[strings.ToLower(filepath.Ext(name))] {
		return fmt.Errorf("%s: %w", filepath.Base(name), ErrUnsupportedFile)
	}
	return nil
}

// Upload sends one image file, then reloads the cards.
func (c *Controller) Upload(ctx context.Context, path string) (Result, error) {
	if err := CheckUploadName(path); err != nil {
		return Result{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()
	return c.UploadReader(ctx, filepath.Base(path), f)
}

// UploadReader is Upload for an already opened image.
func (c *Controller) UploadReader(ctx context.Context, name string, body io.Reader) (Result, error) {
	if err := CheckUploadName(name); err != nil {
		return Result{}, err
	}

	c.mu.Lock()
	if err := c.acquire(ControlUpload); err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	cmd := c.begin(ctx, KindUpload, nil)
	c.mu.Unlock()

	up, err := c.api.Upload(ctx, name, body)
	if err := c.finish(ctx, cmd, ControlUpload, err); err != nil {
		return Result{}, err
	}

	res := Result{
		Kind:    KindUpload,
		Count:   up.RegionsFound,
		Message: up.Message,
		Hint:    fmt.Sprintf("Found %d text region(s)", up.RegionsFound),
	}
	return c.reload(ctx, res)
}

// GenerateDataset splits the verified regions into the training dataset.
func (c *Controller) GenerateDataset(ctx context.Context, confirm Confirmer) (Result, error) {
	if !confirmed(confirm, GeneratePrompt()) {
		return Result{}, ErrCanceled
	}
	msg, err := c.pipeline(ctx, KindGenerate, ControlGenerate, c.api.GenerateDataset)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: KindGenerate, Message: msg, Hint: hintGenerate}, nil
}

// LMDBReady reports whether LMDB conversion may run. Before the first stats fetch the
// server decides.
func (c *Controller) LMDBReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.statsLoaded || c.stats.DatasetExists
}

// ConvertToLMDB packages the generated dataset.
func (c *Controller) ConvertToLMDB(ctx context.Context, confirm Confirmer) (Result, error) {
	if !c.LMDBReady() {
		return Result{}, ErrDatasetMissing
	}
	if !confirmed(confirm, LMDBPrompt()) {
		return Result{}, ErrCanceled
	}
	msg, err := c.pipeline(ctx, KindConvertLMDB, ControlLMDB, c.api.ConvertToLMDB)
	if err != nil {
		return Result{}, err
	}
	return Result{Kind: KindConvertLMDB, Message: msg, Hint: hintLMDB}, nil
}

// ReprocessImages wipes annotations, crops and MD5 records and re-runs OCR over the input
// directory. The cards are reloaded afterwards.
func (c *Controller) ReprocessImages(ctx context.Context, confirm Confirmer) (Result, error) {
	if !confirmed(confirm, ReprocessPrompt()) {
		return Result{}, ErrCanceled
	}
	msg, err := c.pipeline(ctx, KindReprocess, ControlReprocess, c.api.ReprocessImages)
	if err != nil {
		return Result{}, err
	}
	return c.reload(ctx, Result{Kind: KindReprocess, Message: JoinLines(msg)})
}

func (c *Controller) pipeline(ctx context.Context, kind CommandKind, id ControlID, call func(context.Context) (string, error)) (string, error) {
	c.mu.Lock()
	if err := c.acquire(id); err != nil {
		c.mu.Unlock()
		return "", err
	}
	cmd := c.begin(ctx, kind, nil)
	c.mu.Unlock()

	start := c.now()
	msg, err := call(ctx)
	if err := c.finish(ctx, cmd, id, err); err != nil {
		return "", err
	}
	c.log.Info("pipeline step finished", "kind", kind, "dur", c.now().Sub(start))
	c.refreshStatsQuiet(ctx)
	return msg, nil
}

// JoinLines flattens a multi-line server message onto one line.
func JoinLines(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", " | ")
}

// ProgressTick is the interval between simulated progress steps.
const ProgressTick = 300 * time.Millisecond

// ReprocessSteps are the status lines shown while a reprocess request is in flight.
var ReprocessSteps = []string{
	"Step 1/4: clearing annotations.json",
	"Step 2/4: clearing crops/",
	"Step 3/4: clearing deleted files",
	"Step 4/4: running OCR and cropping",
}

// SimulatedProgress fakes progress for a request that reports none: random steps of up
// to 10% that stop at 90% until Complete.
type SimulatedProgress struct {
	pct  float64
	done bool
	rnd  *rand.Rand
}

func NewSimulatedProgress(seed int64) *SimulatedProgress {
	return &SimulatedProgress{rnd: rand.New(rand.NewSource(seed))}
}

// Step advances the bar and returns the fraction in [0, 1].
func (p *SimulatedProgress) Step() float64 {
	if !p.done && p.pct < 90 {
		p.pct += p.rnd.Float64() * 10
		if p.pct > 90 {
			p.pct = 90
		}
	}
	return p.Fraction()
}

// Complete jumps to 100%.
func (p *SimulatedProgress) Complete() float64 {
	p.done = true
	p.pct = 100
	return 1
}

func (p *SimulatedProgress) Fraction() float64 { return p.pct / 100 }

// Percent is the whole-number label value.
func (p *SimulatedProgress) Percent() int { return int(p.pct) }
