package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"ocr-verifier/internal/model"
	"ocr-verifier/internal/store"
)

// reviewServer imitates the review backend: GET / renders item cards, /api/* speaks JSON.
type reviewServer struct {
	mu       sync.Mutex
	regions  []model.Region
	dataset  bool
	requests []string
	bodies   map[string][]byte
}

func newReviewServer(t *testing.T, rs ...model.Region) (*reviewServer, *httptest.Server) {
	t.Helper()
	s := &reviewServer{regions: rs, bodies: map[string][]byte{}}
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *reviewServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, _ := io.ReadAll(r.Body)
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.bodies[r.URL.Path] = body

	reply := func(v map[string]any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	var items struct {
		Items   []model.Key    `json:"items"`
		Updates []model.Update `json:"updates"`
	}
	_ = json.Unmarshal(body, &items)

	switch r.URL.Path {
	case "/":
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, s.page())
	case "/api/stats":
		verified := 0
		for _, x := range s.regions {
			if x.Verified {
				verified++
			}
		}
		reply(map[string]any{"success": true, "data": map[string]any{
			"total": len(s.regions), "verified": verified, "low_confidence": 0, "dataset_exists": s.dataset,
		}})
	case "/api/verify":
		for _, u := range items.Updates {
			s.mark(model.Key{ImageName: u.ImageName, RegionIdx: u.RegionIdx}, u.Verified)
		}
		reply(map[string]any{"success": true})
	case "/api/batch_verify":
		for _, k := range items.Items {
			s.mark(k, true)
		}
		reply(map[string]any{"success": true, "count": len(items.Items)})
	case "/api/delete_regions":
		drop := map[model.Key]bool{}
		for _, k := range items.Items {
			drop[k] = true
		}
		kept := s.regions[:0]
		for _, x := range s.regions {
			if !drop[x.Key] {
				kept = append(kept, x)
			}
		}
		s.regions = kept
		reply(map[string]any{"success": true, "count": len(drop)})
	case "/api/generate_dataset":
		s.dataset = true
		reply(map[string]any{"success": true, "message": "generated"})
	default:
		w.WriteHeader(http.StatusNotFound)
		reply(map[string]any{"success": false, "error": "no route " + r.URL.Path})
	}
}

func (s *reviewServer) mark(k model.Key, verified bool) {
	for i := range s.regions {
		if s.regions[i].Key == k {
			s.regions[i].Verified = verified
		}
	}
}

func (s *reviewServer) page() string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="itemsContainer">`)
	for _, r := range s.regions {
		checked := ""
		if r.Verified {
			checked = " checked"
		}
		fmt.Fprintf(&b,
			`<div class="item-card" data-id="%s" data-image-name="%s" data-region-idx="%d" data-confidence="%g" data-verified="%t">`+
				`<input class="item-input" value="%s" data-original="%s"><input type="checkbox" class="verify-checkbox"%s></div>`,
			html.EscapeString(r.ID()), html.EscapeString(r.ImageName), r.RegionIdx, r.Confidence, r.Verified,
			html.EscapeString(r.Text), html.EscapeString(r.OriginalText), checked)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func (s *reviewServer) posts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.requests {
		if strings.HasPrefix(r, "POST ") {
			out = append(out, r)
		}
	}
	return out
}

func (s *reviewServer) body(path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[path]
}

func card(img string, idx int, conf float64, verified bool, text string) model.Region {
	return model.Region{
		Key:          model.Key{ImageName: img, RegionIdx: idx},
		Confidence:   conf,
		Verified:     verified,
		Text:         text,
		OriginalText: text,
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

type cliEnv struct {
	t   *testing.T
	srv *httptest.Server
	dir string
}

func (c cliEnv) args(args ...string) []string {
	return append([]string{"--url", c.srv.URL, "--dir", c.dir}, args...)
}

func (c cliEnv) mustEnv(args ...string) map[string]any {
	c.t.Helper()
	stdout, stderr, err := runCLI(c.t, "", c.args(args...)...)
	if err != nil {
		c.t.Fatalf("command failed: verifier %v\nerr: %v\nstderr:\n%s\nstdout:\n%s", args, err, stderr, stdout)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		c.t.Fatalf("unmarshal stdout as json envelope: %v\nstdout:\n%s\nargs: %v", err, stdout, args)
	}
	if _, ok := env["data"]; !ok {
		c.t.Fatalf("expected JSON envelope to contain data key; got: %v", env)
	}
	return env
}

func newCLIEnv(t *testing.T, rs ...model.Region) (cliEnv, *reviewServer) {
	t.Helper()
	s, srv := newReviewServer(t, rs...)
	return cliEnv{t: t, srv: srv, dir: t.TempDir()}, s
}

func ids(t *testing.T, data any) []string {
	t.Helper()
	xs, ok := data.([]any)
	if !ok {
		t.Fatalf("expected list data, got %T", data)
	}
	var out []string
	for _, x := range xs {
		id, _ := x.(map[string]any)["id"].(string)
		out = append(out, id)
	}
	return out
}

func TestRegionsList_PersistedAndOverriddenView(t *testing.T) {
	t.Parallel()

	env, _ := newCLIEnv(t,
		card("page01", 0, 0.95, true, "A"),
		card("page01", 1, 0.40, false, "B"),
		card("page_02", 5, 0.60, false, "C"),
	)

	got := ids(t, env.mustEnv("regions", "list")["data"])
	if strings.Join(got, ",") != "page01_1,page_02_5,page01_0" {
		t.Fatalf("default order = %v", got)
	}

	env.mustEnv("state", "set-filter", "unverified")
	env.mustEnv("state", "set-sort", "confidence-desc")
	got = ids(t, env.mustEnv("regions", "list")["data"])
	if strings.Join(got, ",") != "page_02_5,page01_1" {
		t.Fatalf("persisted view order = %v", got)
	}

	// One-off flags do not overwrite the persisted choice.
	got = ids(t, env.mustEnv("regions", "list", "--filter", "verified")["data"])
	if strings.Join(got, ",") != "page01_0" {
		t.Fatalf("override = %v", got)
	}
	st := env.mustEnv("state", "show")["data"].(map[string]any)
	if st["filter"] != "unverified" || st["sort"] != "confidence-desc" {
		t.Fatalf("state after override = %v", st)
	}

	all := env.mustEnv("regions", "list", "--all")["data"].([]any)
	if len(all) != 3 {
		t.Fatalf("--all returned %d rows", len(all))
	}
}

func TestRegionsSave_SendsCorrectedTextOnlyWhenChanged(t *testing.T) {
	t.Parallel()

	env, srv := newCLIEnv(t, card("page01", 1, 0.40, false, "T0TAL"))

	env.mustEnv("regions", "save", "page01_1")
	if b := string(srv.body("/api/verify")); strings.Contains(b, "corrected_text") {
		t.Fatalf("unchanged save sent corrected_text: %s", b)
	}

	res := env.mustEnv("regions", "save", "page01_1", "--text", "TOTAL")["data"].(map[string]any)
	var req struct {
		Updates []model.Update `json:"updates"`
	}
	if err := json.Unmarshal(srv.body("/api/verify"), &req); err != nil {
		t.Fatalf("decode verify body: %v", err)
	}
	if len(req.Updates) != 1 || req.Updates[0].CorrectedText == nil || *req.Updates[0].CorrectedText != "TOTAL" || !req.Updates[0].Verified {
		t.Fatalf("unexpected verify body: %+v", req.Updates)
	}
	if res["kind"] != "save" || res["command_state"] != "applied" {
		t.Fatalf("unexpected result: %v", res)
	}
}

func TestRegionsSaveAll_VerifyAndUnverifyFlags(t *testing.T) {
	t.Parallel()

	env, srv := newCLIEnv(t,
		card("page01", 0, 0.95, true, "A"),
		card("page01", 1, 0.40, false, "B"),
	)

	env.mustEnv("regions", "save-all", "--unverify", "page01_0", "--verify", "page01_1")
	var req struct {
		Updates []model.Update `json:"updates"`
	}
	if err := json.Unmarshal(srv.body("/api/verify"), &req); err != nil {
		t.Fatalf("decode verify body: %v", err)
	}
	got := map[string]bool{}
	for _, u := range req.Updates {
		got[model.Key{ImageName: u.ImageName, RegionIdx: u.RegionIdx}.ID()] = u.Verified
	}
	if len(got) != 2 || got["page01_0"] || !got["page01_1"] {
		t.Fatalf("verified flags = %v", got)
	}

	_, errOut, err := runCLI(t, "", env.args("regions", "save-all", "--unverify", "nope_9")...)
	if err == nil || !strings.Contains(string(errOut), "nope_9") {
		t.Fatalf("unknown id: err=%v stderr=%q", err, errOut)
	}
}

func TestRegionsVerify_JournalsCommand(t *testing.T) {
	t.Parallel()

	env, srv := newCLIEnv(t,
		card("page01", 0, 0.95, false, "A"),
		card("page01", 1, 0.40, false, "B"),
	)

	res := env.mustEnv("regions", "verify", "page01_0", "page01_1")["data"].(map[string]any)
	if res["count"] != float64(2) || res["reloaded"] != true {
		t.Fatalf("unexpected result: %v", res)
	}
	var req struct {
		Items []model.Key `json:"items"`
	}
	_ = json.Unmarshal(srv.body("/api/batch_verify"), &req)
	if len(req.Items) != 2 || req.Items[0].RegionIdx != 1 {
		t.Fatalf("items not in display order: %+v", req.Items)
	}

	entries := env.mustEnv("journal", "list")["data"].([]any)
	if len(entries) != 2 {
		t.Fatalf("journal entries = %d, want 2", len(entries))
	}
	newest := entries[0].(map[string]any)
	if newest["state"] != "applied" || newest["kind"] != "batch-verify" || newest["id"] != res["command_id"] {
		t.Fatalf("newest entry = %v", newest)
	}

	hist := env.mustEnv("journal", "show", res["command_id"].(string))["data"].([]any)
	if len(hist) != 2 || hist[0].(map[string]any)["state"] != "pending" {
		t.Fatalf("history = %v", hist)
	}
}

func TestRegionsDelete_DeclinedPromptSendsNothing(t *testing.T) {
	t.Parallel()

	env, srv := newCLIEnv(t, card("page01", 0, 0.95, false, "A"))

	_, stderr, err := runCLI(t, "n\n", env.args("regions", "delete", "page01_0")...)
	if err == nil {
		t.Fatalf("expected cancel error")
	}
	if !strings.Contains(string(stderr), "Image: page01") || !strings.Contains(string(stderr), "canceled") {
		t.Fatalf("stderr = %s", stderr)
	}
	if p := srv.posts(); len(p) != 0 {
		t.Fatalf("expected no POST, got %v", p)
	}

	if _, _, err := runCLI(t, "y\n", env.args("regions", "delete", "page01_0")...); err != nil {
		t.Fatalf("confirmed delete: %v", err)
	}
	if p := srv.posts(); len(p) != 1 || p[0] != "POST /api/delete_regions" {
		t.Fatalf("posts = %v", p)
	}
}

func TestBatch_UnknownRegionAndEmptySelection(t *testing.T) {
	t.Parallel()

	env, srv := newCLIEnv(t, card("page01", 0, 0.95, false, "A"))

	if _, _, err := runCLI(t, "", env.args("batch", "verify", "nope_3")...); err == nil {
		t.Fatalf("expected not-found error")
	}
	_, stderr, err := runCLI(t, "", env.args("--yes", "batch", "delete")...)
	if err == nil || !strings.Contains(string(stderr), "no items selected") {
		t.Fatalf("expected empty selection error, got %v / %s", err, stderr)
	}
	if p := srv.posts(); len(p) != 0 {
		t.Fatalf("expected no POST, got %v", p)
	}
}

func TestUpload_RejectsNonImage(t *testing.T) {
	t.Parallel()

	env, srv := newCLIEnv(t)
	if _, _, err := runCLI(t, "", env.args("upload", "scan.pdf")...); err == nil {
		t.Fatalf("expected unsupported file error")
	}
	if p := srv.posts(); len(p) != 0 {
		t.Fatalf("expected no POST, got %v", p)
	}
}

func TestDataset_LMDBGatedUntilGenerated(t *testing.T) {
	t.Parallel()

	env, _ := newCLIEnv(t, card("page01", 0, 0.95, true, "A"))

	_, stderr, err := runCLI(t, "", env.args("--yes", "dataset", "lmdb")...)
	if err == nil || !strings.Contains(string(stderr), "no dataset generated yet") {
		t.Fatalf("expected dataset missing error, got %v / %s", err, stderr)
	}

	res := env.mustEnv("--yes", "dataset", "generate")["data"].(map[string]any)
	if res["message"] != "generated" || res["hint"] == "" {
		t.Fatalf("unexpected result: %v", res)
	}
	st := env.mustEnv("stats")
	if st["data"].(map[string]any)["lmdb_ready"] != true {
		t.Fatalf("stats = %v", st)
	}
}

func TestFormat_Table(t *testing.T) {
	t.Parallel()

	env, _ := newCLIEnv(t, card("page01", 0, 0.42, false, "SUPERNORMAL"))
	stdout, _, err := runCLI(t, "", env.args("--format", "table", "regions", "list")...)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	out := string(stdout)
	for _, s := range []string{"ID", "CONF", "page01_0", "0.42", "SUPERNORMAL"} {
		if !strings.Contains(out, s) {
			t.Fatalf("table missing %q:\n%s", s, out)
		}
	}
}

func TestState_RejectsUnknownValues(t *testing.T) {
	t.Parallel()

	env, _ := newCLIEnv(t)
	if _, _, err := runCLI(t, "", env.args("state", "set-filter", "starred")...); err == nil {
		t.Fatalf("expected error for unknown filter")
	}
	if _, _, err := runCLI(t, "", env.args("state", "set-sort", "random")...); err == nil {
		t.Fatalf("expected error for unknown sort")
	}
}

func TestStateShow_RestoresPersistedView(t *testing.T) {
	t.Parallel()

	env, _ := newCLIEnv(t)
	env.mustEnv("state", "set-sort", "verified-first")
	data := env.mustEnv("state", "set-filter", "low-confidence")["data"].(map[string]any)
	if data["filter"] != "low-confidence" || data["sort"] != "verified-first" {
		t.Fatalf("data = %v", data)
	}

	st := store.Store{Dir: env.dir}
	if err := st.SetItem(store.FilterStateKey, "starred"); err != nil {
		t.Fatalf("seed filter: %v", err)
	}
	data = env.mustEnv("state", "show")["data"].(map[string]any)
	if data["filter"] != "all" || data["sort"] != "verified-first" {
		t.Fatalf("unknown stored filter must restore as all, got %v", data)
	}
}

func TestRegionsShow(t *testing.T) {
	t.Parallel()

	env, _ := newCLIEnv(t,
		card("my_scan_2023", 3, 0.55, false, "合計"),
		card("page01", 0, 0.20, false, "A"),
	)
	out := env.mustEnv("regions", "show", "my_scan_2023_3")
	data := out["data"].(map[string]any)
	if data["image_name"] != "my_scan_2023" || data["region_idx"] != float64(3) || data["low_confidence"] != true {
		t.Fatalf("data = %v", data)
	}
	if out["meta"].(map[string]any)["position"] != float64(1) {
		t.Fatalf("meta = %v", out["meta"])
	}

	if _, _, err := runCLI(t, "", env.args("regions", "show", "page01_9")...); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestDocs(t *testing.T) {
	t.Parallel()

	env, _ := newCLIEnv(t)
	topics := env.mustEnv("docs")["data"].(map[string]any)["topics"].([]any)
	if len(topics) == 0 {
		t.Fatalf("no topics")
	}
	stdout, _, err := runCLI(t, "", env.args("docs", "pipeline", "--raw")...)
	if err != nil || !strings.HasPrefix(string(stdout), "# Dataset pipeline") {
		t.Fatalf("raw docs: %v\n%s", err, stdout)
	}
	if _, _, err := runCLI(t, "", env.args("docs", "nope")...); err == nil {
		t.Fatalf("expected unknown topic error")
	}
}

func TestExecute_ClosesLogFileWhenCommandFails(t *testing.T) {
	env, _ := newCLIEnv(t)
	logPath := filepath.Join(t.TempDir(), "verifier.log")

	app := &App{}
	cmd := newRootCmd(app)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(env.args("--log-file", logPath, "regions", "show", "page01_9"))

	if err := execute(cmd, app); err == nil {
		t.Fatalf("expected not-found error")
	}
	if app.closeLog != nil {
		t.Fatalf("log file left open after a failed command")
	}
	if err := app.closeLogFile(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	b, err := os.ReadFile(logPath)
	if err != nil || !strings.Contains(string(b), "command start") {
		t.Fatalf("log file = %q, err %v", b, err)
	}
}
