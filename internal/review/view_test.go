package review

import (
	"reflect"
	"testing"

	"ocr-verifier/internal/model"
)

func region(img string, idx int, conf float64, verified bool) model.Region {
	return model.Region{
		Key:          model.Key{ImageName: img, RegionIdx: idx},
		Confidence:   conf,
		Verified:     verified,
		Text:         "t",
		OriginalText: "t",
	}
}

func keysOf(rs []model.Region) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.ID())
	}
	return out
}

func TestSortRegions_ComparatorSigns(t *testing.T) {
	t.Parallel()

	unv := region("a", 0, 0.9, false)
	ver := region("b", 0, 0.2, true)

	tests := []struct {
		sort model.Sort
		in   []model.Region
		want []string
	}{
		{model.SortConfidenceAsc, []model.Region{unv, ver}, []string{"b_0", "a_0"}},
		{model.SortConfidenceDesc, []model.Region{ver, unv}, []string{"a_0", "b_0"}},
		// verified sorts after unverified under verified-first.
		{model.SortVerifiedFirst, []model.Region{ver, unv}, []string{"a_0", "b_0"}},
		{model.SortVerifiedFirst, []model.Region{unv, ver}, []string{"a_0", "b_0"}},
		{model.SortVerifiedLast, []model.Region{unv, ver}, []string{"b_0", "a_0"}},
	}
	for _, tt := range tests {
		got := keysOf(SortRegions(tt.in, tt.sort))
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("%s: got %v, want %v", tt.sort, got, tt.want)
		}
	}
}

func TestSortRegions_TieBreaksAndStability(t *testing.T) {
	t.Parallel()

	in := []model.Region{
		region("v", 1, 0.7, true),
		region("u", 1, 0.5, false),
		region("v", 2, 0.3, true),
		region("u", 2, 0.5, false),
		region("u", 3, 0.1, false),
	}

	got := keysOf(SortRegions(in, model.SortVerifiedFirst))
	want := []string{"u_3", "u_1", "u_2", "v_2", "v_1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("verified-first: got %v, want %v", got, want)
	}

	got = keysOf(SortRegions(in, model.SortVerifiedLast))
	want = []string{"v_2", "v_1", "u_3", "u_1", "u_2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("verified-last: got %v, want %v", got, want)
	}

	asc := SortRegions(in, model.SortConfidenceAsc)
	for i := 1; i < len(asc); i++ {
		if asc[i-1].Confidence > asc[i].Confidence {
			t.Fatalf("confidence-asc out of order at %d: %v", i, keysOf(asc))
		}
	}
	// Equal confidences keep input order.
	if asc[2].ID() != "u_1" || asc[3].ID() != "u_2" {
		t.Fatalf("stable tie broken: %v", keysOf(asc))
	}
	if in[0].ID() != "v_1" {
		t.Fatalf("input slice was reordered")
	}
}

func TestFilterRegions(t *testing.T) {
	t.Parallel()

	in := []model.Region{
		region("a", 0, 0.95, true),
		region("a", 1, 0.79, false),
		region("a", 2, 0.80, false),
		region("a", 3, 0.10, true),
	}
	tests := map[model.Filter][]string{
		model.FilterAll:           {"a_0", "a_1", "a_2", "a_3"},
		model.FilterVerified:      {"a_0", "a_3"},
		model.FilterUnverified:    {"a_1", "a_2"},
		model.FilterLowConfidence: {"a_1", "a_3"},
	}
	for f, want := range tests {
		once := FilterRegions(in, f)
		if got := keysOf(once); !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: got %v, want %v", f, got, want)
		}
		if twice := FilterRegions(once, f); !reflect.DeepEqual(keysOf(twice), keysOf(once)) {
			t.Fatalf("%s: filter not idempotent", f)
		}
	}
}

func TestViewState_RenderKeepsHiddenRows(t *testing.T) {
	t.Parallel()

	v := NewViewState()
	v.Filter = model.FilterUnverified
	v.Sort = model.SortConfidenceDesc
	rs := []model.Region{region("a", 0, 0.2, true), region("a", 1, 0.5, false)}

	rows := v.Render(rs)
	if len(rows) != 2 || rows[0].Region.ID() != "a_1" || !rows[0].Visible || rows[1].Visible {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if vis := v.VisibleRows(rs); len(vis) != 1 || vis[0].Region.ID() != "a_1" {
		t.Fatalf("unexpected visible rows: %+v", vis)
	}
}

func TestToggleSelectAll_VisibleOnly(t *testing.T) {
	t.Parallel()

	rs := []model.Region{
		region("a", 0, 0.9, true),
		region("a", 1, 0.5, false),
		region("a", 2, 0.6, false),
	}
	v := NewViewState()
	v.Filter = model.FilterUnverified
	hidden := rs[0].Key
	v.Selected[hidden] = true

	if v.SelectAllLabel(rs) != "Select all" {
		t.Fatalf("label = %q", v.SelectAllLabel(rs))
	}
	v.ToggleSelectAll(rs)
	if got := v.SelectedVisible(rs); len(got) != 2 {
		t.Fatalf("selected visible = %v", got)
	}
	if v.SelectAllLabel(rs) != "Deselect all" {
		t.Fatalf("label after select = %q", v.SelectAllLabel(rs))
	}

	v.ToggleSelectAll(rs)
	if got := v.SelectedVisible(rs); len(got) != 0 {
		t.Fatalf("expected visible deselected, got %v", got)
	}
	if !v.Selected[hidden] {
		t.Fatalf("hidden selection must not be touched")
	}
}

func TestToggleSelectAll_NothingVisible(t *testing.T) {
	t.Parallel()

	rs := []model.Region{region("a", 0, 0.9, true)}
	v := NewViewState()
	v.Filter = model.FilterUnverified

	if !v.AllVisibleSelected(rs) {
		t.Fatalf("expected vacuous all-selected")
	}
	v.ToggleSelectAll(rs)
	if len(v.Selected) != 0 {
		t.Fatalf("expected no-op, got %v", v.Selected)
	}
}
