package review

import (
	"sort"

	"ocr-verifier/internal/model"
)

// Visible reports whether r passes filter f.
func Visible(r model.Region, f model.Filter) bool {
	switch f {
	case model.FilterVerified:
		return r.Verified
	case model.FilterUnverified:
		return !r.Verified
	case model.FilterLowConfidence:
		return r.LowConfidence()
	default:
		return true
	}
}

// FilterRegions returns the regions passing f, in their given order.
func FilterRegions(rs []model.Region, f model.Filter) []model.Region {
	out := make([]model.Region, 0, len(rs))
	for _, r := range rs {
		if Visible(r, f) {
			out = append(out, r)
		}
	}
	return out
}

// Compare orders two regions under sort s (negative: a first).
//
// verified-first returns +1 when only a is verified, so verified regions land after
// unverified ones; verified-last is the mirror. Ties on the verified flag fall back to
// ascending confidence.
func Compare(a, b model.Region, s model.Sort) int {
	switch s {
	case model.SortConfidenceDesc:
		return cmpFloat(b.Confidence, a.Confidence)
	case model.SortVerifiedFirst:
		if a.Verified == b.Verified {
			return cmpFloat(a.Confidence, b.Confidence)
		}
		if a.Verified {
			return 1
		}
		return -1
	case model.SortVerifiedLast:
		if a.Verified == b.Verified {
			return cmpFloat(a.Confidence, b.Confidence)
		}
		if a.Verified {
			return -1
		}
		return 1
	default:
		return cmpFloat(a.Confidence, b.Confidence)
	}
}

// SortRegions returns a copy of rs ordered by s. Exact ties keep their input order.
func SortRegions(rs []model.Region, s model.Sort) []model.Region {
	out := append([]model.Region(nil), rs...)
	sort.SliceStable(out, func(i, j int) bool { return Compare(out[i], out[j], s) < 0 })
	return out
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Row is one card as displayed.
type Row struct {
	Region   model.Region
	Visible  bool
	Selected bool
}

// ViewState is the reviewer-controlled presentation state.
type ViewState struct {
	Filter   model.Filter
	Sort     model.Sort
	Selected map[model.Key]bool
}

func NewViewState() ViewState {
	return ViewState{
		Filter:   model.FilterAll,
		Sort:     model.SortConfidenceAsc,
		Selected: map[model.Key]bool{},
	}
}

// Render orders every region (hidden ones included) and marks visibility and selection.
func (v ViewState) Render(rs []model.Region) []Row {
	sorted := SortRegions(rs, v.Sort)
	rows := make([]Row, 0, len(sorted))
	for _, r := range sorted {
		rows = append(rows, Row{
			Region:   r,
			Visible:  Visible(r, v.Filter),
			Selected: v.Selected[r.Key],
		})
	}
	return rows
}

// VisibleRows is Render restricted to visible rows.
func (v ViewState) VisibleRows(rs []model.Region) []Row {
	all := v.Render(rs)
	out := all[:0]
	for _, row := range all {
		if row.Visible {
			out = append(out, row)
		}
	}
	return out
}
