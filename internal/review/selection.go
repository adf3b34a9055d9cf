package review

import "ocr-verifier/internal/model"

const (
	labelSelectAll   = "Select all"
	labelDeselectAll = "Deselect all"
)

// AllVisibleSelected reports whether every visible row is selected.
// It is vacuously true when nothing is visible.
func (v ViewState) AllVisibleSelected(rs []model.Region) bool {
	for _, r := range rs {
		if Visible(r, v.Filter) && !v.Selected[r.Key] {
			return false
		}
	}
	return true
}

// ToggleSelectAll selects every visible region, or deselects them all when they are
// already selected. Hidden regions keep their selection.
func (v *ViewState) ToggleSelectAll(rs []model.Region) {
	if v.Selected == nil {
		v.Selected = map[model.Key]bool{}
	}
	target := !v.AllVisibleSelected(rs)
	for _, r := range rs {
		if !Visible(r, v.Filter) {
			continue
		}
		if target {
			v.Selected[r.Key] = true
		} else {
			delete(v.Selected, r.Key)
		}
	}
}

// SelectAllLabel is the caption of the select-all toggle.
func (v ViewState) SelectAllLabel(rs []model.Region) string {
	if v.AllVisibleSelected(rs) {
		return labelDeselectAll
	}
	return labelSelectAll
}

// SelectedVisible returns the selected keys among visible regions, in display order.
func (v ViewState) SelectedVisible(rs []model.Region) []model.Key {
	var out []model.Key
	for _, row := range v.Render(rs) {
		if row.Visible && row.Selected {
			out = append(out, row.Region.Key)
		}
	}
	return out
}

func (v *ViewState) prune(rs []model.Region) {
	if len(v.Selected) == 0 {
		return
	}
	live := make(map[model.Key]bool, len(rs))
	for _, r := range rs {
		live[r.Key] = true
	}
	for k := range v.Selected {
		if !live[k] {
			delete(v.Selected, k)
		}
	}
}
