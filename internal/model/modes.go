package model

import (
	"fmt"
	"strings"
)

type Filter string

const (
	FilterAll           Filter = "all"
	FilterVerified      Filter = "verified"
	FilterUnverified    Filter = "unverified"
	FilterLowConfidence Filter = "low-confidence"
)

var filters = []Filter{FilterAll, FilterVerified, FilterUnverified, FilterLowConfidence}

func Filters() []Filter { return append([]Filter(nil), filters...) }

// ParseFilter accepts the literal enum strings. Empty means FilterAll.
func ParseFilter(s string) (Filter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range filters {
		if string(f) == s {
			return f, nil
		}
	}
	return FilterAll, fmt.Errorf("unknown filter: %s (want one of %s)", s, joinModes(filters))
}

// Next cycles to the following filter, wrapping around.
func (f Filter) Next() Filter {
	for i, x := range filters {
		if x == f {
			return filters[(i+1)%len(filters)]
		}
	}
	return FilterAll
}

func (f Filter) Label() string {
	switch f {
	case FilterVerified:
		return "Verified"
	case FilterUnverified:
		return "Unverified"
	case FilterLowConfidence:
		return "Low confidence"
	default:
		return "All"
	}
}

type Sort string

const (
	SortConfidenceAsc  Sort = "confidence-asc"
	SortConfidenceDesc Sort = "confidence-desc"
	SortVerifiedFirst  Sort = "verified-first"
	SortVerifiedLast   Sort = "verified-last"
)

var sorts = []Sort{SortConfidenceAsc, SortConfidenceDesc, SortVerifiedFirst, SortVerifiedLast}

func Sorts() []Sort { return append([]Sort(nil), sorts...) }

// ParseSort accepts the literal enum strings. Empty means SortConfidenceAsc.
func ParseSort(s string) (Sort, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortConfidenceAsc, nil
	}
	for _, x := range sorts {
		if string(x) == s {
			return x, nil
		}
	}
	return SortConfidenceAsc, fmt.Errorf("unknown sort: %s (want one of %s)", s, joinModes(sorts))
}

func (s Sort) Next() Sort {
	for i, x := range sorts {
		if x == s {
			return sorts[(i+1)%len(sorts)]
		}
	}
	return SortConfidenceAsc
}

// ByVerification reports whether the order depends on the verified flag.
func (s Sort) ByVerification() bool {
	return s == SortVerifiedFirst || s == SortVerifiedLast
}

func (s Sort) Label() string {
	switch s {
	case SortConfidenceDesc:
		return "Confidence high→low"
	case SortVerifiedFirst:
		return "Verified first"
	case SortVerifiedLast:
		return "Verified last"
	default:
		return "Confidence low→high"
	}
}

type BatchAction string

const (
	BatchNone    BatchAction = ""
	BatchVerify  BatchAction = "verify"
	BatchDelete  BatchAction = "delete"
	BatchSaveAll BatchAction = "save-all"
)

func BatchActions() []BatchAction {
	return []BatchAction{BatchVerify, BatchDelete, BatchSaveAll}
}

func ParseBatchAction(s string) (BatchAction, error) {
	switch a := BatchAction(strings.ToLower(strings.TrimSpace(s))); a {
	case BatchNone, BatchVerify, BatchDelete, BatchSaveAll:
		return a, nil
	default:
		return BatchNone, fmt.Errorf("unknown batch action: %s (want verify|delete|save-all)", s)
	}
}

func (a BatchAction) Label() string {
	switch a {
	case BatchVerify:
		return "Verify selected"
	case BatchDelete:
		return "Delete selected"
	case BatchSaveAll:
		return "Save all"
	default:
		return "-"
	}
}

func joinModes[T ~string](xs []T) string {
	parts := make([]string, 0, len(xs))
	for _, x := range xs {
		parts = append(parts, string(x))
	}
	return strings.Join(parts, "|")
}
