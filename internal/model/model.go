package model

import (
	"fmt"
	"strconv"
	"strings"
)

// LowConfidenceThreshold is the confidence below which a region counts as low-confidence.
const LowConfidenceThreshold = 0.8

// Key identifies one OCR region: the source image plus the region's index within it.
type Key struct {
	ImageName string `json:"image_name"`
	RegionIdx int    `json:"region_idx"`
}

// ID returns the composite "{image_name}_{region_idx}" identifier used by the review page.
func (k Key) ID() string {
	return k.ImageName + "_" + strconv.Itoa(k.RegionIdx)
}

func (k Key) String() string { return k.ID() }

// ParseCompositeID splits a composite id at its last underscore.
//
// The image name may itself contain underscores; only the trailing segment is taken as the
// region index, so "my_scan_2023_3" decodes to ("my_scan_2023", 3).
func ParseCompositeID(id string) (Key, error) {
	id = strings.TrimSpace(id)
	i := strings.LastIndex(id, "_")
	if i <= 0 || i == len(id)-1 {
		return Key{}, fmt.Errorf("invalid region id %q: want {image_name}_{region_idx}", id)
	}
	raw := id[i+1:]
	idx, err := strconv.Atoi(raw)
	// The index must be canonical ("3", not "+3" or "03") so ID() round-trips.
	if err != nil || idx < 0 || strconv.Itoa(idx) != raw {
		return Key{}, fmt.Errorf("invalid region id %q: region index must be a non-negative integer", id)
	}
	return Key{ImageName: id[:i], RegionIdx: idx}, nil
}

// Region is one reviewable OCR card.
type Region struct {
	Key

	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`

	// Text is the editable value; OriginalText is the value the card was loaded with.
	Text         string `json:"text"`
	OriginalText string `json:"original_text"`

	CropImage string `json:"crop_image,omitempty"`
}

func (r Region) LowConfidence() bool { return r.Confidence < LowConfidenceThreshold }

// Changed reports whether the editable text differs from the loaded text.
func (r Region) Changed() bool { return r.Text != r.OriginalText }

// Update is one record of the /api/verify batch.
type Update struct {
	ImageName     string  `json:"image_name"`
	RegionIdx     int     `json:"region_idx"`
	Verified      bool    `json:"verified"`
	CorrectedText *string `json:"corrected_text,omitempty"`
}

// UpdateFor builds the verify record for r. The corrected text is only sent when it
// differs from the originally loaded text.
func UpdateFor(r Region, verified bool) Update {
	u := Update{
		ImageName: r.ImageName,
		RegionIdx: r.RegionIdx,
		Verified:  verified,
	}
	if r.Changed() {
		t := r.Text
		u.CorrectedText = &t
	}
	return u
}

type Stats struct {
	Total         int  `json:"total"`
	Verified      int  `json:"verified"`
	LowConfidence int  `json:"low_confidence"`
	DatasetExists bool `json:"dataset_exists"`
	LMDBExists    bool `json:"lmdb_exists"`
}

type UploadResult struct {
	Message      string `json:"message"`
	RegionsFound int    `json:"regions_found"`
}
