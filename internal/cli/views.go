package cli

import (
	"strconv"
	"strings"
	"time"

	"ocr-verifier/internal/model"
	"ocr-verifier/internal/review"
	"ocr-verifier/internal/store"

	"github.com/charmbracelet/x/ansi"
)

const tableTextWidth = 40

type regionView struct {
	ID            string  `json:"id"`
	ImageName     string  `json:"image_name"`
	RegionIdx     int     `json:"region_idx"`
	Confidence    float64 `json:"confidence"`
	Verified      bool    `json:"verified"`
	LowConfidence bool    `json:"low_confidence"`
	Changed       bool    `json:"changed"`
	Text          string  `json:"text"`
	OriginalText  string  `json:"original_text"`
	CropImage     string  `json:"crop_image,omitempty"`
	Visible       bool    `json:"visible"`
}

func toRegionView(row review.Row) regionView {
	r := row.Region
	return regionView{
		ID:            r.ID(),
		ImageName:     r.ImageName,
		RegionIdx:     r.RegionIdx,
		Confidence:    r.Confidence,
		Verified:      r.Verified,
		LowConfidence: r.LowConfidence(),
		Changed:       r.Changed(),
		Text:          r.Text,
		OriginalText:  r.OriginalText,
		CropImage:     r.CropImage,
		Visible:       row.Visible,
	}
}

type regionTable []regionView

func (t regionTable) TableHeaders() []string {
	return []string{"ID", "CONF", "VERIFIED", "TEXT"}
}

func (t regionTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, r := range t {
		verified := "no"
		if r.Verified {
			verified = "yes"
		}
		rows = append(rows, []string{
			r.ID,
			strconv.FormatFloat(r.Confidence, 'f', 2, 64),
			verified,
			ansi.Truncate(strings.ReplaceAll(r.Text, "\n", " "), tableTextWidth, "…"),
		})
	}
	return rows
}

type resultView struct {
	Kind     string `json:"kind"`
	Message  string `json:"message,omitempty"`
	Hint     string `json:"hint,omitempty"`
	Count    int    `json:"count"`
	Reloaded bool   `json:"reloaded"`

	CommandID    string `json:"command_id,omitempty"`
	CommandState string `json:"command_state,omitempty"`
}

func toResultView(ctrl *review.Controller, res review.Result) resultView {
	v := resultView{
		Kind:     string(res.Kind),
		Message:  res.Message,
		Hint:     res.Hint,
		Count:    res.Count,
		Reloaded: res.Reloaded,
	}
	if cmd, ok := ctrl.LastCommand(); ok {
		v.CommandID = cmd.ID
		v.CommandState = string(cmd.State)
	}
	return v
}

type statsView struct {
	model.Stats
	LMDBReady bool `json:"lmdb_ready"`
}

type journalTable []store.JournalEntry

func (t journalTable) TableHeaders() []string {
	return []string{"SEQ", "COMMAND", "KIND", "STATE", "KEYS", "AT", "ERROR"}
}

func (t journalTable) TableRows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, e := range t {
		rows = append(rows, []string{
			strconv.FormatInt(e.Seq, 10),
			e.ID,
			e.Kind,
			e.State,
			ansi.Truncate(strings.Join(e.Keys, ","), tableTextWidth, "…"),
			e.At.Local().Format(time.DateTime),
			e.Error,
		})
	}
	return rows
}
