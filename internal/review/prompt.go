package review

import (
	"fmt"

	"ocr-verifier/internal/model"
)

// Prompt describes a confirmation the reviewer must accept before an action runs.
type Prompt struct {
	Title        string
	Body         string
	ConfirmLabel string
	Destructive  bool
}

// Confirmer answers confirmation prompts. The TUI answers asynchronously through
// its modal and then passes Approve; the CLI asks on stdin.
type Confirmer interface {
	Confirm(Prompt) bool
}

type ConfirmFunc func(Prompt) bool

func (f ConfirmFunc) Confirm(p Prompt) bool { return f(p) }

// Approve accepts every prompt.
var Approve Confirmer = ConfirmFunc(func(Prompt) bool { return true })

func confirmed(c Confirmer, p Prompt) bool {
	if c == nil {
		return false
	}
	return c.Confirm(p)
}

func DeletePrompt(k model.Key) Prompt {
	return Prompt{
		Title:        "Delete region?",
		Body:         fmt.Sprintf("Image: %s\nRegion: %d\n\nThis cannot be undone.", k.ImageName, k.RegionIdx),
		ConfirmLabel: "Delete",
		Destructive:  true,
	}
}

func BatchDeletePrompt(n int) Prompt {
	return Prompt{
		Title:        "Delete selected regions?",
		Body:         fmt.Sprintf("Delete %d item(s)?\nThis cannot be undone.", n),
		ConfirmLabel: "Delete",
		Destructive:  true,
	}
}

func DeleteImagePrompt(name string) Prompt {
	return Prompt{
		Title:        "Delete image?",
		Body:         fmt.Sprintf("Delete every region of %s and move the image aside?\nThis cannot be undone.", name),
		ConfirmLabel: "Delete",
		Destructive:  true,
	}
}

func GeneratePrompt() Prompt {
	return Prompt{
		Title:        "Generate training dataset?",
		Body:         "All verified regions are split into train/valid gt.txt files.",
		ConfirmLabel: "Generate",
	}
}

func LMDBPrompt() Prompt {
	return Prompt{
		Title:        "Convert to LMDB?",
		Body:         "Runs create_lmdb_dataset.py over the generated dataset.",
		ConfirmLabel: "Convert",
	}
}

func ReprocessPrompt() Prompt {
	return Prompt{
		Title: "Reset and reprocess everything?",
		Body: "This will:\n" +
			"1. Clear all annotations (annotations.json)\n" +
			"2. Clear all crops (crops/)\n" +
			"3. Clear the MD5 records\n" +
			"4. Re-run OCR on every image in the input directory\n\n" +
			"All verification progress and corrections are lost.",
		ConfirmLabel: "Reprocess",
		Destructive:  true,
	}
}
