package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Up            key.Binding
	Down          key.Binding
	Toggle        key.Binding
	SelectAll     key.Binding
	Filter        key.Binding
	Sort          key.Binding
	Edit          key.Binding
	Save          key.Binding
	Check         key.Binding
	SaveAll       key.Binding
	BatchVerify   key.Binding
	Delete        key.Binding
	DeleteImage   key.Binding
	BatchMenu     key.Binding
	Generate      key.Binding
	LMDB          key.Binding
	Reprocess     key.Binding
	Upload        key.Binding
	Copy          key.Binding
	Reload        key.Binding
	Help          key.Binding
	Quit          key.Binding
	navigationKey key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("k", "up", "ctrl+p"), key.WithHelp("k/↑", "previous card")),
		Down:        key.NewBinding(key.WithKeys("j", "down", "ctrl+n"), key.WithHelp("j/↓", "next card")),
		Toggle:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle selection")),
		SelectAll:   key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select all / deselect all visible")),
		Filter:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "cycle filter")),
		Sort:        key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "cycle sort")),
		Edit:        key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter/e", "edit text")),
		Save:        key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "save and verify card")),
		Check:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "toggle verify checkbox (sent by save all)")),
		SaveAll:     key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save all cards")),
		BatchVerify: key.NewBinding(key.WithKeys("V"), key.WithHelp("V", "verify selected")),
		Delete:      key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x/del", "delete selected, else current")),
		DeleteImage: key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "delete the current card's image")),
		BatchMenu:   key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "batch action menu")),
		Generate:    key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "generate dataset")),
		LMDB:        key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "convert to LMDB")),
		Reprocess:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reprocess all images")),
		Upload:      key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "upload image")),
		Copy:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy text")),
		Reload:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload cards")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		navigationKey: key.NewBinding(
			key.WithKeys("k", "up", "ctrl+p", "j", "down", "ctrl+n", "pgup", "pgdown", "home", "end"),
		),
	}
}

func (k keyMap) bindings() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Toggle, k.SelectAll, k.Filter, k.Sort, k.Edit, k.Save, k.Check, k.SaveAll,
		k.BatchVerify, k.Delete, k.DeleteImage, k.BatchMenu, k.Generate, k.LMDB, k.Reprocess,
		k.Upload, k.Copy, k.Reload, k.Help, k.Quit,
	}
}

// helpMarkdown lists every binding as a markdown table for glamour.
func (k keyMap) helpMarkdown() string {
	var b strings.Builder
	b.WriteString("| Key | Action |\n|---|---|\n")
	for _, kb := range k.bindings() {
		h := kb.Help()
		b.WriteString("| `" + h.Key + "` | " + h.Desc + " |\n")
	}
	b.WriteString("\nIn the editor: `enter` keeps the edit, `ctrl+s` saves it, `esc` discards it.\n")
	return b.String()
}
