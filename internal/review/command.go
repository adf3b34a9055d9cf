package review

import (
	"context"

	"github.com/google/uuid"

	"ocr-verifier/internal/model"
	"ocr-verifier/internal/store"
)

type CommandKind string

const (
	KindSave        CommandKind = "save"
	KindDelete      CommandKind = "delete"
	KindSaveAll     CommandKind = "save-all"
	KindBatchVerify CommandKind = "batch-verify"
	KindBatchDelete CommandKind = "batch-delete"
	KindDeleteImage CommandKind = "delete-image"
	KindUpload      CommandKind = "upload"
	KindGenerate    CommandKind = "generate-dataset"
	KindConvertLMDB CommandKind = "convert-lmdb"
	KindReprocess   CommandKind = "reprocess"
)

type CommandState string

const (
	StatePending  CommandState = "pending"
	StateApplied  CommandState = "applied"
	StateReverted CommandState = "reverted"
)

// Command is one reviewer intent moving pending -> applied | reverted.
type Command struct {
	ID    string
	Kind  CommandKind
	Keys  []model.Key
	State CommandState
	Err   error

	undo []func()
}

// Journal receives every command transition.
type Journal interface {
	Record(ctx context.Context, e store.JournalEntry) error
}

// onRevert registers an undo step for an optimistic mutation. Steps run in reverse order.
func (cmd *Command) onRevert(f func()) {
	cmd.undo = append(cmd.undo, f)
}

// begin creates a pending command. Caller holds c.mu.
func (c *Controller) begin(ctx context.Context, kind CommandKind, keys []model.Key) *Command {
	cmd := &Command{
		ID:    uuid.NewString(),
		Kind:  kind,
		Keys:  append([]model.Key(nil), keys...),
		State: StatePending,
	}
	c.record(ctx, cmd)
	return cmd
}

// applied marks cmd applied. Caller holds c.mu.
func (c *Controller) applied(ctx context.Context, cmd *Command) {
	cmd.State = StateApplied
	cmd.undo = nil
	c.record(ctx, cmd)
}

// revert runs the undo steps and marks cmd reverted. Caller holds c.mu.
func (c *Controller) revert(ctx context.Context, cmd *Command, err error) {
	for i := len(cmd.undo) - 1; i >= 0; i-- {
		cmd.undo[i]()
	}
	cmd.undo = nil
	cmd.State = StateReverted
	cmd.Err = err
	c.record(ctx, cmd)
}

func (c *Controller) record(ctx context.Context, cmd *Command) {
	c.log.Debug("command", "id", cmd.ID, "kind", cmd.Kind, "state", cmd.State, "keys", len(cmd.Keys))
	if c.journal == nil {
		return
	}
	e := store.JournalEntry{
		ID:    cmd.ID,
		Kind:  string(cmd.Kind),
		State: string(cmd.State),
		At:    c.now(),
	}
	for _, k := range cmd.Keys {
		e.Keys = append(e.Keys, k.ID())
	}
	if cmd.Err != nil {
		e.Error = cmd.Err.Error()
	}
	// A journal write failure never fails the command.
	if err := c.journal.Record(context.WithoutCancel(ctx), e); err != nil {
		c.log.Warn("journal write failed", "id", cmd.ID, "err", err)
	}
}

// remember keeps cmd as the most recent command. Caller holds c.mu.
func (c *Controller) remember(cmd *Command) {
	c.last = cmd
}

// LastCommand returns a copy of the most recently finished command.
func (c *Controller) LastCommand() (Command, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Command{}, false
	}
	cp := *c.last
	cp.undo = nil
	return cp, true
}
