package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"ocr-verifier/internal/api"
	"ocr-verifier/internal/model"
	"ocr-verifier/internal/review"
	"ocr-verifier/internal/store"

	"github.com/spf13/cobra"
)

// session wires one controller to the server, the view-state file and the journal.
type session struct {
	ctrl    *review.Controller
	store   store.Store
	journal *store.Journal
}

func (a *App) logger() *slog.Logger {
	if a.log != nil {
		return a.log
	}
	return slog.Default()
}

func openSession(ctx context.Context, app *App) *session {
	l := app.logger()
	client := api.New(app.ServerURL, app.Timeout).WithLogger(l)
	st := store.Store{Dir: app.Dir}

	opts := review.Options{API: client, State: st, Logger: l}
	s := &session{store: st}
	if strings.TrimSpace(app.Dir) != "" {
		j, err := st.OpenJournal(ctx)
		if err != nil {
			// Review works without the journal.
			l.Warn("journal unavailable", "dir", app.Dir, "err", err)
		} else {
			s.journal = j
			opts.Journal = j
		}
	}
	s.ctrl = review.New(opts)
	return s
}

// loadSession opens a session and fetches the cards.
func loadSession(ctx context.Context, app *App) (*session, error) {
	s := openSession(ctx, app)
	if err := s.ctrl.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	_ = s.journal.Close()
}

// selectOnly makes exactly keys the selection, with every card visible.
func (s *session) selectOnly(keys []model.Key) error {
	v := s.ctrl.View()
	s.ctrl.UseView(model.FilterAll, v.Sort)
	for k := range v.Selected {
		_ = s.ctrl.SetSelected(k, false)
	}
	for _, k := range keys {
		if err := s.ctrl.SetSelected(k, true); err != nil {
			return fmt.Errorf("%w: %s", err, k)
		}
	}
	return nil
}

func parseKeys(args []string) ([]model.Key, error) {
	keys := make([]model.Key, 0, len(args))
	for _, a := range args {
		k, err := model.ParseCompositeID(a)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// stdinConfirmer asks on the command's stdin unless --yes was given.
type stdinConfirmer struct {
	in  *bufio.Reader
	out io.Writer
	yes bool
}

func confirmerFor(cmd *cobra.Command, app *App) review.Confirmer {
	return stdinConfirmer{in: bufio.NewReader(stdin(cmd)), out: cmd.ErrOrStderr(), yes: app.Yes}
}

func (c stdinConfirmer) Confirm(p review.Prompt) bool {
	if c.yes {
		return true
	}
	fmt.Fprintf(c.out, "%s\n%s\n%s? [y/N]: ", p.Title, p.Body, p.ConfirmLabel)
	line, _ := c.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
