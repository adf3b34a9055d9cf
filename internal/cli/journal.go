package cli

import (
	"errors"

	"ocr-verifier/internal/store"

	"github.com/spf13/cobra"
)

func newJournalCmd(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect the local command journal",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List command transitions (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer j.Close()

			entries, err := j.List(cmd.Context(), limit)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": journalTable(entries),
				"meta": map[string]any{"count": len(entries), "limit": limit},
			})
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 50, "Max entries to return (0 = all)")

	showCmd := &cobra.Command{
		Use:   "show <command-id>",
		Short: "Show the transitions of one command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := openJournal(cmd, app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer j.Close()

			entries, err := j.History(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if len(entries) == 0 {
				return writeErr(cmd, errors.New("command not found: "+args[0]))
			}
			return writeOut(cmd, app, map[string]any{"data": journalTable(entries)})
		},
	}

	cmd.AddCommand(listCmd)
	cmd.AddCommand(showCmd)
	return cmd
}

func openJournal(cmd *cobra.Command, app *App) (*store.Journal, error) {
	return store.Store{Dir: app.Dir}.OpenJournal(cmd.Context())
}
