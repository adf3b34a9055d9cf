package cli

import (
	"ocr-verifier/internal/model"
	"ocr-verifier/internal/review"
	"ocr-verifier/internal/store"

	"github.com/spf13/cobra"
)

type viewStateView struct {
	Filter model.Filter `json:"filter"`
	Sort   model.Sort   `json:"sort"`
	Path   string       `json:"path,omitempty"`
}

func newStateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or change the persisted filter and sort",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the persisted filter and sort",
		RunE: func(cmd *cobra.Command, args []string) error {
			st := store.Store{Dir: app.Dir}
			v, err := readViewState(app, st)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": v})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-filter <all|verified|unverified|low-confidence>",
		Short: "Persist the filter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := model.ParseFilter(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeState(cmd, app, store.FilterStateKey, string(f))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-sort <confidence-asc|confidence-desc|verified-first|verified-last>",
		Short: "Persist the sort",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := model.ParseSort(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeState(cmd, app, store.SortStateKey, string(s))
		},
	})

	return cmd
}

func writeState(cmd *cobra.Command, app *App, key, value string) error {
	st := store.Store{Dir: app.Dir}
	if err := st.SetItem(key, value); err != nil {
		return writeErr(cmd, err)
	}
	v, err := readViewState(app, st)
	if err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, app, map[string]any{"data": v})
}

// readViewState decodes the persisted values through the controller's own restore path.
func readViewState(app *App, st store.Store) (viewStateView, error) {
	if _, _, err := st.GetItem(store.FilterStateKey); err != nil {
		return viewStateView{}, err
	}
	ctrl := review.New(review.Options{State: st, Logger: app.logger()})
	ctrl.Restore()
	v := ctrl.View()
	return viewStateView{Filter: v.Filter, Sort: v.Sort, Path: st.ViewStatePath()}, nil
}
