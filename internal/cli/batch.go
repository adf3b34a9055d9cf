package cli

import (
	"errors"

	"ocr-verifier/internal/model"

	"github.com/spf13/cobra"
)

func newBatchCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <verify|delete|save-all> [region-id...]",
		Short: "Run one batch action over the given regions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := model.ParseBatchAction(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if a == model.BatchNone {
				return writeErr(cmd, errors.New("batch: action required"))
			}
			return runBatch(cmd, app, a, args[1:])
		},
	}
}

func runBatch(cmd *cobra.Command, app *App, a model.BatchAction, ids []string) error {
	keys, err := parseKeys(ids)
	if err != nil {
		return writeErr(cmd, err)
	}
	s, err := loadSession(cmd.Context(), app)
	if err != nil {
		return writeErr(cmd, err)
	}
	defer s.Close()

	if err := s.selectOnly(keys); err != nil {
		return writeErr(cmd, err)
	}
	res, err := s.ctrl.ExecuteBatchAction(cmd.Context(), a, confirmerFor(cmd, app))
	if err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, app, map[string]any{
		"data": toResultView(s.ctrl, res),
		"meta": map[string]any{"action": a, "requested": len(keys)},
	})
}
