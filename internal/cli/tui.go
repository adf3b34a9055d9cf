package cli

import (
	"ocr-verifier/internal/tui"

	"github.com/spf13/cobra"
)

func runTUI(cmd *cobra.Command, app *App) error {
	s := openSession(cmd.Context(), app)
	defer s.Close()

	return tui.Run(cmd.Context(), s.ctrl, tui.Options{Logger: app.logger()})
}
