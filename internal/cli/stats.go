package cli

import (
	"github.com/spf13/cobra"
)

func newStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show review counters and pipeline availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := openSession(cmd.Context(), app)
			defer s.Close()

			st, err := s.ctrl.RefreshStats(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			var hints []string
			if !st.DatasetExists {
				hints = append(hints, "verifier dataset generate")
			} else if !st.LMDBExists {
				hints = append(hints, "verifier dataset lmdb")
			}
			out := map[string]any{"data": statsView{Stats: st, LMDBReady: s.ctrl.LMDBReady()}}
			if len(hints) > 0 {
				out["_hints"] = hints
			}
			return writeOut(cmd, app, out)
		},
	}
}
