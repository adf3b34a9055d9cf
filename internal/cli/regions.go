package cli

import (
	"fmt"

	"ocr-verifier/internal/model"
	"ocr-verifier/internal/review"

	"github.com/spf13/cobra"
)

func newRegionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regions",
		Short: "Review OCR regions (item cards)",
	}
	cmd.AddCommand(newRegionsListCmd(app))
	cmd.AddCommand(newRegionsShowCmd(app))
	cmd.AddCommand(newRegionsSaveCmd(app))
	cmd.AddCommand(newRegionsDeleteCmd(app))
	cmd.AddCommand(newRegionsVerifyCmd(app))
	cmd.AddCommand(newRegionsRemoveCmd(app))
	cmd.AddCommand(newRegionsSaveAllCmd(app))
	return cmd
}

func newRegionsListCmd(app *App) *cobra.Command {
	var (
		filter string
		sortBy string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List regions in display order (persisted filter/sort unless overridden)",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			v := s.ctrl.View()
			f, srt := v.Filter, v.Sort
			if cmd.Flags().Changed("filter") {
				if f, err = model.ParseFilter(filter); err != nil {
					return writeErr(cmd, err)
				}
			}
			if cmd.Flags().Changed("sort") {
				if srt, err = model.ParseSort(sortBy); err != nil {
					return writeErr(cmd, err)
				}
			}
			s.ctrl.UseView(f, srt)

			rows := s.ctrl.VisibleRows()
			if all {
				rows = s.ctrl.Render()
			}
			out := make(regionTable, 0, len(rows))
			for _, row := range rows {
				out = append(out, toRegionView(row))
			}
			st, _ := s.ctrl.Stats()
			return writeOut(cmd, app, map[string]any{
				"data": out,
				"meta": map[string]any{
					"filter":   f,
					"sort":     srt,
					"count":    len(out),
					"total":    len(s.ctrl.Regions()),
					"verified": st.Verified,
				},
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "all|verified|unverified|low-confidence (not persisted)")
	cmd.Flags().StringVar(&sortBy, "sort", "", "confidence-asc|confidence-desc|verified-first|verified-last (not persisted)")
	cmd.Flags().BoolVar(&all, "all", false, "Include hidden regions (visible=false)")
	return cmd
}

func newRegionsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <region-id>",
		Short: "Show one region and whether the persisted filter shows it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := loadSession(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			for i, row := range s.ctrl.Render() {
				if row.Region.Key == keys[0] {
					return writeOut(cmd, app, map[string]any{
						"data": toRegionView(row),
						"meta": map[string]any{"position": i, "filter": s.ctrl.View().Filter},
					})
				}
			}
			return writeErr(cmd, fmt.Errorf("%w: %s", review.ErrNotFound, keys[0]))
		},
	}
}

func newRegionsSaveCmd(app *App) *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "save <region-id>",
		Short: "Verify one region, sending corrected text only when it changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := loadSession(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			if cmd.Flags().Changed("text") {
				if err := s.ctrl.Edit(keys[0], text); err != nil {
					return writeErr(cmd, err)
				}
			}
			res, err := s.ctrl.SaveItem(cmd.Context(), keys[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": toResultView(s.ctrl, res)})
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Corrected text")
	return cmd
}

func newRegionsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <region-id>",
		Short: "Delete one region",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := loadSession(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			res, err := s.ctrl.DeleteItem(cmd.Context(), keys[0], confirmerFor(cmd, app))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": toResultView(s.ctrl, res)})
		},
	}
}

func newRegionsVerifyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <region-id>...",
		Short: "Batch-verify regions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, app, model.BatchVerify, args)
		},
	}
}

func newRegionsRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <region-id>...",
		Short: "Batch-delete regions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, app, model.BatchDelete, args)
		},
	}
}

func newRegionsSaveAllCmd(app *App) *cobra.Command {
	var verify, unverify []string

	cmd := &cobra.Command{
		Use:   "save-all",
		Short: "Save every region with its current verify flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(verify)
			if err != nil {
				return writeErr(cmd, err)
			}
			unchecked, err := parseKeys(unverify)
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := loadSession(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			for _, k := range keys {
				if err := s.ctrl.SetVerified(k, true); err != nil {
					return writeErr(cmd, fmt.Errorf("%w: %s", err, k))
				}
			}
			for _, k := range unchecked {
				if err := s.ctrl.SetVerified(k, false); err != nil {
					return writeErr(cmd, fmt.Errorf("%w: %s", err, k))
				}
			}
			res, err := s.ctrl.SaveAll(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": toResultView(s.ctrl, res)})
		},
	}

	cmd.Flags().StringSliceVar(&verify, "verify", nil, "Check these region ids before saving")
	cmd.Flags().StringSliceVar(&unverify, "unverify", nil, "Uncheck these region ids before saving")
	return cmd
}
