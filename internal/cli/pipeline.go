package cli

import (
	"ocr-verifier/internal/review"

	"github.com/spf13/cobra"
)

func newImagesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Source image commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <image-name>",
		Short: "Delete every region of one image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSession(cmd.Context(), app)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer s.Close()

			res, err := s.ctrl.DeleteImage(cmd.Context(), args[0], confirmerFor(cmd, app))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": toResultView(s.ctrl, res)})
		},
	})
	return cmd
}

func newUploadCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <image-file>",
		Short: "Upload one .jpg/.jpeg/.png image for OCR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := review.CheckUploadName(args[0]); err != nil {
				return writeErr(cmd, err)
			}
			s := openSession(cmd.Context(), app)
			defer s.Close()

			res, err := s.ctrl.Upload(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": toResultView(s.ctrl, res)})
		},
	}
}

func newDatasetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Training dataset pipeline",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Split verified regions into the training dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, app, func(s *session, confirm review.Confirmer) (review.Result, error) {
				return s.ctrl.GenerateDataset(cmd.Context(), confirm)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "lmdb",
		Short: "Convert the generated dataset to LMDB",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, app, func(s *session, confirm review.Confirmer) (review.Result, error) {
				// Stats gate the conversion the same way the review page does.
				if _, err := s.ctrl.RefreshStats(cmd.Context()); err != nil {
					app.logger().Warn("stats unavailable; letting the server decide", "err", err)
				}
				return s.ctrl.ConvertToLMDB(cmd.Context(), confirm)
			})
		},
	})
	return cmd
}

func newReprocessCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess",
		Short: "Wipe annotations, crops and MD5 records, then re-run OCR over the input directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, app, func(s *session, confirm review.Confirmer) (review.Result, error) {
				return s.ctrl.ReprocessImages(cmd.Context(), confirm)
			})
		},
	}
}

func runPipeline(cmd *cobra.Command, app *App, run func(*session, review.Confirmer) (review.Result, error)) error {
	s := openSession(cmd.Context(), app)
	defer s.Close()

	res, err := run(s, confirmerFor(cmd, app))
	if err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, app, map[string]any{"data": toResultView(s.ctrl, res)})
}
