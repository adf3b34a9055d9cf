package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"ocr-verifier/internal/config"
	"ocr-verifier/internal/format"
	"ocr-verifier/internal/logging"

	"github.com/spf13/cobra"
)

type App struct {
	ServerURL  string
	Dir        string
	Format     string
	PrettyJSON bool
	Timeout    time.Duration
	LogFile    string
	LogLevel   string
	// Yes answers every confirmation prompt.
	Yes bool

	cfgErr   error
	log      *slog.Logger
	closeLog func() error
}

// Execute runs the root command and closes the log file, also when the command fails
// (cobra skips PersistentPostRunE after a RunE error).
func Execute() error {
	app := &App{}
	return execute(newRootCmd(app), app)
}

func execute(cmd *cobra.Command, app *App) error {
	defer func() { _ = app.closeLogFile() }()
	return cmd.Execute()
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		// Surfaced from PersistentPreRunE so --help still works.
		app.cfgErr = err
		cfg = &config.Cfg{ServerURL: config.DefaultServerURL, Format: config.DefaultFormat, Dir: config.FallbackDir()}
	}

	cmd := &cobra.Command{
		Use:          "verifier",
		Short:        "OCR region review client (CLI + TUI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive review TUI
  verifier

  # List low-confidence regions, lowest first
  verifier regions list --filter low-confidence

  # Verify two regions in one batch
  verifier regions verify page01_3 page01_4

  # Build the training dataset, then package it
  verifier dataset generate --yes && verifier dataset lmdb --yes
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if app.cfgErr != nil {
			return writeErr(cmd, app.cfgErr)
		}
		l, closeFn, err := logging.Setup(app.LogFile, app.LogLevel)
		if err != nil {
			return writeErr(cmd, fmt.Errorf("log file: %w", err))
		}
		app.log = l
		app.closeLog = closeFn
		l.Debug("command start", "cmd", cmd.CommandPath(), "url", app.ServerURL)
		return nil
	}

	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.closeLogFile()
	}

	cmd.PersistentFlags().StringVar(&app.ServerURL, "url", cfg.ServerURL, "Review server base URL (env VERIFIER_URL)")
	cmd.PersistentFlags().StringVar(&app.Dir, "dir", cfg.Dir, "State dir for view_state.json and journal.sqlite (env VERIFIER_DIR)")
	cmd.PersistentFlags().StringVar(&app.Format, "format", cfg.Format, "Output format (json|edn|table)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON/EDN output")
	cmd.PersistentFlags().DurationVar(&app.Timeout, "timeout", cfg.Timeout, "Per-request timeout (0 = none)")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log-file", cfg.LogFile, "Write logs to this file (env VERIFIER_LOG)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVarP(&app.Yes, "yes", "y", false, "Answer yes to confirmation prompts")

	cmd.AddCommand(newRegionsCmd(app))
	cmd.AddCommand(newBatchCmd(app))
	cmd.AddCommand(newImagesCmd(app))
	cmd.AddCommand(newUploadCmd(app))
	cmd.AddCommand(newDatasetCmd(app))
	cmd.AddCommand(newReprocessCmd(app))
	cmd.AddCommand(newStatsCmd(app))
	cmd.AddCommand(newStateCmd(app))
	cmd.AddCommand(newJournalCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// closeLogFile closes the log file once; later calls are no-ops.
func (a *App) closeLogFile() error {
	if a.closeLog == nil {
		return nil
	}
	closeFn := a.closeLog
	a.closeLog = nil
	return closeFn()
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func stdin(cmd *cobra.Command) io.Reader { return cmd.InOrStdin() }
