package tui

import (
	"context"
	"log/slog"

	"ocr-verifier/internal/review"

	tea "github.com/charmbracelet/bubbletea"
)

type Options struct {
	Logger *slog.Logger
	// Seed drives the simulated reprocess progress. Zero seeds from the clock.
	Seed int64
}

// Run starts the full-screen review UI over ctrl and blocks until the user quits.
func Run(ctx context.Context, ctrl *review.Controller, opts Options) error {
	applyThemePreference()
	applyColorProfilePreference()

	m := newAppModel(ctx, ctrl, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
