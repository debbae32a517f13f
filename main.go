package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"lostfound/internal/auth"
	"lostfound/internal/config"
	"lostfound/internal/logger"
	"lostfound/internal/session"
	"lostfound/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logPath, err := cfg.LogPath()
	if err != nil {
		return err
	}
	log, closer, err := logger.Open(logPath, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	provider, err := auth.New(cfg, log)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The hosted provider refreshes tokens in the background.
	if keeper, ok := provider.(interface{ Run(context.Context) error }); ok {
		go func() {
			if err := keeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("session keeper stopped")
			}
		}()
	}

	gate := session.NewGate(provider, log)
	watch, cancelWatch := gate.Watch()
	defer cancelWatch()
	gate.Start(ctx)
	defer gate.Close()

	log.Info().Bool("memory_auth", cfg.UseMemoryAuth()).Msg("lostfound starting")

	p := tea.NewProgram(tui.New(provider, watch, log, tui.Options{
		HelpURL:     cfg.HelpURL,
		SupportRoom: cfg.SupportRoom,
	}), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
