// Package main is the entry point for Cockpit, a terminal manager for AI
// coding assistant accounts. Without a subcommand it runs the Bubble Tea UI.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-veylop/cockpit-tui/internal/config"
	"github.com/j-veylop/cockpit-tui/internal/logger"
	"github.com/j-veylop/cockpit-tui/internal/services"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "cockpit",
		Short:        "Cockpit manages Antigravity, Codex, GitHub Copilot, Windsurf and Kiro accounts.",
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withManager(runTUI)
		},
	}

	root.AddCommand(newListCommand())
	root.AddCommand(newExportCommand())
	root.AddCommand(newGroupsCommand(openGroupStore))
	root.AddCommand(newVersionCommand())
	return root
}

// withManager loads the configuration, points the logger at the log file and
// opens every platform service for the duration of fn.
func withManager(fn func(*config.Config, *services.Manager) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	closer, err := logger.Setup(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		logger.SetOutput(io.Discard, cfg.LogLevel)
	} else {
		defer closer.Close()
	}

	mgr, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := mgr.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	return fn(cfg, mgr)
}
