package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rpggio/weekly/internal/clientsync"
	"github.com/rpggio/weekly/internal/tui"
)

func watchCmd(opts *globalOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the interactive week grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			syncer := clientsync.New(opts.client(), opts.timetable, clientsync.WithLogger(logger))

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			program := tea.NewProgram(tui.NewApp(syncer), tea.WithAltScreen(), tea.WithContext(ctx))
			unsubscribe := syncer.Subscribe(tui.Notify(program))
			defer unsubscribe()
			go syncer.Poll(ctx, interval)

			_, err := program.Run()
			return err
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", envDuration("WEEKLY_POLL_INTERVAL", clientsync.DefaultPollInterval), "rollover check interval")
	return cmd
}
