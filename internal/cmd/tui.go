package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/MeKo-Tech/pinmap/internal/tui"
	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Explore the map in the terminal",
	Long: `Open an interactive terminal map. Drag with the mouse to pan, scroll to
zoom, +/- to zoom about the center, p to toggle pin mode, q to quit.`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)

	tuiCmd.Flags().Bool("can-edit", false, "Allow placing pins")
	tuiCmd.Flags().String("log-file", "", "Write logs to this file (the terminal is taken by the map)")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, tuiCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
	mustBind("tui.can_edit", "can-edit")
	mustBind("tui.log_file", "log-file")
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if path := viper.GetString("tui.log_file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		log = appConfig.NewLoggerTo(f)
	}

	ctrl, closeStore, err := newController(ctx, appConfig, viper.GetBool("tui.can_edit"), log)
	if err != nil {
		return err
	}
	defer closeStore()

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize screen: %w", err)
	}
	defer screen.Fini()

	viewer := tui.New(screen, ctrl, log)
	go func() {
		regions, err := loadRegions(ctx, appConfig, log)
		if err != nil {
			log.Error("Region loading failed", "error", err)
			return
		}
		if err := viewer.PostRegions(regions); err != nil {
			log.Error("Failed to hand regions to the viewer", "error", err)
		}
	}()

	return viewer.Run(ctx)
}
