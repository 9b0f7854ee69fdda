package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const (
	actionBaseline = "baseline"
	actionMonitor  = "monitor"
)

var menuCmd = &cobra.Command{
	Use:     "menu",
	GroupID: "monitor",
	Short:   "Choose between collecting a baseline and monitoring",
	Run: func(cmd *cobra.Command, args []string) {
		runMenu(cmd)
	},
}

func runMenu(cmd *cobra.Command) {
	var action string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("What would you like to do?").
				Options(
					huh.NewOption("Collect new baseline", actionBaseline),
					huh.NewOption("Begin monitoring with saved baseline", actionMonitor),
				).
				Value(&action),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return
		}
		fail("%v", err)
	}

	switch action {
	case actionBaseline:
		if err := runBaseline(cfg, logger, os.Stdout); err != nil {
			fail("%v", err)
		}
	case actionMonitor:
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if err := runMonitor(ctx, cfg, logger); err != nil {
			cancel()
			fail("%v", err)
		}
	}
}

func init() {
	rootCmd.AddCommand(menuCmd)
}
