package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studlancer/studlancer/internal/ui"
	"github.com/studlancer/studlancer/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the drafts directory and sync edits",
	Long: `Watches the workspace drafts directory for changes to *.json draft
files and replays them as attribute edits. Edits are batched and sent
to the server after a quiet period, so rapid saves coalesce into a
single update.

Runs until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		session, cleanup, err := openSession(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()

		ws, err := workspaceConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		draftsDir := ws.ResolveDraftsDir()
		if err := os.MkdirAll(draftsDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create drafts directory: %v\n", err)
			os.Exit(1)
		}

		watcher, err := watch.New(session, draftsDir, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start watcher: %v\n", err)
			os.Exit(1)
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sig
			fmt.Println("\nStopping...")
			cancel()
		}()

		fmt.Printf("%s %s\n", ui.RenderAccent("Watching"), draftsDir)

		if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Error: watcher stopped: %v\n", err)
			os.Exit(1)
		}
		if err := watcher.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	},
}
