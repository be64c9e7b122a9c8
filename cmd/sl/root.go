package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studlancer/studlancer/internal/config"
	"github.com/studlancer/studlancer/internal/remote"
	"github.com/studlancer/studlancer/internal/store"
	syncpkg "github.com/studlancer/studlancer/internal/sync"
	"github.com/studlancer/studlancer/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Studlancer workspace CLI",
	Long: `sl manages a local-first Studlancer workspace.

Drafts are edited locally and synced to the server in debounced batches;
a version ledger decides per document whether the local copy can be
trusted or the server copy must be refetched.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory (holds workspace.toml)")
	rootCmd.PersistentFlags().String("server", "", "override the API server URL")
	rootCmd.PersistentFlags().String("owner", "", "override the workspace owner id")

	viper.SetEnvPrefix("SL")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("owner", rootCmd.PersistentFlags().Lookup("owner"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(unpublishCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(seedCmd)
}

// workspaceConfig loads workspace.toml and applies flag/env overrides.
func workspaceConfig() (*config.Workspace, error) {
	dir := viper.GetString("workspace")
	ws, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if s := viper.GetString("server"); s != "" {
		ws.ServerURL = s
	}
	if o := viper.GetString("owner"); o != "" {
		ws.Owner = o
	}
	if ws.Owner == "" {
		return nil, fmt.Errorf("no owner configured (set owner in workspace.toml, --owner, or SL_OWNER)")
	}
	return ws, nil
}

// openSession wires a full editor session from the workspace config.
// The returned cleanup flushes pending edits and closes the store.
func openSession(ctx context.Context) (*syncpkg.Session, func(), error) {
	ws, err := workspaceConfig()
	if err != nil {
		return nil, nil, err
	}

	dataDir := ws.ResolveDataDir()

	localStore, err := store.Open(filepath.Join(dataDir, "local.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}

	ledger, err := versions.Open(dataDir)
	if err != nil {
		_ = localStore.Close()
		return nil, nil, fmt.Errorf("failed to open version ledger: %w", err)
	}

	client := remote.New(ws.ServerURL, remote.StaticToken(ws.Owner))

	cfg := syncpkg.DefaultConfig()
	cfg.QuiescenceWindow = ws.QuiescenceWindow()
	cfg.Logger = log.New(os.Stderr, "[sl] ", log.LstdFlags)

	session := syncpkg.NewSession(localStore, ledger, client, cfg)

	cleanup := func() {
		if err := session.Close(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to flush pending edits: %v\n", err)
		}
		_ = localStore.Close()
	}
	return session, cleanup, nil
}
