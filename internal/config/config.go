// Package config loads the per-workspace configuration file.
//
// A workspace is a directory containing workspace.toml plus the local
// sync state (document cache, version ledger, drafts). The file is
// intentionally small; anything operational (ports, log paths) belongs to
// the CLI flags and environment instead.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the workspace configuration file name.
const FileName = "workspace.toml"

// Workspace is the parsed workspace.toml.
type Workspace struct {
	// ServerURL is the base URL of the Studlancer API.
	ServerURL string `toml:"server_url"`

	// Owner is the authenticated user id (doubles as the bearer token
	// for the default local resolver).
	Owner string `toml:"owner"`

	// DataDir holds the local document store and version ledger.
	// Relative paths resolve against the workspace directory.
	DataDir string `toml:"data_dir"`

	// DraftsDir is watched by `sl watch` for draft files.
	DraftsDir string `toml:"drafts_dir"`

	// QuiescenceMillis is the debounce window before a flush fires.
	QuiescenceMillis int `toml:"quiescence_millis"`

	// dir is where the config was loaded from.
	dir string
}

// Default returns the configuration used when no workspace.toml exists.
func Default(dir string) *Workspace {
	return &Workspace{
		ServerURL:        "http://localhost:8080",
		DataDir:          ".studlancer",
		DraftsDir:        "drafts",
		QuiescenceMillis: 1000,
		dir:              dir,
	}
}

// Load reads workspace.toml from dir, falling back to defaults when the
// file is absent.
func Load(dir string) (*Workspace, error) {
	path := filepath.Join(dir, FileName)
	ws := Default(dir)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ws, nil
	}

	if _, err := toml.DecodeFile(path, ws); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	ws.dir = dir
	if ws.QuiescenceMillis <= 0 {
		ws.QuiescenceMillis = 1000
	}
	return ws, nil
}

// Save writes the configuration to dir/workspace.toml.
func (w *Workspace) Save(dir string) error {
	path := filepath.Join(dir, FileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(w); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// QuiescenceWindow returns the debounce window as a duration.
func (w *Workspace) QuiescenceWindow() time.Duration {
	return time.Duration(w.QuiescenceMillis) * time.Millisecond
}

// ResolveDataDir returns the absolute data directory.
func (w *Workspace) ResolveDataDir() string {
	return w.resolve(w.DataDir)
}

// ResolveDraftsDir returns the absolute drafts directory.
func (w *Workspace) ResolveDraftsDir() string {
	return w.resolve(w.DraftsDir)
}

func (w *Workspace) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.dir, path)
}
