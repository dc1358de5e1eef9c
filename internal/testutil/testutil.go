// Package testutil provides shared test helpers for setting up vaults,
// databases, and preset stores.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/skoglund/cardnav/internal/index"
	"github.com/skoglund/cardnav/internal/preset"
	"github.com/skoglund/cardnav/internal/storage"
)

// Logger returns a logger that discards all output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "cardnav-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.Provider.
func TestVault(t *testing.T) (string, storage.Provider) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// TestPresetStore creates a preset store backed by a temp file.
func TestPresetStore(t *testing.T) *preset.Store {
	t.Helper()
	s, err := preset.Open(filepath.Join(t.TempDir(), "presets.json"), Logger())
	if err != nil {
		t.Fatal(err)
	}
	return s
}
