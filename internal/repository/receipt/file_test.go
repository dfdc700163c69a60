package receipt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoadNotFound returns ErrNotFound before any receipt is written.
func TestLoadNotFound(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "receipt.json"))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

// TestSaveLoadRoundtrip persists a receipt and reads it back.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	repo := NewFileRepository(filepath.Join(t.TempDir(), "receipt.json"))

	saved := &Receipt{
		SourceURL:    "https://updates.local/Installer.dmg",
		OutputPath:   "Installer-unlocked.pkg",
		Checksum:     "c2hhNTEy",
		GatesPatched: 2,
		CompletedAt:  time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, repo.Save(context.Background(), saved))

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, saved, loaded)
}
