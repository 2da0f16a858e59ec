package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justyntemme/exlibris/internal/isbn"
	"github.com/justyntemme/exlibris/internal/models"
	"github.com/justyntemme/exlibris/internal/storage"
)

// runCLI executes the root command against a throwaway data directory
func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("EXLIBRIS_DATA_DIR", dataDir)

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(dataDir, "missing.toml"), "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestISBNCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{"isbn10", "0-395-25730-1", []string{"0395257301", "9780395257302", "yes"}},
		{"isbn13", "9780441172719", []string{"0441172717", "9780441172719"}},
		{"979 prefix", "9791234567896", []string{"none"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, t.TempDir(), "isbn", tt.input)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestISBNCommandRejectsGarbage(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "isbn", "12345")
	assert.ErrorIs(t, err, isbn.ErrInvalidIdentifier)
}

func TestUsersBootstrap(t *testing.T) {
	dir := t.TempDir()

	out, err := runCLI(t, dir, "users", "bootstrap", "--username", "librarian", "--password", "s3cret-pass")
	require.NoError(t, err)
	assert.Contains(t, out, `Created admin user "librarian"`)

	out, err = runCLI(t, dir, "users", "bootstrap", "--username", "librarian", "--password", "s3cret-pass")
	require.NoError(t, err)
	assert.Contains(t, out, "already exists")

	db, err := storage.NewDatabase(filepath.Join(dir, "exlibris.db"))
	require.NoError(t, err)
	defer db.Close()
	user, err := db.GetUserByUsername(context.Background(), "librarian")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
}

func TestUsersBootstrapRequiresPassword(t *testing.T) {
	t.Setenv("EXLIBRIS_ADMIN_PASSWORD", "")
	_, err := runCLI(t, t.TempDir(), "users", "bootstrap")
	assert.Error(t, err)
}

func TestImagesCleanup(t *testing.T) {
	dir := t.TempDir()

	files, err := storage.NewFileStorage(dir)
	require.NoError(t, err)
	rel, err := files.SaveImage("volumes", "stray.jpg", []byte("leftover"))
	require.NoError(t, err)
	full, err := files.Path(rel)
	require.NoError(t, err)

	out, err := runCLI(t, dir, "images", "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "volumes/stray.jpg")
	assert.Contains(t, out, "--yes")
	assert.FileExists(t, full)

	out, err = runCLI(t, dir, "images", "cleanup", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed 1 files")
	assert.NoFileExists(t, full)

	out, err = runCLI(t, dir, "images", "cleanup")
	require.NoError(t, err)
	assert.Contains(t, out, "No orphaned image files")
}

func TestCoversBackfillDryRun(t *testing.T) {
	dir := t.TempDir()

	db, err := storage.NewDatabase(filepath.Join(dir, "exlibris.db"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, db.CreateVolume(ctx, &models.Volume{Title: "Dune", CoverURL: "https://books.example.com/dune.jpg"}))
	require.NoError(t, db.CreateVolume(ctx, &models.Volume{Title: "No Cover URL"}))
	require.NoError(t, db.Close())

	out, err := runCLI(t, dir, "covers", "backfill", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dune")
	assert.Contains(t, out, "dry-run")
	assert.NotContains(t, out, "No Cover URL")
	assert.Contains(t, out, "Dry run: 1 volumes would be processed")
}

func TestConfigInit(t *testing.T) {
	target := filepath.Join(t.TempDir(), "conf", "exlibris.toml")

	out, err := runCLI(t, t.TempDir(), "config", "init", "--path", target)
	require.NoError(t, err)
	assert.Contains(t, out, target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[lookup]")

	_, err = runCLI(t, t.TempDir(), "config", "init", "--path", target)
	assert.Error(t, err)
}
