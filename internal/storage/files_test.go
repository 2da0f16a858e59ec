package storage

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "abc_thumb.jpg", "abc_thumb.jpg"},
		{"separators", "a/b\\c.jpg", "a-b-c.jpg"},
		{"spaces", "my  cover.png", "my-cover.png"},
		{"dot dot", "..", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeFileName(tt.input))
		})
	}
}

func TestSaveImageNeverOverwrites(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	first, err := fs.SaveImage("volumes", "cover.jpg", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, "volumes/cover.jpg", first)

	second, err := fs.SaveImage("volumes", "cover.jpg", []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, "volumes/cover-2.jpg", second)

	full, err := fs.Path(first)
	require.NoError(t, err)
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	_, err = fs.SaveImage("volumes", "..", []byte("x"))
	assert.Error(t, err)
}

func TestPathRejectsEscapes(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name    string
		rel     string
		wantErr bool
	}{
		{"nested", "volumes/a.jpg", false},
		{"parent", "../secret.db", true},
		{"sneaky", "volumes/../../secret.db", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fs.Path(tt.rel)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRemoveMissingFile(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, fs.Remove("volumes/missing.jpg"))
}

func TestSaveImageConcurrentSameName(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	const writers = 50
	paths := make([]string, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = fs.SaveImage("volumes", "cover.jpg", []byte(fmt.Sprintf("writer-%d", i)))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i := 0; i < writers; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[paths[i]], "path %s handed out twice", paths[i])
		seen[paths[i]] = true

		full, err := fs.Path(paths[i])
		require.NoError(t, err)
		data, err := os.ReadFile(full)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("writer-%d", i), string(data))
	}

	staged, err := os.ReadDir(fs.stagingDir)
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestSaveImageFailsWhenNamesRunOut(t *testing.T) {
	old := maxNameSuffix
	maxNameSuffix = 3
	t.Cleanup(func() { maxNameSuffix = old })

	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	for _, want := range []string{"volumes/cover.jpg", "volumes/cover-2.jpg", "volumes/cover-3.jpg"} {
		got, err := fs.SaveImage("volumes", "cover.jpg", []byte(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err = fs.SaveImage("volumes", "cover.jpg", []byte("late"))
	assert.Error(t, err)

	full, err := fs.Path("volumes/cover.jpg")
	require.NoError(t, err)
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "volumes/cover.jpg", string(data))
}
