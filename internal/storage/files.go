package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// FileStorage handles image files on disk. Stored paths are relative to the
// images directory and always use forward slashes.
type FileStorage struct {
	basePath   string
	imagesDir  string
	stagingDir string
}

// NewFileStorage creates a new file storage handler
func NewFileStorage(basePath string) (*FileStorage, error) {
	fs := &FileStorage{
		basePath:   basePath,
		imagesDir:  filepath.Join(basePath, "images"),
		stagingDir: filepath.Join(basePath, "staging"),
	}

	// Create directories if they don't exist
	if err := os.MkdirAll(fs.imagesDir, 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(fs.stagingDir, 0755); err != nil {
		return nil, err
	}

	return fs, nil
}

// ImagesDir returns the root directory of stored images
func (fs *FileStorage) ImagesDir() string {
	return fs.imagesDir
}

// SaveImage writes data under dir/name and returns the relative path. An
// existing file is never overwritten; a numeric suffix is added instead.
func (fs *FileStorage) SaveImage(dir, name string, data []byte) (string, error) {
	name = sanitizeFileName(name)
	if name == "" {
		return "", fmt.Errorf("invalid image file name")
	}

	targetDir := filepath.Join(fs.imagesDir, sanitizeFileName(dir))
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", err
	}

	// Stage first so a partially written file never appears under images/
	staged, err := os.CreateTemp(fs.stagingDir, "img-*")
	if err != nil {
		return "", err
	}
	stagedPath := staged.Name()
	if _, err := staged.Write(data); err != nil {
		staged.Close()
		os.Remove(stagedPath)
		return "", err
	}
	if err := staged.Close(); err != nil {
		os.Remove(stagedPath)
		return "", err
	}

	target, err := claimPath(stagedPath, filepath.Join(targetDir, name))
	os.Remove(stagedPath)
	if err != nil {
		return "", err
	}

	return fs.relative(target)
}

// Path resolves a stored relative path to an absolute one. Paths escaping
// the images directory are rejected.
func (fs *FileStorage) Path(rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty image path")
	}
	full := filepath.Join(fs.imagesDir, filepath.FromSlash(rel))
	if full != fs.imagesDir && !strings.HasPrefix(full, fs.imagesDir+string(filepath.Separator)) {
		return "", fmt.Errorf("image path %q escapes images directory", rel)
	}
	return full, nil
}

// Remove deletes a stored image. Missing files are not an error.
func (fs *FileStorage) Remove(rel string) error {
	full, err := fs.Path(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	cleanEmptyDirs(filepath.Dir(full), fs.imagesDir)
	return nil
}

// ListImageFiles walks the images directory and returns every file as a
// sorted relative path
func (fs *FileStorage) ListImageFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(fs.imagesDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := fs.relative(path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func (fs *FileStorage) relative(full string) (string, error) {
	rel, err := filepath.Rel(fs.imagesDir, full)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

var (
	invalidNameChars = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]`)
	nameSpaces       = regexp.MustCompile(`\s+`)
)

// sanitizeFileName removes or replaces characters that are invalid in filenames
func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}

	// Windows: \ / : * ? " < > |, Unix: /, plus control characters
	name = invalidNameChars.ReplaceAllString(name, "-")
	name = nameSpaces.ReplaceAllString(name, "-")

	// Trim leading/trailing dots (problematic on Windows, and rules out "..")
	name = strings.Trim(name, " .-")

	// Limit length to avoid filesystem issues (max 255 bytes, leave room for a suffix)
	if len(name) > 200 {
		ext := filepath.Ext(name)
		name = name[:200-len(ext)] + ext
	}

	return name
}

// maxNameSuffix is the highest numeric suffix tried for one file name
var maxNameSuffix = 1000

// claimPath places the staged file at target, or at target-N when that name
// is taken. Each name is claimed atomically, so concurrent saves never
// replace each other's files.
func claimPath(staged, target string) (string, error) {
	ext := filepath.Ext(target)
	base := strings.TrimSuffix(target, ext)

	for i := 1; i <= maxNameSuffix; i++ {
		candidate := target
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d%s", base, i, ext)
		}
		err := linkOrCopy(staged, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("no free file name for %s", filepath.Base(target))
}

// linkOrCopy hard-links src to dst, copying into an exclusively created dst
// where links are unsupported. Both fail with os.ErrExist when dst exists.
func linkOrCopy(src, dst string) error {
	err := os.Link(src, dst)
	if err == nil || errors.Is(err, os.ErrExist) {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		os.Remove(dst)
		return err
	}
	return dstFile.Close()
}

// cleanEmptyDirs removes empty directories up to the stop directory
func cleanEmptyDirs(dir, stopDir string) {
	for dir != stopDir && dir != "." && dir != "/" {
		// Fails if not empty
		if err := os.Remove(dir); err != nil {
			break
		}
		dir = filepath.Dir(dir)
	}
}
