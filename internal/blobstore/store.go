package blobstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"reframe/internal/config"
	"reframe/internal/fileutil"
)

// LocatorPrefix is the leading path segment shared by every locator.
const LocatorPrefix = "/storage/"

const (
	uploadsDir   = "uploads"
	processedDir = "processed"
	stagingDir   = "staging"
)

// ErrInvalidLocator is returned when a locator escapes the store root or
// does not carry the expected prefix.
var ErrInvalidLocator = errors.New("invalid storage locator")

// Store is a filesystem-backed media store rooted at the configured
// storage directory.
type Store struct {
	root string
}

// New prepares the store directories under the configured storage root.
func New(cfg *config.Config) (*Store, error) {
	root := cfg.Paths.StorageDir
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("storage directory must not be empty")
	}
	for _, sub := range []string{uploadsDir, processedDir, stagingDir} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create storage area %s: %w", sub, err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the filesystem root of the store.
func (s *Store) Root() string {
	return s.root
}

// PutUpload streams the reader into the uploads area under a job-scoped
// name and returns the resulting locator.
func (s *Store) PutUpload(r io.Reader, jobID, filename string) (string, error) {
	name := SanitizeFilename(filename)
	if name == "" {
		name = "upload.bin"
	}
	target := filepath.Join(s.root, uploadsDir, jobID+"_"+name)

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("close upload: %w", err)
	}
	return s.locatorFor(target)
}

// CopyToProcessed copies the file behind srcLocator into the processed area
// under dstName with integrity verification, returning the new locator.
func (s *Store) CopyToProcessed(srcLocator, dstName string) (string, error) {
	src, err := s.Resolve(srcLocator)
	if err != nil {
		return "", err
	}
	name := SanitizeFilename(dstName)
	if name == "" {
		return "", errors.New("destination name must not be empty")
	}
	target := filepath.Join(s.root, processedDir, name)
	if err := fileutil.CopyFileVerified(src, target); err != nil {
		return "", fmt.Errorf("copy to processed: %w", err)
	}
	return s.locatorFor(target)
}

// Resolve maps a locator onto its absolute filesystem path, rejecting
// locators that would escape the store root.
func (s *Store) Resolve(locator string) (string, error) {
	rel, ok := strings.CutPrefix(locator, LocatorPrefix)
	if !ok || rel == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocator, locator)
	}
	return filepath.Join(s.root, cleaned), nil
}

// Exists reports whether the locator resolves to a regular file.
func (s *Store) Exists(locator string) bool {
	path, err := s.Resolve(locator)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// StagingDir returns a per-job scratch directory, creating it if needed.
// Stage runners place intermediate artifacts here.
func (s *Store) StagingDir(jobID string) (string, error) {
	dir := filepath.Join(s.root, stagingDir, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	return dir, nil
}

// RemoveStaging deletes the scratch directory for a job, if any.
func (s *Store) RemoveStaging(jobID string) error {
	if strings.TrimSpace(jobID) == "" {
		return errors.New("job id must not be empty")
	}
	return os.RemoveAll(filepath.Join(s.root, stagingDir, jobID))
}

func (s *Store) locatorFor(path string) (string, error) {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return "", fmt.Errorf("relativize %s: %w", path, err)
	}
	return LocatorPrefix + filepath.ToSlash(rel), nil
}

// SanitizeFilename strips directory components and replaces characters that
// are unsafe in locators. The extension is preserved.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(filepath.ToSlash(name)))
	if base == "." || base == ".." || base == string(filepath.Separator) || base == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(base))
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), ".")
}
