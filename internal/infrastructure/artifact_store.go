package infrastructure

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/yourusername/vidgrab/internal/domain"
)

// FSArtifactStore implements domain.ArtifactStore on an afero filesystem.
// Fetchers write into the staging directory; Commit moves the file into
// the artifacts directory, which is what deletion and sweeps operate on.
type FSArtifactStore struct {
	fs          afero.Fs
	stagingDir  string
	artifactDir string
}

// NewFSArtifactStore creates the store and its directories
func NewFSArtifactStore(fs afero.Fs, stagingDir, artifactDir string) (*FSArtifactStore, error) {
	for _, dir := range []string{stagingDir, artifactDir} {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return &FSArtifactStore{
		fs:          fs,
		stagingDir:  stagingDir,
		artifactDir: artifactDir,
	}, nil
}

// Fs returns the underlying filesystem
func (s *FSArtifactStore) Fs() afero.Fs {
	return s.fs
}

// StagingPath returns where a fetcher should write the artifact for key
func (s *FSArtifactStore) StagingPath(key string) string {
	return filepath.Join(s.stagingDir, key)
}

// Path returns the committed location of the artifact for key
func (s *FSArtifactStore) Path(key string) string {
	return filepath.Join(s.artifactDir, key)
}

// Commit moves the staged file for key into the artifacts directory
func (s *FSArtifactStore) Commit(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	src := s.StagingPath(key)
	dest := s.Path(key)

	if _, err := s.fs.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("commit %s: %w", key, domain.ErrArtifactNotFound)
		}
		return "", fmt.Errorf("commit %s: %w", key, err)
	}

	if err := s.fs.Rename(src, dest); err != nil {
		// Rename fails across devices; fall back to copy and remove
		if err := s.copyFile(src, dest); err != nil {
			return "", fmt.Errorf("failed to move %s: %w", key, err)
		}
		s.fs.Remove(src)
	}
	return dest, nil
}

// Write stores the stream under key and returns its path
func (s *FSArtifactStore) Write(key string, r io.Reader) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	dest := s.Path(key)
	f, err := s.fs.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		s.fs.Remove(dest)
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return dest, nil
}

// Delete removes the artifact for key. A missing artifact is not an error.
func (s *FSArtifactStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.fs.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact %s: %w", key, err)
	}
	return nil
}

// Discard removes any staged data for key: the staged file itself and
// yt-dlp's side files named "<key>.<suffix>". Other keys are never touched,
// even ones sharing the prefix.
func (s *FSArtifactStore) Discard(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	entries, err := afero.ReadDir(s.fs, s.stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to list %s: %w", s.stagingDir, err)
	}

	var errs []error
	for _, entry := range entries {
		name := entry.Name()
		if name != key && !strings.HasPrefix(name, key+".") {
			continue
		}
		if err := s.fs.Remove(filepath.Join(s.stagingDir, name)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sweep removes artifacts and staged files last modified before now-maxAge
func (s *FSArtifactStore) Sweep(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for _, dir := range []string{s.artifactDir, s.stagingDir} {
		entries, err := afero.ReadDir(s.fs, dir)
		if err != nil {
			return removed, fmt.Errorf("failed to list %s: %w", dir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !entry.ModTime().Before(cutoff) {
				continue
			}
			if err := s.fs.Remove(filepath.Join(dir, entry.Name())); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
			}
			removed++
		}
	}
	return removed, nil
}

func (s *FSArtifactStore) copyFile(src, dst string) error {
	in, err := s.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := s.fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// validateKey rejects keys that would escape the store directories
func validateKey(key string) error {
	if key == "" || key == "." || key == ".." || filepath.Base(key) != key {
		return fmt.Errorf("%w: %q", domain.ErrInvalidKey, key)
	}
	return nil
}
