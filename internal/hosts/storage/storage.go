package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Permissions used for everything the tool creates. The live file keeps its
// own mode, see PermOr.
const (
	DirPerm  os.FileMode = 0o700
	FilePerm os.FileMode = 0o600
)

// Storage provides low-level file operations with security validations.
type Storage struct {
	fs afero.Fs
}

// New creates a new Storage instance.
func New(fs afero.Fs) *Storage {
	return &Storage{fs: fs}
}

// FileSystem returns the underlying filesystem.
func (s *Storage) FileSystem() afero.Fs {
	return s.fs
}

// ValidatePathSafety checks that the path is not a symlink, preventing symlink attacks.
// It returns nil if the path doesn't exist or is a regular file/directory.
func (s *Storage) ValidatePathSafety(path string) error {
	if lstater, ok := s.fs.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("failed to check path: %w", err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to operate on symlink: %s", path)
		}
	}
	return nil
}

// WriteFileAtomic replaces path with data. The bytes are written to a temp
// file next to path and renamed over it, so readers see either the old or the
// new content, never a partial write.
func (s *Storage) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := s.ValidatePathSafety(path); err != nil {
		return fmt.Errorf("validate destination: %w", err)
	}

	if err := s.fs.MkdirAll(filepath.Dir(path), DirPerm); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	dest, err := afero.TempFile(s.fs, filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := dest.Name()

	_, writeErr := dest.Write(data)
	closeErr := dest.Close()

	if writeErr != nil || closeErr != nil {
		s.fs.Remove(tmp)
		if writeErr != nil {
			return fmt.Errorf("write temp file: %w", writeErr)
		}
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	if err := s.fs.Chmod(tmp, perm); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("chmod temp file: %w", err)
	}

	// Unix rename() atomically replaces the destination
	if err := s.fs.Rename(tmp, path); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("atomic rename: %w", err)
	}

	return nil
}

// WriteFileInPlace truncates the existing file at path and writes data into
// it, following symlinks. Readers can observe a partial write; use it only
// where WriteFileAtomic cannot replace the file.
func (s *Storage) WriteFileInPlace(path string, data []byte, perm os.FileMode) (err error) {
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("open for in-place write: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close after in-place write: %w", cerr)
		}
	}()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("in-place write: %w", err)
	}
	return nil
}

// IsSymlink reports whether path itself is a symbolic link. Filesystems
// without Lstat support never report links.
func (s *Storage) IsSymlink(path string) (bool, error) {
	lstater, ok := s.fs.(afero.Lstater)
	if !ok {
		return false, nil
	}
	info, _, err := lstater.LstatIfPossible(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}

// PermOr returns the permission bits of path, or fallback when it cannot be
// stat'ed.
func (s *Storage) PermOr(path string, fallback os.FileMode) os.FileMode {
	info, err := s.fs.Stat(path)
	if err != nil {
		return fallback
	}
	return info.Mode().Perm()
}

// Hash returns the hex SHA-256 of the file at path. A missing file hashes to
// the empty string without error.
func (s *Storage) Hash(path string) (string, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ReadFile reads the entire file.
func (s *Storage) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

// Exists checks if a path exists.
func (s *Storage) Exists(path string) (bool, error) {
	return afero.Exists(s.fs, path)
}

// MkdirAll creates directory with secure permissions.
func (s *Storage) MkdirAll(path string) error {
	return s.fs.MkdirAll(path, DirPerm)
}

// ReadDir reads directory contents.
func (s *Storage) ReadDir(path string) ([]os.FileInfo, error) {
	return afero.ReadDir(s.fs, path)
}

// Remove deletes a file.
func (s *Storage) Remove(path string) error {
	return s.fs.Remove(path)
}

// Rename moves oldpath to newpath.
func (s *Storage) Rename(oldpath, newpath string) error {
	if err := s.ValidatePathSafety(oldpath); err != nil {
		return err
	}
	return s.fs.Rename(oldpath, newpath)
}

// Chtimes changes file access and modification times.
func (s *Storage) Chtimes(path string, atime, mtime time.Time) error {
	return s.fs.Chtimes(path, atime, mtime)
}
