package live

import (
	"errors"
	"io/fs"
	"os"
	"syscall"

	"github.com/OpenGG/hostspilot/internal/hosts/domain"
	"github.com/OpenGG/hostspilot/internal/hosts/storage"
)

// defaultPerm is used when the live file does not exist yet.
const defaultPerm os.FileMode = 0o644

// File is the operating system hosts file.
type File struct {
	storage *storage.Storage
	path    string
}

// New returns the live file at path.
func New(storage *storage.Storage, path string) *File {
	return &File{storage: storage, path: path}
}

// Path returns the live file location.
func (f *File) Path() string {
	return f.path
}

// Read returns the current content.
func (f *File) Read() ([]byte, error) {
	data, err := f.storage.ReadFile(f.path)
	if err != nil {
		return nil, domain.Wrap(domain.ErrIO, err, "failed to read live file %s", f.path)
	}
	return data, nil
}

// Write replaces the content, keeping the file's permission bits. The file is
// normally swapped in atomically; a symlinked hosts file, or one that cannot
// be renamed over (a bind mount gives EBUSY, another device EXDEV), is
// truncated and rewritten in place instead. Writing usually needs
// administrator rights; a denied write is reported as domain.ErrPermission.
func (f *File) Write(data []byte) error {
	perm := f.storage.PermOr(f.path, defaultPerm)

	link, err := f.storage.IsSymlink(f.path)
	if err != nil {
		return f.classify(err)
	}
	if link {
		return f.classify(f.storage.WriteFileInPlace(f.path, data, perm))
	}

	err = f.storage.WriteFileAtomic(f.path, data, perm)
	if errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.EXDEV) {
		err = f.storage.WriteFileInPlace(f.path, data, perm)
	}
	return f.classify(err)
}

func (f *File) classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrPermission) {
		return domain.Wrap(domain.ErrPermission, err,
			"failed to write %s (administrator rights required)", f.path)
	}
	return domain.Wrap(domain.ErrIO, err, "failed to write live file %s", f.path)
}

// Hash returns the SHA-256 of the current content, or "" if the file is missing.
func (f *File) Hash() (string, error) {
	h, err := f.storage.Hash(f.path)
	if err != nil {
		return "", domain.Wrap(domain.ErrIO, err, "failed to hash live file %s", f.path)
	}
	return h, nil
}
