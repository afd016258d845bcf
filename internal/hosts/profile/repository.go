package profile

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/OpenGG/hostspilot/internal/hosts/domain"
	"github.com/OpenGG/hostspilot/internal/hosts/metadata"
	"github.com/OpenGG/hostspilot/internal/hosts/paths"
	"github.com/OpenGG/hostspilot/internal/hosts/storage"
	"github.com/OpenGG/hostspilot/internal/hosts/validator"
)

// Placeholder is the content of a freshly created profile.
const Placeholder = "# New profile\n"

// Repository manages profile content files. Which profiles exist is decided
// by the metadata record alone; the directory is never scanned.
type Repository struct {
	storage   *storage.Storage
	meta      *metadata.Store
	dir       string
	validator *validator.Validator
	logger    *slog.Logger
}

// New creates a Repository storing content files in dir.
func New(storage *storage.Storage, meta *metadata.Store, dir string, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Repository{
		storage:   storage,
		meta:      meta,
		dir:       dir,
		validator: validator.New(),
		logger:    logger,
	}
}

// Path returns the content file for name.
func (r *Repository) Path(name string) string {
	return filepath.Join(r.dir, name+paths.ProfileExt)
}

// Dir returns the profiles directory.
func (r *Repository) Dir() string {
	return r.dir
}

// List returns the known profile names in insertion order.
func (r *Repository) List() ([]string, error) {
	rec, err := r.meta.Load()
	if err != nil {
		return nil, err
	}
	return rec.Profiles, nil
}

// GetActive returns the active profile name, or "" when none is active.
func (r *Repository) GetActive() (string, error) {
	rec, err := r.meta.Load()
	if err != nil {
		return "", err
	}
	return rec.Active, nil
}

// Exists reports whether name is a known profile.
func (r *Repository) Exists(name string) (bool, error) {
	rec, err := r.meta.Load()
	if err != nil {
		return false, err
	}
	return rec.Contains(name), nil
}

// CheckAvailable reports why name cannot be used for a new profile: a
// validation error for a malformed name, a conflict when it is taken.
func (r *Repository) CheckAvailable(name string) error {
	if err := r.validate(name); err != nil {
		return err
	}
	ok, err := r.Exists(name)
	if err != nil {
		return err
	}
	if ok {
		return domain.Errorf(domain.ErrConflict, "profile %q already exists", name)
	}
	return nil
}

// Create adds a profile seeded with Placeholder. The content file is written
// before the metadata, so a failure in between leaves at worst an orphan
// file that is never listed.
func (r *Repository) Create(name string) error {
	if err := r.validate(name); err != nil {
		return err
	}

	rec, err := r.meta.Load()
	if err != nil {
		return err
	}
	if rec.Contains(name) {
		return domain.Errorf(domain.ErrConflict, "profile %q already exists", name)
	}

	path := r.Path(name)
	if err := r.storage.WriteFileAtomic(path, []byte(Placeholder), storage.FilePerm); err != nil {
		return domain.IO(err, "failed to create profile %q", name)
	}

	rec.Add(name)
	if err := r.meta.Save(rec); err != nil {
		if rmErr := r.storage.Remove(path); rmErr != nil {
			r.logger.Warn("orphan profile file left behind", "profile", name, "path", path, "error", rmErr)
		}
		return err
	}

	r.logger.Info("profile created", "profile", name, "path", path)
	return nil
}

// Delete removes a profile. The active profile cannot be deleted.
//
// Membership is dropped first; if removing the content file then fails, the
// file is an orphan and the error is still reported.
func (r *Repository) Delete(name string) error {
	rec, err := r.meta.Load()
	if err != nil {
		return err
	}
	if !rec.Contains(name) {
		return domain.Errorf(domain.ErrNotFound, "profile %q does not exist", name)
	}
	if rec.Active == name {
		return domain.Errorf(domain.ErrConflict, "cannot delete active profile %q", name)
	}

	rec.Remove(name)
	if err := r.meta.Save(rec); err != nil {
		return err
	}

	path := r.Path(name)
	if err := r.storage.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return domain.Wrap(domain.ErrIO, err, "failed to delete profile file %s", path)
	}

	r.logger.Info("profile deleted", "profile", name)
	return nil
}

// Rename moves a profile to newName, keeping its position in the list and
// following the active pointer, in a single metadata save.
func (r *Repository) Rename(oldName, newName string) error {
	if err := r.validate(newName); err != nil {
		return err
	}

	rec, err := r.meta.Load()
	if err != nil {
		return err
	}
	if !rec.Contains(oldName) {
		return domain.Errorf(domain.ErrNotFound, "profile %q does not exist", oldName)
	}
	if rec.Contains(newName) {
		return domain.Errorf(domain.ErrConflict, "a profile named %q already exists", newName)
	}

	oldPath, newPath := r.Path(oldName), r.Path(newName)
	if err := r.storage.Rename(oldPath, newPath); err != nil {
		return domain.IO(err, "failed to rename profile %q", oldName)
	}

	rec.Replace(oldName, newName)
	if err := r.meta.Save(rec); err != nil {
		if rbErr := r.storage.Rename(newPath, oldPath); rbErr != nil {
			r.logger.Error("could not move profile file back after failed save",
				"profile", oldName, "path", newPath, "error", rbErr)
		}
		return err
	}

	r.logger.Info("profile renamed", "from", oldName, "to", newName)
	return nil
}

// Read returns the content of a profile.
func (r *Repository) Read(name string) (string, error) {
	if err := r.validate(name); err != nil {
		return "", err
	}
	data, err := r.storage.ReadFile(r.Path(name))
	if err != nil {
		return "", domain.IO(err, "failed to read profile %q", name)
	}
	return string(data), nil
}

// Write replaces the content of a known profile. Stored profiles are never
// backed up; only the live file is.
func (r *Repository) Write(name, content string) error {
	if err := r.validate(name); err != nil {
		return err
	}
	ok, err := r.Exists(name)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Errorf(domain.ErrNotFound, "profile %q does not exist", name)
	}
	if err := r.storage.WriteFileAtomic(r.Path(name), []byte(content), storage.FilePerm); err != nil {
		return domain.IO(err, "failed to write profile %q", name)
	}
	r.logger.Debug("profile written", "profile", name, "bytes", len(content))
	return nil
}

func (r *Repository) validate(name string) error {
	if err := r.validator.ValidateName(name); err != nil {
		return domain.Wrap(domain.ErrValidation, err, "invalid profile name %q", name)
	}
	return nil
}
