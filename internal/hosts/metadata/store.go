package metadata

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/OpenGG/hostspilot/internal/hosts/domain"
	"github.com/OpenGG/hostspilot/internal/hosts/storage"
)

// Record is the persisted list of known profiles and the active pointer.
// Profiles keeps insertion order.
type Record struct {
	Active   string   `json:"active"`
	Profiles []string `json:"profiles"`
}

// Contains reports whether name is a known profile.
func (r *Record) Contains(name string) bool {
	return r.index(name) >= 0
}

// Add appends name. Callers check Contains first.
func (r *Record) Add(name string) {
	r.Profiles = append(r.Profiles, name)
}

// Remove drops name from the profile list, keeping the order of the rest.
func (r *Record) Remove(name string) {
	if i := r.index(name); i >= 0 {
		r.Profiles = append(r.Profiles[:i], r.Profiles[i+1:]...)
	}
}

// Replace swaps oldName for newName in place and follows the active pointer.
func (r *Record) Replace(oldName, newName string) {
	if i := r.index(oldName); i >= 0 {
		r.Profiles[i] = newName
	}
	if r.Active == oldName {
		r.Active = newName
	}
}

func (r *Record) index(name string) int {
	for i, p := range r.Profiles {
		if p == name {
			return i
		}
	}
	return -1
}

// Store owns the metadata file. Every mutation is a full load, modify, save
// cycle; there is no merge and no locking.
type Store struct {
	storage *storage.Storage
	path    string
	logger  *slog.Logger
}

// New creates a Store for the metadata file at path.
func New(storage *storage.Storage, path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{storage: storage, path: path, logger: logger}
}

// Path returns the metadata file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the record. A missing file is initialized to the empty record
// and persisted before returning. An active name that is not among the
// profiles, e.g. after a hand edit, is dropped; the next Save persists that.
func (s *Store) Load() (Record, error) {
	data, err := s.storage.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			rec := Record{Profiles: []string{}}
			if err := s.Save(rec); err != nil {
				return Record{}, err
			}
			s.logger.Debug("metadata initialized", "path", s.path)
			return rec, nil
		}
		return Record{}, domain.Wrap(domain.ErrIO, err, "failed to read metadata")
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, domain.Wrap(domain.ErrParse, err, "failed to parse metadata %s", s.path)
	}
	if rec.Profiles == nil {
		rec.Profiles = []string{}
	}
	if rec.Active != "" && !rec.Contains(rec.Active) {
		s.logger.Warn("active profile is not a known profile, clearing it",
			"active", rec.Active, "path", s.path)
		rec.Active = ""
	}
	return rec, nil
}

// Save overwrites the metadata file with rec.
func (s *Store) Save(rec Record) error {
	if rec.Profiles == nil {
		rec.Profiles = []string{}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return domain.Wrap(domain.ErrIO, err, "failed to serialize metadata")
	}
	data = append(data, '\n')
	if err := s.storage.WriteFileAtomic(s.path, data, storage.FilePerm); err != nil {
		return domain.Wrap(domain.ErrIO, err, "failed to write metadata")
	}
	return nil
}

// Update loads the record, applies fn and saves the result. Nothing is
// written when fn returns an error.
func (s *Store) Update(fn func(*Record) error) error {
	rec, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(&rec); err != nil {
		return err
	}
	return s.Save(rec)
}
