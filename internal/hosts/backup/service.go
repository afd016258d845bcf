package backup

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/OpenGG/hostspilot/internal/hosts/domain"
	"github.com/OpenGG/hostspilot/internal/hosts/live"
	"github.com/OpenGG/hostspilot/internal/hosts/storage"
)

const (
	// Prefix starts every generated backup id.
	Prefix = "hosts_backup"
	// Extension is the only suffix recognized as a backup entry.
	Extension = ".txt"
	// TimestampLayout sorts chronologically as a plain string.
	TimestampLayout = "20060102_150405"
	// DefaultMaxBackups is the retention limit when none is configured.
	DefaultMaxBackups = 25

	maxSameSecond = 99
)

// Entry describes one stored backup.
type Entry struct {
	ID      string    `json:"id" yaml:"id"`
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"modified" yaml:"modified"`
}

// Service snapshots the live file into the backups directory and restores
// from it. It owns the directory contents.
type Service struct {
	storage    *storage.Storage
	backupDir  string
	live       *live.File
	maxBackups int
	now        func() time.Time
	logger     *slog.Logger
}

// New creates a backup Service keeping at most maxBackups entries in backupDir.
func New(storage *storage.Storage, backupDir string, liveFile *live.File, maxBackups int, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if maxBackups < 1 {
		maxBackups = DefaultMaxBackups
	}
	return &Service{
		storage:    storage,
		backupDir:  backupDir,
		live:       liveFile,
		maxBackups: maxBackups,
		now:        time.Now,
		logger:     logger,
	}
}

// SetNow allows overriding the clock for testing.
func (s *Service) SetNow(now func() time.Time) {
	if now == nil {
		s.now = time.Now
		return
	}
	s.now = now
}

// Dir returns the backups directory.
func (s *Service) Dir() string {
	return s.backupDir
}

// MaxBackups returns the retention limit.
func (s *Service) MaxBackups() int {
	return s.maxBackups
}

// Path returns the file backing id.
func (s *Service) Path(id string) string {
	return filepath.Join(s.backupDir, id)
}

// Capture copies the live file into a new timestamped entry and then enforces
// retention. It returns the new entry's id.
func (s *Service) Capture() (string, error) {
	data, err := s.live.Read()
	if err != nil {
		return "", err
	}

	now := s.now()
	id, err := s.nextID(now)
	if err != nil {
		return "", err
	}

	path := s.Path(id)
	if err := s.storage.WriteFileAtomic(path, data, storage.FilePerm); err != nil {
		return "", domain.IO(err, "failed to write backup %s", id)
	}
	// retention orders by mtime, so it follows the injected clock
	if err := s.storage.Chtimes(path, now, now); err != nil {
		return "", domain.IO(err, "failed to set backup time %s", id)
	}

	s.logger.Info("backup created",
		"backup", id,
		"path", path,
		"bytes", len(data))

	if _, err := s.enforceRetention(); err != nil {
		return id, err
	}
	return id, nil
}

// nextID names an entry after now. A second capture within the same second
// gets a numeric suffix, which still sorts after the unsuffixed name.
func (s *Service) nextID(now time.Time) (string, error) {
	base := Prefix + "_" + now.Format(TimestampLayout)
	id := base + Extension
	for i := 1; ; i++ {
		ok, err := s.storage.Exists(s.Path(id))
		if err != nil {
			return "", domain.IO(err, "failed to check backup %s", id)
		}
		if !ok {
			return id, nil
		}
		if i > maxSameSecond {
			return "", domain.Errorf(domain.ErrConflict, "too many backups within %s", now.Format(TimestampLayout))
		}
		id = fmt.Sprintf("%s_%02d%s", base, i, Extension)
	}
}

func (s *Service) enforceRetention() ([]string, error) {
	infos, err := s.scan()
	if err != nil {
		return nil, err
	}
	stamps := make([]Stamp, 0, len(infos))
	for _, info := range infos {
		stamps = append(stamps, Stamp{ID: info.Name(), ModTime: info.ModTime()})
	}

	evicted := Evict(stamps, s.maxBackups)
	for _, id := range evicted {
		if err := s.storage.Remove(s.Path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, domain.Wrap(domain.ErrIO, err, "failed to evict backup %s", id)
		}
		s.logger.Debug("backup evicted", "backup", id, "operation", "retention")
	}
	return evicted, nil
}

// scan returns the recognized entries in the backups directory. A missing
// directory yields no entries.
func (s *Service) scan() ([]os.FileInfo, error) {
	infos, err := s.storage.ReadDir(s.backupDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, domain.Wrap(domain.ErrIO, err, "failed to read backup directory")
	}
	out := infos[:0]
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), Extension) {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// List returns every backup id, newest first.
func (s *Service) List() ([]string, error) {
	infos, err := s.scan()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(infos))
	for _, info := range infos {
		ids = append(ids, info.Name())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// Entries returns every backup with its size and modification time, newest
// first.
func (s *Service) Entries() ([]Entry, error) {
	infos, err := s.scan()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{ID: info.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	return entries, nil
}

// checkID rejects ids that would escape the backups directory and reports
// ids that cannot name an entry as not found.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return domain.Errorf(domain.ErrValidation, "invalid backup id %q", id)
	}
	if !strings.HasSuffix(id, Extension) {
		return domain.Errorf(domain.ErrNotFound, "backup %q does not exist", id)
	}
	return nil
}

// Read returns the content of a backup.
func (s *Service) Read(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	data, err := s.storage.ReadFile(s.Path(id))
	if err != nil {
		return "", domain.IO(err, "failed to read backup %q", id)
	}
	return string(data), nil
}

// Delete removes one backup.
func (s *Service) Delete(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := s.storage.Remove(s.Path(id)); err != nil {
		return domain.IO(err, "failed to delete backup %q", id)
	}
	s.logger.Info("backup deleted", "backup", id)
	return nil
}

// DeleteAll removes every recognized entry and returns how many were removed.
// Stray files with other extensions are left alone.
func (s *Service) DeleteAll() (int, error) {
	infos, err := s.scan()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, info := range infos {
		if err := s.storage.Remove(s.Path(info.Name())); err != nil {
			return deleted, domain.IO(err, "failed to delete backup %q", info.Name())
		}
		deleted++
	}
	s.logger.Info("backups deleted", "count", deleted)
	return deleted, nil
}

// Restore captures the current live file and then overwrites it with the
// content of id. The backup is read before capturing, so restoring the oldest
// entry still works when the capture evicts it. It returns the id of the
// safety capture.
func (s *Service) Restore(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	data, err := s.storage.ReadFile(s.Path(id))
	if err != nil {
		return "", domain.IO(err, "failed to read backup %q", id)
	}

	safety, err := s.Capture()
	if err != nil {
		return "", err
	}

	if err := s.live.Write(data); err != nil {
		return safety, err
	}

	s.logger.Info("backup restored",
		"backup", id,
		"safety_backup", safety,
		"path", s.live.Path())
	return safety, nil
}

// PruneOlderThan removes backups whose modification time is older than
// olderThan and returns how many were removed.
func (s *Service) PruneOlderThan(olderThan time.Duration) (int, error) {
	if olderThan < 0 {
		return 0, domain.Errorf(domain.ErrValidation, "prune age cannot be negative: %s", olderThan)
	}
	infos, err := s.scan()
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-olderThan)
	deleted := 0
	for _, info := range infos {
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := s.storage.Remove(s.Path(info.Name())); err != nil {
			return deleted, domain.IO(err, "failed to delete backup %q", info.Name())
		}
		deleted++
	}
	s.logger.Info("backups pruned", "count", deleted, "older_than", olderThan.String())
	return deleted, nil
}
