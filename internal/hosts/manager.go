package hosts

import (
	"io"
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/OpenGG/hostspilot/internal/hosts/backup"
	"github.com/OpenGG/hostspilot/internal/hosts/diff"
	"github.com/OpenGG/hostspilot/internal/hosts/domain"
	"github.com/OpenGG/hostspilot/internal/hosts/flush"
	"github.com/OpenGG/hostspilot/internal/hosts/live"
	"github.com/OpenGG/hostspilot/internal/hosts/metadata"
	"github.com/OpenGG/hostspilot/internal/hosts/paths"
	"github.com/OpenGG/hostspilot/internal/hosts/profile"
	"github.com/OpenGG/hostspilot/internal/hosts/storage"
)

// Options configures a Manager.
type Options struct {
	// Layout is the data root. Its directories are created by NewManager.
	Layout paths.Layout
	// LiveFile defaults to the platform hosts file.
	LiveFile string
	// MaxBackups defaults to backup.DefaultMaxBackups.
	MaxBackups int
	// Flusher defaults to the platform DNS flush command.
	Flusher flush.Flusher
	Logger  *slog.Logger
}

// Manager is the entry point for every profile and backup operation. Each
// call runs to completion on its own; nothing is cached between calls.
type Manager struct {
	fs       afero.Fs
	layout   paths.Layout
	storage  *storage.Storage
	meta     *metadata.Store
	profiles *profile.Repository
	backups  *backup.Service
	live     *live.File
	flusher  flush.Flusher
	logger   *slog.Logger
}

// NewManager wires the components over fs and makes sure the profiles and
// backups directories exist.
func NewManager(fs afero.Fs, opts Options) (*Manager, error) {
	if fs == nil {
		return nil, domain.Errorf(domain.ErrEnvironment, "filesystem cannot be nil")
	}
	if opts.Layout.Root == "" {
		return nil, domain.Errorf(domain.ErrEnvironment, "data root cannot be empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.LiveFile == "" {
		opts.LiveFile = paths.LiveFilePath()
	}
	if opts.Flusher == nil {
		opts.Flusher = flush.NewCommandFlusher(logger)
	}

	if err := paths.Ensure(fs, opts.Layout); err != nil {
		return nil, err
	}

	stor := storage.New(fs)
	meta := metadata.New(stor, opts.Layout.MetadataFile, logger)
	liveFile := live.New(stor, opts.LiveFile)

	return &Manager{
		fs:       fs,
		layout:   opts.Layout,
		storage:  stor,
		meta:     meta,
		profiles: profile.New(stor, meta, opts.Layout.ProfilesDir, logger),
		backups:  backup.New(stor, opts.Layout.BackupsDir, liveFile, opts.MaxBackups, logger),
		live:     liveFile,
		flusher:  opts.Flusher,
		logger:   logger,
	}, nil
}

// SetNow allows overriding the clock used for backup names and times.
func (m *Manager) SetNow(now func() time.Time) {
	m.backups.SetNow(now)
}

// SetFlusher replaces the DNS flush collaborator.
func (m *Manager) SetFlusher(f flush.Flusher) {
	if f == nil {
		f = flush.NopFlusher{}
	}
	m.flusher = f
}

// FileSystem returns the underlying filesystem.
func (m *Manager) FileSystem() afero.Fs {
	return m.fs
}

// Layout returns the data root locations.
func (m *Manager) Layout() paths.Layout {
	return m.layout
}

// LivePath returns the live hosts file location.
func (m *Manager) LivePath() string {
	return m.live.Path()
}

// MaxBackups returns the backup retention limit.
func (m *Manager) MaxBackups() int {
	return m.backups.MaxBackups()
}

// Profiles returns the known profile names in insertion order.
func (m *Manager) Profiles() ([]string, error) {
	return m.profiles.List()
}

// ActiveProfile returns the active profile name, or "".
func (m *Manager) ActiveProfile() (string, error) {
	return m.profiles.GetActive()
}

// ProfileExists reports whether name is a known profile.
func (m *Manager) ProfileExists(name string) (bool, error) {
	return m.profiles.Exists(name)
}

// CheckNewProfileName reports whether name can be used for CreateProfile.
func (m *Manager) CheckNewProfileName(name string) error {
	return m.profiles.CheckAvailable(name)
}

// CreateProfile adds an empty profile.
func (m *Manager) CreateProfile(name string) error {
	return m.profiles.Create(name)
}

// DeleteProfile removes an inactive profile.
func (m *Manager) DeleteProfile(name string) error {
	return m.profiles.Delete(name)
}

// RenameProfile renames a profile, following the active pointer.
func (m *Manager) RenameProfile(oldName, newName string) error {
	return m.profiles.Rename(oldName, newName)
}

// ReadProfile returns a profile's content.
func (m *Manager) ReadProfile(name string) (string, error) {
	return m.profiles.Read(name)
}

// WriteProfile replaces a profile's content. The live file is not touched,
// even when name is active.
func (m *Manager) WriteProfile(name, content string) error {
	return m.profiles.Write(name, content)
}

// ReadLive returns the live hosts file content.
func (m *Manager) ReadLive() (string, error) {
	data, err := m.live.Read()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FlushDNS runs the DNS flush collaborator on its own.
func (m *Manager) FlushDNS() error {
	if err := m.flusher.Flush(); err != nil {
		return domain.Wrap(domain.ErrFlushFailed, err, "dns cache flush failed")
	}
	return nil
}

// CaptureBackup snapshots the live file.
func (m *Manager) CaptureBackup() (string, error) {
	return m.backups.Capture()
}

// Backups returns backup ids, newest first.
func (m *Manager) Backups() ([]string, error) {
	return m.backups.List()
}

// BackupEntries returns backups with size and time, newest first.
func (m *Manager) BackupEntries() ([]backup.Entry, error) {
	return m.backups.Entries()
}

// ReadBackup returns a backup's content.
func (m *Manager) ReadBackup(id string) (string, error) {
	return m.backups.Read(id)
}

// DeleteBackup removes one backup.
func (m *Manager) DeleteBackup(id string) error {
	return m.backups.Delete(id)
}

// DeleteAllBackups removes every backup and returns the count.
func (m *Manager) DeleteAllBackups() (int, error) {
	return m.backups.DeleteAll()
}

// PruneBackups removes backups older than olderThan and returns the count.
func (m *Manager) PruneBackups(olderThan time.Duration) (int, error) {
	return m.backups.PruneOlderThan(olderThan)
}

// RestoreBackup snapshots the live file, writes backup id over it and flushes
// the DNS cache. It returns the id of the safety snapshot. As with Activate, a
// flush failure is reported as domain.ErrFlushFailed after the restore took
// effect.
func (m *Manager) RestoreBackup(id string) (string, error) {
	safety, err := m.backups.Restore(id)
	if err != nil {
		return safety, err
	}
	if err := m.flusher.Flush(); err != nil {
		m.logger.Warn("dns flush failed after restore", "backup", id, "error", err)
		return safety, domain.Wrap(domain.ErrFlushFailed, err, "backup %q restored but dns cache flush failed", id)
	}
	return safety, nil
}

// ProfileEntry annotates a profile for listing.
type ProfileEntry struct {
	Name     string `json:"name" yaml:"name"`
	Active   bool   `json:"active" yaml:"active"`
	Modified bool   `json:"modified,omitempty" yaml:"modified,omitempty"`
}

// ListEntries returns every profile in insertion order. The active profile is
// marked modified when the live file no longer matches its stored content.
func (m *Manager) ListEntries() ([]ProfileEntry, error) {
	st, err := m.Status()
	if err != nil {
		return nil, err
	}
	names, err := m.profiles.List()
	if err != nil {
		return nil, err
	}
	entries := make([]ProfileEntry, 0, len(names))
	for _, name := range names {
		e := ProfileEntry{Name: name}
		if name == st.Active {
			e.Active = true
			e.Modified = st.Modified
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Status describes how the live file relates to the active profile.
type Status struct {
	Active   string `json:"active" yaml:"active"`
	LiveFile string `json:"live_file" yaml:"live_file"`
	// Modified is set when the live file differs from the active profile.
	Modified bool `json:"modified" yaml:"modified"`
	// Unmanaged is set when no profile is active.
	Unmanaged bool `json:"unmanaged" yaml:"unmanaged"`
	// ProfileMissing is set when the active profile's content file is gone.
	ProfileMissing bool `json:"profile_missing,omitempty" yaml:"profile_missing,omitempty"`
}

// Status compares the live file with the active profile by SHA-256.
func (m *Manager) Status() (Status, error) {
	active, err := m.profiles.GetActive()
	if err != nil {
		return Status{}, err
	}
	st := Status{Active: active, LiveFile: m.live.Path()}
	if active == "" {
		st.Unmanaged = true
		return st, nil
	}

	liveHash, err := m.live.Hash()
	if err != nil {
		return Status{}, err
	}
	profileHash, err := m.storage.Hash(m.profiles.Path(active))
	if err != nil {
		return Status{}, domain.IO(err, "failed to hash profile %q", active)
	}
	if profileHash == "" {
		st.ProfileMissing = true
		return st, nil
	}
	st.Modified = liveHash != profileHash
	return st, nil
}

// DiffResult is the line difference between the live file and a profile or
// backup.
type DiffResult struct {
	From    string `json:"from" yaml:"from"`
	To      string `json:"to" yaml:"to"`
	Added   int    `json:"added" yaml:"added"`
	Removed int    `json:"removed" yaml:"removed"`
	Unified string `json:"unified" yaml:"unified"`
	Patch   string `json:"patch" yaml:"patch"`
}

// Changed reports whether the two sides differ.
func (d DiffResult) Changed() bool {
	return d.Added > 0 || d.Removed > 0
}

// Diff shows what activating profile name, or restoring backupID when it is
// not empty, would change in the live file.
func (m *Manager) Diff(name, backupID string) (DiffResult, error) {
	var (
		target string
		label  string
		err    error
	)
	switch {
	case backupID != "":
		target, err = m.backups.Read(backupID)
		label = "backup " + backupID
	case name != "":
		target, err = m.profiles.Read(name)
		label = "profile " + name
	default:
		return DiffResult{}, domain.Errorf(domain.ErrValidation, "a profile name or backup id is required")
	}
	if err != nil {
		return DiffResult{}, err
	}

	current, err := m.ReadLive()
	if err != nil {
		return DiffResult{}, err
	}

	lines := diff.Lines(current, target)
	added, removed := diff.Stats(lines)
	return DiffResult{
		From:    m.live.Path(),
		To:      label,
		Added:   added,
		Removed: removed,
		Unified: diff.Render(m.live.Path(), label, lines),
		Patch:   diff.Patch(current, target),
	}, nil
}
