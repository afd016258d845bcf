package backup

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/OpenGG/hostspilot/internal/hosts/domain"
	"github.com/OpenGG/hostspilot/internal/hosts/live"
	"github.com/OpenGG/hostspilot/internal/hosts/storage"
)

const (
	testBackupDir = "/data/HostsPilot/backups"
	testLiveFile  = "/etc/hosts"
)

// tickingClock advances one second per call.
type tickingClock struct {
	t time.Time
}

func (c *tickingClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(time.Second)
	return now
}

// deniedFs refuses to open files for writing under dir.
type deniedFs struct {
	afero.Fs
	dir string
}

func (f deniedFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE) != 0 && strings.HasPrefix(name, f.dir+"/") {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func newTestService(t *testing.T, max int) (*Service, afero.Fs, *tickingClock) {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, testLiveFile, []byte("127.0.0.1 localhost\n"), 0o644); err != nil {
		t.Fatalf("setup live file: %v", err)
	}
	stor := storage.New(fs)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(stor, testBackupDir, live.New(stor, testLiveFile), max, logger)
	clock := &tickingClock{t: time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)}
	svc.SetNow(clock.Now)
	return svc, fs, clock
}

func TestCaptureNamesAndCopies(t *testing.T) {
	svc, fs, _ := newTestService(t, DefaultMaxBackups)

	id, err := svc.Capture()
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if id != "hosts_backup_20260314_092653.txt" {
		t.Fatalf("unexpected id %q", id)
	}

	data, err := afero.ReadFile(fs, svc.Path(id))
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if string(data) != "127.0.0.1 localhost\n" {
		t.Fatalf("backup content mismatch: %q", data)
	}

	info, err := fs.Stat(svc.Path(id))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	want := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	if !info.ModTime().Equal(want) {
		t.Errorf("mtime should follow the clock: got %v want %v", info.ModTime(), want)
	}
	if info.Mode().Perm() != storage.FilePerm {
		t.Errorf("expected backup mode %o, got %o", storage.FilePerm, info.Mode().Perm())
	}
}

func TestCaptureSameSecondGetsSuffix(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultMaxBackups)
	fixed := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	svc.SetNow(func() time.Time { return fixed })

	first, err := svc.Capture()
	if err != nil {
		t.Fatalf("first Capture: %v", err)
	}
	second, err := svc.Capture()
	if err != nil {
		t.Fatalf("second Capture: %v", err)
	}
	if second != "hosts_backup_20260314_092653_01.txt" {
		t.Fatalf("unexpected suffixed id %q", second)
	}

	ids, _ := svc.List()
	if !reflect.DeepEqual(ids, []string{second, first}) {
		t.Fatalf("suffixed id should list as newer, got %v", ids)
	}
}

func TestCaptureMissingLiveFile(t *testing.T) {
	svc, fs, _ := newTestService(t, DefaultMaxBackups)
	if err := fs.Remove(testLiveFile); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := svc.Capture(); !errors.Is(err, domain.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if ids, _ := svc.List(); len(ids) != 0 {
		t.Fatalf("no entry should be written, got %v", ids)
	}
}

func TestCaptureRetention(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultMaxBackups)

	var created []string
	for i := 0; i < 30; i++ {
		id, err := svc.Capture()
		if err != nil {
			t.Fatalf("Capture %d: %v", i, err)
		}
		created = append(created, id)
	}

	ids, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(ids) != DefaultMaxBackups {
		t.Fatalf("expected %d entries, got %d", DefaultMaxBackups, len(ids))
	}

	// newest 25, newest first
	want := make([]string, 0, DefaultMaxBackups)
	for i := len(created) - 1; i >= len(created)-DefaultMaxBackups; i-- {
		want = append(want, created[i])
	}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("retained set mismatch\n got %v\nwant %v", ids, want)
	}
}

func TestRetentionUsesModTimeNotName(t *testing.T) {
	svc, fs, _ := newTestService(t, 2)

	// a name that sorts last but is the oldest on disk
	stale := "hosts_backup_29991231_235959.txt"
	if err := afero.WriteFile(fs, svc.Path(stale), []byte("old"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	old := time.Date(2000, 1, 1, 0, 0, 0, 0, time.Local)
	if err := fs.Chtimes(svc.Path(stale), old, old); err != nil {
		t.Fatalf("setup: %v", err)
	}

	a, _ := svc.Capture()
	b, _ := svc.Capture()

	ids, _ := svc.List()
	if !reflect.DeepEqual(ids, []string{b, a}) {
		t.Fatalf("oldest by mtime should be evicted, got %v", ids)
	}
}

func TestListIgnoresStrayFiles(t *testing.T) {
	svc, fs, _ := newTestService(t, DefaultMaxBackups)
	id, _ := svc.Capture()

	if err := afero.WriteFile(fs, testBackupDir+"/notes.md", []byte("x"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := fs.MkdirAll(testBackupDir+"/nested.txt", 0o700); err != nil {
		t.Fatalf("setup: %v", err)
	}

	ids, err := svc.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{id}) {
		t.Fatalf("expected only %q, got %v", id, ids)
	}
}

func TestListMissingDirectory(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultMaxBackups)

	ids, err := svc.List()
	if err != nil {
		t.Fatalf("List on missing dir: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", ids)
	}
}

func TestEntries(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultMaxBackups)
	first, _ := svc.Capture()
	second, _ := svc.Capture()

	entries, err := svc.Entries()
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != second || entries[1].ID != first {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].Size != int64(len("127.0.0.1 localhost\n")) {
		t.Errorf("unexpected size %d", entries[0].Size)
	}
	if !entries[0].ModTime.After(entries[1].ModTime) {
		t.Errorf("newer entry should have a later mtime")
	}
}

func TestReadErrors(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultMaxBackups)

	if _, err := svc.Read("hosts_backup_20000101_000000.txt"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing backup: expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Read("../../etc/passwd"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("path escape: expected ErrValidation, got %v", err)
	}
	if _, err := svc.Read("notes.md"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign extension: expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultMaxBackups)
	keep, _ := svc.Capture()
	drop, _ := svc.Capture()

	if err := svc.Delete(drop); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	ids, _ := svc.List()
	if !reflect.DeepEqual(ids, []string{keep}) {
		t.Fatalf("unexpected ids %v", ids)
	}
	if err := svc.Delete(drop); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteAll(t *testing.T) {
	svc, fs, _ := newTestService(t, DefaultMaxBackups)

	n, err := svc.DeleteAll()
	if err != nil || n != 0 {
		t.Fatalf("DeleteAll on missing dir: n=%d err=%v", n, err)
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Capture(); err != nil {
			t.Fatalf("Capture: %v", err)
		}
	}
	stray := testBackupDir + "/keep.log"
	if err := afero.WriteFile(fs, stray, []byte("x"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	n, err = svc.DeleteAll()
	if err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}
	if ok, _ := afero.Exists(fs, stray); !ok {
		t.Fatal("stray file should survive")
	}
}

func TestRestore(t *testing.T) {
	svc, fs, _ := newTestService(t, DefaultMaxBackups)
	id, _ := svc.Capture()

	if err := afero.WriteFile(fs, testLiveFile, []byte("10.0.0.1 broken\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	before, _ := svc.List()

	safety, err := svc.Restore(id)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}

	after, _ := svc.List()
	if len(after) != len(before)+1 {
		t.Fatalf("restore should add one entry: before %d after %d", len(before), len(after))
	}
	data, _ := afero.ReadFile(fs, testLiveFile)
	if string(data) != "127.0.0.1 localhost\n" {
		t.Fatalf("live file not restored: %q", data)
	}
	pre, err := svc.Read(safety)
	if err != nil {
		t.Fatalf("Read safety backup: %v", err)
	}
	if pre != "10.0.0.1 broken\n" {
		t.Fatalf("safety backup should hold the pre-restore content, got %q", pre)
	}
}

func TestRestoreOldestSurvivesEviction(t *testing.T) {
	svc, fs, _ := newTestService(t, 2)
	oldest, _ := svc.Capture()
	if err := afero.WriteFile(fs, testLiveFile, []byte("second\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := svc.Capture(); err != nil {
		t.Fatalf("Capture: %v", err)
	}

	if _, err := svc.Restore(oldest); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	data, _ := afero.ReadFile(fs, testLiveFile)
	if string(data) != "127.0.0.1 localhost\n" {
		t.Fatalf("expected oldest content restored, got %q", data)
	}
}

func TestRestoreMissing(t *testing.T) {
	svc, fs, _ := newTestService(t, DefaultMaxBackups)

	if _, err := svc.Restore("hosts_backup_20000101_000000.txt"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ok, _ := afero.DirExists(fs, testBackupDir); ok {
		t.Fatal("a failed restore must not capture")
	}
}

func TestRestorePermissionDenied(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, testLiveFile, []byte("original"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}
	stor := storage.New(fs)
	svc := New(stor, testBackupDir, live.New(stor, testLiveFile), DefaultMaxBackups, nil)
	id, err := svc.Capture()
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}

	// backups stay writable, /etc does not
	denied := storage.New(deniedFs{Fs: fs, dir: "/etc"})
	svc = New(denied, testBackupDir, live.New(denied, testLiveFile), DefaultMaxBackups, nil)
	svc.SetNow(func() time.Time { return time.Now().Add(time.Hour) })

	if _, err := svc.Restore(id); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
	ids, _ := svc.List()
	if len(ids) != 2 {
		t.Fatalf("safety capture should still exist, got %v", ids)
	}
}

func TestPruneOlderThan(t *testing.T) {
	svc, fs, _ := newTestService(t, DefaultMaxBackups)
	old, _ := svc.Capture()
	fresh, _ := svc.Capture()

	longAgo := time.Now().Add(-40 * 24 * time.Hour)
	if err := fs.Chtimes(svc.Path(old), longAgo, longAgo); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := fs.Chtimes(svc.Path(fresh), time.Now(), time.Now()); err != nil {
		t.Fatalf("setup: %v", err)
	}
	svc.SetNow(nil)

	n, err := svc.PruneOlderThan(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned, got %d", n)
	}
	ids, _ := svc.List()
	if !reflect.DeepEqual(ids, []string{fresh}) {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestPruneOlderThanRejectsNegativeAge(t *testing.T) {
	svc, _, _ := newTestService(t, DefaultMaxBackups)
	for i := 0; i < 3; i++ {
		if _, err := svc.Capture(); err != nil {
			t.Fatalf("Capture: %v", err)
		}
	}

	// 106752 days overflows time.Duration into a negative value.
	days := 106752
	overflowed := time.Duration(days) * 24 * time.Hour
	n, err := svc.PruneOlderThan(overflowed)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if n != 0 {
		t.Fatalf("nothing should be pruned, got %d", n)
	}
	if ids, _ := svc.List(); len(ids) != 3 {
		t.Fatalf("expected all 3 backups kept, got %v", ids)
	}
}

func TestNewDefaultsMaxBackups(t *testing.T) {
	svc := New(storage.New(afero.NewMemMapFs()), testBackupDir, nil, 0, nil)
	if svc.MaxBackups() != DefaultMaxBackups {
		t.Fatalf("expected default %d, got %d", DefaultMaxBackups, svc.MaxBackups())
	}
}
