package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"

	"github.com/OpenGG/hostspilot/internal/hosts/domain"
)

// Directory and file name constants for the HostsPilot data root
const (
	AppDirName       = "HostsPilot"
	ProfilesDirName  = "profiles"
	BackupsDirName   = "backups"
	MetadataFileName = "metadata.json"
	ConfigFileName   = "config.yaml"
	ProfileExt       = ".hosts"

	// HomeEnv overrides the data root, mostly for tests and portable installs.
	HomeEnv = "HOSTSPILOT_HOME"
)

// dataHome is swapped in tests to simulate a platform without a data dir.
var dataHome = func() string { return xdg.DataHome }

// Layout holds the fixed locations under one data root.
type Layout struct {
	Root         string
	ProfilesDir  string
	BackupsDir   string
	MetadataFile string
	ConfigFile   string
}

// New builds the layout rooted at root. It touches nothing on disk.
func New(root string) Layout {
	profiles := filepath.Join(root, ProfilesDirName)
	return Layout{
		Root:         root,
		ProfilesDir:  profiles,
		BackupsDir:   filepath.Join(root, BackupsDirName),
		MetadataFile: filepath.Join(profiles, MetadataFileName),
		ConfigFile:   filepath.Join(root, ConfigFileName),
	}
}

// ProfilePath returns the content file for a named profile.
func (l Layout) ProfilePath(name string) string {
	return filepath.Join(l.ProfilesDir, name+ProfileExt)
}

// DataRoot returns the application data root: $HOSTSPILOT_HOME when set,
// otherwise <platform data dir>/HostsPilot (%LOCALAPPDATA% on Windows,
// ~/Library/Application Support on macOS, $XDG_DATA_HOME elsewhere).
func DataRoot() (string, error) {
	if custom := strings.TrimSpace(os.Getenv(HomeEnv)); custom != "" {
		return custom, nil
	}
	base := strings.TrimSpace(dataHome())
	if base == "" {
		return "", domain.Errorf(domain.ErrEnvironment, "could not find an application data directory; set %s", HomeEnv)
	}
	return filepath.Join(base, AppDirName), nil
}

// Ensure creates the profiles and backups directories. Existing directories
// are left alone.
func Ensure(fs afero.Fs, l Layout) error {
	for _, dir := range []string{l.ProfilesDir, l.BackupsDir} {
		if err := fs.MkdirAll(dir, 0o700); err != nil {
			return domain.Wrap(domain.ErrIO, err, "failed to create directory %s", dir)
		}
	}
	return nil
}

// Resolve finds the data root and makes sure its directories exist.
func Resolve(fs afero.Fs) (Layout, error) {
	root, err := DataRoot()
	if err != nil {
		return Layout{}, err
	}
	layout := New(root)
	if err := Ensure(fs, layout); err != nil {
		return Layout{}, err
	}
	return layout, nil
}

// LiveFilePath returns the operating system hosts file.
func LiveFilePath() string {
	if runtime.GOOS == "windows" {
		windir := os.Getenv("SystemRoot")
		if windir == "" {
			windir = `C:\Windows`
		}
		return filepath.Join(windir, "System32", "drivers", "etc", "hosts")
	}
	return "/etc/hosts"
}
