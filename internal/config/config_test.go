package config

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/spf13/afero"

	"github.com/OpenGG/hostspilot/internal/hosts/domain"
)

const testConfigFile = "/data/HostsPilot/config.yaml"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), testConfigFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.MaxBackups != 25 || !cfg.FlushDNS || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "max_backups: 10\nflush_dns: false\nlog_level: debug\n"
	if err := afero.WriteFile(fs, testConfigFile, []byte(content), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	cfg, err := Load(fs, testConfigFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Config{MaxBackups: 10, FlushDNS: false, LogLevel: "debug"}
	if cfg != want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
	level, err := cfg.Level()
	if err != nil || level != slog.LevelDebug {
		t.Fatalf("Level = %v, %v", level, err)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, testConfigFile, []byte("max_backups: 10\n"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Setenv("HOSTSPILOT_MAX_BACKUPS", "3")
	t.Setenv("HOSTSPILOT_FLUSH_DNS", "false")

	cfg, err := Load(fs, testConfigFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxBackups != 3 || cfg.FlushDNS {
		t.Fatalf("environment should win, got %+v", cfg)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, testConfigFile, []byte("max_backups: [unclosed\n"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := Load(fs, testConfigFile); !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero retention", "max_backups: 0\n"},
		{"negative retention", "max_backups: -4\n"},
		{"unknown level", "log_level: chatty\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			if err := afero.WriteFile(fs, testConfigFile, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("setup: %v", err)
			}
			if _, err := Load(fs, testConfigFile); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}
