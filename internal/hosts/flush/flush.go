package flush

import (
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
)

// Flusher clears the operating system's DNS cache after the live file changed.
type Flusher interface {
	Flush() error
}

// Runner executes a command and returns its combined output.
type Runner func(name string, args ...string) ([]byte, error)

func runCombined(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).CombinedOutput()
}

// Command returns the cache flush command for goos. ok is false on platforms
// that have no such command.
func Command(goos string) (name string, args []string, ok bool) {
	switch goos {
	case "windows":
		return "ipconfig", []string{"/flushdns"}, true
	case "darwin":
		return "dscacheutil", []string{"-flushcache"}, true
	default:
		return "", nil, false
	}
}

// CommandFlusher runs the platform flush command once, without retries.
type CommandFlusher struct {
	goos   string
	run    Runner
	logger *slog.Logger
}

// NewCommandFlusher returns a flusher for the running platform.
func NewCommandFlusher(logger *slog.Logger) *CommandFlusher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CommandFlusher{goos: runtime.GOOS, run: runCombined, logger: logger}
}

// SetRunner allows overriding command execution for testing.
func (f *CommandFlusher) SetRunner(run Runner) {
	if run == nil {
		f.run = runCombined
		return
	}
	f.run = run
}

// SetPlatform allows overriding the target platform for testing.
func (f *CommandFlusher) SetPlatform(goos string) {
	f.goos = goos
}

// Flush runs the flush command. A non-zero exit is returned with the
// command's output; platforms without a command succeed without doing
// anything.
func (f *CommandFlusher) Flush() error {
	name, args, ok := Command(f.goos)
	if !ok {
		f.logger.Debug("dns flush not supported, skipping", "platform", f.goos)
		return nil
	}

	out, err := f.run(name, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, msg)
		}
		return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}

	f.logger.Info("dns cache flushed", "command", name)
	return nil
}

// NopFlusher does nothing. It is used when flushing is disabled.
type NopFlusher struct{}

// Flush implements Flusher.
func (NopFlusher) Flush() error { return nil }
