package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/OpenGG/hostspilot/internal/cli"
	"github.com/OpenGG/hostspilot/internal/config"
	"github.com/OpenGG/hostspilot/internal/hosts"
	"github.com/OpenGG/hostspilot/internal/hosts/flush"
	"github.com/OpenGG/hostspilot/internal/hosts/paths"
)

var (
	newFs    = afero.NewOsFs
	liveFile = paths.LiveFilePath
	exitFunc = os.Exit
)

func main() {
	exitFunc(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one command line and returns the process exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := newFs()

	layout, err := paths.Resolve(fs)
	if err != nil {
		cli.ReportError(stderr, "text", err)
		return cli.ExitCode(err)
	}

	cfg, err := config.Load(fs, layout.ConfigFile)
	if err != nil {
		cli.ReportError(stderr, "text", err)
		return cli.ExitCode(err)
	}
	level, err := cfg.Level()
	if err != nil {
		cli.ReportError(stderr, "text", err)
		return cli.ExitCode(err)
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(level)
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: levelVar}))

	var flusher flush.Flusher = flush.NewCommandFlusher(logger)
	if !cfg.FlushDNS {
		flusher = flush.NopFlusher{}
	}

	mgr, err := hosts.NewManager(fs, hosts.Options{
		Layout:     layout,
		LiveFile:   liveFile(),
		MaxBackups: cfg.MaxBackups,
		Flusher:    flusher,
		Logger:     logger,
	})
	if err != nil {
		cli.ReportError(stderr, "text", err)
		return cli.ExitCode(err)
	}

	root := cli.NewRootCommand(mgr, cli.NewPromptUIWithIO(stdin, stdout), stdout, stderr,
		cli.WithStdin(stdin),
		cli.WithLogLevel(levelVar),
		cli.WithConfig(cfg),
	)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		format, _ := root.PersistentFlags().GetString("output")
		cli.ReportError(stderr, format, err)
		return cli.ExitCode(err)
	}
	return cli.ExitOK
}
