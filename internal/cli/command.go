package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/OpenGG/hostspilot/internal/config"
	"github.com/OpenGG/hostspilot/internal/hosts"
	"github.com/OpenGG/hostspilot/internal/hosts/domain"
)

// app carries what every command needs.
type app struct {
	mgr      *hosts.Manager
	prompter Prompter
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	level    *slog.LevelVar
	cfg      config.Config
	output   string
	verbose  bool
}

// Option customizes NewRootCommand.
type Option func(*app)

// WithStdin sets where "write" reads content from when no file is given.
func WithStdin(r io.Reader) Option {
	return func(a *app) { a.stdin = r }
}

// WithLogLevel lets --verbose lower the level of an existing logger.
func WithLogLevel(level *slog.LevelVar) Option {
	return func(a *app) { a.level = level }
}

// WithConfig sets the configuration shown by "config".
func WithConfig(cfg config.Config) Option {
	return func(a *app) { a.cfg = cfg }
}

func newApp(mgr *hosts.Manager, prompter Prompter, stdout, stderr io.Writer, opts ...Option) *app {
	a := &app{
		mgr:      mgr,
		prompter: prompter,
		stdin:    os.Stdin,
		stdout:   stdout,
		stderr:   stderr,
		cfg:      config.Default(),
		output:   formatText,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewRootCommand constructs the root Cobra command for hostspilot.
func NewRootCommand(mgr *hosts.Manager, prompter Prompter, stdout, stderr io.Writer, opts ...Option) *cobra.Command {
	a := newApp(mgr, prompter, stdout, stderr, opts...)

	cmd := &cobra.Command{
		Use:           "hostspilot",
		Short:         "HostsPilot hosts profile switcher",
		Long:          "hostspilot keeps named hosts profiles and switches the system hosts file between them, with automatic backups.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(a.output); err != nil {
				return err
			}
			if a.verbose && a.level != nil {
				a.level.Set(slog.LevelDebug)
			}
			return nil
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", formatText, "Output format: text, json or yaml")

	cmd.AddCommand(a.newListCommand())
	cmd.AddCommand(a.newCreateCommand())
	cmd.AddCommand(a.newDeleteCommand())
	cmd.AddCommand(a.newRenameCommand())
	cmd.AddCommand(a.newShowCommand())
	cmd.AddCommand(a.newWriteCommand())
	cmd.AddCommand(a.newUseCommand())
	cmd.AddCommand(a.newStatusCommand())
	cmd.AddCommand(a.newLiveCommand())
	cmd.AddCommand(a.newDiffCommand())
	cmd.AddCommand(a.newFlushCommand())
	cmd.AddCommand(a.newConfigCommand())
	cmd.AddCommand(a.newBackupCommand())

	return cmd
}

func (a *app) newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.mgr.ListEntries()
			if err != nil {
				return err
			}
			return a.render(entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "No profiles found. Use 'hostspilot create <name>' to add one.")
					return
				}
				for _, e := range entries {
					prefix := " "
					var qualifiers []string
					if e.Active {
						prefix = "*"
						qualifiers = append(qualifiers, "active")
					}
					if e.Modified {
						qualifiers = append(qualifiers, "modified")
					}
					qualifier := ""
					if len(qualifiers) > 0 {
						qualifier = " (" + strings.Join(qualifiers, ", ") + ")"
					}
					fmt.Fprintf(w, "%s [%s]%s\n", prefix, e.Name, qualifier)
				}
			})
		},
	}
}

func (a *app) newCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create an empty profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return a.create(args[0])
			}
			name, err := a.prompter.Prompt("New profile name", a.mgr.CheckNewProfileName)
			if err != nil {
				return err
			}
			return a.create(name)
		},
	}
}

func (a *app) create(name string) error {
	if err := a.mgr.CreateProfile(name); err != nil {
		return err
	}
	return a.render(result{Action: "created", Profile: name}, func(w io.Writer) {
		fmt.Fprintf(w, "Created profile: %s\n", name)
	})
}

func (a *app) newDeleteCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an inactive profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			ok, err := a.confirm(force, fmt.Sprintf("Delete profile %s? (y/N)", name))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.stdout, "Delete cancelled.")
				return nil
			}
			if err := a.mgr.DeleteProfile(name); err != nil {
				return err
			}
			return a.render(result{Action: "deleted", Profile: name}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted profile: %s\n", name)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")
	return cmd
}

func (a *app) newRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <old> <new>",
		Short: "Rename a profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oldName, newName := args[0], args[1]
			if err := a.mgr.RenameProfile(oldName, newName); err != nil {
				return err
			}
			return a.render(result{Action: "renamed", Profile: newName, From: oldName}, func(w io.Writer) {
				fmt.Fprintf(w, "Renamed profile %s to %s\n", oldName, newName)
			})
		},
	}
}

func (a *app) newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a profile's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			content, err := a.mgr.ReadProfile(name)
			if err != nil {
				return err
			}
			return a.render(document{Name: name, Content: content}, func(w io.Writer) {
				io.WriteString(w, content)
			})
		},
	}
}

func (a *app) newWriteCommand() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "write <name>",
		Short: "Replace a profile's content from a file or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			var (
				data []byte
				err  error
			)
			if from != "" {
				data, err = afero.ReadFile(a.mgr.FileSystem(), from)
				if err != nil {
					return domain.IO(err, "failed to read %s", from)
				}
			} else {
				data, err = io.ReadAll(a.stdin)
				if err != nil {
					return domain.Wrap(domain.ErrIO, err, "failed to read stdin")
				}
			}
			if err := a.mgr.WriteProfile(name, string(data)); err != nil {
				return err
			}
			return a.render(result{Action: "written", Profile: name, Bytes: len(data)}, func(w io.Writer) {
				fmt.Fprintf(w, "Saved profile: %s (%d bytes)\n", name, len(data))
			})
		},
	}
	cmd.Flags().StringVarP(&from, "from", "f", "", "Read content from this file instead of stdin")
	return cmd
}

func (a *app) newUseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "use [name]",
		Short: "Make a profile the live hosts file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			} else {
				names, err := a.mgr.Profiles()
				if err != nil {
					return err
				}
				if len(names) == 0 {
					return domain.Errorf(domain.ErrNotFound, "no profiles available in %s", a.mgr.Layout().ProfilesDir)
				}
				active, err := a.mgr.ActiveProfile()
				if err != nil {
					return err
				}
				names = reorderWithDefault(names, active)
				_, selected, err := a.prompter.Select("Select profile to activate", names, active)
				if err != nil {
					return err
				}
				name = selected
			}

			act, err := a.mgr.Activate(name)
			if err != nil && !errors.Is(err, domain.ErrFlushFailed) {
				return err
			}
			if rerr := a.render(act, func(w io.Writer) {
				fmt.Fprintf(w, "Switched to profile: %s (backup: %s)\n", name, act.BackupID)
			}); rerr != nil {
				return rerr
			}
			return err
		},
	}
}

func (a *app) newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active profile and whether the live file still matches it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.mgr.Status()
			if err != nil {
				return err
			}
			return a.render(st, func(w io.Writer) {
				active := st.Active
				if active == "" {
					active = "(none)"
				}
				fmt.Fprintf(w, "Active:    %s\n", active)
				fmt.Fprintf(w, "Live file: %s\n", st.LiveFile)
				fmt.Fprintf(w, "State:     %s\n", describeStatus(st))
			})
		},
	}
}

func describeStatus(st hosts.Status) string {
	switch {
	case st.Unmanaged:
		return "unmanaged"
	case st.ProfileMissing:
		return "profile missing"
	case st.Modified:
		return "modified"
	default:
		return "in sync"
	}
}

func (a *app) newLiveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Print the live hosts file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := a.mgr.ReadLive()
			if err != nil {
				return err
			}
			return a.render(document{Name: a.mgr.LivePath(), Content: content}, func(w io.Writer) {
				io.WriteString(w, content)
			})
		},
	}
}

func (a *app) newDiffCommand() *cobra.Command {
	var backupID string
	cmd := &cobra.Command{
		Use:   "diff [name]",
		Short: "Show what activating a profile (or restoring a backup) would change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 0 {
				name = args[0]
			}
			res, err := a.mgr.Diff(name, backupID)
			if err != nil {
				return err
			}
			return a.render(res, func(w io.Writer) {
				if !res.Changed() {
					fmt.Fprintln(w, "No differences.")
					return
				}
				io.WriteString(w, res.Unified)
			})
		},
	}
	cmd.Flags().StringVar(&backupID, "backup", "", "Compare against this backup instead of a profile")
	return cmd
}

func (a *app) newFlushCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "flush-dns",
		Short: "Flush the operating system DNS cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.mgr.FlushDNS(); err != nil {
				return err
			}
			return a.render(result{Action: "flushed"}, func(w io.Writer) {
				fmt.Fprintln(w, "DNS cache flushed.")
			})
		},
	}
}

func (a *app) newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and data locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := a.mgr.Layout()
			view := configView{
				Config:      a.cfg,
				DataRoot:    layout.Root,
				ProfilesDir: layout.ProfilesDir,
				BackupsDir:  layout.BackupsDir,
				ConfigFile:  layout.ConfigFile,
				LiveFile:    a.mgr.LivePath(),
			}
			return a.render(view, func(w io.Writer) {
				fmt.Fprintf(w, "max_backups: %d\n", view.MaxBackups)
				fmt.Fprintf(w, "flush_dns:   %t\n", view.FlushDNS)
				fmt.Fprintf(w, "log_level:   %s\n", view.LogLevel)
				fmt.Fprintf(w, "data root:   %s\n", view.DataRoot)
				fmt.Fprintf(w, "config file: %s\n", view.ConfigFile)
				fmt.Fprintf(w, "live file:   %s\n", view.LiveFile)
			})
		},
	}
}

// confirm asks label unless force is set. A declined or aborted prompt is a
// plain "no".
func (a *app) confirm(force bool, label string) (bool, error) {
	if force {
		return true, nil
	}
	ok, err := a.prompter.Confirm(label, false)
	if err != nil {
		if errors.Is(err, ErrPromptCancelled) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// reorderWithDefault moves the default value to the front of the list.
// If defaultValue is empty or not found, or already first, returns items unchanged.
func reorderWithDefault(items []string, defaultValue string) []string {
	if defaultValue == "" {
		return items
	}

	idx := -1
	for i, item := range items {
		if item == defaultValue {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return items
	}

	reordered := make([]string, 0, len(items))
	reordered = append(reordered, defaultValue)
	reordered = append(reordered, items[:idx]...)
	reordered = append(reordered, items[idx+1:]...)
	return reordered
}
