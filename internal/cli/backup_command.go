package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/OpenGG/hostspilot/internal/hosts/domain"
)

func (a *app) newBackupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage snapshots of the live hosts file",
	}
	cmd.AddCommand(a.newBackupCreateCommand())
	cmd.AddCommand(a.newBackupListCommand())
	cmd.AddCommand(a.newBackupShowCommand())
	cmd.AddCommand(a.newBackupDeleteCommand())
	cmd.AddCommand(a.newBackupDeleteAllCommand())
	cmd.AddCommand(a.newBackupRestoreCommand())
	cmd.AddCommand(a.newPruneCommand())
	return cmd
}

func (a *app) newBackupCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Snapshot the live hosts file now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.mgr.CaptureBackup()
			if err != nil {
				return err
			}
			return a.render(result{Action: "created", Backup: id}, func(w io.Writer) {
				fmt.Fprintf(w, "Created backup: %s\n", id)
			})
		},
	}
}

func (a *app) newBackupListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := a.mgr.BackupEntries()
			if err != nil {
				return err
			}
			return a.render(entries, func(w io.Writer) {
				if len(entries) == 0 {
					fmt.Fprintln(w, "No backups found.")
					return
				}
				for _, e := range entries {
					fmt.Fprintf(w, "%-36s %9s  %s\n", e.ID, humanize.Bytes(uint64(e.Size)), humanize.Time(e.ModTime))
				}
				fmt.Fprintf(w, "%d of %d backups kept.\n", len(entries), a.mgr.MaxBackups())
			})
		},
	}
}

func (a *app) newBackupShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a backup's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			content, err := a.mgr.ReadBackup(id)
			if err != nil {
				return err
			}
			return a.render(document{Name: id, Content: content}, func(w io.Writer) {
				io.WriteString(w, content)
			})
		},
	}
}

func (a *app) newBackupDeleteCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ok, err := a.confirm(force, fmt.Sprintf("Delete backup %s? (y/N)", id))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.stdout, "Delete cancelled.")
				return nil
			}
			if err := a.mgr.DeleteBackup(id); err != nil {
				return err
			}
			return a.render(result{Action: "deleted", Backup: id}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted backup: %s\n", id)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")
	return cmd
}

func (a *app) newBackupDeleteAllCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := a.confirm(force, "Delete all backups? (y/N)")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.stdout, "Delete cancelled.")
				return nil
			}
			count, err := a.mgr.DeleteAllBackups()
			if err != nil {
				return err
			}
			return a.render(result{Action: "deleted", Count: &count}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %d backup(s).\n", count)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")
	return cmd
}

func (a *app) newBackupRestoreCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "restore [id]",
		Short: "Write a backup over the live hosts file",
		Long:  "restore snapshots the current live hosts file first, so a restore can itself be undone.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) > 0 {
				id = args[0]
			} else {
				ids, err := a.mgr.Backups()
				if err != nil {
					return err
				}
				if len(ids) == 0 {
					return domain.Errorf(domain.ErrNotFound, "no backups available in %s", a.mgr.Layout().BackupsDir)
				}
				_, selected, err := a.prompter.Select("Select backup to restore", ids, ids[0])
				if err != nil {
					return err
				}
				id = selected
			}

			ok, err := a.confirm(force, fmt.Sprintf("Restore %s over %s? (y/N)", id, a.mgr.LivePath()))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.stdout, "Restore cancelled.")
				return nil
			}

			safety, err := a.mgr.RestoreBackup(id)
			if err != nil && !errors.Is(err, domain.ErrFlushFailed) {
				return err
			}
			if rerr := a.render(result{Action: "restored", Backup: id, From: safety}, func(w io.Writer) {
				fmt.Fprintf(w, "Restored backup: %s (previous content saved as %s)\n", id, safety)
			}); rerr != nil {
				return rerr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")
	return cmd
}

func (a *app) newPruneCommand() *cobra.Command {
	var olderThanStr string
	var force bool

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove backups older than a given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var duration time.Duration
			var err error

			if olderThanStr != "" {
				duration, err = parseHumanDuration(olderThanStr)
				if err != nil {
					return err
				}
			} else {
				options := []string{"30d", "90d", "180d", "Cancel"}
				_, choice, err := a.prompter.Select("Prune backups older than", options, "30d")
				if err != nil {
					return err
				}
				if choice == "Cancel" {
					fmt.Fprintln(a.stdout, "Prune cancelled.")
					return nil
				}
				duration, err = parseHumanDuration(choice)
				if err != nil {
					return err
				}
			}

			ok, err := a.confirm(force, fmt.Sprintf("Delete backups older than %s? (y/N)", humanizeDuration(duration)))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.stdout, "Prune cancelled.")
				return nil
			}

			count, err := a.mgr.PruneBackups(duration)
			if err != nil {
				return err
			}
			return a.render(result{Action: "pruned", Count: &count}, func(w io.Writer) {
				fmt.Fprintf(w, "Deleted %d backup(s).\n", count)
			})
		},
	}

	cmd.Flags().StringVar(&olderThanStr, "older-than", "", "Delete backups older than the specified duration (e.g. 30d, 2w, 12h)")
	cmd.Flags().BoolVar(&force, "force", false, "Do not prompt for confirmation")

	return cmd
}
