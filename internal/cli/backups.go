package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewBackupsCommand creates the backups command group.
func NewBackupsCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "List, verify and purge backups",
	}

	cmd.AddCommand(newBackupsListCommand(root))
	cmd.AddCommand(newBackupsVerifyCommand(root))
	cmd.AddCommand(newBackupsPurgeCommand(root))

	return cmd
}

func newBackupsListCommand(root *RootOptions) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root, logOutput(root))
			if err != nil {
				return err
			}
			defer a.Close()

			arts, err := a.backups.List(target)
			if err != nil {
				return userError(err)
			}

			f := &OutputFormatter{Format: root.Format, Writer: cmd.OutOrStdout()}
			return f.Print(arts, func(w io.Writer) error {
				if len(arts) == 0 {
					_, err := fmt.Fprintln(w, "No backups.")
					return err
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tKIND\tTARGET\tCREATED\tROWS\tSIZE\tMIRRORED")
				for _, art := range arts {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%t\n",
						art.ID, art.Kind, art.Target, art.CreatedAt.Local().Format(time.DateTime), art.Rows, art.Size, art.Mirrored)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "only backups of this table (_store for store snapshots)")
	return cmd
}

func newBackupsVerifyCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <id>",
		Short: "Check that a backup file matches its recorded hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root, logOutput(root))
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.backups.Verify(args[0]); err != nil {
				return &ExitError{Code: ExitFailure, Message: "verification failed", Err: err}
			}

			f := &OutputFormatter{Format: root.Format, Writer: cmd.OutOrStdout()}
			result := map[string]any{"id": args[0], "valid": true}
			return f.Print(result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s: OK\n", args[0])
				return err
			})
		},
	}
}

func newBackupsPurgeCommand(root *RootOptions) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete all but the newest backups of every target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root, logOutput(root))
			if err != nil {
				return err
			}
			defer a.Close()

			if keep <= 0 {
				keep = a.cfg.Backup.Retention
			}
			n, err := a.backups.Purge(cmd.Context(), keep)
			if err != nil {
				return userError(err)
			}

			f := &OutputFormatter{Format: root.Format, Writer: cmd.OutOrStdout()}
			result := map[string]int{"kept_per_target": keep, "purged": n}
			return f.Print(result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Purged %d backup(s), keeping %d per target\n", n, keep)
				return err
			})
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "backups to keep per target (default BACKUP_RETENTION)")
	return cmd
}
