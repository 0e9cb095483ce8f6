package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/spf13/cobra"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	DryRun      bool
	FullRefresh bool
}

// SyncOutput is what the sync command prints.
type SyncOutput struct {
	Report     *core.Report `json:"report" yaml:"report"`
	Skipped    []string     `json:"skipped_sheets,omitempty" yaml:"skipped_sheets,omitempty"`
	ReadErrors []string     `json:"read_errors,omitempty" yaml:"read_errors,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(root *RootOptions) *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync [files...]",
		Short: "Read the source workbooks and apply their changes",
		Long: `Read every configured workbook (SOURCE_FILES, or the files given as
arguments), compare each sheet with its stored table, and apply inserted
and modified rows. Tables are backed up before they are changed.

Exits 1 when the run finished but at least one sheet failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, root, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "report changes without writing anything")
	cmd.Flags().BoolVar(&opts.FullRefresh, "full-refresh", false, "replace every table with its sheet instead of applying the diff")

	return cmd
}

func runSync(cmd *cobra.Command, root *RootOptions, opts *SyncOptions, args []string) error {
	a, err := openApp(cmd.Context(), root, logOutput(root))
	if err != nil {
		return err
	}
	defer a.Close()

	files := a.sources
	if len(args) > 0 {
		files.Paths = args
	}
	if len(files.Paths) == 0 {
		return &ExitError{Code: ExitCommandError, Message: "no source files: set SOURCE_FILES or pass files as arguments"}
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Sync.Timeout)
	defer cancel()

	res, err := files.Load(ctx)
	if err != nil {
		return userError(err)
	}
	out := SyncOutput{Skipped: res.Skipped}
	for _, e := range res.Errors {
		slog.Warn("sheet not read", "source", e.Source, "sheet", e.Sheet, "error", e.Err)
		out.ReadErrors = append(out.ReadErrors, e.Error())
	}

	out.Report, err = a.service.Run(ctx, res.Sheets, core.RunOptions{DryRun: opts.DryRun, FullRefresh: opts.FullRefresh})
	if err != nil {
		return userError(err)
	}

	f := &OutputFormatter{Format: root.Format, Writer: cmd.OutOrStdout()}
	if err := f.Print(out, func(w io.Writer) error { return writeSyncText(w, out) }); err != nil {
		return err
	}

	if n := out.Report.Failed(); n > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d sheet(s) failed", n)}
	}
	return nil
}

// userError wraps err with its mapped user-facing message.
func userError(err error) error {
	msg := core.MapError(err)
	return &ExitError{
		Code:    ExitCommandError,
		Message: fmt.Sprintf("%s (%s). %s", msg.Message, msg.Code, msg.Action),
		Err:     err,
	}
}

func writeSyncText(w io.Writer, out SyncOutput) error {
	r := out.Report
	mode := ""
	if r.DryRun {
		mode = " (dry run, nothing written)"
	}
	fmt.Fprintf(w, "Run %s%s\n\n", r.RunID, mode)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHEET\tTABLE\tSTATUS\tINSERTED\tMODIFIED\tDELETED\tNOTE")
	for _, s := range r.Sheets {
		note := s.Error
		if note == "" {
			note = s.Warning
		}
		if note == "" && s.NewTable {
			note = "new table"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n", s.Sheet, s.Table, s.Status, s.Inserted, s.Modified, s.Deleted, note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	inserted, deleted, modified := r.Totals()
	fmt.Fprintf(w, "\n%d inserted, %d modified, %d deleted (deleted rows are reported, not removed) in %s\n",
		inserted, modified, deleted, r.Duration().Round(time.Millisecond))
	if r.StoreBackup != "" {
		fmt.Fprintf(w, "Store backup: %s\n", r.StoreBackup)
	}
	if r.Purged > 0 {
		fmt.Fprintf(w, "Purged %d old backup(s)\n", r.Purged)
	}
	if len(out.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped sheets: %v\n", out.Skipped)
	}
	for _, e := range out.ReadErrors {
		fmt.Fprintf(w, "Not read: %s\n", e)
	}
	return nil
}
