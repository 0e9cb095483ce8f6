package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/spf13/cobra"
)

// TablesOptions holds flags for the tables command.
type TablesOptions struct {
	Limit int
	All   bool
}

// TableOutput is a stored table as printed by "tables <name>". Null cells
// are nil.
type TableOutput struct {
	Name      string               `json:"name" yaml:"name"`
	Columns   []string             `json:"columns" yaml:"columns"`
	TotalRows int                  `json:"total_rows" yaml:"total_rows"`
	Rows      []map[string]*string `json:"rows" yaml:"rows"`
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(root *RootOptions) *cobra.Command {
	opts := &TablesOptions{}

	cmd := &cobra.Command{
		Use:   "tables [name]",
		Short: "List stored tables, or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runTableDump(cmd, root, opts, args[0])
			}
			return runTablesList(cmd, root, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum rows to print (0 prints all)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "include ledgersync's own tables")

	return cmd
}

func runTablesList(cmd *cobra.Command, root *RootOptions, opts *TablesOptions) error {
	a, err := openApp(cmd.Context(), root, logOutput(root))
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.service.Tables(cmd.Context())
	if err != nil {
		return userError(err)
	}
	if !opts.All {
		visible := stats[:0]
		for _, s := range stats {
			if !s.Internal {
				visible = append(visible, s)
			}
		}
		stats = visible
	}

	f := &OutputFormatter{Format: root.Format, Writer: cmd.OutOrStdout()}
	return f.Print(stats, func(w io.Writer) error {
		if len(stats) == 0 {
			_, err := fmt.Fprintln(w, "No tables.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TABLE\tROWS\tCOLUMNS")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", s.Name, s.Rows, s.Columns)
		}
		return tw.Flush()
	})
}

func runTableDump(cmd *cobra.Command, root *RootOptions, opts *TablesOptions, name string) error {
	a, err := openApp(cmd.Context(), root, logOutput(root))
	if err != nil {
		return err
	}
	defer a.Close()

	t, err := a.service.Table(cmd.Context(), name)
	if err != nil {
		return userError(err)
	}

	out := TableOutput{
		Name:      core.SanitizeTableName(name),
		Columns:   t.Columns,
		TotalRows: t.Len(),
		Rows:      make([]map[string]*string, 0, t.Len()),
	}
	for i, r := range t.Rows {
		if opts.Limit > 0 && i >= opts.Limit {
			break
		}
		row := make(map[string]*string, len(t.Columns))
		for _, c := range t.Columns {
			if v, ok := r[c]; ok && v.Valid {
				s := v.String
				row[c] = &s
			} else {
				row[c] = nil
			}
		}
		out.Rows = append(out.Rows, row)
	}

	f := &OutputFormatter{Format: root.Format, Writer: cmd.OutOrStdout()}
	return f.Print(out, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(out.Columns, "\t"))
		for _, row := range out.Rows {
			cells := make([]string, len(out.Columns))
			for j, c := range out.Columns {
				if v := row[c]; v != nil {
					cells[j] = *v
				}
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\n%d of %d rows\n", len(out.Rows), out.TotalRows)
		return err
	})
}
