package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewAuditCommand creates the audit command.
func NewAuditCommand(root *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the newest sync audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), root, logOutput(root))
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.service.AuditLog(cmd.Context(), limit)
			if err != nil {
				return userError(err)
			}

			f := &OutputFormatter{Format: root.Format, Writer: cmd.OutOrStdout()}
			return f.Print(entries, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "WHEN\tRUN\tTABLE\tSTATUS\tINS\tMOD\tDEL\tERROR")
				for _, e := range entries {
					fmt.Fprintf(tw, "%s\t%.8s\t%s\t%s\t%d\t%d\t%d\t%s\n",
						e.CreatedAt.Local().Format(time.DateTime), e.RunID, e.Table, e.Status,
						e.Inserted, e.Modified, e.Deleted, e.Error)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries")
	return cmd
}
