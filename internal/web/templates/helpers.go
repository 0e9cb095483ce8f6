package templates

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/ledgersync/internal/core"
)

func timestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// runSummary describes a finished run in one sentence.
func runSummary(r *core.Report) string {
	inserted, deleted, modified := r.Totals()
	mode := "applied"
	if r.DryRun {
		mode = "dry run"
	}
	return fmt.Sprintf("Run %s (%s) finished %s in %s: %d inserted, %d modified, %d deleted (reported only), %d failed sheets.",
		r.RunID, mode, timestamp(r.FinishedAt), r.Duration().Round(time.Millisecond),
		inserted, modified, deleted, r.Failed())
}

func sheetNote(s core.SheetResult) string {
	if s.Error != "" {
		return s.Error
	}
	return s.Warning
}

// visibleTables drops ledgersync's own tables.
func visibleTables(stats []core.TableStat) []core.TableStat {
	out := make([]core.TableStat, 0, len(stats))
	for _, t := range stats {
		if !t.Internal {
			out = append(out, t)
		}
	}
	return out
}
