package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/ledgersync/internal/logging"
)

// Applier writes a Summary to the store, one transaction per table.
type Applier struct {
	Store   Store
	Backups BackupFacility // nil disables backups

	// BackupRequired leaves a table untouched when its backup fails.
	BackupRequired bool

	// Retention is the purge limit applied once after all tables.
	// Zero disables purging.
	Retention int
}

// ApplyOptions tunes one Apply call.
type ApplyOptions struct {
	// FullRefresh replaces every compared table with its new snapshot
	// instead of applying the diff.
	FullRefresh bool
}

// Apply writes every sheet with inserted or modified rows. Inserted rows
// are appended. Modified rows are applied as delete-then-insert by key.
// Deleted rows are reported only; they are never removed from the store.
//
// Failures are recorded on the sheet's result and processing continues
// with the next sheet. Returns one result per sheet in summary order and
// the number of purged backup artifacts.
func (a *Applier) Apply(ctx context.Context, summary *Summary, opts ApplyOptions) ([]SheetResult, int) {
	results := make([]SheetResult, 0, len(summary.Sheets))
	for _, sc := range summary.Sheets {
		results = append(results, a.applySheet(ctx, sc, opts))
	}

	purged := 0
	if a.Backups != nil && a.Retention > 0 {
		n, err := a.Backups.Purge(ctx, a.Retention)
		if err != nil {
			logging.FromContext(ctx).Warn("backup purge failed", "error", err)
		}
		purged = n
	}
	return results, purged
}

func (a *Applier) applySheet(ctx context.Context, sc *SheetChanges, opts ApplyOptions) SheetResult {
	res := resultFor(sc, false)

	refresh := opts.FullRefresh && !sc.Skipped && sc.Err == nil && sc.Snapshot != nil
	if !sc.HasWork() && !refresh {
		return res
	}
	if err := ctx.Err(); err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}

	log := logging.WithFields(ctx, "sheet", sc.Sheet, "table", sc.Table)

	if a.Backups != nil && !sc.NewTable {
		ref, err := a.backupTable(ctx, sc.Table)
		switch {
		case err != nil && a.BackupRequired:
			log.Error("table backup failed, table left unchanged", "error", err)
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("backup failed, table not modified: %v", err)
			return res
		case err != nil:
			log.Warn("table backup failed, continuing without backup", "error", err)
			res.Warning = fmt.Sprintf("backup failed: %v", err)
		default:
			res.BackupRef = ref
		}
	}

	var replaced int64
	err := a.Store.WithTable(ctx, sc.Table, func(w TableWriter) error {
		if refresh {
			return w.ReplaceRows(ctx, sc.Snapshot.Columns, sc.Snapshot.Rows)
		}

		if ins := sc.Changes.Inserted; ins.Len() > 0 {
			if err := w.AppendRows(ctx, ins.Columns, ins.Rows); err != nil {
				return fmt.Errorf("append inserted rows: %w", err)
			}
		}
		if len(sc.Changes.Modified) == 0 {
			return nil
		}

		for _, values := range sc.Changes.ModifiedKeys() {
			n, err := w.DeleteWhere(ctx, sc.Changes.Keys, values)
			if err != nil {
				return fmt.Errorf("delete modified rows: %w", err)
			}
			replaced += n
		}
		mod := sc.Changes.ModifiedTable()
		if err := w.AppendRows(ctx, mod.Columns, mod.Rows); err != nil {
			return fmt.Errorf("append modified rows: %w", err)
		}
		return nil
	})
	if err != nil {
		log.Error("table sync failed", "error", err)
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}

	res.Status = StatusApplied
	res.RowsReplaced = replaced
	log.Info("table synced",
		"inserted", res.Inserted,
		"modified", res.Modified,
		"deleted_reported", res.Deleted,
		"rows_replaced", replaced,
		"full_refresh", refresh,
	)
	return res
}

// backupTable copies the current stored table. A table that does not
// exist yet needs no backup.
func (a *Applier) backupTable(ctx context.Context, table string) (string, error) {
	data, err := a.Store.ReadTable(ctx, table)
	if errors.Is(err, ErrTableNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s for backup: %w", table, err)
	}
	return a.Backups.BackupTable(ctx, table, data)
}
