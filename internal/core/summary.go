package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// SheetChanges is the change record of one sheet.
type SheetChanges struct {
	Sheet string
	Table string

	// Skipped is set for deny-listed sheets. Nothing else is filled in.
	Skipped bool

	// NewTable is set when the store had no prior rows for Table and the
	// Differ was bypassed.
	NewTable bool

	Changes ChangeSet

	// Snapshot is the normalized new data, kept for full refreshes.
	Snapshot *Table

	// Err is set when the stored table could not be read.
	Err error
}

// HasWork reports whether applying this sheet would write anything.
func (s *SheetChanges) HasWork() bool {
	if s.Skipped || s.Err != nil {
		return false
	}
	return s.Changes.Inserted.Len() > 0 || len(s.Changes.Modified) > 0
}

// Summary aggregates the per-sheet changes of one sync run. It lives only
// for that run.
type Summary struct {
	Sheets []*SheetChanges
}

// Sheet returns the changes for a sheet, or nil.
func (s *Summary) Sheet(name string) *SheetChanges {
	for _, sc := range s.Sheets {
		if sc.Sheet == name {
			return sc
		}
	}
	return nil
}

// Totals sums the counts over all sheets that were compared.
func (s *Summary) Totals() (inserted, deleted, modified int) {
	for _, sc := range s.Sheets {
		i, d, m := sc.Changes.Counts()
		inserted += i
		deleted += d
		modified += m
	}
	return inserted, deleted, modified
}

// SummaryBuilder computes a Summary from freshly read sheets and the
// stored state. It never writes.
type SummaryBuilder struct {
	Differ Differ
	Deny   DenyList
}

// Build compares every sheet in input against its stored table. Sheets are
// processed in name order. A failure to read one stored table is recorded
// on that sheet and does not stop the others.
func (b SummaryBuilder) Build(ctx context.Context, store TableReader, input map[string]*Table) *Summary {
	names := make([]string, 0, len(input))
	for name := range input {
		names = append(names, name)
	}
	sort.Strings(names)

	summary := &Summary{Sheets: make([]*SheetChanges, 0, len(names))}
	claimed := make(map[string]string, len(names))

	for _, name := range names {
		sc := &SheetChanges{Sheet: name, Table: SanitizeTableName(name)}
		summary.Sheets = append(summary.Sheets, sc)

		if b.Deny.Denied(sc.Table) {
			sc.Skipped = true
			continue
		}
		if other, ok := claimed[sc.Table]; ok {
			sc.Err = fmt.Errorf("sheet %q maps to table %q already used by sheet %q", name, sc.Table, other)
			continue
		}
		claimed[sc.Table] = name

		if err := ctx.Err(); err != nil {
			sc.Err = err
			continue
		}
		b.compareSheet(ctx, store, sc, input[name])
	}

	return summary
}

func (b SummaryBuilder) compareSheet(ctx context.Context, store TableReader, sc *SheetChanges, incoming *Table) {
	normalized := b.Differ.Normalizer.Normalize(incoming)
	sc.Snapshot = normalized

	stored, err := store.ReadTable(ctx, sc.Table)
	if err != nil && !errors.Is(err, ErrTableNotFound) {
		sc.Err = fmt.Errorf("read stored table %s: %w", sc.Table, err)
		return
	}

	if stored.Empty() {
		sc.NewTable = true
		sc.Changes = ChangeSet{
			NewColumns: normalized.Columns,
			Inserted:   normalized,
			Deleted:    NewTable(),
		}
		return
	}

	sc.Changes = b.Differ.Compare(stored, incoming)
}
