package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// memStore is an in-memory Store used by the engine tests.
type memStore struct {
	tables    map[string]*Table
	audit     []AuditEntry
	readErr   map[string]error
	writeErr  map[string]error
	snapshots int
}

func newMemStore() *memStore {
	return &memStore{
		tables:   map[string]*Table{},
		readErr:  map[string]error{},
		writeErr: map[string]error{},
	}
}

func copyTable(t *Table) *Table {
	out := NewTable(t.Columns...)
	for _, r := range t.Rows {
		out.Rows = append(out.Rows, r.Clone())
	}
	return out
}

func (m *memStore) ReadTable(_ context.Context, name string) (*Table, error) {
	if err := m.readErr[name]; err != nil {
		return nil, err
	}
	t, ok := m.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return copyTable(t), nil
}

func (m *memStore) ListTables(context.Context) ([]TableStat, error) {
	var out []TableStat
	for name, t := range m.tables {
		out = append(out, TableStat{Name: name, Rows: int64(t.Len()), Columns: len(t.Columns)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) WithTable(ctx context.Context, table string, fn func(TableWriter) error) error {
	work := &Table{}
	if t, ok := m.tables[table]; ok {
		work = copyTable(t)
	}
	w := &memWriter{table: work, err: m.writeErr[table]}
	if err := fn(w); err != nil {
		return err
	}
	m.tables[table] = work
	return nil
}

func (m *memStore) RecordAudit(_ context.Context, entries []AuditEntry) error {
	m.audit = append(m.audit, entries...)
	return nil
}

func (m *memStore) RecentAudit(_ context.Context, limit int) ([]AuditEntry, error) {
	out := make([]AuditEntry, 0, limit)
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.audit[i])
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) Snapshot(context.Context, string) error {
	m.snapshots++
	return nil
}

type memWriter struct {
	table *Table
	err   error
}

func (w *memWriter) ensureColumns(cols []string) {
	for _, c := range cols {
		if !w.table.HasColumn(c) {
			w.table.Columns = append(w.table.Columns, c)
		}
	}
}

func (w *memWriter) AppendRows(_ context.Context, cols []string, rows []Row) error {
	if w.err != nil {
		return w.err
	}
	w.ensureColumns(cols)
	for _, r := range rows {
		w.table.Rows = append(w.table.Rows, r.Clone())
	}
	return nil
}

func (w *memWriter) ReplaceRows(ctx context.Context, cols []string, rows []Row) error {
	if w.err != nil {
		return w.err
	}
	w.table.Rows = nil
	return w.AppendRows(ctx, cols, rows)
}

func (w *memWriter) DeleteWhere(_ context.Context, keys, values []string) (int64, error) {
	if w.err != nil {
		return 0, w.err
	}
	var kept []Row
	var removed int64
	for _, r := range w.table.Rows {
		match := true
		for i, k := range keys {
			if r.Text(k) != values[i] {
				match = false
				break
			}
		}
		if match {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	w.table.Rows = kept
	return removed, nil
}

// memBackups records backup calls.
type memBackups struct {
	tables    []string
	stores    int
	purges    []int
	failTable error
}

func (b *memBackups) BackupTable(_ context.Context, table string, _ *Table) (string, error) {
	if b.failTable != nil {
		return "", b.failTable
	}
	b.tables = append(b.tables, table)
	return "backup-" + table, nil
}

func (b *memBackups) BackupStore(ctx context.Context, s Snapshotter) (string, error) {
	if err := s.Snapshot(ctx, "mem"); err != nil {
		return "", err
	}
	b.stores++
	return "store-backup", nil
}

func (b *memBackups) Purge(_ context.Context, limit int) (int, error) {
	b.purges = append(b.purges, limit)
	return 0, nil
}

var errDiskFull = errors.New("write backup: no space left on device")

// table builds a Table from a header and rows of values.
func table(cols []string, rows ...[]string) *Table {
	t := NewTable(cols...)
	for _, r := range rows {
		t.AddRow(r...)
	}
	return t
}
