// Package core provides the change-detection and incremental-sync engine.
// This package has no I/O of its own; stores and backup facilities are
// passed in through the interfaces declared here.
package core

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// Row maps a column name to a cell value. A cell with Valid=false is null.
type Row map[string]pgtype.Text

// Text returns the comparison text of a cell: its string when valid and ""
// when null or absent.
func (r Row) Text(col string) string {
	v, ok := r[col]
	if !ok || !v.Valid {
		return ""
	}
	return v.String
}

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is a snapshot of one sheet or one stored table: ordered columns
// and an unordered collection of rows.
type Table struct {
	Columns []string
	Rows    []Row
}

// NewTable creates an empty table with the given columns.
func NewTable(columns ...string) *Table {
	return &Table{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows. A nil table has zero rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool { return t.Len() == 0 }

// HasColumn reports whether col is one of the table's columns.
func (t *Table) HasColumn(col string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// AddRow appends a row built from values in column order. Empty strings
// become null.
func (t *Table) AddRow(values ...string) {
	row := make(Row, len(t.Columns))
	for i, c := range t.Columns {
		if i < len(values) {
			row[c] = ToPgText(values[i])
		} else {
			row[c] = pgtype.Text{}
		}
	}
	t.Rows = append(t.Rows, row)
}

// TableStat describes one stored table.
type TableStat struct {
	Name     string `json:"name" yaml:"name"`
	Rows     int64  `json:"rows" yaml:"rows"`
	Columns  int    `json:"columns" yaml:"columns"`
	Internal bool   `json:"internal,omitempty" yaml:"internal,omitempty"`
}

// TableReader reads stored tables.
type TableReader interface {
	// ReadTable returns the full contents of a stored table.
	// Returns ErrTableNotFound when the table does not exist.
	ReadTable(ctx context.Context, name string) (*Table, error)
}

// TableWriter mutates one table inside a store transaction.
type TableWriter interface {
	// AppendRows inserts rows, creating the table or adding missing
	// columns as needed.
	AppendRows(ctx context.Context, columns []string, rows []Row) error

	// ReplaceRows drops every existing row and writes rows in their place.
	ReplaceRows(ctx context.Context, columns []string, rows []Row) error

	// DeleteWhere deletes rows whose key columns equal values. An empty
	// value matches both '' and NULL. Returns the number of rows removed.
	DeleteWhere(ctx context.Context, keyColumns, values []string) (int64, error)
}

// Store is the persistent store consumed by the sync engine.
type Store interface {
	TableReader

	// ListTables returns every user table in the store.
	ListTables(ctx context.Context) ([]TableStat, error)

	// WithTable runs fn in a transaction scoped to one table. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTable(ctx context.Context, table string, fn func(TableWriter) error) error

	// RecordAudit persists sync audit entries.
	RecordAudit(ctx context.Context, entries []AuditEntry) error

	// RecentAudit returns the newest audit entries first.
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)

	Close() error
}

// Snapshotter is implemented by stores that can copy themselves to a
// single file.
type Snapshotter interface {
	Snapshot(ctx context.Context, destPath string) error
}

// BackupFacility creates backup artifacts before destructive writes.
type BackupFacility interface {
	// BackupTable stores a copy of data as an artifact for table and
	// returns a reference to it.
	BackupTable(ctx context.Context, table string, data *Table) (string, error)

	// BackupStore asks s to copy the whole store into a new artifact.
	BackupStore(ctx context.Context, s Snapshotter) (string, error)

	// Purge keeps the newest limit artifacts per target and deletes the
	// rest, oldest first. Returns how many were removed.
	Purge(ctx context.Context, limit int) (int, error)
}
