package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
)

// quoteIdentifier safely quotes a SQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// columns returns a table's columns in declaration order, or nil when the
// table does not exist.
func columns(ctx context.Context, q querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// ReadTable returns every row of table with each value as text.
func (s *Store) ReadTable(ctx context.Context, table string) (*core.Table, error) {
	cols, err := columns(ctx, s.db, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, table)
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = "CAST(" + quoteIdentifier(c) + " AS TEXT)"
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(quoted, ", "), quoteIdentifier(table))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	out := core.NewTable(cols...)
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make(core.Row, len(cols))
		for i, c := range cols {
			row[c] = pgtype.Text{String: values[i].String, Valid: values[i].Valid}
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return out, nil
}

// ListTables returns every table except SQLite's own.
func (s *Store) ListTables(ctx context.Context) ([]core.TableStat, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats := make([]core.TableStat, 0, len(names))
	for _, name := range names {
		cols, err := columns(ctx, s.db, name)
		if err != nil {
			return nil, err
		}
		var n int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quoteIdentifier(name)).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		stats = append(stats, core.TableStat{Name: name, Rows: n, Columns: len(cols)})
	}
	return stats, nil
}

// WithTable runs fn inside one transaction.
func (s *Store) WithTable(ctx context.Context, table string, fn func(core.TableWriter) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if already committed

	if err := fn(&writer{tx: tx, table: table}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	return nil
}

type writer struct {
	tx    *sql.Tx
	table string
}

// ensureColumns creates the table or adds the columns it lacks.
func (w *writer) ensureColumns(ctx context.Context, cols []string) error {
	existing, err := columns(ctx, w.tx, w.table)
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		defs := make([]string, len(cols))
		for i, c := range cols {
			defs[i] = quoteIdentifier(c) + " TEXT"
		}
		stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdentifier(w.table), strings.Join(defs, ", "))
		if _, err := w.tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", w.table, err)
		}
		return nil
	}

	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}
	for _, c := range cols {
		if have[c] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quoteIdentifier(w.table), quoteIdentifier(c))
		if _, err := w.tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("add column %s.%s: %w", w.table, c, err)
		}
	}
	return nil
}

func (w *writer) AppendRows(ctx context.Context, cols []string, rows []core.Row) error {
	if len(cols) == 0 {
		return nil
	}
	if err := w.ensureColumns(ctx, cols); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdentifier(c)
		marks[i] = "?"
	}
	stmt, err := w.tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(w.table), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", w.table, err)
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for n, row := range rows {
		for i, c := range cols {
			if v := row[c]; v.Valid {
				args[i] = v.String
			} else {
				args[i] = nil
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d into %s: %w", n+1, w.table, err)
		}
	}
	return nil
}

func (w *writer) ReplaceRows(ctx context.Context, cols []string, rows []core.Row) error {
	if err := w.ensureColumns(ctx, cols); err != nil {
		return err
	}
	if _, err := w.tx.ExecContext(ctx, "DELETE FROM "+quoteIdentifier(w.table)); err != nil {
		return fmt.Errorf("clear %s: %w", w.table, err)
	}
	return w.AppendRows(ctx, cols, rows)
}

func (w *writer) DeleteWhere(ctx context.Context, keys, values []string) (int64, error) {
	if len(keys) == 0 || len(keys) != len(values) {
		return 0, fmt.Errorf("delete from %s: %d key columns for %d values", w.table, len(keys), len(values))
	}

	conditions := make([]string, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		col := quoteIdentifier(k)
		if values[i] == "" {
			conditions[i] = fmt.Sprintf("(%s IS NULL OR %s = '')", col, col)
			continue
		}
		conditions[i] = col + " = ?"
		args = append(args, values[i])
	}

	res, err := w.tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s",
		quoteIdentifier(w.table), strings.Join(conditions, " AND ")), args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", w.table, err)
	}
	return res.RowsAffected()
}
