package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// quoteIdentifier safely quotes a PostgreSQL identifier.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func columns(ctx context.Context, q querier, table string) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("columns of %s: %w", table, err)
	}
	return cols, nil
}

// ReadTable returns every row of table with each value cast to text.
func (s *Store) ReadTable(ctx context.Context, table string) (*core.Table, error) {
	cols, err := columns(ctx, s.pool, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, table)
	}

	selects := make([]string, len(cols))
	for i, c := range cols {
		selects[i] = quoteIdentifier(c) + "::text"
	}
	rows, err := s.pool.Query(ctx, fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(selects, ", "), quoteIdentifier(table)))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	out := core.NewTable(cols...)
	values := make([]pgtype.Text, len(cols))
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
			row[c] = values[i]
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return out, nil
}

// ListTables returns the base tables of the current schema.
func (s *Store) ListTables(ctx context.Context) ([]core.TableStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.table_name, COUNT(c.column_name)
		FROM information_schema.tables t
		LEFT JOIN information_schema.columns c
			ON c.table_schema = t.table_schema AND c.table_name = t.table_name
		WHERE t.table_schema = current_schema() AND t.table_type = 'BASE TABLE'
		GROUP BY t.table_name
		ORDER BY t.table_name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.TableStat, error) {
		var st core.TableStat
		err := row.Scan(&st.Name, &st.Columns)
		return st, err
	})
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	for i := range stats {
		err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdentifier(stats[i].Name)).Scan(&stats[i].Rows)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", stats[i].Name, err)
		}
	}
	return stats, nil
}

// WithTable runs fn inside one transaction.
func (s *Store) WithTable(ctx context.Context, table string, fn func(core.TableWriter) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if err := fn(&writer{tx: tx, table: table}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", table, err)
	}
	return nil
}

type writer struct {
	tx    pgx.Tx
	table string
}

func (w *writer) ensureColumns(ctx context.Context, cols []string) error {
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quoteIdentifier(c) + " TEXT"
	}
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdentifier(w.table), strings.Join(defs, ", "))
	if _, err := w.tx.Exec(ctx, create); err != nil {
		return fmt.Errorf("create table %s: %w", w.table, err)
	}

	existing, err := columns(ctx, w.tx, w.table)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}
	for _, c := range cols {
		if have[c] {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s TEXT", quoteIdentifier(w.table), quoteIdentifier(c))
		if _, err := w.tx.Exec(ctx, alter); err != nil {
			return fmt.Errorf("add column %s.%s: %w", w.table, c, err)
		}
	}
	return nil
}

// AppendRows bulk-loads rows with COPY.
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

	src := pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		vals := make([]any, len(cols))
		for j, c := range cols {
			vals[j] = rows[i][c]
		}
		return vals, nil
	})
	if _, err := w.tx.CopyFrom(ctx, pgx.Identifier{w.table}, cols, src); err != nil {
		return fmt.Errorf("copy into %s: %w", w.table, err)
	}
	return nil
}

func (w *writer) ReplaceRows(ctx context.Context, cols []string, rows []core.Row) error {
	if err := w.ensureColumns(ctx, cols); err != nil {
		return err
	}
	if _, err := w.tx.Exec(ctx, "DELETE FROM "+quoteIdentifier(w.table)); err != nil {
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
		args = append(args, values[i])
		conditions[i] = fmt.Sprintf("%s = $%d", col, len(args))
	}

	tag, err := w.tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s",
		quoteIdentifier(w.table), strings.Join(conditions, " AND ")), args...)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", w.table, err)
	}
	return tag.RowsAffected(), nil
}
