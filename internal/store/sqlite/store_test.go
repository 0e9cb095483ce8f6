package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func text(s string) pgtype.Text { return pgtype.Text{String: s, Valid: true} }

func appendRows(t *testing.T, s *Store, table string, cols []string, rows ...core.Row) {
	t.Helper()
	err := s.WithTable(context.Background(), table, func(w core.TableWriter) error {
		return w.AppendRows(context.Background(), cols, rows)
	})
	require.NoError(t, err)
}

// =============================================================================
// Open
// =============================================================================

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.sqlite")

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
	assert.Equal(t, path, s.Path())
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.sqlite")
	for i := 0; i < 3; i++ {
		s, err := Open(context.Background(), path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, s.Close())
	}
}

// =============================================================================
// Tables
// =============================================================================

func TestReadTable_Missing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.ReadTable(context.Background(), "ledger")
	assert.True(t, errors.Is(err, core.ErrTableNotFound), "err = %v", err)
}

func TestAppendRows_CreatesTableAndKeepsNulls(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	appendRows(t, s, "ledger", []string{"date", "amount", "notes"},
		core.Row{"date": text("2024-01-01"), "amount": text("100.00"), "notes": {}},
		core.Row{"date": text("2024-01-02"), "amount": text("20.00"), "notes": text("food")},
	)

	got, err := s.ReadTable(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "amount", "notes"}, got.Columns)
	require.Equal(t, 2, got.Len())
	assert.False(t, got.Rows[0]["notes"].Valid)
	assert.Equal(t, "food", got.Rows[1].Text("notes"))
}

func TestAppendRows_AddsMissingColumns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	appendRows(t, s, "ledger", []string{"date", "amount"},
		core.Row{"date": text("2024-01-01"), "amount": text("100.00")})
	appendRows(t, s, "ledger", []string{"date", "amount", "responsible"},
		core.Row{"date": text("2024-01-02"), "amount": text("5.00"), "responsible": text("Ana")})

	got, err := s.ReadTable(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "amount", "responsible"}, got.Columns)
	assert.Equal(t, 2, got.Len())
	assert.False(t, got.Rows[0]["responsible"].Valid)
}

func TestAppendRows_QuotesIdentifiers(t *testing.T) {
	s := openTestStore(t)

	appendRows(t, s, "order", []string{"select", `we"ird`},
		core.Row{"select": text("a"), `we"ird`: text("b")})

	got, err := s.ReadTable(context.Background(), "order")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Rows[0].Text(`we"ird`))
}

func TestDeleteWhere_EmptyMatchesNull(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cols := []string{"date", "description", "amount"}

	appendRows(t, s, "ledger", cols,
		core.Row{"date": text("2024-01-01"), "description": {}, "amount": text("1.00")},
		core.Row{"date": text("2024-01-01"), "description": text(""), "amount": text("2.00")},
		core.Row{"date": text("2024-01-01"), "description": text("rent"), "amount": text("3.00")},
	)

	var removed int64
	err := s.WithTable(ctx, "ledger", func(w core.TableWriter) error {
		var err error
		removed, err = w.DeleteWhere(ctx, []string{"date", "description"}, []string{"2024-01-01", ""})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	got, err := s.ReadTable(ctx, "ledger")
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "rent", got.Rows[0].Text("description"))
}

func TestWithTable_RollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cols := []string{"date", "amount"}
	appendRows(t, s, "ledger", cols, core.Row{"date": text("2024-01-01"), "amount": text("1.00")})

	boom := errors.New("boom")
	err := s.WithTable(ctx, "ledger", func(w core.TableWriter) error {
		if err := w.AppendRows(ctx, cols, []core.Row{{"date": text("2024-01-02"), "amount": text("2.00")}}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.ReadTable(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestReplaceRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	cols := []string{"date", "amount"}
	appendRows(t, s, "ledger", cols,
		core.Row{"date": text("2024-01-01"), "amount": text("1.00")},
		core.Row{"date": text("2024-01-02"), "amount": text("2.00")},
	)

	err := s.WithTable(ctx, "ledger", func(w core.TableWriter) error {
		return w.ReplaceRows(ctx, cols, []core.Row{{"date": text("2024-02-01"), "amount": text("9.00")}})
	})
	require.NoError(t, err)

	got, err := s.ReadTable(ctx, "ledger")
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "2024-02-01", got.Rows[0].Text("date"))
}

func TestListTables(t *testing.T) {
	s := openTestStore(t)
	appendRows(t, s, "ledger", []string{"date", "amount"},
		core.Row{"date": text("2024-01-01"), "amount": text("1.00")})

	stats, err := s.ListTables(context.Background())
	require.NoError(t, err)

	byName := map[string]core.TableStat{}
	for _, st := range stats {
		byName[st.Name] = st
	}
	assert.Contains(t, byName, "sync_audit")
	assert.Contains(t, byName, "goose_db_version")
	require.Contains(t, byName, "ledger")
	assert.Equal(t, int64(1), byName["ledger"].Rows)
	assert.Equal(t, 2, byName["ledger"].Columns)
}

// =============================================================================
// Audit
// =============================================================================

func TestAudit_NewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, sheet := range []string{"first", "second", "third"} {
		err := s.RecordAudit(ctx, []core.AuditEntry{{
			ID:        "id-" + sheet,
			RunID:     "run-1",
			Sheet:     sheet,
			Table:     sheet,
			Status:    core.StatusApplied,
			Severity:  core.SeverityMedium,
			Inserted:  i,
			IPAddress: "10.0.0.1",
			CreatedAt: base.Add(time.Duration(i) * 1500 * time.Millisecond),
		}})
		require.NoError(t, err)
	}

	got, err := s.RecentAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Sheet)
	assert.Equal(t, "second", got[1].Sheet)
	assert.Equal(t, core.StatusApplied, got[0].Status)
	assert.Equal(t, "10.0.0.1", got[0].IPAddress)
	assert.Empty(t, got[0].Error)
	assert.True(t, got[0].CreatedAt.Equal(base.Add(3*time.Second)))
}

// =============================================================================
// Snapshot
// =============================================================================

func TestSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	appendRows(t, s, "ledger", []string{"date"}, core.Row{"date": text("2024-01-01")})

	dest := filepath.Join(t.TempDir(), "snap", "ledger.sqlite")
	require.NoError(t, s.Snapshot(ctx, dest))

	copied, err := Open(ctx, dest)
	require.NoError(t, err)
	defer copied.Close()

	got, err := copied.ReadTable(ctx, "ledger")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())

	assert.Error(t, s.Snapshot(ctx, dest), "snapshot over an existing file should fail")
}

// =============================================================================
// End to end
// =============================================================================

func TestService_SyncTwice(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	svc := core.NewService(s, core.Options{})

	input := func() map[string]*core.Table {
		tbl := core.NewTable("Fecha", "Description", "Amount", "Responsible")
		tbl.AddRow("05/01/2024", "Rent", "1.234,56", "Ana")
		tbl.AddRow("06/01/2024", "Food", "20", "")
		return map[string]*core.Table{"Ledger 2024": tbl}
	}

	report, err := svc.Run(ctx, input(), core.RunOptions{})
	require.NoError(t, err)
	res := report.Sheet("Ledger 2024")
	require.NotNil(t, res)
	assert.Equal(t, core.StatusApplied, res.Status)
	assert.True(t, res.NewTable)
	assert.Equal(t, 2, res.Inserted)

	stored, err := s.ReadTable(ctx, "ledger_2024")
	require.NoError(t, err)
	assert.Equal(t, []string{"fecha", "description", "amount", "responsible"}, stored.Columns)

	report, err = svc.Run(ctx, input(), core.RunOptions{})
	require.NoError(t, err)
	res = report.Sheet("Ledger 2024")
	assert.Equal(t, core.StatusUnchanged, res.Status)
	assert.Zero(t, res.Inserted)
	assert.Zero(t, res.Modified)

	audit, err := s.RecentAudit(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, audit, 2)
}
