package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"normal identifier", "ledger", `"ledger"`},
		{"reserved word still quoted", "select", `"select"`},
		{"contains double quote - escaped", `user"name`, `"user""name"`},
		{"sql injection attempt safely quoted", `t"; DROP TABLE t; --`, `"t""; DROP TABLE t; --"`},
		{"empty string", "", `""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, quoteIdentifier(tt.input))
		})
	}
}

// openTestStore connects to TEST_DATABASE_URL or skips.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := Open(context.Background(), Options{URL: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// tempTable returns a unique table name dropped at cleanup.
func tempTable(t *testing.T, s *Store) string {
	t.Helper()
	name := "ledgersync_test_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		s.pool.Exec(context.Background(), "DROP TABLE IF EXISTS "+quoteIdentifier(name))
	})
	return name
}

func text(s string) pgtype.Text { return pgtype.Text{String: s, Valid: true} }

func TestStore_WriteAndRead(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	table := tempTable(t, s)

	_, err := s.ReadTable(ctx, table)
	require.True(t, errors.Is(err, core.ErrTableNotFound), "err = %v", err)

	err = s.WithTable(ctx, table, func(w core.TableWriter) error {
		if err := w.AppendRows(ctx, []string{"date", "amount"}, []core.Row{
			{"date": text("2024-01-01"), "amount": text("100.00")},
			{"date": text("2024-01-02"), "amount": {}},
		}); err != nil {
			return err
		}
		return w.AppendRows(ctx, []string{"date", "amount", "notes"}, []core.Row{
			{"date": text("2024-01-03"), "amount": text("3.00"), "notes": text("x")},
		})
	})
	require.NoError(t, err)

	got, err := s.ReadTable(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "amount", "notes"}, got.Columns)
	assert.Equal(t, 3, got.Len())

	var removed int64
	err = s.WithTable(ctx, table, func(w core.TableWriter) error {
		removed, err = w.DeleteWhere(ctx, []string{"date", "notes"}, []string{"2024-01-02", ""})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestStore_RollsBack(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	table := tempTable(t, s)

	boom := errors.New("boom")
	err := s.WithTable(ctx, table, func(w core.TableWriter) error {
		if err := w.AppendRows(ctx, []string{"date"}, []core.Row{{"date": text("2024-01-01")}}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.ReadTable(ctx, table)
	assert.True(t, errors.Is(err, core.ErrTableNotFound), "table creation should roll back, err = %v", err)
}

func TestStore_Audit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	runID := uuid.NewString()

	err := s.RecordAudit(ctx, []core.AuditEntry{{
		ID:        uuid.NewString(),
		RunID:     runID,
		Sheet:     "Ledger",
		Table:     "ledger",
		Status:    core.StatusFailed,
		Severity:  core.SeverityHigh,
		Error:     "database is locked",
		CreatedAt: time.Now().UTC().Add(time.Hour),
	}})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.pool.Exec(context.Background(), "DELETE FROM sync_audit WHERE run_id = $1", runID)
	})

	got, err := s.RecentAudit(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, runID, got[0].RunID)
	assert.Equal(t, core.StatusFailed, got[0].Status)
	assert.Equal(t, "database is locked", got[0].Error)
}
