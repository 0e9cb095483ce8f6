package backup

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns increasing times one minute apart.
func fakeClock() func() time.Time {
	t := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func newTestManager(t *testing.T, mirror Mirror) *Manager {
	t.Helper()
	m, err := New(t.TempDir(), mirror)
	require.NoError(t, err)
	m.now = fakeClock()
	return m
}

func ledger(rows ...[]string) *core.Table {
	t := core.NewTable("date", "description", "amount")
	for _, r := range rows {
		t.AddRow(r...)
	}
	return t
}

type fileSnapshotter struct {
	content string
	err     error
}

func (f fileSnapshotter) Snapshot(_ context.Context, dest string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, []byte(f.content), 0o600)
}

type fakeS3 struct {
	objects map[string]string
	failPut error
}

func (f *fakeS3) FPutObject(_ context.Context, bucket, key, filePath string) error {
	if f.failPut != nil {
		return f.failPut
	}
	f.objects[bucket+"/"+key] = filePath
	return nil
}

func (f *fakeS3) RemoveObject(_ context.Context, bucket, key string) error {
	delete(f.objects, bucket+"/"+key)
	return nil
}

// =============================================================================
// Table backups
// =============================================================================

func TestBackupTable_WritesCSV(t *testing.T) {
	m := newTestManager(t, nil)

	id, err := m.BackupTable(context.Background(), "ledger", ledger(
		[]string{"2024-01-01", "rent, main office", "100.00"},
		[]string{"2024-01-02", "", "20.00"},
	))
	require.NoError(t, err)
	assert.Regexp(t, `^20240501-090100-[0-9a-f]{8}$`, id)

	arts, err := m.List("ledger")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	art := arts[0]
	assert.Equal(t, KindTable, art.Kind)
	assert.Equal(t, 2, art.Rows)
	assert.False(t, art.Mirrored)

	f, err := os.Open(filepath.Join(m.Dir(), art.File))
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"date", "description", "amount"},
		{"2024-01-01", "rent, main office", "100.00"},
		{"2024-01-02", "", "20.00"},
	}, records)

	assert.NoError(t, m.Verify(id))
}

func TestBackupTable_CanceledContext(t *testing.T) {
	m := newTestManager(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.BackupTable(ctx, "ledger", ledger())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackupTable_SameSecondSameContent(t *testing.T) {
	m := newTestManager(t, nil)
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	first, err := m.BackupTable(context.Background(), "ledger", ledger())
	require.NoError(t, err)
	second, err := m.BackupTable(context.Background(), "ledger", ledger())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(second, first))
}

func TestVerify_DetectsCorruption(t *testing.T) {
	m := newTestManager(t, nil)
	id, err := m.BackupTable(context.Background(), "ledger", ledger([]string{"2024-01-01", "rent", "1"}))
	require.NoError(t, err)

	arts, err := m.List("")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), arts[0].File), []byte("tampered"), 0o600))

	err = m.Verify(id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")

	assert.Error(t, m.Verify("missing"))
}

// =============================================================================
// Store backups
// =============================================================================

func TestBackupStore(t *testing.T) {
	m := newTestManager(t, nil)

	id, err := m.BackupStore(context.Background(), fileSnapshotter{content: "sqlite bytes"})
	require.NoError(t, err)

	arts, err := m.List(StoreTarget)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, id, arts[0].ID)
	assert.Equal(t, KindStore, arts[0].Kind)
	assert.Equal(t, int64(len("sqlite bytes")), arts[0].Size)
}

func TestBackupStore_SnapshotFailure(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.BackupStore(context.Background(), fileSnapshotter{err: errors.New("no space left on device")})
	require.Error(t, err)

	arts, err := m.List("")
	require.NoError(t, err)
	assert.Empty(t, arts)

	// No pending files are left behind.
	matches, err := filepath.Glob(filepath.Join(m.Dir(), string(KindStore), StoreTarget, ".pending-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// =============================================================================
// Purge
// =============================================================================

func TestPurge_KeepsNewestPerTarget(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()

	var ledgerIDs []string
	for i := 0; i < 4; i++ {
		id, err := m.BackupTable(ctx, "ledger", ledger([]string{"2024-01-01", "rent", string(rune('1' + i))}))
		require.NoError(t, err)
		ledgerIDs = append(ledgerIDs, id)
	}
	_, err := m.BackupTable(ctx, "budget", ledger())
	require.NoError(t, err)
	_, err = m.BackupStore(ctx, fileSnapshotter{content: "a"})
	require.NoError(t, err)

	removed, err := m.Purge(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	arts, err := m.List("ledger")
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, ledgerIDs[3], arts[0].ID)
	assert.Equal(t, ledgerIDs[2], arts[1].ID)

	budget, err := m.List("budget")
	require.NoError(t, err)
	assert.Len(t, budget, 1)

	// Purged files are gone from disk.
	files, err := filepath.Glob(filepath.Join(m.Dir(), string(KindTable), "ledger", "*.csv"))
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestPurge_ZeroLimitKeepsAll(t *testing.T) {
	m := newTestManager(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := m.BackupTable(ctx, "ledger", ledger())
		require.NoError(t, err)
	}

	removed, err := m.Purge(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

// =============================================================================
// Mirror
// =============================================================================

func TestMirror_UploadsAndRemoves(t *testing.T) {
	s3 := &fakeS3{objects: map[string]string{}}
	m := newTestManager(t, &S3Mirror{client: s3, bucket: "backups", prefix: "ledgersync"})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := m.BackupTable(ctx, "ledger", ledger([]string{"2024-01-01", "x", string(rune('1' + i))}))
		require.NoError(t, err)
	}
	assert.Len(t, s3.objects, 2)
	for key := range s3.objects {
		assert.True(t, strings.HasPrefix(key, "backups/ledgersync/table/ledger/"), key)
	}

	arts, err := m.List("ledger")
	require.NoError(t, err)
	assert.True(t, arts[0].Mirrored)

	_, err = m.Purge(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, s3.objects, 1)
}

func TestMirror_FailureKeepsLocalBackup(t *testing.T) {
	s3 := &fakeS3{objects: map[string]string{}, failPut: errors.New("connection refused")}
	m := newTestManager(t, &S3Mirror{client: s3, bucket: "backups"})

	id, err := m.BackupTable(context.Background(), "ledger", ledger())
	require.NoError(t, err)

	arts, err := m.List("ledger")
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, id, arts[0].ID)
	assert.False(t, arts[0].Mirrored)
}

func TestNewMirror_EmptyBucketIsNoop(t *testing.T) {
	mirror, err := NewMirror(S3Options{})
	require.NoError(t, err)
	assert.False(t, mirror.Enabled())
	assert.ErrorIs(t, mirror.Remove(context.Background(), "k"), ErrMirrorNotConfigured)
}
