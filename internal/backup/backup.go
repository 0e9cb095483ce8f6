// Package backup writes the artifacts taken before a sync modifies the
// store: one CSV per table about to change and, for stores that support
// it, one copy of the whole database per run.
//
// Artifacts live under a single directory with an index.json recording
// their SHA256 hashes. Purge keeps the newest N artifacts per target. An
// optional Mirror copies each artifact off-site.
package backup

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/JonMunkholm/ledgersync/internal/logging"
)

const (
	// DirPerm is the permission for backup directories (rwxr-x---)
	DirPerm = 0o750
	// FilePerm is the permission for backup files (rw-r-----)
	FilePerm = 0o640
)

// Manager creates, lists and purges backups. It implements
// core.BackupFacility.
type Manager struct {
	dir    string
	mirror Mirror

	mu  sync.Mutex
	now func() time.Time
}

var _ core.BackupFacility = (*Manager)(nil)

// New creates a Manager rooted at dir. A nil mirror disables mirroring.
func New(dir string, mirror Mirror) (*Manager, error) {
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}
	if mirror == nil {
		mirror = NoopMirror{}
	}
	return &Manager{dir: dir, mirror: mirror, now: time.Now}, nil
}

// Dir returns the backup directory.
func (m *Manager) Dir() string { return m.dir }

// BackupTable writes data as CSV. Null cells are written empty.
func (m *Manager) BackupTable(ctx context.Context, table string, data *core.Table) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	art, err := m.writeArtifact(ctx, KindTable, table, ".csv", func(path string) error {
		return writeCSV(path, data)
	})
	if err != nil {
		return "", fmt.Errorf("backup table %s: %w", table, err)
	}
	art.Rows = data.Len()
	if err := m.record(ctx, art); err != nil {
		return "", err
	}
	return art.ID, nil
}

// BackupStore asks s to copy the whole store into a new artifact.
func (m *Manager) BackupStore(ctx context.Context, s core.Snapshotter) (string, error) {
	art, err := m.writeArtifact(ctx, KindStore, StoreTarget, ".sqlite", func(path string) error {
		return s.Snapshot(ctx, path)
	})
	if err != nil {
		return "", fmt.Errorf("backup store: %w", err)
	}
	if err := m.record(ctx, art); err != nil {
		return "", err
	}
	return art.ID, nil
}

// writeArtifact runs write against a temporary path, hashes the result and
// moves it to its final name, <target>/<YYYYMMDD-HHMMSS>-<hash8><ext>.
func (m *Manager) writeArtifact(ctx context.Context, kind Kind, target, ext string, write func(path string) error) (Artifact, error) {
	targetDir := filepath.Join(m.dir, string(kind), target)
	if err := os.MkdirAll(targetDir, DirPerm); err != nil {
		return Artifact{}, fmt.Errorf("create backup directory: %w", err)
	}

	now := m.now().UTC()
	tmp := filepath.Join(targetDir, ".pending-"+strconv.FormatInt(now.UnixNano(), 36)+ext)
	if err := write(tmp); err != nil {
		os.Remove(tmp)
		return Artifact{}, err
	}

	hash, size, err := hashFile(tmp)
	if err != nil {
		os.Remove(tmp)
		return Artifact{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := loadIndex(m.dir)
	if err != nil {
		os.Remove(tmp)
		return Artifact{}, err
	}
	base := now.Format("20060102-150405-") + hash[:8]
	id, rel := base, ""
	for i := 2; ; i++ {
		rel = filepath.Join(string(kind), target, id+ext)
		_, indexed := idx.Artifacts[id]
		_, statErr := os.Stat(filepath.Join(m.dir, rel))
		if !indexed && os.IsNotExist(statErr) {
			break
		}
		id = base + "-" + strconv.Itoa(i)
	}

	if err := os.Rename(tmp, filepath.Join(m.dir, rel)); err != nil {
		os.Remove(tmp)
		return Artifact{}, fmt.Errorf("move backup into place: %w", err)
	}

	return Artifact{
		ID:        id,
		Kind:      kind,
		Target:    target,
		File:      rel,
		CreatedAt: now,
		Hash:      hash,
		Size:      size,
	}, nil
}

// record mirrors art and adds it to the index. A mirror failure is logged;
// the local artifact still counts.
func (m *Manager) record(ctx context.Context, art Artifact) error {
	if err := m.mirror.Upload(ctx, art.File, filepath.Join(m.dir, art.File)); err != nil {
		logging.FromContext(ctx).Warn("backup mirror upload failed", "backup", art.ID, "error", err)
	} else if m.mirror.Enabled() {
		art.Mirrored = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := loadIndex(m.dir)
	if err != nil {
		return err
	}
	idx.Artifacts[art.ID] = art
	if err := idx.save(m.dir, m.now()); err != nil {
		return fmt.Errorf("add backup to index: %w", err)
	}
	return nil
}

// List returns artifacts newest first. An empty target lists all of them.
func (m *Manager) List(target string) ([]Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := loadIndex(m.dir)
	if err != nil {
		return nil, fmt.Errorf("load backup index: %w", err)
	}
	return idx.sorted(func(a Artifact) bool {
		return target == "" || a.Target == target
	}), nil
}

// Verify checks that an artifact is present and matches its hash.
func (m *Manager) Verify(id string) error {
	m.mu.Lock()
	idx, err := loadIndex(m.dir)
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("load backup index: %w", err)
	}

	art, ok := idx.Artifacts[id]
	if !ok {
		return fmt.Errorf("backup %q not found", id)
	}
	hash, _, err := hashFile(filepath.Join(m.dir, art.File))
	if err != nil {
		return err
	}
	if hash != art.Hash {
		return fmt.Errorf("backup file corrupted: hash mismatch (expected %s, got %s)", art.Hash, hash)
	}
	return nil
}

// Purge keeps the newest limit artifacts of every target and removes the
// rest. A limit below one keeps everything.
func (m *Manager) Purge(ctx context.Context, limit int) (int, error) {
	if limit < 1 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := loadIndex(m.dir)
	if err != nil {
		return 0, fmt.Errorf("load backup index: %w", err)
	}

	seen := make(map[string]int)
	var doomed []Artifact
	for _, a := range idx.sorted(nil) {
		key := string(a.Kind) + ":" + a.Target
		seen[key]++
		if seen[key] > limit {
			doomed = append(doomed, a)
		}
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	log := logging.FromContext(ctx)
	removed := 0
	for _, a := range doomed {
		if err := os.Remove(filepath.Join(m.dir, a.File)); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to delete backup file", "backup", a.ID, "error", err)
			continue
		}
		if a.Mirrored {
			if err := m.mirror.Remove(ctx, a.File); err != nil {
				log.Warn("failed to delete mirrored backup", "backup", a.ID, "error", err)
			}
		}
		delete(idx.Artifacts, a.ID)
		removed++
	}

	if err := idx.save(m.dir, m.now()); err != nil {
		return removed, err
	}
	log.Info("purged old backups", "removed", removed, "keep_per_target", limit)
	return removed, nil
}

func writeCSV(path string, data *core.Table) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, FilePerm)
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close backup file: %w", closeErr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(data.Columns); err != nil {
		return fmt.Errorf("write backup header: %w", err)
	}
	record := make([]string, len(data.Columns))
	for _, row := range data.Rows {
		for i, c := range data.Columns {
			record[i] = row.Text(c)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write backup row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func hashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open backup file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("read backup file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
