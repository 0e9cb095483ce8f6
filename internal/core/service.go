package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/ledgersync/internal/logging"
	"github.com/google/uuid"
)

// Options configures a Service.
type Options struct {
	Normalizer Normalizer
	Keys       KeySelector
	Deny       DenyList

	// Backups may be nil, in which case no backups are taken.
	Backups        BackupFacility
	BackupRequired bool
	Retention      int

	// StoreSnapshot takes one whole-store backup per run before the first
	// write, when the store implements Snapshotter.
	StoreSnapshot bool

	// RunWait is how long a run waits for an active run to finish.
	RunWait time.Duration
}

// RunOptions tunes a single sync run.
type RunOptions struct {
	// DryRun computes and reports changes without writing anything.
	DryRun bool

	// FullRefresh replaces each table with the new snapshot.
	FullRefresh bool
}

// Service runs sync cycles against one store.
//
// The store handle is owned by the caller, who must Close it on every exit
// path; the Service never closes it.
type Service struct {
	store         Store
	builder       SummaryBuilder
	applier       *Applier
	backups       BackupFacility
	storeSnapshot bool
	limiter       *RunLimiter

	mu   sync.RWMutex
	last *Report
}

// NewService creates a new Service instance.
func NewService(store Store, opts Options) *Service {
	return &Service{
		store: store,
		builder: SummaryBuilder{
			Differ: Differ{Normalizer: opts.Normalizer, Keys: opts.Keys},
			Deny:   opts.Deny,
		},
		applier: &Applier{
			Store:          store,
			Backups:        opts.Backups,
			BackupRequired: opts.BackupRequired,
			Retention:      opts.Retention,
		},
		backups:       opts.Backups,
		storeSnapshot: opts.StoreSnapshot,
		limiter:       NewRunLimiter(opts.RunWait),
	}
}

// Run executes one sync cycle over freshly read sheets.
//
// Empty input returns ErrNoInput. Otherwise a Report is always returned,
// with per-sheet failures recorded in it rather than returned as errors.
// Overlapping runs fail with ErrSyncInProgress.
func (s *Service) Run(ctx context.Context, input map[string]*Table, opts RunOptions) (*Report, error) {
	if len(input) == 0 {
		return nil, ErrNoInput
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	report := &Report{
		RunID:       uuid.New().String(),
		StartedAt:   time.Now().UTC(),
		DryRun:      opts.DryRun,
		FullRefresh: opts.FullRefresh,
	}
	ctx = logging.WithRunID(ctx, report.RunID)
	log := logging.FromContext(ctx)
	log.Info("sync started", "sheets", len(input), "dry_run", opts.DryRun, "full_refresh", opts.FullRefresh)

	summary := s.builder.Build(ctx, s.store, input)

	if opts.DryRun {
		for _, sc := range summary.Sheets {
			report.Sheets = append(report.Sheets, resultFor(sc, true))
		}
	} else {
		if s.needsWrite(summary, opts) {
			report.StoreBackup = s.snapshotStore(ctx)
		}
		report.Sheets, report.Purged = s.applier.Apply(ctx, summary, ApplyOptions{FullRefresh: opts.FullRefresh})
	}
	report.FinishedAt = time.Now().UTC()

	if !opts.DryRun {
		entries := auditEntries(report, CallerFrom(ctx))
		if err := s.store.RecordAudit(ctx, entries); err != nil {
			log.Warn("failed to record sync audit", "error", err)
		}
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	inserted, deleted, modified := report.Totals()
	log.Info("sync finished",
		"inserted", inserted,
		"deleted", deleted,
		"modified", modified,
		"failed_sheets", report.Failed(),
		"duration_ms", report.Duration().Milliseconds(),
	)
	return report, nil
}

func (s *Service) needsWrite(summary *Summary, opts RunOptions) bool {
	for _, sc := range summary.Sheets {
		if sc.HasWork() {
			return true
		}
		if opts.FullRefresh && !sc.Skipped && sc.Err == nil {
			return true
		}
	}
	return false
}

// snapshotStore takes the per-run whole-store backup. Failures are logged
// and never block the run.
func (s *Service) snapshotStore(ctx context.Context) string {
	if !s.storeSnapshot || s.backups == nil {
		return ""
	}
	snap, ok := s.store.(Snapshotter)
	if !ok {
		return ""
	}
	ref, err := s.backups.BackupStore(ctx, snap)
	if err != nil {
		logging.FromContext(ctx).Warn("store snapshot failed, continuing with table backups", "error", err)
		return ""
	}
	return ref
}

// LastReport returns the report of the most recent run, or nil.
func (s *Service) LastReport() *Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Limiter exposes the run limiter for graceful shutdown.
func (s *Service) Limiter() *RunLimiter {
	return s.limiter
}

// Tables lists stored tables, flagging ledgersync's own.
func (s *Service) Tables(ctx context.Context) ([]TableStat, error) {
	stats, err := s.store.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	for i := range stats {
		stats[i].Internal = IsInternalTable(stats[i].Name)
	}
	return stats, nil
}

// Table returns the contents of a stored table. The name is sanitized
// first; internal tables are not exposed.
func (s *Service) Table(ctx context.Context, name string) (*Table, error) {
	table := SanitizeTableName(name)
	if IsInternalTable(table) {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	t, err := s.store.ReadTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", table, err)
	}
	return t, nil
}

// AuditLog returns the newest sync audit entries.
func (s *Service) AuditLog(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	entries, err := s.store.RecentAudit(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read sync audit: %w", err)
	}
	return entries, nil
}
