package postgres

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// RecordAudit inserts entries in one batch.
func (s *Store) RecordAudit(ctx context.Context, entries []core.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO sync_audit (id, run_id, sheet, table_name, status, severity,
				inserted, deleted, modified, error, backup_ref, ip_address, user_agent, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			e.ID, e.RunID, e.Sheet, e.Table, string(e.Status), string(e.Severity),
			e.Inserted, e.Deleted, e.Modified,
			core.ToPgText(e.Error), core.ToPgText(e.BackupRef),
			core.ToPgText(e.IPAddress), core.ToPgText(e.UserAgent),
			e.CreatedAt,
		)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert sync audit: %w", err)
	}
	return nil
}

// RecentAudit returns up to limit entries, newest first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]core.AuditEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, sheet, table_name, status, severity, inserted, deleted, modified,
			error, backup_ref, ip_address, user_agent, created_at
		FROM sync_audit
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync audit: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.AuditEntry, error) {
		var (
			e                                 core.AuditEntry
			status, severity                  string
			errText, backupRef, ip, userAgent pgtype.Text
		)
		err := row.Scan(&e.ID, &e.RunID, &e.Sheet, &e.Table, &status, &severity,
			&e.Inserted, &e.Deleted, &e.Modified,
			&errText, &backupRef, &ip, &userAgent, &e.CreatedAt)
		e.Status = core.SheetStatus(status)
		e.Severity = core.AuditSeverity(severity)
		e.Error = errText.String
		e.BackupRef = backupRef.String
		e.IPAddress = ip.String
		e.UserAgent = userAgent.String
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan sync audit: %w", err)
	}
	return entries, nil
}
