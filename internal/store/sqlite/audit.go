package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/JonMunkholm/ledgersync/internal/core"
)

// auditTimeLayout has a fixed width so that created_at sorts as text.
const auditTimeLayout = "2006-01-02T15:04:05.000000000Z"

// RecordAudit inserts entries in one transaction.
func (s *Store) RecordAudit(ctx context.Context, entries []core.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sync_audit (id, run_id, sheet, table_name, status, severity,
			inserted, deleted, modified, error, backup_ref, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx,
			e.ID, e.RunID, e.Sheet, e.Table, string(e.Status), string(e.Severity),
			e.Inserted, e.Deleted, e.Modified,
			nullable(e.Error), nullable(e.BackupRef), nullable(e.IPAddress), nullable(e.UserAgent),
			e.CreatedAt.UTC().Format(auditTimeLayout),
		)
		if err != nil {
			return fmt.Errorf("insert audit entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// RecentAudit returns up to limit entries, newest first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]core.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, sheet, table_name, status, severity, inserted, deleted, modified,
			error, backup_ref, ip_address, user_agent, created_at
		FROM sync_audit
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync audit: %w", err)
	}
	defer rows.Close()

	var out []core.AuditEntry
	for rows.Next() {
		var (
			e                                 core.AuditEntry
			status, severity, created         string
			errText, backupRef, ip, userAgent sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Sheet, &e.Table, &status, &severity,
			&e.Inserted, &e.Deleted, &e.Modified,
			&errText, &backupRef, &ip, &userAgent, &created); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Status = core.SheetStatus(status)
		e.Severity = core.AuditSeverity(severity)
		e.Error = errText.String
		e.BackupRef = backupRef.String
		e.IPAddress = ip.String
		e.UserAgent = userAgent.String
		if t, err := time.Parse(auditTimeLayout, created); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
