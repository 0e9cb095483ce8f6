package core

import (
	"time"

	"github.com/google/uuid"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry records the outcome of one sheet in one sync run.
type AuditEntry struct {
	ID        string        `json:"id" yaml:"id"`
	RunID     string        `json:"run_id" yaml:"run_id"`
	Sheet     string        `json:"sheet" yaml:"sheet"`
	Table     string        `json:"table" yaml:"table"`
	Status    SheetStatus   `json:"status" yaml:"status"`
	Severity  AuditSeverity `json:"severity" yaml:"severity"`
	Inserted  int           `json:"inserted" yaml:"inserted"`
	Deleted   int           `json:"deleted" yaml:"deleted"`
	Modified  int           `json:"modified" yaml:"modified"`
	Error     string        `json:"error,omitempty" yaml:"error,omitempty"`
	BackupRef string        `json:"backup_ref,omitempty" yaml:"backup_ref,omitempty"`
	IPAddress string        `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
	UserAgent string        `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	CreatedAt time.Time     `json:"created_at" yaml:"created_at"`
}

// severityFor ranks a sheet outcome. Writes are medium, failures high.
func severityFor(status SheetStatus) AuditSeverity {
	switch status {
	case StatusFailed:
		return SeverityHigh
	case StatusApplied, StatusWarning:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// auditEntries turns a finished report into one entry per sheet.
func auditEntries(report *Report, caller Caller) []AuditEntry {
	entries := make([]AuditEntry, 0, len(report.Sheets))
	for _, s := range report.Sheets {
		entries = append(entries, AuditEntry{
			ID:        uuid.New().String(),
			RunID:     report.RunID,
			Sheet:     s.Sheet,
			Table:     s.Table,
			Status:    s.Status,
			Severity:  severityFor(s.Status),
			Inserted:  s.Inserted,
			Deleted:   s.Deleted,
			Modified:  s.Modified,
			Error:     s.Error,
			BackupRef: s.BackupRef,
			IPAddress: caller.IP,
			UserAgent: caller.UserAgent,
			CreatedAt: report.FinishedAt,
		})
	}
	return entries
}
