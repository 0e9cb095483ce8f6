package core

import "time"

// SheetStatus is the outcome of one sheet in a sync run.
type SheetStatus string

const (
	StatusApplied   SheetStatus = "applied"
	StatusUnchanged SheetStatus = "unchanged"
	StatusSkipped   SheetStatus = "skipped"
	StatusDryRun    SheetStatus = "dry_run"
	StatusWarning   SheetStatus = "warning"
	StatusFailed    SheetStatus = "failed"
)

// SheetResult is the user-visible outcome of one sheet.
type SheetResult struct {
	Sheet    string      `json:"sheet" yaml:"sheet"`
	Table    string      `json:"table" yaml:"table"`
	Status   SheetStatus `json:"status" yaml:"status"`
	Keys     []string    `json:"keys,omitempty" yaml:"keys,omitempty"`
	NewTable bool        `json:"new_table,omitempty" yaml:"new_table,omitempty"`
	Inserted int         `json:"inserted" yaml:"inserted"`
	Deleted  int         `json:"deleted" yaml:"deleted"`
	Modified int         `json:"modified" yaml:"modified"`

	// RowsReplaced counts stored rows removed to make way for modified rows.
	RowsReplaced int64 `json:"rows_replaced,omitempty" yaml:"rows_replaced,omitempty"`

	BackupRef string `json:"backup_ref,omitempty" yaml:"backup_ref,omitempty"`
	Warning   string `json:"warning,omitempty" yaml:"warning,omitempty"`
	Error     string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the structured summary of a sync run. One is produced for
// every run that got past input validation, even when sheets fail.
type Report struct {
	RunID       string        `json:"run_id" yaml:"run_id"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time     `json:"finished_at" yaml:"finished_at"`
	DryRun      bool          `json:"dry_run" yaml:"dry_run"`
	FullRefresh bool          `json:"full_refresh,omitempty" yaml:"full_refresh,omitempty"`
	StoreBackup string        `json:"store_backup,omitempty" yaml:"store_backup,omitempty"`
	Purged      int           `json:"purged_backups,omitempty" yaml:"purged_backups,omitempty"`
	Sheets      []SheetResult `json:"sheets" yaml:"sheets"`
}

// Sheet returns the result for a sheet, or nil.
func (r *Report) Sheet(name string) *SheetResult {
	for i := range r.Sheets {
		if r.Sheets[i].Sheet == name {
			return &r.Sheets[i]
		}
	}
	return nil
}

// Totals sums row counts over all sheets.
func (r *Report) Totals() (inserted, deleted, modified int) {
	for _, s := range r.Sheets {
		inserted += s.Inserted
		deleted += s.Deleted
		modified += s.Modified
	}
	return inserted, deleted, modified
}

// Failed returns how many sheets failed.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Sheets {
		if s.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// resultFor builds the result of a sheet that is not (or not yet) applied.
func resultFor(sc *SheetChanges, dryRun bool) SheetResult {
	res := SheetResult{
		Sheet:    sc.Sheet,
		Table:    sc.Table,
		Keys:     sc.Changes.Keys,
		NewTable: sc.NewTable,
	}
	res.Inserted, res.Deleted, res.Modified = sc.Changes.Counts()

	switch {
	case sc.Skipped:
		res.Status = StatusSkipped
	case sc.Err != nil:
		res.Status = StatusFailed
		res.Error = sc.Err.Error()
	case sc.Changes.Warning != "":
		res.Status = StatusWarning
		res.Warning = sc.Changes.Warning
	case !sc.HasWork():
		res.Status = StatusUnchanged
	case dryRun:
		res.Status = StatusDryRun
	default:
		res.Status = StatusUnchanged
	}
	return res
}
