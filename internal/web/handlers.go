package web

import (
	"net/http"
	"strconv"

	"github.com/JonMunkholm/ledgersync/internal/backup"
	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/JonMunkholm/ledgersync/internal/logging"
	"github.com/JonMunkholm/ledgersync/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

const (
	defaultAuditLimit = 50
	defaultRowLimit   = 500
	maxRowLimit       = 10000
)

// SyncResponse is the body of POST /api/sync.
type SyncResponse struct {
	Report     *core.Report `json:"report"`
	Skipped    []string     `json:"skipped_sheets,omitempty"`
	ReadErrors []string     `json:"read_errors,omitempty"`
}

// TableResponse is the body of GET /api/tables/{name}.
type TableResponse struct {
	Name      string     `json:"name"`
	Columns   []string   `json:"columns"`
	TotalRows int        `json:"total_rows"`
	Rows      []core.Row `json:"rows"`
	Truncated bool       `json:"truncated,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string                `json:"status"`
	Sync    core.RunLimiterStatus `json:"sync"`
	LastRun string                `json:"last_run,omitempty"`
}

// handleSync reads the source workbooks and runs one sync cycle.
//
// Query parameters: dry_run, full_refresh (booleans).
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	dryRun, ok := boolParam(w, r, "dry_run")
	if !ok {
		return
	}
	fullRefresh, ok := boolParam(w, r, "full_refresh")
	if !ok {
		return
	}

	ctx := withCaller(r.Context(), r)
	log := logging.FromContext(ctx)

	res, err := s.sources.Load(ctx)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	readErrors := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		log.Warn("sheet not read", "source", e.Source, "sheet", e.Sheet, "error", e.Err)
		readErrors = append(readErrors, e.Error())
	}

	report, err := s.service.Run(ctx, res.Sheets, core.RunOptions{DryRun: dryRun, FullRefresh: fullRefresh})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, r, SyncResponse{Report: report, Skipped: res.Skipped, ReadErrors: readErrors})
}

// handleLastReport returns the report of the most recent run.
func (s *Server) handleLastReport(w http.ResponseWriter, r *http.Request) {
	report := s.service.LastReport()
	if report == nil {
		respondErrorJSON(w, msgNoRunYet, http.StatusNotFound)
		return
	}
	writeJSON(w, r, report)
}

// handleAuditLog returns the newest sync audit entries.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultAuditLimit)
	entries, err := s.service.AuditLog(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, entries)
}

// handleListTables lists every stored table with its row count.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.Tables(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, stats)
}

// handleTable returns the rows of one stored table, up to ?limit.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	t, err := s.service.Table(r.Context(), name)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	limit := parseIntParam(r, "limit", defaultRowLimit)
	if limit > maxRowLimit {
		limit = maxRowLimit
	}
	resp := TableResponse{
		Name:      core.SanitizeTableName(name),
		Columns:   t.Columns,
		TotalRows: t.Len(),
		Rows:      t.Rows,
	}
	if len(resp.Rows) > limit {
		resp.Rows = resp.Rows[:limit]
		resp.Truncated = true
	}
	if resp.Rows == nil {
		resp.Rows = []core.Row{}
	}
	writeJSON(w, r, resp)
}

// handleListBackups lists backup artifacts, newest first, optionally
// filtered by ?target.
func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		respondErrorJSON(w, msgBackupsDisabled, http.StatusNotFound)
		return
	}
	arts, err := s.backups.List(r.URL.Query().Get("target"))
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if arts == nil {
		arts = []backup.Artifact{}
	}
	writeJSON(w, r, arts)
}

// handleHealth reports liveness and whether a run is active.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Sync: s.service.Limiter().Status()}
	if last := s.service.LastReport(); last != nil {
		resp.LastRun = last.RunID
	}
	writeJSON(w, r, resp)
}

// handleDashboard renders the status page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view := templates.DashboardParams{
		Sync: s.service.Limiter().Status(),
		Last: s.service.LastReport(),
	}
	// Missing stats or audit entries degrade the page, they don't fail it.
	if stats, err := s.service.Tables(ctx); err == nil {
		view.Tables = stats
	} else {
		logging.FromContext(ctx).Warn("dashboard: list tables failed", "error", err)
	}
	if entries, err := s.service.AuditLog(ctx, 20); err == nil {
		view.Audit = entries
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Dashboard(view).Render(ctx, w); err != nil {
		logging.FromContext(ctx).Error("render dashboard", "error", err)
	}
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// boolParam parses an optional boolean query parameter. On a malformed
// value it writes a 400 and returns ok=false.
func boolParam(w http.ResponseWriter, r *http.Request, name string) (value, ok bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		respondErrorJSON(w, core.UserMessage{
			Message: name + " must be true or false",
			Action:  "Fix the query parameter and try again",
			Code:    "REQ004",
		}, http.StatusBadRequest)
		return false, false
	}
	return v, true
}
