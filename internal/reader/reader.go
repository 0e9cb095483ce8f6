// Package reader loads ledger workbooks (.xlsx and .csv) into raw
// core.Tables, one per sheet.
//
// Sheets are keyed "<file stem>_<sheet name>". The header row is the first
// row with at least Options.HeaderMinCells non-empty cells; trailing
// columns with no data near the header are dropped. Cells that are blank
// or a lone "-" become null, and text double-encoded through Latin-1
// ("DescripciÃ³n") is repaired. Values are otherwise left raw; typing is
// the normalizer's job.
package reader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JonMunkholm/ledgersync/internal/core"
	"github.com/JonMunkholm/ledgersync/internal/logging"
)

// ErrNoHeader is returned for a sheet with no non-empty row.
var ErrNoHeader = errors.New("no header row")

// DefaultHeaderMinCells is the number of non-empty cells a row needs to be
// taken as the header.
const DefaultHeaderMinCells = 3

// headerScanRows is how many rows, starting at the header, are inspected
// to decide which trailing columns carry data.
const headerScanRows = 10

// Options configures a Reader.
type Options struct {
	// SkipSheets lists sheet names that are never read. Matching ignores
	// case and surrounding space.
	SkipSheets []string

	// HeaderMinCells defaults to DefaultHeaderMinCells.
	HeaderMinCells int
}

// SheetError records a sheet or file that could not be read.
type SheetError struct {
	Source string
	Sheet  string // empty when the whole file failed
	Err    error
}

func (e SheetError) Error() string {
	if e.Sheet == "" {
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s[%s]: %v", e.Source, e.Sheet, e.Err)
}

func (e SheetError) Unwrap() error { return e.Err }

// Result holds everything read from a set of workbooks.
type Result struct {
	Sheets  map[string]*core.Table
	Skipped []string // sheet IDs excluded by SkipSheets
	Errors  []SheetError
}

// Names returns the sheet IDs in sorted order.
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.Sheets))
	for n := range r.Sheets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Reader reads workbooks.
type Reader struct {
	skip     map[string]bool
	minCells int
}

// New creates a Reader.
func New(opts Options) *Reader {
	r := &Reader{skip: make(map[string]bool, len(opts.SkipSheets)), minCells: opts.HeaderMinCells}
	if r.minCells <= 0 {
		r.minCells = DefaultHeaderMinCells
	}
	for _, s := range opts.SkipSheets {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			r.skip[s] = true
		}
	}
	return r
}

// ReadAll reads every file. A file or sheet that fails is recorded in
// Result.Errors and the rest are still read; only context cancellation
// aborts.
func (r *Reader) ReadAll(ctx context.Context, paths []string) (*Result, error) {
	log := logging.FromContext(ctx)
	res := &Result{Sheets: make(map[string]*core.Table)}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		source := SourceID(path)
		log.Info("reading source file", "file", filepath.Base(path))

		sheets, err := r.readFile(ctx, path)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			log.Warn("failed to read source file", "file", path, "error", err)
			res.Errors = append(res.Errors, SheetError{Source: source, Err: err})
			continue
		}

		valid, skipped := 0, 0
		for _, s := range sheets {
			id := source + "_" + s.name
			switch {
			case r.skipped(s.name):
				res.Skipped = append(res.Skipped, id)
				skipped++
			case s.err != nil:
				log.Warn("failed to read sheet", "file", filepath.Base(path), "sheet", s.name, "error", s.err)
				res.Errors = append(res.Errors, SheetError{Source: source, Sheet: s.name, Err: s.err})
			default:
				res.Sheets[id] = s.table
				valid++
				log.Debug("sheet loaded", "sheet", id, "rows", s.table.Len(), "columns", len(s.table.Columns))
			}
		}
		log.Info("source file read", "file", filepath.Base(path), "sheets", valid, "skipped", skipped)
	}
	return res, nil
}

func (r *Reader) skipped(sheet string) bool {
	return r.skip[strings.ToLower(strings.TrimSpace(sheet))]
}

type sheet struct {
	name  string
	table *core.Table
	err   error
}

func (r *Reader) readFile(ctx context.Context, path string) ([]sheet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return r.readWorkbook(ctx, path)
	case ".csv":
		t, err := r.readCSV(path)
		if err != nil {
			return nil, err
		}
		return []sheet{{name: CSVSheetName, table: t}}, nil
	default:
		return nil, fmt.Errorf("unsupported source file %q: expected .xlsx or .csv", filepath.Base(path))
	}
}

// SourceID returns the identifier used as the sheet ID prefix for path.
func SourceID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// buildTable turns raw grid rows into a table: header detection, column
// trimming, null markers and mojibake repair.
func (r *Reader) buildTable(grid [][]string) (*core.Table, error) {
	header := -1
	for i, row := range grid {
		if nonEmpty(row) >= r.minCells {
			header = i
			break
		}
	}
	if header < 0 {
		for i, row := range grid {
			if nonEmpty(row) > 0 {
				header = i
				break
			}
		}
	}
	if header < 0 {
		return nil, ErrNoHeader
	}

	width := 0
	for i := header; i < len(grid) && i < header+headerScanRows; i++ {
		for j, cell := range grid[i] {
			if strings.TrimSpace(cell) != "" && j+1 > width {
				width = j + 1
			}
		}
	}

	cols := make([]string, width)
	for j := range cols {
		cols[j] = strings.TrimSpace(FixMojibake(cell(grid[header], j)))
	}

	t := core.NewTable(cols...)
	values := make([]string, width)
	for _, row := range grid[header+1:] {
		if nonEmpty(row) == 0 {
			continue
		}
		for j := range values {
			values[j] = cleanValue(cell(row, j))
		}
		t.AddRow(values...)
	}
	return t, nil
}

func cell(row []string, j int) string {
	if j < len(row) {
		return row[j]
	}
	return ""
}

func nonEmpty(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

// cleanValue maps the null markers to "" and repairs mojibake.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "-" {
		return ""
	}
	return FixMojibake(s)
}

// Files binds a Reader to a fixed list of workbooks, for callers that
// re-read the same sources on every run.
type Files struct {
	Reader *Reader
	Paths  []string
}

// Load reads every configured workbook.
func (f Files) Load(ctx context.Context) (*Result, error) {
	return f.Reader.ReadAll(ctx, f.Paths)
}
