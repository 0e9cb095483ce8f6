package core

// convert.go parses the messy cell values found in hand-maintained ledgers.
//
// These functions handle:
//   - Multiple date formats (ISO, day-first, month-first, two-digit years)
//   - Excel serial day numbers exported instead of dates
//   - Currency symbols, accounting negatives and both decimal conventions
//     ("1.234,56" and "1,234.56")
//   - Excel formula prefixes (="value")
//
// Parse failures never raise: callers receive ok=false and store null.

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// DateLayout is the canonical output layout for dates.
const DateLayout = "2006-01-02"

var isoPrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// Date layouts are tried in order. Day-first comes before month-first, so
// 05/01/2024 is the 5th of January; 01/25/2024 only parses month-first.
var (
	fourDigitYearLayouts = []string{
		"2/1/2006", "2-1-2006", "2.1.2006",
		"2006/1/2", "2006.1.2",
		"2-Jan-2006", "2 Jan 2006", "2 January 2006",
		"Jan 2, 2006", "January 2, 2006", "Jan-2-2006",
		"20060102",
		"1/2/2006", "1-2-2006",
	}
	twoDigitYearLayouts = []string{
		"2/1/06", "2-1-06", "2.1.06", "2-Jan-06",
		"1/2/06", "1-2-06",
	}
)

// Excel stores dates as days since 1899-12-30. Only serials in this range
// are accepted so that ordinary integers are not mistaken for dates.
var (
	excelEpoch     = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	minExcelSerial = 20000.0 // 1954-10-03
	maxExcelSerial = 80000.0 // 2119-01-10
)

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ParseDate parses a ledger date cell.
func ParseDate(s string) (time.Time, bool) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, false
	}

	// ISO dates and datetimes ("2024-01-05", "2024-01-05 00:00:00", "2024-01-05T10:00:00Z")
	if isoPrefix.MatchString(s) {
		if t, err := time.Parse(DateLayout, s[:10]); err == nil {
			return t, true
		}
	}

	if t, ok := parseDateLayouts(s); ok {
		return t, true
	}

	// "05/01/2024 00:00:00"
	if i := strings.IndexByte(s, ' '); i > 0 {
		if t, ok := parseDateLayouts(s[:i]); ok {
			return t, true
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= minExcelSerial && f <= maxExcelSerial {
		return excelEpoch.AddDate(0, 0, int(f)), true
	}

	return time.Time{}, false
}

func parseDateLayouts(s string) (time.Time, bool) {
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// ParseAmount parses a monetary cell and rounds it to 2 decimal places.
//
// Accounting negatives "(123.45)" and trailing minus "123.45-" are
// negative. When both ',' and '.' occur, the one appearing last is the
// decimal separator. A lone ',' followed by exactly three digits is a
// thousands separator, otherwise it is the decimal separator. Repeated
// separators of the same kind are thousands separators.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = CleanCell(s)
	if s == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	sawDigit := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sawDigit = true
			b.WriteRune(r)
		case r == ',' || r == '.':
			b.WriteRune(r)
		case r == '-':
			negative = !negative
		}
	}
	if !sawDigit {
		return decimal.Zero, false
	}

	num := normalizeSeparators(b.String())
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d.Round(2), true
}

// normalizeSeparators rewrites digits with ',' and '.' into a plain
// decimal string with '.' as the only separator.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndexByte(s, ',')
	lastDot := strings.LastIndexByte(s, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")

	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		if len(s)-lastComma-1 == 3 && lastComma > 0 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)

	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// FormatAmount renders an amount with exactly two decimals.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace, including non-breaking spaces
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\u00a0", " "))

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
