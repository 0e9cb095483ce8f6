package core

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Default column classification markers. Spanish names are kept because
// most ledgers in use were built with Spanish headers.
var (
	DefaultDateMarkers    = []string{"date", "fecha"}
	DefaultAmountPrefixes = []string{"amount", "monto"}
)

// ColumnKind classifies a canonical column for value coercion.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindDate
	KindAmount
)

func (k ColumnKind) String() string {
	switch k {
	case KindDate:
		return "date"
	case KindAmount:
		return "amount"
	default:
		return "text"
	}
}

// StripAccents removes combining marks after canonical decomposition,
// turning "Descripción" into "Descripcion".
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// MaxColumnNameLength bounds canonical column names. Postgres truncates
// identifiers longer than this.
const MaxColumnNameLength = 63

// NormalizeColumnName canonicalizes a header: trimmed, accents removed,
// lower-cased, every run of whitespace or slashes collapsed to one
// underscore, and cut to MaxColumnNameLength bytes.
func NormalizeColumnName(name string) string {
	s := strings.ToLower(StripAccents(strings.TrimSpace(name)))

	var b strings.Builder
	b.Grow(len(s))
	pending := false
	for _, r := range s {
		if unicode.IsSpace(r) || r == '/' {
			pending = b.Len() > 0
			continue
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(r)
	}
	return truncateName(b.String(), MaxColumnNameLength)
}

// truncateName cuts s to at most max bytes without splitting a rune.
func truncateName(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Normalizer turns raw snapshots into canonical, directly comparable ones.
// The zero value uses DefaultDateMarkers and DefaultAmountPrefixes.
type Normalizer struct {
	DateMarkers    []string
	AmountPrefixes []string
}

// NewNormalizer builds a Normalizer, canonicalizing the markers the same
// way column names are.
func NewNormalizer(dateMarkers, amountPrefixes []string) Normalizer {
	n := Normalizer{}
	for _, m := range dateMarkers {
		if m = NormalizeColumnName(m); m != "" {
			n.DateMarkers = append(n.DateMarkers, m)
		}
	}
	for _, p := range amountPrefixes {
		if p = NormalizeColumnName(p); p != "" {
			n.AmountPrefixes = append(n.AmountPrefixes, p)
		}
	}
	return n
}

func (n Normalizer) dateMarkers() []string {
	if n.DateMarkers == nil {
		return DefaultDateMarkers
	}
	return n.DateMarkers
}

func (n Normalizer) amountPrefixes() []string {
	if n.AmountPrefixes == nil {
		return DefaultAmountPrefixes
	}
	return n.AmountPrefixes
}

// Kind classifies a canonical column name. Date markers are checked first.
func (n Normalizer) Kind(col string) ColumnKind {
	for _, m := range n.dateMarkers() {
		if strings.Contains(col, m) {
			return KindDate
		}
	}
	for _, p := range n.amountPrefixes() {
		if strings.HasPrefix(col, p) {
			return KindAmount
		}
	}
	return KindText
}

// Value coerces one cell according to kind. Unparseable dates and amounts
// become null.
func (n Normalizer) Value(kind ColumnKind, v pgtype.Text) pgtype.Text {
	if !v.Valid {
		return pgtype.Text{}
	}
	switch kind {
	case KindDate:
		t, ok := ParseDate(v.String)
		if !ok {
			return pgtype.Text{}
		}
		return pgtype.Text{String: t.Format(DateLayout), Valid: true}
	case KindAmount:
		d, ok := ParseAmount(v.String)
		if !ok {
			return pgtype.Text{}
		}
		return pgtype.Text{String: FormatAmount(d), Valid: true}
	default:
		return ToPgText(v.String)
	}
}

// Normalize returns a canonical copy of t. Columns whose canonical names
// collide get "_2", "_3", ... suffixes in order of appearance. A nil table
// normalizes to an empty one.
func (n Normalizer) Normalize(t *Table) *Table {
	if t == nil {
		return &Table{}
	}

	cols := canonicalColumns(t.Columns)
	kinds := make([]ColumnKind, len(cols))
	for i, c := range cols {
		kinds[i] = n.Kind(c)
	}

	out := &Table{Columns: cols, Rows: make([]Row, 0, len(t.Rows))}
	for _, raw := range t.Rows {
		row := make(Row, len(cols))
		for i, src := range t.Columns {
			row[cols[i]] = n.Value(kinds[i], raw[src])
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func canonicalColumns(raw []string) []string {
	cols := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, r := range raw {
		name := NormalizeColumnName(r)
		if name == "" {
			name = "unnamed_" + strconv.Itoa(i+1)
		}
		if seen[name] {
			base := name
			for k := 2; seen[name]; k++ {
				suffix := "_" + strconv.Itoa(k)
				name = truncateName(base, MaxColumnNameLength-len(suffix)) + suffix
			}
		}
		seen[name] = true
		cols[i] = name
	}
	return cols
}
