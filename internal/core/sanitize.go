package core

import (
	"sort"
	"strings"
)

// MaxTableNameLength bounds sanitized table names.
const MaxTableNameLength = 50

// UnnamedTable is used when a sheet name sanitizes to nothing.
const UnnamedTable = "unnamed_table"

// Tables owned by ledgersync itself. They are never synced from sheets.
var internalTables = []string{"sync_audit", "goose_db_version"}

// SanitizeTableName derives a storage-safe table name from a sheet name:
// lower-case ASCII letters, digits and underscores, at most
// MaxTableNameLength bytes, never empty.
func SanitizeTableName(name string) string {
	s := strings.ToLower(StripAccents(strings.TrimSpace(name)))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '.', r == '/':
			b.WriteByte('_')
		}
	}

	out := b.String()
	if len(out) > MaxTableNameLength {
		out = out[:MaxTableNameLength]
	}
	if out == "" {
		return UnnamedTable
	}
	return out
}

// IsInternalTable reports whether name belongs to ledgersync's own schema.
func IsInternalTable(name string) bool {
	for _, t := range internalTables {
		if name == t {
			return true
		}
	}
	return false
}

// DenyList holds table names that are never compared or synced.
type DenyList struct {
	names map[string]bool
}

// NewDenyList sanitizes names and adds the internal tables.
func NewDenyList(names ...string) DenyList {
	d := DenyList{names: make(map[string]bool, len(names)+len(internalTables))}
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		d.names[SanitizeTableName(n)] = true
	}
	for _, t := range internalTables {
		d.names[t] = true
	}
	return d
}

// Denied reports whether a sanitized table name is excluded. A name
// matches an entry exactly or by ending in "_<entry>", so a sheet read
// as "budget_fe" is excluded by the entry "fe".
func (d DenyList) Denied(table string) bool {
	if d.names == nil {
		return IsInternalTable(table)
	}
	if d.names[table] {
		return true
	}
	for n := range d.names {
		if strings.HasSuffix(table, "_"+n) {
			return true
		}
	}
	return false
}

// Names returns the configured entries, sorted.
func (d DenyList) Names() []string {
	out := make([]string, 0, len(d.names))
	for n := range d.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
