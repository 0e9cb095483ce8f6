package core

import (
	"sort"
	"strings"
)

// keySeparator joins key values into one map key. It cannot occur in
// trimmed spreadsheet text.
const keySeparator = "\x1f"

// ModifiedRow pairs a new row with the stored row sharing its key.
type ModifiedRow struct {
	Key    string // joined key values
	Column string // first non-key column found to differ
	Old    Row
	New    Row
}

// ChangeSet is the result of one comparison.
type ChangeSet struct {
	Keys       []string // key columns used, empty when the comparison was not possible
	Common     []string // columns shared by both snapshots, sorted
	NewColumns []string // columns of the normalized new snapshot
	Inserted   *Table
	Deleted    *Table
	Modified   []ModifiedRow
	Warning    string

	// replacements holds, per modified key, every new row carrying that
	// key in snapshot order. Applying a modification replaces all stored
	// rows of the key with this set.
	replacements map[string][]Row
	keyOrder     []string
}

// Counts returns the number of inserted, deleted and modified rows.
func (c ChangeSet) Counts() (inserted, deleted, modified int) {
	return c.Inserted.Len(), c.Deleted.Len(), len(c.Modified)
}

// Empty reports whether the comparison found no changes.
func (c ChangeSet) Empty() bool {
	i, d, m := c.Counts()
	return i == 0 && d == 0 && m == 0
}

// ModifiedTable returns the rows that replace the stored rows of every
// modified key: all new rows with that key, including ones that did not
// differ, each once.
func (c ChangeSet) ModifiedTable() *Table {
	out := NewTable(c.NewColumns...)
	for _, k := range c.keyOrder {
		out.Rows = append(out.Rows, c.replacements[k]...)
	}
	return out
}

// ModifiedKeys returns the distinct key tuples of modified rows, split
// back into values, in first-seen order.
func (c ChangeSet) ModifiedKeys() [][]string {
	seen := make(map[string]bool, len(c.Modified))
	var out [][]string
	for _, m := range c.Modified {
		if seen[m.Key] {
			continue
		}
		seen[m.Key] = true
		out = append(out, strings.Split(m.Key, keySeparator))
	}
	return out
}

// Differ computes inserted, deleted and modified rows between two
// snapshots. The zero value uses the default Normalizer and KeySelector.
type Differ struct {
	Normalizer Normalizer
	Keys       KeySelector
}

// Compare normalizes old and incoming and diffs them by composite key.
//
// When the snapshots share no columns, or no key column is shared, the
// result is empty and Warning explains why. A new row equal to one of the
// stored rows with its key is unchanged. Otherwise it is matched against
// every stored row with that key, so duplicates multiply in Modified.
func (d Differ) Compare(old, incoming *Table) ChangeSet {
	oldN := d.Normalizer.Normalize(old)
	newN := d.Normalizer.Normalize(incoming)

	cs := ChangeSet{
		NewColumns: newN.Columns,
		Inserted:   NewTable(newN.Columns...),
		Deleted:    NewTable(oldN.Columns...),
	}
	if oldN.Empty() && newN.Empty() {
		return cs
	}

	cs.Common = intersectColumns(oldN.Columns, newN.Columns)
	if len(cs.Common) == 0 {
		cs.Warning = "no common columns between stored and new data"
		return cs
	}
	cs.Keys = d.Keys.Select(cs.Common)
	if len(cs.Keys) == 0 {
		cs.Warning = ErrNoKey.Error() + ": none of the identity columns are present in both snapshots"
		return cs
	}

	compared := nonKeyColumns(cs.Common, cs.Keys)

	oldByKey := make(map[string][]int, len(oldN.Rows))
	for i, r := range oldN.Rows {
		k := rowKey(r, cs.Keys)
		oldByKey[k] = append(oldByKey[k], i)
	}
	newByKey := make(map[string][]Row, len(newN.Rows))

	for _, nr := range newN.Rows {
		k := rowKey(nr, cs.Keys)
		newByKey[k] = append(newByKey[k], nr)

		matches, ok := oldByKey[k]
		if !ok {
			cs.Inserted.Rows = append(cs.Inserted.Rows, nr)
			continue
		}
		if hasEqual(oldN.Rows, matches, nr, compared) {
			continue
		}
		if cs.replacements == nil {
			cs.replacements = make(map[string][]Row)
		}
		if _, seen := cs.replacements[k]; !seen {
			cs.replacements[k] = nil
			cs.keyOrder = append(cs.keyOrder, k)
		}
		for _, oi := range matches {
			or := oldN.Rows[oi]
			col, _ := firstDifference(or, nr, compared)
			cs.Modified = append(cs.Modified, ModifiedRow{
				Key:    k,
				Column: col,
				Old:    or,
				New:    nr,
			})
		}
	}
	for _, k := range cs.keyOrder {
		cs.replacements[k] = newByKey[k]
	}

	for _, or := range oldN.Rows {
		if _, ok := newByKey[rowKey(or, cs.Keys)]; !ok {
			cs.Deleted.Rows = append(cs.Deleted.Rows, or)
		}
	}

	return cs
}

// KeyValues returns the comparison text of each key column of r.
func KeyValues(r Row, keys []string) []string {
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = r.Text(k)
	}
	return vals
}

func rowKey(r Row, keys []string) string {
	return strings.Join(KeyValues(r, keys), keySeparator)
}

func hasEqual(rows []Row, idx []int, r Row, cols []string) bool {
	for _, i := range idx {
		if _, changed := firstDifference(rows[i], r, cols); !changed {
			return true
		}
	}
	return false
}

func firstDifference(a, b Row, cols []string) (string, bool) {
	for _, c := range cols {
		if a.Text(c) != b.Text(c) {
			return c, true
		}
	}
	return "", false
}

func intersectColumns(a, b []string) []string {
	inA := make(map[string]bool, len(a))
	for _, c := range a {
		inA[c] = true
	}
	var out []string
	for _, c := range b {
		if inA[c] {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func nonKeyColumns(common, keys []string) []string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	out := make([]string, 0, len(common))
	for _, c := range common {
		if !isKey[c] {
			out = append(out, c)
		}
	}
	return out
}
