package core

// Default identity columns used to match rows across snapshots.
var (
	DefaultKeyColumns  = []string{"date", "description", "amount", "responsible"}
	FallbackKeyColumns = []string{"date", "description", "amount"}
)

// MinPreferredKeyColumns is how many preferred columns must be present
// before the preferred list is used instead of the fallback.
const MinPreferredKeyColumns = 3

// KeySelector picks the composite key for one comparison.
// The zero value uses DefaultKeyColumns and FallbackKeyColumns.
type KeySelector struct {
	Preferred []string
	Fallback  []string
}

// NewKeySelector canonicalizes the configured column names.
func NewKeySelector(preferred, fallback []string) KeySelector {
	return KeySelector{
		Preferred: canonicalList(preferred),
		Fallback:  canonicalList(fallback),
	}
}

func canonicalList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		if c = NormalizeColumnName(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Select returns the key columns for a comparison over common. The
// preferred columns that are present are used when at least
// MinPreferredKeyColumns of them are; otherwise the present fallback
// columns are. An empty result means the snapshots cannot be compared.
func (k KeySelector) Select(common []string) []string {
	preferred, fallback := k.Preferred, k.Fallback
	if preferred == nil && fallback == nil {
		preferred, fallback = DefaultKeyColumns, FallbackKeyColumns
	}

	present := make(map[string]bool, len(common))
	for _, c := range common {
		present[c] = true
	}

	keys := filterPresent(preferred, present)
	if len(keys) >= MinPreferredKeyColumns || len(keys) == len(preferred) && len(keys) > 0 {
		return keys
	}
	return filterPresent(fallback, present)
}

func filterPresent(cols []string, present map[string]bool) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}
