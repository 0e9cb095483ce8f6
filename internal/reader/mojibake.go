package reader

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// FixMojibake repairs UTF-8 text that was decoded as Latin-1 once, such
// as "DescripciÃ³n" for "Descripción". Text without the telltale "Ã" or
// "Â", or that does not round-trip to valid UTF-8, is returned unchanged.
func FixMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÂ") {
		return s
	}
	latin, err := charmap.ISO8859_1.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(latin) {
		return s
	}
	return latin
}
