package core

import (
	"regexp"
	"strings"
	"testing"
)

var sanitizedPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

func TestSanitizeTableName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ledger 2024", "ledger_2024"},
		{"ledger_1_Gastos Comunes", "ledger_1_gastos_comunes"},
		{"Presupuesto-Año.v2", "presupuesto_ano_v2"},
		{"Caja/Banco", "caja_banco"},
		{"  Réunion!!  ", "reunion"},
		{"¿?¡!", UnnamedTable},
		{"", UnnamedTable},
		{"日本語", UnnamedTable},
		{strings.Repeat("x", 80), strings.Repeat("x", MaxTableNameLength)},
	}
	for _, tt := range tests {
		if got := SanitizeTableName(tt.in); got != tt.want {
			t.Errorf("SanitizeTableName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeTableName_Stable(t *testing.T) {
	inputs := []string{
		"Ledger 2024", "Ñoño / Éxito", "  ", "a.b-c d/e", "UPPER",
		strings.Repeat("Ábc ", 30), "tabla\tcon\ttabs", "x__y",
	}
	for _, in := range inputs {
		once := SanitizeTableName(in)
		twice := SanitizeTableName(once)
		if once != twice {
			t.Errorf("SanitizeTableName not idempotent for %q: %q then %q", in, once, twice)
		}
		if !sanitizedPattern.MatchString(once) {
			t.Errorf("SanitizeTableName(%q) = %q has invalid characters", in, once)
		}
		if len(once) > MaxTableNameLength {
			t.Errorf("SanitizeTableName(%q) length %d > %d", in, len(once), MaxTableNameLength)
		}
	}
}

func TestDenyList(t *testing.T) {
	d := NewDenyList("Reporte_Bancos", "FE", " ")

	tests := map[string]bool{
		"reporte_bancos":          true,
		"fe":                      true,
		"ledger_1_fe":             true, // workbook-prefixed sheet
		"ledger_1_reporte_bancos": true,
		"cafe":                    false,
		"fecha":                   false,
		"ledger_1_gastos":         false,
		"sync_audit":              true,
		"goose_db_version":        true,
	}
	for table, want := range tests {
		if got := d.Denied(table); got != want {
			t.Errorf("Denied(%q) = %v, want %v", table, got, want)
		}
	}
}

func TestDenyList_ZeroValueDeniesInternal(t *testing.T) {
	var d DenyList
	if !d.Denied("sync_audit") {
		t.Error("zero DenyList should deny sync_audit")
	}
	if d.Denied("ledger") {
		t.Error("zero DenyList should allow ledger")
	}
}
