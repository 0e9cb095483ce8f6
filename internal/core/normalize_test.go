package core

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
)

func TestNormalizeColumnName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fecha", "fecha"},
		{"  Description  ", "description"},
		{"Descripción Actividad", "descripcion_actividad"},
		{"Monto / USD", "monto_usd"},
		{"Monto/USD", "monto_usd"},
		{"Responsable\nArea", "responsable_area"},
		{"Año   Fiscal", "ano_fiscal"},
		{"already_canonical", "already_canonical"},
		{"Ñandú", "nandu"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeColumnName(tt.in); got != tt.want {
			t.Errorf("NormalizeColumnName(%q) = %q, want %q", tt.in, got, tt.want)
		}
		if again := NormalizeColumnName(NormalizeColumnName(tt.in)); again != tt.want {
			t.Errorf("NormalizeColumnName twice on %q = %q, want %q", tt.in, again, tt.want)
		}
	}
}

func TestNormalizeColumnName_Length(t *testing.T) {
	long := strings.Repeat("Descripcion ", 8)
	got := NormalizeColumnName(long)
	if len(got) != MaxColumnNameLength {
		t.Errorf("len = %d, want %d", len(got), MaxColumnNameLength)
	}
	if again := NormalizeColumnName(got); again != got {
		t.Errorf("capped name not stable: %q -> %q", got, again)
	}

	wide := NormalizeColumnName("a" + strings.Repeat("€", 30))
	if len(wide) > MaxColumnNameLength || !utf8.ValidString(wide) {
		t.Errorf("multi-byte name cut badly: len=%d valid=%v", len(wide), utf8.ValidString(wide))
	}
}

func TestNormalize_LongDuplicateColumnsStayWithinLimit(t *testing.T) {
	long := strings.Repeat("x", 80)
	out := Normalizer{}.Normalize(table([]string{long, long}))

	if len(out.Columns) != 2 || out.Columns[0] == out.Columns[1] {
		t.Fatalf("columns = %v, want two distinct names", out.Columns)
	}
	for _, c := range out.Columns {
		if len(c) > MaxColumnNameLength {
			t.Errorf("column %q is %d bytes, want at most %d", c, len(c), MaxColumnNameLength)
		}
	}
	if !strings.HasSuffix(out.Columns[1], "_2") {
		t.Errorf("second column = %q, want _2 suffix", out.Columns[1])
	}
}

func TestNormalizer_Kind(t *testing.T) {
	n := Normalizer{}
	tests := map[string]ColumnKind{
		"date":            KindDate,
		"fecha_pago":      KindDate,
		"payment_date":    KindDate,
		"amount":          KindAmount,
		"monto_usd":       KindAmount,
		"total_amount":    KindText, // prefix only
		"description":     KindText,
		"amount_due_date": KindDate, // date wins
	}
	for col, want := range tests {
		if got := n.Kind(col); got != want {
			t.Errorf("Kind(%q) = %v, want %v", col, got, want)
		}
	}

	custom := NewNormalizer([]string{"Día"}, []string{"Importe"})
	if got := custom.Kind("dia_cobro"); got != KindDate {
		t.Errorf("custom Kind(dia_cobro) = %v, want date", got)
	}
	if got := custom.Kind("importe_neto"); got != KindAmount {
		t.Errorf("custom Kind(importe_neto) = %v, want amount", got)
	}
	if got := custom.Kind("fecha"); got != KindText {
		t.Errorf("custom Kind(fecha) = %v, want text", got)
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	raw := table(
		[]string{"Fecha", "Descripción", "Monto", "Responsable"},
		[]string{"05/01/2024", "  Rent ", "1.234,56", "Ana"},
		[]string{"not a date", "", "abc", "  "},
	)

	got := Normalizer{}.Normalize(raw)

	wantCols := []string{"fecha", "descripcion", "monto", "responsable"}
	if !reflect.DeepEqual(got.Columns, wantCols) {
		t.Fatalf("Columns = %v, want %v", got.Columns, wantCols)
	}

	first := got.Rows[0]
	if first.Text("fecha") != "2024-01-05" {
		t.Errorf("fecha = %q, want 2024-01-05", first.Text("fecha"))
	}
	if first.Text("descripcion") != "Rent" {
		t.Errorf("descripcion = %q, want Rent", first.Text("descripcion"))
	}
	if first.Text("monto") != "1234.56" {
		t.Errorf("monto = %q, want 1234.56", first.Text("monto"))
	}

	second := got.Rows[1]
	for _, col := range wantCols {
		if second[col].Valid {
			t.Errorf("row 2 %s = %q, want null", col, second[col].String)
		}
	}
}

func TestNormalizer_DuplicateColumns(t *testing.T) {
	raw := table([]string{"Monto", "monto", "Monto_2", ""}, []string{"1", "2", "3", "4"})

	got := Normalizer{}.Normalize(raw)

	want := []string{"monto", "monto_2", "monto_2_2", "unnamed_4"}
	if !reflect.DeepEqual(got.Columns, want) {
		t.Fatalf("Columns = %v, want %v", got.Columns, want)
	}
	if got.Rows[0].Text("monto_2") != "2.00" {
		t.Errorf("monto_2 = %q, want 2.00", got.Rows[0].Text("monto_2"))
	}
}

func TestNormalizer_Idempotent(t *testing.T) {
	raw := table(
		[]string{"Fecha Pago", "Descripción", "Monto / CLP", "Notas", "Monto"},
		[]string{"31-12-2023", "Café", "(1.500,00)", " x ", "2,5"},
		[]string{"45296", "Luz", "$ 20", "", "1,234"},
		[]string{"", "", "", "", ""},
	)

	n := Normalizer{}
	once := n.Normalize(raw)
	twice := n.Normalize(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("normalization is not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestNormalizer_NilTable(t *testing.T) {
	got := Normalizer{}.Normalize(nil)
	if got == nil || got.Len() != 0 || len(got.Columns) != 0 {
		t.Errorf("Normalize(nil) = %+v, want empty table", got)
	}
}

func TestNormalizer_ValueNull(t *testing.T) {
	n := Normalizer{}
	for _, kind := range []ColumnKind{KindText, KindDate, KindAmount} {
		if got := n.Value(kind, pgtype.Text{}); got.Valid {
			t.Errorf("Value(%v, null) = %q, want null", kind, got.String)
		}
	}
}
