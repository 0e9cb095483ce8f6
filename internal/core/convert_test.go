package core

import (
	"testing"
	"time"
)

// ----------------------------------------------------------------------------
// ParseDate Tests
// ----------------------------------------------------------------------------

func TestParseDate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"iso", "2024-01-05", "2024-01-05", true},
		{"iso datetime", "2024-01-05 13:45:00", "2024-01-05", true},
		{"iso with T", "2024-01-05T13:45:00Z", "2024-01-05", true},
		{"day first slash", "05/01/2024", "2024-01-05", true},
		{"day first single digits", "5/1/2024", "2024-01-05", true},
		{"day first dash", "31-12-2023", "2023-12-31", true},
		{"day first dots", "31.12.2023", "2023-12-31", true},
		{"month first when day first impossible", "01/25/2024", "2024-01-25", true},
		{"day first with time", "05/01/2024 00:00:00", "2024-01-05", true},
		{"month name", "5-Jan-2024", "2024-01-05", true},
		{"english long", "January 5, 2024", "2024-01-05", true},
		{"compact", "20240105", "2024-01-05", true},
		{"two digit year", "05/01/24", "2024-01-05", true},
		{"excel serial", "45296", "2024-01-05", true},
		{"excel serial float", "45296.75", "2024-01-05", true},
		{"formula wrapped", `="2024-01-05"`, "2024-01-05", true},
		{"surrounding spaces", "  2024-01-05  ", "2024-01-05", true},
		{"empty", "", "", false},
		{"whitespace", "   ", "", false},
		{"text", "pending", "", false},
		{"small integer is not a serial", "100", "", false},
		{"invalid day", "2024-02-30", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got.Format(DateLayout) != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got.Format(DateLayout), tt.want)
			}
		})
	}
}

func TestParseDate_TwoDigitYearPivot(t *testing.T) {
	// A two-digit year far in the future belongs to the previous century.
	future := (time.Now().Year() + TwoDigitYearPivot + 5) % 100
	input := "01/01/" + twoDigits(future)

	got, ok := ParseDate(input)
	if !ok {
		t.Fatalf("ParseDate(%q) failed", input)
	}
	if got.Year() > time.Now().Year()+TwoDigitYearPivot {
		t.Errorf("ParseDate(%q) year = %d, want previous century", input, got.Year())
	}
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}

// ----------------------------------------------------------------------------
// ParseAmount Tests
// ----------------------------------------------------------------------------

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		// Both decimal conventions
		{"comma decimal with dot thousands", "1.234,56", "1234.56", true},
		{"dot decimal with comma thousands", "1,234.56", "1234.56", true},
		{"millions comma decimal", "1.234.567,89", "1234567.89", true},
		{"millions dot decimal", "1,234,567.89", "1234567.89", true},

		// Lone separators
		{"lone comma decimal", "12,5", "12.50", true},
		{"lone comma two decimals", "12,50", "12.50", true},
		{"lone comma thousands", "1,234", "1234.00", true},
		{"lone dot decimal", "1.5", "1.50", true},
		{"repeated dots are thousands", "1.234.567", "1234567.00", true},
		{"repeated commas are thousands", "1,234,567", "1234567.00", true},

		// Symbols and signs
		{"dollar", "$1,234.56", "1234.56", true},
		{"euro suffix", "1.234,56 €", "1234.56", true},
		{"currency code", "USD 99.90", "99.90", true},
		{"negative", "-45.10", "-45.10", true},
		{"accounting negative", "(1,234.56)", "-1234.56", true},
		{"trailing minus", "45.10-", "-45.10", true},

		// Rounding
		{"rounds half up", "10.005", "10.01", true},
		{"integer", "100", "100.00", true},
		{"zero", "0", "0.00", true},

		// Invalid
		{"empty", "", "", false},
		{"dash only", "-", "", false},
		{"text", "n/a", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && FormatAmount(got) != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, FormatAmount(got), tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Text helpers
// ----------------------------------------------------------------------------

func TestToPgText(t *testing.T) {
	tests := []struct {
		input     string
		wantValid bool
		want      string
	}{
		{"hello", true, "hello"},
		{"  padded  ", true, "padded"},
		{"", false, ""},
		{"   ", false, ""},
		{"\t\n", false, ""},
	}

	for _, tt := range tests {
		got := ToPgText(tt.input)
		if got.Valid != tt.wantValid || got.String != tt.want {
			t.Errorf("ToPgText(%q) = {%q, %v}, want {%q, %v}", tt.input, got.String, got.Valid, tt.want, tt.wantValid)
		}
	}
}

func TestCleanCell(t *testing.T) {
	tests := map[string]string{
		`="00123"`:         "00123",
		"=SUM":             "SUM",
		`"quoted"`:         "quoted",
		"'single'":         "single",
		"\u00a0nbsp\u00a0": "nbsp",
		"  plain  ":        "plain",
	}
	for in, want := range tests {
		if got := CleanCell(in); got != want {
			t.Errorf("CleanCell(%q) = %q, want %q", in, got, want)
		}
	}
}
