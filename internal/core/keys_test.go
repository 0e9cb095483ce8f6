package core

import (
	"reflect"
	"testing"
)

func TestKeySelector_Select(t *testing.T) {
	tests := []struct {
		name   string
		common []string
		want   []string
	}{
		{
			name:   "all preferred present",
			common: []string{"amount", "date", "description", "notes", "responsible"},
			want:   []string{"date", "description", "amount", "responsible"},
		},
		{
			name:   "missing responsible uses three columns",
			common: []string{"amount", "date", "description", "notes"},
			want:   []string{"date", "description", "amount"},
		},
		{
			name:   "fewer than three preferred falls back",
			common: []string{"date", "responsible", "notes"},
			want:   []string{"date"},
		},
		{
			name:   "only responsible present",
			common: []string{"responsible"},
			want:   []string{},
		},
		{
			name:   "nothing present",
			common: []string{"notes", "category"},
			want:   []string{},
		},
	}

	var k KeySelector
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := k.Select(tt.common)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Select(%v) = %v, want %v", tt.common, got, tt.want)
			}
		})
	}
}

func TestKeySelector_FallbackNotDefault(t *testing.T) {
	// Missing "responsible" must give the 3-column key, not the 4-column one.
	got := KeySelector{}.Select([]string{"date", "description", "amount"})
	if !reflect.DeepEqual(got, FallbackKeyColumns) {
		t.Errorf("Select() = %v, want %v", got, FallbackKeyColumns)
	}
}

func TestNewKeySelector_Canonicalizes(t *testing.T) {
	k := NewKeySelector(
		[]string{"Fecha", "Descripción Actividad", "Responsable"},
		[]string{"Fecha", "Descripción Actividad"},
	)
	got := k.Select([]string{"descripcion_actividad", "fecha", "responsable"})
	want := []string{"fecha", "descripcion_actividad", "responsable"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Select() = %v, want %v", got, want)
	}

	got = k.Select([]string{"descripcion_actividad", "fecha"})
	want = []string{"fecha", "descripcion_actividad"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fallback Select() = %v, want %v", got, want)
	}
}
