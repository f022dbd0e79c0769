package extract

import (
	"errors"
	"testing"
)

func TestNormalize_ConvertsToMillimetres(t *testing.T) {
	tests := []struct {
		token string
		mm    float64
		unit  string
	}{
		{"1 m", 1000, "m"},
		{"10cm", 100, "cm"},
		{"5", 5, "mm"},
		{"900 mm", 900, "mm"},
		{"900 MM", 900, "mm"},
		{"1.5m", 1500, "m"},
		{"-2.5 cm", -25, "cm"},
		{"+40mm", 40, "mm"},
		{"1,200mm", 1200, "mm"},
		{"  750\tmm  ", 750, "mm"},
		{"5\nmm", 5, "mm"},
		{"1.2\r\nM", 1200, "m"},
		{"60\u00a0cm", 600, "cm"},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := Normalize(tt.token)
			if err != nil {
				t.Fatalf("Normalize(%q) returned error: %v", tt.token, err)
			}
			if got.MM != tt.mm {
				t.Errorf("Normalize(%q).MM = %v, want %v", tt.token, got.MM, tt.mm)
			}
			if got.Unit != tt.unit {
				t.Errorf("Normalize(%q).Unit = %q, want %q", tt.token, got.Unit, tt.unit)
			}
		})
	}
}

func TestNormalize_Linear(t *testing.T) {
	for _, v := range []string{"1", "2", "7.5", "120"} {
		mm, err := Normalize(v + " mm")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cm, _ := Normalize(v + " cm")
		m, _ := Normalize(v + " m")

		if cm.MM != mm.MM*10 {
			t.Errorf("%s cm = %v mm, want %v", v, cm.MM, mm.MM*10)
		}
		if m.MM != mm.MM*1000 {
			t.Errorf("%s m = %v mm, want %v", v, m.MM, mm.MM*1000)
		}
	}
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		token string
		want  error
	}{
		{"", ErrNoNumber},
		{"abc", ErrNoNumber},
		{"mm", ErrNoNumber},
		{"-", ErrNoNumber},
		{".5", ErrNoNumber},
		{"5 ft", ErrUnknownUnit},
		{"5 mmm", ErrUnknownUnit},
		{"5 metres", ErrUnknownUnit},
		{"5km", ErrUnknownUnit},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			_, err := Normalize(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Normalize(%q) error = %v, want %v", tt.token, err, tt.want)
			}
		})
	}
}

func TestUnitFactor(t *testing.T) {
	tests := []struct {
		unit   string
		factor float64
		ok     bool
	}{
		{"", 1, true},
		{"mm", 1, true},
		{"CM", 10, true},
		{" m ", 1000, true},
		{"ft", 1, false},
		{"metre", 1, false},
	}

	for _, tt := range tests {
		factor, ok := UnitFactor(tt.unit)
		if factor != tt.factor || ok != tt.ok {
			t.Errorf("UnitFactor(%q) = (%v, %v), want (%v, %v)", tt.unit, factor, ok, tt.factor, tt.ok)
		}
	}
}
