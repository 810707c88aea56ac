package types

import (
	"encoding/json"
	"testing"
)

func TestQuantityRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		value  float64
		scaled int64
		str    string
	}{
		{"whole units", 10, 100_000, "10.0000"},
		{"half tablet", 0.5, 5_000, "0.5000"},
		{"fractional ml", 2.1234, 21_234, "2.1234"},
		{"negative issue", -3.25, -32_500, "-3.2500"},
		{"zero", 0, 0, "0.0000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQuantityFromFloat64(tt.value)
			if q.Int64Scaled() != tt.scaled {
				t.Errorf("scaled = %d, want %d", q.Int64Scaled(), tt.scaled)
			}
			if q.String() != tt.str {
				t.Errorf("String() = %q, want %q", q.String(), tt.str)
			}
			if q.Float64() != tt.value {
				t.Errorf("Float64() = %v, want %v", q.Float64(), tt.value)
			}
		})
	}
}

func TestQuantityJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Quantity
	}{
		{"number", `2.5`, 25_000},
		{"string", `"2.5"`, 25_000},
		{"integer", `7`, 70_000},
		{"null", `null`, 0},
		{"negative", `-1.0001`, -10_001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quantity
			if err := json.Unmarshal([]byte(tt.in), &q); err != nil {
				t.Fatalf("Unmarshal(%s) failed: %v", tt.in, err)
			}
			if q != tt.want {
				t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, q, tt.want)
			}
		})
	}

	out, err := json.Marshal(NewQuantityFromFloat64(2.5))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != "2.5000" {
		t.Errorf("Marshal = %s, want 2.5000", out)
	}
}

func TestQuantityArithmeticHelpers(t *testing.T) {
	q := NewQuantityFromFloat64(-4.5)
	if !q.IsNegative() || q.IsPositive() || q.IsZero() {
		t.Error("sign predicates disagree for -4.5")
	}
	if q.Abs() != NewQuantityFromFloat64(4.5) {
		t.Errorf("Abs() = %s, want 4.5000", q.Abs())
	}
	if q.Neg() != NewQuantityFromFloat64(4.5) {
		t.Errorf("Neg() = %s, want 4.5000", q.Neg())
	}
	if got := q.Decimal().String(); got != "-4.5" {
		t.Errorf("Decimal() = %s, want -4.5", got)
	}
}
