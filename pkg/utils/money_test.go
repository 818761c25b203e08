package utils

import "testing"

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount float64
		want   int64
	}{
		{0, 0},
		{1.00, 100},
		{6.67, 667},
		{5.678, 568}, // round to nearest
		{100015.00, 10001500},
		{-1.00, -100},
		{0.004, 0},
		{0.005, 1},
	}

	for _, tt := range tests {
		if got := ToMinorUnits(tt.amount); got != tt.want {
			t.Errorf("ToMinorUnits(%v) = %d, want %d", tt.amount, got, tt.want)
		}
	}
}

func TestFromMinorUnits(t *testing.T) {
	if got := FromMinorUnits(667); got != 6.67 {
		t.Errorf("FromMinorUnits(667) = %v, want 6.67", got)
	}
	if got := FromMinorUnits(-100); got != -1.00 {
		t.Errorf("FromMinorUnits(-100) = %v, want -1.00", got)
	}
}

func TestFormatUSD(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{6.67, "$6.67"},
		{-1.00, "-$1.00"},
		{0, "$0.00"},
	}

	for _, tt := range tests {
		if got := FormatUSD(tt.amount); got != tt.want {
			t.Errorf("FormatUSD(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}
