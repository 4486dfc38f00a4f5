package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{in: "12.50", want: 12.5, valid: true},
		{in: "$1,234.56", want: 1234.56, valid: true},
		{in: "(45.10)", want: -45.1, valid: true},
		{in: "-3", want: -3, valid: true},
		{in: "3.00-", want: -3, valid: true},
		{in: "€ 7,5", want: 75, valid: true},
		{in: "12.5%", want: 12.5, valid: true},
		{in: "1.2E-3", want: 0.0012, valid: true},
		{in: "10 EUR", want: 10, valid: true},
		{in: "USD", valid: false},
		{in: "", valid: false},
		{in: "  ", valid: false},
		{in: "Total", valid: false},
		{in: "1.2.3", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseAmount(tt.in)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.InDelta(t, tt.want, got.Value, 1e-9)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	for _, in := range []string{"true", "YES", " 1 ", "On"} {
		assert.Equal(t, BoolTrue, ParseBool(in), in)
	}
	for _, in := range []string{"false", "No", "0", "OFF"} {
		assert.Equal(t, BoolFalse, ParseBool(in), in)
	}
	for _, in := range []string{"", "maybe", "2"} {
		b := ParseBool(in)
		assert.Equal(t, BoolUnset, b, in)
		assert.False(t, b.IsSet())
	}
	assert.True(t, BoolTrue.True())
	assert.False(t, BoolFalse.True())
}

func TestParseUsageDate(t *testing.T) {
	jan15 := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{in: "2024-01-15T00:00:00Z", want: jan15, ok: true},
		{in: "2024-01-15", want: jan15, ok: true},
		{in: "2024-01-15 00:00:00 UTC", want: jan15, ok: true},
		{in: "01/15/2024", want: jan15, ok: true},
		{in: "2024/01/15", want: jan15, ok: true},
		{in: "2024-01-15T00:00:00Z/2024-01-16T00:00:00Z", want: jan15, ok: true},
		{in: "", ok: false},
		{in: "yesterday", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseUsageDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v", got)
				assert.Equal(t, "2024-01", MonthKey(got))
			}
		})
	}
}
