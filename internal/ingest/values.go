package ingest

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount is the result of parsing a currency cell. Valid is false when the
// cell holds no number at all; such rows are skipped by the normalizer.
type Amount struct {
	Value float64
	Valid bool
}

// ParseAmount parses a currency string such as "$1,234.50", "(12.00)",
// "12.5%" or "1.2E-7". Currency symbols, letters, percent signs and thousands
// separators are ignored; parentheses or a trailing minus mean negative.
func ParseAmount(raw string) Amount {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Amount{}
	}

	negative := false
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(strings.TrimSuffix(s, "-"))
	}

	var b strings.Builder
	digits := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits = true
			b.WriteByte(c)
		case c == '.' || c == '-' || c == '+':
			b.WriteByte(c)
		case (c == 'e' || c == 'E') && digits && isExponentTail(s[i+1:]):
			b.WriteByte(c)
		}
	}
	if !digits {
		return Amount{}
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return Amount{}
	}
	if negative {
		d = d.Neg()
	}

	v, _ := d.Float64()
	return Amount{Value: v, Valid: true}
}

// isExponentTail reports whether rest starts like the exponent of a number.
func isExponentTail(rest string) bool {
	if rest == "" {
		return false
	}
	if rest[0] == '-' || rest[0] == '+' {
		rest = rest[1:]
	}
	return rest != "" && rest[0] >= '0' && rest[0] <= '9'
}

// Bool is a loosely parsed flag that distinguishes "not set" from false.
type Bool int8

const (
	BoolUnset Bool = iota
	BoolFalse
	BoolTrue
)

// ParseBool maps true/yes/1/on and false/no/0/off; anything else is unset.
func ParseBool(raw string) Bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "yes", "1", "on":
		return BoolTrue
	case "false", "no", "0", "off":
		return BoolFalse
	}
	return BoolUnset
}

// IsSet reports whether the flag carried a recognised value.
func (b Bool) IsSet() bool { return b != BoolUnset }

// True reports whether the flag is explicitly true.
func (b Bool) True() bool { return b == BoolTrue }

var usageDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2006-01",
}

// ParseUsageDate parses the usage timestamp formats found in billing exports
// and returns it in UTC. An ISO interval "start/end" resolves to its start.
func ParseUsageDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if t, ok := parseDateLayouts(s); ok {
		return t, true
	}

	if i := strings.Index(s, "/"); i > 0 && strings.Contains(s[:i], "-") {
		return parseDateLayouts(strings.TrimSpace(s[:i]))
	}

	return time.Time{}, false
}

func parseDateLayouts(s string) (time.Time, bool) {
	for _, layout := range usageDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// MonthKey formats t as a month bucket key (YYYY-MM).
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
