package buckets

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dvloznov/cost-dashboard/internal/domain"
)

// PeriodKind selects how buckets are combined for a query.
type PeriodKind int

const (
	PeriodAll PeriodKind = iota
	PeriodYear
	PeriodMonth
)

// PeriodAllKey is the query value that merges every bucket.
const PeriodAllKey = "all"

var (
	yearPattern  = regexp.MustCompile(`^\d{4}$`)
	monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

// Period is a parsed query period.
type Period struct {
	Kind  PeriodKind
	Value string
}

// ParsePeriod accepts "all" (or empty), "year:YYYY", "YYYY-MM" and "unknown".
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, PeriodAllKey):
		return Period{Kind: PeriodAll, Value: PeriodAllKey}, nil
	case strings.HasPrefix(strings.ToLower(s), "year:"):
		year := strings.TrimSpace(s[len("year:"):])
		if !yearPattern.MatchString(year) {
			return Period{}, fmt.Errorf("invalid year period %q", s)
		}
		return Period{Kind: PeriodYear, Value: year}, nil
	case monthPattern.MatchString(s) || s == domain.UnknownMonth:
		return Period{Kind: PeriodMonth, Value: s}, nil
	}
	return Period{}, fmt.Errorf("invalid period %q", s)
}

func (p Period) String() string {
	if p.Kind == PeriodYear {
		return "year:" + p.Value
	}
	return p.Value
}
