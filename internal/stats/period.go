package stats

import (
	"fmt"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
)

// Period is the aggregation window of a report.
type Period int

const (
	PeriodYear Period = iota
	PeriodWeek
	PeriodMonth
	PeriodAll
)

func (p Period) String() string {
	switch p {
	case PeriodWeek:
		return "week"
	case PeriodMonth:
		return "month"
	case PeriodAll:
		return "all"
	default:
		return "year"
	}
}

// ParsePeriod accepts week, month, year and all. Empty means year.
func ParsePeriod(s string) (Period, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "year":
		return PeriodYear, nil
	case "week":
		return PeriodWeek, nil
	case "month":
		return PeriodMonth, nil
	case "all":
		return PeriodAll, nil
	default:
		return PeriodYear, fmt.Errorf("unknown period %q", s)
	}
}

// Window returns the query bounds ending at now. PeriodAll returns zero
// times, which the store reads as unbounded.
func (p Period) Window(now time.Time) (from, to time.Time) {
	switch p {
	case PeriodWeek:
		return now.AddDate(0, 0, -7), now
	case PeriodMonth:
		return now.AddDate(0, -1, 0), now
	case PeriodAll:
		return time.Time{}, time.Time{}
	default:
		return now.AddDate(-1, 0, 0), now
	}
}

// MinSimilarity is the Jaro-Winkler score a fuzzy name match needs.
const MinSimilarity = 0.85

// LookupName resolves a user-typed name against known names: an exact
// case-insensitive match wins, then a unique substring match, then the most
// similar name scoring at least MinSimilarity.
func LookupName(query string, names []string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", false
	}

	var partial []string
	for _, n := range names {
		l := strings.ToLower(n)
		if l == q {
			return n, true
		}
		if strings.Contains(l, q) {
			partial = append(partial, n)
		}
	}
	if len(partial) == 1 {
		return partial[0], true
	}

	best, bestScore := "", 0.0
	for _, n := range names {
		score := matchr.JaroWinkler(q, strings.ToLower(n), false)
		if score > bestScore {
			best, bestScore = n, score
		}
	}
	if bestScore >= MinSimilarity {
		return best, true
	}
	return "", false
}
