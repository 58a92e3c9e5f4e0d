package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"founderaudit/internal/domain"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod accepts "week" or "month"; empty defaults to week.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", PeriodWeek:
		return PeriodWeek, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("unknown period %q (want week or month)", s)
	}
}

type TrendPoint struct {
	Period            string  `json:"period"`
	Sessions          int     `json:"sessions"`
	Completed         int     `json:"completed"`
	CompletionRate    int     `json:"completionRate"`
	Audits            int     `json:"audits"`
	AvgBottleneckCost float64 `json:"avgBottleneckCost"`
}

// PeriodKey buckets t in loc: "YYYY-MM" for months, the Sunday that starts
// the week as "YYYY-MM-DD" for weeks.
func PeriodKey(t time.Time, p Period, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	if p == PeriodMonth {
		return t.Format("2006-01")
	}
	y, m, d := t.Date()
	start := time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, loc)
	return start.Format("2006-01-02")
}

type trendBucket struct {
	sessions  int
	completed int
	audits    int
	cost      float64
}

// Trends buckets sessions by start time and audits by creation time. The
// returned periods are the union of both key sets, ascending.
func Trends(sessions []domain.AuditSession, audits []domain.Audit, p Period, loc *time.Location) []TrendPoint {
	buckets := map[string]*trendBucket{}
	bucket := func(key string) *trendBucket {
		b, ok := buckets[key]
		if !ok {
			b = &trendBucket{}
			buckets[key] = b
		}
		return b
	}

	for _, s := range sessions {
		ts := s.StartTime
		if ts.IsZero() {
			ts = s.CreatedAt
		}
		b := bucket(PeriodKey(ts, p, loc))
		b.sessions++
		if s.Status == domain.SessionCompleted {
			b.completed++
		}
	}
	for _, a := range audits {
		b := bucket(PeriodKey(a.CreatedAt, p, loc))
		b.audits++
		b.cost += a.Results.TotalBottleneckCost
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]TrendPoint, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		out = append(out, TrendPoint{
			Period:            k,
			Sessions:          b.sessions,
			Completed:         b.completed,
			CompletionRate:    percent(b.completed, b.sessions),
			Audits:            b.audits,
			AvgBottleneckCost: roundHalfUp(mean(b.cost, b.audits)),
		})
	}
	return out
}
