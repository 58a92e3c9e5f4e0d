package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"founderaudit/internal/analytics"
	"founderaudit/internal/domain"
	"founderaudit/internal/repo"
)

const (
	ReportCohort   = "cohort"
	ReportSessions = "sessions"
	ReportFunnel   = "funnel"
	ReportTrends   = "trends"
	ReportBusiness = "business"
	ReportFounders = "founders"
)

type cacheEntry struct {
	version int64
	value   any
}

// reportCache memoizes built reports per dataset version. Every write appends
// an event, so a new event id invalidates all entries.
type reportCache struct {
	entries *lru.Cache[string, cacheEntry]
	hits    atomic.Int64
}

func newReportCache(size int) *reportCache {
	if size <= 0 {
		return nil
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil
	}
	return &reportCache{entries: entries}
}

func (c *reportCache) get(key string, version int64) (any, bool) {
	if c == nil {
		return nil, false
	}
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	if entry.version != version {
		c.entries.Remove(key)
		return nil, false
	}
	c.hits.Add(1)
	return entry.value, true
}

func (c *reportCache) put(key string, version int64, value any) {
	if c == nil {
		return
	}
	c.entries.Add(key, cacheEntry{version: version, value: value})
}

// CacheHits reports how many report requests were served from cache.
func (e Engine) CacheHits() int64 {
	if e.reports == nil {
		return 0
	}
	return e.reports.hits.Load()
}

// dataset is the full record set every report is computed from, in insertion order.
type dataset struct {
	audits   []domain.Audit
	sessions []domain.AuditSession
}

func (e Engine) loadDataset(ctx context.Context, needAudits, needSessions bool) (dataset, error) {
	var ds dataset
	var err error
	if needAudits {
		if ds.audits, err = e.Repo.ListAudits(ctx, repo.AuditFilters{Oldest: true}); err != nil {
			return ds, fmt.Errorf("load audits: %w", err)
		}
	}
	if needSessions {
		if ds.sessions, err = e.Repo.ListSessions(ctx, repo.SessionFilters{Oldest: true}); err != nil {
			return ds, fmt.Errorf("load sessions: %w", err)
		}
	}
	return ds, nil
}

func buildReport[T any](ctx context.Context, e Engine, name, args string, build func(dataset) T, needAudits, needSessions bool) (T, error) {
	var zero T
	version, err := e.Repo.LatestEventID(ctx)
	if err != nil {
		return zero, err
	}
	key := name + "|" + args
	if v, ok := e.reports.get(key, version); ok {
		if e.Observer != nil {
			e.Observer.RecordReport(name, 0, true)
		}
		return v.(T), nil
	}
	start := time.Now()
	ds, err := e.loadDataset(ctx, needAudits, needSessions)
	if err != nil {
		return zero, err
	}
	out := build(ds)
	e.reports.put(key, version, out)
	if e.Observer != nil {
		e.Observer.RecordReport(name, time.Since(start), false)
	}
	return out, nil
}

// Cohort returns nil when no audits exist.
func (e Engine) Cohort(ctx context.Context) (*analytics.CohortReport, error) {
	return buildReport(ctx, e, ReportCohort, "", func(ds dataset) *analytics.CohortReport {
		return analytics.Cohort(ds.audits)
	}, true, false)
}

// SessionSummary returns nil when no sessions exist.
func (e Engine) SessionSummary(ctx context.Context) (*analytics.SessionSummary, error) {
	return buildReport(ctx, e, ReportSessions, "", func(ds dataset) *analytics.SessionSummary {
		return analytics.Sessions(ds.sessions)
	}, false, true)
}

func (e Engine) Funnel(ctx context.Context) (analytics.FunnelReport, error) {
	return buildReport(ctx, e, ReportFunnel, "", func(ds dataset) analytics.FunnelReport {
		return analytics.Funnel(ds.sessions, ds.audits)
	}, true, true)
}

// TrendPeriod resolves a requested period; empty means the configured default.
func (e Engine) TrendPeriod(period string) (analytics.Period, error) {
	if period == "" {
		period = e.Config.Reports.DefaultPeriod
	}
	p, err := analytics.ParsePeriod(period)
	if err != nil {
		return "", invalidf("%v", err)
	}
	return p, nil
}

// Trends buckets by period; an empty period uses the configured default.
func (e Engine) Trends(ctx context.Context, period string) ([]analytics.TrendPoint, error) {
	p, err := e.TrendPeriod(period)
	if err != nil {
		return nil, err
	}
	loc, err := e.Config.Location()
	if err != nil {
		return nil, err
	}
	return buildReport(ctx, e, ReportTrends, string(p), func(ds dataset) []analytics.TrendPoint {
		return analytics.Trends(ds.sessions, ds.audits, p, loc)
	}, true, true)
}

func (e Engine) Business(ctx context.Context) (analytics.BusinessReport, error) {
	return buildReport(ctx, e, ReportBusiness, "", func(ds dataset) analytics.BusinessReport {
		return analytics.Business(ds.sessions, ds.audits)
	}, true, true)
}

func (e Engine) Founders(ctx context.Context, query string) ([]analytics.FounderProfile, error) {
	return buildReport(ctx, e, ReportFounders, query, func(ds dataset) []analytics.FounderProfile {
		return analytics.Founders(ds.audits, query)
	}, true, false)
}
