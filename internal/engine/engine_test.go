package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"founderaudit/internal/config"
	"founderaudit/internal/db"
	"founderaudit/internal/domain"
	"founderaudit/internal/engine"
	"founderaudit/internal/migrate"
	"founderaudit/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	clock  *time.Time
}

func (env testEnv) advance(d time.Duration) {
	*env.clock = env.clock.Add(d)
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Reports.Timezone = "UTC"
	eng := engine.New(conn, cfg)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	eng.Now = func() time.Time { return clock }
	return testEnv{Engine: eng, Ctx: ctx, clock: &clock}
}

func sampleSubmission(email string) engine.AuditSubmission {
	data := domain.DefaultAuditData()
	data.DecisionCategories[0].Decisions = 20
	data.DecisionCategories[0].CouldDelegate = 20
	data.DelayTax[0].Amount = 3000
	data.Patterns[0].Checked = true
	return engine.AuditSubmission{UserName: "Ada", UserEmail: email, AuditData: data}
}

func TestSubmitAuditDerivesResults(t *testing.T) {
	env := newTestEnv(t)
	sub := sampleSubmission("ada@example.com")
	sub.Segmentation = &domain.Segmentation{FounderRole: "ceo"}
	a, err := env.Engine.SubmitAudit(env.Ctx, sub)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if a.ID == "" || !a.CreatedAt.Equal(*env.clock) {
		t.Fatalf("unexpected identity: %+v", a)
	}
	if a.Results.HourlyRate != 200 || a.Results.DelayTaxAnnual != 36000 {
		t.Fatalf("unexpected results: %+v", a.Results)
	}
	if a.Results.OverallStatus != domain.StatusScalingRisk {
		t.Fatalf("expected scaling-risk, got %s", a.Results.OverallStatus)
	}

	got, err := env.Engine.GetAudit(env.Ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Results != a.Results || got.Segmentation == nil || got.Segmentation.FounderRole != "ceo" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.AuditData.DecisionCategories) != len(domain.DecisionCategoryIDs) {
		t.Fatalf("expected categories to persist, got %d", len(got.AuditData.DecisionCategories))
	}

	evts, _, err := env.Engine.ActivityFeed(env.Ctx, 10, 0, repo.EventFilters{})
	if err != nil || len(evts) != 1 || evts[0].Type != "audit.submitted" || evts[0].EntityID != a.ID {
		t.Fatalf("expected audit.submitted event, got %+v (%v)", evts, err)
	}
}

func TestSubmitAuditValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := map[string]engine.AuditSubmission{
		"no name":  {UserEmail: "a@b.io"},
		"no email": {UserName: "A"},
		"bad email": {UserName: "A", UserEmail: "not-an-email"},
		"negative count": {UserName: "A", UserEmail: "a@b.io", AuditData: domain.AuditData{
			DecisionCategories: []domain.DecisionCategory{{ID: "hiring", Decisions: -1}},
		}},
		"negative comp": {UserName: "A", UserEmail: "a@b.io", AuditData: domain.AuditData{AnnualCompensation: -1}},
	}
	for name, sub := range cases {
		if _, err := env.Engine.SubmitAudit(env.Ctx, sub); !errors.Is(err, engine.ErrInvalidInput) {
			t.Fatalf("%s: expected invalid input, got %v", name, err)
		}
	}
}

func TestSubmitAuditSessionLinkIsUnique(t *testing.T) {
	env := newTestEnv(t)
	sub := sampleSubmission("ada@example.com")
	sub.SessionID = "sess-1"
	if _, err := env.Engine.SubmitAudit(env.Ctx, sub); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := env.Engine.SubmitAudit(env.Ctx, sub); !errors.Is(err, engine.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	sub.SessionID = ""
	if _, err := env.Engine.SubmitAudit(env.Ctx, sub); err != nil {
		t.Fatalf("unlinked resubmit: %v", err)
	}
}

func TestNormalizeAuditDataFillsNames(t *testing.T) {
	data, err := engine.NormalizeAuditData(domain.AuditData{
		DecisionCategories: []domain.DecisionCategory{{ID: "pricing", Decisions: 2}, {ID: "custom", Name: "Custom"}},
		Patterns:           []domain.BottleneckPattern{{ID: "meeting-magnet", Checked: true}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if data.DecisionCategories[0].Name == "" || data.DecisionCategories[1].Name != "Custom" {
		t.Fatalf("unexpected names: %+v", data.DecisionCategories)
	}
	if data.Patterns[0].Name == "" {
		t.Fatalf("expected pattern name filled")
	}
	if data.DelayTax == nil {
		t.Fatalf("expected empty delay tax slice")
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, "sess-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.LastStep != domain.StepIntro || s.Status != domain.SessionInProgress {
		t.Fatalf("unexpected start state: %+v", s)
	}

	env.advance(time.Minute)
	again, err := env.Engine.StartSession(env.Ctx, "sess-1")
	if err != nil || !again.StartTime.Equal(s.StartTime) {
		t.Fatalf("start should be idempotent: %+v %v", again, err)
	}

	if _, err := env.Engine.TrackStep(env.Ctx, "sess-1", domain.StepDecisions); err != nil {
		t.Fatalf("track: %v", err)
	}
	if _, err := env.Engine.TrackStep(env.Ctx, "sess-1", "results"); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected invalid step error, got %v", err)
	}
	if _, err := env.Engine.TrackStep(env.Ctx, "missing", domain.StepEmail); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	env.advance(2*time.Minute + 5*time.Second)
	done, err := env.Engine.CompleteSession(env.Ctx, "sess-1")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != domain.SessionCompleted || done.LastStep != domain.StepCompleted || done.EndTime == nil {
		t.Fatalf("unexpected completed state: %+v", done)
	}

	// a late step beacon does not reopen the session
	env.advance(time.Second)
	late, err := env.Engine.TrackStep(env.Ctx, "sess-1", domain.StepPatterns)
	if err != nil || late.LastStep != domain.StepCompleted {
		t.Fatalf("late step should be ignored: %+v %v", late, err)
	}
	again, err = env.Engine.CompleteSession(env.Ctx, "sess-1")
	if err != nil || !again.EndTime.Equal(*done.EndTime) {
		t.Fatalf("second complete should keep end time: %+v %v", again, err)
	}

	stored, err := env.Engine.GetSession(env.Ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.EndTime.Sub(stored.StartTime) != 3*time.Minute+5*time.Second {
		t.Fatalf("unexpected duration: %v", stored.EndTime.Sub(stored.StartTime))
	}
}

func TestStartSessionGeneratesID(t *testing.T) {
	env := newTestEnv(t)
	s, err := env.Engine.StartSession(env.Ctx, "")
	if err != nil || s.SessionID == "" {
		t.Fatalf("expected generated id: %+v %v", s, err)
	}
}

func TestListSessionsRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.ListSessions(env.Ctx, repo.SessionFilters{Status: "paused"}); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestReportsOverStoredData(t *testing.T) {
	env := newTestEnv(t)
	if rep, err := env.Engine.Cohort(env.Ctx); err != nil || rep != nil {
		t.Fatalf("expected nil cohort on empty store: %v %v", rep, err)
	}
	if sum, err := env.Engine.SessionSummary(env.Ctx); err != nil || sum != nil {
		t.Fatalf("expected nil session summary on empty store: %v %v", sum, err)
	}

	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		if _, err := env.Engine.StartSession(env.Ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.Engine.TrackStep(env.Ctx, "s2", domain.StepEmail); err != nil {
		t.Fatal(err)
	}
	env.advance(90 * time.Second)
	if _, err := env.Engine.CompleteSession(env.Ctx, "s3"); err != nil {
		t.Fatal(err)
	}
	sub := sampleSubmission("ada@example.com")
	sub.SessionID = "s3"
	if _, err := env.Engine.SubmitAudit(env.Ctx, sub); err != nil {
		t.Fatal(err)
	}
	env.advance(24 * time.Hour)
	if _, err := env.Engine.SubmitAudit(env.Ctx, sampleSubmission("ADA@example.com")); err != nil {
		t.Fatal(err)
	}

	cohort, err := env.Engine.Cohort(env.Ctx)
	if err != nil || cohort == nil || cohort.Overview.TotalAudits != 2 {
		t.Fatalf("cohort: %+v %v", cohort, err)
	}
	sum, err := env.Engine.SessionSummary(env.Ctx)
	if err != nil || sum.CompletionRate != 25 || sum.AvgCompletionTime != "1m 30s" {
		t.Fatalf("session summary: %+v %v", sum, err)
	}
	funnel, err := env.Engine.Funnel(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if funnel.StartCount != 4 || funnel.ReachedEmailCount != 2 || funnel.CompletedCount != 2 || funnel.LinkedCompletedCount != 1 {
		t.Fatalf("funnel: %+v", funnel)
	}
	trends, err := env.Engine.Trends(env.Ctx, "month")
	if err != nil || len(trends) != 1 || trends[0].Period != "2024-01" || trends[0].Audits != 2 {
		t.Fatalf("trends: %+v %v", trends, err)
	}
	if _, err := env.Engine.Trends(env.Ctx, "year"); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected invalid period, got %v", err)
	}
	biz, err := env.Engine.Business(env.Ctx)
	if err != nil || biz.ReturnVisitorCount != 1 {
		t.Fatalf("business: %+v %v", biz, err)
	}
	founders, err := env.Engine.Founders(env.Ctx, "ada")
	if err != nil || len(founders) != 1 || founders[0].TotalAudits != 2 {
		t.Fatalf("founders: %+v %v", founders, err)
	}
}

func TestReportCacheInvalidatesOnWrite(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SubmitAudit(env.Ctx, sampleSubmission("a@example.com")); err != nil {
		t.Fatal(err)
	}
	first, err := env.Engine.Cohort(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Cohort(env.Ctx); err != nil {
		t.Fatal(err)
	}
	if env.Engine.CacheHits() != 1 {
		t.Fatalf("expected one cache hit, got %d", env.Engine.CacheHits())
	}
	if _, err := env.Engine.SubmitAudit(env.Ctx, sampleSubmission("b@example.com")); err != nil {
		t.Fatal(err)
	}
	second, err := env.Engine.Cohort(env.Ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Overview.TotalAudits != 1 || second.Overview.TotalAudits != 2 {
		t.Fatalf("expected fresh report after write: %d then %d", first.Overview.TotalAudits, second.Overview.TotalAudits)
	}
	if env.Engine.CacheHits() != 1 {
		t.Fatalf("expected miss after write, hits=%d", env.Engine.CacheHits())
	}
}

func TestActivityFeedPaginates(t *testing.T) {
	env := newTestEnv(t)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := env.Engine.StartSession(env.Ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	page, next, err := env.Engine.ActivityFeed(env.Ctx, 2, 0, repo.EventFilters{})
	if err != nil || len(page) != 2 || next == 0 {
		t.Fatalf("first page: %+v next=%d %v", page, next, err)
	}
	if page[0].EntityID != "c" {
		t.Fatalf("expected newest first, got %s", page[0].EntityID)
	}
	rest, next, err := env.Engine.ActivityFeed(env.Ctx, 2, next, repo.EventFilters{})
	if err != nil || len(rest) != 1 || next != 0 || rest[0].EntityID != "a" {
		t.Fatalf("second page: %+v next=%d %v", rest, next, err)
	}
}
