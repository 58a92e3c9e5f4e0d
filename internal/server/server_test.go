package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"founderaudit/internal/analytics"
	"founderaudit/internal/config"
	"founderaudit/internal/db"
	"founderaudit/internal/domain"
	"founderaudit/internal/engine"
	"founderaudit/internal/engine/scoring"
	"founderaudit/internal/export"
	"founderaudit/internal/metrics"
	"founderaudit/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	cfg := config.Default()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	reg := prometheus.NewRegistry()
	obs, err := metrics.New(cfg.Metrics.Namespace, reg)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	e := engine.New(conn, cfg)
	e.Observer = obs
	handler, err := New(Config{
		Engine:      e,
		BasePath:    "/api",
		Metrics:     obs,
		MetricsPath: "/metrics",
		Gatherer:    reg,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func auditBody(name, email, sessionID string) map[string]any {
	return map[string]any{
		"sessionId": sessionID,
		"userName":  name,
		"userEmail": email,
		"segmentation": map[string]any{
			"founderRole":  "solo-founder",
			"revenueRange": "1m-5m",
		},
		"auditData": map[string]any{
			"decisionCategories": []map[string]any{
				{"id": "hiring", "decisions": 5, "couldDelegate": 3, "onlyYou": 1, "notSure": true},
				{"id": "pricing", "decisions": 4, "couldDelegate": 1, "onlyYou": 2, "notSure": 1},
			},
			"annualCompensation":        200000,
			"averageMinutesPerDecision": 30,
			"delayTax":                  []map[string]any{{"id": "lost-deals", "amount": 1500}},
			"patterns":                  []map[string]any{{"id": "approval-addict", "checked": true}},
		},
		// Client-computed results must be ignored.
		"results": map[string]any{"totalDecisions": 999},
	}
}

func decodeError(t *testing.T, data []byte) apiErrorBody {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v (%s)", err, string(data))
	}
	return env.Error
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, body := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/api/health", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(body), "ok") {
		t.Fatalf("health status %d: %s", res.StatusCode, string(body))
	}
	if res.Header.Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestSubmitAuditDerivesResults(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/audits", auditBody("Ada", "Ada@Example.com", "sess-1"), nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
	}
	var created domain.Audit
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal audit: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	normalized, err := engine.NormalizeAuditData(created.AuditData)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if want := scoring.Score(normalized); created.Results != want {
		t.Fatalf("results not derived server-side: got %+v want %+v", created.Results, want)
	}
	if created.Results.TotalDecisions != 9 {
		t.Fatalf("expected 9 decisions, got %d", created.Results.TotalDecisions)
	}
	if created.AuditData.DecisionCategories[0].NotSure != 1 {
		t.Fatalf("boolean notSure should count as 1: %+v", created.AuditData.DecisionCategories[0])
	}

	getRes, getBody := doJSON(t, client, http.MethodGet, srv.URL+"/api/audits/"+created.ID, nil, nil)
	if getRes.StatusCode != http.StatusOK {
		t.Fatalf("get status %d: %s", getRes.StatusCode, string(getBody))
	}

	listRes, listBody := doJSON(t, client, http.MethodGet, srv.URL+"/api/audits?email=ada@example.com", nil, nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", listRes.StatusCode, string(listBody))
	}
	var listed []domain.Audit
	if err := json.Unmarshal(listBody, &listed); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != created.ID {
		t.Fatalf("unexpected list: %+v", listed)
	}

	dupRes, dupBody := doJSON(t, client, http.MethodPost, srv.URL+"/api/audit", auditBody("Ada", "ada@example.com", "sess-1"), nil)
	if dupRes.StatusCode != http.StatusConflict || decodeError(t, dupBody).Code != "conflict" {
		t.Fatalf("expected conflict for reused session, got %d: %s", dupRes.StatusCode, string(dupBody))
	}

	missRes, missBody := doJSON(t, client, http.MethodGet, srv.URL+"/api/audits/nope", nil, nil)
	if missRes.StatusCode != http.StatusNotFound || decodeError(t, missBody).Code != "not_found" {
		t.Fatalf("expected not_found, got %d: %s", missRes.StatusCode, string(missBody))
	}
}

func TestSubmitAuditRejectsMalformedBodies(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	noEmail := auditBody("Ada", "", "")
	delete(noEmail, "userEmail")
	wrongType := auditBody("Ada", "ada@example.com", "")
	wrongType["auditData"] = map[string]any{
		"decisionCategories": []map[string]any{{"id": "hiring", "decisions": "ten"}},
	}
	negative := auditBody("Ada", "ada@example.com", "")
	negative["auditData"] = map[string]any{"annualCompensation": -5}

	for name, body := range map[string]map[string]any{
		"missing email": noEmail,
		"wrong type":    wrongType,
		"negative":      negative,
	} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/audits", body, nil)
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", name, res.StatusCode, string(data))
		}
		if decodeError(t, data).Code != "bad_request" {
			t.Fatalf("%s: unexpected error body %s", name, string(data))
		}
	}
}

func TestScorePreviewDoesNotStore(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	body := auditBody("Ada", "ada@example.com", "")["auditData"]
	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/audits/score", body, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("score status %d: %s", res.StatusCode, string(data))
	}
	var scored ScoreResponse
	if err := json.Unmarshal(data, &scored); err != nil {
		t.Fatalf("unmarshal score: %v", err)
	}
	if scored.Results.TotalDecisions != 9 || scored.Results.PatternsChecked != 1 {
		t.Fatalf("unexpected results: %+v", scored.Results)
	}
	n, err := srv.Engine.Repo.CountAudits(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("preview must not store audits: n=%d err=%v", n, err)
	}
}

func TestSessionTracking(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/session/start", map[string]any{"sessionId": "s-1"}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start status %d: %s", res.StatusCode, string(data))
	}
	var started domain.AuditSession
	_ = json.Unmarshal(data, &started)
	if started.LastStep != domain.StepIntro || started.Status != domain.SessionInProgress {
		t.Fatalf("unexpected start state: %+v", started)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/session/start", nil, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("start without id status %d: %s", res.StatusCode, string(data))
	}
	var generated domain.AuditSession
	_ = json.Unmarshal(data, &generated)
	if generated.SessionID == "" {
		t.Fatalf("expected generated session id")
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/session/update", map[string]any{"sessionId": "s-1", "step": "email"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("update status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/session/update", map[string]any{"sessionId": "s-1", "step": "checkout"}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown step, got %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/session/update", map[string]any{"sessionId": "missing", "step": "email"}, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/api/session/complete", map[string]any{"sessionId": "s-1"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete status %d: %s", res.StatusCode, string(data))
	}
	var completed domain.AuditSession
	_ = json.Unmarshal(data, &completed)
	if completed.Status != domain.SessionCompleted || completed.LastStep != domain.StepCompleted || completed.EndTime == nil {
		t.Fatalf("unexpected completed state: %+v", completed)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/sessions?status=completed", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d: %s", res.StatusCode, string(data))
	}
	var live []domain.AuditSession
	_ = json.Unmarshal(data, &live)
	if len(live) != 1 || live[0].SessionID != "s-1" {
		t.Fatalf("unexpected completed sessions: %+v", live)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/sessions?status=lost", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", res.StatusCode)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/api/analytics/cohort", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("empty cohort status %d", res.StatusCode)
	}

	for _, id := range []string{"a", "b", "c"} {
		doJSON(t, client, http.MethodPost, srv.URL+"/api/session/start", map[string]any{"sessionId": id}, nil)
	}
	doJSON(t, client, http.MethodPost, srv.URL+"/api/session/update", map[string]any{"sessionId": "b", "step": "decisions"}, nil)
	doJSON(t, client, http.MethodPost, srv.URL+"/api/session/complete", map[string]any{"sessionId": "c"}, nil)
	for _, email := range []string{"ada@example.com", "ADA@example.com "} {
		res, data := doJSON(t, client, http.MethodPost, srv.URL+"/api/audits", auditBody("Ada", email, ""), nil)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
		}
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/analytics/funnel", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("funnel status %d: %s", res.StatusCode, string(data))
	}
	var funnel analytics.FunnelReport
	_ = json.Unmarshal(data, &funnel)
	if funnel.StartCount != 3 || funnel.ReachedEmailCount != 2 || funnel.CompletedCount != 2 {
		t.Fatalf("unexpected funnel: %+v", funnel)
	}
	if funnel.EmailCaptureRate != 100 || funnel.StartToCompleteRate != 67 {
		t.Fatalf("unexpected funnel rates: %+v", funnel)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/analytics/cohort", nil, nil)
	var cohort analytics.CohortReport
	if err := json.Unmarshal(data, &cohort); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("cohort status %d: %s", res.StatusCode, string(data))
	}
	if cohort.Overview.TotalAudits != 2 || len(cohort.Segmentation.FounderRole) != 1 {
		t.Fatalf("unexpected cohort: %+v", cohort)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/analytics/sessions", nil, nil)
	var summary analytics.SessionSummary
	if err := json.Unmarshal(data, &summary); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("sessions status %d: %s", res.StatusCode, string(data))
	}
	if summary.TotalSessions != 3 || summary.CompletionRate != 33 || len(summary.DropOff) == 0 {
		t.Fatalf("unexpected session summary: %+v", summary)
	}
	var rawSummary struct {
		DropOff []map[string]any `json:"dropOffData"`
	}
	if err := json.Unmarshal(data, &rawSummary); err != nil {
		t.Fatalf("decode session summary: %v", err)
	}
	for _, d := range rawSummary.DropOff {
		if _, ok := d["value"]; !ok {
			t.Fatalf("drop-off entry missing value: %v", d)
		}
		if _, ok := d["count"]; ok {
			t.Fatalf("drop-off entry should not carry count: %v", d)
		}
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/analytics/trends?period=month", nil, nil)
	var trends TrendsResponse
	if err := json.Unmarshal(data, &trends); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("trends status %d: %s", res.StatusCode, string(data))
	}
	points := trends.Trends
	if trends.Period != "month" || len(points) != 1 || points[0].Sessions != 3 || points[0].Audits != 2 {
		t.Fatalf("unexpected trends: %+v", trends)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/analytics/trends", nil, nil)
	if err := json.Unmarshal(data, &trends); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("default trends status %d: %s", res.StatusCode, string(data))
	}
	if trends.Period != "week" || trends.Trends == nil {
		t.Fatalf("unexpected default trends: %+v", trends)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/analytics/trends?period=year", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown period, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/analytics/business", nil, nil)
	var business analytics.BusinessReport
	if err := json.Unmarshal(data, &business); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("business status %d: %s", res.StatusCode, string(data))
	}
	if business.ReturnVisitorCount != 1 || len(business.PerformanceImprovement) != 1 {
		t.Fatalf("unexpected business report: %+v", business)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/analytics/founders?q=ADA", nil, nil)
	var founders []analytics.FounderProfile
	if err := json.Unmarshal(data, &founders); err != nil || res.StatusCode != http.StatusOK {
		t.Fatalf("founders status %d: %s", res.StatusCode, string(data))
	}
	if len(founders) != 1 || founders[0].TotalAudits != 2 {
		t.Fatalf("unexpected founders: %+v", founders)
	}
}

func TestExports(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	doJSON(t, client, http.MethodPost, srv.URL+"/api/audits", auditBody("Lee, Ada", "ada@example.com", ""), nil)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/exports/audits.csv", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.HasPrefix(res.Header.Get("Content-Type"), "text/csv") {
		t.Fatalf("csv status %d (%s)", res.StatusCode, res.Header.Get("Content-Type"))
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], `"Lee, Ada",ada@example.com,Solo Founder`) {
		t.Fatalf("unexpected csv: %q", string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/exports/audits.xlsx", nil, nil)
	if res.StatusCode != http.StatusOK || res.Header.Get("Content-Type") != export.XLSXContentType {
		t.Fatalf("xlsx status %d (%s)", res.StatusCode, res.Header.Get("Content-Type"))
	}
	rows, err := export.ReadAuditsXLSX(bytes.NewReader(data))
	if err != nil || len(rows) != 2 {
		t.Fatalf("read xlsx: rows=%d err=%v", len(rows), err)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/exports/founders.csv", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "ada@example.com") {
		t.Fatalf("founders csv status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/exports/audits.csv?status=bogus", nil, nil)
	if res.StatusCode != http.StatusBadRequest || decodeError(t, data).Code != "bad_request" {
		t.Fatalf("expected 400 for bad status, got %d: %s", res.StatusCode, string(data))
	}
}

func TestEventsFeedPagination(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	for _, id := range []string{"a", "b", "c"} {
		doJSON(t, client, http.MethodPost, srv.URL+"/api/session/start", map[string]any{"sessionId": id}, nil)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/api/events?limit=2", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events status %d: %s", res.StatusCode, string(data))
	}
	var page EventsPage
	_ = json.Unmarshal(data, &page)
	if len(page.Items) != 2 || page.NextCursor == "" || page.Items[0].EntityID != "c" {
		t.Fatalf("unexpected first page: %+v", page)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/events?limit=2&cursor="+page.NextCursor, nil, nil)
	var next EventsPage
	_ = json.Unmarshal(data, &next)
	if res.StatusCode != http.StatusOK || len(next.Items) != 1 || next.NextCursor != "" {
		t.Fatalf("unexpected second page: %+v", next)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/events?cursor=abc", nil, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad cursor, got %d", res.StatusCode)
	}
}

func TestMetricsAndDocs(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	doJSON(t, client, http.MethodPost, srv.URL+"/api/audits", auditBody("Ada", "ada@example.com", ""), nil)

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/metrics", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "founderaudit_audits_submitted_total") {
		t.Fatalf("metrics status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/api/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "submit-audit") {
		t.Fatalf("openapi status %d", res.StatusCode)
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/docs", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "/api/openapi.json") {
		t.Fatalf("docs status %d", res.StatusCode)
	}
}

func TestOpenAPIConcurrentFirstRequests(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	const workers = 8
	bodies := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.Get(srv.URL + "/api/openapi.json")
			if err != nil {
				t.Errorf("get openapi: %v", err)
				return
			}
			defer res.Body.Close()
			data, _ := io.ReadAll(res.Body)
			bodies[i] = string(data)
		}(i)
	}
	wg.Wait()
	for i, body := range bodies {
		if body == "" || body != bodies[0] {
			t.Fatalf("openapi response %d differs or is empty", i)
		}
	}
}
