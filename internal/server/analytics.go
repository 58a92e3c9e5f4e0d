package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"founderaudit/internal/analytics"
	"founderaudit/internal/engine"
)

// registerAnalytics exposes the admin dashboard reports. Cohort and session
// summaries answer null when there is nothing to aggregate.
func registerAnalytics(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "cohort-report",
		Method:      http.MethodGet,
		Path:        "/analytics/cohort",
		Summary:     "Cohort aggregates over all audits",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body *analytics.CohortReport `json:"body"`
	}, error) {
		rep, err := e.Cohort(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *analytics.CohortReport `json:"body"`
		}{Body: rep}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "session-report",
		Method:      http.MethodGet,
		Path:        "/analytics/sessions",
		Summary:     "Session completion and drop-off summary",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body *analytics.SessionSummary `json:"body"`
	}, error) {
		sum, err := e.SessionSummary(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body *analytics.SessionSummary `json:"body"`
		}{Body: sum}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "funnel-report",
		Method:      http.MethodGet,
		Path:        "/analytics/funnel",
		Summary:     "Three-stage funnel conversion",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body analytics.FunnelReport `json:"body"`
	}, error) {
		f, err := e.Funnel(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body analytics.FunnelReport `json:"body"`
		}{Body: f}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "trends-report",
		Method:      http.MethodGet,
		Path:        "/analytics/trends",
		Summary:     "Sessions and audits per week or month",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Period string `query:"period" doc:"week or month; defaults to reports.default_period"`
	}) (*struct {
		Body TrendsResponse `json:"body"`
	}, error) {
		p, err := e.TrendPeriod(input.Period)
		if err != nil {
			return nil, handleError(err)
		}
		points, err := e.Trends(ctx, string(p))
		if err != nil {
			return nil, handleError(err)
		}
		if points == nil {
			points = []analytics.TrendPoint{}
		}
		return &struct {
			Body TrendsResponse `json:"body"`
		}{Body: TrendsResponse{Trends: points, Period: string(p)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "business-report",
		Method:      http.MethodGet,
		Path:        "/analytics/business",
		Summary:     "Email capture, return visitors and repeat-audit deltas",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body analytics.BusinessReport `json:"body"`
	}, error) {
		b, err := e.Business(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body analytics.BusinessReport `json:"body"`
		}{Body: b}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "founders-report",
		Method:      http.MethodGet,
		Path:        "/analytics/founders",
		Summary:     "Founder directory",
	}, func(ctx context.Context, input *struct {
		Query string `query:"q" doc:"Case-insensitive match on name or email"`
	}) (*struct {
		Body []analytics.FounderProfile `json:"body"`
	}, error) {
		items, err := e.Founders(ctx, input.Query)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []analytics.FounderProfile{}
		}
		return &struct {
			Body []analytics.FounderProfile `json:"body"`
		}{Body: items}, nil
	})
}
