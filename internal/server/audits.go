package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"founderaudit/internal/domain"
	"founderaudit/internal/engine"
	"founderaudit/internal/logger"
	"founderaudit/internal/repo"
)

type auditOutput struct {
	Body domain.Audit `json:"body"`
}

func registerAudits(api huma.API, e engine.Engine, log *logger.Logger) {
	submit := func(ctx context.Context, input *struct {
		Body SubmitAuditRequest
	}) (*auditOutput, error) {
		sub := engine.AuditSubmission{
			SessionID: input.Body.SessionID,
			UserName:  input.Body.UserName,
			UserEmail: input.Body.UserEmail,
			AuditData: input.Body.AuditData.toDomain(),
		}
		if seg := input.Body.Segmentation; seg != nil {
			sub.Segmentation = &domain.Segmentation{
				FounderRole:      seg.FounderRole,
				RevenueRange:     seg.RevenueRange,
				TeamSize:         seg.TeamSize,
				IndustryVertical: seg.IndustryVertical,
			}
		}
		a, err := e.SubmitAudit(ctx, sub)
		if err != nil {
			return nil, handleError(err)
		}
		log.WithFields(logrus.Fields{
			"audit_id":       a.ID,
			"overall_status": a.Results.OverallStatus,
		}).Info("audit submitted")
		return &auditOutput{Body: a}, nil
	}
	huma.Register(api, huma.Operation{
		OperationID:   "submit-audit",
		Method:        http.MethodPost,
		Path:          "/audits",
		Summary:       "Submit a completed audit",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
	}, submit)
	// The wizard posts to the singular path.
	huma.Register(api, huma.Operation{
		OperationID:   "submit-audit-legacy",
		Method:        http.MethodPost,
		Path:          "/audit",
		Summary:       "Submit a completed audit (wizard path)",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusConflict},
		Hidden:        true,
	}, submit)

	huma.Register(api, huma.Operation{
		OperationID: "list-audits",
		Method:      http.MethodGet,
		Path:        "/audits",
		Summary:     "List audits, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Email  string `query:"email"`
		Status string `query:"status" enum:"optimized,scaling-risk,critical"`
		Since  string `query:"since" doc:"RFC3339 lower bound on createdAt"`
		Until  string `query:"until" doc:"RFC3339 upper bound on createdAt"`
		Limit  int    `query:"limit" minimum:"0"`
	}) (*struct {
		Body []domain.Audit `json:"body"`
	}, error) {
		f := repo.AuditFilters{
			Email:  input.Email,
			Status: domain.OverallStatus(input.Status),
			Limit:  input.Limit,
		}
		var err error
		if f.Since, err = parseTimeParam("since", input.Since); err != nil {
			return nil, err
		}
		if f.Until, err = parseTimeParam("until", input.Until); err != nil {
			return nil, err
		}
		items, err := e.ListAudits(ctx, f)
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.Audit{}
		}
		return &struct {
			Body []domain.Audit `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-audit",
		Method:      http.MethodGet,
		Path:        "/audits/{id}",
		Summary:     "Get audit",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*auditOutput, error) {
		a, err := e.GetAudit(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &auditOutput{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "score-audit",
		Method:      http.MethodPost,
		Path:        "/audits/score",
		Summary:     "Score audit data without storing it",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body AuditDataRequest
	}) (*struct {
		Body ScoreResponse `json:"body"`
	}, error) {
		data, results, err := e.ScorePreview(input.Body.toDomain())
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ScoreResponse `json:"body"`
		}{Body: ScoreResponse{AuditData: data, Results: results}}, nil
	})
}

func parseTimeParam(name, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, newAPIError(http.StatusBadRequest, "bad_request", "invalid "+name, map[string]any{name: raw})
	}
	return t, nil
}
