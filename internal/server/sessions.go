package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"founderaudit/internal/domain"
	"founderaudit/internal/engine"
	"founderaudit/internal/repo"
)

type sessionOutput struct {
	Body domain.AuditSession `json:"body"`
}

func registerSessions(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "start-session",
		Method:        http.MethodPost,
		Path:          "/session/start",
		Summary:       "Start tracking a wizard session",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body *SessionRequest
	}) (*sessionOutput, error) {
		var id string
		if input.Body != nil {
			id = input.Body.SessionID
		}
		s, err := e.StartSession(ctx, id)
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-session",
		Method:      http.MethodPost,
		Path:        "/session/update",
		Summary:     "Record the step a session reached",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body SessionStepRequest
	}) (*sessionOutput, error) {
		s, err := e.TrackStep(ctx, input.Body.SessionID, domain.Step(input.Body.Step))
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-session",
		Method:      http.MethodPost,
		Path:        "/session/complete",
		Summary:     "Mark a session completed",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body SessionIDRequest
	}) (*sessionOutput, error) {
		s, err := e.CompleteSession(ctx, input.Body.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionOutput{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sessions",
		Method:      http.MethodGet,
		Path:        "/sessions",
		Summary:     "List sessions, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:"in-progress,completed,abandoned"`
		Limit  int    `query:"limit" minimum:"0"`
	}) (*struct {
		Body []domain.AuditSession `json:"body"`
	}, error) {
		items, err := e.ListSessions(ctx, repo.SessionFilters{
			Status: domain.SessionStatus(input.Status),
			Limit:  input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		if items == nil {
			items = []domain.AuditSession{}
		}
		return &struct {
			Body []domain.AuditSession `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-session",
		Method:      http.MethodGet,
		Path:        "/sessions/{sessionId}",
		Summary:     "Get session",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SessionID string `path:"sessionId"`
	}) (*sessionOutput, error) {
		s, err := e.GetSession(ctx, input.SessionID)
		if err != nil {
			return nil, handleError(err)
		}
		return &sessionOutput{Body: s}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent events",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entityKind" enum:"audit,session"`
		EntityID   string `query:"entityId"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body EventsPage `json:"body"`
	}, error) {
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, next, err := e.ActivityFeed(ctx, normalizeLimit(input.Limit), cursorID, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		page := EventsPage{Items: items}
		if page.Items == nil {
			page.Items = []domain.Event{}
		}
		if next > 0 {
			page.NextCursor = strconv.FormatInt(next, 10)
		}
		return &struct {
			Body EventsPage `json:"body"`
		}{Body: page}, nil
	})
}
