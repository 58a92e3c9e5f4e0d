package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"founderaudit/internal/domain"
	"founderaudit/internal/events"
	"founderaudit/internal/repo"
)

// StartSession opens a tracking session. An empty id gets a fresh uuid;
// an id that already exists returns the stored session unchanged.
func (e Engine) StartSession(ctx context.Context, sessionID string) (domain.AuditSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.AuditSession{}, err
	}
	defer tx.Rollback()

	existing, err := e.Repo.GetSessionTx(ctx, tx, sessionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.AuditSession{}, err
	}

	now := e.now().UTC()
	s := domain.AuditSession{
		SessionID: sessionID,
		StartTime: now,
		LastStep:  domain.StepIntro,
		Status:    domain.SessionInProgress,
		CreatedAt: now,
	}
	if err := e.Repo.InsertSession(ctx, tx, s); err != nil {
		return domain.AuditSession{}, err
	}
	if err := e.eventWriter().Append(ctx, tx, events.SessionStarted, "session", s.SessionID, nil); err != nil {
		return domain.AuditSession{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.AuditSession{}, err
	}
	e.recordSession("start", string(s.LastStep))
	return s, nil
}

// TrackStep records the wizard step a session is on. Updates to a completed session
// are ignored so a late beacon cannot reopen it.
func (e Engine) TrackStep(ctx context.Context, sessionID string, step domain.Step) (domain.AuditSession, error) {
	if !domain.ValidStep(step) {
		return domain.AuditSession{}, invalidf("unknown step %q", step)
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.AuditSession{}, err
	}
	defer tx.Rollback()

	s, err := e.Repo.GetSessionTx(ctx, tx, sessionID)
	if err != nil {
		return domain.AuditSession{}, err
	}
	if s.Status == domain.SessionCompleted {
		return s, nil
	}
	if err := e.Repo.UpdateSessionStep(ctx, tx, sessionID, step); err != nil {
		return domain.AuditSession{}, err
	}
	if err := e.eventWriter().Append(ctx, tx, events.SessionStep, "session", sessionID, events.EventPayload{"step": step, "previous": s.LastStep}); err != nil {
		return domain.AuditSession{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.AuditSession{}, err
	}
	s.LastStep = step
	e.recordSession("step", string(step))
	return s, nil
}

// CompleteSession closes a session. Completing twice keeps the first end time.
func (e Engine) CompleteSession(ctx context.Context, sessionID string) (domain.AuditSession, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.AuditSession{}, err
	}
	defer tx.Rollback()

	s, err := e.Repo.GetSessionTx(ctx, tx, sessionID)
	if err != nil {
		return domain.AuditSession{}, err
	}
	if s.Status == domain.SessionCompleted {
		return s, nil
	}
	end := e.now().UTC()
	if err := e.Repo.CompleteSession(ctx, tx, sessionID, end); err != nil {
		return domain.AuditSession{}, err
	}
	durationMs := end.Sub(s.StartTime).Milliseconds()
	if err := e.eventWriter().Append(ctx, tx, events.SessionCompleted, "session", sessionID, events.EventPayload{"durationMs": durationMs}); err != nil {
		return domain.AuditSession{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.AuditSession{}, err
	}
	s.Status = domain.SessionCompleted
	s.LastStep = domain.StepCompleted
	s.EndTime = &end
	e.recordSession("complete", string(domain.StepCompleted))
	return s, nil
}

func (e Engine) GetSession(ctx context.Context, sessionID string) (domain.AuditSession, error) {
	return e.Repo.GetSession(ctx, sessionID)
}

func (e Engine) ListSessions(ctx context.Context, f repo.SessionFilters) ([]domain.AuditSession, error) {
	if f.Status != "" {
		switch f.Status {
		case domain.SessionInProgress, domain.SessionCompleted, domain.SessionAbandoned:
		default:
			return nil, invalidf("unknown session status %q", f.Status)
		}
	}
	return e.Repo.ListSessions(ctx, f)
}

// ActivityFeed returns events newest first and the cursor for the next page
// (0 when exhausted).
func (e Engine) ActivityFeed(ctx context.Context, limit int, cursor int64, f repo.EventFilters) ([]domain.Event, int64, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	evts, err := e.Repo.LatestEventsFrom(ctx, limit, cursor, f)
	if err != nil {
		return nil, 0, err
	}
	var next int64
	if len(evts) == limit {
		next = evts[len(evts)-1].ID
	}
	return evts, next, nil
}
