package engine

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"founderaudit/internal/domain"
	"founderaudit/internal/engine/scoring"
	"founderaudit/internal/events"
	"founderaudit/internal/repo"
)

// AuditSubmission is what the wizard posts when the respondent finishes.
// Results are not part of it: they are always derived server-side.
type AuditSubmission struct {
	SessionID    string
	UserName     string
	UserEmail    string
	Segmentation *domain.Segmentation
	AuditData    domain.AuditData
}

// SubmitAudit validates, scores and stores one audit together with an
// audit.submitted event. A session id may be linked to at most one audit.
func (e Engine) SubmitAudit(ctx context.Context, sub AuditSubmission) (domain.Audit, error) {
	name := strings.TrimSpace(sub.UserName)
	email := strings.TrimSpace(sub.UserEmail)
	if name == "" {
		return domain.Audit{}, invalidf("userName is required")
	}
	if email == "" {
		return domain.Audit{}, invalidf("userEmail is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.Audit{}, invalidf("userEmail %q is not a valid address", email)
	}
	data, err := NormalizeAuditData(sub.AuditData)
	if err != nil {
		return domain.Audit{}, err
	}

	a := domain.Audit{
		ID:        uuid.New().String(),
		SessionID: strings.TrimSpace(sub.SessionID),
		UserName:  name,
		UserEmail: email,
		AuditData: data,
		Results:   scoring.Score(data),
		CreatedAt: e.now().UTC(),
	}
	if sub.Segmentation != nil && !sub.Segmentation.Empty() {
		seg := *sub.Segmentation
		a.Segmentation = &seg
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Audit{}, err
	}
	defer tx.Rollback()

	if a.SessionID != "" {
		existing, err := e.Repo.AuditIDForSession(ctx, tx, a.SessionID)
		switch {
		case err == nil:
			return domain.Audit{}, fmt.Errorf("%w: session %s already has audit %s", ErrConflict, a.SessionID, existing)
		case !errors.Is(err, repo.ErrNotFound):
			return domain.Audit{}, err
		}
	}
	if err := e.Repo.InsertAudit(ctx, tx, a); err != nil {
		return domain.Audit{}, fmt.Errorf("insert audit: %w", err)
	}
	payload := events.EventPayload{
		"userName":            a.UserName,
		"userEmail":           a.UserEmail,
		"totalDecisions":      a.Results.TotalDecisions,
		"totalBottleneckCost": a.Results.TotalBottleneckCost,
		"overallStatus":       a.Results.OverallStatus,
	}
	if a.SessionID != "" {
		payload["sessionId"] = a.SessionID
	}
	if a.Segmentation != nil {
		payload["segmentation"] = a.Segmentation
	}
	if err := e.eventWriter().Append(ctx, tx, events.AuditSubmitted, "audit", a.ID, payload); err != nil {
		return domain.Audit{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Audit{}, err
	}
	if e.Observer != nil {
		e.Observer.RecordSubmission(string(a.Results.OverallStatus))
	}
	return a, nil
}

// ScorePreview scores answers without storing anything.
func (e Engine) ScorePreview(data domain.AuditData) (domain.AuditData, domain.AuditResults, error) {
	norm, err := NormalizeAuditData(data)
	if err != nil {
		return domain.AuditData{}, domain.AuditResults{}, err
	}
	return norm, scoring.Score(norm), nil
}

// NormalizeAuditData rejects negative counts and amounts and fills display
// names for known catalog ids. Nil collections become empty.
func NormalizeAuditData(in domain.AuditData) (domain.AuditData, error) {
	out := in
	if in.AnnualCompensation < 0 {
		return out, invalidf("annualCompensation must not be negative")
	}
	if in.AverageMinutesPerDecision < 0 {
		return out, invalidf("averageMinutesPerDecision must not be negative")
	}

	names := map[string]string{}
	for _, c := range domain.DefaultCategories() {
		names["category:"+c.ID] = c.Name
	}
	for _, d := range domain.DefaultDelayTax() {
		names["delay:"+d.ID] = d.Name
	}
	for _, p := range domain.DefaultPatterns() {
		names["pattern:"+p.ID] = p.Name
	}

	out.DecisionCategories = make([]domain.DecisionCategory, 0, len(in.DecisionCategories))
	for _, c := range in.DecisionCategories {
		if c.Decisions < 0 || c.CouldDelegate < 0 || c.OnlyYou < 0 || c.NotSure < 0 {
			return out, invalidf("decision category %q has a negative count", c.ID)
		}
		if c.Name == "" {
			c.Name = names["category:"+c.ID]
		}
		out.DecisionCategories = append(out.DecisionCategories, c)
	}
	out.DelayTax = make([]domain.DelayTaxItem, 0, len(in.DelayTax))
	for _, d := range in.DelayTax {
		if d.Amount < 0 {
			return out, invalidf("delay tax %q has a negative amount", d.ID)
		}
		if d.Name == "" {
			d.Name = names["delay:"+d.ID]
		}
		out.DelayTax = append(out.DelayTax, d)
	}
	out.Patterns = make([]domain.BottleneckPattern, 0, len(in.Patterns))
	for _, p := range in.Patterns {
		if p.Name == "" {
			p.Name = names["pattern:"+p.ID]
		}
		out.Patterns = append(out.Patterns, p)
	}
	return out, nil
}

func (e Engine) GetAudit(ctx context.Context, id string) (domain.Audit, error) {
	return e.Repo.GetAudit(ctx, id)
}

func (e Engine) ListAudits(ctx context.Context, f repo.AuditFilters) ([]domain.Audit, error) {
	return e.Repo.ListAudits(ctx, f)
}
