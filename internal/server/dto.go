package server

import (
	"github.com/danielgtaylor/huma/v2"

	"founderaudit/internal/analytics"
	"founderaudit/internal/domain"
)

// Request payloads

// NotSureValue accepts both stored shapes of notSure: a boolean flag or a count.
type NotSureValue int

func (NotSureValue) Schema(r huma.Registry) *huma.Schema {
	return &huma.Schema{
		Description: "Count of not-sure decisions; true and false are accepted as 1 and 0.",
		OneOf: []*huma.Schema{
			{Type: huma.TypeBoolean},
			{Type: huma.TypeInteger},
		},
	}
}

func (v *NotSureValue) UnmarshalJSON(data []byte) error {
	n, err := domain.ParseNotSure(data)
	if err != nil {
		return err
	}
	*v = NotSureValue(n)
	return nil
}

type DecisionCategoryRequest struct {
	ID            string       `json:"id" minLength:"1"`
	Name          string       `json:"name,omitempty"`
	Decisions     int          `json:"decisions,omitempty"`
	CouldDelegate int          `json:"couldDelegate,omitempty"`
	OnlyYou       int          `json:"onlyYou,omitempty"`
	NotSure       NotSureValue `json:"notSure,omitempty"`
}

type DelayTaxRequest struct {
	ID     string  `json:"id" minLength:"1"`
	Name   string  `json:"name,omitempty"`
	Amount float64 `json:"amount,omitempty"`
}

type PatternRequest struct {
	ID          string `json:"id" minLength:"1"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Checked     bool   `json:"checked,omitempty"`
}

type AuditDataRequest struct {
	DecisionCategories        []DecisionCategoryRequest `json:"decisionCategories,omitempty"`
	AnnualCompensation        float64                   `json:"annualCompensation,omitempty"`
	AverageMinutesPerDecision float64                   `json:"averageMinutesPerDecision,omitempty"`
	DelayTax                  []DelayTaxRequest         `json:"delayTax,omitempty"`
	Patterns                  []PatternRequest          `json:"patterns,omitempty"`
}

func (r AuditDataRequest) toDomain() domain.AuditData {
	out := domain.AuditData{
		AnnualCompensation:        r.AnnualCompensation,
		AverageMinutesPerDecision: r.AverageMinutesPerDecision,
	}
	for _, c := range r.DecisionCategories {
		out.DecisionCategories = append(out.DecisionCategories, domain.DecisionCategory{
			ID:            c.ID,
			Name:          c.Name,
			Decisions:     c.Decisions,
			CouldDelegate: c.CouldDelegate,
			OnlyYou:       c.OnlyYou,
			NotSure:       int(c.NotSure),
		})
	}
	for _, d := range r.DelayTax {
		out.DelayTax = append(out.DelayTax, domain.DelayTaxItem{ID: d.ID, Name: d.Name, Amount: d.Amount})
	}
	for _, p := range r.Patterns {
		out.Patterns = append(out.Patterns, domain.BottleneckPattern{ID: p.ID, Name: p.Name, Description: p.Description, Checked: p.Checked})
	}
	return out
}

type SegmentationRequest struct {
	FounderRole      string `json:"founderRole,omitempty" example:"solo-founder"`
	RevenueRange     string `json:"revenueRange,omitempty" example:"1m-5m"`
	TeamSize         string `json:"teamSize,omitempty" example:"11-25"`
	IndustryVertical string `json:"industryVertical,omitempty" example:"saas"`
}

type SubmitAuditRequest struct {
	SessionID    string               `json:"sessionId,omitempty"`
	UserName     string               `json:"userName"`
	UserEmail    string               `json:"userEmail" format:"email"`
	Segmentation *SegmentationRequest `json:"segmentation,omitempty"`
	AuditData    AuditDataRequest     `json:"auditData"`
	// Results sent by the client are ignored; they are recomputed on submit.
	Results map[string]any `json:"results,omitempty" doc:"Ignored; results are derived server-side."`
}

type SessionRequest struct {
	SessionID string `json:"sessionId,omitempty" doc:"Generated when empty."`
}

type SessionIDRequest struct {
	SessionID string `json:"sessionId" minLength:"1"`
}

type SessionStepRequest struct {
	SessionID string `json:"sessionId" minLength:"1"`
	Step      string `json:"step" enum:"intro,email,segmentation,decisions,cost,patterns,completed"`
}

// Response payloads

type ScoreResponse struct {
	AuditData domain.AuditData    `json:"auditData"`
	Results   domain.AuditResults `json:"results"`
}

type TrendsResponse struct {
	Trends []analytics.TrendPoint `json:"trends"`
	Period string                 `json:"period" enum:"week,month"`
}

type EventsPage struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
}
