package domain

import (
	"encoding/json"
	"time"
)

type DecisionCategory struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Decisions     int    `json:"decisions"`
	CouldDelegate int    `json:"couldDelegate"`
	OnlyYou       int    `json:"onlyYou"`
	// NotSure is a count. Older submissions stored a boolean flag; see ParseNotSure.
	NotSure int `json:"notSure"`
}

// UnmarshalJSON accepts both historical notSure shapes (boolean or number).
func (c *DecisionCategory) UnmarshalJSON(data []byte) error {
	type plain DecisionCategory
	var wire struct {
		plain
		NotSure json.RawMessage `json:"notSure"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	n, err := ParseNotSure(wire.NotSure)
	if err != nil {
		return err
	}
	*c = DecisionCategory(wire.plain)
	c.NotSure = n
	return nil
}

type DelayTaxItem struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

type BottleneckPattern struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Checked     bool   `json:"checked"`
}

type AuditData struct {
	DecisionCategories        []DecisionCategory  `json:"decisionCategories"`
	AnnualCompensation        float64             `json:"annualCompensation"`
	AverageMinutesPerDecision float64             `json:"averageMinutesPerDecision"`
	DelayTax                  []DelayTaxItem      `json:"delayTax"`
	Patterns                  []BottleneckPattern `json:"patterns"`
}

type LoadLevel string

const (
	LoadHealthy  LoadLevel = "healthy"
	LoadElevated LoadLevel = "elevated"
	LoadCritical LoadLevel = "critical"
	LoadDanger   LoadLevel = "danger"
)

type OverallStatus string

const (
	StatusOptimized   OverallStatus = "optimized"
	StatusScalingRisk OverallStatus = "scaling-risk"
	StatusCritical    OverallStatus = "critical"
)

type AuditResults struct {
	TotalDecisions      int           `json:"totalDecisions"`
	DecisionLoadLevel   LoadLevel     `json:"decisionLoadLevel" enum:"healthy,elevated,critical,danger"`
	HourlyRate          float64       `json:"hourlyRate"`
	HoursPerWeek        float64       `json:"hoursPerWeek"`
	AnnualCost          float64       `json:"annualCost"`
	DelayTaxAnnual      float64       `json:"delayTaxAnnual"`
	TotalBottleneckCost float64       `json:"totalBottleneckCost"`
	PatternsChecked     int           `json:"patternsChecked"`
	OverallStatus       OverallStatus `json:"overallStatus" enum:"optimized,scaling-risk,critical"`
}

type Segmentation struct {
	FounderRole      string `json:"founderRole,omitempty"`
	RevenueRange     string `json:"revenueRange,omitempty"`
	TeamSize         string `json:"teamSize,omitempty"`
	IndustryVertical string `json:"industryVertical,omitempty"`
}

// Empty reports whether no segmentation field is set.
func (s Segmentation) Empty() bool {
	return s.FounderRole == "" && s.RevenueRange == "" && s.TeamSize == "" && s.IndustryVertical == ""
}

type Audit struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"sessionId,omitempty"`
	UserName     string        `json:"userName"`
	UserEmail    string        `json:"userEmail"`
	Segmentation *Segmentation `json:"segmentation,omitempty"`
	AuditData    AuditData     `json:"auditData"`
	Results      AuditResults  `json:"results"`
	CreatedAt    time.Time     `json:"createdAt" format:"date-time"`
}

type Step string

const (
	StepIntro        Step = "intro"
	StepEmail        Step = "email"
	StepSegmentation Step = "segmentation"
	StepDecisions    Step = "decisions"
	StepCost         Step = "cost"
	StepPatterns     Step = "patterns"
	StepCompleted    Step = "completed"
	StepUnknown      Step = "unknown"
)

type SessionStatus string

const (
	SessionInProgress SessionStatus = "in-progress"
	SessionCompleted  SessionStatus = "completed"
	// SessionAbandoned is part of the stored enumeration but no transition sets it.
	SessionAbandoned SessionStatus = "abandoned"
)

type AuditSession struct {
	SessionID string        `json:"sessionId"`
	StartTime time.Time     `json:"startTime" format:"date-time"`
	EndTime   *time.Time    `json:"endTime,omitempty" format:"date-time"`
	LastStep  Step          `json:"lastStep"`
	Status    SessionStatus `json:"status" enum:"in-progress,completed,abandoned"`
	CreatedAt time.Time     `json:"createdAt" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entityKind"`
	EntityID   string `json:"entityId,omitempty"`
	Payload    string `json:"payloadJson"`
}
