package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecisionCategoryIDs is the fixed category enumeration, in wizard order.
var DecisionCategoryIDs = []string{
	"hiring", "team", "product", "technical", "customer",
	"spending", "sales", "pricing", "operations", "marketing",
}

// OperationalCategoryIDs are the categories counted as operational (vs strategic) decisions.
var OperationalCategoryIDs = []string{
	"hiring", "team", "customer", "spending", "operations", "marketing",
}

var PatternIDs = []string{
	"approval-addict", "only-i-know", "heroic-firefighter", "perfectionist-blocker", "meeting-magnet",
}

// TrackedSteps lists every lastStep value a session may hold.
var TrackedSteps = []Step{
	StepIntro, StepEmail, StepSegmentation, StepDecisions, StepCost, StepPatterns, StepCompleted,
}

func IsOperational(categoryID string) bool {
	for _, id := range OperationalCategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

func ValidStep(s Step) bool {
	for _, v := range TrackedSteps {
		if v == s {
			return true
		}
	}
	return false
}

// ParseNotSure normalizes the notSure field into a count.
// Absent, null and false map to 0, true maps to 1, numbers are truncated to int.
func ParseNotSure(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, fmt.Errorf("invalid notSure value %s: must be boolean or number", string(raw))
	}
	if f < 0 {
		return 0, nil
	}
	return int(f), nil
}

func DefaultCategories() []DecisionCategory {
	return []DecisionCategory{
		{ID: "hiring", Name: "Hiring / People decisions"},
		{ID: "team", Name: "Team conflicts / Performance issues"},
		{ID: "product", Name: "Product / Feature prioritization"},
		{ID: "technical", Name: "Technical / Architecture"},
		{ID: "customer", Name: "Customer issues / Escalations"},
		{ID: "spending", Name: "Spending / Budget approvals"},
		{ID: "sales", Name: "Sales / Deal approvals"},
		{ID: "pricing", Name: "Pricing / Packaging"},
		{ID: "operations", Name: "Operations / Process questions"},
		{ID: "marketing", Name: "Marketing / Content approvals"},
	}
}

func DefaultDelayTax() []DelayTaxItem {
	return []DelayTaxItem{
		{ID: "late-launches", Name: "Product/feature launches that shipped late"},
		{ID: "stalled-deals", Name: "Deals that stalled waiting for your approval"},
		{ID: "churned-customers", Name: "Customers who churned while waiting for resolution"},
	}
}

func DefaultPatterns() []BottleneckPattern {
	return []BottleneckPattern{
		{
			ID:          "approval-addict",
			Name:        "The Approval Addict",
			Description: "You require sign-off on things your team should own.",
		},
		{
			ID:          "only-i-know",
			Name:        `The "Only I Know" Problem`,
			Description: "Only you understand the full picture, so only you can decide.",
		},
		{
			ID:          "heroic-firefighter",
			Name:        "The Heroic Firefighter",
			Description: "You swoop in to solve problems your team could handle.",
		},
		{
			ID:          "perfectionist-blocker",
			Name:        "The Perfectionist Blocker",
			Description: "You delay decisions waiting for perfect information.",
		},
		{
			ID:          "meeting-magnet",
			Name:        "The Meeting Magnet",
			Description: `You're in every meeting "just in case."`,
		},
	}
}

// DefaultAuditData mirrors the wizard's initial state.
func DefaultAuditData() AuditData {
	return AuditData{
		DecisionCategories:        DefaultCategories(),
		AnnualCompensation:        400000,
		AverageMinutesPerDecision: 20,
		DelayTax:                  DefaultDelayTax(),
		Patterns:                  DefaultPatterns(),
	}
}
