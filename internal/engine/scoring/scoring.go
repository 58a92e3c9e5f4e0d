// Package scoring derives AuditResults from one respondent's answers.
// Every function here is pure; degenerate inputs produce degenerate numbers, never errors.
package scoring

import "founderaudit/internal/domain"

const (
	// HoursPerYear is 50 working weeks of 40 hours.
	HoursPerYear = 2000
	// WorkingWeeks annualizes weekly hours.
	WorkingWeeks = 50
	// DelayTaxScale turns the 30-day delay-tax window into a yearly figure.
	DelayTaxScale = 12
)

// Totals are the per-submission sums over decision categories.
type Totals struct {
	TotalDecisions     int
	TotalCouldDelegate int
	TotalNotSure       int
}

// DecisionsForCalc is the decision count the time cost is based on:
// delegatable decisions when any were reported, otherwise all decisions.
func (t Totals) DecisionsForCalc() int {
	if t.TotalCouldDelegate > 0 {
		return t.TotalCouldDelegate
	}
	return t.TotalDecisions
}

// Tally sums decisions and delegatable decisions and counts categories marked not sure.
func Tally(categories []domain.DecisionCategory) Totals {
	var t Totals
	for _, c := range categories {
		t.TotalDecisions += c.Decisions
		t.TotalCouldDelegate += c.CouldDelegate
		if c.NotSure > 0 {
			t.TotalNotSure++
		}
	}
	return t
}

// Score computes the results for one submission.
func Score(data domain.AuditData) domain.AuditResults {
	totals := Tally(data.DecisionCategories)

	hourlyRate := data.AnnualCompensation / HoursPerYear
	hoursPerWeek := float64(totals.DecisionsForCalc()) * data.AverageMinutesPerDecision / 60
	annualCost := hoursPerWeek * WorkingWeeks * hourlyRate

	var delay30 float64
	for _, item := range data.DelayTax {
		delay30 += item.Amount
	}
	delayTaxAnnual := delay30 * DelayTaxScale

	patternsChecked := 0
	for _, p := range data.Patterns {
		if p.Checked {
			patternsChecked++
		}
	}

	return domain.AuditResults{
		TotalDecisions:      totals.TotalDecisions,
		DecisionLoadLevel:   LoadLevel(totals.TotalDecisions),
		HourlyRate:          hourlyRate,
		HoursPerWeek:        hoursPerWeek,
		AnnualCost:          annualCost,
		DelayTaxAnnual:      delayTaxAnnual,
		TotalBottleneckCost: annualCost + delayTaxAnnual,
		PatternsChecked:     patternsChecked,
		OverallStatus:       OverallStatus(totals.TotalDecisions, patternsChecked),
	}
}

// LoadLevel classifies a decision count. Threshold values belong to the lower tier.
func LoadLevel(totalDecisions int) domain.LoadLevel {
	switch {
	case totalDecisions <= 15:
		return domain.LoadHealthy
	case totalDecisions <= 30:
		return domain.LoadElevated
	case totalDecisions <= 50:
		return domain.LoadCritical
	default:
		return domain.LoadDanger
	}
}

// OverallStatus classifies a submission. Counts between the optimized and
// critical bands (20-34 decisions, 2-3 patterns) fall into scaling-risk.
func OverallStatus(totalDecisions, patternsChecked int) domain.OverallStatus {
	switch {
	case totalDecisions < 20 && patternsChecked <= 1:
		return domain.StatusOptimized
	case totalDecisions >= 35 || patternsChecked >= 4:
		return domain.StatusCritical
	default:
		return domain.StatusScalingRisk
	}
}
