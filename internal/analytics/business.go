package analytics

import (
	"sort"
	"strings"

	"founderaudit/internal/domain"
)

type AuditSnapshot struct {
	TotalDecisions      int     `json:"totalDecisions"`
	TotalBottleneckCost float64 `json:"totalBottleneckCost"`
}

type Improvement struct {
	Email       string        `json:"email"`
	FirstAudit  AuditSnapshot `json:"firstAudit"`
	SecondAudit AuditSnapshot `json:"secondAudit"`
	Delta       AuditSnapshot `json:"delta"`
}

type BusinessReport struct {
	EmailCaptureRate       int           `json:"emailCaptureRate"`
	ReturnVisitorCount     int           `json:"returnVisitorCount"`
	ReturnVisitorEmails    []string      `json:"returnVisitorEmails"`
	PerformanceImprovement []Improvement `json:"performanceImprovement"`
}

// NormalizeEmail is the identity key used to group audits by respondent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// groupByEmail returns audits per normalized email plus the emails in
// first-seen order. Audits without an email are skipped.
func groupByEmail(audits []domain.Audit) ([]string, map[string][]domain.Audit) {
	var order []string
	groups := map[string][]domain.Audit{}
	for _, a := range audits {
		key := NormalizeEmail(a.UserEmail)
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], a)
	}
	return order, groups
}

// Business reports return visitors and how their second audit compares to the first.
func Business(sessions []domain.AuditSession, audits []domain.Audit) BusinessReport {
	report := BusinessReport{
		EmailCaptureRate:       Funnel(sessions, audits).EmailCaptureRate,
		ReturnVisitorEmails:    []string{},
		PerformanceImprovement: []Improvement{},
	}

	order, groups := groupByEmail(audits)
	for _, email := range order {
		group := groups[email]
		if len(group) < 2 {
			continue
		}
		report.ReturnVisitorEmails = append(report.ReturnVisitorEmails, email)

		sorted := append([]domain.Audit(nil), group...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })
		first := snapshot(sorted[0])
		second := snapshot(sorted[1])
		report.PerformanceImprovement = append(report.PerformanceImprovement, Improvement{
			Email:       email,
			FirstAudit:  first,
			SecondAudit: second,
			Delta: AuditSnapshot{
				TotalDecisions:      second.TotalDecisions - first.TotalDecisions,
				TotalBottleneckCost: second.TotalBottleneckCost - first.TotalBottleneckCost,
			},
		})
	}
	report.ReturnVisitorCount = len(report.ReturnVisitorEmails)
	return report
}

func snapshot(a domain.Audit) AuditSnapshot {
	return AuditSnapshot{
		TotalDecisions:      a.Results.TotalDecisions,
		TotalBottleneckCost: a.Results.TotalBottleneckCost,
	}
}
