package analytics

import (
	"sort"
	"strings"
	"time"

	"founderaudit/internal/domain"
)

const unknownStatus = "Unknown"

type FounderProfile struct {
	Email              string               `json:"email"`
	Name               string               `json:"name"`
	TotalAudits        int                  `json:"totalAudits"`
	LastActive         time.Time            `json:"lastActive"`
	LatestStatus       string               `json:"latestStatus"`
	TotalEstimatedRisk float64              `json:"totalEstimatedRisk"`
	Segmentation       *domain.Segmentation `json:"segmentation,omitempty"`
}

// Founders builds one profile per respondent email. query filters by a
// case-insensitive substring of name or email; empty matches everyone.
// Profiles are ordered by most recent activity.
func Founders(audits []domain.Audit, query string) []FounderProfile {
	q := strings.ToLower(strings.TrimSpace(query))
	order, groups := groupByEmail(audits)

	out := make([]FounderProfile, 0, len(order))
	for _, email := range order {
		p := profile(email, groups[email])
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(p.Email, q) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	return out
}

func profile(email string, group []domain.Audit) FounderProfile {
	latest := group[0]
	p := FounderProfile{Email: email, TotalAudits: len(group)}
	for _, a := range group {
		p.TotalEstimatedRisk += a.Results.TotalBottleneckCost
		if a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	p.Name = latest.UserName
	p.LastActive = latest.CreatedAt
	p.LatestStatus = string(latest.Results.OverallStatus)
	if p.LatestStatus == "" {
		p.LatestStatus = unknownStatus
	}
	if latest.Segmentation != nil && !latest.Segmentation.Empty() {
		seg := *latest.Segmentation
		p.Segmentation = &seg
	}
	return p
}
