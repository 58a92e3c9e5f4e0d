// Package export renders audits and founder profiles as CSV, XLSX and
// terminal tables.
package export

import (
	"strconv"
	"time"

	"founderaudit/internal/analytics"
	"founderaudit/internal/domain"
)

var AuditHeaders = []string{
	"Name", "Email", "Founder Role", "Revenue Range", "Team Size", "Industry Vertical",
	"Total Decisions", "Decision Load", "Annual Cost", "Delay Tax", "Bottleneck Cost",
	"Patterns Checked", "Overall Status", "Created At",
}

var FounderHeaders = []string{
	"Name", "Email", "Founder Role", "Revenue Range", "Team Size", "Industry",
	"Total Audits", "Last Active", "Latest Status",
}

const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

// auditCells returns one audit row; numbers stay typed for spreadsheet output.
func auditCells(a domain.Audit) []any {
	seg := segmentationLabels(a.Segmentation)
	return []any{
		a.UserName,
		a.UserEmail,
		seg[0], seg[1], seg[2], seg[3],
		a.Results.TotalDecisions,
		string(a.Results.DecisionLoadLevel),
		a.Results.AnnualCost,
		a.Results.DelayTaxAnnual,
		a.Results.TotalBottleneckCost,
		a.Results.PatternsChecked,
		string(a.Results.OverallStatus),
		a.CreatedAt.UTC().Format(createdAtLayout),
	}
}

func founderCells(p analytics.FounderProfile) []any {
	seg := segmentationLabels(p.Segmentation)
	return []any{
		p.Name,
		p.Email,
		seg[0], seg[1], seg[2], seg[3],
		p.TotalAudits,
		p.LastActive.Format(time.DateOnly),
		p.LatestStatus,
	}
}

func segmentationLabels(s *domain.Segmentation) [4]string {
	var out [4]string
	if s == nil {
		return out
	}
	for i, f := range domain.SegmentFields {
		out[i] = domain.SegmentLabel(f, s.Value(f))
	}
	return out
}

func stringify(cells []any) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		switch v := c.(type) {
		case string:
			out[i] = v
		case int:
			out[i] = strconv.Itoa(v)
		case float64:
			out[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return out
}

// AuditRow is the string form of one audit export row.
func AuditRow(a domain.Audit) []string {
	return stringify(auditCells(a))
}

func FounderRow(p analytics.FounderProfile) []string {
	return stringify(founderCells(p))
}
