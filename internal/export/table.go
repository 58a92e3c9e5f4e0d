package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"founderaudit/internal/analytics"
	"founderaudit/internal/domain"
)

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(header)
	return tw
}

func money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 0, 64)
}

func RenderAudits(w io.Writer, audits []domain.Audit) {
	tw := newTable(w, table.Row{"ID", "Name", "Email", "Decisions", "Load", "Bottleneck Cost", "Status", "Created At"})
	for _, a := range audits {
		tw.AppendRow(table.Row{a.ID, a.UserName, a.UserEmail, a.Results.TotalDecisions, a.Results.DecisionLoadLevel,
			money(a.Results.TotalBottleneckCost), a.Results.OverallStatus, a.CreatedAt.Format(createdAtLayout)})
	}
	tw.Render()
}

func RenderResults(w io.Writer, r domain.AuditResults) {
	tw := newTable(w, table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Total decisions", r.TotalDecisions},
		{"Decision load", r.DecisionLoadLevel},
		{"Hourly rate", money(r.HourlyRate)},
		{"Hours per week", strconv.FormatFloat(r.HoursPerWeek, 'f', 1, 64)},
		{"Annual cost", money(r.AnnualCost)},
		{"Delay tax (annual)", money(r.DelayTaxAnnual)},
		{"Total bottleneck cost", money(r.TotalBottleneckCost)},
		{"Patterns checked", r.PatternsChecked},
		{"Overall status", r.OverallStatus},
	})
	tw.Render()
}

func RenderSessions(w io.Writer, sessions []domain.AuditSession) {
	tw := newTable(w, table.Row{"Session", "Status", "Last Step", "Started", "Ended"})
	for _, s := range sessions {
		ended := ""
		if s.EndTime != nil {
			ended = s.EndTime.Format(createdAtLayout)
		}
		tw.AppendRow(table.Row{s.SessionID, s.Status, s.LastStep, s.StartTime.Format(createdAtLayout), ended})
	}
	tw.Render()
}

func RenderCohort(w io.Writer, rep *analytics.CohortReport) {
	if rep == nil {
		fmt.Fprintln(w, "no audits")
		return
	}
	tw := newTable(w, table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Total audits", rep.Overview.TotalAudits},
		{"Avg bottleneck cost", money(rep.Overview.AvgBottleneckCost)},
		{"Avg decision load", strconv.FormatFloat(rep.Overview.AvgDecisionLoad, 'f', 1, 64)},
		{"Avg compensation", money(rep.Overview.AvgCompensation)},
		{"Operational share", fmt.Sprintf("%d%% (%d)", rep.OperationalVsStrategic.OperationalPct, rep.OperationalVsStrategic.TotalOperational)},
		{"Strategic share", fmt.Sprintf("%d%% (%d)", rep.OperationalVsStrategic.StrategicPct, rep.OperationalVsStrategic.TotalStrategic)},
	})
	tw.Render()

	ct := newTable(w, table.Row{"Category", "Total", "Delegate", "Only You", "Not Sure"})
	for _, c := range rep.Categories {
		ct.AppendRow(table.Row{c.Name, c.Total, c.Delegate, c.OnlyYou, c.NotSure})
	}
	ct.Render()

	pt := newTable(w, table.Row{"Top Pattern", "Count"})
	for _, p := range rep.Patterns {
		pt.AppendRow(table.Row{p.Name, p.Count})
	}
	pt.Render()

	dt := newTable(w, table.Row{"Delay Tax", "Total"})
	for _, d := range rep.DelayTax {
		dt.AppendRow(table.Row{d.Name, money(d.Value)})
	}
	dt.Render()

	st := newTable(w, table.Row{"Segment", "Value", "Count"})
	segments := []struct {
		field domain.SegmentField
		rows  []analytics.NameCount
	}{
		{domain.FieldFounderRole, rep.Segmentation.FounderRole},
		{domain.FieldRevenueRange, rep.Segmentation.RevenueRange},
		{domain.FieldTeamSize, rep.Segmentation.TeamSize},
		{domain.FieldIndustryVertical, rep.Segmentation.IndustryVertical},
	}
	for _, seg := range segments {
		for _, nc := range seg.rows {
			st.AppendRow(table.Row{seg.field, domain.SegmentLabel(seg.field, nc.Name), nc.Count})
		}
	}
	st.Render()
}

func RenderSessionSummary(w io.Writer, sum *analytics.SessionSummary) {
	if sum == nil {
		fmt.Fprintln(w, "no sessions")
		return
	}
	tw := newTable(w, table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Total sessions", sum.TotalSessions},
		{"Completion rate", fmt.Sprintf("%d%%", sum.CompletionRate)},
		{"Avg completion time", sum.AvgCompletionTime},
	})
	tw.Render()
	dt := newTable(w, table.Row{"Dropped At", "Sessions"})
	for _, d := range sum.DropOff {
		dt.AppendRow(table.Row{d.Name, int(d.Value)})
	}
	dt.Render()
}

func RenderFunnel(w io.Writer, f analytics.FunnelReport) {
	tw := newTable(w, table.Row{"Stage", "Count", "Of Started"})
	for _, s := range f.Steps {
		tw.AppendRow(table.Row{s.Name, s.Count, fmt.Sprintf("%d%%", s.Conversion)})
	}
	tw.AppendFooter(table.Row{"Email capture", fmt.Sprintf("%d%%", f.EmailCaptureRate), ""})
	tw.Render()
	if f.LargestDropStep != "" {
		fmt.Fprintf(w, "largest drop: %d after %s\n", f.LargestDrop, f.LargestDropStep)
	}
}

func RenderTrends(w io.Writer, points []analytics.TrendPoint) {
	tw := newTable(w, table.Row{"Period", "Sessions", "Completed", "Rate", "Audits", "Avg Cost"})
	for _, p := range points {
		tw.AppendRow(table.Row{p.Period, p.Sessions, p.Completed, fmt.Sprintf("%d%%", p.CompletionRate), p.Audits, money(p.AvgBottleneckCost)})
	}
	tw.Render()
}

func RenderBusiness(w io.Writer, b analytics.BusinessReport) {
	tw := newTable(w, table.Row{"Metric", "Value"})
	tw.AppendRows([]table.Row{
		{"Email capture rate", fmt.Sprintf("%d%%", b.EmailCaptureRate)},
		{"Return visitors", b.ReturnVisitorCount},
	})
	tw.Render()
	it := newTable(w, table.Row{"Email", "First Decisions", "Second Decisions", "Cost Delta"})
	for _, imp := range b.PerformanceImprovement {
		it.AppendRow(table.Row{imp.Email, imp.FirstAudit.TotalDecisions, imp.SecondAudit.TotalDecisions, money(imp.Delta.TotalBottleneckCost)})
	}
	it.Render()
}

func RenderFounders(w io.Writer, founders []analytics.FounderProfile) {
	tw := newTable(w, table.Row{"Name", "Email", "Audits", "Last Active", "Latest Status", "Estimated Risk"})
	for _, p := range founders {
		tw.AppendRow(table.Row{p.Name, p.Email, p.TotalAudits, p.LastActive.Format("2006-01-02"), p.LatestStatus, money(p.TotalEstimatedRisk)})
	}
	tw.Render()
}
