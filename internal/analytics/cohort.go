package analytics

import "founderaudit/internal/domain"

const topPatternLimit = 5

type Overview struct {
	TotalAudits       int     `json:"totalAudits"`
	AvgBottleneckCost float64 `json:"avgBottleneckCost"`
	AvgDecisionLoad   float64 `json:"avgDecisionLoad"`
	AvgCompensation   float64 `json:"avgCompensation"`
}

type CategoryStat struct {
	Name     string `json:"name"`
	Total    int    `json:"total"`
	Delegate int    `json:"delegate"`
	OnlyYou  int    `json:"onlyYou"`
	NotSure  int    `json:"notSure"`
}

type OperationalSplit struct {
	OperationalPct   int `json:"operationalPct"`
	StrategicPct     int `json:"strategicPct"`
	TotalOperational int `json:"totalOperational"`
	TotalStrategic   int `json:"totalStrategic"`
}

type SegmentationBreakdown struct {
	FounderRole      []NameCount `json:"founderRole"`
	RevenueRange     []NameCount `json:"revenueRange"`
	TeamSize         []NameCount `json:"teamSize"`
	IndustryVertical []NameCount `json:"industryVertical"`
}

type CohortReport struct {
	Overview               Overview              `json:"overview"`
	Patterns               []NameCount           `json:"patterns"`
	Categories             []CategoryStat        `json:"categories"`
	DelayTax               []NameValue           `json:"delayTax"`
	OperationalVsStrategic OperationalSplit      `json:"operationalVsStrategic"`
	Segmentation           SegmentationBreakdown `json:"segmentation"`
}

// cohortRecord is the normalized view of one audit used by Cohort.
type cohortRecord struct {
	results      domain.AuditResults
	compensation float64
	categories   []domain.DecisionCategory
	delayTax     []domain.DelayTaxItem
	patterns     []domain.BottleneckPattern
	segmentation domain.Segmentation
}

func normalizeCohortRecord(a domain.Audit) cohortRecord {
	rec := cohortRecord{
		results:      a.Results,
		compensation: a.AuditData.AnnualCompensation,
		categories:   a.AuditData.DecisionCategories,
		delayTax:     a.AuditData.DelayTax,
		patterns:     a.AuditData.Patterns,
	}
	if a.Segmentation != nil {
		rec.segmentation = *a.Segmentation
	}
	return rec
}

// Cohort aggregates persisted audits. It returns nil for an empty input.
func Cohort(audits []domain.Audit) *CohortReport {
	if len(audits) == 0 {
		return nil
	}
	records := make([]cohortRecord, 0, len(audits))
	for _, a := range audits {
		records = append(records, normalizeCohortRecord(a))
	}

	return &CohortReport{
		Overview:               cohortOverview(records),
		Patterns:               topPatterns(records),
		Categories:             categoryBreakdown(records),
		DelayTax:               delayTaxBreakdown(records),
		OperationalVsStrategic: operationalSplit(records),
		Segmentation:           segmentationBreakdown(records),
	}
}

func cohortOverview(records []cohortRecord) Overview {
	var cost, decisions, comp float64
	for _, r := range records {
		cost += r.results.TotalBottleneckCost
		decisions += float64(r.results.TotalDecisions)
		comp += r.compensation
	}
	n := len(records)
	return Overview{
		TotalAudits:       n,
		AvgBottleneckCost: mean(cost, n),
		AvgDecisionLoad:   mean(decisions, n),
		AvgCompensation:   mean(comp, n),
	}
}

func topPatterns(records []cohortRecord) []NameCount {
	counts := newOrderedSum[int]()
	for _, r := range records {
		for _, p := range r.patterns {
			if p.Checked {
				counts.add(p.Name, 1)
			}
		}
	}
	out := counts.counts()
	if len(out) > topPatternLimit {
		out = out[:topPatternLimit]
	}
	return out
}

// categoryBreakdown groups by category name, in first-seen order.
func categoryBreakdown(records []cohortRecord) []CategoryStat {
	var order []string
	stats := map[string]*CategoryStat{}
	for _, r := range records {
		for _, c := range r.categories {
			st, ok := stats[c.Name]
			if !ok {
				st = &CategoryStat{Name: c.Name}
				stats[c.Name] = st
				order = append(order, c.Name)
			}
			st.Total += c.Decisions
			st.Delegate += c.CouldDelegate
			st.OnlyYou += c.OnlyYou
			st.NotSure += c.NotSure
		}
	}
	out := make([]CategoryStat, 0, len(order))
	for _, name := range order {
		out = append(out, *stats[name])
	}
	return out
}

func delayTaxBreakdown(records []cohortRecord) []NameValue {
	sums := newOrderedSum[float64]()
	for _, r := range records {
		for _, item := range r.delayTax {
			sums.add(item.Name, item.Amount)
		}
	}
	return sums.values()
}

func operationalSplit(records []cohortRecord) OperationalSplit {
	var split OperationalSplit
	for _, r := range records {
		for _, c := range r.categories {
			if domain.IsOperational(c.ID) {
				split.TotalOperational += c.Decisions
			} else {
				split.TotalStrategic += c.Decisions
			}
		}
	}
	total := split.TotalOperational + split.TotalStrategic
	if total > 0 {
		split.OperationalPct = percent(split.TotalOperational, total)
		split.StrategicPct = percent(split.TotalStrategic, total)
	}
	return split
}

func segmentationBreakdown(records []cohortRecord) SegmentationBreakdown {
	tallies := map[domain.SegmentField]*orderedSum[int]{}
	for _, f := range domain.SegmentFields {
		tallies[f] = newOrderedSum[int]()
	}
	for _, r := range records {
		for _, f := range domain.SegmentFields {
			if v := r.segmentation.Value(f); v != "" {
				tallies[f].add(v, 1)
			}
		}
	}
	return SegmentationBreakdown{
		FounderRole:      tallies[domain.FieldFounderRole].counts(),
		RevenueRange:     tallies[domain.FieldRevenueRange].counts(),
		TeamSize:         tallies[domain.FieldTeamSize].counts(),
		IndustryVertical: tallies[domain.FieldIndustryVertical].counts(),
	}
}
