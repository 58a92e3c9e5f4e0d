package domain

type SegmentField string

const (
	FieldFounderRole      SegmentField = "founderRole"
	FieldRevenueRange     SegmentField = "revenueRange"
	FieldTeamSize         SegmentField = "teamSize"
	FieldIndustryVertical SegmentField = "industryVertical"
)

var SegmentFields = []SegmentField{FieldFounderRole, FieldRevenueRange, FieldTeamSize, FieldIndustryVertical}

var segmentationLabels = map[SegmentField]map[string]string{
	FieldFounderRole: {
		"solo-founder": "Solo Founder",
		"co-founder":   "Co-Founder",
		"ceo":          "CEO",
	},
	FieldRevenueRange: {
		"pre-revenue": "Pre-revenue",
		"0-100k":      "$0 - $100K",
		"100k-500k":   "$100K - $500K",
		"500k-1m":     "$500K - $1M",
		"1m-5m":       "$1M - $5M",
		"5m-10m":      "$5M - $10M",
		"10m+":        "$10M+",
	},
	FieldTeamSize: {
		"1-5":    "1 - 5",
		"6-10":   "6 - 10",
		"11-25":  "11 - 25",
		"26-50":  "26 - 50",
		"51-100": "51 - 100",
		"100+":   "100+",
	},
	FieldIndustryVertical: {
		"saas":        "SaaS",
		"ecommerce":   "E-commerce",
		"fintech":     "Fintech",
		"healthcare":  "Healthcare",
		"marketplace": "Marketplace",
		"consumer":    "Consumer",
		"enterprise":  "Enterprise",
		"media":       "Media / Content",
		"hardware":    "Hardware",
		"other":       "Other",
	},
}

// SegmentLabel returns the display label for a segmentation value.
// Unknown values pass through unchanged.
func SegmentLabel(field SegmentField, value string) string {
	if label, ok := segmentationLabels[field][value]; ok {
		return label
	}
	return value
}

// Value returns the raw value of one segmentation field.
func (s Segmentation) Value(field SegmentField) string {
	switch field {
	case FieldFounderRole:
		return s.FounderRole
	case FieldRevenueRange:
		return s.RevenueRange
	case FieldTeamSize:
		return s.TeamSize
	case FieldIndustryVertical:
		return s.IndustryVertical
	}
	return ""
}
