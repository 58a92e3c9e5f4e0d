package export

import (
	"encoding/csv"
	"io"

	"founderaudit/internal/analytics"
	"founderaudit/internal/domain"
)

func WriteAuditsCSV(w io.Writer, audits []domain.Audit) error {
	rows := make([][]string, 0, len(audits))
	for _, a := range audits {
		rows = append(rows, AuditRow(a))
	}
	return writeCSV(w, AuditHeaders, rows)
}

func WriteFoundersCSV(w io.Writer, founders []analytics.FounderProfile) error {
	rows := make([][]string, 0, len(founders))
	for _, p := range founders {
		rows = append(rows, FounderRow(p))
	}
	return writeCSV(w, FounderHeaders, rows)
}

func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}
