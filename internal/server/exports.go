package server

import (
	"bytes"
	"fmt"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"founderaudit/internal/domain"
	"founderaudit/internal/engine"
	"founderaudit/internal/export"
	"founderaudit/internal/repo"
)

const csvContentType = "text/csv; charset=utf-8"

// registerExports mounts the file downloads on the raw router.
func registerExports(r chi.Router, e engine.Engine, basePath string) {
	r.Get(path.Join(basePath, "exports/audits.csv"), func(w http.ResponseWriter, r *http.Request) {
		audits, err := exportAudits(r, e)
		if err != nil {
			writeError(w, err)
			return
		}
		var buf bytes.Buffer
		if err := export.WriteAuditsCSV(&buf, audits); err != nil {
			writeError(w, err)
			return
		}
		writeDownload(w, csvContentType, "audits.csv", buf.Bytes())
	})

	r.Get(path.Join(basePath, "exports/audits.xlsx"), func(w http.ResponseWriter, r *http.Request) {
		audits, err := exportAudits(r, e)
		if err != nil {
			writeError(w, err)
			return
		}
		var buf bytes.Buffer
		if err := export.WriteAuditsXLSX(&buf, audits); err != nil {
			writeError(w, err)
			return
		}
		writeDownload(w, export.XLSXContentType, "audits.xlsx", buf.Bytes())
	})

	r.Get(path.Join(basePath, "exports/founders.csv"), func(w http.ResponseWriter, r *http.Request) {
		founders, err := e.Founders(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, err)
			return
		}
		var buf bytes.Buffer
		if err := export.WriteFoundersCSV(&buf, founders); err != nil {
			writeError(w, err)
			return
		}
		writeDownload(w, csvContentType, "founders.csv", buf.Bytes())
	})
}

func exportAudits(r *http.Request, e engine.Engine) ([]domain.Audit, error) {
	q := r.URL.Query()
	f := repo.AuditFilters{Email: q.Get("email")}
	if status := q.Get("status"); status != "" {
		switch s := domain.OverallStatus(status); s {
		case domain.StatusOptimized, domain.StatusScalingRisk, domain.StatusCritical:
			f.Status = s
		default:
			return nil, fmt.Errorf("%w: unknown status %q", engine.ErrInvalidInput, status)
		}
	}
	return e.ListAudits(r.Context(), f)
}

func writeDownload(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
