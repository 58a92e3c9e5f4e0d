package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"founderaudit/internal/domain"
)

type AuditFilters struct {
	// Email matches case-insensitively after trimming.
	Email  string
	Status domain.OverallStatus
	Since  time.Time
	Until  time.Time
	Limit  int
	// Oldest lists in insertion order instead of newest first.
	Oldest bool
}

const auditColumns = `id,session_id,user_name,user_email,segmentation_json,audit_data_json,results_json,created_at`

func (r Repo) InsertAudit(ctx context.Context, tx *sql.Tx, a domain.Audit) error {
	data, err := json.Marshal(a.AuditData)
	if err != nil {
		return fmt.Errorf("marshal audit data: %w", err)
	}
	results, err := json.Marshal(a.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	var seg any
	if a.Segmentation != nil && !a.Segmentation.Empty() {
		raw, err := json.Marshal(a.Segmentation)
		if err != nil {
			return fmt.Errorf("marshal segmentation: %w", err)
		}
		seg = string(raw)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO audits(id,session_id,user_name,user_email,user_email_norm,segmentation_json,audit_data_json,results_json,total_decisions,total_bottleneck_cost,overall_status,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		a.ID, nullable(a.SessionID), a.UserName, a.UserEmail, normalizeEmail(a.UserEmail), seg, string(data), string(results),
		a.Results.TotalDecisions, a.Results.TotalBottleneckCost, string(a.Results.OverallStatus), formatTime(a.CreatedAt))
	return err
}

func (r Repo) GetAudit(ctx context.Context, id string) (domain.Audit, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audits WHERE id=?`, id)
	a, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrNotFound
	}
	return a, err
}

// ListAudits returns audits newest first (oldest first with f.Oldest).
// With no filters it is a full scan.
func (r Repo) ListAudits(ctx context.Context, f AuditFilters) ([]domain.Audit, error) {
	var clauses []string
	var args []any
	if email := normalizeEmail(f.Email); email != "" {
		clauses = append(clauses, "user_email_norm=?")
		args = append(args, email)
	}
	if f.Status != "" {
		clauses = append(clauses, "overall_status=?")
		args = append(args, string(f.Status))
	}
	if !f.Since.IsZero() {
		clauses = append(clauses, "created_at>=?")
		args = append(args, formatTime(f.Since))
	}
	if !f.Until.IsZero() {
		clauses = append(clauses, "created_at<?")
		args = append(args, formatTime(f.Until))
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	order := ` ORDER BY created_at DESC, id DESC`
	if f.Oldest {
		order = ` ORDER BY created_at ASC, rowid ASC`
	}
	query := `SELECT ` + auditColumns + ` FROM audits ` + where + order
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// AuditIDForSession returns the audit already stored for sessionID, or ErrNotFound.
func (r Repo) AuditIDForSession(ctx context.Context, tx *sql.Tx, sessionID string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM audits WHERE session_id=? LIMIT 1`, sessionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return id, err
}

func (r Repo) CountAudits(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM audits`).Scan(&n)
	return n, err
}

func scanAudit(s scanner) (domain.Audit, error) {
	var a domain.Audit
	var sessionID, seg sql.NullString
	var data, results, createdAt string
	if err := s.Scan(&a.ID, &sessionID, &a.UserName, &a.UserEmail, &seg, &data, &results, &createdAt); err != nil {
		return a, err
	}
	if sessionID.Valid {
		a.SessionID = sessionID.String
	}
	if seg.Valid && seg.String != "" {
		var v domain.Segmentation
		if err := json.Unmarshal([]byte(seg.String), &v); err != nil {
			return a, fmt.Errorf("decode audit %s segmentation: %w", a.ID, err)
		}
		a.Segmentation = &v
	}
	if err := json.Unmarshal([]byte(data), &a.AuditData); err != nil {
		return a, fmt.Errorf("decode audit %s audit data: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(results), &a.Results); err != nil {
		return a, fmt.Errorf("decode audit %s results: %w", a.ID, err)
	}
	t, err := parseTime("created_at", createdAt)
	if err != nil {
		return a, fmt.Errorf("audit %s: %w", a.ID, err)
	}
	a.CreatedAt = t
	return a, nil
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
