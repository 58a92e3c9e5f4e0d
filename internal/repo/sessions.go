package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"founderaudit/internal/domain"
)

type SessionFilters struct {
	Status domain.SessionStatus
	Limit  int
	Oldest bool
}

const sessionColumns = `session_id,start_time,end_time,last_step,status,created_at`

func (r Repo) InsertSession(ctx context.Context, tx *sql.Tx, s domain.AuditSession) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO audit_sessions(`+sessionColumns+`) VALUES (?,?,?,?,?,?)`,
		s.SessionID, formatTime(s.StartTime), nullableTime(s.EndTime), string(s.LastStep), string(s.Status), formatTime(s.CreatedAt))
	return err
}

func (r Repo) GetSession(ctx context.Context, id string) (domain.AuditSession, error) {
	return getSession(r.DB.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM audit_sessions WHERE session_id=?`, id))
}

func (r Repo) GetSessionTx(ctx context.Context, tx *sql.Tx, id string) (domain.AuditSession, error) {
	return getSession(tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM audit_sessions WHERE session_id=?`, id))
}

func getSession(row *sql.Row) (domain.AuditSession, error) {
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) UpdateSessionStep(ctx context.Context, tx *sql.Tx, id string, step domain.Step) error {
	res, err := tx.ExecContext(ctx, `UPDATE audit_sessions SET last_step=? WHERE session_id=?`, string(step), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CompleteSession marks the session completed at end.
func (r Repo) CompleteSession(ctx context.Context, tx *sql.Tx, id string, end time.Time) error {
	res, err := tx.ExecContext(ctx, `UPDATE audit_sessions SET status=?, last_step=?, end_time=? WHERE session_id=?`,
		string(domain.SessionCompleted), string(domain.StepCompleted), formatTime(end), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns sessions newest first (oldest first with f.Oldest).
func (r Repo) ListSessions(ctx context.Context, f SessionFilters) ([]domain.AuditSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM audit_sessions`
	var args []any
	if f.Status != "" {
		query += ` WHERE status=?`
		args = append(args, string(f.Status))
	}
	if f.Oldest {
		query += ` ORDER BY created_at ASC, rowid ASC`
	} else {
		query += ` ORDER BY created_at DESC, session_id DESC`
	}
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func scanSession(sc scanner) (domain.AuditSession, error) {
	var s domain.AuditSession
	var start, created, step, status string
	var end sql.NullString
	if err := sc.Scan(&s.SessionID, &start, &end, &step, &status, &created); err != nil {
		return s, err
	}
	var err error
	if s.StartTime, err = parseTime("start_time", start); err != nil {
		return s, err
	}
	if s.CreatedAt, err = parseTime("created_at", created); err != nil {
		return s, err
	}
	if end.Valid {
		t, err := parseTime("end_time", end.String)
		if err != nil {
			return s, err
		}
		s.EndTime = &t
	}
	s.LastStep = domain.Step(step)
	s.Status = domain.SessionStatus(status)
	return s, nil
}
