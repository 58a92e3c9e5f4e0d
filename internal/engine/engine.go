package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"founderaudit/internal/config"
	"founderaudit/internal/events"
	"founderaudit/internal/repo"
)

var (
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is returned when a write would duplicate an existing record.
	ErrConflict = errors.New("conflict")
)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Observer receives activity counts. *metrics.Observer satisfies it.
type Observer interface {
	RecordSubmission(overallStatus string)
	RecordSession(event, step string)
	RecordReport(report string, duration time.Duration, cached bool)
}

type Engine struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Config   *config.Config
	Observer Observer
	Now      func() time.Time

	reports *reportCache
}

func New(db *sql.DB, cfg *config.Config) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Events:  events.Writer{DB: db},
		Config:  cfg,
		Now:     time.Now,
		reports: newReportCache(cfg.Reports.CacheSize),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) eventWriter() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

func (e Engine) recordSession(event, step string) {
	if e.Observer != nil {
		e.Observer.RecordSession(event, step)
	}
}
