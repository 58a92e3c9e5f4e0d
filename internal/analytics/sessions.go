package analytics

import (
	"fmt"
	"math"

	"founderaudit/internal/domain"
)

type SessionSummary struct {
	TotalSessions     int         `json:"totalSessions"`
	CompletionRate    int         `json:"completionRate"`
	AvgCompletionTime string      `json:"avgCompletionTime"`
	AvgCompletionMs   float64     `json:"avgCompletionMs"`
	DropOff           []NameValue `json:"dropOffData"`
}

type sessionRecord struct {
	completed  bool
	lastStep   string
	durationMs float64
	hasEnd     bool
}

func normalizeSession(s domain.AuditSession) sessionRecord {
	rec := sessionRecord{
		completed: s.Status == domain.SessionCompleted,
		lastStep:  string(s.LastStep),
	}
	if rec.lastStep == "" {
		rec.lastStep = string(domain.StepUnknown)
	}
	if s.EndTime != nil && !s.StartTime.IsZero() {
		rec.hasEnd = true
		rec.durationMs = float64(s.EndTime.Sub(s.StartTime).Milliseconds())
	}
	return rec
}

// Sessions summarizes completion and drop-off. It returns nil for an empty input.
// Completed sessions without an end time are left out of the average.
func Sessions(sessions []domain.AuditSession) *SessionSummary {
	if len(sessions) == 0 {
		return nil
	}
	completed := 0
	timed := 0
	var totalMs float64
	drops := newOrderedSum[int]()
	for _, s := range sessions {
		rec := normalizeSession(s)
		if rec.completed {
			completed++
			if rec.hasEnd {
				timed++
				totalMs += rec.durationMs
			}
			continue
		}
		if rec.lastStep != string(domain.StepCompleted) {
			drops.add(rec.lastStep, 1)
		}
	}
	avg := mean(totalMs, timed)
	return &SessionSummary{
		TotalSessions:     len(sessions),
		CompletionRate:    percent(completed, len(sessions)),
		AvgCompletionTime: FormatDuration(avg),
		AvgCompletionMs:   avg,
		DropOff:           drops.values(),
	}
}

// FormatDuration renders milliseconds as "{minutes}m {seconds}s" using floor division.
// Negative durations (end before start) render as "0m 0s".
func FormatDuration(ms float64) string {
	if ms < 0 || math.IsNaN(ms) {
		ms = 0
	}
	minutes := math.Floor(ms / 60000)
	seconds := math.Floor(math.Mod(ms, 60000) / 1000)
	return fmt.Sprintf("%dm %ds", int64(minutes), int64(seconds))
}
