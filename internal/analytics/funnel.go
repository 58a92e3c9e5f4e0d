package analytics

import "founderaudit/internal/domain"

const (
	StageStart        = "Start Audit"
	StageReachedEmail = "Reached Email"
	StageCompleted    = "Completed"
)

type FunnelStep struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	// Conversion is the cumulative percentage of started sessions.
	Conversion int `json:"conversion"`
}

type FunnelReport struct {
	Steps             []FunnelStep `json:"steps"`
	StartCount        int          `json:"startCount"`
	ReachedEmailCount int          `json:"reachedEmailCount"`
	CompletedCount    int          `json:"completedCount"`
	// EmailCaptureRate is completed over reached-email (step conversion).
	EmailCaptureRate int `json:"emailCaptureRate"`
	// StartToCompleteRate is completed over started (cumulative conversion).
	StartToCompleteRate int    `json:"startToCompleteRate"`
	LargestDropStep     string `json:"largestDropStep"`
	LargestDrop         int    `json:"largestDrop"`
	// LinkedCompletedCount counts audits whose sessionId matches a tracked session.
	// It is informational; CompletedCount stays the audit-count proxy.
	LinkedCompletedCount int `json:"linkedCompletedCount"`
}

// Funnel computes three-stage conversion. Every audit counts as a completion,
// so the stage counts need not be monotonic.
func Funnel(sessions []domain.AuditSession, audits []domain.Audit) FunnelReport {
	start := len(sessions)
	reached := 0
	known := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		if s.LastStep != domain.StepIntro {
			reached++
		}
		if s.SessionID != "" {
			known[s.SessionID] = struct{}{}
		}
	}
	completed := len(audits)
	linked := 0
	for _, a := range audits {
		if a.SessionID == "" {
			continue
		}
		if _, ok := known[a.SessionID]; ok {
			linked++
		}
	}

	steps := []FunnelStep{
		{Name: StageStart, Count: start, Conversion: 100},
		{Name: StageReachedEmail, Count: reached, Conversion: percent(reached, start)},
		{Name: StageCompleted, Count: completed, Conversion: percent(completed, start)},
	}
	if start == 0 {
		steps[0].Conversion = 0
	}

	report := FunnelReport{
		Steps:                steps,
		StartCount:           start,
		ReachedEmailCount:    reached,
		CompletedCount:       completed,
		EmailCaptureRate:     percent(completed, reached),
		StartToCompleteRate:  percent(completed, start),
		LinkedCompletedCount: linked,
	}
	report.LargestDropStep, report.LargestDrop = largestDrop(steps)
	return report
}

// largestDrop returns the stage losing the most sessions to the next stage.
// Increases between stages are not drops. Ties keep the earlier stage.
func largestDrop(steps []FunnelStep) (string, int) {
	name := ""
	biggest := 0
	for i := 0; i+1 < len(steps); i++ {
		delta := steps[i].Count - steps[i+1].Count
		if delta > biggest {
			biggest = delta
			name = steps[i].Name
		}
	}
	return name, biggest
}
