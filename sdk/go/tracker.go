package auditsdk

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Wizard steps, in order.
const (
	StepIntro        = "intro"
	StepEmail        = "email"
	StepSegmentation = "segmentation"
	StepDecisions    = "decisions"
	StepCost         = "cost"
	StepPatterns     = "patterns"
	StepCompleted    = "completed"
)

// Tracker follows one respondent through the wizard: it starts a session on
// first use, reports each step once and links the final submission.
type Tracker struct {
	Client    *Client
	SessionID string

	mu       sync.Mutex
	started  bool
	lastStep string
}

// NewTracker generates a fresh session id.
func NewTracker(c *Client) *Tracker {
	return &Tracker{Client: c, SessionID: uuid.NewString()}
}

func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startLocked(ctx)
}

func (t *Tracker) startLocked(ctx context.Context) error {
	if t.started {
		return nil
	}
	s, err := t.Client.StartSession(ctx, t.SessionID)
	if err != nil {
		return err
	}
	t.started = true
	t.lastStep = s.LastStep
	return nil
}

// Step reports a step; repeating the current step is a no-op.
func (t *Tracker) Step(ctx context.Context, step string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.startLocked(ctx); err != nil {
		return err
	}
	if step == t.lastStep {
		return nil
	}
	if _, err := t.Client.TrackStep(ctx, t.SessionID, step); err != nil {
		return err
	}
	t.lastStep = step
	return nil
}

// Submit stores the audit linked to this session and completes the session.
func (t *Tracker) Submit(ctx context.Context, sub Submission) (Audit, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.startLocked(ctx); err != nil {
		return Audit{}, err
	}
	sub.SessionID = t.SessionID
	a, err := t.Client.SubmitAudit(ctx, sub)
	if err != nil {
		return Audit{}, err
	}
	if _, err := t.Client.CompleteSession(ctx, t.SessionID); err != nil {
		return a, err
	}
	t.lastStep = StepCompleted
	return a, nil
}
