package auditsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client is a minimal Founder Bottleneck Audit HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	// MaxElapsed bounds retries of transport errors and 5xx responses; 0 disables retrying.
	MaxElapsed time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base path, e.g. http://host/api.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Timeout:    10 * time.Second,
		MaxElapsed: 30 * time.Second,
	}
}

type DecisionCategory struct {
	ID            string `json:"id"`
	Name          string `json:"name,omitempty"`
	Decisions     int    `json:"decisions"`
	CouldDelegate int    `json:"couldDelegate"`
	OnlyYou       int    `json:"onlyYou"`
	NotSure       int    `json:"notSure"`
}

type DelayTaxItem struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Amount float64 `json:"amount"`
}

type Pattern struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Checked     bool   `json:"checked"`
}

type AuditData struct {
	DecisionCategories        []DecisionCategory `json:"decisionCategories,omitempty"`
	AnnualCompensation        float64            `json:"annualCompensation,omitempty"`
	AverageMinutesPerDecision float64            `json:"averageMinutesPerDecision,omitempty"`
	DelayTax                  []DelayTaxItem     `json:"delayTax,omitempty"`
	Patterns                  []Pattern          `json:"patterns,omitempty"`
}

type Results struct {
	TotalDecisions      int     `json:"totalDecisions"`
	DecisionLoadLevel   string  `json:"decisionLoadLevel"`
	HourlyRate          float64 `json:"hourlyRate"`
	HoursPerWeek        float64 `json:"hoursPerWeek"`
	AnnualCost          float64 `json:"annualCost"`
	DelayTaxAnnual      float64 `json:"delayTaxAnnual"`
	TotalBottleneckCost float64 `json:"totalBottleneckCost"`
	PatternsChecked     int     `json:"patternsChecked"`
	OverallStatus       string  `json:"overallStatus"`
}

type Segmentation struct {
	FounderRole      string `json:"founderRole,omitempty"`
	RevenueRange     string `json:"revenueRange,omitempty"`
	TeamSize         string `json:"teamSize,omitempty"`
	IndustryVertical string `json:"industryVertical,omitempty"`
}

// Submission is what the wizard posts on its last step.
type Submission struct {
	SessionID    string        `json:"sessionId,omitempty"`
	UserName     string        `json:"userName"`
	UserEmail    string        `json:"userEmail"`
	Segmentation *Segmentation `json:"segmentation,omitempty"`
	AuditData    AuditData     `json:"auditData"`
}

type Audit struct {
	ID           string        `json:"id"`
	SessionID    string        `json:"sessionId,omitempty"`
	UserName     string        `json:"userName"`
	UserEmail    string        `json:"userEmail"`
	Segmentation *Segmentation `json:"segmentation,omitempty"`
	AuditData    AuditData     `json:"auditData"`
	Results      Results       `json:"results"`
	CreatedAt    time.Time     `json:"createdAt"`
}

type Session struct {
	SessionID string     `json:"sessionId"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	LastStep  string     `json:"lastStep"`
	Status    string     `json:"status"`
}

type FunnelStep struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Conversion int    `json:"conversion"`
}

// Funnel is the three-stage conversion report (partial).
type Funnel struct {
	Steps               []FunnelStep `json:"steps"`
	StartCount          int          `json:"startCount"`
	ReachedEmailCount   int          `json:"reachedEmailCount"`
	CompletedCount      int          `json:"completedCount"`
	EmailCaptureRate    int          `json:"emailCaptureRate"`
	StartToCompleteRate int          `json:"startToCompleteRate"`
	LargestDropStep     string       `json:"largestDropStep"`
	LargestDrop         int          `json:"largestDrop"`
}

// Event represents an activity log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entityKind"`
	EntityID   string `json:"entityId"`
	Payload    string `json:"payloadJson"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"nextCursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// SubmitAudit stores a completed audit. Requests linked to a session are
// retried; a replay of an already stored audit surfaces as a 409 APIError.
func (c *Client) SubmitAudit(ctx context.Context, sub Submission) (Audit, error) {
	var resp Audit
	err := c.do(ctx, http.MethodPost, "audits", sub, &resp, sub.SessionID != "")
	return resp, err
}

// Score returns the results for answers without storing them.
func (c *Client) Score(ctx context.Context, data AuditData) (Results, error) {
	var resp struct {
		Results Results `json:"results"`
	}
	err := c.do(ctx, http.MethodPost, "audits/score", data, &resp, true)
	return resp.Results, err
}

func (c *Client) GetAudit(ctx context.Context, id string) (Audit, error) {
	var resp Audit
	err := c.do(ctx, http.MethodGet, "audits/"+url.PathEscape(id), nil, &resp, true)
	return resp, err
}

// ListAudits returns audits newest first, optionally filtered by email.
func (c *Client) ListAudits(ctx context.Context, email string) ([]Audit, error) {
	endpoint := "audits"
	if email != "" {
		endpoint += "?email=" + url.QueryEscape(email)
	}
	var resp []Audit
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp, true)
	return resp, err
}

// StartSession starts (or returns) a session; an empty id lets the server pick one.
func (c *Client) StartSession(ctx context.Context, sessionID string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "session/start", map[string]any{"sessionId": sessionID}, &resp, true)
	return resp, err
}

// TrackStep records the wizard step a session reached.
func (c *Client) TrackStep(ctx context.Context, sessionID, step string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "session/update", map[string]any{"sessionId": sessionID, "step": step}, &resp, true)
	return resp, err
}

func (c *Client) CompleteSession(ctx context.Context, sessionID string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "session/complete", map[string]any{"sessionId": sessionID}, &resp, true)
	return resp, err
}

func (c *Client) Funnel(ctx context.Context) (Funnel, error) {
	var resp Funnel
	err := c.do(ctx, http.MethodGet, "analytics/funnel", nil, &resp, true)
	return resp, err
}

// EventsPage returns a paginated event listing, newest first.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp, true)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any, retry bool) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			apiErr := decodeAPIError(resp)
			if resp.StatusCode < 500 {
				return backoff.Permanent(apiErr)
			}
			return apiErr
		}
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	}

	if !retry || c.MaxElapsed <= 0 {
		err := op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = c.MaxElapsed
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func decodeAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &env) == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
