package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"founderaudit/internal/domain"
	"founderaudit/internal/engine"
	"founderaudit/internal/logger"
	"founderaudit/internal/metrics"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 10 * time.Second
	defaultWebhookBatch    = 100
)

// WebhookDispatcher forwards stored events to the configured URL, oldest
// first. Delivery failures are logged and the event is skipped.
type WebhookDispatcher struct {
	engine     engine.Engine
	log        *logger.Logger
	metrics    *metrics.Observer
	url        string
	filter     eventFilter
	client     *http.Client
	interval   time.Duration
	maxElapsed time.Duration
	cursor     int64
	started    bool
}

// NewWebhookDispatcher returns nil when no webhook URL is configured.
func NewWebhookDispatcher(e engine.Engine, log *logger.Logger, m *metrics.Observer) *WebhookDispatcher {
	if e.Config == nil || strings.TrimSpace(e.Config.Webhooks.URL) == "" {
		return nil
	}
	if log == nil {
		log = logger.Discard()
	}
	hooks := e.Config.Webhooks
	timeout := hooks.Timeout
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	interval := hooks.PollInterval
	if interval <= 0 {
		interval = defaultWebhookInterval
	}
	return &WebhookDispatcher{
		engine:     e,
		log:        log,
		metrics:    m,
		url:        strings.TrimSpace(hooks.URL),
		filter:     newEventFilter(hooks.Events),
		client:     &http.Client{Timeout: timeout},
		interval:   interval,
		maxElapsed: hooks.MaxElapsed,
	}
}

// Run polls until ctx is done. Only events written after the first poll are delivered.
func (d *WebhookDispatcher) Run(ctx context.Context) {
	if d == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		if err := d.Dispatch(ctx); err != nil {
			d.log.WithError(err).Warn("webhook: fetch events failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Dispatch delivers one batch of pending events.
func (d *WebhookDispatcher) Dispatch(ctx context.Context) error {
	if !d.started {
		cur, err := d.engine.Repo.LatestEventID(ctx)
		if err != nil {
			return fmt.Errorf("init cursor: %w", err)
		}
		d.cursor = cur
		d.started = true
		return nil
	}
	evts, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, d.cursor)
	if err != nil {
		return err
	}
	for _, evt := range evts {
		if ctx.Err() != nil {
			return nil
		}
		if d.filter.match(evt.Type) {
			err := d.deliver(ctx, evt)
			d.metrics.RecordWebhook(evt.Type, err)
			if err != nil {
				d.log.WithError(err).WithFields(logrus.Fields{
					"event_id":   evt.ID,
					"event_type": evt.Type,
				}).Warn("webhook: delivery failed")
			}
		}
		d.cursor = evt.ID
	}
	return nil
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entityKind"`
	EntityID   string          `json:"entityId,omitempty"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func (d *WebhookDispatcher) deliver(ctx context.Context, evt domain.Event) error {
	payload := json.RawMessage("{}")
	if evt.Payload != "" && json.Valid([]byte(evt.Payload)) {
		payload = json.RawMessage(evt.Payload)
	}
	data, err := json.Marshal(webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		TS:         evt.TS,
		Payload:    payload,
	})
	if err != nil {
		return err
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-FBA-Event", evt.Type)
		req.Header.Set("X-FBA-Delivery", fmt.Sprintf("%d", evt.ID))
		res, err := d.client.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return nil
		}
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		statusErr := fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
		if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
			return backoff.Permanent(statusErr)
		}
		return statusErr
	}

	b := backoff.NewExponentialBackOff()
	if d.maxElapsed > 0 {
		b.MaxElapsedTime = d.maxElapsed
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(events []string) eventFilter {
	set := make(map[string]struct{}, len(events))
	for _, evt := range events {
		key := strings.TrimSpace(evt)
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	if len(set) == 0 {
		return eventFilter{all: true}
	}
	return eventFilter{set: set}
}

func (f eventFilter) match(evt string) bool {
	if f.all {
		return true
	}
	_, ok := f.set[evt]
	return ok
}
