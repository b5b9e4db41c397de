// Package alerthttp posts risk alerts to a webhook.
package alerthttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"riskgraph/pkg/models"
)

// Config configures the HTTP writer.
type Config struct {
	URL     string
	Timeout time.Duration
	Headers map[string]string
}

// Batch is the request body of one post.
type Batch struct {
	BatchID   string              `json:"batch_id"`
	SentAt    time.Time           `json:"sent_at"`
	Documents []string            `json:"documents"`
	Levels    map[string]int      `json:"levels"`
	Alerts    []*models.RiskAlert `json:"alerts"`
}

// Writer posts alerts as one Batch per call. The batch id is derived from
// the alert ids and sent as Idempotency-Key, so a retried batch can be
// recognised by the receiver.
type Writer struct {
	url     string
	headers map[string]string
	client  *http.Client
	now     func() time.Time
}

// NewWriter creates an HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("http alert URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Writer{
		url:     cfg.URL,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}, nil
}

// NewBatch groups alerts for posting.
func NewBatch(alerts []*models.RiskAlert, now time.Time) *Batch {
	b := &Batch{
		SentAt: now.UTC(),
		Levels: make(map[string]int),
		Alerts: alerts,
	}
	docs := make(map[string]struct{})
	ids := make([]string, 0, len(alerts))
	for _, a := range alerts {
		b.Levels[a.Level]++
		ids = append(ids, a.DocumentID+"/"+a.AlertID)
		if a.DocumentID != "" {
			docs[a.DocumentID] = struct{}{}
		}
	}
	for d := range docs {
		b.Documents = append(b.Documents, d)
	}
	sort.Strings(b.Documents)
	sort.Strings(ids)
	b.BatchID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(ids, ","))).String()
	return b
}

// Write posts a batch of alerts.
func (w *Writer) Write(ctx context.Context, alerts []*models.RiskAlert) error {
	if len(alerts) == 0 {
		return nil
	}

	batch := NewBatch(alerts, w.now())
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", batch.BatchID)
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("alert post %s failed: %w", batch.BatchID, err)
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert post %s failed with status %s: %s", batch.BatchID, resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

// Close releases idle connections.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}
