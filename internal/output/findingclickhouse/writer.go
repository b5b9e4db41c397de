// Package findingclickhouse inserts rule findings into ClickHouse over its
// HTTP interface.
package findingclickhouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"riskgraph/pkg/models"
)

// Config configures the ClickHouse HTTP writer.
type Config struct {
	URL      string
	Database string
	Table    string
	Username string
	Password string
	Timeout  time.Duration
	Headers  map[string]string
}

// Writer inserts findings with INSERT ... FORMAT JSONEachRow. Each insert
// carries an insert_deduplication_token derived from its rows, so a batch
// retried after a lost response is not stored twice.
type Writer struct {
	base    string
	query   string
	headers map[string]string
	client  *http.Client
	now     func() time.Time
}

// row is one inserted line. DetectedAt uses the format ClickHouse parses
// as DateTime.
type row struct {
	*models.RiskFinding
	DetectedAt string `json:"detected_at"`
}

// NewWriter creates a ClickHouse HTTP writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("clickhouse URL is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	if cfg.Table == "" {
		cfg.Table = "risk_findings"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	headers := make(map[string]string, len(cfg.Headers)+2)
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	if cfg.Username != "" {
		headers["X-ClickHouse-User"] = cfg.Username
	}
	if cfg.Password != "" {
		headers["X-ClickHouse-Key"] = cfg.Password
	}

	return &Writer{
		base:    strings.TrimRight(cfg.URL, "/") + "/",
		query:   fmt.Sprintf("INSERT INTO %s.%s FORMAT JSONEachRow", quoteIdent(cfg.Database), quoteIdent(cfg.Table)),
		headers: headers,
		client:  &http.Client{Timeout: timeout},
		now:     time.Now,
	}, nil
}

// DedupToken names a batch by the (document, node, risk, rule) keys of its
// findings, independent of their order.
func DedupToken(findings []*models.RiskFinding) string {
	keys := make([]string, 0, len(findings))
	for _, f := range findings {
		keys = append(keys, f.DocumentID+"/"+strconv.Itoa(f.NodeID)+"/"+strconv.Itoa(f.RiskID)+"/"+f.ID)
	}
	sort.Strings(keys)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(keys, ","))).String()
}

// Write inserts a batch of findings.
func (w *Writer) Write(ctx context.Context, findings []*models.RiskFinding) error {
	if len(findings) == 0 {
		return nil
	}

	detected := w.now().UTC().Format("2006-01-02 15:04:05")
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, f := range findings {
		if err := enc.Encode(row{RiskFinding: f, DetectedAt: detected}); err != nil {
			return fmt.Errorf("failed to marshal finding: %w", err)
		}
	}

	params := url.Values{}
	params.Set("query", w.query)
	params.Set("insert_deduplication_token", DedupToken(findings))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.base+"?"+params.Encode(), &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("clickhouse insert of %d finding(s) failed: %w", len(findings), err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("clickhouse insert failed with status %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

// Close releases idle connections.
func (w *Writer) Close() error {
	w.client.CloseIdleConnections()
	return nil
}

func quoteIdent(v string) string {
	v = strings.ReplaceAll(v, "`", "")
	if v == "" {
		return ""
	}
	return "`" + v + "`"
}
