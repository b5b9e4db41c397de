package findingclickhouse

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgraph/pkg/models"
)

func sampleFindings() []*models.RiskFinding {
	return []*models.RiskFinding{
		{RuleTag: models.RuleTag{ID: "r1", Control: "iso27002.7.5"}, DocumentID: "doc-1", NodeID: 2, RiskID: 7},
		{RuleTag: models.RuleTag{ID: "r2"}, DocumentID: "doc-1", NodeID: 3, RiskID: 8},
	}
}

func TestWriteInsertsRows(t *testing.T) {
	var query, token, user string
	var rows []map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("query")
		token = r.URL.Query().Get("insert_deduplication_token")
		user = r.Header.Get("X-ClickHouse-User")
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			var row map[string]interface{}
			if err := json.Unmarshal(sc.Bytes(), &row); err == nil {
				rows = append(rows, row)
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w, err := NewWriter(Config{URL: server.URL + "/", Database: "risk", Username: "ingest"})
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC) }

	findings := sampleFindings()
	require.NoError(t, w.Write(context.Background(), findings))
	require.NoError(t, w.Close())

	assert.Equal(t, "INSERT INTO `risk`.`risk_findings` FORMAT JSONEachRow", query)
	assert.Equal(t, DedupToken(findings), token)
	assert.Equal(t, "ingest", user)
	require.Len(t, rows, 2)
	assert.Equal(t, "r1", rows[0]["id"])
	assert.Equal(t, "doc-1", rows[0]["document_id"])
	assert.Equal(t, "iso27002.7.5", rows[0]["control"])
	assert.Equal(t, "2024-03-09 14:05:00", rows[1]["detected_at"])
}

func TestDedupTokenIsOrderIndependent(t *testing.T) {
	f := sampleFindings()
	assert.Equal(t, DedupToken(f), DedupToken([]*models.RiskFinding{f[1], f[0]}))
	assert.NotEqual(t, DedupToken(f), DedupToken(f[:1]))

	other := *f[0]
	other.DocumentID = "doc-2"
	assert.NotEqual(t, DedupToken(f[:1]), DedupToken([]*models.RiskFinding{&other}))
}

func TestWriteReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "table missing", http.StatusNotFound)
	}))
	defer server.Close()

	w, err := NewWriter(Config{URL: server.URL})
	require.NoError(t, err)
	err = w.Write(context.Background(), []*models.RiskFinding{{NodeID: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "table missing")
	assert.NoError(t, w.Write(context.Background(), nil))
}

func TestWriteHonoursContext(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer server.Close()

	w, err := NewWriter(Config{URL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Write(ctx, sampleFindings()), context.Canceled)
	assert.Zero(t, calls)
}

func TestNewWriterRequiresURL(t *testing.T) {
	_, err := NewWriter(Config{})
	assert.Error(t, err)
}
