package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgraph/pkg/models"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &got))
		out = append(out, got)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestFindingsAppendAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.jsonl")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		w, err := NewWriter[*models.RiskFinding](path, "finding")
		require.NoError(t, err)
		require.NoError(t, w.Write(ctx, []*models.RiskFinding{{
			RuleTag:    models.RuleTag{ID: "rule-1", Severity: "high"},
			DocumentID: "doc-1",
			NodeID:     2,
			RiskID:     7,
		}}))
		require.NoError(t, w.Close())
		require.NoError(t, w.Close())
	}

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Equal(t, float64(7), l["risk_id"])
		assert.Equal(t, "doc-1", l["document_id"])
	}
}

func TestAlertsCreateDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts", "alerts.jsonl")
	w, err := NewWriter[*models.RiskAlert](path, "alert")
	require.NoError(t, err)

	require.NoError(t, w.Write(context.Background(), []*models.RiskAlert{
		{AlertID: "a1", NodeID: 2, RiskID: 7, Level: "high", Thresholds: models.Threshold{Low: 4, High: 8}},
		{AlertID: "a2", NodeID: 3, RiskID: 9, Level: "medium"},
	}))
	require.NoError(t, w.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Equal(t, "high", lines[0]["level"])
	assert.Equal(t, map[string]interface{}{"seuil1": float64(4), "seuil2": float64(8)}, lines[0]["thresholds"])
}

func TestWriteHonoursContextAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts.jsonl")
	w, err := NewWriter[*models.RiskAlert](path, "alert")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Write(ctx, []*models.RiskAlert{{AlertID: "a1"}}), context.Canceled)

	require.NoError(t, w.Close())
	assert.Error(t, w.Write(context.Background(), []*models.RiskAlert{{AlertID: "a2"}}))
	assert.Empty(t, readLines(t, path))

	_, err = NewWriter[*models.RiskAlert]("", "alert")
	assert.Error(t, err)
}
