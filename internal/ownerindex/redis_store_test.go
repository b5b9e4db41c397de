package ownerindex

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgraph/internal/graph/ingest"
	"riskgraph/pkg/models"
)

const shared = `{"instances": {
  "1": {
    "instance": {"id": 1, "parent": 0},
    "threats": {"t1": {"uuid": "t1", "code": "M1"}},
    "children": {
      "2": {
        "instance": {"id": 2, "parent": 1},
        "threats": {"t1": {"uuid": "t1", "code": "M1"}},
        "vuls": {"v1": {"uuid": "v1", "code": "V1"}}
      }
    }
  }
}}`

func TestSnapshot(t *testing.T) {
	doc, err := ingest.LoadBytes([]byte(shared), ingest.Options{})
	require.NoError(t, err)

	snap := Snapshot("rg", doc.Registry)
	assert.Equal(t, []string{"1", "2"}, snap["rg:owners:threat:t1"])
	assert.Equal(t, []string{"2"}, snap["rg:owners:vulnerability:v1"])
	assert.Equal(t, []string{"threat|t1"}, snap["rg:node:1"])
	assert.Equal(t, []string{"threat|t1", "vulnerability|v1"}, snap["rg:node:2"])
	assert.Len(t, snap, 4)
}

func TestMemberEncoding(t *testing.T) {
	kind, id, ok := decodeMember(encodeMember(models.KindLink, "a|b"))
	require.True(t, ok)
	assert.Equal(t, models.KindLink, kind)
	assert.Equal(t, "a|b", id)

	_, _, ok = decodeMember("threat|")
	assert.False(t, ok)
	_, _, ok = decodeMember("plain")
	assert.False(t, ok)
}

func TestWriteRegistryAndFetch(t *testing.T) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore(RedisConfig{Addr: s.Addr(), KeyPrefix: "rg"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	store.now = func() time.Time { return time.Unix(1710000000, 0) }

	doc, err := ingest.LoadBytes([]byte(shared), ingest.Options{})
	require.NoError(t, err)

	s.SAdd("rg:owners:threat:t1", "99")
	ctx := context.Background()
	require.NoError(t, store.WriteRegistry(ctx, doc.Registry))

	members, err := s.Members("rg:owners:threat:t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, members)

	updated, err := s.Get("rg:updated_at")
	require.NoError(t, err)
	assert.Equal(t, "1710000000", updated)

	owners, err := store.FetchOwners(ctx, models.KindThreat, "t1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, owners)

	refs, err := store.FetchNode(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []Ref{{Kind: models.KindThreat, ID: "t1"}, {Kind: models.KindVulnerability, ID: "v1"}}, refs)

	missing, err := store.FetchOwners(ctx, models.KindRisk, "404")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestNewRedisStoreFailsWithoutServer(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err := NewRedisStore(RedisConfig{Addr: addr})
	assert.Error(t, err)
}
