// Package ownerindex mirrors registry owner sets to Redis so that other
// tools can ask which instances share an entity without loading the
// document.
package ownerindex

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"riskgraph/internal/graph/registry"
	"riskgraph/pkg/models"
)

// RedisConfig configures Redis access for the owner index.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Ref names one entity attached to a node.
type Ref struct {
	Kind models.Kind `json:"kind"`
	ID   string      `json:"id"`
}

// RedisStore writes and reads owner-set keys.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore constructs a Redis-backed owner index.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = "riskgraph"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis owner index: %w", err)
	}

	return &RedisStore{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix), now: time.Now}, nil
}

// Snapshot lists every owner-index key of reg with its members, sorted.
// Entity keys hold node ids; node keys hold kind|id members.
func Snapshot(prefix string, reg *registry.Registry) map[string][]string {
	out := make(map[string][]string)
	for _, pool := range reg.Pools() {
		kind := pool.Kind()
		for _, id := range pool.IDs() {
			owners := pool.Owners(id)
			if len(owners) == 0 {
				continue
			}
			key := ownersKey(prefix, kind, id)
			for _, owner := range owners {
				out[key] = append(out[key], strconv.Itoa(owner))
				nk := nodeKey(prefix, owner)
				out[nk] = append(out[nk], encodeMember(kind, id))
			}
		}
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out
}

// WriteRegistry replaces the index with the owner sets of reg in one
// transaction. Keys of entities no longer present are left alone; use a
// fresh prefix per document when that matters.
func (s *RedisStore) WriteRegistry(ctx context.Context, reg *registry.Registry) error {
	snap := Snapshot(s.prefix, reg)
	if len(snap) == 0 {
		return nil
	}

	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pipe := s.client.TxPipeline()
	for _, key := range keys {
		members := make([]interface{}, len(snap[key]))
		for i, m := range snap[key] {
			members[i] = m
		}
		pipe.Del(ctx, key)
		pipe.SAdd(ctx, key, members...)
	}
	pipe.Set(ctx, s.prefix+":updated_at", strconv.FormatInt(s.now().Unix(), 10), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update owner index redis keys: %w", err)
	}
	return nil
}

// FetchOwners returns the node ids owning an entity.
func (s *RedisStore) FetchOwners(ctx context.Context, kind models.Kind, id string) ([]int, error) {
	members, err := s.client.SMembers(ctx, ownersKey(s.prefix, kind, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("read owners of %s %s: %w", kind, id, err)
	}
	out := make([]int, 0, len(members))
	for _, m := range members {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// FetchNode returns the entities attached to a node.
func (s *RedisStore) FetchNode(ctx context.Context, nodeID int) ([]Ref, error) {
	members, err := s.client.SMembers(ctx, nodeKey(s.prefix, nodeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read refs of node %d: %w", nodeID, err)
	}
	sort.Strings(members)
	out := make([]Ref, 0, len(members))
	for _, m := range members {
		kind, id, ok := decodeMember(m)
		if !ok {
			continue
		}
		out = append(out, Ref{Kind: kind, ID: id})
	}
	return out, nil
}

// Close closes Redis resources.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func ownersKey(prefix string, kind models.Kind, id string) string {
	return prefix + ":owners:" + string(kind) + ":" + id
}

func nodeKey(prefix string, nodeID int) string {
	return prefix + ":node:" + strconv.Itoa(nodeID)
}

func encodeMember(kind models.Kind, id string) string {
	return string(kind) + "|" + id
}

func decodeMember(member string) (models.Kind, string, bool) {
	parts := strings.SplitN(member, "|", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", false
	}
	return models.Kind(parts[0]), parts[1], true
}
