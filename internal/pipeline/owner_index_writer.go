package pipeline

import (
	"context"

	"riskgraph/internal/graph/registry"
)

// OwnerIndexWriter mirrors registry owner sets to an external index.
type OwnerIndexWriter interface {
	WriteRegistry(ctx context.Context, reg *registry.Registry) error
	Close() error
}
