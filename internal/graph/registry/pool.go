package registry

import (
	"sort"

	"riskgraph/pkg/models"
)

// Conflict records a second sighting of an id whose content differs from
// the canonical entity.
type Conflict struct {
	Kind  models.Kind
	ID    string
	Owner int
}

// OwnerSet is the kind-independent view of a pool.
type OwnerSet interface {
	Kind() models.Kind
	IDs() []string
	Owners(id string) []int
	HasOwner(id string, owner int) bool
	Len() int
}

type entry[T any] struct {
	value       T
	owners      map[int]struct{}
	fingerprint string
}

// Pool holds the canonical entities of one kind, in first-sighting order.
type Pool[T any] struct {
	kind       models.Kind
	order      []string
	items      map[string]*entry[T]
	onConflict func(Conflict)
}

func newPool[T any](kind models.Kind, onConflict func(Conflict)) *Pool[T] {
	return &Pool[T]{
		kind:       kind,
		items:      make(map[string]*entry[T]),
		onConflict: onConflict,
	}
}

// Kind returns the entity kind held by the pool.
func (p *Pool[T]) Kind() models.Kind { return p.kind }

// GetOrCreate returns the canonical entity for id, building and storing it
// on first sighting, and adds owner to its owner set. The second return is
// true when the entity was created by this call. A non-empty fingerprint
// that differs from the canonical one is reported as a conflict; the
// canonical entity is kept.
func (p *Pool[T]) GetOrCreate(id string, owner int, fingerprint string, build func() T) (T, bool) {
	e, created := p.lookup(id, owner, fingerprint, build)
	e.owners[owner] = struct{}{}
	return e.value, created
}

// Register is GetOrCreate without an owner.
func (p *Pool[T]) Register(id, fingerprint string, build func() T) (T, bool) {
	e, created := p.lookup(id, 0, fingerprint, build)
	return e.value, created
}

func (p *Pool[T]) lookup(id string, owner int, fingerprint string, build func() T) (*entry[T], bool) {
	if e, ok := p.items[id]; ok {
		if fingerprint != "" && e.fingerprint != "" && fingerprint != e.fingerprint && p.onConflict != nil {
			p.onConflict(Conflict{Kind: p.kind, ID: id, Owner: owner})
		}
		return e, false
	}
	e := &entry[T]{value: build(), owners: make(map[int]struct{}), fingerprint: fingerprint}
	p.items[id] = e
	p.order = append(p.order, id)
	return e, true
}

// Get returns the canonical entity for id.
func (p *Pool[T]) Get(id string) (T, bool) {
	e, ok := p.items[id]
	if !ok {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Has reports whether id is registered.
func (p *Pool[T]) Has(id string) bool {
	_, ok := p.items[id]
	return ok
}

// AddOwner adds owner to id's owner set. It returns false if id is unknown.
func (p *Pool[T]) AddOwner(id string, owner int) bool {
	e, ok := p.items[id]
	if !ok {
		return false
	}
	e.owners[owner] = struct{}{}
	return true
}

// RemoveOwner drops owner from id's owner set.
func (p *Pool[T]) RemoveOwner(id string, owner int) {
	if e, ok := p.items[id]; ok {
		delete(e.owners, owner)
	}
}

// HasOwner reports whether owner is in id's owner set.
func (p *Pool[T]) HasOwner(id string, owner int) bool {
	e, ok := p.items[id]
	if !ok {
		return false
	}
	_, ok = e.owners[owner]
	return ok
}

// Owners returns id's owners in ascending order.
func (p *Pool[T]) Owners(id string) []int {
	e, ok := p.items[id]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(e.owners))
	for o := range e.owners {
		out = append(out, o)
	}
	sort.Ints(out)
	return out
}

// Delete removes id from the pool.
func (p *Pool[T]) Delete(id string) bool {
	if _, ok := p.items[id]; !ok {
		return false
	}
	delete(p.items, id)
	for i, k := range p.order {
		if k == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// DeleteFunc removes every entity matching fn and returns how many were removed.
func (p *Pool[T]) DeleteFunc(fn func(T) bool) int {
	kept := p.order[:0]
	removed := 0
	for _, id := range p.order {
		if fn(p.items[id].value) {
			delete(p.items, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	p.order = kept
	return removed
}

// IDs returns the registered ids in first-sighting order.
func (p *Pool[T]) IDs() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// All returns every canonical entity in first-sighting order.
func (p *Pool[T]) All() []T {
	out := make([]T, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.items[id].value)
	}
	return out
}

// OwnedBy returns the entities whose owner set contains owner.
func (p *Pool[T]) OwnedBy(owner int) []T {
	var out []T
	for _, id := range p.order {
		e := p.items[id]
		if _, ok := e.owners[owner]; ok {
			out = append(out, e.value)
		}
	}
	return out
}

// Filter returns the entities matching fn, in first-sighting order.
func (p *Pool[T]) Filter(fn func(T) bool) []T {
	var out []T
	for _, id := range p.order {
		if v := p.items[id].value; fn(v) {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the number of registered entities.
func (p *Pool[T]) Len() int { return len(p.order) }
