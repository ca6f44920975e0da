package gateway

import (
	"sort"

	"github.com/puku-sh/gateway/pkg/api"
)

// registry holds the model descriptor table. The table is built once at
// startup from configuration and never mutated, so lookups are lock-free.
type registry struct {
	models map[string]api.ModelDescriptor
	sorted []api.ModelDescriptor
}

func newRegistry(descriptors []api.ModelDescriptor) *registry {
	r := &registry{models: make(map[string]api.ModelDescriptor, len(descriptors))}
	for _, m := range descriptors {
		r.models[m.ID] = m
	}
	for _, m := range r.models {
		r.sorted = append(r.sorted, m)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].ID < r.sorted[j].ID })
	return r
}

func (r *registry) resolve(modelID string) (api.ModelDescriptor, bool) {
	m, ok := r.models[modelID]
	return m, ok
}

// list returns descriptors in stable ID order so that repeated listings
// are byte-identical.
func (r *registry) list() []api.ModelDescriptor {
	out := make([]api.ModelDescriptor, len(r.sorted))
	copy(out, r.sorted)
	return out
}
