package coordinator

import (
	"context"
	"sync"

	"agent-console/internal/identity"
)

// Factory builds an unstarted coordinator for one agent.
type Factory func(id identity.AgentIdentity) *Coordinator

// Registry holds one running coordinator per agent, created on first use.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	coords  map[string]*Coordinator
}

func NewRegistry(f Factory) *Registry {
	return &Registry{factory: f, coords: map[string]*Coordinator{}}
}

// Get returns the agent's coordinator, starting it on first use. A changed
// phone number for the same agent replaces the coordinator. The replaced one
// is stopped outside the registry lock, since stopping waits for its
// in-flight lookups.
func (r *Registry) Get(ctx context.Context, id identity.AgentIdentity) *Coordinator {
	r.mu.Lock()
	if c, ok := r.coords[id.AgentID]; ok {
		if c.id.NormalizedPhone() == id.NormalizedPhone() {
			r.mu.Unlock()
			return c
		}
		delete(r.coords, id.AgentID)
		r.mu.Unlock()

		c.Stop()
		return r.Get(ctx, id)
	}
	defer r.mu.Unlock()

	c := r.factory(id)
	c.Start(ctx)
	r.coords[id.AgentID] = c
	return c
}

// Remove stops and forgets the agent's coordinator.
func (r *Registry) Remove(agentID string) {
	r.mu.Lock()
	c, ok := r.coords[agentID]
	delete(r.coords, agentID)
	r.mu.Unlock()
	if ok {
		c.Stop()
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.coords)
}

// Close stops every coordinator.
func (r *Registry) Close() {
	r.mu.Lock()
	cs := make([]*Coordinator, 0, len(r.coords))
	for id, c := range r.coords {
		cs = append(cs, c)
		delete(r.coords, id)
	}
	r.mu.Unlock()
	for _, c := range cs {
		c.Stop()
	}
}
