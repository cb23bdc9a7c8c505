package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tunaaoguzhann/schoolgate/core"
)

// GateRegistry holds the gates handed out to clients, keyed by gate ID.
type GateRegistry struct {
	mu    sync.RWMutex
	gates map[uuid.UUID]*core.Gate
	now   func() time.Time
}

func NewGateRegistry() *GateRegistry {
	return &GateRegistry{
		gates: make(map[uuid.UUID]*core.Gate),
		now:   time.Now,
	}
}

func (r *GateRegistry) Put(g *core.Gate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gates[g.ID()] = g
}

func (r *GateRegistry) Get(id uuid.UUID) (*core.Gate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gates[id]
	return g, ok
}

func (r *GateRegistry) Delete(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.gates, id)
}

func (r *GateRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gates)
}

// Sweep drops gates that have not changed for longer than idle.
func (r *GateRegistry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, g := range r.gates {
		if g.LastUpdate().Before(cutoff) {
			delete(r.gates, id)
			n++
		}
	}
	return n
}
