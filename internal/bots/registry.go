package bots

import (
	"sort"
	"sync"
	"time"

	"github.com/talkincode/botfleet/internal/provider"
)

// RunningInstance is one registry entry. Handle is the live provider instance;
// the rest is the snapshot the status API reports.
type RunningInstance struct {
	TenantID    string    `json:"tenant_id"`
	SessionName string    `json:"session_name"`
	Phone       string    `json:"phone"`
	Port        int       `json:"port"`
	StartedAt   time.Time `json:"started_at"`

	Handle provider.Instance `json:"-"`
}

// Registry is the authoritative tenant to running-instance map. All reads and
// writes go through one mutex so membership checks and port lookups observe a
// consistent view.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*RunningInstance
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*RunningInstance)}
}

func (r *Registry) Get(tenantID string) (*RunningInstance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[tenantID]
	return ent, ok
}

// Insert registers the entry. Returns false without mutation when the tenant
// already has one.
func (r *Registry) Insert(ent *RunningInstance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[ent.TenantID]; ok {
		return false
	}
	r.entries[ent.TenantID] = ent
	return true
}

// Remove deregisters the tenant and returns the removed entry.
func (r *Registry) Remove(tenantID string) (*RunningInstance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.entries[tenantID]
	if ok {
		delete(r.entries, tenantID)
	}
	return ent, ok
}

// List returns a copy of all entries ordered by tenant id.
func (r *Registry) List() []RunningInstance {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunningInstance, 0, len(r.entries))
	for _, ent := range r.entries {
		out = append(out, *ent)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
