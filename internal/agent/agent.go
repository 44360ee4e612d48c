// Package agent defines the common contract shared by the pipeline agents
// (news fetch, LLM sentiment, sentiment aggregator, support/resistance) and
// a registry the HTTP facade uses to look them up.
package agent

import "sync"

// Agent is the capability set every pipeline agent implements. Processing
// entry points are typed per agent; the shared contract covers lifecycle
// and health only.
type Agent interface {
	// Name returns the agent's unique identifier (e.g., "news_fetch_agent").
	Name() string

	// Init prepares the agent's components. Must be called before processing.
	Init() error

	// HealthCheck reports the agent's current health.
	HealthCheck() Health
}

// Health is the standard health report returned by every agent.
type Health struct {
	Status     string          `json:"status"` // "healthy" or "not_initialized"
	Agent      string          `json:"agent"`
	Version    string          `json:"version"`
	Components map[string]bool `json:"components_initialized,omitempty"`
	Extra      map[string]any  `json:"extra,omitempty"`
}

// StatusFor maps an initialized flag to the standard health status string.
func StatusFor(initialized bool) string {
	if initialized {
		return "healthy"
	}
	return "not_initialized"
}

// ── Agent Registry ──

// Registry holds a collection of named agents for the HTTP facade.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds an agent to the registry.
func (r *Registry) Register(a Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[a.Name()] = a
}

// Get retrieves an agent by name.
func (r *Registry) Get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// Names returns the names of all registered agents.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	return names
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
