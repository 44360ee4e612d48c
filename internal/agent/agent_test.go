package agent

import (
	"sort"
	"testing"
)

type stubAgent struct {
	name        string
	initialized bool
}

func (s *stubAgent) Name() string { return s.name }
func (s *stubAgent) Init() error  { s.initialized = true; return nil }
func (s *stubAgent) HealthCheck() Health {
	return Health{Status: StatusFor(s.initialized), Agent: s.name}
}

func TestStatusFor(t *testing.T) {
	if got := StatusFor(true); got != "healthy" {
		t.Errorf("StatusFor(true) = %q", got)
	}
	if got := StatusFor(false); got != "not_initialized" {
		t.Errorf("StatusFor(false) = %q", got)
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	a := &stubAgent{name: "news_fetch_agent"}
	r.Register(a)

	got, ok := r.Get("news_fetch_agent")
	if !ok {
		t.Fatal("agent not found after Register")
	}
	if got.Name() != "news_fetch_agent" {
		t.Errorf("Name = %q", got.Name())
	}

	if _, ok := r.Get("missing_agent"); ok {
		t.Error("Get should miss for unregistered name")
	}
}

func TestRegistryNamesAndCount(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAgent{name: "a"})
	r.Register(&stubAgent{name: "b"})
	r.Register(&stubAgent{name: "b"}) // re-register replaces

	if r.Count() != 2 {
		t.Errorf("Count = %d, want 2", r.Count())
	}

	names := r.Names()
	sort.Strings(names)
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Names = %v", names)
	}
}

func TestStubHealthReflectsInit(t *testing.T) {
	a := &stubAgent{name: "x"}
	if a.HealthCheck().Status != "not_initialized" {
		t.Error("expected not_initialized before Init")
	}
	if err := a.Init(); err != nil {
		t.Fatal(err)
	}
	if a.HealthCheck().Status != "healthy" {
		t.Error("expected healthy after Init")
	}
}
