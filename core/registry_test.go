package core

import "testing"

func TestServiceRegistry_ListPreservesRegistrationOrder(t *testing.T) {
	registry := NewServiceRegistry()
	for _, name := range []string{"zeta", "alpha", "beta"} {
		if err := registry.Register(newTestService(name)); err != nil {
			t.Fatalf("register service %q: %v", name, err)
		}
	}

	listed := registry.List()
	if len(listed) != 3 {
		t.Fatalf("expected 3 services, got %d", len(listed))
	}

	want := []string{"zeta", "alpha", "beta"}
	for idx := range want {
		if listed[idx].Name() != want[idx] {
			t.Fatalf("unexpected ordering at index %d: got %q want %q", idx, listed[idx].Name(), want[idx])
		}
	}
}

func TestServiceRegistry_DuplicateNameRejected(t *testing.T) {
	registry := NewServiceRegistry()
	if err := registry.Register(newTestService("github")); err != nil {
		t.Fatalf("register service: %v", err)
	}
	if err := registry.Register(newTestService("github")); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}

	if len(registry.List()) != 1 {
		t.Fatalf("expected failed registration to leave the registry untouched")
	}
}

func TestServiceRegistry_RejectsInvalidServices(t *testing.T) {
	registry := NewServiceRegistry()
	if err := registry.Register(nil); err == nil {
		t.Fatalf("expected nil service to fail")
	}
	if err := registry.Register(newTestService("   ")); err == nil {
		t.Fatalf("expected blank name to fail")
	}
}

func TestServiceRegistry_Get(t *testing.T) {
	registry := NewServiceRegistry()
	if err := registry.Register(newTestService("github")); err != nil {
		t.Fatalf("register service: %v", err)
	}

	if _, ok := registry.Get("github"); !ok {
		t.Fatalf("expected service lookup to succeed")
	}
	if _, ok := registry.Get("missing"); ok {
		t.Fatalf("expected unknown service lookup to fail")
	}
	if _, ok := registry.Get(""); ok {
		t.Fatalf("expected empty name lookup to fail")
	}
}
