package optout

import "testing"

func TestToggleGlobal(t *testing.T) {
	s := NewStore()
	if s.Contains("", "+5211111111") {
		t.Fatal("new store should be empty")
	}
	if out := s.Toggle("", "+5211111111"); !out {
		t.Fatal("first toggle should opt out")
	}
	if !s.Contains("", "+5211111111") {
		t.Fatal("phone should be opted out")
	}
	if out := s.Toggle("", "+5211111111"); out {
		t.Fatal("second toggle should opt back in")
	}
	if s.Contains("", "+5211111111") {
		t.Fatal("phone should be opted in again")
	}
}

func TestTenantScopedOptOut(t *testing.T) {
	s := NewStore()
	s.Toggle("client-a", "+5212222222")

	if !s.Contains("client-a", "+5212222222") {
		t.Fatal("tenant set should contain phone")
	}
	if s.Contains("client-b", "+5212222222") {
		t.Fatal("other tenant must not be affected")
	}
	if s.Contains("", "+5212222222") {
		t.Fatal("global set must not be affected")
	}
}

func TestGlobalAppliesToAllTenants(t *testing.T) {
	s := NewStore()
	s.Toggle("", "+5213333333")
	if !s.Contains("client-a", "+5213333333") {
		t.Fatal("global opt-out must apply to every tenant")
	}
}

func TestSnapshotSorted(t *testing.T) {
	s := NewStore()
	s.Toggle("", "+52999")
	s.Toggle("", "+52111")
	global, _ := s.Snapshot("")
	if len(global) != 2 || global[0] != "+52111" || global[1] != "+52999" {
		t.Fatalf("unexpected snapshot: %v", global)
	}
}
