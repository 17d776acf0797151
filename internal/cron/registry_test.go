package cron

import "testing"

func TestRegistryKeepsOrderAndRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&testJob{name: "a"}); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := registry.Register(&testJob{name: "b"}); err != nil {
		t.Fatalf("register b: %v", err)
	}
	if err := registry.Register(&testJob{name: "a"}); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}
	if err := registry.Register(nil); err == nil {
		t.Fatal("expected nil job to be rejected")
	}

	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0].Name() != "a" || jobs[1].Name() != "b" {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("Jobs must return a copy")
	}
}
