package game

import "testing"

type stubEngine struct {
	Engine
	name string
}

func (s stubEngine) Name() string { return s.name }

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubEngine{name: "checkers"}); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if _, ok := r.Lookup("checkers"); !ok {
		t.Fatal("registered engine not found")
	}
	if _, ok := r.Lookup("go"); ok {
		t.Fatal("unregistered engine found")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(stubEngine{name: "checkers"}); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := r.Register(stubEngine{name: "checkers"}); err == nil {
		t.Fatal("duplicate registration accepted")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zebra", "alpha", "mango"} {
		if err := r.Register(stubEngine{name: name}); err != nil {
			t.Fatalf("Register(%s) error: %v", name, err)
		}
	}
	names := r.Names()
	want := []string{"alpha", "mango", "zebra"}
	if len(names) != len(want) {
		t.Fatalf("Names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names = %v, want %v", names, want)
		}
	}
}
