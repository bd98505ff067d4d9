package wsgateway

import (
	"testing"
)

func TestConnectionRegistry_AddRemove(t *testing.T) {
	registry := NewConnectionRegistry()

	conn := &Connection{ID: "conn-1"}
	registry.Add(conn)

	retrieved, exists := registry.Get("conn-1")
	if !exists {
		t.Fatal("Expected connection to exist")
	}
	if retrieved.ID != "conn-1" {
		t.Errorf("Expected connection ID %s, got %s", "conn-1", retrieved.ID)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 connection, got %d", registry.Count())
	}

	if !registry.Remove("conn-1") {
		t.Error("Expected first remove to report the connection")
	}
	if registry.Remove("conn-1") {
		t.Error("Expected second remove to be a no-op")
	}

	if _, exists = registry.Get("conn-1"); exists {
		t.Error("Expected connection to be removed")
	}
	if registry.Count() != 0 {
		t.Errorf("Expected 0 connections, got %d", registry.Count())
	}
}

func TestConnectionRegistry_GetAll(t *testing.T) {
	registry := NewConnectionRegistry()
	registry.Add(&Connection{ID: "conn-1"})
	registry.Add(&Connection{ID: "conn-2"})
	registry.Add(&Connection{ID: "conn-3"})

	all := registry.GetAll()
	if len(all) != 3 {
		t.Fatalf("Expected 3 connections, got %d", len(all))
	}

	seen := make(map[string]bool)
	for _, c := range all {
		seen[c.ID] = true
	}
	for _, id := range []string{"conn-1", "conn-2", "conn-3"} {
		if !seen[id] {
			t.Errorf("Expected %s in GetAll", id)
		}
	}
}
