package hierarchy

import (
	"context"
	"testing"
)

func TestParse_Root(t *testing.T) {
	entry, err := Parse("/My Notes/")
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if entry.Title != "My Notes" {
		t.Errorf("Title = %q, want %q", entry.Title, "My Notes")
	}
	if entry.Level != 1 {
		t.Errorf("Level = %d, want 1", entry.Level)
	}
	if !entry.Root() {
		t.Errorf("Root() = false, want true")
	}
}

func TestParse_Nested(t *testing.T) {
	entry, err := Parse("/Work/Projects/2021/")
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if entry.Title != "2021" {
		t.Errorf("Title = %q, want %q", entry.Title, "2021")
	}
	if entry.Level != 3 {
		t.Errorf("Level = %d, want 3", entry.Level)
	}
	if entry.ParentLocation != "/Work/Projects/" {
		t.Errorf("ParentLocation = %q, want %q", entry.ParentLocation, "/Work/Projects/")
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, loc := range []string{"", "/", "//", "/a//b/"} {
		if _, err := Parse(loc); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", loc)
		}
	}
}

// mapRegistry is an in-memory Registry for resolver tests.
type mapRegistry struct {
	entries map[string]*ChainEntry
	order   []string
}

func newMapRegistry() *mapRegistry {
	return &mapRegistry{entries: make(map[string]*ChainEntry)}
}

func (m *mapRegistry) ChainEntry(location string) *ChainEntry {
	return m.entries[location]
}

func (m *mapRegistry) InsertChainEntry(_ context.Context, entry *ChainEntry) error {
	if _, ok := m.entries[entry.Location]; ok {
		return nil
	}
	m.entries[entry.Location] = entry
	m.order = append(m.order, entry.Location)
	return nil
}

// Registering a deep location must register every ancestor as well.
func TestRegister_BuildsFullChain(t *testing.T) {
	reg := newMapRegistry()
	entry, err := Register(context.Background(), reg, "/Work/Projects/2021/")
	if err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if entry.Location != "/Work/Projects/2021/" {
		t.Errorf("entry.Location = %q", entry.Location)
	}
	for _, loc := range []string{"/Work/", "/Work/Projects/", "/Work/Projects/2021/"} {
		if reg.ChainEntry(loc) == nil {
			t.Errorf("ancestor %q not registered", loc)
		}
	}
}

func TestRegister_Idempotent(t *testing.T) {
	reg := newMapRegistry()
	if _, err := Register(context.Background(), reg, "/Work/Projects/"); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}
	if _, err := Register(context.Background(), reg, "/Work/Projects/"); err != nil {
		t.Fatalf("second Register() failed: %v", err)
	}
	if len(reg.order) != 2 {
		t.Errorf("registered %d entries, want 2 (%v)", len(reg.order), reg.order)
	}
}

// Sibling locations share already-registered ancestors.
func TestRegister_SharedAncestors(t *testing.T) {
	reg := newMapRegistry()
	if _, err := Register(context.Background(), reg, "/Work/Projects/"); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if _, err := Register(context.Background(), reg, "/Work/Notes/"); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	if len(reg.order) != 3 {
		t.Errorf("registered %d entries, want 3 (%v)", len(reg.order), reg.order)
	}
}
