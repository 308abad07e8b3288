package persistence

import "testing"

func TestIDGeneratorSequence(t *testing.T) {
	var persisted []string
	g := NewIDGenerator(func(seed string) { persisted = append(persisted, seed) })
	g.Init("")

	if got := g.Next(); got != "bb" {
		t.Errorf("first id = %q, want bb", got)
	}
	var last string
	for i := 0; i < 24; i++ {
		last = g.Next()
	}
	if last != "bz" {
		t.Errorf("25th id = %q, want bz", last)
	}
	if got := g.Next(); got != "ca" {
		t.Errorf("after rollover = %q, want ca", got)
	}
	if len(persisted) != 2 || persisted[0] != "b" || persisted[1] != "c" {
		t.Errorf("persisted = %v, want [b c]", persisted)
	}
}

func TestIDGeneratorSeedCarry(t *testing.T) {
	tests := []struct {
		last string
		want string
	}{
		{"", "b"},
		{"a", "b"},
		{"z", "aa"},
		{"az", "ba"},
		{"zz", "aaa"},
		{"BAD", "b"},
	}
	for _, tt := range tests {
		g := NewIDGenerator(nil)
		g.Init(tt.last)
		if g.Seed() != tt.want {
			t.Errorf("Init(%q) seed = %q, want %q", tt.last, g.Seed(), tt.want)
		}
	}
}

func TestIDGeneratorUnique(t *testing.T) {
	g := NewIDGenerator(nil)
	g.Init("q")
	seen := make(map[string]bool)
	for i := 0; i < 2000; i++ {
		id := g.Next()
		if seen[id] {
			t.Fatalf("duplicate id %q at %d", id, i)
		}
		seen[id] = true
	}
}
