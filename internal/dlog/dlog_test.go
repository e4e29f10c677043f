package dlog

import "testing"

func TestMutedStopsAfterLimit(t *testing.T) {
	m := NewMuted(2)
	m.Warn("k", "warn %d", 1)
	m.Warn("k", "warn %d", 2)
	if !m.muted["k"] {
		t.Fatal("expected key to be muted after reaching the limit")
	}
	m.Warn("k", "warn %d", 3) // must not panic; just stays muted
}

func TestMutedResetUnmutes(t *testing.T) {
	m := NewMuted(1)
	m.Warn("k", "warn")
	if !m.muted["k"] {
		t.Fatal("expected mute after limit 1")
	}
	m.Reset("k")
	if m.muted["k"] {
		t.Fatal("expected Reset to clear the mute")
	}
}
