package input

import "testing"

func TestParseTypeRoundTrip(t *testing.T) {
	for name, want := range map[string]Type{
		"pointermove": PointerMove,
		"pointerdown": PointerDown,
		"keydown":     KeyDown,
		"wheel":       Wheel,
		"touchstart":  TouchStart,
	} {
		got, ok := ParseType(name)
		if !ok || got != want {
			t.Fatalf("ParseType(%q) = %v, %v; want %v, true", name, got, ok, want)
		}
		if got.String() != name {
			t.Fatalf("%v.String() = %q, want %q", got, got.String(), name)
		}
	}

	if _, ok := ParseType("mouseenter"); ok {
		t.Fatal("ParseType accepted an unintercepted event name")
	}
}

func TestDefaultPolicySuppressesEverything(t *testing.T) {
	p := DefaultPolicy()
	for name := range typeNames {
		ev := Event{Type: name}
		if got := p.ActionFor(ev); got != Suppress {
			t.Fatalf("ActionFor(%v) = %v, want Suppress", name, got)
		}
	}
}

func TestEditorUIAlwaysPasses(t *testing.T) {
	p := DefaultPolicy()
	ev := Event{Type: PointerDown, OnEditorUI: true}
	if got := p.ActionFor(ev); got != Pass {
		t.Fatalf("editor-UI event got %v, want Pass", got)
	}
}

func TestUnknownTypeSuppressed(t *testing.T) {
	p := Policy{}
	if got := p.ActionFor(Event{Type: Type(99)}); got != Suppress {
		t.Fatalf("unknown type got %v, want Suppress", got)
	}
}
