package track

import (
	"testing"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/dom/memdom"
	"github.com/hazyhaar/domedit/frame"
)

const page = `<html><body>
<button id="go" style="left:100px;top:100px;width:120px;height:40px">Go</button>
<p id="txt" style="left:100px;top:200px;width:300px;height:20px">text</p>
</body></html>`

type harness struct {
	doc     *memdom.Document
	pump    *frame.Manual
	tracker *Tracker
	updates []Update
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{doc: memdom.MustParse(page), pump: frame.NewManual()}
	h.tracker = New(Config{
		Doc:       h.doc,
		Scheduler: h.pump,
		OnUpdate:  func(u Update) { h.updates = append(h.updates, u) },
	})
	t.Cleanup(h.tracker.Close)
	return h
}

func (h *harness) node(t *testing.T, sel string) dom.Node {
	t.Helper()
	n, err := h.doc.QueryOne(sel)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSetTrackedEmitsRect(t *testing.T) {
	h := newHarness(t)
	h.tracker.SetTracked(SlotHover, h.node(t, "#go"))
	h.pump.Pump()

	if len(h.updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(h.updates))
	}
	u := h.updates[0]
	if u.Hover == nil || u.Hover.X != 100 || u.Hover.Y != 100 {
		t.Fatalf("hover rect = %+v", u.Hover)
	}
	if u.Selection != nil {
		t.Fatalf("selection rect = %+v, want nil", u.Selection)
	}
}

func TestGeometrySignalCoalesced(t *testing.T) {
	h := newHarness(t)
	h.tracker.SetTracked(SlotHover, h.node(t, "#go"))
	h.pump.Pump()
	h.updates = nil

	// Three signals inside one frame: one recomputation, one update.
	h.doc.Scroll(0, 10)
	h.doc.Scroll(0, 10)
	h.doc.Scroll(0, 10)
	if n := h.pump.Pump(); n != 1 {
		t.Fatalf("pumped %d callbacks, want 1", n)
	}
	if len(h.updates) != 1 {
		t.Fatalf("got %d updates, want 1", len(h.updates))
	}
	if got := h.updates[0].Hover.Y; got != 70 {
		t.Fatalf("hover Y = %v, want 70 after 30px scroll", got)
	}
}

func TestSubToleranceChangeSuppressed(t *testing.T) {
	h := newHarness(t)
	h.tracker.SetTracked(SlotHover, h.node(t, "#go"))
	h.pump.Pump()
	h.updates = nil

	h.doc.Scroll(0, 0.2)
	h.pump.Pump()
	if len(h.updates) != 0 {
		t.Fatalf("sub-tolerance move produced %d updates, want 0", len(h.updates))
	}

	h.doc.Scroll(0, 5)
	h.pump.Pump()
	if len(h.updates) != 1 {
		t.Fatalf("real move produced %d updates, want 1", len(h.updates))
	}
}

func TestDetachedElementReportsNil(t *testing.T) {
	h := newHarness(t)
	el := h.node(t, "#go")
	h.tracker.SetTracked(SlotSelection, el)
	h.pump.Pump()

	h.doc.Detach(el)
	h.doc.EmitGeometry()
	h.pump.Pump()

	last := h.updates[len(h.updates)-1]
	if last.Selection != nil {
		t.Fatalf("selection rect = %+v after detach, want nil", last.Selection)
	}
}

func TestSharedElementSharesRect(t *testing.T) {
	h := newHarness(t)
	el := h.node(t, "#go")
	h.tracker.SetTracked(SlotHover, el)
	h.tracker.SetTracked(SlotSelection, el)
	h.pump.PumpAll()

	last := h.updates[len(h.updates)-1]
	if last.Hover == nil || last.Selection == nil {
		t.Fatal("both slots should report a rect")
	}
	if *last.Hover != *last.Selection {
		t.Fatalf("hover %+v and selection %+v differ for the same element", last.Hover, last.Selection)
	}
}

func TestForceSyncBypassesFrame(t *testing.T) {
	h := newHarness(t)
	h.tracker.SetTracked(SlotHover, h.node(t, "#go"))
	h.tracker.ForceSync()

	if len(h.updates) != 1 {
		t.Fatalf("ForceSync produced %d updates without a pump, want 1", len(h.updates))
	}
}

func TestCloseStopsUpdates(t *testing.T) {
	h := newHarness(t)
	h.tracker.SetTracked(SlotHover, h.node(t, "#go"))
	h.tracker.Close()
	h.pump.PumpAll()
	h.doc.EmitGeometry()
	h.pump.PumpAll()

	if len(h.updates) != 0 {
		t.Fatalf("closed tracker produced %d updates", len(h.updates))
	}
}
