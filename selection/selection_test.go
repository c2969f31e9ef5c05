package selection

import (
	"testing"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/dom/memdom"
	"github.com/hazyhaar/domedit/input"
)

func mustNode(t *testing.T, d *memdom.Document, sel string) dom.Node {
	t.Helper()
	n, err := d.QueryOne(sel)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestPickPrefersInteractiveOverWrapper(t *testing.T) {
	d := memdom.MustParse(`<html><body>
<div id="card" style="left:0px;top:0px;width:300px;height:200px">
  <button id="cta" style="left:20px;top:20px;width:100px;height:40px;cursor:pointer">Buy</button>
</div>
</body></html>`)
	e := New(d, Config{})

	got := e.Pick(50, 40, input.Modifiers{})
	if got == nil || got.ID() != "cta" {
		t.Fatalf("picked %v, want #cta", got)
	}
}

func TestPickIgnoresInvisible(t *testing.T) {
	d := memdom.MustParse(`<html><body>
<div id="visible" style="left:0px;top:0px;width:200px;height:200px;background-color:#fff"></div>
<div id="ghost" style="left:0px;top:0px;width:200px;height:200px;visibility:hidden"></div>
<div id="faint" style="left:0px;top:0px;width:200px;height:200px;opacity:0.01"></div>
</body></html>`)
	e := New(d, Config{})

	got := e.Pick(100, 100, input.Modifiers{})
	if got == nil || got.ID() != "visible" {
		t.Fatalf("picked %v, want #visible", got)
	}
}

func TestPickNothingUnderPoint(t *testing.T) {
	d := memdom.MustParse(`<html><body>
<div style="left:0px;top:0px;width:50px;height:50px"></div>
</body></html>`)
	e := New(d, Config{})

	if got := e.Pick(500, 500, input.Modifiers{}); got != nil {
		t.Fatalf("picked %v over empty space, want nil", got)
	}
}

func TestPickExcludesEditorUI(t *testing.T) {
	d := memdom.MustParse(`<html><body>
<button id="page-btn" style="left:0px;top:0px;width:100px;height:40px">Page</button>
<div id="panel" data-ui="1" style="left:0px;top:0px;width:100px;height:40px;background-color:#222"></div>
</body></html>`)
	e := New(d, Config{
		IsEditorUI: func(n dom.Node) bool {
			_, ok := n.Attr("data-ui")
			return ok
		},
	})

	got := e.Pick(50, 20, input.Modifiers{})
	if got == nil || got.ID() != "page-btn" {
		t.Fatalf("picked %v, want the page button under the panel", got)
	}
}

func TestPickPenalizesViewportCover(t *testing.T) {
	d := memdom.MustParse(`<html><body>
<div id="bg" style="left:0px;top:0px;width:1280px;height:800px;background-color:#eee">
  <div id="tile" style="left:100px;top:100px;width:200px;height:150px;background-color:#fff;border:1px solid #000"></div>
</div>
</body></html>`, memdom.WithViewport(1280, 800))
	e := New(d, Config{})

	got := e.Pick(150, 150, input.Modifiers{})
	if got == nil || got.ID() != "tile" {
		t.Fatalf("picked %v, want #tile over the full-viewport backdrop", got)
	}
}

func TestPickAltDrillsUp(t *testing.T) {
	d := memdom.MustParse(`<html><body>
<div id="card" style="left:0px;top:0px;width:300px;height:200px;background-color:#fff;border:1px solid #ccc">
  <button id="cta" style="left:20px;top:20px;width:100px;height:40px">Buy</button>
  <p style="left:20px;top:80px;width:200px;height:20px">blurb</p>
</div>
</body></html>`)
	e := New(d, Config{})

	plain := e.Pick(50, 40, input.Modifiers{})
	if plain == nil || plain.ID() != "cta" {
		t.Fatalf("plain pick = %v, want #cta", plain)
	}
	up := e.Pick(50, 40, input.Modifiers{Alt: true})
	if up == nil || up.ID() != "card" {
		t.Fatalf("alt pick = %v, want #card", up)
	}
}

func TestHitFastPath(t *testing.T) {
	d := memdom.MustParse(`<html><body>
<div id="under" style="left:0px;top:0px;width:100px;height:100px"></div>
<div id="over" style="left:0px;top:0px;width:100px;height:100px"></div>
</body></html>`)
	e := New(d, Config{})

	got := e.Hit(50, 50)
	if got == nil || got.ID() != "over" {
		t.Fatalf("hit %v, want the later-in-document element", got)
	}
	if got := e.Hit(500, 500); got != nil {
		t.Fatalf("hit %v outside everything, want nil", got)
	}
}

func TestHitEditorUIReportsNil(t *testing.T) {
	d := memdom.MustParse(`<html><body>
<div id="panel" data-ui="1" style="left:0px;top:0px;width:100px;height:100px"></div>
</body></html>`)
	e := New(d, Config{
		IsEditorUI: func(n dom.Node) bool {
			_, ok := n.Attr("data-ui")
			return ok
		},
	})

	if got := e.Hit(50, 50); got != nil {
		t.Fatalf("hit %v on editor UI, want nil", got)
	}
}

func TestTieBreakFavorsDeepest(t *testing.T) {
	// Nested divs with identical scores: the deepest wins.
	d := memdom.MustParse(`<html><body>
<div id="outer" style="left:0px;top:0px;width:200px;height:200px">
  <div id="mid" style="left:0px;top:0px;width:200px;height:200px">
    <div id="innermost" style="left:0px;top:0px;width:200px;height:200px">
      <span style="left:0px;top:0px;width:10px;height:10px">x</span>
      <span style="left:20px;top:0px;width:10px;height:10px">y</span>
    </div>
  </div>
</div>
</body></html>`)
	e := New(d, Config{})

	got := e.Pick(100, 100, input.Modifiers{})
	if got == nil || got.ID() != "innermost" {
		t.Fatalf("picked %v, want #innermost", got)
	}
}
