package editor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/domedit/dbopen"
	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/dom/memdom"
	"github.com/hazyhaar/domedit/frame"
	"github.com/hazyhaar/domedit/input"
	"github.com/hazyhaar/domedit/journal"
	"github.com/hazyhaar/domedit/kit"
	"github.com/hazyhaar/domedit/modes"
	_ "modernc.org/sqlite"
)

const page = `<html><body>
<button id="go" style="left:10px;top:10px;width:100px;height:40px">Go</button>
<button id="stop" style="left:150px;top:10px;width:100px;height:40px">Stop</button>
<div id="panel" data-ui="1" style="left:0px;top:400px;width:400px;height:100px"></div>
</body></html>`

type nullSurface struct{}

func (nullSurface) Size() (w, h float64)                                { return 1280, 800 }
func (nullSurface) Scale() float64                                      { return 1 }
func (nullSurface) SetBackingSize(int, int, float64) error              { return nil }
func (nullSurface) Clear(float64, float64)                              {}
func (nullSurface) StrokeRect(x, y, w, h float64, c string, sw float64) {}
func (nullSurface) FillRect(x, y, w, h float64, c string)               {}

func newSession(t *testing.T, mut func(*Config)) (*Session, *memdom.Document) {
	t.Helper()
	doc := memdom.MustParse(page)
	cfg := Config{
		Doc: doc,
		Host: &StaticHost{Predicate: func(n dom.Node) bool {
			_, ok := n.Attr("data-ui")
			return ok
		}},
		Surface:   nullSurface{},
		Scheduler: frame.NewManual(),
	}
	if mut != nil {
		mut(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s, doc
}

func TestNewRequiresCoreDependencies(t *testing.T) {
	doc := memdom.MustParse(page)
	cases := []struct {
		name string
		cfg  Config
	}{
		{"nil doc", Config{Host: &StaticHost{}, Surface: nullSurface{}}},
		{"nil host", Config{Doc: doc, Surface: nullSurface{}}},
		{"nil surface", Config{Doc: doc, Host: &StaticHost{}}},
	}
	for _, tc := range cases {
		if _, err := New(tc.cfg); err == nil {
			t.Fatalf("%s: New succeeded", tc.name)
		}
	}
}

func TestSelectAtAndLocator(t *testing.T) {
	s, _ := newSession(t, nil)

	el, err := s.SelectAt(50, 20, false)
	if err != nil {
		t.Fatal(err)
	}
	if el == nil {
		t.Fatal("nothing selected")
	}
	if s.Mode() != modes.ModeSelecting {
		t.Fatalf("mode = %v, want selecting", s.Mode())
	}
	loc, err := s.SelectedLocator()
	if err != nil {
		t.Fatal(err)
	}
	if loc.Selectors[0] != "#go" {
		t.Fatalf("selectors = %v", loc.Selectors)
	}
}

func TestSelectAtEmptyPoint(t *testing.T) {
	s, _ := newSession(t, nil)
	el, err := s.SelectAt(600, 600, false)
	if err != nil {
		t.Fatal(err)
	}
	if el != nil {
		t.Fatalf("selected %v at empty point", el)
	}
	if _, err := s.SelectedLocator(); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("locator error = %v, want ErrNoSelection", err)
	}
}

func TestSelectAtIgnoresEditorUI(t *testing.T) {
	s, _ := newSession(t, nil)
	el, err := s.SelectAt(200, 450, false)
	if err != nil {
		t.Fatal(err)
	}
	if el != nil {
		t.Fatalf("selected editor surface element %v", el)
	}
}

func TestStyleUndoRedoRoundTrip(t *testing.T) {
	s, doc := newSession(t, nil)
	if _, err := s.SelectAt(50, 20, false); err != nil {
		t.Fatal(err)
	}

	tx, err := s.SetStyle("color", "red")
	if err != nil {
		t.Fatal(err)
	}
	if tx == nil || tx.After.Style["color"] != "red" {
		t.Fatalf("txn = %+v", tx)
	}
	el, err := doc.QueryOne("#go")
	if err != nil {
		t.Fatal(err)
	}
	if got := el.StyleProperty("color"); got != "red" {
		t.Fatalf("color after commit = %q", got)
	}

	if _, err := s.Undo(); err != nil {
		t.Fatal(err)
	}
	if got := el.StyleProperty("color"); got != "" {
		t.Fatalf("color after undo = %q", got)
	}
	undo, redo := s.Counts()
	if undo != 0 || redo != 1 {
		t.Fatalf("counts = %d/%d", undo, redo)
	}

	if _, err := s.Redo(); err != nil {
		t.Fatal(err)
	}
	if got := el.StyleProperty("color"); got != "red" {
		t.Fatalf("color after redo = %q", got)
	}
}

func TestSetStyleWithoutSelection(t *testing.T) {
	s, _ := newSession(t, nil)
	if _, err := s.SetStyle("color", "red"); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v, want ErrNoSelection", err)
	}
}

func TestDeselectLeavesSelectingMode(t *testing.T) {
	s, _ := newSession(t, nil)
	if _, err := s.SelectAt(50, 20, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Deselect(); err != nil {
		t.Fatal(err)
	}
	if s.Mode() != modes.ModeHover {
		t.Fatalf("mode = %v, want hover", s.Mode())
	}
	if s.Selected() != nil {
		t.Fatal("selection survived deselect")
	}
}

func TestSubscribeReceivesLifecycle(t *testing.T) {
	s, _ := newSession(t, nil)
	var types []string
	unsub := s.Subscribe(func(ev Event) { types = append(types, ev.Type) })

	if _, err := s.SelectAt(50, 20, false); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetStyle("color", "red"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Undo(); err != nil {
		t.Fatal(err)
	}

	want := []string{"select", "push", "undo"}
	if len(types) != len(want) {
		t.Fatalf("events = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("events = %v, want %v", types, want)
		}
	}

	unsub()
	if err := s.Deselect(); err != nil {
		t.Fatal(err)
	}
	if len(types) != len(want) {
		t.Fatalf("events after unsubscribe = %v", types)
	}
}

func TestJournalPersistsCommits(t *testing.T) {
	store, err := journal.NewStore(dbopen.OpenMemory(t), journal.Config{})
	if err != nil {
		t.Fatal(err)
	}
	s, _ := newSession(t, func(c *Config) { c.Journal = store })

	if _, err := s.SelectAt(50, 20, false); err != nil {
		t.Fatal(err)
	}
	tx, err := s.SetStyle("color", "red")
	if err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(context.Background(), tx.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.After.Style["color"] != "red" {
		t.Fatalf("persisted txn = %+v", got)
	}
}

func TestHandleInputAfterClose(t *testing.T) {
	s, _ := newSession(t, nil)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close = %v", err)
	}
	if _, err := s.HandleInput(input.Event{Type: input.PointerMove, X: 1, Y: 1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if _, err := s.Undo(); !errors.Is(err, ErrClosed) {
		t.Fatalf("undo err = %v, want ErrClosed", err)
	}
}

func TestInstrumentTagsToolContext(t *testing.T) {
	s, _ := newSession(t, nil)

	var gotSession, gotRequest string
	ep := s.instrument(func(ctx context.Context, _ any) (any, error) {
		gotSession = kit.GetSessionID(ctx)
		gotRequest = kit.GetRequestID(ctx)
		return "ok", nil
	})

	resp, err := ep(context.Background(), nil)
	if err != nil || resp != "ok" {
		t.Fatalf("endpoint = %v, %v", resp, err)
	}
	if gotSession != s.ID() {
		t.Fatalf("session id = %q, want %q", gotSession, s.ID())
	}
	if !strings.HasPrefix(gotRequest, "call_") {
		t.Fatalf("request id = %q, want call_ prefix", gotRequest)
	}

	// Distinct calls get distinct request ids.
	first := gotRequest
	if _, err := ep(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if gotRequest == first {
		t.Fatalf("request id %q repeated", gotRequest)
	}
}

func TestDebugDumpNamesSelection(t *testing.T) {
	s, _ := newSession(t, nil)
	if _, err := s.SelectAt(50, 20, false); err != nil {
		t.Fatal(err)
	}
	dump := s.DebugDump()
	if !strings.Contains(dump, "#go") || !strings.Contains(dump, "selecting") {
		t.Fatalf("dump = %q", dump)
	}
}
