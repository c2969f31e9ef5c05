package txn

import (
	"errors"
	"testing"
	"time"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/dom/memdom"
)

const page = `<html><body>
<button id="go" class="btn" style="left:10px;top:10px;width:80px;height:30px;color:red">Go</button>
<p id="txt" style="left:10px;top:100px;width:300px;height:20px">text</p>
</body></html>`

// clock is an injectable test clock.
type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func testManager(t *testing.T, clk *clock, opts ...func(*Config)) *Manager {
	t.Helper()
	cfg := Config{Now: clk.Now}
	for _, o := range opts {
		o(&cfg)
	}
	m := NewManager(cfg)
	t.Cleanup(m.Close)
	return m
}

func mustNode(t *testing.T, d *memdom.Document, sel string) dom.Node {
	t.Helper()
	n, err := d.QueryOne(sel)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func setStyle(t *testing.T, m *Manager, d *memdom.Document, sel, prop, val string) *Transaction {
	t.Helper()
	e, err := m.Begin(d, mustNode(t, d, sel), prop)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Set(val); err != nil {
		t.Fatal(err)
	}
	tx, err := e.Commit()
	if err != nil {
		t.Fatal(err)
	}
	return tx
}

func TestCommitJournalsAndApplies(t *testing.T) {
	d := memdom.MustParse(page)
	m := testManager(t, newClock())

	tx := setStyle(t, m, d, "#go", "color", "blue")
	if tx == nil {
		t.Fatal("commit returned nil for a real change")
	}
	if got := mustNode(t, d, "#go").StyleProperty("color"); got != "blue" {
		t.Fatalf("element color = %q, want blue", got)
	}
	if tx.Before.Style["color"] != "red" || tx.After.Style["color"] != "blue" {
		t.Fatalf("snapshots = %v -> %v", tx.Before.Style, tx.After.Style)
	}
	if undo, redo := m.Counts(); undo != 1 || redo != 0 {
		t.Fatalf("counts = %d/%d, want 1/0", undo, redo)
	}
}

func TestNoopCommitRecordsNothing(t *testing.T) {
	d := memdom.MustParse(page)
	m := testManager(t, newClock())

	e, err := m.Begin(d, mustNode(t, d, "#go"), "color")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Set("blue"); err != nil {
		t.Fatal(err)
	}
	if err := e.Set(" red "); err != nil {
		t.Fatal(err)
	}
	tx, err := e.Commit()
	if err != nil {
		t.Fatal(err)
	}
	if tx != nil {
		t.Fatalf("normalized no-op journaled %v", tx)
	}
	if undo, _ := m.Counts(); undo != 0 {
		t.Fatalf("undo count = %d, want 0", undo)
	}
}

func TestMergeCollapsesDrag(t *testing.T) {
	d := memdom.MustParse(page)
	clk := newClock()
	m := testManager(t, clk)

	first := setStyle(t, m, d, "#go", "color", "blue")
	clk.Advance(100 * time.Millisecond)
	second := setStyle(t, m, d, "#go", "color", "green")

	if second != first {
		t.Fatal("merge did not return the extended undo top")
	}
	if !first.Merged {
		t.Fatal("merged transaction not flagged")
	}
	if first.Before.Style["color"] != "red" || first.After.Style["color"] != "green" {
		t.Fatalf("merged snapshots = %v -> %v, want red -> green", first.Before.Style, first.After.Style)
	}
	if undo, _ := m.Counts(); undo != 1 {
		t.Fatalf("undo count = %d, want one collapsed step", undo)
	}

	// Undo restores the original, skipping the intermediate value.
	if _, err := m.Undo(d); err != nil {
		t.Fatal(err)
	}
	if got := mustNode(t, d, "#go").StyleProperty("color"); got != "red" {
		t.Fatalf("after undo color = %q, want red", got)
	}
}

func TestMergeWindowExpires(t *testing.T) {
	d := memdom.MustParse(page)
	clk := newClock()
	m := testManager(t, clk)

	setStyle(t, m, d, "#go", "color", "blue")
	clk.Advance(DefaultMergeWindow + time.Millisecond)
	setStyle(t, m, d, "#go", "color", "green")

	if undo, _ := m.Counts(); undo != 2 {
		t.Fatalf("undo count = %d, want 2 outside the window", undo)
	}
}

func TestDifferentPropertyBlocksMerge(t *testing.T) {
	d := memdom.MustParse(page)
	clk := newClock()
	m := testManager(t, clk)

	setStyle(t, m, d, "#go", "color", "blue")
	clk.Advance(10 * time.Millisecond)
	setStyle(t, m, d, "#go", "background-color", "yellow")
	clk.Advance(10 * time.Millisecond)
	setStyle(t, m, d, "#go", "color", "green")

	if undo, _ := m.Counts(); undo != 3 {
		t.Fatalf("undo count = %d, want 3: an intervening property breaks the run", undo)
	}
}

func TestDifferentTargetBlocksMerge(t *testing.T) {
	d := memdom.MustParse(page)
	clk := newClock()
	m := testManager(t, clk)

	setStyle(t, m, d, "#go", "color", "blue")
	clk.Advance(10 * time.Millisecond)
	setStyle(t, m, d, "#txt", "color", "blue")

	if undo, _ := m.Counts(); undo != 2 {
		t.Fatalf("undo count = %d, want 2 for distinct targets", undo)
	}
}

func TestCommitDiscreteBlocksMerge(t *testing.T) {
	d := memdom.MustParse(page)
	clk := newClock()
	m := testManager(t, clk)

	setStyle(t, m, d, "#go", "color", "blue")
	clk.Advance(10 * time.Millisecond)

	e, err := m.Begin(d, mustNode(t, d, "#go"), "color")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Set("green"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CommitDiscrete(); err != nil {
		t.Fatal(err)
	}

	if undo, _ := m.Counts(); undo != 2 {
		t.Fatalf("undo count = %d, want 2 discrete steps", undo)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	d := memdom.MustParse(page)
	m := testManager(t, newClock())

	setStyle(t, m, d, "#go", "color", "blue")

	tx, err := m.Undo(d)
	if err != nil || tx == nil {
		t.Fatalf("undo: %v, %v", tx, err)
	}
	if got := mustNode(t, d, "#go").StyleProperty("color"); got != "red" {
		t.Fatalf("after undo color = %q, want red", got)
	}
	if undo, redo := m.Counts(); undo != 0 || redo != 1 {
		t.Fatalf("counts = %d/%d, want 0/1", undo, redo)
	}

	tx, err = m.Redo(d)
	if err != nil || tx == nil {
		t.Fatalf("redo: %v, %v", tx, err)
	}
	if got := mustNode(t, d, "#go").StyleProperty("color"); got != "blue" {
		t.Fatalf("after redo color = %q, want blue", got)
	}
}

func TestUndoEmptyIsNilNil(t *testing.T) {
	d := memdom.MustParse(page)
	m := testManager(t, newClock())

	tx, err := m.Undo(d)
	if tx != nil || err != nil {
		t.Fatalf("empty undo = %v, %v; want nil, nil", tx, err)
	}
	tx, err = m.Redo(d)
	if tx != nil || err != nil {
		t.Fatalf("empty redo = %v, %v; want nil, nil", tx, err)
	}
}

func TestNewEditClearsRedoAndBlocksMerge(t *testing.T) {
	d := memdom.MustParse(page)
	clk := newClock()
	m := testManager(t, clk)

	setStyle(t, m, d, "#go", "color", "blue")
	if _, err := m.Undo(d); err != nil {
		t.Fatal(err)
	}

	// Inside the merge window, but a pending redo must force a fresh step.
	clk.Advance(10 * time.Millisecond)
	setStyle(t, m, d, "#go", "color", "green")

	if undo, redo := m.Counts(); undo != 1 || redo != 0 {
		t.Fatalf("counts = %d/%d, want 1/0 with redo cleared", undo, redo)
	}
	if top := m.Latest(); top.Merged {
		t.Fatal("push after undo merged into a dead branch")
	}
}

func TestHistoryEviction(t *testing.T) {
	d := memdom.MustParse(page)
	clk := newClock()
	m := testManager(t, clk, func(c *Config) { c.MaxHistory = 3 })

	colors := []string{"blue", "green", "yellow", "purple"}
	for _, c := range colors {
		setStyle(t, m, d, "#go", "color", c)
		clk.Advance(DefaultMergeWindow * 2)
	}

	h := m.History()
	if len(h) != 3 {
		t.Fatalf("history length = %d, want 3", len(h))
	}
	if h[0].After.Style["color"] != "green" {
		t.Fatalf("oldest surviving entry = %v, want the second edit", h[0].After.Style)
	}
}

func TestUndoUnresolvableRevertsPop(t *testing.T) {
	d := memdom.MustParse(page)
	m := testManager(t, newClock())

	setStyle(t, m, d, "#go", "color", "blue")
	d.Detach(mustNode(t, d, "#go"))

	_, err := m.Undo(d)
	if err == nil {
		t.Fatal("undo of a vanished target succeeded")
	}
	if undo, redo := m.Counts(); undo != 1 || redo != 0 {
		t.Fatalf("counts = %d/%d after failed undo, want 1/0", undo, redo)
	}
}

func TestSubscribeNotifies(t *testing.T) {
	d := memdom.MustParse(page)
	clk := newClock()
	m := testManager(t, clk)

	var ops []Op
	unsub := m.Subscribe(func(c Change) { ops = append(ops, c.Op) })

	setStyle(t, m, d, "#go", "color", "blue")
	clk.Advance(10 * time.Millisecond)
	setStyle(t, m, d, "#go", "color", "green")
	if _, err := m.Undo(d); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Redo(d); err != nil {
		t.Fatal(err)
	}
	m.Clear()

	want := []Op{OpPush, OpMerge, OpUndo, OpRedo, OpClear}
	if len(ops) != len(want) {
		t.Fatalf("ops = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Fatalf("op[%d] = %v, want %v", i, ops[i], want[i])
		}
	}

	unsub()
	setStyle(t, m, d, "#go", "color", "blue")
	if len(ops) != len(want) {
		t.Fatal("notified after unsubscribe")
	}
}

func TestRollbackRestores(t *testing.T) {
	d := memdom.MustParse(page)
	m := testManager(t, newClock())

	e, err := m.Begin(d, mustNode(t, d, "#go"), "color")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Set("blue"); err != nil {
		t.Fatal(err)
	}
	if err := e.Rollback(); err != nil {
		t.Fatal(err)
	}
	if got := mustNode(t, d, "#go").StyleProperty("color"); got != "red" {
		t.Fatalf("after rollback color = %q, want red", got)
	}
	if undo, _ := m.Counts(); undo != 0 {
		t.Fatal("rollback journaled a transaction")
	}

	if _, err := e.Commit(); !errors.Is(err, ErrClosed) {
		t.Fatalf("commit after rollback = %v, want ErrClosed", err)
	}
}

func TestClosedManagerRejects(t *testing.T) {
	d := memdom.MustParse(page)
	m := NewManager(Config{})
	m.Close()

	if _, err := m.Begin(d, mustNode(t, d, "#go"), "color"); !errors.Is(err, ErrClosed) {
		t.Fatalf("begin on closed manager = %v, want ErrClosed", err)
	}
	if _, err := m.Undo(d); !errors.Is(err, ErrClosed) {
		t.Fatalf("undo on closed manager = %v, want ErrClosed", err)
	}
}

func TestCommitAfterManagerClose(t *testing.T) {
	d := memdom.MustParse(page)
	m := NewManager(Config{})

	e, err := m.Begin(d, mustNode(t, d, "#go"), "color")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Set("red"); err != nil {
		t.Fatal(err)
	}
	m.Close()

	// The commit is dropped, not mistaken for a no-op edit.
	tx, err := e.Commit()
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("commit after close = %v, %v; want ErrClosed", tx, err)
	}
}
