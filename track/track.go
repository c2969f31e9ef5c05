// Package track keeps two elements' screen rectangles current. It listens
// to the document's geometry signal (scroll, container scroll, resize),
// coalesces every signal into one recomputation per frame, and emits a
// combined update only when a rectangle actually changed beyond a sub-pixel
// tolerance. Read-only with respect to the host document.
package track

import (
	"log/slog"
	"sync"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/frame"
)

// Slot names the two independently tracked elements.
type Slot int

const (
	SlotHover Slot = iota
	SlotSelection
	slotCount
)

func (s Slot) String() string {
	if s == SlotSelection {
		return "selection"
	}
	return "hover"
}

// Update is the combined-rectangle emission. A nil rect means "nothing in
// that slot": untracked, detached, or unlaid-out.
type Update struct {
	Hover     *dom.Rect
	Selection *dom.Rect
}

// DefaultTolerance filters measurement jitter below half a pixel.
const DefaultTolerance = 0.5

// Config for a Tracker.
type Config struct {
	Doc       dom.Document
	Scheduler frame.Scheduler
	// OnUpdate receives the combined rectangles when either changed.
	OnUpdate func(Update)
	// Tolerance is the per-side change threshold. Default 0.5px.
	Tolerance float64
	Logger    *slog.Logger
}

// Tracker tracks the hover and selection rectangles.
type Tracker struct {
	mu      sync.Mutex
	doc     dom.Document
	pending *frame.Pending
	unsub   func()
	onUpd   func(Update)
	tol     float64
	logger  *slog.Logger

	tracked [slotCount]dom.Node
	last    [slotCount]*dom.Rect
	closed  bool
}

// New subscribes to the document's geometry signal and returns an idle
// tracker.
func New(cfg Config) *Tracker {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	t := &Tracker{
		doc:     cfg.Doc,
		pending: frame.NewPending(cfg.Scheduler),
		onUpd:   cfg.OnUpdate,
		tol:     cfg.Tolerance,
		logger:  cfg.Logger,
	}
	t.unsub = cfg.Doc.SubscribeGeometry(t.schedule)
	return t
}

// SetTracked replaces one slot's element (nil clears it) and schedules a
// recomputation.
func (t *Tracker) SetTracked(slot Slot, el dom.Node) {
	t.mu.Lock()
	if t.closed || slot < 0 || slot >= slotCount {
		t.mu.Unlock()
		return
	}
	t.tracked[slot] = el
	t.mu.Unlock()
	t.schedule()
}

// ForceSync recomputes immediately, bypassing frame coalescing.
func (t *Tracker) ForceSync() {
	t.recompute()
}

func (t *Tracker) schedule() {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return
	}
	t.pending.Schedule(t.recompute)
}

// recompute reads each tracked element's rectangle. Detached elements drop
// their reference and report nil. When both slots hold the identical
// element the rectangle is read once and shared.
func (t *Tracker) recompute() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	var rects [slotCount]*dom.Rect
	for i := Slot(0); i < slotCount; i++ {
		el := t.tracked[i]
		if el == nil {
			continue
		}
		if !el.Attached() {
			t.tracked[i] = nil
			continue
		}
		if i == SlotSelection && el == t.tracked[SlotHover] && rects[SlotHover] != nil {
			r := *rects[SlotHover]
			rects[i] = &r
			continue
		}
		r := el.BoundingRect()
		rects[i] = &r
	}
	changed := false
	for i := Slot(0); i < slotCount; i++ {
		if rectChanged(t.last[i], rects[i], t.tol) {
			changed = true
		}
	}
	if changed {
		t.last = rects
	}
	onUpd := t.onUpd
	upd := Update{Hover: t.last[SlotHover], Selection: t.last[SlotSelection]}
	t.mu.Unlock()

	if changed && onUpd != nil {
		onUpd(upd)
	}
}

// Close cancels pending work, unsubscribes, and marks the tracker inert.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	unsub := t.unsub
	t.unsub = nil
	t.mu.Unlock()
	t.pending.Cancel()
	if unsub != nil {
		unsub()
	}
}

func rectChanged(old, new *dom.Rect, tol float64) bool {
	if old == nil || new == nil {
		return (old == nil) != (new == nil)
	}
	return new.DiffExceeds(*old, tol)
}
