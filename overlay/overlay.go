// Package overlay paints the hover and selection rectangles. The Renderer
// owns a dirty-flag render loop with one in-flight scheduled repaint; the
// Surface device behind it is either the live canvas bridge (dom/livedom)
// or a test recorder. Drawing performs no DOM reads, so it never triggers
// layout.
package overlay

import (
	"log/slog"
	"math"
	"sync"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/frame"
	"github.com/hazyhaar/domedit/track"
)

// Surface is the drawing device. Coordinates are CSS pixels; the device
// applies its own scale transform after SetBackingSize.
type Surface interface {
	// Size is the current CSS-pixel size of the surface's container.
	Size() (w, h float64)
	// Scale is the device pixel ratio.
	Scale() float64
	// SetBackingSize resizes the backing store to device pixels and resets
	// the drawing transform to scale.
	SetBackingSize(pxW, pxH int, scale float64) error
	// Clear wipes the full surface.
	Clear(w, h float64)
	// StrokeRect strokes an outline.
	StrokeRect(x, y, w, h float64, color string, width float64)
	// FillRect fills a box.
	FillRect(x, y, w, h float64, color string)
}

// Style is one slot's paint. Empty Fill means stroke only.
type Style struct {
	Stroke      string
	StrokeWidth float64
	Fill        string
}

// Default slot styles: hover is a light outline with a translucent wash,
// selection a heavier outline.
var (
	HoverStyle     = Style{Stroke: "#3b82f6", StrokeWidth: 1, Fill: "rgba(59, 130, 246, 0.08)"}
	SelectionStyle = Style{Stroke: "#2563eb", StrokeWidth: 2}
)

// Config for a Renderer.
type Config struct {
	Surface   Surface
	Scheduler frame.Scheduler
	// Styles overrides the per-slot paint. Zero-value entries fall back to
	// the defaults.
	Styles map[track.Slot]Style
	Logger *slog.Logger
}

// Renderer paints the tracked rectangles on demand.
type Renderer struct {
	mu      sync.Mutex
	surface Surface
	pending *frame.Pending
	styles  map[track.Slot]Style
	logger  *slog.Logger

	rects  [2]*dom.Rect
	dirty  bool
	lastW  float64
	lastH  float64
	lastS  float64
	closed bool
}

// New builds a Renderer over a surface.
func New(cfg Config) *Renderer {
	styles := map[track.Slot]Style{
		track.SlotHover:     HoverStyle,
		track.SlotSelection: SelectionStyle,
	}
	for slot, s := range cfg.Styles {
		styles[slot] = s
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Renderer{
		surface: cfg.Surface,
		pending: frame.NewPending(cfg.Scheduler),
		styles:  styles,
		logger:  cfg.Logger,
	}
}

// SetRect stores one slot's rectangle (nil clears it) and marks dirty.
func (r *Renderer) SetRect(slot track.Slot, rect *dom.Rect) {
	r.mu.Lock()
	if r.closed || int(slot) < 0 || int(slot) >= len(r.rects) {
		r.mu.Unlock()
		return
	}
	r.rects[slot] = rect
	r.mu.Unlock()
	r.MarkDirty()
}

// Apply takes a tracker update wholesale.
func (r *Renderer) Apply(u track.Update) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.rects[track.SlotHover] = u.Hover
	r.rects[track.SlotSelection] = u.Selection
	r.mu.Unlock()
	r.MarkDirty()
}

// MarkDirty schedules a repaint on the next frame unless one is already
// scheduled.
func (r *Renderer) MarkDirty() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.dirty = true
	r.mu.Unlock()
	r.pending.Schedule(r.Render)
}

// HandleResize notes a container size or pixel-density change and forces a
// repaint so the backing store is resized on the next render.
func (r *Renderer) HandleResize() {
	r.MarkDirty()
}

// Render repaints if dirty. Idempotent when clean.
func (r *Renderer) Render() {
	r.mu.Lock()
	if r.closed || !r.dirty {
		r.mu.Unlock()
		return
	}
	r.dirty = false
	rects := r.rects
	styles := r.styles
	r.mu.Unlock()

	w, h := r.surface.Size()
	scale := r.surface.Scale()

	r.mu.Lock()
	resized := w != r.lastW || h != r.lastH || scale != r.lastS
	if resized {
		r.lastW, r.lastH, r.lastS = w, h, scale
	}
	r.mu.Unlock()

	if resized {
		if err := r.surface.SetBackingSize(int(math.Round(w*scale)), int(math.Round(h*scale)), scale); err != nil {
			r.logger.Warn("overlay: resize backing store", "error", err)
			return
		}
	}

	r.surface.Clear(w, h)
	for slot := track.SlotHover; slot <= track.SlotSelection; slot++ {
		rect := rects[slot]
		if rect == nil {
			continue
		}
		st := styles[slot]
		if st.Fill != "" {
			r.surface.FillRect(rect.X, rect.Y, rect.W, rect.H, st.Fill)
		}
		if st.Stroke != "" && st.StrokeWidth > 0 {
			x, y, rw, rh := alignStroke(*rect, st.StrokeWidth)
			r.surface.StrokeRect(x, y, rw, rh, st.Stroke, st.StrokeWidth)
		}
	}
}

// Close cancels pending repaints and marks the renderer inert.
func (r *Renderer) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()
	r.pending.Cancel()
}

// alignStroke pixel-aligns stroked edges: rounded, and offset by half a
// pixel for odd stroke widths so 1px lines land on pixel centers instead of
// anti-aliasing across two rows.
func alignStroke(rect dom.Rect, width float64) (x, y, w, h float64) {
	half := 0.0
	if int(width)%2 == 1 {
		half = 0.5
	}
	x = math.Round(rect.X) + half
	y = math.Round(rect.Y) + half
	w = math.Round(rect.W)
	h = math.Round(rect.H)
	return x, y, w, h
}
