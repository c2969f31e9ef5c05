// Package modes is the capture-point arbiter between the page and the
// editor: an explicit two-state machine (hover, selecting) consuming raw
// input events, suppressing everything page-bound per the input policy, and
// producing hover/select/deselect callbacks. Hover hit-testing is coalesced
// to one test per frame because the hit-test primitive is expensive enough
// to jank content-heavy pages when run per raw event.
package modes

import (
	"log/slog"
	"sync"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/frame"
	"github.com/hazyhaar/domedit/input"
	"github.com/hazyhaar/domedit/selection"
)

// Mode is the controller state.
type Mode int

const (
	// ModeHover: nothing selected, pointer movement drives highlighting.
	ModeHover Mode = iota
	// ModeSelecting: an element is selected.
	ModeSelecting
)

func (m Mode) String() string {
	if m == ModeSelecting {
		return "selecting"
	}
	return "hover"
}

// Config for a Controller.
type Config struct {
	Engine    *selection.Engine
	Scheduler frame.Scheduler
	// Policy decides the page-bound action per event type. Nil uses
	// input.DefaultPolicy.
	Policy input.Policy
	// OnHover fires when the hovered element changes. nil element means the
	// highlight cleared.
	OnHover func(dom.Node)
	// OnSelect fires on a successful selection with the active modifiers.
	OnSelect func(dom.Node, input.Modifiers)
	// OnDeselect fires on the selecting -> hover transition.
	OnDeselect func()
	Logger     *slog.Logger
}

// Controller is the event/mode state machine. One per editor session.
type Controller struct {
	mu      sync.Mutex
	mode    Mode
	engine  *selection.Engine
	policy  input.Policy
	pending *frame.Pending
	logger  *slog.Logger

	onHover    func(dom.Node)
	onSelect   func(dom.Node, input.Modifiers)
	onDeselect func()

	lastX     float64
	lastY     float64
	lastHover dom.Node
	forced    bool
	closed    bool
}

// New returns a Controller in ModeHover.
func New(cfg Config) *Controller {
	if cfg.Policy == nil {
		cfg.Policy = input.DefaultPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Controller{
		mode:       ModeHover,
		engine:     cfg.Engine,
		policy:     cfg.Policy,
		pending:    frame.NewPending(cfg.Scheduler),
		logger:     cfg.Logger,
		onHover:    cfg.OnHover,
		onSelect:   cfg.OnSelect,
		onDeselect: cfg.OnDeselect,
	}
}

// Mode returns the current state.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// HandleEvent consumes one raw event and returns the action the sensor must
// apply toward the page. Events on editor UI always pass; a pointer move on
// editor UI additionally clears any active hover highlight.
func (c *Controller) HandleEvent(ev input.Event) input.Action {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return input.Pass
	}
	c.mu.Unlock()

	if ev.OnEditorUI {
		if ev.Type == input.PointerMove {
			c.reportHover(nil, false)
		}
		return input.Pass
	}

	switch ev.Type {
	case input.PointerMove:
		c.mu.Lock()
		c.lastX, c.lastY = ev.X, ev.Y
		c.mu.Unlock()
		c.pending.Schedule(c.hitTest)
	case input.PointerDown:
		if ev.Button == input.ButtonLeft {
			c.selectAt(ev.X, ev.Y, ev.Mods)
		}
	case input.KeyDown:
		if ev.Key == "Escape" {
			c.escape()
		}
	}
	return c.policy.ActionFor(ev)
}

// selectAt runs the full heuristic pass. No target means no transition.
func (c *Controller) selectAt(x, y float64, mods input.Modifiers) {
	el := c.engine.Pick(x, y, mods)
	if el == nil {
		return
	}
	c.mu.Lock()
	c.mode = ModeSelecting
	onSelect := c.onSelect
	c.mu.Unlock()
	if onSelect != nil {
		onSelect(el, mods)
	}
}

// escape leaves selecting and immediately re-evaluates whatever is under
// the pointer, so hover highlighting resumes without waiting for the next
// pointer move.
func (c *Controller) escape() {
	c.mu.Lock()
	if c.mode != ModeSelecting {
		c.mu.Unlock()
		return
	}
	c.mode = ModeHover
	onDeselect := c.onDeselect
	c.mu.Unlock()
	if onDeselect != nil {
		onDeselect()
	}
	c.RefreshHover()
}

// RefreshHover forces a synchronous hover re-evaluation at the last pointer
// position, firing the hover callback even for an unchanged element.
func (c *Controller) RefreshHover() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.forced = true
	c.mu.Unlock()
	c.hitTest()
}

// hitTest is the coalesced fast path: one topmost-element lookup, callback
// only on change or forced refresh.
func (c *Controller) hitTest() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	x, y := c.lastX, c.lastY
	c.mu.Unlock()

	el := c.engine.Hit(x, y)
	c.reportHover(el, false)
}

func (c *Controller) reportHover(el dom.Node, ignoreForced bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	forced := c.forced && !ignoreForced
	if el == c.lastHover && !forced {
		c.mu.Unlock()
		return
	}
	c.lastHover = el
	c.forced = false
	onHover := c.onHover
	c.mu.Unlock()
	if onHover != nil {
		onHover(el)
	}
}

// Close cancels pending hit-tests and marks the controller inert. Further
// events pass through untouched.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.pending.Cancel()
}
