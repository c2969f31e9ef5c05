// Package input models raw page input and the suppression policy the editor
// applies to it. It is shared by the mode controller and the live sensor:
// the controller consumes Events, the Policy table says what each event type
// is allowed to do to the underlying page while the editor is active.
package input

// Type enumerates the raw event types the capture-phase sensor intercepts.
type Type int

const (
	PointerMove Type = iota
	PointerDown
	PointerUp
	Click
	DblClick
	ContextMenu
	KeyDown
	KeyUp
	KeyPress
	Wheel
	TouchStart
	TouchMove
	TouchEnd
)

var typeNames = map[Type]string{
	PointerMove: "pointermove",
	PointerDown: "pointerdown",
	PointerUp:   "pointerup",
	Click:       "click",
	DblClick:    "dblclick",
	ContextMenu: "contextmenu",
	KeyDown:     "keydown",
	KeyUp:       "keyup",
	KeyPress:    "keypress",
	Wheel:       "wheel",
	TouchStart:  "touchstart",
	TouchMove:   "touchmove",
	TouchEnd:    "touchend",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return "unknown"
}

// ParseType maps a DOM event name back to a Type, for the live sensor.
func ParseType(name string) (Type, bool) {
	for t, s := range typeNames {
		if s == name {
			return t, true
		}
	}
	return 0, false
}

// Modifiers is the modifier-key state carried by an event. Alt on a
// selection action requests drill-up.
type Modifiers struct {
	Alt   bool `json:"alt"`
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
	Meta  bool `json:"meta"`
}

// Any reports whether any modifier is held.
func (m Modifiers) Any() bool { return m.Alt || m.Shift || m.Ctrl || m.Meta }

// Buttons per the pointer event model.
const (
	ButtonLeft  = 0
	ButtonRight = 2
)

// Event is one raw input occurrence, already classified by the sensor as
// landing on the page or on the editor's own isolated UI.
type Event struct {
	Type       Type      `json:"type"`
	X          float64   `json:"x"`
	Y          float64   `json:"y"`
	Button     int       `json:"button"`
	Key        string    `json:"key"`
	Mods       Modifiers `json:"mods"`
	OnEditorUI bool      `json:"on_editor_ui"`
}

// Action is what happens to the event with respect to the page.
type Action int

const (
	// Suppress blocks both the default action and propagation.
	Suppress Action = iota
	// Pass lets the event reach the page untouched.
	Pass
)

func (a Action) String() string {
	if a == Pass {
		return "pass"
	}
	return "suppress"
}

// Policy maps event types to their page-bound action. Events whose path
// resolves to editor UI always pass, regardless of the table.
type Policy map[Type]Action

// DefaultPolicy suppresses every page-bound event while the editor is
// active: the page must never react to input the editor is arbitrating.
func DefaultPolicy() Policy {
	p := make(Policy, len(typeNames))
	for t := range typeNames {
		p[t] = Suppress
	}
	return p
}

// ActionFor resolves the action for ev. Unknown types are suppressed, the
// conservative default for page-bound input.
func (p Policy) ActionFor(ev Event) Action {
	if ev.OnEditorUI {
		return Pass
	}
	if a, ok := p[ev.Type]; ok {
		return a
	}
	return Suppress
}
