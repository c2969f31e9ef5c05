package selection

import "github.com/hazyhaar/domedit/dom"

// Additive signed weights. Interactive semantics dominate, visual-boundary
// signals nudge, wrappers are pushed hard below their descendants so the
// engine selects *through* them.
const (
	weightInteractiveTag  = 40
	weightInteractiveRole = 30
	weightEditable        = 25
	weightTabIndex        = 15
	weightPointerCursor   = 10
	weightLinkTarget      = 10
	weightBackground      = 8
	weightMedia           = 8
	weightBorder          = 6
	weightShadowOutline   = 4
	penaltySVGDescendant  = -5
	penaltyTinyTarget     = -15
	penaltyViewportCover  = -25
	penaltyWrapper        = -40
)

var interactiveTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true,
	"textarea": true, "summary": true, "label": true, "option": true,
	"video": true, "audio": true, "details": true,
}

var interactiveRoles = map[string]bool{
	"button": true, "link": true, "checkbox": true, "radio": true,
	"tab": true, "menuitem": true, "switch": true, "slider": true,
	"combobox": true, "listbox": true, "option": true, "textbox": true,
	"searchbox": true, "spinbutton": true,
}

var mediaTags = map[string]bool{
	"img": true, "svg": true, "video": true, "canvas": true,
	"picture": true, "audio": true,
}

func (e *Engine) score(el dom.Node) int {
	s := 0
	c := el.Computed()
	tag := el.Tag()

	if interactiveTags[tag] {
		s += weightInteractiveTag
	}
	if role, ok := el.Attr("role"); ok && interactiveRoles[role] {
		s += weightInteractiveRole
	}
	if v, ok := el.Attr("contenteditable"); ok && v != "false" {
		s += weightEditable
	}
	if ti, ok := el.Attr("tabindex"); ok && len(ti) > 0 && ti[0] != '-' {
		s += weightTabIndex
	}
	if c.Cursor == "pointer" {
		s += weightPointerCursor
	}
	if _, ok := el.Attr("href"); ok {
		s += weightLinkTarget
	}

	if !c.Transparent() {
		s += weightBackground
	}
	if c.BorderWidth > 0 {
		s += weightBorder
	}
	if c.HasBoxShadow || c.HasOutline {
		s += weightShadowOutline
	}
	if mediaTags[tag] {
		s += weightMedia
	}
	if tag != "svg" && insideSVG(el) {
		s += penaltySVGDescendant
	}

	area := el.BoundingRect().Area()
	if area > 0 && area < e.cfg.MinTapArea {
		s += penaltyTinyTarget
	}
	if vp := e.doc.Viewport().Area(); vp > 0 && area >= vp*e.cfg.ViewportCover {
		s += penaltyViewportCover
	}
	if isWrapper(el) {
		s += penaltyWrapper
	}
	return s
}

// visible computes visibility independently of scoring: an invisible
// element is excluded outright, never merely penalized.
func visible(el dom.Node) bool {
	c := el.Computed()
	if c.Display == "none" || c.Visibility == "hidden" || c.ContentVisibility == "hidden" {
		return false
	}
	if c.Opacity < 0.05 {
		return false
	}
	r := el.BoundingRect()
	if r.W < 1 || r.H < 1 {
		return false
	}
	return true
}

// isWrapper reports a pure single-child, visually-invisible container: one
// element child, no own text, no visual boundary, not interactive.
func isWrapper(el dom.Node) bool {
	if len(el.Children()) != 1 {
		return false
	}
	if interactiveTags[el.Tag()] {
		return false
	}
	if role, ok := el.Attr("role"); ok && interactiveRoles[role] {
		return false
	}
	c := el.Computed()
	if !c.Transparent() || c.BorderWidth > 0 || c.HasBoxShadow || c.HasOutline {
		return false
	}
	only := el.Children()[0]
	return el.Text() == only.Text()
}

func insideSVG(el dom.Node) bool {
	for p := el.Parent(); p != nil; p = p.Parent() {
		if p.Tag() == "svg" {
			return true
		}
	}
	return false
}
