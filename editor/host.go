package editor

import "github.com/hazyhaar/domedit/dom"

// Host is the isolation boundary the session requires from its container:
// a predicate classifying nodes as editor surface, and the mount points for
// the render surface and panel UI. The session never reaches past this
// interface; it only promises to be closed before the host tears down.
type Host interface {
	// IsEditorUI reports whether n belongs to the editor's own isolated
	// surface. Such nodes are excluded from selection and their input is
	// never suppressed.
	IsEditorUI(n dom.Node) bool
	// OverlayMount is the element the render surface mounts into. May be
	// nil for headless hosts.
	OverlayMount() dom.Node
	// UIMount is the element panel UI mounts into. May be nil.
	UIMount() dom.Node
}

// StaticHost is the trivial Host: a fixed predicate and fixed mounts.
// Headless and test sessions use it directly.
type StaticHost struct {
	Predicate func(dom.Node) bool
	Overlay   dom.Node
	UI        dom.Node
}

func (h *StaticHost) IsEditorUI(n dom.Node) bool {
	return h.Predicate != nil && h.Predicate(n)
}

func (h *StaticHost) OverlayMount() dom.Node { return h.Overlay }
func (h *StaticHost) UIMount() dom.Node      { return h.UI }
