package livedom

import (
	"fmt"

	"github.com/ysmood/gson"

	"github.com/hazyhaar/domedit/dom"
)

// liveNode is a handle to one page-side element. Wrappers are canonical:
// the Page hands out one pointer per handle, so interface equality is
// element identity.
type liveNode struct {
	p  *Page
	id int
}

var _ dom.Node = (*liveNode)(nil)

// info fetches the element snapshot. Returns a null JSON when the handle
// went stale.
func (n *liveNode) info() gson.JSON {
	v, err := n.p.eval(`(id) => window.__domedit.info(id)`, n.id)
	if err != nil {
		return gson.New(nil)
	}
	return v
}

func (n *liveNode) Kind() dom.Kind {
	switch n.info().Get("kind").Str() {
	case "shadow":
		return dom.KindShadowHost
	case "frame":
		return dom.KindFrameHost
	default:
		return dom.KindElement
	}
}

func (n *liveNode) Tag() string { return n.info().Get("tag").Str() }

func (n *liveNode) ID() string { return n.info().Get("id").Str() }

func (n *liveNode) Classes() []string {
	var out []string
	for _, c := range n.info().Get("classes").Arr() {
		out = append(out, c.Str())
	}
	return out
}

func (n *liveNode) Attr(name string) (string, bool) {
	attrs := n.info().Get("attrs").Map()
	v, ok := attrs[name]
	if !ok {
		return "", false
	}
	return v.Str(), true
}

func (n *liveNode) Text() string { return n.info().Get("text").Str() }

func (n *liveNode) NthOfType() int {
	nth := n.info().Get("nth").Int()
	if nth < 1 {
		return 1
	}
	return nth
}

func (n *liveNode) Attached() bool { return n.info().Get("attached").Bool() }

func (n *liveNode) Parent() dom.Node {
	v, err := n.p.eval(`(id) => window.__domedit.parent(id)`, n.id)
	if err != nil {
		return nil
	}
	return nodeOrNil(n.p.node(v.Int()))
}

func (n *liveNode) Children() []dom.Node {
	v, err := n.p.eval(`(id) => window.__domedit.children(id)`, n.id)
	if err != nil {
		return nil
	}
	var out []dom.Node
	for _, id := range v.Arr() {
		if c := n.p.node(id.Int()); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func (n *liveNode) BoundingRect() dom.Rect {
	v, err := n.p.eval(`(id) => window.__domedit.rect(id)`, n.id)
	if err != nil {
		return dom.Rect{}
	}
	return dom.Rect{
		X: v.Get("x").Num(),
		Y: v.Get("y").Num(),
		W: v.Get("w").Num(),
		H: v.Get("h").Num(),
	}
}

func (n *liveNode) Computed() dom.Computed {
	v, err := n.p.eval(`(id) => window.__domedit.computed(id)`, n.id)
	if err != nil || v.Val() == nil {
		return dom.Computed{Display: "none"}
	}
	return dom.Computed{
		Display:           v.Get("display").Str(),
		Visibility:        v.Get("visibility").Str(),
		ContentVisibility: v.Get("contentVisibility").Str(),
		Opacity:           v.Get("opacity").Num(),
		Cursor:            v.Get("cursor").Str(),
		BackgroundColor:   v.Get("backgroundColor").Str(),
		BorderWidth:       v.Get("borderWidth").Num(),
		HasBoxShadow:      v.Get("hasBoxShadow").Bool(),
		HasOutline:        v.Get("hasOutline").Bool(),
	}
}

func (n *liveNode) StyleProperty(name string) string {
	v, err := n.p.eval(`(id, prop) => window.__domedit.style(id, prop)`, n.id, name)
	if err != nil {
		return ""
	}
	return v.Str()
}

func (n *liveNode) SetStyleProperty(name, value string) error {
	v, err := n.p.eval(`(id, prop, value) => window.__domedit.setStyle(id, prop, value)`, n.id, name, value)
	if err != nil {
		return fmt.Errorf("livedom: set style %s: %w", name, err)
	}
	if !v.Bool() {
		return fmt.Errorf("livedom: set style %s: element is gone", name)
	}
	return nil
}

func (n *liveNode) OuterHTML() (string, error) {
	v, err := n.p.eval(`(id) => window.__domedit.outerHTML(id)`, n.id)
	if err != nil {
		return "", err
	}
	if v.Val() == nil {
		return "", fmt.Errorf("livedom: outer html: element is gone")
	}
	return v.Str(), nil
}
