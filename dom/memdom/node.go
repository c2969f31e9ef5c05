package memdom

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domedit/dom"
)

// Elem wraps one parsed element. Wrappers are canonical: the document keeps
// exactly one Elem per html.Node, so interface equality is identity.
type Elem struct {
	doc      *Document
	n        *html.Node
	parent   *Elem
	children []*Elem
	scope    *rootScope
	tag      string
	detached bool
	style    *inlineStyle
}

var _ dom.Node = (*Elem)(nil)

func (e *Elem) Kind() dom.Kind {
	if _, ok := e.doc.shadow[e]; ok {
		return dom.KindShadowHost
	}
	if e.tag == "iframe" || e.tag == "frame" {
		return dom.KindFrameHost
	}
	return dom.KindElement
}

func (e *Elem) Tag() string { return e.tag }

func (e *Elem) ID() string {
	v, _ := e.Attr("id")
	return v
}

func (e *Elem) Classes() []string {
	v, ok := e.Attr("class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

func (e *Elem) Attr(name string) (string, bool) {
	for _, a := range e.n.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// Text collects subtree text, whitespace-collapsed. Declarative shadow
// templates are skipped so light-tree text stays separate from shadow text.
func (e *Elem) Text() string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && isShadowTemplate(n) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func (e *Elem) Parent() dom.Node {
	if e.parent == nil {
		return nil
	}
	return e.parent
}

func (e *Elem) Children() []dom.Node {
	out := make([]dom.Node, len(e.children))
	for i, c := range e.children {
		out[i] = c
	}
	return out
}

func (e *Elem) NthOfType() int {
	sibs := e.scope.top
	if e.parent != nil {
		sibs = e.parent.children
	}
	n := 0
	for _, s := range sibs {
		if s.tag == e.tag {
			n++
		}
		if s == e {
			return n
		}
	}
	return 1
}

func (e *Elem) Attached() bool {
	for p := e; p != nil; p = p.parent {
		if p.detached {
			return false
		}
	}
	return true
}

// BoundingRect derives the box from inline left/top/width/height pixel
// values, offset by the document scroll position. Unlaid-out elements are
// size zero.
func (e *Elem) BoundingRect() dom.Rect {
	st := e.inline()
	w := pxValue(st.get("width"))
	h := pxValue(st.get("height"))
	if w <= 0 && h <= 0 {
		return dom.Rect{}
	}
	e.doc.mu.Lock()
	sx, sy := e.doc.scrollX, e.doc.scrollY
	e.doc.mu.Unlock()
	return dom.Rect{
		X: pxValue(st.get("left")) - sx,
		Y: pxValue(st.get("top")) - sy,
		W: w,
		H: h,
	}
}

func (e *Elem) Computed() dom.Computed {
	st := e.inline()
	c := dom.Computed{
		Display:           st.get("display"),
		Visibility:        st.get("visibility"),
		ContentVisibility: st.get("content-visibility"),
		Opacity:           1,
		Cursor:            st.get("cursor"),
		BackgroundColor:   st.get("background-color"),
	}
	if c.Display == "" {
		c.Display = defaultDisplay(e.tag)
	}
	if c.Visibility == "" {
		c.Visibility = "visible"
	}
	if c.ContentVisibility == "" {
		c.ContentVisibility = "visible"
	}
	if v := st.get("opacity"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Opacity = f
		}
	}
	if c.Cursor == "" {
		c.Cursor = defaultCursor(e)
	}
	if c.BackgroundColor == "" {
		if bg := st.get("background"); bg != "" {
			c.BackgroundColor = strings.Fields(bg)[0]
		}
	}
	c.BorderWidth = borderWidth(st)
	if v := st.get("box-shadow"); v != "" && v != "none" {
		c.HasBoxShadow = true
	}
	if v := st.get("outline"); v != "" && v != "none" {
		c.HasOutline = true
	}
	return c
}

func (e *Elem) StyleProperty(name string) string {
	return e.inline().get(name)
}

func (e *Elem) SetStyleProperty(name, value string) error {
	if !e.Attached() {
		return fmt.Errorf("memdom: set style on detached <%s>", e.tag)
	}
	st := e.inline()
	st.set(name, value)
	e.writeStyleAttr(st.String())
	return nil
}

func (e *Elem) OuterHTML() (string, error) {
	var b strings.Builder
	if err := html.Render(&b, e.n); err != nil {
		return "", fmt.Errorf("memdom: render <%s>: %w", e.tag, err)
	}
	return b.String(), nil
}

func (e *Elem) inline() *inlineStyle {
	if e.style == nil {
		v, _ := e.Attr("style")
		e.style = parseInlineStyle(v)
	}
	return e.style
}

func (e *Elem) writeStyleAttr(v string) {
	for i, a := range e.n.Attr {
		if a.Key == "style" {
			e.n.Attr[i].Val = v
			return
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: "style", Val: v})
}

// inlineStyle is an ordered property list so serialization round-trips.
type inlineStyle struct {
	keys []string
	vals map[string]string
}

func parseInlineStyle(s string) *inlineStyle {
	st := &inlineStyle{vals: make(map[string]string)}
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		st.set(k, v)
	}
	return st
}

func (st *inlineStyle) get(k string) string { return st.vals[k] }

func (st *inlineStyle) set(k, v string) {
	if _, ok := st.vals[k]; !ok {
		st.keys = append(st.keys, k)
	}
	st.vals[k] = v
}

func (st *inlineStyle) String() string {
	var b strings.Builder
	for i, k := range st.keys {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(st.vals[k])
	}
	return b.String()
}

func pxValue(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "px")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func borderWidth(st *inlineStyle) float64 {
	if v := st.get("border-width"); v != "" {
		return pxValue(v)
	}
	if v := st.get("border"); v != "" {
		for _, f := range strings.Fields(v) {
			if strings.HasSuffix(f, "px") {
				return pxValue(f)
			}
		}
	}
	return 0
}

func defaultDisplay(tag string) string {
	switch tag {
	case "head", "script", "style", "template", "meta", "link", "title", "base":
		return "none"
	case "span", "a", "b", "i", "em", "strong", "code", "small", "label", "img", "svg", "input", "button", "select", "textarea":
		return "inline"
	default:
		return "block"
	}
}

func defaultCursor(e *Elem) string {
	switch e.tag {
	case "button", "select", "summary":
		return "pointer"
	case "a":
		if _, ok := e.Attr("href"); ok {
			return "pointer"
		}
	}
	return "auto"
}

func isShadowTemplate(n *html.Node) bool {
	if n.DataAtom != atom.Template {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "shadowrootmode" && a.Val == "open" {
			return true
		}
	}
	return false
}
