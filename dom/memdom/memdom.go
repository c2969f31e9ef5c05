// Package memdom implements dom.Document over a parsed golang.org/x/net/html
// tree: a simplified user agent with inline-style-driven layout boxes,
// declarative shadow roots, attachable frame documents and synthetic
// scroll/resize signals. It backs all engine tests and headless use.
package memdom

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domedit/dom"
)

// Document is one in-memory browsing context.
type Document struct {
	mu        sync.Mutex
	scope     *rootScope
	body      *Elem
	byNode    map[*html.Node]*Elem
	shadow    map[*Elem]*rootScope
	frames    map[*Elem]*Document
	frameHost *Elem
	parent    *Document
	viewport  dom.Rect
	scrollX   float64
	scrollY   float64
	subs      map[int]func()
	nextSub   int
}

var _ dom.Document = (*Document)(nil)

// Option customises Parse.
type Option func(*Document)

// WithViewport sets the viewport size. Default: 1280x800.
func WithViewport(w, h float64) Option {
	return func(d *Document) { d.viewport = dom.Rect{W: w, H: h} }
}

// Parse builds a Document from an HTML source. Declarative shadow roots
// (<template shadowrootmode="open">) become isolated subtrees on their host.
func Parse(src string, opts ...Option) (*Document, error) {
	n, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("memdom: parse: %w", err)
	}
	d := &Document{
		byNode:   make(map[*html.Node]*Elem),
		shadow:   make(map[*Elem]*rootScope),
		frames:   make(map[*Elem]*Document),
		viewport: dom.Rect{W: 1280, H: 800},
		subs:     make(map[int]func()),
	}
	for _, o := range opts {
		o(d)
	}
	d.scope = &rootScope{doc: d}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			d.scope.top = append(d.scope.top, d.build(c, nil, d.scope))
		}
	}
	return d, nil
}

// MustParse is Parse for tests and fixtures known to be valid.
func MustParse(src string, opts ...Option) *Document {
	d, err := Parse(src, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) build(n *html.Node, parent *Elem, scope *rootScope) *Elem {
	e := &Elem{doc: d, n: n, parent: parent, scope: scope, tag: strings.ToLower(n.Data)}
	d.byNode[n] = e
	if n.DataAtom == atom.Body && d.body == nil {
		d.body = e
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if isShadowTemplate(c) {
			sr := &rootScope{doc: d, host: e}
			for sc := c.FirstChild; sc != nil; sc = sc.NextSibling {
				if sc.Type == html.ElementNode {
					sr.top = append(sr.top, d.build(sc, nil, sr))
				}
			}
			d.shadow[e] = sr
			continue
		}
		e.children = append(e.children, d.build(c, e, scope))
	}
	return e
}

func (d *Document) Root() dom.Root { return d.scope }

func (d *Document) Body() dom.Node {
	if d.body == nil {
		return nil
	}
	return d.body
}

func (d *Document) Viewport() dom.Rect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return dom.Rect{W: d.viewport.W, H: d.viewport.H}
}

// ElementsAt hit-tests the composed tree: document order with later elements
// on top, open shadow trees entered at their host position. Display-none and
// hidden subtrees are skipped, frames are not pierced.
func (d *Document) ElementsAt(x, y float64, max int) []dom.Node {
	if max <= 0 {
		return nil
	}
	var hits []dom.Node
	var walk func(e *Elem)
	walk = func(e *Elem) {
		c := e.Computed()
		if c.Display == "none" || c.Visibility == "hidden" {
			return
		}
		if e.BoundingRect().Contains(x, y) {
			// Prepend: later-in-document wins, so reverse as we go.
			hits = append([]dom.Node{e}, hits...)
		}
		for _, ch := range e.children {
			walk(ch)
		}
		if sr, ok := d.shadow[e]; ok {
			for _, t := range sr.top {
				walk(t)
			}
		}
	}
	for _, t := range d.scope.top {
		walk(t)
	}
	if len(hits) > max {
		hits = hits[:max]
	}
	return hits
}

func (d *Document) RootOf(n dom.Node) dom.Root {
	e, ok := n.(*Elem)
	if !ok {
		return d.scope
	}
	return e.scope
}

func (d *Document) ShadowRoot(host dom.Node) (dom.Root, bool) {
	e, ok := host.(*Elem)
	if !ok {
		return nil, false
	}
	sr, ok := d.shadow[e]
	if !ok {
		return nil, false
	}
	return sr, true
}

func (d *Document) Frame(host dom.Node) (dom.Document, bool) {
	e, ok := host.(*Elem)
	if !ok {
		return nil, false
	}
	fd, ok := d.frames[e]
	if !ok {
		return nil, false
	}
	return fd, true
}

func (d *Document) FrameHost() (dom.Node, dom.Document, bool) {
	if d.frameHost == nil {
		return nil, nil, false
	}
	return d.frameHost, d.parent, true
}

func (d *Document) SubscribeGeometry(fn func()) func() {
	d.mu.Lock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

// AttachShadow parses src as the shadow tree of host. Replaces any existing
// shadow root.
func (d *Document) AttachShadow(host dom.Node, src string) (dom.Root, error) {
	e, ok := host.(*Elem)
	if !ok || e.doc != d {
		return nil, fmt.Errorf("memdom: attach shadow: foreign host")
	}
	frag, err := html.ParseFragment(strings.NewReader(src), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return nil, fmt.Errorf("memdom: attach shadow: %w", err)
	}
	sr := &rootScope{doc: d, host: e}
	for _, n := range frag {
		if n.Type == html.ElementNode {
			sr.top = append(sr.top, d.build(n, nil, sr))
		}
	}
	d.shadow[e] = sr
	return sr, nil
}

// SetFrameDocument embeds inner under host, which must be a frame host.
func (d *Document) SetFrameDocument(host dom.Node, inner *Document) error {
	e, ok := host.(*Elem)
	if !ok || e.doc != d {
		return fmt.Errorf("memdom: set frame: foreign host")
	}
	if e.Kind() != dom.KindFrameHost {
		return fmt.Errorf("memdom: set frame: <%s> is not a frame host", e.tag)
	}
	d.frames[e] = inner
	inner.frameHost = e
	inner.parent = d
	return nil
}

// Detach disconnects n and its subtree from the document, as a hot-reload
// that regenerated the DOM would.
func (d *Document) Detach(n dom.Node) {
	e, ok := n.(*Elem)
	if !ok || e.doc != d {
		return
	}
	e.detached = true
	if e.parent != nil {
		e.parent.children = removeElem(e.parent.children, e)
	} else {
		e.scope.top = removeElem(e.scope.top, e)
	}
}

// Scroll offsets the document scroll position and fires the geometry signal.
func (d *Document) Scroll(dx, dy float64) {
	d.mu.Lock()
	d.scrollX += dx
	d.scrollY += dy
	d.mu.Unlock()
	d.EmitGeometry()
}

// Resize changes the viewport and fires the geometry signal.
func (d *Document) Resize(w, h float64) {
	d.mu.Lock()
	d.viewport = dom.Rect{W: w, H: h}
	d.mu.Unlock()
	d.EmitGeometry()
}

// EmitGeometry fires the geometry signal alone, standing in for signals that
// move no document scroll position (nested container scroll).
func (d *Document) EmitGeometry() {
	d.mu.Lock()
	fns := make([]func(), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// QueryOne returns the single element matching selector, for tests.
func (d *Document) QueryOne(selector string) (dom.Node, error) {
	els, err := d.scope.Query(selector)
	if err != nil {
		return nil, err
	}
	if len(els) != 1 {
		return nil, fmt.Errorf("memdom: %q matched %d elements, want 1", selector, len(els))
	}
	return els[0], nil
}

func removeElem(s []*Elem, e *Elem) []*Elem {
	for i, c := range s {
		if c == e {
			return append(s[:i:i], s[i+1:]...)
		}
	}
	return s
}

// rootScope is a query root: the document root or one shadow root.
type rootScope struct {
	doc  *Document
	host *Elem
	top  []*Elem
}

var _ dom.Root = (*rootScope)(nil)

func (r *rootScope) Host() dom.Node {
	if r.host == nil {
		return nil
	}
	return r.host
}

// Query matches selector against every element in this root, in document
// order. Shadow boundaries are not pierced.
func (r *rootScope) Query(selector string) ([]dom.Node, error) {
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	var out []dom.Node
	var walk func(e *Elem)
	walk = func(e *Elem) {
		if sel.matchesComplex(e, r) {
			out = append(out, e)
		}
		for _, c := range e.children {
			walk(c)
		}
	}
	for _, t := range r.top {
		walk(t)
	}
	return out, nil
}
