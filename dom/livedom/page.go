package livedom

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/input"
)

//go:embed page.js
var pageJS string

const bindingName = "__domedit_emit"

// PageConfig wires the live page to the engine.
type PageConfig struct {
	// OnInput receives every intercepted page event.
	OnInput func(input.Event)

	// OnResize fires when the viewport or device pixel ratio changes.
	OnResize func(w, h, scale float64)

	Logger *slog.Logger
}

// Page implements dom.Document over a real page. Every node handle is an
// integer into a page-side registry; lookups are Eval round-trips.
type Page struct {
	page *rod.Page
	log  *slog.Logger

	onInput  func(input.Event)
	onResize func(w, h, scale float64)

	mu       sync.Mutex
	nodes    map[int]*liveNode
	geomSubs map[int]func()
	nextSub  int
	vpW, vpH float64
	vpScale  float64
}

var _ dom.Document = (*Page)(nil)

// Attach installs the runtime into page and starts the event pump. The
// input and geometry sensors are armed but the suppression policy starts
// empty; call SetPolicy before entering an editing mode.
func Attach(ctx context.Context, page *rod.Page, cfg PageConfig) (*Page, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Page{
		page:     page,
		log:      cfg.Logger,
		onInput:  cfg.OnInput,
		onResize: cfg.OnResize,
		nodes:    make(map[int]*liveNode),
		geomSubs: make(map[int]func()),
		vpScale:  1,
	}

	if err := (proto.RuntimeAddBinding{Name: bindingName}).Call(page); err != nil {
		return nil, fmt.Errorf("livedom: add binding: %w", err)
	}
	if _, err := page.Eval(pageJS); err != nil {
		return nil, fmt.Errorf("livedom: install runtime: %w", err)
	}

	vp, err := p.eval(`() => window.__domedit.viewport()`)
	if err != nil {
		return nil, fmt.Errorf("livedom: read viewport: %w", err)
	}
	p.vpW = vp.Get("w").Num()
	p.vpH = vp.Get("h").Num()
	p.vpScale = vp.Get("scale").Num()

	if _, err := p.eval(`() => { window.__domedit.armInput(); window.__domedit.armGeometry(); }`); err != nil {
		return nil, fmt.Errorf("livedom: arm sensors: %w", err)
	}

	wait := page.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
		if e.Name == bindingName {
			p.handleEmit(e.Payload)
		}
	})
	go wait()

	return p, nil
}

// eval runs a function expression in the page and returns its result.
func (p *Page) eval(js string, args ...any) (gson.JSON, error) {
	res, err := p.page.Eval(js, args...)
	if err != nil {
		return gson.New(nil), fmt.Errorf("livedom: eval: %w", err)
	}
	return res.Value, nil
}

// node returns the canonical wrapper for a page-side handle. Identity of
// the returned pointer matches identity of the underlying element.
func (p *Page) node(id int) *liveNode {
	if id <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok {
		n = &liveNode{p: p, id: id}
		p.nodes[id] = n
	}
	return n
}

func (p *Page) handleEmit(payload string) {
	msg := gson.NewFrom(payload)
	switch msg.Get("kind").Str() {
	case "input":
		p.dispatchInput(msg)
	case "geometry":
		p.mu.Lock()
		subs := make([]func(), 0, len(p.geomSubs))
		for _, fn := range p.geomSubs {
			subs = append(subs, fn)
		}
		p.mu.Unlock()
		for _, fn := range subs {
			fn()
		}
	case "resize":
		p.mu.Lock()
		p.vpW = msg.Get("w").Num()
		p.vpH = msg.Get("h").Num()
		p.vpScale = msg.Get("scale").Num()
		cb := p.onResize
		w, h, scale := p.vpW, p.vpH, p.vpScale
		p.mu.Unlock()
		if cb != nil {
			cb(w, h, scale)
		}
	}
}

func (p *Page) dispatchInput(msg gson.JSON) {
	if p.onInput == nil {
		return
	}
	t, ok := input.ParseType(msg.Get("type").Str())
	if !ok {
		return
	}
	p.onInput(input.Event{
		Type:   t,
		X:      msg.Get("x").Num(),
		Y:      msg.Get("y").Num(),
		Button: msg.Get("button").Int(),
		Key:    msg.Get("key").Str(),
		Mods: input.Modifiers{
			Alt:   msg.Get("alt").Bool(),
			Shift: msg.Get("shift").Bool(),
			Ctrl:  msg.Get("ctrl").Bool(),
			Meta:  msg.Get("meta").Bool(),
		},
		OnEditorUI: msg.Get("editorUI").Bool(),
	})
}

// SetPolicy pushes the suppression table into the page. The capture
// listeners consult it synchronously, so suppression has no round-trip
// latency once set.
func (p *Page) SetPolicy(policy input.Policy) error {
	table := make(map[string]string, len(policy))
	for t, a := range policy {
		table[t.String()] = a.String()
	}
	_, err := p.eval(`(t) => window.__domedit.setPolicy(t)`, table)
	return err
}

// IsEditorUI reports whether n sits inside the editor's own page surface.
func (p *Page) IsEditorUI(n dom.Node) bool {
	ln, ok := n.(*liveNode)
	if !ok {
		return false
	}
	v, err := p.eval(`(id) => window.__domedit.isEditorUI(id)`, ln.id)
	return err == nil && v.Bool()
}

// OverlayMount and UIMount return nil: the page runtime owns its own
// fixed-position containers, so the session has nothing to mount into.
func (p *Page) OverlayMount() dom.Node { return nil }
func (p *Page) UIMount() dom.Node      { return nil }

// Root returns the top document scope.
func (p *Page) Root() dom.Root {
	return &rootScope{p: p}
}

// Body returns the document body element.
func (p *Page) Body() dom.Node {
	v, err := p.eval(`() => window.__domedit.body()`)
	if err != nil {
		return nil
	}
	return nodeOrNil(p.node(v.Int()))
}

// Viewport returns the current visual viewport in CSS pixels.
func (p *Page) Viewport() dom.Rect {
	p.mu.Lock()
	defer p.mu.Unlock()
	return dom.Rect{W: p.vpW, H: p.vpH}
}

// Scale returns the device pixel ratio last reported by the page.
func (p *Page) Scale() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.vpScale
}

// ElementsAt returns the elements under the point, topmost first.
func (p *Page) ElementsAt(x, y float64, max int) []dom.Node {
	v, err := p.eval(`(x, y, max) => window.__domedit.elementsAt(x, y, max)`, x, y, max)
	if err != nil {
		p.log.Warn("livedom: elementsAt", "error", err)
		return nil
	}
	var out []dom.Node
	for _, hit := range v.Arr() {
		if n := p.node(hit.Get("id").Int()); n != nil {
			out = append(out, n)
		}
	}
	return out
}

// RootOf returns the root containing n: the top document scope, or a
// shadow root scope when n lives inside one.
func (p *Page) RootOf(n dom.Node) dom.Root {
	ln, ok := n.(*liveNode)
	if !ok {
		return p.Root()
	}
	v, err := p.eval(`(id) => window.__domedit.rootOf(id)`, ln.id)
	if err != nil {
		return p.Root()
	}
	if host := v.Get("shadowHost").Int(); host > 0 {
		return &rootScope{p: p, scopeID: host, host: p.node(host)}
	}
	if docRoot := v.Get("docRoot").Int(); docRoot > 0 {
		return &rootScope{p: p, scopeID: docRoot}
	}
	return p.Root()
}

// ShadowRoot returns the open shadow root of host, if any.
func (p *Page) ShadowRoot(host dom.Node) (dom.Root, bool) {
	ln, ok := host.(*liveNode)
	if !ok {
		return nil, false
	}
	v, err := p.eval(`(id) => window.__domedit.hasShadowRoot(id)`, ln.id)
	if err != nil || !v.Bool() {
		return nil, false
	}
	return &rootScope{p: p, scopeID: ln.id, host: ln}, true
}

// Frame returns the document inside a same-origin frame host. Cross-origin
// frames are invisible to the editor.
func (p *Page) Frame(host dom.Node) (dom.Document, bool) {
	ln, ok := host.(*liveNode)
	if !ok {
		return nil, false
	}
	v, err := p.eval(`(id) => window.__domedit.frameBody(id)`, ln.id)
	if err != nil {
		return nil, false
	}
	docRoot := v.Int()
	if docRoot <= 0 {
		return nil, false
	}
	return &frameDoc{p: p, host: ln, rootID: docRoot, parent: p}, true
}

// FrameHost reports the top document as unframed.
func (p *Page) FrameHost() (dom.Node, dom.Document, bool) {
	return nil, nil, false
}

// SubscribeGeometry registers fn for layout-affecting page signals:
// scroll, resize, and DOM mutation.
func (p *Page) SubscribeGeometry(fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.geomSubs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.geomSubs, id)
	}
}

// Close stops the event pump. The page itself belongs to the caller.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.geomSubs = map[int]func(){}
}

func nodeOrNil(n *liveNode) dom.Node {
	if n == nil {
		return nil
	}
	return n
}

// rootScope is a query scope: the top document (scopeID 0), a shadow
// root (scopeID = host id), or a frame document (scopeID = its root
// element, host nil).
type rootScope struct {
	p       *Page
	scopeID int
	host    *liveNode
}

func (r *rootScope) Host() dom.Node {
	return nodeOrNil(r.host)
}

func (r *rootScope) Query(selector string) ([]dom.Node, error) {
	v, err := r.p.eval(`(root, sel) => window.__domedit.query(root, sel)`, r.scopeID, selector)
	if err != nil {
		return nil, err
	}
	if msg := v.Get("error").Str(); msg != "" {
		return nil, fmt.Errorf("livedom: query %q: %s", selector, msg)
	}
	var out []dom.Node
	for _, id := range v.Get("ids").Arr() {
		if n := r.p.node(id.Int()); n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

// frameDoc scopes document operations to a same-origin child frame.
type frameDoc struct {
	p      *Page
	host   *liveNode
	rootID int
	parent dom.Document
}

var _ dom.Document = (*frameDoc)(nil)

func (f *frameDoc) Root() dom.Root { return &rootScope{p: f.p, scopeID: f.rootID} }

func (f *frameDoc) Body() dom.Node {
	nodes, err := f.Root().Query("body")
	if err != nil || len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func (f *frameDoc) Viewport() dom.Rect {
	r := f.host.BoundingRect()
	return dom.Rect{W: r.W, H: r.H}
}

// ElementsAt is not supported inside frames: hit testing happens in the
// top document, where the frame host itself is the hit.
func (f *frameDoc) ElementsAt(x, y float64, max int) []dom.Node { return nil }

func (f *frameDoc) RootOf(n dom.Node) dom.Root { return f.p.RootOf(n) }

func (f *frameDoc) ShadowRoot(host dom.Node) (dom.Root, bool) { return f.p.ShadowRoot(host) }

func (f *frameDoc) Frame(host dom.Node) (dom.Document, bool) { return f.p.Frame(host) }

func (f *frameDoc) FrameHost() (dom.Node, dom.Document, bool) {
	return f.host, f.parent, true
}

func (f *frameDoc) SubscribeGeometry(fn func()) func() { return f.p.SubscribeGeometry(fn) }
