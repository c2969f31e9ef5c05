// Package dom defines the document abstraction every other domedit package
// consumes: nodes, roots, documents, rectangles and computed style. It owns
// no I/O; concrete drivers live in dom/memdom (parsed in-memory documents)
// and dom/livedom (a live page over the DevTools protocol).
package dom

import "math"

// Kind classifies a node exactly once. Consumers (locator, selection) branch
// on the classification instead of re-deriving it from tag names.
type Kind int

const (
	// KindElement is an ordinary element.
	KindElement Kind = iota
	// KindShadowHost hosts an isolated subtree (shadow root).
	KindShadowHost
	// KindFrameHost hosts an embedded document (iframe).
	KindFrameHost
)

func (k Kind) String() string {
	switch k {
	case KindShadowHost:
		return "shadow-host"
	case KindFrameHost:
		return "frame-host"
	default:
		return "element"
	}
}

// Rect is a viewport-relative box in CSS pixels.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Area returns W*H, zero for degenerate boxes.
func (r Rect) Area() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Contains reports whether the point (x, y) falls inside the box.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// DiffExceeds reports whether any side of r differs from o by more than tol.
// Used to gate change emission against sub-pixel measurement jitter.
func (r Rect) DiffExceeds(o Rect, tol float64) bool {
	return math.Abs(r.X-o.X) > tol ||
		math.Abs(r.Y-o.Y) > tol ||
		math.Abs(r.W-o.W) > tol ||
		math.Abs(r.H-o.H) > tol
}

// Computed is the subset of computed style the engine reads. Drivers fill it
// from the real computed style (livedom) or from inline style plus per-tag
// user-agent defaults (memdom).
type Computed struct {
	Display           string
	Visibility        string
	ContentVisibility string
	Opacity           float64
	Cursor            string
	BackgroundColor   string
	BorderWidth       float64
	HasBoxShadow      bool
	HasOutline        bool
}

// Transparent reports whether the computed background paints nothing.
func (c Computed) Transparent() bool {
	switch c.BackgroundColor {
	case "", "transparent", "rgba(0, 0, 0, 0)", "rgba(0,0,0,0)":
		return true
	}
	return false
}

// Node is one element of a document. Drivers must return canonical,
// pointer-stable values so that interface equality works as identity.
type Node interface {
	// Kind is the one-time classification of this node.
	Kind() Kind
	// Tag is the lowercase tag name.
	Tag() string
	// ID is the id attribute, empty when absent.
	ID() string
	// Classes is the class list in document order.
	Classes() []string
	// Attr returns an attribute value and whether it is present.
	Attr(name string) (string, bool)
	// Text is the subtree text content, whitespace-collapsed. Shadow
	// subtrees and embedded documents are not included.
	Text() string
	// Parent is the parent element, nil at a root boundary.
	Parent() Node
	// Children are the element children in document order.
	Children() []Node
	// NthOfType is the 1-based position among same-tag siblings.
	NthOfType() int
	// Attached reports whether the node is still connected to its document.
	Attached() bool
	// BoundingRect is the viewport-relative box. Zero for unlaid-out nodes.
	BoundingRect() Rect
	// Computed returns the computed-style subset the engine reads.
	Computed() Computed
	// StyleProperty reads one inline style property, empty when unset.
	StyleProperty(name string) string
	// SetStyleProperty writes one inline style property. The only document
	// write the engine ever performs.
	SetStyleProperty(name, value string) error
	// OuterHTML serializes the element, shadow subtrees excluded.
	OuterHTML() (string, error)
}

// Root is a query scope: the document root or a shadow root. Query never
// pierces nested shadow boundaries.
type Root interface {
	// Query returns all elements in this root matching the selector, in
	// document order. A malformed selector returns an error.
	Query(selector string) ([]Node, error)
	// Host is the shadow host owning this root, nil for a document root.
	Host() Node
}

// Document is one browsing context.
type Document interface {
	// Root is the document's top-level query root.
	Root() Root
	// Body is the body element, nil for a body-less document.
	Body() Node
	// Viewport is the current viewport box (X, Y always zero).
	Viewport() Rect
	// ElementsAt returns up to max elements under the point, topmost first,
	// piercing open shadow roots. Display-none subtrees are skipped.
	ElementsAt(x, y float64, max int) []Node
	// RootOf returns the root containing n (shadow-aware).
	RootOf(n Node) Root
	// ShadowRoot returns the open shadow root hosted by n, if any.
	ShadowRoot(host Node) (Root, bool)
	// Frame returns the embedded document hosted by n, if accessible.
	Frame(host Node) (Document, bool)
	// FrameHost returns the hosting element and parent document when this
	// document is itself embedded.
	FrameHost() (host Node, parent Document, ok bool)
	// SubscribeGeometry registers fn to run on any scroll or resize signal,
	// including capture-phase container scroll. Returns the unsubscribe.
	SubscribeGeometry(fn func()) (unsubscribe func())
}

// TopElementAt returns the single topmost element under the point, or nil.
// The cheap hit-test primitive behind hover highlighting.
func TopElementAt(d Document, x, y float64) Node {
	els := d.ElementsAt(x, y, 1)
	if len(els) == 0 {
		return nil
	}
	return els[0]
}
