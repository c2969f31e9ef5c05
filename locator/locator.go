// Package locator names DOM elements durably. A locator is a serializable
// description (selector candidates, a structural fingerprint, shadow-host
// and frame chains) that can re-find an element after the DOM has been
// regenerated, without ever holding a live reference. All functions are
// pure: no state, no listeners.
package locator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/domedit/dom"
)

// ErrUnresolvable reports that a locator could not be re-resolved to a
// unique, fingerprint-consistent element. Recoverable: callers revert
// whatever mutation needed the element.
var ErrUnresolvable = errors.New("locator: unresolvable")

// MaxCandidates is the default cap on selector candidates per locator.
const MaxCandidates = 5

// ElementLocator is a durable, serializable reference to a document node.
// Never mutated after Build; compared via Key.
type ElementLocator struct {
	// Selectors are the candidate selectors, most-specific first.
	Selectors []string `json:"selectors"`
	// Fingerprint sanity-checks whatever a selector resolves to.
	Fingerprint Fingerprint `json:"fingerprint"`
	// Path is the 0-based child-index path from the traversal root.
	Path []int `json:"path,omitempty"`
	// HostChain locates nested shadow hosts, outermost first.
	HostChain []string `json:"host_chain,omitempty"`
	// FrameChain locates nested frame hosts, outermost first.
	FrameChain []string `json:"frame_chain,omitempty"`
}

// Key derives a comparison key. Equal keys mean "same addressed element"
// for merge decisions.
func (l *ElementLocator) Key() string {
	var b strings.Builder
	b.WriteString(strings.Join(l.FrameChain, ">>"))
	b.WriteString("||")
	b.WriteString(strings.Join(l.HostChain, ">>"))
	b.WriteString("||")
	b.WriteString(strings.Join(l.Selectors, "|"))
	b.WriteString("||")
	b.WriteString(l.Fingerprint.String())
	return b.String()
}

// Build captures el as an ElementLocator: selector candidates within its
// containing root, fingerprint, child-index path, and the shadow-host and
// frame chains needed to reach that root from the top document.
func Build(doc dom.Document, el dom.Node) (*ElementLocator, error) {
	if el == nil || !el.Attached() {
		return nil, fmt.Errorf("locator: build: element detached")
	}
	root := doc.RootOf(el)
	loc := &ElementLocator{
		Selectors:   Synthesize(el, root, MaxCandidates),
		Fingerprint: NewFingerprint(el),
		Path:        childIndexPath(el),
		HostChain:   hostChain(doc, root),
	}
	loc.FrameChain = frameChain(doc)
	return loc, nil
}

// childIndexPath is the 0-based position path from the root boundary down
// to el.
func childIndexPath(el dom.Node) []int {
	var rev []int
	for e := el; e != nil; {
		p := e.Parent()
		if p == nil {
			break
		}
		idx := 0
		for i, c := range p.Children() {
			if c == e {
				idx = i
				break
			}
		}
		rev = append(rev, idx)
		e = p
	}
	path := make([]int, len(rev))
	for i, v := range rev {
		path[len(rev)-1-i] = v
	}
	return path
}

// hostChain walks outward through shadow boundaries, synthesizing a unique
// selector for each host within its own containing root. A host with no
// unique selector simply ends the chain early.
func hostChain(doc dom.Document, root dom.Root) []string {
	var chain []string
	for root != nil {
		host := root.Host()
		if host == nil {
			break
		}
		hostRoot := doc.RootOf(host)
		sel := uniqueSelector(host, hostRoot)
		if sel == "" {
			break
		}
		chain = append([]string{sel}, chain...)
		root = hostRoot
	}
	return chain
}

// frameChain walks outward through embedded-document boundaries.
func frameChain(doc dom.Document) []string {
	var chain []string
	for {
		host, parent, ok := doc.FrameHost()
		if !ok {
			break
		}
		sel := uniqueSelector(host, parent.RootOf(host))
		if sel == "" {
			break
		}
		chain = append([]string{sel}, chain...)
		doc = parent
	}
	return chain
}

func uniqueSelector(el dom.Node, root dom.Root) string {
	cands := Synthesize(el, root, 1)
	if len(cands) == 0 {
		return ""
	}
	return cands[0]
}

// Verify selects how strictly a resolved element is checked against the
// original fingerprint.
type Verify int

const (
	// VerifyTagID is the default: tag must match, and id must match when
	// the original had one. Tolerates minor regeneration drift.
	VerifyTagID Verify = iota
	// VerifyTag checks tag only.
	VerifyTag
	// VerifyFull additionally requires class-set and truncated-text
	// equality.
	VerifyFull
)

// ResolveOptions tune resolution.
type ResolveOptions struct {
	Verify Verify
}

// Resolve re-finds the element a locator describes, starting from the top
// document: frame chain first, then shadow-host chain, then the selector
// candidates against the final root. Every hop must resolve uniquely; any
// failed hop fails the whole resolution, never a wrong element.
func Resolve(loc *ElementLocator, doc dom.Document, opts ResolveOptions) (dom.Node, error) {
	if loc == nil {
		return nil, fmt.Errorf("locator: resolve: nil locator")
	}
	for _, sel := range loc.FrameChain {
		host, ok := queryUnique(doc.Root(), sel)
		if !ok {
			return nil, fmt.Errorf("locator: frame hop %q: %w", sel, ErrUnresolvable)
		}
		inner, ok := doc.Frame(host)
		if !ok {
			return nil, fmt.Errorf("locator: frame hop %q: no accessible document: %w", sel, ErrUnresolvable)
		}
		doc = inner
	}
	root := doc.Root()
	for _, sel := range loc.HostChain {
		host, ok := queryUnique(root, sel)
		if !ok {
			return nil, fmt.Errorf("locator: host hop %q: %w", sel, ErrUnresolvable)
		}
		sr, ok := doc.ShadowRoot(host)
		if !ok {
			return nil, fmt.Errorf("locator: host hop %q: no shadow root: %w", sel, ErrUnresolvable)
		}
		root = sr
	}
	for _, sel := range loc.Selectors {
		el, ok := queryUnique(root, sel)
		if !ok {
			continue
		}
		if loc.Fingerprint.Matches(el, opts.Verify) {
			return el, nil
		}
	}
	return nil, fmt.Errorf("locator: no candidate resolved: %w", ErrUnresolvable)
}

// queryUnique requires exactly one match. Malformed selectors count as a
// failed candidate, never an error.
func queryUnique(root dom.Root, sel string) (dom.Node, bool) {
	els, err := root.Query(sel)
	if err != nil || len(els) != 1 {
		return nil, false
	}
	return els[0], true
}
