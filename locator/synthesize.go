package locator

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/domedit/dom"
)

// likelyUniqueAttrs are attributes that tend to identify one element.
// Tried attribute-only first, then tag-qualified.
var likelyUniqueAttrs = []string{
	"data-testid", "data-test", "data-cy", "data-id",
	"name", "title", "aria-label",
}

// maxClassCombo bounds class-pair synthesis to the first classes, avoiding
// combinatorial blowup on utility-class soup.
const maxClassCombo = 3

// Synthesize produces up to max distinct selector candidates for el, most
// specific first. Strategies are tried in priority order and a candidate is
// kept only when it matches exactly el within root. The structural-path
// strategy always succeeds and is the fallback of last resort.
func Synthesize(el dom.Node, root dom.Root, max int) []string {
	if max <= 0 {
		max = MaxCandidates
	}
	var out []string
	add := func(sel string) bool {
		if len(out) >= max {
			return true
		}
		for _, have := range out {
			if have == sel {
				return false
			}
		}
		if !matchesOnly(root, sel, el) {
			return false
		}
		out = append(out, sel)
		return len(out) >= max
	}

	if id := el.ID(); id != "" {
		if add("#" + id) {
			return out
		}
	}

	tag := el.Tag()
	for _, name := range likelyUniqueAttrs {
		v, ok := el.Attr(name)
		if !ok || v == "" {
			continue
		}
		attr := fmt.Sprintf("[%s=%q]", name, v)
		if add(attr) {
			return out
		}
		if add(tag + attr) {
			return out
		}
	}

	classes := el.Classes()
	for _, c := range classes {
		if add("." + c) {
			return out
		}
	}
	for _, c := range classes {
		if add(tag + "." + c) {
			return out
		}
	}
	n := len(classes)
	if n > maxClassCombo {
		n = maxClassCombo
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if add("." + classes[i] + "." + classes[j]) {
				return out
			}
		}
	}
	if n == 3 {
		if add("." + classes[0] + "." + classes[1] + "." + classes[2]) {
			return out
		}
	}

	if len(out) < max {
		add(structuralPath(el))
	}
	return out
}

// structuralPath builds "tag:nth-of-type(n) > …" from the nearest boundary
// (document body or shadow root) down to el. Position-based, so it always
// resolves uniquely against the DOM it was synthesized from.
func structuralPath(el dom.Node) string {
	var rev []string
	for e := el; e != nil; e = e.Parent() {
		if e.Tag() == "body" {
			rev = append(rev, "body")
			break
		}
		rev = append(rev, fmt.Sprintf("%s:nth-of-type(%d)", e.Tag(), e.NthOfType()))
	}
	segs := make([]string, len(rev))
	for i, s := range rev {
		segs[len(rev)-1-i] = s
	}
	return strings.Join(segs, " > ")
}

// matchesOnly reports whether sel matches exactly el within root. Any query
// error (a selector needing escaping the grammar cannot express) counts as
// a failed candidate.
func matchesOnly(root dom.Root, sel string, el dom.Node) bool {
	els, err := root.Query(sel)
	if err != nil {
		return false
	}
	return len(els) == 1 && els[0] == el
}
