package memdom

import (
	"fmt"
	"strconv"
	"strings"
)

// The selector grammar is exactly what locator synthesis emits: tag, #id,
// .class (compoundable), [attr] / [attr=val], :nth-of-type(n), descendant
// and > combinators. Anything else is a parse error, which callers treat as
// a failed candidate.

type compound struct {
	tag     string
	id      string
	classes []string
	attrs   []attrSel
	nth     int // 0 = no :nth-of-type
}

type attrSel struct {
	name   string
	val    string
	hasVal bool
}

type complexSel struct {
	parts []compound
	combs []byte // between parts: ' ' (descendant) or '>' (child)
}

func parseSelector(s string) (*complexSel, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("memdom: empty selector")
	}
	var sel complexSel
	// Normalize "a > b" to "a>b" so tokens split cleanly on whitespace.
	s = strings.ReplaceAll(s, " > ", ">")
	s = strings.ReplaceAll(s, "> ", ">")
	s = strings.ReplaceAll(s, " >", ">")
	for _, tok := range strings.Fields(s) {
		first := true
		for _, seg := range strings.Split(tok, ">") {
			c, err := parseCompound(seg)
			if err != nil {
				return nil, err
			}
			if len(sel.parts) > 0 {
				if first {
					sel.combs = append(sel.combs, ' ')
				} else {
					sel.combs = append(sel.combs, '>')
				}
			}
			sel.parts = append(sel.parts, c)
			first = false
		}
	}
	return &sel, nil
}

func parseCompound(s string) (compound, error) {
	var c compound
	if s == "" {
		return c, fmt.Errorf("memdom: empty compound selector")
	}
	i := 0
	// Optional leading tag name.
	for i < len(s) && isNameByte(s[i]) {
		i++
	}
	c.tag = strings.ToLower(s[:i])
	for i < len(s) {
		switch s[i] {
		case '#':
			j := i + 1
			for j < len(s) && isNameByte(s[j]) {
				j++
			}
			if j == i+1 {
				return c, fmt.Errorf("memdom: bad id in %q", s)
			}
			c.id = s[i+1 : j]
			i = j
		case '.':
			j := i + 1
			for j < len(s) && isNameByte(s[j]) {
				j++
			}
			if j == i+1 {
				return c, fmt.Errorf("memdom: bad class in %q", s)
			}
			c.classes = append(c.classes, s[i+1:j])
			i = j
		case '[':
			j := strings.IndexByte(s[i:], ']')
			if j < 0 {
				return c, fmt.Errorf("memdom: unterminated attribute in %q", s)
			}
			body := s[i+1 : i+j]
			name, val, hasVal := strings.Cut(body, "=")
			val = strings.Trim(val, `"'`)
			if name == "" || !isName(name) {
				return c, fmt.Errorf("memdom: bad attribute in %q", s)
			}
			c.attrs = append(c.attrs, attrSel{name: name, val: val, hasVal: hasVal})
			i += j + 1
		case ':':
			const fn = ":nth-of-type("
			if !strings.HasPrefix(s[i:], fn) {
				return c, fmt.Errorf("memdom: unsupported pseudo-class in %q", s)
			}
			j := strings.IndexByte(s[i:], ')')
			if j < 0 {
				return c, fmt.Errorf("memdom: unterminated :nth-of-type in %q", s)
			}
			n, err := strconv.Atoi(s[i+len(fn) : i+j])
			if err != nil || n < 1 {
				return c, fmt.Errorf("memdom: bad :nth-of-type argument in %q", s)
			}
			c.nth = n
			i += j + 1
		default:
			return c, fmt.Errorf("memdom: unexpected %q in selector %q", s[i], s)
		}
	}
	if c.tag == "" && c.id == "" && len(c.classes) == 0 && len(c.attrs) == 0 {
		return c, fmt.Errorf("memdom: empty compound selector in %q", s)
	}
	return c, nil
}

func isNameByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' || b == '-' || b == '_'
}

func isName(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isNameByte(s[i]) {
			return false
		}
	}
	return s != ""
}

func (c compound) matches(e *Elem) bool {
	if c.tag != "" && e.tag != c.tag {
		return false
	}
	if c.id != "" && e.ID() != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := e.Classes()
		for _, want := range c.classes {
			found := false
			for _, h := range have {
				if h == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		v, ok := e.Attr(a.name)
		if !ok {
			return false
		}
		if a.hasVal && v != a.val {
			return false
		}
	}
	if c.nth > 0 && e.NthOfType() != c.nth {
		return false
	}
	return true
}

// matchesComplex checks the full selector right-to-left from e, walking
// ancestors within the same root scope.
func (sel *complexSel) matchesComplex(e *Elem, scope *rootScope) bool {
	last := len(sel.parts) - 1
	if !sel.parts[last].matches(e) {
		return false
	}
	return matchAncestors(e, sel, last-1, scope)
}

func matchAncestors(e *Elem, sel *complexSel, idx int, scope *rootScope) bool {
	if idx < 0 {
		return true
	}
	comb := sel.combs[idx]
	p := e.parent
	if comb == '>' {
		if p == nil || p.scope != scope {
			return false
		}
		if !sel.parts[idx].matches(p) {
			return false
		}
		return matchAncestors(p, sel, idx-1, scope)
	}
	for ; p != nil && p.scope == scope; p = p.parent {
		if sel.parts[idx].matches(p) && matchAncestors(p, sel, idx-1, scope) {
			return true
		}
	}
	return false
}
