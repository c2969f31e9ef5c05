package locator

import (
	"sort"
	"strings"

	"github.com/hazyhaar/domedit/dom"
)

// textCap bounds the fingerprint text sample.
const textCap = 64

// Fingerprint is a short structural signature of an element, used to
// sanity-check whatever a selector candidate resolves to.
type Fingerprint struct {
	Tag     string   `json:"tag"`
	ID      string   `json:"id,omitempty"`
	Classes []string `json:"classes,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// NewFingerprint captures el's tag, id, class list and truncated text.
// Stable for the same tuple, changed when any component changes.
func NewFingerprint(el dom.Node) Fingerprint {
	return Fingerprint{
		Tag:     el.Tag(),
		ID:      el.ID(),
		Classes: append([]string(nil), el.Classes()...),
		Text:    truncateRunes(el.Text(), textCap),
	}
}

func (f Fingerprint) String() string {
	var b strings.Builder
	b.WriteString(f.Tag)
	if f.ID != "" {
		b.WriteByte('#')
		b.WriteString(f.ID)
	}
	for _, c := range f.Classes {
		b.WriteByte('.')
		b.WriteString(c)
	}
	if f.Text != "" {
		b.WriteByte('|')
		b.WriteString(f.Text)
	}
	return b.String()
}

// Matches verifies el against the fingerprint at the given strictness.
func (f Fingerprint) Matches(el dom.Node, v Verify) bool {
	if el.Tag() != f.Tag {
		return false
	}
	switch v {
	case VerifyTag:
		return true
	case VerifyFull:
		if el.ID() != f.ID {
			return false
		}
		if !sameClassSet(f.Classes, el.Classes()) {
			return false
		}
		return truncateRunes(el.Text(), textCap) == f.Text
	default: // VerifyTagID
		return f.ID == "" || el.ID() == f.ID
	}
}

func sameClassSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
