// Package txn journals style mutations as reversible transactions keyed by
// durable locators, with undo/redo stacks, a merge window that turns a
// continuous drag-style edit into one undo step, and bounded history.
package txn

import (
	"time"

	"github.com/hazyhaar/domedit/locator"
)

// Kind classifies a transaction. Only style is on the core's active path;
// the rest are modeled for forward compatibility.
type Kind string

const (
	KindStyle     Kind = "style"
	KindText      Kind = "text"
	KindMove      Kind = "move"
	KindStructure Kind = "structure"
)

// Snapshot is one side of a transaction: how the target looked before or
// after the edit.
type Snapshot struct {
	Locator *locator.ElementLocator `json:"locator,omitempty"`
	// HTML is an optional sanitized outer-HTML capture for agent context.
	HTML string `json:"html,omitempty"`
	// Style maps property name to value. Style transactions touch exactly
	// one property unless merged history rewrote the after side.
	Style map[string]string `json:"style,omitempty"`
	Text  string            `json:"text,omitempty"`
}

// Transaction is one reversible, journaled edit. Immutable post-commit
// except for the single in-place merge: identity and target never change,
// only the after snapshot and timestamp are extended.
type Transaction struct {
	ID        string                  `json:"id"`
	Kind      Kind                    `json:"kind"`
	Target    *locator.ElementLocator `json:"target"`
	Before    Snapshot                `json:"before"`
	After     Snapshot                `json:"after"`
	CreatedAt time.Time               `json:"created_at"`
	Merged    bool                    `json:"merged"`
}

// soleStyleProperty returns the single touched property, or "" when the
// transaction is not a one-property style edit.
func (t *Transaction) soleStyleProperty() string {
	if t.Kind != KindStyle || len(t.After.Style) != 1 {
		return ""
	}
	for k := range t.After.Style {
		return k
	}
	return ""
}
