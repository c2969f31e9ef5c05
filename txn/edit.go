package txn

import (
	"fmt"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/locator"
)

// Edit is a live style edit in flight: Set writes preview values straight
// to the element, Commit journals the net change, Rollback restores the
// before value. The target locator is built once, at Begin time, while the
// element is known to be live.
type Edit struct {
	m        *Manager
	el       dom.Node
	property string
	loc      *locator.ElementLocator
	before   string
	last     string
	html     string
	done     bool
}

// Begin opens a style edit against a live element. Capturing the locator
// and before value happens here; nothing is journaled until Commit.
func (m *Manager) Begin(doc dom.Document, el dom.Node, property string) (*Edit, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if el == nil || !el.Attached() {
		return nil, fmt.Errorf("txn: begin %q: element detached", property)
	}
	if property == "" {
		return nil, fmt.Errorf("txn: begin: empty property")
	}
	loc, err := locator.Build(doc, el)
	if err != nil {
		return nil, fmt.Errorf("txn: begin %q: %w", property, err)
	}
	html, _ := el.OuterHTML()
	before := el.StyleProperty(property)
	return &Edit{
		m:        m,
		el:       el,
		property: property,
		loc:      loc,
		before:   before,
		last:     before,
		html:     html,
	}, nil
}

// Set writes a live-preview value to the element.
func (e *Edit) Set(value string) error {
	if e.done {
		return ErrClosed
	}
	if err := e.el.SetStyleProperty(e.property, value); err != nil {
		return fmt.Errorf("txn: set %q: %w", e.property, err)
	}
	e.last = value
	return nil
}

// Commit journals the edit and returns the resulting transaction. A no-op
// edit (before equals after, string-normalized) records nothing and returns
// nil. Merging with the current undo top is permitted.
func (e *Edit) Commit() (*Transaction, error) {
	return e.commit(true)
}

// CommitDiscrete journals without merge permission, forcing a separate undo
// step even inside the merge window.
func (e *Edit) CommitDiscrete() (*Transaction, error) {
	return e.commit(false)
}

func (e *Edit) commit(allowMerge bool) (*Transaction, error) {
	if e.done {
		return nil, ErrClosed
	}
	e.done = true
	e.m.mu.Lock()
	closed := e.m.closed
	e.m.mu.Unlock()
	if closed {
		// A dropped commit must not look like a no-op edit.
		return nil, ErrClosed
	}
	if normalize(e.before) == normalize(e.last) {
		return nil, nil
	}
	t := &Transaction{
		ID:     e.m.cfg.IDs(),
		Kind:   KindStyle,
		Target: e.loc,
		Before: Snapshot{
			Locator: e.loc,
			HTML:    e.html,
			Style:   map[string]string{e.property: e.before},
		},
		After: Snapshot{
			Locator: e.loc,
			Style:   map[string]string{e.property: e.last},
		},
		CreatedAt: e.m.cfg.Now(),
	}
	pushed := e.m.Push(t, allowMerge)
	if pushed == nil {
		return nil, ErrClosed
	}
	return pushed, nil
}

// Rollback restores the before value and abandons the edit. Nothing is
// journaled.
func (e *Edit) Rollback() error {
	if e.done {
		return ErrClosed
	}
	e.done = true
	if e.last == e.before {
		return nil
	}
	if err := e.el.SetStyleProperty(e.property, e.before); err != nil {
		return fmt.Errorf("txn: rollback %q: %w", e.property, err)
	}
	return nil
}
