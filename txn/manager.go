package txn

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/idgen"
	"github.com/hazyhaar/domedit/locator"
)

var (
	// ErrClosed reports use of a disposed manager or finished edit handle.
	ErrClosed = errors.New("txn: closed")
)

// Defaults.
const (
	DefaultMaxHistory  = 100
	DefaultMergeWindow = 800 * time.Millisecond
)

// Op names a history mutation reported to change subscribers.
type Op string

const (
	OpPush  Op = "push"
	OpMerge Op = "merge"
	OpUndo  Op = "undo"
	OpRedo  Op = "redo"
	OpClear Op = "clear"
)

// Change is the notification sent on every history mutation.
type Change struct {
	Op        Op
	Txn       *Transaction
	UndoCount int
	RedoCount int
}

// Config for a Manager.
type Config struct {
	// MaxHistory caps the undo stack; oldest entries are evicted. Default
	// 100.
	MaxHistory int
	// MergeWindow is the maximum gap between two edits for them to
	// collapse into one undo step. Default 800ms.
	MergeWindow time.Duration
	// Verify is the locator verification strictness used on undo/redo.
	Verify locator.Verify
	// IDs generates transaction identifiers. Default "txn_"-prefixed
	// UUIDv7.
	IDs idgen.Generator
	// Now is the clock, injectable for merge-window tests.
	Now    func() time.Time
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.MergeWindow <= 0 {
		c.MergeWindow = DefaultMergeWindow
	}
	if c.IDs == nil {
		c.IDs = idgen.Prefixed("txn_", idgen.UUIDv7())
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the undo and redo stacks.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	undo   []*Transaction
	redo   []*Transaction
	subs   map[int]func(Change)
	nextID int
	closed bool
}

// NewManager returns an empty history.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, subs: make(map[int]func(Change))}
}

// Subscribe registers a change listener and returns its unsubscribe.
func (m *Manager) Subscribe(fn func(Change)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Counts returns the undo and redo stack lengths.
func (m *Manager) Counts() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

// Latest returns the most recent undo-stack entry, the accessor the
// commit/apply pathway packages from. Nil when the stack is empty.
func (m *Manager) Latest() *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.undo) == 0 {
		return nil
	}
	return m.undo[len(m.undo)-1]
}

// History returns the undo stack oldest-first, for inspection surfaces.
func (m *Manager) History() []*Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Transaction(nil), m.undo...)
}

// Push records a committed transaction and returns the journaled entry:
// t itself, or the extended undo top when the push merged. Any non-empty
// redo stack is cleared first (new edits invalidate the future branch) and
// blocks merging. With merging allowed, a same-target, same-single-property
// style transaction within the merge window extends the current top in
// place instead of pushing.
func (m *Manager) Push(t *Transaction, allowMerge bool) *Transaction {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	if len(m.redo) > 0 {
		m.redo = m.redo[:0]
		allowMerge = false
	}
	if allowMerge && m.mergeInto(t) {
		top := m.undo[len(m.undo)-1]
		change := m.changeLocked(OpMerge, top)
		m.mu.Unlock()
		m.notify(change)
		return top
	}
	m.undo = append(m.undo, t)
	if len(m.undo) > m.cfg.MaxHistory {
		m.undo = append(m.undo[:0], m.undo[len(m.undo)-m.cfg.MaxHistory:]...)
	}
	change := m.changeLocked(OpPush, t)
	m.mu.Unlock()
	m.notify(change)
	return t
}

// mergeInto extends the undo top with t when both are one-property style
// edits of the same property on the same target, within the window. The
// top's identity and target never change.
func (m *Manager) mergeInto(t *Transaction) bool {
	if len(m.undo) == 0 {
		return false
	}
	top := m.undo[len(m.undo)-1]
	if top.Kind != KindStyle || t.Kind != KindStyle {
		return false
	}
	prop := top.soleStyleProperty()
	if prop == "" || prop != t.soleStyleProperty() {
		return false
	}
	if top.Target == nil || t.Target == nil || top.Target.Key() != t.Target.Key() {
		return false
	}
	if t.CreatedAt.Sub(top.CreatedAt) > m.cfg.MergeWindow {
		return false
	}
	top.After.Style[prop] = t.After.Style[prop]
	top.After.Text = t.After.Text
	top.CreatedAt = t.CreatedAt
	top.Merged = true
	return true
}

// Undo pops the most recent transaction, re-resolves its target and writes
// the before snapshot back. On resolution failure the pop is reverted and a
// recoverable error returned; history is never silently corrupted. An
// empty stack returns (nil, nil).
func (m *Manager) Undo(doc dom.Document) (*Transaction, error) {
	return m.move(doc, OpUndo)
}

// Redo reverses the most recent undo.
func (m *Manager) Redo(doc dom.Document) (*Transaction, error) {
	return m.move(doc, OpRedo)
}

func (m *Manager) move(doc dom.Document, op Op) (*Transaction, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	from, to := &m.undo, &m.redo
	if op == OpRedo {
		from, to = &m.redo, &m.undo
	}
	if len(*from) == 0 {
		m.mu.Unlock()
		return nil, nil
	}
	t := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	m.mu.Unlock()

	el, err := locator.Resolve(t.Target, doc, locator.ResolveOptions{Verify: m.cfg.Verify})
	if err != nil {
		// Revert the pop unchanged.
		m.mu.Lock()
		*from = append(*from, t)
		m.mu.Unlock()
		return nil, fmt.Errorf("txn: %s %s: %w", op, t.ID, err)
	}

	snap := t.Before
	if op == OpRedo {
		snap = t.After
	}
	for prop, val := range snap.Style {
		if err := el.SetStyleProperty(prop, val); err != nil {
			m.mu.Lock()
			*from = append(*from, t)
			m.mu.Unlock()
			return nil, fmt.Errorf("txn: %s %s: write style: %w", op, t.ID, err)
		}
	}

	m.mu.Lock()
	*to = append(*to, t)
	change := m.changeLocked(op, t)
	m.mu.Unlock()
	m.notify(change)
	return t, nil
}

// Clear drops both stacks.
func (m *Manager) Clear() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.undo = nil
	m.redo = nil
	change := m.changeLocked(OpClear, nil)
	m.mu.Unlock()
	m.notify(change)
}

// Close disposes the manager. Further mutations are rejected.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.subs = map[int]func(Change){}
	m.mu.Unlock()
}

func (m *Manager) changeLocked(op Op, t *Transaction) changeFanout {
	fns := make([]func(Change), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	return changeFanout{
		change: Change{Op: op, Txn: t, UndoCount: len(m.undo), RedoCount: len(m.redo)},
		fns:    fns,
	}
}

type changeFanout struct {
	change Change
	fns    []func(Change)
}

func (m *Manager) notify(c changeFanout) {
	for _, fn := range c.fns {
		fn(c.change)
	}
}

// normalize collapses whitespace for the before/after no-op comparison.
func normalize(v string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(v)), " ")
}
