// Package editor assembles the selection-and-mutation engine into one
// explicitly constructed, explicitly disposed session: controller feeding
// tracker feeding renderer, transactions journaled against locators, change
// events fanned out to subscribers, MCP tools at the boundary. Multiple
// sessions are legal; there is no package-level mutable state.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sanity-io/litter"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/frame"
	"github.com/hazyhaar/domedit/idgen"
	"github.com/hazyhaar/domedit/input"
	"github.com/hazyhaar/domedit/journal"
	"github.com/hazyhaar/domedit/locator"
	"github.com/hazyhaar/domedit/modes"
	"github.com/hazyhaar/domedit/overlay"
	"github.com/hazyhaar/domedit/selection"
	"github.com/hazyhaar/domedit/track"
	"github.com/hazyhaar/domedit/txn"
)

var (
	// ErrClosed reports use of a closed session.
	ErrClosed = errors.New("editor: session closed")
	// ErrNoSelection reports a style operation with nothing selected.
	ErrNoSelection = errors.New("editor: no selection")
)

// Config assembles a Session.
type Config struct {
	// Doc is the document under edit. Required.
	Doc dom.Document
	// Host is the isolation boundary. Required.
	Host Host
	// Surface is the overlay drawing device. Required.
	Surface overlay.Surface
	// Scheduler coalesces per-frame work. Nil starts an owned ~60Hz ticker.
	Scheduler frame.Scheduler
	// Policy is the input suppression table. Nil uses the default
	// (suppress everything page-bound).
	Policy input.Policy
	// MaxHistory and MergeWindow tune the transaction manager.
	MaxHistory  int
	MergeWindow time.Duration
	// Verify is the locator verification strictness.
	Verify locator.Verify
	// Journal, when set, persists committed transactions.
	Journal *journal.Store
	// IDs generates session/transaction identifiers.
	IDs    idgen.Generator
	Logger *slog.Logger
}

// Event is the session change notification consumed by the UI panel and
// the control surface.
type Event struct {
	Type      string `json:"type"`
	Mode      string `json:"mode"`
	UndoCount int    `json:"undo_count"`
	RedoCount int    `json:"redo_count"`
	TxnID     string `json:"txn_id,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Session is one live editor instance over one document.
type Session struct {
	id      string
	ids     idgen.Generator
	doc     dom.Document
	host    Host
	logger  *slog.Logger
	jstore  *journal.Store
	verify  locator.Verify
	ownTick *frame.Ticker

	engine     *selection.Engine
	renderer   *overlay.Renderer
	tracker    *track.Tracker
	controller *modes.Controller
	manager    *txn.Manager
	unsubTxn   func()

	mu       sync.Mutex
	selected dom.Node
	subs     map[int]func(Event)
	nextSub  int
	closed   bool
}

// New constructs the subsystems leaf-first and unwinds every already-built
// one in reverse order on any failure, leaving no partial state.
func New(cfg Config) (s *Session, err error) {
	if cfg.Doc == nil {
		return nil, fmt.Errorf("editor: new: nil document")
	}
	if cfg.Host == nil {
		return nil, fmt.Errorf("editor: new: nil host")
	}
	if cfg.Surface == nil {
		return nil, fmt.Errorf("editor: new: nil surface")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IDs == nil {
		cfg.IDs = idgen.Default
	}

	s = &Session{
		id:     "sess_" + cfg.IDs(),
		ids:    idgen.Prefixed("call_", cfg.IDs),
		doc:    cfg.Doc,
		host:   cfg.Host,
		logger: cfg.Logger,
		jstore: cfg.Journal,
		verify: cfg.Verify,
		subs:   make(map[int]func(Event)),
	}

	var built []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(built) - 1; i >= 0; i-- {
			built[i]()
		}
	}()

	sched := cfg.Scheduler
	if sched == nil {
		s.ownTick = frame.NewTicker(0)
		built = append(built, s.ownTick.Close)
		sched = s.ownTick
	}

	s.engine = selection.New(cfg.Doc, selection.Config{
		IsEditorUI: cfg.Host.IsEditorUI,
		Logger:     cfg.Logger,
	})

	s.renderer = overlay.New(overlay.Config{
		Surface:   cfg.Surface,
		Scheduler: sched,
		Logger:    cfg.Logger,
	})
	built = append(built, s.renderer.Close)

	s.tracker = track.New(track.Config{
		Doc:       cfg.Doc,
		Scheduler: sched,
		OnUpdate:  s.renderer.Apply,
		Logger:    cfg.Logger,
	})
	built = append(built, s.tracker.Close)

	s.controller = modes.New(modes.Config{
		Engine:     s.engine,
		Scheduler:  sched,
		Policy:     cfg.Policy,
		OnHover:    s.onHover,
		OnSelect:   s.onSelect,
		OnDeselect: s.onDeselect,
		Logger:     cfg.Logger,
	})
	built = append(built, s.controller.Close)

	s.manager = txn.NewManager(txn.Config{
		MaxHistory:  cfg.MaxHistory,
		MergeWindow: cfg.MergeWindow,
		Verify:      cfg.Verify,
		Logger:      cfg.Logger,
	})
	built = append(built, s.manager.Close)
	s.unsubTxn = s.manager.Subscribe(s.onTxnChange)

	cfg.Logger.Info("editor: session ready", "session", s.id)
	return s, nil
}

// ID is the session identifier.
func (s *Session) ID() string { return s.id }

// HandleInput feeds one raw event through the mode controller and returns
// the action the sensor must apply toward the page.
func (s *Session) HandleInput(ev input.Event) (input.Action, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return input.Pass, ErrClosed
	}
	return s.controller.HandleEvent(ev), nil
}

// SelectAt drives a discrete selection at a point, as the control surface
// and MCP tools do.
func (s *Session) SelectAt(x, y float64, alt bool) (dom.Node, error) {
	_, err := s.HandleInput(input.Event{
		Type:   input.PointerDown,
		X:      x,
		Y:      y,
		Button: input.ButtonLeft,
		Mods:   input.Modifiers{Alt: alt},
	})
	if err != nil {
		return nil, err
	}
	return s.Selected(), nil
}

// HoverAt moves the synthetic pointer.
func (s *Session) HoverAt(x, y float64) error {
	_, err := s.HandleInput(input.Event{Type: input.PointerMove, X: x, Y: y})
	return err
}

// Deselect leaves selecting mode, as Escape does.
func (s *Session) Deselect() error {
	_, err := s.HandleInput(input.Event{Type: input.KeyDown, Key: "Escape"})
	return err
}

// Selected returns the currently selected element, nil in hover mode.
func (s *Session) Selected() dom.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// SelectedLocator builds a locator for the current selection.
func (s *Session) SelectedLocator() (*locator.ElementLocator, error) {
	el := s.Selected()
	if el == nil {
		return nil, ErrNoSelection
	}
	return locator.Build(s.doc, el)
}

// Mode reports the controller state.
func (s *Session) Mode() modes.Mode { return s.controller.Mode() }

// BeginStyleEdit opens a live style edit against the current selection.
func (s *Session) BeginStyleEdit(property string) (*txn.Edit, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	el := s.selected
	s.mu.Unlock()
	if el == nil {
		return nil, ErrNoSelection
	}
	return s.manager.Begin(s.doc, el, property)
}

// SetStyle is the discrete begin-set-commit path used by the control
// surface: one property write against the current selection. A no-op edit
// returns (nil, nil).
func (s *Session) SetStyle(property, value string) (*txn.Transaction, error) {
	edit, err := s.BeginStyleEdit(property)
	if err != nil {
		return nil, err
	}
	if err := edit.Set(value); err != nil {
		return nil, err
	}
	return edit.Commit()
}

// Undo reverses the most recent transaction. (nil, nil) on empty history.
func (s *Session) Undo() (*txn.Transaction, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.mu.Unlock()
	return s.manager.Undo(s.doc)
}

// Redo reverses the most recent undo.
func (s *Session) Redo() (*txn.Transaction, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	s.mu.Unlock()
	return s.manager.Redo(s.doc)
}

// Clear drops history.
func (s *Session) Clear() { s.manager.Clear() }

// Counts returns the undo/redo stack lengths.
func (s *Session) Counts() (undo, redo int) { return s.manager.Counts() }

// LatestTransaction is the read accessor the commit/apply pathway packages
// from: the most recent undo-stack entry, nil when empty.
func (s *Session) LatestTransaction() *txn.Transaction { return s.manager.Latest() }

// History returns the undo stack, oldest first.
func (s *Session) History() []*txn.Transaction { return s.manager.History() }

// Subscribe registers an event listener and returns its unsubscribe.
func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// ForceSync recomputes tracked geometry immediately.
func (s *Session) ForceSync() { s.tracker.ForceSync() }

// DebugDump renders the session state for the debug endpoint.
func (s *Session) DebugDump() string {
	undo, redo := s.manager.Counts()
	var sel string
	if loc, err := s.SelectedLocator(); err == nil && len(loc.Selectors) > 0 {
		sel = loc.Selectors[0]
	}
	return litter.Sdump(struct {
		Session  string
		Mode     string
		Selected string
		Undo     int
		Redo     int
	}{s.id, s.Mode().String(), sel, undo, redo})
}

// Close disposes the session: reverse construction order, idempotent,
// further calls rejected with ErrClosed. Owned before the host tears down.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.selected = nil
	s.subs = map[int]func(Event){}
	s.mu.Unlock()

	if s.unsubTxn != nil {
		s.unsubTxn()
	}
	s.manager.Close()
	s.controller.Close()
	s.tracker.Close()
	s.renderer.Close()
	if s.ownTick != nil {
		s.ownTick.Close()
	}
	s.logger.Info("editor: session closed", "session", s.id)
	return nil
}

func (s *Session) onHover(el dom.Node) {
	s.tracker.SetTracked(track.SlotHover, el)
}

func (s *Session) onSelect(el dom.Node, mods input.Modifiers) {
	s.mu.Lock()
	s.selected = el
	s.mu.Unlock()
	s.tracker.SetTracked(track.SlotSelection, el)
	s.emit(Event{Type: "select"})
}

func (s *Session) onDeselect() {
	s.mu.Lock()
	s.selected = nil
	s.mu.Unlock()
	s.tracker.SetTracked(track.SlotSelection, nil)
	s.emit(Event{Type: "deselect"})
}

func (s *Session) onTxnChange(c txn.Change) {
	ev := Event{Type: string(c.Op), UndoCount: c.UndoCount, RedoCount: c.RedoCount}
	if c.Txn != nil {
		ev.TxnID = c.Txn.ID
	}
	if s.jstore != nil && (c.Op == txn.OpPush || c.Op == txn.OpMerge) && c.Txn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.jstore.Append(ctx, c.Txn); err != nil {
			s.logger.Error("editor: journal append", "txn", c.Txn.ID, "error", err)
			ev.Status = "journal append failed"
		}
		cancel()
	}
	s.emit(ev)
}

func (s *Session) emit(ev Event) {
	undo, redo := s.manager.Counts()
	if ev.UndoCount == 0 && ev.RedoCount == 0 {
		ev.UndoCount, ev.RedoCount = undo, redo
	}
	ev.Mode = s.Mode().String()
	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}
