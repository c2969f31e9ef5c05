// Package frame provides paint-cycle scheduling. Every expensive read in the
// engine (hover hit-testing, geometry recomputation, rendering) is coalesced
// to at most one execution per frame through a Pending token bound to a
// Scheduler: the wall-clock Ticker in live use, the Manual pump in tests.
package frame

import (
	"sync"
	"time"
)

// Scheduler runs callbacks on the next frame. Request returns a cancel
// function; cancelling after the callback ran is a no-op.
type Scheduler interface {
	Request(fn func()) (cancel func())
}

// Pending is the one-outstanding-callback token. Schedule arms it if idle
// and otherwise just replaces the callback, so only the latest work runs
// when the frame arrives.
type Pending struct {
	mu     sync.Mutex
	sched  Scheduler
	fn     func()
	cancel func()
	armed  bool
}

// NewPending binds a token to a scheduler.
func NewPending(s Scheduler) *Pending {
	return &Pending{sched: s}
}

// Schedule queues fn for the next frame. While already armed it only
// replaces the stored callback: intermediate work is coalesced away.
func (p *Pending) Schedule(fn func()) {
	p.mu.Lock()
	p.fn = fn
	if p.armed {
		p.mu.Unlock()
		return
	}
	p.armed = true
	p.mu.Unlock()

	cancel := p.sched.Request(p.fire)
	p.mu.Lock()
	if p.armed {
		p.cancel = cancel
	}
	p.mu.Unlock()
}

func (p *Pending) fire() {
	p.mu.Lock()
	fn := p.fn
	p.fn = nil
	p.cancel = nil
	p.armed = false
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Cancel drops any armed callback. Safe to call repeatedly and after close.
func (p *Pending) Cancel() {
	p.mu.Lock()
	cancel := p.cancel
	p.fn = nil
	p.cancel = nil
	p.armed = false
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Ticker is the wall-clock Scheduler: one frame per interval, ~60Hz by
// default.
type Ticker struct {
	mu     sync.Mutex
	queue  []*tickEntry
	stop   chan struct{}
	closed bool
}

type tickEntry struct {
	fn        func()
	cancelled bool
}

// NewTicker starts a frame loop with the given interval. interval <= 0
// selects ~60Hz.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	t := &Ticker{stop: make(chan struct{})}
	go t.loop(interval)
	return t
}

func (t *Ticker) loop(interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-tick.C:
			t.runFrame()
		}
	}
}

func (t *Ticker) runFrame() {
	t.mu.Lock()
	queue := t.queue
	t.queue = nil
	t.mu.Unlock()
	for _, e := range queue {
		if !e.cancelled {
			e.fn()
		}
	}
}

// Request queues fn for the next tick.
func (t *Ticker) Request(fn func()) func() {
	e := &tickEntry{fn: fn}
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return func() {}
	}
	t.queue = append(t.queue, e)
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		e.cancelled = true
		t.mu.Unlock()
	}
}

// Close stops the frame loop. Queued callbacks are dropped.
func (t *Ticker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.queue = nil
	t.mu.Unlock()
	close(t.stop)
}

// Manual is the test Scheduler: frames fire only when Pump is called.
type Manual struct {
	mu    sync.Mutex
	queue []*tickEntry
}

// NewManual returns an idle manual pump.
func NewManual() *Manual { return &Manual{} }

// Request queues fn for the next Pump.
func (m *Manual) Request(fn func()) func() {
	e := &tickEntry{fn: fn}
	m.mu.Lock()
	m.queue = append(m.queue, e)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		e.cancelled = true
		m.mu.Unlock()
	}
}

// Pump runs one frame and reports how many callbacks ran. Callbacks queued
// during the frame wait for the next Pump.
func (m *Manual) Pump() int {
	m.mu.Lock()
	queue := m.queue
	m.queue = nil
	m.mu.Unlock()
	ran := 0
	for _, e := range queue {
		if !e.cancelled {
			e.fn()
			ran++
		}
	}
	return ran
}

// PumpAll pumps until no callbacks remain, returning the total run.
func (m *Manual) PumpAll() int {
	total := 0
	for {
		n := m.Pump()
		if n == 0 {
			return total
		}
		total += n
	}
}
