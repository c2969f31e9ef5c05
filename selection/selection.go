// Package selection turns raw hit-testing into "the element a human would
// call a component". The full scoring pass (Pick) runs only on discrete
// selection actions; hover highlighting uses the cheap topmost-element fast
// path (Hit). Heuristics are purely structural and visual.
package selection

import (
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/input"
)

// Candidate-pool bounds. Raw hits under the point, ancestors walked per hit,
// and the total pool are all capped so one pick stays cheap on deep trees.
const (
	maxHits      = 8
	maxAncestors = 6
	maxPool      = 60
)

// Config tunes an Engine. Zero value is usable.
type Config struct {
	// IsEditorUI excludes the editor's own isolated surface from candidate
	// pools. Nil means nothing is excluded.
	IsEditorUI func(dom.Node) bool
	// MinTapArea is the minimum usable tap-target area in px². Smaller
	// candidates are penalized. Default 24*24.
	MinTapArea float64
	// ViewportCover is the viewport-area fraction above which a candidate
	// is "probably not what the user means". Default 0.85.
	ViewportCover float64
	Logger        *slog.Logger
}

func (c *Config) defaults() {
	if c.MinTapArea <= 0 {
		c.MinTapArea = 24 * 24
	}
	if c.ViewportCover <= 0 {
		c.ViewportCover = 0.85
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine scores DOM candidates under a point.
type Engine struct {
	doc dom.Document
	cfg Config
}

// New builds an Engine over doc.
func New(doc dom.Document, cfg Config) *Engine {
	cfg.defaults()
	return &Engine{doc: doc, cfg: cfg}
}

// Hit is the fast path: the single topmost selectable element under the
// point, no scoring. Editor-UI hits report nil (the pointer is "off" the
// page).
func (e *Engine) Hit(x, y float64) dom.Node {
	el := dom.TopElementAt(e.doc, x, y)
	if el == nil || e.excluded(el) {
		return nil
	}
	return el
}

// Pick is the full heuristic path: gather candidates under the point, score
// them, return the best visible one or nil. Alt requests drill-up from the
// best candidate to its first non-wrapper ancestor. A nil result leaves the
// caller's state unaffected.
func (e *Engine) Pick(x, y float64, mods input.Modifiers) dom.Node {
	pool := e.collect(x, y)
	best := e.best(pool)
	if best == nil {
		return nil
	}
	if mods.Alt {
		best = e.drillUp(best)
	}
	return best
}

type candidate struct {
	el    dom.Node
	depth int
}

// collect gathers the topmost hits and a bounded ancestor walk above each,
// deduplicated, editor UI excluded entirely.
func (e *Engine) collect(x, y float64) []candidate {
	seen := mapset.NewThreadUnsafeSet[dom.Node]()
	var pool []candidate
	for _, hit := range e.doc.ElementsAt(x, y, maxHits) {
		el := hit
		for hop := 0; el != nil && hop <= maxAncestors; hop++ {
			if len(pool) >= maxPool {
				return pool
			}
			if !e.excluded(el) && seen.Add(el) {
				pool = append(pool, candidate{el: el, depth: depth(el)})
			}
			el = el.Parent()
		}
	}
	return pool
}

func (e *Engine) best(pool []candidate) dom.Node {
	var best dom.Node
	bestScore := 0
	bestDepth := -1
	for _, c := range pool {
		if !visible(c.el) {
			continue
		}
		s := e.score(c.el)
		// Ties favor the deepest candidate.
		if best == nil || s > bestScore || (s == bestScore && c.depth > bestDepth) {
			best, bestScore, bestDepth = c.el, s, c.depth
		}
	}
	return best
}

// drillUp walks to the first ancestor that is not itself a pure wrapper.
func (e *Engine) drillUp(el dom.Node) dom.Node {
	for p := el.Parent(); p != nil; p = p.Parent() {
		if e.excluded(p) || !visible(p) {
			break
		}
		if !isWrapper(p) {
			return p
		}
	}
	return el
}

func (e *Engine) excluded(el dom.Node) bool {
	return e.cfg.IsEditorUI != nil && e.cfg.IsEditorUI(el)
}

func depth(el dom.Node) int {
	d := 0
	for p := el.Parent(); p != nil; p = p.Parent() {
		d++
	}
	return d
}
