package livedom

import (
	"fmt"

	"github.com/hazyhaar/domedit/overlay"
)

// CanvasSurface draws into a fixed full-viewport canvas injected by the
// page runtime. The canvas container is tagged as editor UI so the
// sensor never suppresses or reports through it.
type CanvasSurface struct {
	p *Page
}

var _ overlay.Surface = (*CanvasSurface)(nil)

// NewCanvasSurface installs the overlay canvas into the page.
func NewCanvasSurface(p *Page) (*CanvasSurface, error) {
	if _, err := p.eval(`() => window.__domedit.surfaceInit()`); err != nil {
		return nil, fmt.Errorf("livedom: install surface: %w", err)
	}
	return &CanvasSurface{p: p}, nil
}

func (s *CanvasSurface) Size() (w, h float64) {
	vp := s.p.Viewport()
	return vp.W, vp.H
}

func (s *CanvasSurface) Scale() float64 { return s.p.Scale() }

func (s *CanvasSurface) SetBackingSize(pxW, pxH int, scale float64) error {
	v, err := s.p.eval(`(w, h, scale) => window.__domedit.surfaceBacking(w, h, scale)`, pxW, pxH, scale)
	if err != nil {
		return fmt.Errorf("livedom: backing size: %w", err)
	}
	if !v.Bool() {
		return fmt.Errorf("livedom: backing size: surface not installed")
	}
	return nil
}

func (s *CanvasSurface) Clear(w, h float64) {
	if _, err := s.p.eval(`(w, h) => window.__domedit.surfaceClear(w, h)`, w, h); err != nil {
		s.p.log.Warn("livedom: surface clear", "error", err)
	}
}

func (s *CanvasSurface) StrokeRect(x, y, w, h float64, color string, width float64) {
	_, err := s.p.eval(
		`(x, y, w, h, color, width) => window.__domedit.surfaceStrokeRect(x, y, w, h, color, width)`,
		x, y, w, h, color, width,
	)
	if err != nil {
		s.p.log.Warn("livedom: surface stroke", "error", err)
	}
}

func (s *CanvasSurface) FillRect(x, y, w, h float64, color string) {
	_, err := s.p.eval(
		`(x, y, w, h, color) => window.__domedit.surfaceFillRect(x, y, w, h, color)`,
		x, y, w, h, color,
	)
	if err != nil {
		s.p.log.Warn("livedom: surface fill", "error", err)
	}
}
