// Package livedom drives a real page in Chrome over the DevTools
// protocol and exposes it through the dom interfaces. Element handles
// live in a page-side registry; Go keeps integer ids and resolves
// everything through small Eval round-trips.
package livedom

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserConfig controls how the Chrome instance is obtained.
type BrowserConfig struct {
	// RemoteURL attaches to an already-running Chrome over its DevTools
	// websocket instead of launching one.
	RemoteURL string

	// Headless launches Chrome without a window. Ignored when RemoteURL
	// is set.
	Headless bool

	// Stealth applies the stealth evasions to new pages.
	Stealth bool

	Logger *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser owns the Chrome connection and the launcher when one was
// started locally.
type Browser struct {
	cfg BrowserConfig

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewBrowser prepares a manager. Chrome starts on Connect.
func NewBrowser(cfg BrowserConfig) *Browser {
	cfg.defaults()
	return &Browser{cfg: cfg}
}

// Connect launches or attaches to Chrome.
func (b *Browser) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("livedom: browser is closed")
	}
	if b.browser != nil {
		return nil
	}

	log := b.cfg.Logger

	var wsURL string
	if b.cfg.RemoteURL != "" {
		wsURL = b.cfg.RemoteURL
		log.Info("livedom: connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().Headless(b.cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("livedom: launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		log.Info("livedom: launched chrome", "url", wsURL, "headless", b.cfg.Headless)
	}

	br := rod.New().Context(ctx).ControlURL(wsURL)
	if err := br.Connect(); err != nil {
		return fmt.Errorf("livedom: connect: %w", err)
	}
	b.browser = br
	return nil
}

// OpenPage creates a tab and navigates it to url.
func (b *Browser) OpenPage(ctx context.Context, url string) (*rod.Page, error) {
	b.mu.Lock()
	br := b.browser
	b.mu.Unlock()
	if br == nil {
		return nil, fmt.Errorf("livedom: not connected")
	}

	var page *rod.Page
	var err error
	if b.cfg.Stealth {
		page, err = stealth.Page(br)
	} else {
		page, err = br.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("livedom: create page: %w", err)
	}

	if err := page.Context(ctx).Navigate(url); err != nil {
		page.Close()
		return nil, fmt.Errorf("livedom: navigate %s: %w", url, err)
	}
	if err := page.Context(ctx).WaitLoad(); err != nil {
		b.cfg.Logger.Warn("livedom: wait load", "url", url, "error", err)
	}
	return page, nil
}

// Close kills the local Chrome when one was launched.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return err
}
