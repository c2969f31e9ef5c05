package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/domedit/apply"
	"github.com/hazyhaar/domedit/ctl"
	"github.com/hazyhaar/domedit/dom/livedom"
	"github.com/hazyhaar/domedit/editor"
	"github.com/hazyhaar/domedit/input"
	"github.com/hazyhaar/domedit/journal"
)

func main() {
	configPath := flag.String("config", "domedit.yaml", "configuration file")
	pageURL := flag.String("url", "", "page to open (overrides config)")
	mcpStdio := flag.Bool("mcp", false, "serve MCP tools on stdio")
	logLevel := flag.String("log-level", env("LOG_LEVEL", "info"), "debug, info, warn, error")
	flag.Parse()

	var lvl slog.Level
	switch *logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// Logs go to stderr: stdout may carry the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := editor.LoadConfigFile(*configPath)
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	if *pageURL != "" {
		cfg.Browser.URL = *pageURL
	}
	if cfg.Browser.URL == "" {
		slog.Error("no page url: set browser.url or pass -url")
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger, *mcpStdio); err != nil {
		slog.Error("domedit", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *editor.FileConfig, logger *slog.Logger, mcpStdio bool) error {
	// Browser and page.
	browser := livedom.NewBrowser(livedom.BrowserConfig{
		RemoteURL: cfg.Browser.Remote,
		Headless:  cfg.Browser.Headless,
		Logger:    logger,
	})
	if err := browser.Connect(ctx); err != nil {
		return err
	}
	defer browser.Close()

	rodPage, err := browser.OpenPage(ctx, cfg.Browser.URL)
	if err != nil {
		return err
	}

	var sess *editor.Session
	page, err := livedom.Attach(ctx, rodPage, livedom.PageConfig{
		OnInput: func(ev input.Event) {
			if sess == nil {
				return
			}
			if _, err := sess.HandleInput(ev); err != nil {
				logger.Warn("input", "type", ev.Type.String(), "error", err)
			}
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer page.Close()

	surface, err := livedom.NewCanvasSurface(page)
	if err != nil {
		return err
	}

	// Journal (optional).
	var store *journal.Store
	if cfg.Journal.Path != "" {
		store, err = journal.Open(cfg.Journal.Path, journal.Config{
			MaxAttempts: cfg.Apply.MaxAttempts,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		defer store.Close()
	}

	// Session.
	policy := input.DefaultPolicy()
	sess, err = editor.New(editor.Config{
		Doc:         page,
		Host:        page,
		Surface:     surface,
		Policy:      policy,
		MaxHistory:  cfg.History.Max,
		MergeWindow: cfg.MergeWindow(),
		Journal:     store,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	// Push the suppression table page-side so capture listeners act
	// without a round trip.
	if err := page.SetPolicy(policy); err != nil {
		return err
	}

	// Outbox drain toward the apply webhook.
	if store != nil && cfg.Apply.WebhookURL != "" {
		webhook, err := apply.NewWebhook(apply.WebhookConfig{
			URL:         cfg.Apply.WebhookURL,
			Timeout:     time.Duration(cfg.Apply.TimeoutMS) * time.Millisecond,
			MaxAttempts: cfg.Apply.MaxAttempts,
			Logger:      logger,
		})
		if err != nil {
			return err
		}
		runner := apply.NewRunner(apply.RunnerConfig{
			Store:      store,
			Packager:   apply.NewPackager(nil),
			Dispatcher: webhook,
			Logger:     logger,
		})
		go func() {
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("apply runner", "error", err)
			}
		}()
	}

	// MCP stdio transport.
	if mcpStdio {
		srv := mcp.NewServer(&mcp.Implementation{
			Name:    "domedit",
			Version: "1.0.0",
		}, nil)
		sess.RegisterMCP(srv)
		go func() {
			if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("mcp stdio", "error", err)
			}
		}()
	}

	// Control surface.
	router := ctl.NewRouter(sess, ctl.Config{
		Journal:    store,
		BearerHash: cfg.Ctl.BearerHash,
		Logger:     logger,
	})
	srv := &http.Server{
		Addr:              cfg.Ctl.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		slog.Info("ctl listening", "addr", cfg.Ctl.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("ctl server", "error", err)
		}
	}()

	slog.Info("editing", "url", cfg.Browser.URL, "session", sess.ID())

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ctl shutdown: %w", err)
	}
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
