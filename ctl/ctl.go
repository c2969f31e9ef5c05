// Package ctl is the HTTP control surface over an editor session: the
// panel/toolbar boundary. Status, history, undo/redo/select/style
// endpoints, and a WebSocket event stream. Resolution failures surface as
// 409 status text, never as crashes.
package ctl

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/domedit/editor"
	"github.com/hazyhaar/domedit/journal"
	"github.com/hazyhaar/domedit/locator"
	"github.com/hazyhaar/domedit/txn"
)

// Config for the router.
type Config struct {
	// Journal enables the persisted-history endpoint when set.
	Journal *journal.Store
	// BearerHash is a bcrypt hash of the expected bearer token. Empty
	// disables auth. /health is always open.
	BearerHash string
	Logger     *slog.Logger
}

// NewRouter builds the control surface over sess.
func NewRouter(sess *editor.Session, cfg Config) chi.Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := &handlers{sess: sess, cfg: cfg, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if cfg.BearerHash != "" {
			r.Use(bearerAuth(cfg.BearerHash, cfg.Logger))
		}
		r.Get("/api/status", h.status)
		r.Get("/api/history", h.history)
		r.Get("/api/transactions/latest", h.latest)
		r.Get("/api/debug", h.debug)
		r.Get("/api/events", h.events)
		r.Post("/api/select", h.selectAt)
		r.Post("/api/hover", h.hoverAt)
		r.Post("/api/style", h.setStyle)
		r.Post("/api/undo", h.undo)
		r.Post("/api/redo", h.redo)
		r.Post("/api/clear", h.clear)
	})
	return r
}

type handlers struct {
	sess   *editor.Session
	cfg    Config
	logger *slog.Logger
}

func (h *handlers) status(w http.ResponseWriter, _ *http.Request) {
	undo, redo := h.sess.Counts()
	st := map[string]any{
		"session":    h.sess.ID(),
		"mode":       h.sess.Mode().String(),
		"undo_count": undo,
		"redo_count": redo,
	}
	if loc, err := h.sess.SelectedLocator(); err == nil {
		st["selected"] = loc
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Journal != nil && r.URL.Query().Get("persisted") == "1" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		list, err := h.cfg.Journal.List(r.Context(), limit)
		if err != nil {
			h.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	writeJSON(w, http.StatusOK, h.sess.History())
}

func (h *handlers) latest(w http.ResponseWriter, _ *http.Request) {
	t := h.sess.LatestTransaction()
	if t == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no transactions"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) debug(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(h.sess.DebugDump()))
}

func (h *handlers) selectAt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X   float64 `json:"x"`
		Y   float64 `json:"y"`
		Alt bool    `json:"alt"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	el, err := h.sess.SelectAt(req.X, req.Y, req.Alt)
	if err != nil {
		h.fail(w, err)
		return
	}
	if el == nil {
		writeJSON(w, http.StatusOK, map[string]any{"selected": false})
		return
	}
	loc, err := h.sess.SelectedLocator()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"selected": true, "locator": loc})
}

func (h *handlers) hoverAt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.sess.HoverAt(req.X, req.Y); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) setStyle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Property string `json:"property"`
		Value    string `json:"value"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Property == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "property is required"})
		return
	}
	t, err := h.sess.SetStyle(req.Property, req.Value)
	if err != nil {
		h.fail(w, err)
		return
	}
	if t == nil {
		writeJSON(w, http.StatusOK, map[string]any{"recorded": false})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"recorded": true, "txn": t})
}

func (h *handlers) undo(w http.ResponseWriter, _ *http.Request) {
	t, err := h.sess.Undo()
	h.histResult(w, t, err)
}

func (h *handlers) redo(w http.ResponseWriter, _ *http.Request) {
	t, err := h.sess.Redo()
	h.histResult(w, t, err)
}

func (h *handlers) histResult(w http.ResponseWriter, t *txn.Transaction, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	undo, redo := h.sess.Counts()
	writeJSON(w, http.StatusOK, map[string]any{
		"txn":        t,
		"undo_count": undo,
		"redo_count": redo,
	})
}

func (h *handlers) clear(w http.ResponseWriter, _ *http.Request) {
	h.sess.Clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// fail maps engine errors to status codes: resolution failures are a
// conflict with the live document, not a server fault.
func (h *handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, locator.ErrUnresolvable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, editor.ErrNoSelection):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, editor.ErrClosed), errors.Is(err, txn.ErrClosed):
		writeJSON(w, http.StatusGone, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("ctl: request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}
