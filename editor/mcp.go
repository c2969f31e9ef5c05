package editor

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domedit/kit"
	"github.com/hazyhaar/domedit/txn"
)

// instrument wraps a tool endpoint with the shared middleware chain:
// request/session tagging on the context, then failure logging.
func (s *Session) instrument(endpoint kit.Endpoint) kit.Endpoint {
	tag := func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			ctx = kit.WithSessionID(ctx, s.id)
			ctx = kit.WithRequestID(ctx, s.ids())
			return next(ctx, req)
		}
	}
	logged := func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			resp, err := next(ctx, req)
			if err != nil {
				s.logger.Warn("editor: tool call failed",
					"transport", kit.GetTransport(ctx),
					"request", kit.GetRequestID(ctx),
					"error", err)
			}
			return resp, err
		}
	}
	return kit.Chain(tag, logged)(endpoint)
}

// RegisterMCP registers the editor tools on an MCP server, giving an
// external agent the same surface the HTTP panel has.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	s.registerSelect(srv)
	s.registerSetStyle(srv)
	s.registerUndo(srv)
	s.registerRedo(srv)
	s.registerHistory(srv)
	s.registerLatest(srv)
	s.registerStatus(srv)
	s.registerClear(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

type txnSummary struct {
	ID     string            `json:"id"`
	Kind   txn.Kind          `json:"kind"`
	Target []string          `json:"target_selectors"`
	Before map[string]string `json:"before"`
	After  map[string]string `json:"after"`
	Merged bool              `json:"merged"`
}

func summarize(t *txn.Transaction) *txnSummary {
	if t == nil {
		return nil
	}
	return &txnSummary{
		ID:     t.ID,
		Kind:   t.Kind,
		Target: t.Target.Selectors,
		Before: t.Before.Style,
		After:  t.After.Style,
		Merged: t.Merged,
	}
}

func (s *Session) registerSelect(srv *mcp.Server) {
	type req struct {
		X   float64 `json:"x"`
		Y   float64 `json:"y"`
		Alt bool    `json:"alt"`
	}

	tool := &mcp.Tool{
		Name:        "domedit_select",
		Description: "Select the element under a viewport point",
		InputSchema: inputSchema(map[string]any{
			"x":   map[string]any{"type": "number", "description": "Viewport X in CSS px"},
			"y":   map[string]any{"type": "number", "description": "Viewport Y in CSS px"},
			"alt": map[string]any{"type": "boolean", "description": "Drill up to the first non-wrapper ancestor"},
		}, []string{"x", "y"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		el, err := s.SelectAt(p.X, p.Y, p.Alt)
		if err != nil {
			return nil, err
		}
		if el == nil {
			return map[string]any{"selected": false}, nil
		}
		loc, err := s.SelectedLocator()
		if err != nil {
			return nil, err
		}
		return map[string]any{"selected": true, "locator": loc}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.instrument(endpoint), kit.DecodeJSONArgs[req])
}

func (s *Session) registerSetStyle(srv *mcp.Server) {
	type req struct {
		Property string `json:"property"`
		Value    string `json:"value"`
	}

	tool := &mcp.Tool{
		Name:        "domedit_set_style",
		Description: "Write one style property on the current selection and journal the edit",
		InputSchema: inputSchema(map[string]any{
			"property": map[string]any{"type": "string", "description": "CSS property name"},
			"value":    map[string]any{"type": "string", "description": "CSS value"},
		}, []string{"property", "value"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		t, err := s.SetStyle(p.Property, p.Value)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return map[string]any{"recorded": false}, nil
		}
		return map[string]any{"recorded": true, "txn": summarize(t)}, nil
	}

	kit.RegisterMCPTool(srv, tool, s.instrument(endpoint), kit.DecodeJSONArgs[req])
}

func (s *Session) registerUndo(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domedit_undo",
		Description: "Undo the most recent edit",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		t, err := s.Undo()
		if err != nil {
			return nil, err
		}
		undo, redo := s.Counts()
		return map[string]any{"txn": summarize(t), "undo_count": undo, "redo_count": redo}, nil
	}
	kit.RegisterMCPTool(srv, tool, s.instrument(endpoint), decodeEmpty)
}

func (s *Session) registerRedo(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domedit_redo",
		Description: "Redo the most recently undone edit",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		t, err := s.Redo()
		if err != nil {
			return nil, err
		}
		undo, redo := s.Counts()
		return map[string]any{"txn": summarize(t), "undo_count": undo, "redo_count": redo}, nil
	}
	kit.RegisterMCPTool(srv, tool, s.instrument(endpoint), decodeEmpty)
}

func (s *Session) registerHistory(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domedit_history",
		Description: "List the undo stack, oldest first",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		hist := s.History()
		out := make([]*txnSummary, len(hist))
		for i, t := range hist {
			out[i] = summarize(t)
		}
		return out, nil
	}
	kit.RegisterMCPTool(srv, tool, s.instrument(endpoint), decodeEmpty)
}

func (s *Session) registerLatest(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domedit_latest",
		Description: "Return the most recent committed transaction in full",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		return s.LatestTransaction(), nil
	}
	kit.RegisterMCPTool(srv, tool, s.instrument(endpoint), decodeEmpty)
}

func (s *Session) registerStatus(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domedit_status",
		Description: "Report mode, selection and history counts",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		undo, redo := s.Counts()
		st := map[string]any{
			"session":    s.ID(),
			"mode":       s.Mode().String(),
			"undo_count": undo,
			"redo_count": redo,
		}
		if loc, err := s.SelectedLocator(); err == nil {
			st["selected"] = loc
		}
		return st, nil
	}
	kit.RegisterMCPTool(srv, tool, s.instrument(endpoint), decodeEmpty)
}

func (s *Session) registerClear(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "domedit_clear",
		Description: "Drop the undo and redo history",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	endpoint := func(ctx context.Context, _ any) (any, error) {
		s.Clear()
		return map[string]any{"cleared": true}, nil
	}
	kit.RegisterMCPTool(srv, tool, s.instrument(endpoint), decodeEmpty)
}

func decodeEmpty(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	return &kit.MCPDecodeResult{Request: nil}, nil
}
