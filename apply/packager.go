// Package apply packages committed transactions into requests for the
// external code-modification agent and delivers them. The core exposes only
// the latest-transaction accessor; everything here is boundary work:
// sanitizing captured HTML, rendering agent context as Markdown, webhook
// dispatch with bounded retries, and the outbox drain loop.
package apply

import (
	"fmt"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/domedit/idgen"
	"github.com/hazyhaar/domedit/locator"
	"github.com/hazyhaar/domedit/txn"
)

// Request is the packaged form of one transaction, the wire value handed to
// the agent.
type Request struct {
	ID          string              `json:"id"`
	TxnID       string              `json:"txn_id"`
	Kind        txn.Kind            `json:"kind"`
	Selectors   []string            `json:"selectors"`
	Fingerprint locator.Fingerprint `json:"fingerprint"`
	Before      map[string]string   `json:"before"`
	After       map[string]string   `json:"after"`
	Merged      bool                `json:"merged"`
	// Context is the target's sanitized outer HTML rendered to Markdown.
	Context   string    `json:"context,omitempty"`
	EditedAt  time.Time `json:"edited_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Packager assembles Requests from transactions.
type Packager struct {
	sanitizer *bluemonday.Policy
	md        *converter.Converter
	ids       idgen.Generator
	now       func() time.Time
}

// NewPackager builds a packager with UGC sanitization and a CommonMark
// renderer.
func NewPackager(ids idgen.Generator) *Packager {
	if ids == nil {
		ids = idgen.Prefixed("req_", idgen.UUIDv7())
	}
	return &Packager{
		sanitizer: bluemonday.UGCPolicy(),
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		ids: ids,
		now: time.Now,
	}
}

// Package assembles the request for t. HTML context that fails to render
// degrades to the sanitized HTML itself; the request never fails over
// context alone.
func (p *Packager) Package(t *txn.Transaction) (*Request, error) {
	if t == nil {
		return nil, fmt.Errorf("apply: package: nil transaction")
	}
	if t.Target == nil {
		return nil, fmt.Errorf("apply: package %s: no target locator", t.ID)
	}
	req := &Request{
		ID:          p.ids(),
		TxnID:       t.ID,
		Kind:        t.Kind,
		Selectors:   append([]string(nil), t.Target.Selectors...),
		Fingerprint: t.Target.Fingerprint,
		Before:      t.Before.Style,
		After:       t.After.Style,
		Merged:      t.Merged,
		EditedAt:    t.CreatedAt,
		CreatedAt:   p.now(),
	}
	if t.Before.HTML != "" {
		clean := p.sanitizer.Sanitize(t.Before.HTML)
		md, err := p.md.ConvertString(clean)
		if err != nil {
			req.Context = clean
		} else {
			req.Context = md
		}
	}
	return req, nil
}
