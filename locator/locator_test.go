package locator

import (
	"errors"
	"testing"

	"github.com/hazyhaar/domedit/dom"
	"github.com/hazyhaar/domedit/dom/memdom"
)

const page = `<html><body>
<div class="toolbar" style="left:0px;top:0px;width:800px;height:50px">
  <button id="go" class="btn primary" style="left:10px;top:10px;width:80px;height:30px">Go</button>
  <button class="btn" style="left:100px;top:10px;width:80px;height:30px">Stop</button>
  <span style="left:200px;top:10px;width:40px;height:20px">hint</span>
  <span style="left:250px;top:10px;width:40px;height:20px">more</span>
</div>
<p data-testid="intro" style="left:0px;top:100px;width:400px;height:20px">Intro text</p>
</body></html>`

func mustNode(t *testing.T, d *memdom.Document, sel string) dom.Node {
	t.Helper()
	n, err := d.QueryOne(sel)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestSynthesizeIDFirst(t *testing.T) {
	d := memdom.MustParse(page)
	btn := mustNode(t, d, "#go")

	cands := Synthesize(btn, d.Root(), MaxCandidates)
	if len(cands) == 0 || cands[0] != "#go" {
		t.Fatalf("candidates = %v, want #go first", cands)
	}
	if len(cands) > MaxCandidates {
		t.Fatalf("%d candidates, cap is %d", len(cands), MaxCandidates)
	}
	// The unique class also qualifies.
	found := false
	for _, c := range cands {
		if c == ".primary" {
			found = true
		}
	}
	if !found {
		t.Fatalf("candidates = %v, want .primary among them", cands)
	}
}

func TestSynthesizeLikelyUniqueAttr(t *testing.T) {
	d := memdom.MustParse(page)
	p := mustNode(t, d, "[data-testid]")

	cands := Synthesize(p, d.Root(), MaxCandidates)
	if len(cands) == 0 || cands[0] != `[data-testid="intro"]` {
		t.Fatalf("candidates = %v, want the data-testid selector first", cands)
	}
}

func TestSynthesizeSkipsAmbiguous(t *testing.T) {
	d := memdom.MustParse(page)
	stop := mustNode(t, d, "button:nth-of-type(2)")

	// .btn matches both buttons, so it must not appear.
	for _, c := range Synthesize(stop, d.Root(), MaxCandidates) {
		if c == ".btn" || c == "button" {
			t.Fatalf("ambiguous candidate %q synthesized", c)
		}
	}
}

func TestSynthesizeStructuralFallback(t *testing.T) {
	d := memdom.MustParse(page)
	spans, err := d.Root().Query("span")
	if err != nil || len(spans) != 2 {
		t.Fatalf("span query: %v, %d matches", err, len(spans))
	}
	second := spans[1]

	cands := Synthesize(second, d.Root(), MaxCandidates)
	if len(cands) != 1 {
		t.Fatalf("candidates = %v, want the structural path only", cands)
	}
	want := "body > div:nth-of-type(1) > span:nth-of-type(2)"
	if cands[0] != want {
		t.Fatalf("structural path = %q, want %q", cands[0], want)
	}

	// And it resolves back to the same element.
	got, err := d.Root().Query(cands[0])
	if err != nil || len(got) != 1 || got[0] != second {
		t.Fatalf("structural path resolution: %v, %d matches", err, len(got))
	}
}

func TestBuildResolveRoundTrip(t *testing.T) {
	d := memdom.MustParse(page)
	btn := mustNode(t, d, "#go")

	loc, err := Build(d, btn)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Resolve(loc, d, ResolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got != btn {
		t.Fatal("resolved a different element")
	}
}

func TestResolveSurvivesRegeneration(t *testing.T) {
	d := memdom.MustParse(page)
	loc, err := Build(d, mustNode(t, d, "#go"))
	if err != nil {
		t.Fatal(err)
	}

	// A hot reload regenerates the DOM with the same shape.
	fresh := memdom.MustParse(page)
	got, err := Resolve(loc, fresh, ResolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got.ID() != "go" {
		t.Fatalf("resolved %q, want go", got.ID())
	}
}

func TestResolveUnresolvableAfterRemoval(t *testing.T) {
	d := memdom.MustParse(page)
	btn := mustNode(t, d, "#go")
	loc, err := Build(d, btn)
	if err != nil {
		t.Fatal(err)
	}

	d.Detach(btn)
	if _, err := Resolve(loc, d, ResolveOptions{}); !errors.Is(err, ErrUnresolvable) {
		t.Fatalf("err = %v, want ErrUnresolvable", err)
	}
}

func TestResolveFallsThroughFailedCandidates(t *testing.T) {
	d := memdom.MustParse(page)
	btn := mustNode(t, d, "#go")

	loc := &ElementLocator{
		Selectors: []string{
			"#gone",         // no match
			"button",        // ambiguous
			"bad::selector", // malformed, must not error
			"#go",           // the survivor
		},
		Fingerprint: NewFingerprint(btn),
	}
	got, err := Resolve(loc, d, ResolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got != btn {
		t.Fatal("fallthrough resolved a different element")
	}
}

func TestVerifyPolicies(t *testing.T) {
	d := memdom.MustParse(page)
	btn := mustNode(t, d, "#go")
	fp := NewFingerprint(btn)

	// Same tag, same id, changed classes and text.
	changed := memdom.MustParse(`<html><body>
<button id="go" class="danger" style="left:0px;top:0px;width:80px;height:30px">Halt</button>
</body></html>`)
	el := mustNode(t, changed, "#go")

	if !fp.Matches(el, VerifyTagID) {
		t.Fatal("VerifyTagID rejected a tag+id match")
	}
	if !fp.Matches(el, VerifyTag) {
		t.Fatal("VerifyTag rejected a tag match")
	}
	if fp.Matches(el, VerifyFull) {
		t.Fatal("VerifyFull accepted changed classes and text")
	}

	// Tag mismatch fails every policy.
	other := mustNode(t, d, "[data-testid]")
	if fp.Matches(other, VerifyTag) {
		t.Fatal("VerifyTag accepted a different tag")
	}
}

func TestResolveThroughShadowHost(t *testing.T) {
	d := memdom.MustParse(`<html><body>
<my-widget id="widget" style="left:0px;top:0px;width:300px;height:200px">
  <template shadowrootmode="open">
    <button class="inner" style="left:5px;top:5px;width:60px;height:24px">In</button>
  </template>
</my-widget>
</body></html>`)

	host := mustNode(t, d, "#widget")
	sr, ok := d.ShadowRoot(host)
	if !ok {
		t.Fatal("no shadow root")
	}
	inner, err := sr.Query(".inner")
	if err != nil || len(inner) != 1 {
		t.Fatalf("shadow query: %v", err)
	}

	loc, err := Build(d, inner[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(loc.HostChain) != 1 || loc.HostChain[0] != "#widget" {
		t.Fatalf("host chain = %v, want [#widget]", loc.HostChain)
	}

	got, err := Resolve(loc, d, ResolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got != inner[0] {
		t.Fatal("resolved a different shadow element")
	}
}

func TestShadowStructuralPathScopedToRoot(t *testing.T) {
	d := memdom.MustParse(`<html><body>
<my-widget id="widget" style="left:0px;top:0px;width:300px;height:200px">
  <template shadowrootmode="open">
    <div style="left:0px;top:0px;width:280px;height:180px">
      <span style="left:0px;top:0px;width:40px;height:16px">a</span>
      <span style="left:50px;top:0px;width:40px;height:16px">b</span>
    </div>
  </template>
</my-widget>
</body></html>`)

	host := mustNode(t, d, "#widget")
	sr, ok := d.ShadowRoot(host)
	if !ok {
		t.Fatal("no shadow root")
	}
	spans, err := sr.Query("span")
	if err != nil || len(spans) != 2 {
		t.Fatalf("shadow query: %v, %d matches", err, len(spans))
	}

	// An id-less, class-less shadow element still gets a structural
	// candidate, and the path is anchored inside the shadow scope rather
	// than walking out through the host.
	loc, err := Build(d, spans[1])
	if err != nil {
		t.Fatal(err)
	}
	if len(loc.Selectors) == 0 {
		t.Fatal("no candidates for shadow element")
	}
	want := "div:nth-of-type(1) > span:nth-of-type(2)"
	last := loc.Selectors[len(loc.Selectors)-1]
	if last != want {
		t.Fatalf("structural candidate = %q, want %q", last, want)
	}

	got, err := Resolve(loc, d, ResolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got != spans[1] {
		t.Fatal("resolved a different shadow element")
	}
}

func TestResolveThroughFrame(t *testing.T) {
	outer := memdom.MustParse(`<html><body>
<iframe id="embed" style="left:0px;top:0px;width:400px;height:300px"></iframe>
</body></html>`)
	inner := memdom.MustParse(`<html><body>
<button id="deep" style="left:5px;top:5px;width:50px;height:20px">Deep</button>
</body></html>`)
	host := mustNode(t, outer, "#embed")
	if err := outer.SetFrameDocument(host, inner); err != nil {
		t.Fatal(err)
	}

	deep := mustNode(t, inner, "#deep")
	loc, err := Build(inner, deep)
	if err != nil {
		t.Fatal(err)
	}
	if len(loc.FrameChain) != 1 || loc.FrameChain[0] != "#embed" {
		t.Fatalf("frame chain = %v, want [#embed]", loc.FrameChain)
	}

	got, err := Resolve(loc, outer, ResolveOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got != dom.Node(deep) {
		t.Fatal("resolved a different framed element")
	}
}

func TestKeyStableAndDistinct(t *testing.T) {
	d := memdom.MustParse(page)
	a, _ := Build(d, mustNode(t, d, "#go"))
	b, _ := Build(d, mustNode(t, d, "#go"))
	c, _ := Build(d, mustNode(t, d, "[data-testid]"))

	if a.Key() != b.Key() {
		t.Fatal("same element produced different keys")
	}
	if a.Key() == c.Key() {
		t.Fatal("distinct elements share a key")
	}
}
