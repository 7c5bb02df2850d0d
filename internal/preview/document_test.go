package preview

import (
	"strings"
	"testing"

	"github.com/starford/jstcode/internal/bundler"
)

func TestHostDocument(t *testing.T) {
	doc, err := HostDocument("My App", `console.log("</script><b>x")`, "https://esm.sh")
	if err != nil {
		t.Fatalf("HostDocument: %v", err)
	}
	s := string(doc)
	for _, want := range []string{
		"<title>My App</title>",
		`<div id="root"></div>`,
		"window.onerror",
		"unhandledrejection",
		"parent.postMessage",
		"__previewHostError",
		"react@18",
		"react-dom@18",
		`type="module"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("host document missing %q", want)
		}
	}
	if strings.Contains(s, "</script><b>x") {
		t.Error("bundle text was not escaped inside the module script")
	}
}

func TestRenderMarkdownPage(t *testing.T) {
	src := "---\ntitle: Notes\ntags: [a]\n---\n# Heading\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"
	doc, err := RenderMarkdownPage(src, "Fallback")
	if err != nil {
		t.Fatalf("RenderMarkdownPage: %v", err)
	}
	s := string(doc)
	if !strings.Contains(s, "<title>Notes</title>") {
		t.Errorf("front matter title not used:\n%s", s)
	}
	if !strings.Contains(s, "<h1>Heading</h1>") {
		t.Errorf("heading not rendered:\n%s", s)
	}
	if !strings.Contains(s, "<table>") {
		t.Errorf("GFM table not rendered:\n%s", s)
	}
	if strings.Contains(s, "tags:") {
		t.Errorf("front matter leaked into body:\n%s", s)
	}
}

func TestRenderMarkdownPageWithoutFrontMatter(t *testing.T) {
	doc, err := RenderMarkdownPage("---not front matter\n\ntext", "Fallback")
	if err != nil {
		t.Fatalf("RenderMarkdownPage: %v", err)
	}
	if !strings.Contains(string(doc), "<title>Fallback</title>") {
		t.Errorf("fallback title not used:\n%s", doc)
	}
}

func TestSplitFrontMatter(t *testing.T) {
	fm, body := splitFrontMatter("---\ntitle: x\n---\nbody")
	if fm["title"] != "x" || body != "body" {
		t.Errorf("got %v, %q", fm, body)
	}
	fm, body = splitFrontMatter("---\ntitle: [unclosed\n---\nbody")
	if fm != nil || !strings.HasPrefix(body, "---") {
		t.Errorf("malformed front matter: got %v, %q", fm, body)
	}
}

func TestPagesDocument(t *testing.T) {
	res := bundler.Result{
		OK:     true,
		Format: bundler.FormatPages,
		Entry:  "index.html",
		Pages: map[string]string{
			"index.html": `<html><head><link rel="stylesheet" href="style.css"></head><body><a href="about.html">About</a><script src="./app.js"></script></body></html>`,
			"about.html": `<html><head></head><body>About</body></html>`,
			"notes.md":   "# Notes",
		},
		Assets: map[string]string{
			"style.css": "body { color: red; }",
			"app.js":    "console.log('hi')",
		},
	}
	doc, err := PagesDocument(res, "Site")
	if err != nil {
		t.Fatalf("PagesDocument: %v", err)
	}
	s := string(doc)

	head := s[:strings.Index(s, "</head>")]
	if !strings.Contains(head, "<style>\nbody { color: red; }\n</style>") {
		t.Errorf("stylesheet not inlined:\n%s", s)
	}
	if !strings.Contains(head, "window.__PAGES__") || !strings.Contains(head, `window.__PAGE__ = "index.html"`) {
		t.Errorf("navigator data not injected into head:\n%s", s)
	}
	if !strings.Contains(head, "parent.postMessage") {
		t.Error("shim not injected")
	}
	if !strings.Contains(s, "<script>\nconsole.log('hi')\n</script>") {
		t.Errorf("script not inlined:\n%s", s)
	}
	if !strings.Contains(s, `"notes.md"`) || !strings.Contains(s, `"about.html"`) {
		t.Error("pages table incomplete")
	}
}

func TestPagesDocumentMissingEntry(t *testing.T) {
	res := bundler.Result{OK: true, Format: bundler.FormatPages, Entry: "index.html", Pages: map[string]string{}}
	if _, err := PagesDocument(res, "Site"); err == nil {
		t.Fatal("expected error for missing entry page")
	}
}

func TestInlineAssetsLeavesUnknownReferences(t *testing.T) {
	in := `<link rel="stylesheet" href="https://cdn.example/x.css"><script src="missing.js"></script>`
	if got := inlineAssets("index.html", in, map[string]string{}); got != in {
		t.Errorf("inlineAssets changed unresolved references:\n%s", got)
	}
}

func TestInlineAssetsResolvesRelativeToPage(t *testing.T) {
	in := `<link rel="stylesheet" href="../css/site.css">`
	got := inlineAssets("pages/a.html", in, map[string]string{"css/site.css": "a{}"})
	if !strings.Contains(got, "<style>\na{}\n</style>") {
		t.Errorf("got %s", got)
	}
}

func TestInjectHead(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<html><head><title>x</title></head><body></body></html>", "<html><head><title>x</title>X</head><body></body></html>"},
		{"<html><body>b</body></html>", "<html>X<body>b</body></html>"},
		{"<p>bare</p>", "X<p>bare</p>"},
	}
	for _, tt := range tests {
		if got := injectHead(tt.in, "X"); got != tt.want {
			t.Errorf("injectHead(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestErrorDocument(t *testing.T) {
	res := bundler.Result{
		Stage:    bundler.StageTransform,
		Message:  `Expected identifier but found "="`,
		File:     "src/App.tsx",
		Line:     2,
		Column:   6,
		LineText: "const = 2;",
	}
	doc, err := ErrorDocument("Preview", res)
	if err != nil {
		t.Fatalf("ErrorDocument: %v", err)
	}
	s := string(doc)
	for _, want := range []string{
		"Build failed (transform)",
		"src/App.tsx:2:6",
		"Expected identifier but found &#34;=&#34;",
		"const",
		"<span style=",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("error document missing %q:\n%s", want, s)
		}
	}
}

func TestErrorDocumentWithoutLocation(t *testing.T) {
	doc, err := ErrorDocument("Preview", bundler.Failed(bundler.StageResolve, "<no entry>"))
	if err != nil {
		t.Fatalf("ErrorDocument: %v", err)
	}
	s := string(doc)
	if strings.Contains(s, `class="where"`) || strings.Contains(s, `class="line"`) {
		t.Errorf("unexpected location block:\n%s", s)
	}
	if !strings.Contains(s, "&lt;no entry&gt;") {
		t.Errorf("message not escaped:\n%s", s)
	}
}
