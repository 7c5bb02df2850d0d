package bundler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/starford/jstcode/internal/apperr"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return e
}

func TestBuildAppEndToEnd(t *testing.T) {
	e := newTestEngine(t)
	res := e.Build(context.Background(), Request{
		Entry: "App.tsx",
		Files: map[string]string{"App.tsx": "export default function App(){ return <div>hi</div> }"},
	})
	if !res.OK {
		t.Fatalf("build failed at %s: %s", res.Stage, res.Message)
	}
	if res.Format != FormatScript || res.Entry != "App.tsx" {
		t.Fatalf("result = %+v", res)
	}
	if !strings.Contains(res.Bundle, "App as default") {
		t.Fatalf("bundle does not export App as default:\n%s", res.Bundle)
	}
	if !strings.Contains(res.Bundle, "https://esm.sh/react@18/jsx-runtime") {
		t.Fatalf("bundle does not reference the jsx runtime:\n%s", res.Bundle)
	}
	if strings.Contains(res.Bundle, `from "./`) || strings.Contains(res.Bundle, `from "../`) {
		t.Fatalf("bundle keeps unresolved local imports:\n%s", res.Bundle)
	}
}

func TestBuildMultiFile(t *testing.T) {
	e := newTestEngine(t)
	res := e.Build(context.Background(), Request{
		Entry: "src/main.tsx",
		Files: map[string]string{
			"src/main.tsx": `import { createRoot } from "react-dom/client";
import App from "./App";
import "./index.css";
createRoot(document.getElementById("root")!).render(<App />);`,
			"src/App.tsx": `import { BrowserRouter } from "react-router-dom";
import { Button } from "@/components/Button";
export default function App() { return <BrowserRouter><Button label="go" /></BrowserRouter> }`,
			"src/components/Button.tsx": `export function Button({ label }: { label: string }) { return <button>{label}</button> }`,
			"src/index.css":             `body { margin: 0 }`,
		},
	})
	if !res.OK {
		t.Fatalf("build failed at %s: %s", res.Stage, res.Message)
	}
	for _, want := range []string{
		"https://esm.sh/react-dom@18/client",
		"https://esm.sh/react-router-dom@6",
		"HashRouter",
		"margin: 0",
	} {
		if !strings.Contains(res.Bundle, want) {
			t.Fatalf("bundle missing %q:\n%s", want, res.Bundle)
		}
	}
	if res.Duration <= 0 {
		t.Fatal("duration not recorded")
	}
}

func TestBuildFailureStages(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		name  string
		entry string
		files map[string]string
		stage Stage
	}{
		{
			name:  "missing local import",
			entry: "App.tsx",
			files: map[string]string{"App.tsx": `import Missing from "./Missing"; export default Missing;`},
			stage: StageResolve,
		},
		{
			name:  "unknown package",
			entry: "App.tsx",
			files: map[string]string{"App.tsx": `import pad from "left-pad"; export default pad;`},
			stage: StageResolve,
		},
		{
			name:  "syntax error",
			entry: "App.tsx",
			files: map[string]string{"App.tsx": "export default function App( {\n"},
			stage: StageTransform,
		},
		{
			name:  "missing export",
			entry: "App.jsx",
			files: map[string]string{
				"App.jsx": `import { nope } from "./util"; export default () => nope;`,
				"util.js": `export const a = 1;`,
			},
			stage: StageLink,
		},
		{
			name:  "missing entry",
			entry: "main.tsx",
			files: map[string]string{"App.tsx": ""},
			stage: StageResolve,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := e.Build(context.Background(), Request{Entry: tc.entry, Files: tc.files})
			if res.OK {
				t.Fatal("build succeeded")
			}
			if res.Stage != tc.stage {
				t.Fatalf("stage = %s, want %s (message %q)", res.Stage, tc.stage, res.Message)
			}
			if res.Message == "" {
				t.Fatal("empty diagnostic")
			}
		})
	}
}

func TestBuildSyntaxErrorLocation(t *testing.T) {
	e := newTestEngine(t)
	res := e.Build(context.Background(), Request{
		Entry: "src/App.tsx",
		Files: map[string]string{"src/App.tsx": "const a = 1;\nconst = 2;\n"},
	})
	if res.OK {
		t.Fatal("build succeeded")
	}
	if res.File != "src/App.tsx" || res.Line != 2 || res.LineText != "const = 2;" {
		t.Fatalf("location = %s:%d %q", res.File, res.Line, res.LineText)
	}
}

func TestBuildPagesEntry(t *testing.T) {
	e := newTestEngine(t)
	res := e.Build(context.Background(), Request{
		Entry: "index.html",
		Files: map[string]string{
			"index.html": "<h1>Home</h1>",
			"about.md":   "# About",
			"style.css":  "h1 { color: red }",
			"notes.txt":  "skip",
		},
	})
	if !res.OK || res.Format != FormatPages {
		t.Fatalf("result = %+v", res)
	}
	if len(res.Pages) != 2 || res.Assets["style.css"] == "" {
		t.Fatalf("pages = %v assets = %v", res.Pages, res.Assets)
	}
}

func TestBuildWaitsForInit(t *testing.T) {
	e := NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
	done := make(chan Result, 1)
	go func() {
		done <- e.Build(context.Background(), Request{
			Entry: "a.js",
			Files: map[string]string{"a.js": "export const a = 1;"},
		})
	}()

	select {
	case <-done:
		t.Fatal("build finished before init")
	case <-time.After(50 * time.Millisecond):
	}
	if e.Ready() {
		t.Fatal("ready before init")
	}
	if err := e.Init(); err != nil {
		t.Fatal(err)
	}
	select {
	case res := <-done:
		if !res.OK {
			t.Fatalf("queued build failed: %s", res.Message)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("queued build never ran")
	}
	if !e.Ready() {
		t.Fatal("not ready after init")
	}
}

func TestBuildInitTimeout(t *testing.T) {
	e := NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), WithInitTimeout(10*time.Millisecond))
	res := e.Build(context.Background(), Request{Entry: "a.js", Files: map[string]string{"a.js": ""}})
	if res.OK || !strings.Contains(res.Message, apperr.ErrToolchainUnavailable.Error()) {
		t.Fatalf("result = %+v", res)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e = NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)))
	res = e.Build(ctx, Request{Entry: "a.js"})
	if res.OK || !strings.Contains(res.Message, context.Canceled.Error()) {
		t.Fatalf("result = %+v", res)
	}
}

func TestBuildPagesWithoutToolchain(t *testing.T) {
	// Init is never called, so a script build would time out.
	e := NewEngine(slog.New(slog.NewTextHandler(io.Discard, nil)), WithInitTimeout(time.Hour))
	done := make(chan Result, 1)
	go func() {
		done <- e.Build(context.Background(), Request{
			Entry: "index.html",
			Files: map[string]string{"index.html": "<h1>Home</h1>"},
		})
	}()

	select {
	case res := <-done:
		if !res.OK || res.Format != FormatPages {
			t.Fatalf("result = %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pages build waited for the toolchain")
	}
	if e.Ready() {
		t.Fatal("pages build must not initialise the toolchain")
	}
}
