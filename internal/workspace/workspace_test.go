package workspace

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/starford/jstcode/internal/apperr"
	"github.com/starford/jstcode/internal/bundler"
	"github.com/starford/jstcode/internal/clock"
	"github.com/starford/jstcode/internal/kvstore"
	"github.com/starford/jstcode/internal/persist"
	"github.com/starford/jstcode/internal/rebuild"
	"github.com/starford/jstcode/internal/sse"
)

const (
	fileDelay    = 300 * time.Millisecond
	projectDelay = time.Second
)

// stubBuilder records requests and succeeds with the entry as the bundle.
type stubBuilder struct {
	mu       sync.Mutex
	requests []bundler.Request
}

func (b *stubBuilder) Build(_ context.Context, req bundler.Request) bundler.Result {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()
	if strings.Contains(req.Files[req.Entry], "syntax error") {
		return bundler.Failed(bundler.StageTransform, "Unexpected token")
	}
	return bundler.Result{OK: true, Format: bundler.FormatScript, Bundle: "// " + req.Entry}
}

func (b *stubBuilder) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *stubBuilder) last() bundler.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[len(b.requests)-1]
}

type recordingEvents struct {
	mu      sync.Mutex
	changes []string
	types   []string
}

func (e *recordingEvents) Publish(ev sse.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.types = append(e.types, ev.Type)
}

func (e *recordingEvents) PublishChange(kind, path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = append(e.changes, kind+":"+path)
}

func (e *recordingEvents) changeList() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.changes...)
}

func (e *recordingEvents) has(typ string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.types {
		if t == typ {
			return true
		}
	}
	return false
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

type fixture struct {
	ws      *Workspace
	clk     *clock.FakeClock
	builder *stubBuilder
	events  *recordingEvents
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		clk:     clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		builder: &stubBuilder{},
		events:  &recordingEvents{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := Config{FileDelay: fileDelay, ProjectDelay: projectDelay}
	opts = append([]Option{WithClock(f.clk), WithEvents(f.events)}, opts...)
	f.ws = New(log, cfg, f.builder, opts...)
	t.Cleanup(f.ws.Close)
	return f
}

func TestEditBuildsAfterDebounce(t *testing.T) {
	f := newFixture(t)

	if _, _, err := f.ws.WriteFile("src/App.tsx", "export default function App() {}"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if st := f.ws.BuildStatus(); st.State != rebuild.StateScheduled {
		t.Fatalf("state = %s, want scheduled", st.State)
	}

	// A new file changes the file set: project window.
	f.clk.Advance(fileDelay)
	if f.builder.count() != 0 {
		t.Fatal("built inside the project window")
	}
	f.clk.Advance(projectDelay - fileDelay)
	eventually(t, func() bool { return f.ws.Preview().Status().Ticket == 1 }, "first build not applied")

	req := f.builder.last()
	if req.Entry != "src/App.tsx" || !req.Manifest.Has("react") {
		t.Errorf("request = %+v", req)
	}

	// Editing the open file uses the file window.
	if _, _, err := f.ws.WriteFile("src/App.tsx", "export default function App() { return 1 }"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f.clk.Advance(fileDelay)
	eventually(t, func() bool { return f.ws.Preview().Status().Ticket == 2 }, "edit not rebuilt in the file window")
}

func TestFailedBuildReachesPreview(t *testing.T) {
	f := newFixture(t)
	f.ws.Import(map[string]string{"src/App.tsx": "syntax error"})
	f.clk.Advance(projectDelay)

	eventually(t, func() bool { return f.ws.BuildStatus().State == rebuild.StateFailed }, "build never failed")
	doc, _ := f.ws.Preview().Document()
	if !strings.Contains(string(doc), "Build failed (transform)") {
		t.Errorf("preview:\n%s", doc)
	}
	if !f.events.has(sse.TypeBuildStatus) || !f.events.has(sse.TypePreviewReady) {
		t.Errorf("events = %v", f.events.types)
	}
}

func TestEmptyProjectDoesNotBuild(t *testing.T) {
	f := newFixture(t)
	f.ws.WriteFile("notes.txt", "hello")
	f.clk.Advance(projectDelay)
	if st := f.ws.BuildStatus(); st.State != rebuild.StateIdle {
		t.Errorf("state = %s, want idle", st.State)
	}
	if f.builder.count() != 0 {
		t.Error("built a project without an entry")
	}
}

func TestChangeEvents(t *testing.T) {
	f := newFixture(t)
	file, _, _ := f.ws.WriteFile("src/a.js", "1")
	f.ws.WriteFile("src/a.js", "2")
	f.ws.SetActive(file.ID)
	f.ws.DeletePath("src")
	f.ws.Import(map[string]string{"x.js": ""})

	got := strings.Join(f.events.changeList(), " ")
	for _, want := range []string{"created:src/a.js", "updated:src/a.js", "deleted:src", "reset:"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %s", want, got)
		}
	}
}

func TestFileOperations(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.ws.WriteFile("/", "x"); !errors.Is(err, apperr.ErrInvalidPath) {
		t.Errorf("WriteFile(/) = %v", err)
	}
	if _, err := f.ws.CreateFolder("src/components"); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if _, err := f.ws.ReadFile("src/components"); !errors.Is(err, apperr.ErrNotAFile) {
		t.Errorf("ReadFile(folder) = %v", err)
	}
	if _, _, err := f.ws.WriteFile("src/components/Button.tsx", "export const B = 1"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	n, err := f.ws.ReadFile("src/components/Button.tsx")
	if err != nil || n.Content != "export const B = 1" {
		t.Fatalf("ReadFile = %+v, %v", n, err)
	}
	if err := f.ws.DeletePath("src"); err != nil {
		t.Fatalf("DeletePath: %v", err)
	}
	if _, err := f.ws.ReadFile("src/components/Button.tsx"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("ReadFile after delete = %v", err)
	}
	if err := f.ws.DeletePath("src"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("DeletePath(missing) = %v", err)
	}
}

func TestLoadTemplate(t *testing.T) {
	f := newFixture(t)
	tpl, err := f.ws.LoadTemplate("react-router")
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if got := len(f.ws.Files()); got != len(tpl.Files) {
		t.Errorf("files = %d, want %d", got, len(tpl.Files))
	}
	if !f.ws.Dependencies().Has("react-router-dom") {
		t.Errorf("dependencies = %v", f.ws.Dependencies())
	}
	if _, err := f.ws.LoadTemplate("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("LoadTemplate(missing) = %v", err)
	}
}

func TestImportZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range map[string]string{
		"proj/src/App.jsx": "export default function App() { return null }",
		"proj/logo.png":    "png",
	} {
		w, _ := zw.Create(name)
		w.Write([]byte(body))
	}
	zw.Close()

	f := newFixture(t)
	n, err := f.ws.ImportZip(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil || n != 1 {
		t.Fatalf("ImportZip = %d, %v", n, err)
	}
	if _, err := f.ws.ReadFile("src/App.jsx"); err != nil {
		t.Errorf("ReadFile: %v", err)
	}
	if got := f.ws.Widget().Entry; got != "src/App.jsx" {
		t.Errorf("widget entry = %q", got)
	}
}

func TestRewriteDiff(t *testing.T) {
	f := newFixture(t)
	f.ws.WriteFile("src/App.jsx", "import { BrowserRouter } from \"react-router-dom\";\nexport default function App() { return <BrowserRouter /> }\n")

	diff, err := f.ws.RewriteDiff("src/App.jsx", false)
	if err != nil {
		t.Fatalf("RewriteDiff: %v", err)
	}
	if !strings.Contains(diff, "+++ b/src/App.jsx") || !strings.Contains(diff, "HashRouter") {
		t.Errorf("diff:\n%s", diff)
	}
	if _, err := f.ws.RewriteDiff("missing.js", false); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("RewriteDiff(missing) = %v", err)
	}
}

func TestPersistAndRestore(t *testing.T) {
	kv := kvstore.NewMemory(0)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	p1 := persist.New(log, kv, persist.Config{})
	f1 := newFixture(t, WithPersister(p1))
	f1.ws.WriteFile("src/App.tsx", "export default 1")
	if _, err := p1.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	p2 := persist.New(log, kv, persist.Config{})
	f2 := newFixture(t, WithPersister(p2))
	f2.ws.Start(context.Background())
	n, err := f2.ws.ReadFile("src/App.tsx")
	if err != nil || n.Content != "export default 1" {
		t.Fatalf("restored = %+v, %v", n, err)
	}

	// Restoring schedules a build of the restored project.
	f2.clk.Advance(projectDelay)
	eventually(t, func() bool { return f2.ws.Preview().Status().Ticket == 1 }, "restored project not built")

	if err := f2.ws.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, _ := kv.Get(context.Background(), persist.DefaultKey); ok {
		t.Error("saved snapshot survived Clear")
	}
}

func TestStartWithCorruptSnapshot(t *testing.T) {
	kv := kvstore.NewMemory(0)
	_ = kv.Set(context.Background(), persist.DefaultKey, []byte("garbage"))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := newFixture(t, WithPersister(persist.New(log, kv, persist.Config{})))
	f.ws.Start(context.Background())
	if f.ws.Project().Len() != 0 {
		t.Error("corrupt snapshot produced files")
	}
}

func TestRetryBackoff(t *testing.T) {
	f := newFixture(t)
	f.ws.Import(map[string]string{"src/App.tsx": "syntax error"})
	f.clk.Advance(projectDelay)
	eventually(t, func() bool { return f.ws.BuildStatus().State == rebuild.StateFailed }, "build never failed")

	for i := 0; i < rebuild.MaxRetries; i++ {
		if err := f.ws.Retry(); err != nil {
			t.Fatalf("retry %d: %v", i+1, err)
		}
		want := uint64(i + 2)
		eventually(t, func() bool { return f.ws.BuildStatus().Applied == want }, "retry not applied")
	}
	if err := f.ws.Retry(); !errors.Is(err, apperr.ErrRetryBackoff) {
		t.Fatalf("fourth retry = %v, want ErrRetryBackoff", err)
	}
}
