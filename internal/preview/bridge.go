package preview

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/jstcode/internal/bundler"
	"github.com/starford/jstcode/internal/checksum"
	"github.com/starford/jstcode/internal/clock"
	"github.com/starford/jstcode/internal/sse"
)

// Config tunes the bridge.
type Config struct {
	Title       string
	CDN         string
	LogCapacity int
	MaxRetries  int
	RetryDelay  time.Duration
}

// Ready is published whenever the served document changes.
type Ready struct {
	Ticket uint64         `json:"ticket"`
	OK     bool           `json:"ok"`
	Format bundler.Format `json:"format,omitempty"`
	ETag   string         `json:"etag"`
	Reload int            `json:"reload,omitempty"`
}

// Status describes what the bridge currently serves.
type Status struct {
	Ticket   uint64         `json:"ticket"`
	OK       bool           `json:"ok"`
	Format   bundler.Format `json:"format,omitempty"`
	ETag     string         `json:"etag"`
	Boundary BoundaryStatus `json:"boundary"`
}

// Bridge turns build results into the preview document and collects what
// the running preview reports back.
type Bridge struct {
	log      *slog.Logger
	cfg      Config
	pub      Publisher
	logs     *Log
	boundary *Boundary

	mu     sync.RWMutex
	ticket uint64
	ok     bool
	format bundler.Format
	doc    []byte
	etag   string
}

// NewBridge creates a bridge. pub may be nil.
func NewBridge(log *slog.Logger, cfg Config, clk clock.Clock, pub Publisher) *Bridge {
	if cfg.Title == "" {
		cfg.Title = "Preview"
	}
	if cfg.CDN == "" {
		cfg.CDN = bundler.DefaultCDN
	}
	b := &Bridge{
		log:  log,
		cfg:  cfg,
		pub:  pub,
		logs: NewLog(cfg.LogCapacity, clk, pub),
	}
	b.boundary = NewBoundary(clk, cfg.MaxRetries, cfg.RetryDelay, b.reload, b.boundaryChanged)
	b.doc = placeholderDocument(cfg.Title)
	b.etag = checksum.Short(b.doc)
	return b
}

// Apply renders res as the current document. Results carrying a ticket no
// newer than the applied one are ignored.
func (b *Bridge) Apply(ticket uint64, res bundler.Result) {
	doc, err := b.render(res)

	b.mu.Lock()
	if ticket <= b.ticket {
		b.mu.Unlock()
		b.log.Debug("preview: stale result ignored", slog.Uint64("ticket", ticket))
		return
	}
	b.ticket = ticket
	if err != nil {
		b.mu.Unlock()
		b.log.Error("preview: render document", slog.Uint64("ticket", ticket), slog.String("error", err.Error()))
		b.logs.Append(KindHostError, err.Error())
		b.boundary.Fail(err.Error())
		return
	}
	b.ok = res.OK
	b.format = res.Format
	b.doc = doc
	b.etag = checksum.Short(doc)
	ready := Ready{Ticket: ticket, OK: res.OK, Format: res.Format, ETag: b.etag}
	b.mu.Unlock()

	b.boundary.Reset()
	if !res.OK {
		b.logs.Append(KindBuildError, res.Message)
	}
	b.log.Debug("preview: document applied",
		slog.Uint64("ticket", ticket),
		slog.Bool("ok", res.OK),
		slog.String("etag", ready.ETag),
	)
	b.publish(sse.Event{Type: sse.TypePreviewReady, Data: ready})
}

func (b *Bridge) render(res bundler.Result) ([]byte, error) {
	if !res.OK {
		return ErrorDocument(b.cfg.Title, res)
	}
	switch res.Format {
	case bundler.FormatPages:
		return PagesDocument(res, b.cfg.Title)
	case bundler.FormatScript:
		return HostDocument(b.cfg.Title, res.Bundle, b.cfg.CDN)
	default:
		return nil, fmt.Errorf("preview: unknown result format %q", res.Format)
	}
}

// Document returns the document to serve and its ETag. While the boundary
// is tripped the error panel is served instead.
func (b *Bridge) Document() ([]byte, string) {
	if b.boundary.Showing() {
		panel := panelDocument(b.cfg.Title, b.boundary.Status())
		return panel, "boundary-" + checksum.Short(panel)
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.doc, b.etag
}

// HandleMessage records one message posted by the preview. Host errors
// trip the boundary; build and runtime errors are only logged.
func (b *Bridge) HandleMessage(raw []byte) (Record, bool) {
	kind, text, ok := Demux(raw)
	if !ok {
		return Record{}, false
	}
	rec := b.logs.Append(kind, text)
	if kind == KindHostError {
		b.boundary.Fail(text)
	}
	return rec, true
}

// Logs returns the preview log.
func (b *Bridge) Logs() *Log { return b.logs }

// Dismiss clears a tripped boundary and serves the last document again.
func (b *Bridge) Dismiss() {
	b.boundary.Dismiss()
}

// Status returns what is currently served.
func (b *Bridge) Status() Status {
	b.mu.RLock()
	st := Status{Ticket: b.ticket, OK: b.ok, Format: b.format, ETag: b.etag}
	b.mu.RUnlock()
	st.Boundary = b.boundary.Status()
	return st
}

func (b *Bridge) reload(attempt int) {
	b.mu.RLock()
	ready := Ready{Ticket: b.ticket, OK: b.ok, Format: b.format, ETag: b.etag, Reload: attempt}
	b.mu.RUnlock()
	b.log.Info("preview: reloading after host error", slog.Int("attempt", attempt))
	b.publish(sse.Event{Type: sse.TypePreviewReady, Data: ready})
}

func (b *Bridge) boundaryChanged(st BoundaryStatus) {
	b.publish(sse.Event{Type: sse.TypeBoundary, Data: st})
}

func (b *Bridge) publish(ev sse.Event) {
	if b.pub != nil {
		b.pub.Publish(ev)
	}
}

var panelTmpl = template.Must(template.New("panel").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { margin: 0; padding: 20px; background: #18181b; color: #e4e4e7; font-family: system-ui, sans-serif; }
h1 { margin: 0 0 12px; font-size: 16px; color: #fbbf24; }
pre { white-space: pre-wrap; font: 13px/1.5 monospace; }
</style>
</head>
<body>
<h1>The preview crashed</h1>
<pre>{{.Status.Error}}</pre>
{{- if eq .Status.State "dismiss-required"}}
<p>Gave up after {{.Status.Attempts}} attempts. Dismiss to show the preview again.</p>
{{- else}}
<p>Retrying ({{.Status.Attempts}} of {{.Status.Max}})…</p>
{{- end}}
</body>
</html>
`))

func panelDocument(title string, st BoundaryStatus) []byte {
	var buf bytes.Buffer
	if err := panelTmpl.Execute(&buf, struct {
		Title  string
		Status BoundaryStatus
	}{title, st}); err != nil {
		return []byte(template.HTMLEscapeString(st.Error))
	}
	return buf.Bytes()
}

func placeholderDocument(title string) []byte {
	return []byte("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"utf-8\">\n<title>" +
		template.HTMLEscapeString(title) +
		"</title>\n</head>\n<body>\n<p style=\"font-family: system-ui, sans-serif; color: #71717a\">Waiting for the first build…</p>\n</body>\n</html>\n")
}
