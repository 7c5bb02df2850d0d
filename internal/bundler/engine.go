package bundler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/starford/jstcode/internal/apperr"
	"github.com/starford/jstcode/internal/deps"
)

// Engine builds preview bundles with esbuild. The toolchain is warmed up
// once by Init; builds requested earlier wait for it.
type Engine struct {
	log         *slog.Logger
	cdn         string
	initTimeout time.Duration

	once    sync.Once
	ready   chan struct{}
	initErr error
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineCDN sets the CDN base for external packages.
func WithEngineCDN(base string) EngineOption {
	return func(e *Engine) { e.cdn = base }
}

// WithInitTimeout bounds how long a build waits for Init.
func WithInitTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.initTimeout = d
		}
	}
}

// NewEngine creates an engine. Call Init before or concurrently with Build.
func NewEngine(log *slog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		log:         log,
		cdn:         DefaultCDN,
		initTimeout: 30 * time.Second,
		ready:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init runs a warm-up build the first time it is called. Later calls
// return the first call's outcome.
func (e *Engine) Init() error {
	e.once.Do(func() {
		start := time.Now()
		res := e.bundle(Request{
			Entry:    "warmup.js",
			Files:    map[string]string{"warmup.js": "export default 1;\n"},
			Manifest: deps.Manifest{},
		})
		if !res.OK {
			e.initErr = fmt.Errorf("bundler: warm-up build: %s: %w", res.Message, apperr.ErrToolchainUnavailable)
			e.log.Error("bundler: toolchain init failed", slog.String("error", res.Message))
		} else {
			e.log.Info("bundler: toolchain ready", slog.Duration("took", time.Since(start)))
		}
		close(e.ready)
	})
	return e.initErr
}

// Ready reports whether Init completed successfully.
func (e *Engine) Ready() bool {
	select {
	case <-e.ready:
		return e.initErr == nil
	default:
		return false
	}
}

// Build bundles req. It never returns an error: every failure, including
// an unavailable toolchain, is a failed Result.
func (e *Engine) Build(ctx context.Context, req Request) Result {
	start := time.Now()
	var res Result
	switch {
	case IsPageEntry(req.Entry):
		// Static pages never touch the toolchain.
		res = BuildPages(req)
	default:
		if err := e.wait(ctx); err != nil {
			res = Failed(StageLoad, err.Error())
		} else {
			res = e.bundle(req)
		}
	}
	res.Entry = req.Entry
	res.Duration = time.Since(start)
	return res
}

func (e *Engine) wait(ctx context.Context) error {
	select {
	case <-e.ready:
		return e.initErr
	default:
	}

	timer := time.NewTimer(e.initTimeout)
	defer timer.Stop()
	select {
	case <-e.ready:
		return e.initErr
	case <-ctx.Done():
		return fmt.Errorf("bundler: waiting for toolchain: %w", ctx.Err())
	case <-timer.C:
		return fmt.Errorf("bundler: toolchain not ready after %s: %w", e.initTimeout, apperr.ErrToolchainUnavailable)
	}
}

func (e *Engine) bundle(req Request) Result {
	hooks := NewHooks(req, WithCDN(e.cdn))
	rec := &stageRecorder{}

	out := api.Build(api.BuildOptions{
		EntryPoints: []string{req.Entry},
		Outfile:     "preview.js",
		Bundle:      true,
		Write:       false,
		Format:      api.FormatESModule,
		Target:      api.ES2020,
		Platform:    api.PlatformBrowser,
		JSX:         api.JSXAutomatic,
		Define:      map[string]string{"process.env.NODE_ENV": `"development"`},
		LogLevel:    api.LogLevelSilent,
		Plugins:     []api.Plugin{projectPlugin(hooks, rec)},
	})
	if len(out.Errors) > 0 {
		return failure(out.Errors, rec.get())
	}
	if len(out.Warnings) > 0 {
		e.log.Debug("bundler: build warnings",
			slog.String("entry", req.Entry),
			slog.Int("count", len(out.Warnings)))
	}
	if len(out.OutputFiles) == 0 {
		return Failed(StageLink, "bundler produced no output")
	}
	return Result{
		OK:     true,
		Format: FormatScript,
		Bundle: string(out.OutputFiles[0].Contents),
	}
}

func projectPlugin(h *Hooks, rec *stageRecorder) api.Plugin {
	load := func(args api.OnLoadArgs) (api.OnLoadResult, error) {
		l, err := h.Load(ResolvedID{Namespace: args.Namespace, Path: args.Path})
		if err != nil {
			rec.note(err)
			return api.OnLoadResult{}, err
		}
		text := l.Text
		return api.OnLoadResult{Contents: &text, Loader: esbuildLoader(l.Loader)}, nil
	}

	return api.Plugin{
		Name: "project",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `.*`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				importer := args.Importer
				if args.Kind == api.ResolveEntryPoint {
					importer = ""
				}
				id, err := h.Resolve(importer, args.Path)
				if err != nil {
					rec.note(err)
					return api.OnResolveResult{}, err
				}
				if id.Namespace == NamespaceURL {
					return api.OnResolveResult{Path: id.Path, External: true}, nil
				}
				return api.OnResolveResult{Path: id.Path, Namespace: id.Namespace}, nil
			})
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: NamespaceProject}, load)
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: NamespaceExternal}, load)
		},
	}
}

func esbuildLoader(l Loader) api.Loader {
	switch l {
	case LoaderTSX:
		return api.LoaderTSX
	case LoaderTS:
		return api.LoaderTS
	case LoaderJSX:
		return api.LoaderJSX
	case LoaderJSON:
		return api.LoaderJSON
	case LoaderText:
		return api.LoaderText
	}
	return api.LoaderJS
}

// stageRecorder remembers the stage of the first failing hook. esbuild
// calls hooks from several goroutines.
type stageRecorder struct {
	mu    sync.Mutex
	stage Stage
}

func (r *stageRecorder) note(err error) {
	var re *ResolveError
	if !errors.As(err, &re) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stage == "" {
		r.stage = re.Stage
	}
}

func (r *stageRecorder) get() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stage
}

func failure(msgs []api.Message, hookStage Stage) Result {
	formatted := api.FormatMessages(msgs, api.FormatMessagesOptions{Kind: api.ErrorMessage})
	first := msgs[0]

	res := Failed(classify(first, hookStage), strings.TrimSpace(strings.Join(formatted, "")))
	if loc := first.Location; loc != nil {
		res.File = strings.TrimPrefix(loc.File, NamespaceProject+":")
		res.Line = loc.Line
		res.Column = loc.Column
		res.LineText = loc.LineText
	}
	return res
}

// classify picks the failing stage: the hook's own stage when a hook
// failed, otherwise a guess from the diagnostic.
func classify(msg api.Message, hookStage Stage) Stage {
	if hookStage != "" {
		return hookStage
	}
	switch {
	case strings.Contains(msg.Text, "Could not resolve"):
		return StageResolve
	case strings.Contains(msg.Text, "No matching export"),
		strings.Contains(msg.Text, "Multiple exports"),
		strings.Contains(msg.Text, "Detected cycle"):
		return StageLink
	case msg.Location != nil:
		return StageTransform
	}
	return StageLink
}
