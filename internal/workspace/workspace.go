// Package workspace ties one editing session together: the project store,
// the rebuild orchestrator, the preview bridge and persistence.
package workspace

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"time"

	"github.com/starford/jstcode/internal/apperr"
	"github.com/starford/jstcode/internal/bundler"
	"github.com/starford/jstcode/internal/clock"
	"github.com/starford/jstcode/internal/deps"
	"github.com/starford/jstcode/internal/importer"
	"github.com/starford/jstcode/internal/jsconfig"
	"github.com/starford/jstcode/internal/metrics"
	"github.com/starford/jstcode/internal/persist"
	"github.com/starford/jstcode/internal/preview"
	"github.com/starford/jstcode/internal/project"
	"github.com/starford/jstcode/internal/rebuild"
	"github.com/starford/jstcode/internal/rewrite"
	"github.com/starford/jstcode/internal/sse"
	"github.com/starford/jstcode/internal/templates"
)

// Builder bundles one request.
type Builder interface {
	Build(ctx context.Context, req bundler.Request) bundler.Result
}

// Events receives project and preview events for live clients.
type Events interface {
	Publish(event sse.Event)
	PublishChange(kind, path string)
}

// Config holds the session settings.
type Config struct {
	FileDelay    time.Duration
	ProjectDelay time.Duration
	Preview      preview.Config
	Import       importer.Limits
}

// Workspace is the single owner of a session's state.
type Workspace struct {
	log       *slog.Logger
	cfg       Config
	clock     clock.Clock
	events    Events
	persister *persist.Persister

	store  *project.Store
	orch   *rebuild.Orchestrator
	bridge *preview.Bridge
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithClock replaces the real clock for debounce and boundary timers.
func WithClock(c clock.Clock) Option {
	return func(w *Workspace) { w.clock = c }
}

// WithEvents publishes changes to ev.
func WithEvents(ev Events) Option {
	return func(w *Workspace) { w.events = ev }
}

// WithPersister saves every committed change through p.
func WithPersister(p *persist.Persister) Option {
	return func(w *Workspace) { w.persister = p }
}

// WithStoreOptions passes options to the project store.
func WithStoreOptions(opts ...project.StoreOption) Option {
	return func(w *Workspace) { w.store = project.NewStore(opts...) }
}

// New wires a workspace around builder.
func New(log *slog.Logger, cfg Config, builder Builder, opts ...Option) *Workspace {
	w := &Workspace{
		log:   log,
		cfg:   cfg,
		clock: clock.Real(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.store == nil {
		w.store = project.NewStore()
	}

	var pub preview.Publisher
	if w.events != nil {
		pub = w.events
	}
	w.bridge = preview.NewBridge(log, cfg.Preview, w.clock, pub)
	w.orch = rebuild.New(log,
		rebuild.Config{FileDelay: cfg.FileDelay, ProjectDelay: cfg.ProjectDelay},
		builder.Build,
		w.source,
		w.bridge,
		rebuild.WithClock(w.clock),
		rebuild.WithNotify(w.buildChanged),
	)
	w.store.Subscribe(w.onChange)
	return w
}

// Start restores the persisted project, if any. A snapshot that cannot be
// restored is logged and the session starts empty.
func (w *Workspace) Start(ctx context.Context) {
	if w.persister == nil {
		return
	}
	ok, err := w.persister.Load(ctx, w.store)
	switch {
	case err != nil:
		w.log.Warn("workspace: saved project not restored, starting empty", slog.String("error", err.Error()))
	case ok:
		w.log.Info("workspace: project restored", slog.Int("files", w.store.Snapshot().Len()))
	}
}

// Run drives background persistence until ctx is cancelled.
func (w *Workspace) Run(ctx context.Context) error {
	if w.persister == nil {
		<-ctx.Done()
		return nil
	}
	return w.persister.Run(ctx)
}

// Close stops pending and running builds.
func (w *Workspace) Close() {
	w.orch.Close()
}

// onChange runs under the store's write lock.
func (w *Workspace) onChange(st *project.State, changes []project.Change) {
	scope := rebuild.ScopeFile
	for _, ch := range changes {
		if ch.Kind == project.ChangeStructure || ch.Kind == project.ChangeReset {
			scope = rebuild.ScopeProject
		}
		if ch.Kind == project.ChangeContent && !isVisible(st, ch.ID) {
			scope = rebuild.ScopeProject
		}
	}
	w.orch.Schedule(scope)

	if w.persister != nil {
		w.persister.Save(st)
	}
	size := st.Size()
	metrics.SetProjectSize(size.Files, size.Bytes)

	if w.events != nil {
		for _, ch := range changes {
			w.events.PublishChange(changeKind(st, ch), ch.Path)
		}
	}
}

// isVisible reports whether file id is active or open in a tab.
func isVisible(st *project.State, id string) bool {
	return st.ActiveFileID() == id || slices.Contains(st.OpenTabs(), id)
}

func changeKind(st *project.State, ch project.Change) string {
	switch ch.Kind {
	case project.ChangeContent:
		return "updated"
	case project.ChangeSession:
		return "session"
	case project.ChangeReset:
		return "reset"
	}
	if _, ok := st.GetByID(ch.ID); ok {
		return "created"
	}
	return "deleted"
}

// source snapshots the build input.
func (w *Workspace) source() (bundler.Request, bool) {
	st := w.store.Snapshot()
	files := st.Files()
	entry, ok := bundler.ResolveEntry(files, st.ActivePath())
	if !ok {
		return bundler.Request{}, false
	}
	return bundler.Request{Entry: entry, Files: files, Manifest: deps.Infer(files)}, true
}

func (w *Workspace) buildChanged(st rebuild.Status) {
	if w.events != nil {
		w.events.Publish(sse.Event{Type: sse.TypeBuildStatus, Data: st})
	}
}

// Project returns the current project state.
func (w *Workspace) Project() *project.State { return w.store.Snapshot() }

// Files returns the path -> content map of the project.
func (w *Workspace) Files() map[string]string { return w.store.Snapshot().Files() }

// ReadFile returns the file at p.
func (w *Workspace) ReadFile(p string) (project.FileNode, error) {
	n, ok := w.store.Snapshot().GetByPath(p)
	if !ok {
		return project.FileNode{}, fmt.Errorf("workspace: %s: %w", p, apperr.ErrNotFound)
	}
	if !n.IsFile() {
		return project.FileNode{}, fmt.Errorf("workspace: %s: %w", p, apperr.ErrNotAFile)
	}
	return n, nil
}

// WriteFile creates or overwrites the file at p. It reports whether the
// file was created.
func (w *Workspace) WriteFile(p, content string) (project.FileNode, bool, error) {
	clean := project.CleanPath(p)
	if clean == "" {
		return project.FileNode{}, false, fmt.Errorf("workspace: write %q: %w", p, apperr.ErrInvalidPath)
	}
	dir, name := path.Split(clean)
	return w.store.AddFile(name, content, dir)
}

// Put implements importer.Target.
func (w *Workspace) Put(p, content string) error {
	_, _, err := w.WriteFile(p, content)
	return err
}

// Remove implements importer.Target.
func (w *Workspace) Remove(p string) error {
	return w.DeletePath(p)
}

// CreateFolder creates the folder at p and its ancestors.
func (w *Workspace) CreateFolder(p string) (project.FileNode, error) {
	clean := project.CleanPath(p)
	if clean == "" {
		return project.FileNode{}, fmt.Errorf("workspace: folder %q: %w", p, apperr.ErrInvalidPath)
	}
	dir, name := path.Split(clean)
	return w.store.AddFolder(name, dir)
}

// DeletePath removes the node at p; folders go with their contents.
func (w *Workspace) DeletePath(p string) error {
	n, ok := w.store.Snapshot().GetByPath(p)
	if !ok {
		return fmt.Errorf("workspace: delete %s: %w", p, apperr.ErrNotFound)
	}
	return w.store.DeleteFile(n.ID)
}

// DeleteNode removes node id.
func (w *Workspace) DeleteNode(id string) error { return w.store.DeleteFile(id) }

// RenameNode gives node id a new name.
func (w *Workspace) RenameNode(id, name string) error { return w.store.Rename(id, name) }

// UpdateNode replaces the content of file id.
func (w *Workspace) UpdateNode(id, content string) error { return w.store.UpdateFile(id, content) }

// OpenTab opens and activates file id.
func (w *Workspace) OpenTab(id string) error { return w.store.OpenTab(id) }

// CloseTab closes the tab of file id.
func (w *Workspace) CloseTab(id string) error { return w.store.CloseTab(id) }

// SetActive activates file id.
func (w *Workspace) SetActive(id string) error { return w.store.SetActive(id) }

// Import replaces the project with files.
func (w *Workspace) Import(files map[string]string) (bool, error) {
	return w.store.LoadProject(files)
}

// ImportZip replaces the project with the code files of a zip archive.
func (w *Workspace) ImportZip(r io.ReaderAt, size int64) (int, error) {
	files, err := importer.FromZip(r, size, w.cfg.Import)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("workspace: archive has no code files: %w", apperr.ErrNotFound)
	}
	if _, err := w.store.LoadProject(files); err != nil {
		return 0, err
	}
	return len(files), nil
}

// ImportDir replaces the project with the code files under dir.
func (w *Workspace) ImportDir(dir string) (int, error) {
	files, err := importer.FromDir(dir, w.cfg.Import)
	if err != nil {
		return 0, err
	}
	if _, err := w.store.LoadProject(files); err != nil {
		return 0, err
	}
	return len(files), nil
}

// Watch mirrors dir into the project until ctx is cancelled.
func (w *Workspace) Watch(ctx context.Context, dir string) error {
	return importer.Watch(ctx, dir, w.cfg.Import, w, w.log)
}

// LoadTemplate replaces the project with a built-in template.
func (w *Workspace) LoadTemplate(id string) (templates.Template, error) {
	tpl, err := templates.Get(id)
	if err != nil {
		return templates.Template{}, err
	}
	if _, err := w.store.LoadProject(tpl.Files); err != nil {
		return templates.Template{}, err
	}
	return tpl, nil
}

// Clear empties the project and forgets the saved snapshot.
func (w *Workspace) Clear(ctx context.Context) error {
	w.store.ClearProject()
	if w.persister != nil {
		return w.persister.Discard(ctx)
	}
	return nil
}

// BuildStatus returns the orchestrator status.
func (w *Workspace) BuildStatus() rebuild.Status { return w.orch.Status() }

// Rebuild schedules a project-wide build.
func (w *Workspace) Rebuild() { w.orch.Schedule(rebuild.ScopeProject) }

// Retry rebuilds immediately after a failure.
func (w *Workspace) Retry() error { return w.orch.Retry() }

// Preview returns the preview bridge.
func (w *Workspace) Preview() *preview.Bridge { return w.bridge }

// Widget returns the payload for the in-browser preview widget.
func (w *Workspace) Widget() preview.WidgetPayload {
	st := w.store.Snapshot()
	files := st.Files()
	entry, _ := bundler.ResolveEntry(files, st.ActivePath())
	return preview.Widget(files, entry)
}

// Dependencies infers the package manifest of the project.
func (w *Workspace) Dependencies() deps.Manifest {
	return deps.Infer(w.store.Snapshot().Files())
}

// RewriteDiff shows what the compatibility rewrite does to file p, as a
// unified diff. markup enables the widget dialect fixes.
func (w *Workspace) RewriteDiff(p string, markup bool) (string, error) {
	n, err := w.ReadFile(p)
	if err != nil {
		return "", err
	}
	proj, err := jsconfig.Load(w.store.Snapshot().Files())
	if err != nil {
		w.log.Debug("workspace: project config ignored", slog.String("error", err.Error()))
	}
	opts := []rewrite.Option{rewrite.WithAliases(proj.Aliases())}
	if markup {
		opts = append(opts, rewrite.WithMarkup())
	}
	return rewrite.New(opts...).Diff(n.Path, n.Content)
}
