package bundler

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/starford/jstcode/internal/apperr"
	"github.com/starford/jstcode/internal/deps"
	"github.com/starford/jstcode/internal/jsconfig"
	"github.com/starford/jstcode/internal/rewrite"
)

// Namespaces of resolved ids.
const (
	NamespaceProject  = "project"
	NamespaceExternal = "external"
	NamespaceURL      = "url"
)

// DefaultCDN serves external packages as ES modules.
const DefaultCDN = "https://esm.sh"

// runtimeVersions pins the packages the preview runtime is built against.
var runtimeVersions = map[string]string{
	"react":            "18",
	"react-dom":        "18",
	"react-router-dom": "6",
}

// Loader tells the toolchain how to parse loaded text.
type Loader string

const (
	LoaderJS   Loader = "js"
	LoaderJSX  Loader = "jsx"
	LoaderTS   Loader = "ts"
	LoaderTSX  Loader = "tsx"
	LoaderJSON Loader = "json"
	LoaderText Loader = "text"
)

// ResolvedID is where a specifier points. Project ids are file paths,
// external ids are package specifiers, url ids are left to the browser.
type ResolvedID struct {
	Namespace string
	Path      string
}

// Loaded is the module text handed to the toolchain.
type Loaded struct {
	Text   string
	Loader Loader
}

// ResolveError is a resolve or load hook failure.
type ResolveError struct {
	Stage Stage
	Err   error
}

func (e *ResolveError) Error() string { return e.Err.Error() }
func (e *ResolveError) Unwrap() error { return e.Err }

// Hooks resolves and loads modules from a Request snapshot. It never
// touches the filesystem or the network.
type Hooks struct {
	files    map[string]string
	manifest deps.Manifest
	rewriter *rewrite.Rewriter
	cdn      string
}

// HookOption configures Hooks.
type HookOption func(*Hooks)

// WithCDN sets the base URL external packages are fetched from.
func WithCDN(base string) HookOption {
	return func(h *Hooks) {
		if base != "" {
			h.cdn = strings.TrimSuffix(base, "/")
		}
	}
}

// NewHooks prepares hooks for req. The manifest is inferred from the files
// unless the request carries one, and tsconfig path aliases feed the
// rewriter.
func NewHooks(req Request, opts ...HookOption) *Hooks {
	h := &Hooks{files: req.Files, manifest: req.Manifest, cdn: DefaultCDN}
	for _, opt := range opts {
		opt(h)
	}
	if h.manifest == nil {
		h.manifest = deps.Infer(req.Files)
	}
	proj, _ := jsconfig.Load(req.Files)
	h.rewriter = rewrite.New(rewrite.WithAliases(proj.Aliases()))
	return h
}

var probeExts = []string{".tsx", ".ts", ".jsx", ".js"}

// Resolve maps specifier, imported from importer, to a module id. An empty
// importer means specifier is the entry path.
func (h *Hooks) Resolve(importer, specifier string) (ResolvedID, error) {
	switch {
	case strings.HasPrefix(specifier, "https://"), strings.HasPrefix(specifier, "http://"):
		return ResolvedID{Namespace: NamespaceURL, Path: specifier}, nil

	case importer == "":
		return h.probe(specifier, strings.TrimPrefix(specifier, "/"))

	case specifier == "." || specifier == ".." ||
		strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../"):
		joined := path.Join(path.Dir(importer), specifier)
		if joined == ".." || strings.HasPrefix(joined, "../") {
			return ResolvedID{}, resolveErr(StageResolve, "%q escapes the project root: %w", specifier, apperr.ErrInvalidPath)
		}
		return h.probe(specifier, joined)

	case strings.HasPrefix(specifier, "@/"):
		return h.probe(specifier, "src/"+strings.TrimPrefix(specifier, "@/"))

	case strings.HasPrefix(specifier, "/"):
		return h.probe(specifier, strings.TrimPrefix(specifier, "/"))
	}

	name := deps.Specifier(specifier)
	if name == "" {
		return ResolvedID{}, resolveErr(StageResolve, "could not resolve %q: %w", specifier, apperr.ErrNotFound)
	}
	if _, ok := runtimeVersions[name]; ok || h.manifest.Has(name) {
		return ResolvedID{Namespace: NamespaceExternal, Path: specifier}, nil
	}
	return ResolvedID{}, resolveErr(StageResolve, "could not resolve package %q: not in the dependency manifest", specifier)
}

// probe tries p literally, with each source extension, the same under
// src/, and finally as a directory index.
func (h *Hooks) probe(specifier, p string) (ResolvedID, error) {
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	var candidates []string
	add := func(base string) {
		candidates = append(candidates, base)
		for _, ext := range probeExts {
			candidates = append(candidates, base+ext)
		}
	}
	add(p)
	if !strings.HasPrefix(p, "src/") {
		add("src/" + p)
	}
	for _, ext := range probeExts {
		candidates = append(candidates, p+"/index"+ext)
	}

	for _, c := range candidates {
		if _, ok := h.files[c]; ok {
			return ResolvedID{Namespace: NamespaceProject, Path: c}, nil
		}
	}
	return ResolvedID{}, resolveErr(StageResolve, "could not resolve %q: %w", specifier, apperr.ErrNotFound)
}

// Load returns the module text for id.
func (h *Hooks) Load(id ResolvedID) (Loaded, error) {
	switch id.Namespace {
	case NamespaceExternal:
		url := h.ExternalURL(id.Path)
		text := fmt.Sprintf("import * as m from %[1]q;\nexport * from %[1]q;\nexport default (m.default ?? m);\n", url)
		return Loaded{Text: text, Loader: LoaderJS}, nil

	case NamespaceProject:
		text, ok := h.files[id.Path]
		if !ok {
			return Loaded{}, resolveErr(StageLoad, "load %s: %w", id.Path, apperr.ErrNotFound)
		}
		return loadLocal(id.Path, h.rewriter.Rewrite(id.Path, text)), nil
	}
	return Loaded{}, resolveErr(StageLoad, "load %s:%s: unknown namespace", id.Namespace, id.Path)
}

// ExternalURL maps a package specifier to its CDN module URL.
func (h *Hooks) ExternalURL(specifier string) string {
	name := deps.Specifier(specifier)
	sub := strings.TrimPrefix(specifier, name)

	version := runtimeVersions[name]
	if version == "" {
		version = h.manifest[name]
	}
	if version == "" || version == "latest" || version == "*" {
		return h.cdn + "/" + name + sub
	}
	return h.cdn + "/" + name + "@" + version + sub
}

func loadLocal(p, text string) Loaded {
	switch strings.ToLower(path.Ext(p)) {
	case ".tsx":
		return Loaded{Text: text, Loader: LoaderTSX}
	case ".ts", ".mts":
		return Loaded{Text: text, Loader: LoaderTS}
	case ".jsx", ".js", ".mjs", ".cjs":
		return Loaded{Text: text, Loader: LoaderJSX}
	case ".json":
		return Loaded{Text: text, Loader: LoaderJSON}
	case ".css":
		return Loaded{Text: styleModule(text), Loader: LoaderJS}
	}
	return Loaded{Text: text, Loader: LoaderText}
}

// styleModule wraps a stylesheet in a module that injects it on import.
func styleModule(css string) string {
	quoted, _ := json.Marshal(css)
	return "const css = " + string(quoted) + ";\n" +
		"if (typeof document !== \"undefined\") {\n" +
		"  const el = document.createElement(\"style\");\n" +
		"  el.textContent = css;\n" +
		"  document.head.appendChild(el);\n" +
		"}\n" +
		"export default css;\n"
}

func resolveErr(stage Stage, format string, args ...any) error {
	return &ResolveError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
