// Package rewrite applies best-effort source compatibility fixes before
// bundling. Every transform is a targeted regular expression rewrite that
// runs only when its trigger is present, and the whole pipeline is
// idempotent: Rewrite(p, Rewrite(p, t)) == Rewrite(p, t).
package rewrite

import (
	"path"
	"strings"

	"github.com/starford/jstcode/internal/jsconfig"
)

// Rewriter holds the per-project rewrite configuration.
type Rewriter struct {
	markup  bool
	aliases []aliasRule
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithMarkup enables the HTML-to-JSX dialect fixes (comments, style
// blocks, style attributes, bare markup wrapping).
func WithMarkup() Option {
	return func(r *Rewriter) { r.markup = true }
}

// WithAliases adds project path aliases on top of the built-in "@/" alias.
func WithAliases(aliases []jsconfig.Alias) Option {
	return func(r *Rewriter) {
		for _, a := range aliases {
			if rule, ok := newAliasRule(a); ok {
				r.aliases = append(r.aliases, rule)
			}
		}
	}
}

// New creates a Rewriter.
func New(opts ...Option) *Rewriter {
	r := &Rewriter{aliases: []aliasRule{defaultAlias}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRewriter = New()

// Rewrite applies the default pipeline (router and alias fixes, missing
// React import) to a file.
func Rewrite(p, text string) string {
	return defaultRewriter.Rewrite(p, text)
}

// Rewrite returns text with the compatibility transforms applied. Files
// that are not scripts pass through unchanged.
func (r *Rewriter) Rewrite(p, text string) string {
	ext := strings.ToLower(path.Ext(p))
	if !scriptExts[ext] {
		return text
	}

	text = rewriteRouter(text)
	text = r.rewriteAliases(text)
	if !jsxExts[ext] {
		return text
	}
	if r.markup {
		text = convertComments(text)
		text = wrapStyleBlocks(text)
		text = convertStyleAttrs(text)
		text = wrapBareMarkup(text)
	}
	return insertReactImport(text)
}

// RewriteAll rewrites every file of a path -> text map into a new map.
func (r *Rewriter) RewriteAll(files map[string]string) map[string]string {
	out := make(map[string]string, len(files))
	for p, text := range files {
		out[p] = r.Rewrite(p, text)
	}
	return out
}

var scriptExts = map[string]bool{".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true}

var jsxExts = map[string]bool{".js": true, ".jsx": true, ".tsx": true, ".mjs": true}
