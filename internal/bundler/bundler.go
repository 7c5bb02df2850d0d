// Package bundler turns a snapshot of project files into a runnable preview
// bundle. Module resolution and loading are pure functions over the
// snapshot (Hooks); Engine drives esbuild through them.
package bundler

import (
	"time"

	"github.com/starford/jstcode/internal/deps"
)

// Stage names the build phase that failed.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageLoad      Stage = "load"
	StageTransform Stage = "transform"
	StageLink      Stage = "link"
)

// Format is the shape of a successful result.
type Format string

const (
	// FormatScript is a single ES module produced by the toolchain.
	FormatScript Format = "script"
	// FormatPages is a toolchain-free multi-page HTML project.
	FormatPages Format = "pages"
)

// Request is an immutable build input taken at rebuild-trigger time.
type Request struct {
	Entry string
	Files map[string]string
	// Manifest overrides the inferred dependencies when non-nil.
	Manifest deps.Manifest
}

// Result is the outcome of a build. On failure Stage and Message are set;
// Message is the toolchain's diagnostic text.
type Result struct {
	OK       bool              `json:"ok"`
	Format   Format            `json:"format,omitempty"`
	Entry    string            `json:"entry,omitempty"`
	Bundle   string            `json:"bundle,omitempty"`
	Pages    map[string]string `json:"pages,omitempty"`
	Assets   map[string]string `json:"assets,omitempty"`
	Stage    Stage             `json:"stage,omitempty"`
	Message  string            `json:"message,omitempty"`
	File     string            `json:"file,omitempty"`
	Line     int               `json:"line,omitempty"`
	Column   int               `json:"column,omitempty"`
	LineText string            `json:"lineText,omitempty"`
	Duration time.Duration     `json:"durationNs"`
}

// Failed builds a failure result.
func Failed(stage Stage, message string) Result {
	return Result{Stage: stage, Message: message}
}

// Key identifies a failure for retry accounting.
func (r Result) Key() string {
	if r.OK {
		return ""
	}
	return string(r.Stage) + "\x00" + r.Message
}
