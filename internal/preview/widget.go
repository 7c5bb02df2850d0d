package preview

import (
	"github.com/starford/jstcode/internal/deps"
	"github.com/starford/jstcode/internal/jsconfig"
	"github.com/starford/jstcode/internal/rewrite"
)

// WidgetPayload is what an in-browser preview widget needs to render the
// project without the server-side toolchain.
type WidgetPayload struct {
	Files        map[string]string `json:"files"`
	Dependencies deps.Manifest     `json:"dependencies"`
	Entry        string            `json:"entry"`
}

// Widget prepares the widget payload. Script files go through the full
// rewriter including the markup dialect fixes.
func Widget(files map[string]string, entry string) WidgetPayload {
	proj, _ := jsconfig.Load(files)
	rw := rewrite.New(rewrite.WithMarkup(), rewrite.WithAliases(proj.Aliases()))
	return WidgetPayload{
		Files:        rw.RewriteAll(files),
		Dependencies: deps.Infer(files),
		Entry:        entry,
	}
}
