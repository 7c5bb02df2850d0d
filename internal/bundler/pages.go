package bundler

import (
	"path"
	"strings"
)

// BuildPages collects a multi-page HTML project without the toolchain.
// Pages are the .html and markdown files, assets the stylesheets and
// plain scripts they may reference.
func BuildPages(req Request) Result {
	if _, ok := req.Files[req.Entry]; !ok {
		return Failed(StageResolve, "entry "+req.Entry+" not found")
	}
	res := Result{
		OK:     true,
		Format: FormatPages,
		Entry:  req.Entry,
		Pages:  map[string]string{},
		Assets: map[string]string{},
	}
	for p, text := range req.Files {
		switch strings.ToLower(path.Ext(p)) {
		case ".html", ".htm", ".md", ".markdown":
			res.Pages[p] = text
		case ".css", ".js", ".mjs":
			res.Assets[p] = text
		}
	}
	return res
}
