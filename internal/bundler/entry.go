package bundler

import (
	"path"
	"sort"
	"strings"
)

var entryBases = []string{"src/main", "src/index", "src/App", "index", "App"}

var entryExts = []string{".tsx", ".jsx", ".ts", ".js"}

// IsScriptEntry reports whether p can be bundled as a script entry.
func IsScriptEntry(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".tsx", ".jsx", ".ts", ".js", ".mjs":
		return true
	}
	return false
}

// IsPageEntry reports whether p is served through the pages path.
func IsPageEntry(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm", ".md", ".markdown":
		return true
	}
	return false
}

// ResolveEntry picks the entry for a build: the active file when it is
// buildable, else the first conventional script entry, else an HTML index.
func ResolveEntry(files map[string]string, active string) (string, bool) {
	if _, ok := files[active]; ok && (IsScriptEntry(active) || IsPageEntry(active)) {
		return active, true
	}
	for _, base := range entryBases {
		for _, ext := range entryExts {
			if _, ok := files[base+ext]; ok {
				return base + ext, true
			}
		}
	}
	for _, p := range []string{"index.html", "public/index.html", "src/index.html"} {
		if _, ok := files[p]; ok {
			return p, true
		}
	}

	var pages []string
	for p := range files {
		if strings.HasSuffix(strings.ToLower(p), ".html") {
			pages = append(pages, p)
		}
	}
	if len(pages) > 0 {
		sort.Strings(pages)
		return pages[0], true
	}
	return "", false
}
