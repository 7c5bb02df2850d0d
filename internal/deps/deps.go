// Package deps infers the external packages a project needs from its
// import statements.
package deps

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/starford/jstcode/internal/jsconfig"
)

// Manifest maps package names to version ranges.
type Manifest map[string]string

// Names returns the package names, sorted.
func (m Manifest) Names() []string {
	return slices.Sorted(maps.Keys(m))
}

// Has reports whether name is in the manifest.
func (m Manifest) Has(name string) bool {
	_, ok := m[name]
	return ok
}

// Base is always part of an inferred manifest.
func Base() Manifest {
	return Manifest{
		"react":            "^18.2.0",
		"react-dom":        "^18.2.0",
		"@types/react":     "^18.2.0",
		"@types/react-dom": "^18.2.0",
	}
}

type rule struct {
	name    string
	version string
	re      *regexp.Regexp
}

// importOf matches a quoted module specifier equal to name or one of its
// sub-paths in from, bare import, dynamic import and require position.
func importOf(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?:\bfrom\s*|\bimport\s*\(?\s*|\brequire\s*\(\s*)['"]` +
		regexp.QuoteMeta(name) + `(?:/[^'"\s]*)?['"]`)
}

func newRule(name, version string) rule {
	return rule{name: name, version: version, re: importOf(name)}
}

var table = []rule{
	newRule("react-router-dom", "^6.22.0"),
	newRule("framer-motion", "^11.0.0"),
	newRule("lucide-react", "^0.344.0"),
	newRule("date-fns", "^3.3.1"),
	newRule("lodash-es", "^4.17.21"),
	newRule("zustand", "^4.5.0"),
	newRule("clsx", "^2.1.0"),
	newRule("axios", "^1.6.7"),
	newRule("styled-components", "^6.1.8"),
	newRule("recharts", "^2.12.0"),
	newRule("@tanstack/react-query", "^5.24.0"),
	newRule("uuid", "^9.0.1"),
}

// Known returns the detectable packages with their default ranges.
func Known() Manifest {
	out := make(Manifest, len(table))
	for _, r := range table {
		out[r.name] = r.version
	}
	return out
}

// Infer scans every file for imports of known packages and returns the
// base manifest plus the matches. Dependencies declared in a root
// package.json are merged in and keep their declared range.
func Infer(files map[string]string) Manifest {
	m := Base()
	for p, text := range files {
		if !scannable(p) {
			continue
		}
		for _, r := range table {
			if m.Has(r.name) {
				continue
			}
			if strings.Contains(text, r.name) && r.re.MatchString(text) {
				m[r.name] = r.version
			}
		}
	}

	if text, ok := files["package.json"]; ok {
		if pkg, err := jsconfig.ParsePackageJSON([]byte(text)); err == nil {
			for name, version := range pkg.AllDependencies() {
				m[name] = version
			}
		}
	}
	return m
}

var sourceExts = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".vue", ".svelte", ".html"}

func scannable(p string) bool {
	for _, ext := range sourceExts {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}

// Specifier reports the package name of a bare module specifier:
// "react/jsx-runtime" is "react", "@scope/pkg/x" is "@scope/pkg". Relative,
// absolute and URL specifiers return "".
func Specifier(spec string) string {
	if spec == "" || strings.HasPrefix(spec, ".") || strings.HasPrefix(spec, "/") ||
		strings.Contains(spec, "://") || strings.HasPrefix(spec, "@/") {
		return ""
	}
	parts := strings.SplitN(spec, "/", 3)
	if strings.HasPrefix(spec, "@") {
		if len(parts) < 2 || parts[1] == "" {
			return ""
		}
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}
