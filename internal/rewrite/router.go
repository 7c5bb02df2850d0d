package rewrite

import (
	"regexp"
	"strings"
)

const routerPackage = "react-router-dom"

var (
	namedRouterImport = regexp.MustCompile(`import\s*(?:([\w$]+)\s*,\s*)?\{([^}]*)\}\s*from\s*(['"])react-router-dom['"]`)
	namespaceImport   = regexp.MustCompile(`import\s*\*\s*as\s+([\w$]+)\s+from\s*['"]react-router-dom['"]`)
	importSpecifier   = regexp.MustCompile(`^(type\s+)?([\w$]+)(?:\s+as\s+([\w$]+))?$`)
)

// rewriteRouter swaps the history-based router for the hash-based one. The
// hash router is imported under the original local name so JSX call sites
// keep working unchanged.
func rewriteRouter(text string) string {
	if !strings.Contains(text, routerPackage) || !strings.Contains(text, "BrowserRouter") {
		return text
	}

	text = namedRouterImport.ReplaceAllStringFunc(text, func(stmt string) string {
		m := namedRouterImport.FindStringSubmatch(stmt)
		defaultName, list, quote := m[1], m[2], m[3]

		var specs []string
		changed := false
		for _, raw := range strings.Split(list, ",") {
			spec := strings.Join(strings.Fields(raw), " ")
			if spec == "" {
				continue
			}
			if sm := importSpecifier.FindStringSubmatch(spec); sm != nil && sm[2] == "BrowserRouter" {
				local := sm[3]
				if local == "" {
					local = "BrowserRouter"
				}
				spec = sm[1] + "HashRouter as " + local
				changed = true
			}
			specs = append(specs, spec)
		}
		if !changed {
			return stmt
		}

		var b strings.Builder
		b.WriteString("import ")
		if defaultName != "" {
			b.WriteString(defaultName + ", ")
		}
		b.WriteString("{ " + strings.Join(specs, ", ") + " } from " + quote + routerPackage + quote)
		return b.String()
	})

	for _, m := range namespaceImport.FindAllStringSubmatch(text, -1) {
		tag := regexp.MustCompile(`(</?)` + regexp.QuoteMeta(m[1]) + `\.BrowserRouter\b`)
		text = tag.ReplaceAllString(text, "${1}"+m[1]+".HashRouter")
	}
	return text
}
