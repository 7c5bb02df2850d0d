package rewrite

import (
	"regexp"
	"strings"

	"github.com/starford/jstcode/internal/jsconfig"
)

// specifierLead matches the text that introduces a module specifier:
// from "...", import "...", import("...") and require("...").
const specifierLead = `(\bfrom\s*|\bimport\s*\(?\s*|\brequire\s*\(\s*)(['"])`

type aliasRule struct {
	re   *regexp.Regexp
	repl string
}

// "@/" resolves to the source root for the conventional subdirectories.
var defaultAlias = aliasRule{
	re:   regexp.MustCompile(specifierLead + `@/(components|hooks|lib|utils|types)/`),
	repl: "${1}${2}/src/${3}/",
}

func newAliasRule(a jsconfig.Alias) (aliasRule, bool) {
	if a.Prefix == "" || strings.HasPrefix(a.Prefix, ".") || strings.HasPrefix(a.Prefix, "/") ||
		!strings.HasPrefix(a.Target, "/") {
		return aliasRule{}, false
	}
	return aliasRule{
		re:   regexp.MustCompile(specifierLead + regexp.QuoteMeta(a.Prefix)),
		repl: "${1}${2}" + strings.ReplaceAll(a.Target, "$", "$$"),
	}, true
}

// rewriteAliases turns alias-prefixed specifiers into project-rooted ones
// ("/src/..."), which the bundler resolves against the project root.
func (r *Rewriter) rewriteAliases(text string) string {
	for _, rule := range r.aliases {
		text = rule.re.ReplaceAllString(text, rule.repl)
	}
	return text
}
