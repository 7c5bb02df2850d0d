package rewrite

import (
	"regexp"
	"strings"
)

var (
	defaultExportedFunc = regexp.MustCompile(`\bexport\s+default\s+(?:async\s+)?function\b`)
	reactImport         = regexp.MustCompile(`\bimport\s+[^;]*?\bfrom\s*['"]react['"]|\bimport\s*['"]react['"]|\brequire\s*\(\s*['"]react['"]\s*\)`)
	directivePrologue   = regexp.MustCompile(`^(?:\s*(?:"[^"\n]*"|'[^'\n]*')[ \t]*(?:;[ \t]*\n?|\n|$))*`)
)

// insertReactImport adds `import React from "react"` to a file that
// default-exports a function but never imports React. The import goes after
// any leading directives such as "use client".
func insertReactImport(text string) string {
	if !defaultExportedFunc.MatchString(text) || reactImport.MatchString(text) {
		return text
	}
	loc := directivePrologue.FindStringIndex(text)
	head, tail := text[:loc[1]], text[loc[1]:]
	if head != "" && !strings.HasSuffix(head, "\n") {
		head = strings.TrimRight(head, " \t") + "\n"
	}
	return head + "import React from \"react\";\n" + tail
}
