package rewrite

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	htmlComment = regexp.MustCompile(`(?s)<!--(.*?)-->`)
	styleBlock  = regexp.MustCompile(`(?s)<style(\s[^>]*)?>(.*?)</style>`)
	styleAttr   = regexp.MustCompile(`\bstyle=(?:"([^"]*)"|'([^']*)')`)
	cssProperty = regexp.MustCompile(`^-{0,2}[A-Za-z][A-Za-z0-9-]*$`)
	exportWord  = regexp.MustCompile(`\bexport\b`)
)

// convertComments turns <!-- x --> into the JSX comment form {/* x */}.
// Dashes and comment terminators inside are broken up so the result can
// never be matched again.
func convertComments(text string) string {
	if !strings.Contains(text, "<!--") {
		return text
	}
	return htmlComment.ReplaceAllStringFunc(text, func(m string) string {
		inner := htmlComment.FindStringSubmatch(m)[1]
		inner = strings.ReplaceAll(inner, "*/", "* /")
		for strings.Contains(inner, "--") {
			inner = strings.ReplaceAll(inner, "--", "- -")
		}
		return "{/*" + inner + "*/}"
	})
}

// wrapStyleBlocks turns literal CSS inside <style> into a template literal
// so JSX treats it as a string. Blocks already starting with "{" are left
// alone.
func wrapStyleBlocks(text string) string {
	if !strings.Contains(text, "<style") {
		return text
	}
	return styleBlock.ReplaceAllStringFunc(text, func(m string) string {
		sm := styleBlock.FindStringSubmatch(m)
		attrs, css := sm[1], sm[2]
		trimmed := strings.TrimSpace(css)
		if trimmed == "" || strings.HasPrefix(trimmed, "{") {
			return m
		}
		css = strings.ReplaceAll(css, `\`, `\\`)
		css = strings.ReplaceAll(css, "`", "\\`")
		css = strings.ReplaceAll(css, "${", "\\${")
		return "<style" + attrs + ">{`" + css + "`}</style>"
	})
}

// convertStyleAttrs parses style="k: v; ..." into style={{ k: "v" }} with
// camelCase keys. An attribute with any unparseable declaration is left
// untouched.
func convertStyleAttrs(text string) string {
	if !strings.Contains(text, "style=") {
		return text
	}
	return styleAttr.ReplaceAllStringFunc(text, func(m string) string {
		sm := styleAttr.FindStringSubmatch(m)
		decls := sm[1]
		if strings.HasPrefix(m, "style='") {
			decls = sm[2]
		}

		var fields []string
		for _, decl := range strings.Split(decls, ";") {
			if strings.TrimSpace(decl) == "" {
				continue
			}
			key, value, ok := strings.Cut(decl, ":")
			key, value = strings.TrimSpace(key), strings.TrimSpace(value)
			if !ok || !cssProperty.MatchString(key) {
				return m
			}
			fields = append(fields, styleKey(key)+": "+jsString(value))
		}
		if len(fields) == 0 {
			return "style={{}}"
		}
		return "style={{ " + strings.Join(fields, ", ") + " }}"
	})
}

// styleKey converts a CSS property name into a React style key. Custom
// properties keep their name as a quoted key; vendor prefixes follow React
// (-webkit-x -> WebkitX, -ms-x -> msX).
func styleKey(prop string) string {
	if strings.HasPrefix(prop, "--") {
		return jsString(prop)
	}
	vendor := strings.HasPrefix(prop, "-") && !strings.HasPrefix(prop, "-ms-")
	parts := strings.Split(strings.TrimPrefix(strings.ToLower(prop), "-"), "-")

	var b strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 && !vendor {
			b.WriteString(part)
			continue
		}
		r := []rune(part)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

var jsEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

func jsString(s string) string {
	return `"` + jsEscaper.Replace(s) + `"`
}

// wrapBareMarkup wraps a file that is nothing but top-level markup in a
// default-exported component.
func wrapBareMarkup(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "<") || strings.HasPrefix(trimmed, "<!") ||
		strings.HasPrefix(trimmed, "<script") || exportWord.MatchString(text) {
		return text
	}

	var b strings.Builder
	b.WriteString("import React from \"react\";\n\n")
	b.WriteString("export default function Component() {\n")
	b.WriteString("  return (\n    <>\n")
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.TrimSpace(line) == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString("      " + line + "\n")
	}
	b.WriteString("    </>\n  );\n}\n")
	return b.String()
}
