package preview

import (
	"bytes"
	"html/template"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/starford/jstcode/internal/bundler"
)

var errorTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { margin: 0; padding: 20px; background: #1e1e1e; color: #e4e4e7; font-family: system-ui, sans-serif; }
h1 { margin: 0 0 12px; font-size: 16px; color: #f87171; }
.where { margin-bottom: 8px; color: #a1a1aa; font: 12px monospace; }
.line pre { margin: 0 0 12px; padding: 8px 12px; border-radius: 4px; }
pre.message { margin: 0; white-space: pre-wrap; font: 13px/1.5 monospace; }
</style>
</head>
<body>
<h1>Build failed{{if .Stage}} ({{.Stage}}){{end}}</h1>
{{- if .File}}
<div class="where">{{.File}}{{if .Line}}:{{.Line}}:{{.Column}}{{end}}</div>
{{- end}}
{{- if .Highlighted}}
<div class="line">{{.Highlighted}}</div>
{{- end}}
<pre class="message">{{.Message}}</pre>
</body>
</html>
`))

// ErrorDocument renders a failed build: the diagnostic verbatim, its
// location and the highlighted offending line.
func ErrorDocument(title string, res bundler.Result) ([]byte, error) {
	data := struct {
		Title       string
		Stage       bundler.Stage
		File        string
		Line        int
		Column      int
		Highlighted template.HTML
		Message     string
	}{
		Title:   title,
		Stage:   res.Stage,
		File:    res.File,
		Line:    res.Line,
		Column:  res.Column,
		Message: res.Message,
	}
	if res.LineText != "" {
		data.Highlighted = highlight(res.File, res.LineText)
	}

	var buf bytes.Buffer
	if err := errorTmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// highlight renders one line of source as inline-styled HTML. It falls
// back to escaped plain text when the lexer or formatter fails.
func highlight(filename, code string) template.HTML {
	lexer := lexers.Match(filename)
	if lexer == nil {
		lexer = lexers.Get("tsx")
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(2))

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(code) + "</pre>")
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(code) + "</pre>")
	}
	return template.HTML(buf.String())
}
