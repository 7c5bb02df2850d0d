package preview

import (
	"bytes"
	"html/template"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

var (
	markdownOnce     sync.Once
	markdownInstance goldmark.Markdown
)

func markdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.DefinitionList,
			),
		)
	})
	return markdownInstance
}

// splitFrontMatter separates a leading YAML block delimited by "---" lines.
// Malformed front matter is treated as body text.
func splitFrontMatter(text string) (map[string]any, string) {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	if !strings.HasPrefix(normalized, "---\n") {
		return nil, text
	}
	rest := normalized[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, text
	}
	after := rest[end+len("\n---"):]
	if after != "" && after[0] != '\n' {
		return nil, text
	}

	fm := map[string]any{}
	if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err != nil {
		return nil, text
	}
	return fm, strings.TrimPrefix(after, "\n")
}

var markdownTmpl = template.Must(template.New("markdown").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body { margin: 0 auto; padding: 24px; max-width: 760px; font-family: system-ui, sans-serif; line-height: 1.6; }
pre { padding: 12px; overflow: auto; background: #f4f4f5; border-radius: 4px; }
table { border-collapse: collapse; } td, th { border: 1px solid #ddd; padding: 4px 8px; }
</style>
</head>
<body>
<article>
{{.Body}}
</article>
</body>
</html>
`))

// RenderMarkdownPage renders a markdown file as a standalone page. The
// front matter title wins over fallbackTitle.
func RenderMarkdownPage(text, fallbackTitle string) ([]byte, error) {
	fm, body := splitFrontMatter(text)
	title := fallbackTitle
	if t, ok := fm["title"].(string); ok && t != "" {
		title = t
	}

	var rendered bytes.Buffer
	if err := markdown().Convert([]byte(body), &rendered); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	err := markdownTmpl.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(rendered.String())})
	if err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
