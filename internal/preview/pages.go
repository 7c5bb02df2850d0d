package preview

import (
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/starford/jstcode/internal/bundler"
)

// navigator swaps the document for another project page on link clicks.
// Scripts inside a swapped page do not run.
const navigator = `(function () {
  var pages = window.__PAGES__ || {};
  var current = window.__PAGE__ || "";
  var resolve = function (href) {
    if (!href || /^(?:[a-z][a-z0-9+.-]*:|#|\/\/)/i.test(href)) return null;
    var base = current.indexOf("/") >= 0 ? current.slice(0, current.lastIndexOf("/") + 1) : "";
    var clean = href.split("#")[0].split("?")[0];
    var parts = (clean.charAt(0) === "/" ? clean.slice(1) : base + clean).split("/");
    var out = [];
    parts.forEach(function (p) {
      if (p === "..") out.pop();
      else if (p !== "." && p !== "") out.push(p);
    });
    var p = out.join("/");
    var candidates = p === "" ? ["index.html"] : [p, p + ".html", p + "/index.html"];
    for (var i = 0; i < candidates.length; i++) {
      if (Object.prototype.hasOwnProperty.call(pages, candidates[i])) return candidates[i];
    }
    return null;
  };
  document.addEventListener("click", function (e) {
    var a = e.target && e.target.closest ? e.target.closest("a[href]") : null;
    if (!a) return;
    var target = resolve(a.getAttribute("href"));
    if (target === null) return;
    e.preventDefault();
    current = target;
    document.documentElement.innerHTML = pages[target];
    window.scrollTo(0, 0);
  }, true);
})();`

var (
	stylesheetLink = regexp.MustCompile(`(?i)<link\b[^>]*?\bhref\s*=\s*["']([^"']+\.css)["'][^>]*>`)
	scriptSrc      = regexp.MustCompile(`(?is)<script\b([^>]*?)\bsrc\s*=\s*["']([^"']+)["']([^>]*)>\s*</script>`)
	headClose      = regexp.MustCompile(`(?i)</head\s*>`)
	bodyOpen       = regexp.MustCompile(`(?i)<body\b`)
)

// PagesDocument renders a toolchain-free multi-page project: every page is
// prepared up front (markdown rendered, local assets inlined) and the entry
// page is served with a navigator that swaps pages in place.
func PagesDocument(res bundler.Result, title string) ([]byte, error) {
	pages := make(map[string]string, len(res.Pages))
	for p, text := range res.Pages {
		html, err := preparePage(p, text, res.Assets, title)
		if err != nil {
			return nil, fmt.Errorf("preview: page %s: %w", p, err)
		}
		pages[p] = html
	}
	entry, ok := pages[res.Entry]
	if !ok {
		return nil, fmt.Errorf("preview: entry page %s missing", res.Entry)
	}

	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return nil, err
	}
	entryJSON, _ := json.Marshal(res.Entry)
	inject := "<script>" + shim + "</script>\n<script>window.__PAGES__ = " + string(pagesJSON) +
		";\nwindow.__PAGE__ = " + string(entryJSON) + ";\n" + navigator + "</script>\n"

	return []byte(injectHead(entry, inject)), nil
}

func preparePage(p, text string, assets map[string]string, title string) (string, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		out, err := RenderMarkdownPage(text, title)
		return string(out), err
	}
	return inlineAssets(p, text, assets), nil
}

// inlineAssets replaces references to project stylesheets and scripts with
// their contents. References that do not resolve are left alone.
func inlineAssets(page, html string, assets map[string]string) string {
	dir := path.Dir(page)
	lookup := func(ref string) (string, bool) {
		if strings.Contains(ref, "://") || strings.HasPrefix(ref, "//") {
			return "", false
		}
		var p string
		if strings.HasPrefix(ref, "/") {
			p = strings.TrimPrefix(path.Clean(ref), "/")
		} else {
			p = strings.TrimPrefix(path.Clean("/"+path.Join(dir, ref)), "/")
		}
		text, ok := assets[p]
		return text, ok
	}

	html = stylesheetLink.ReplaceAllStringFunc(html, func(tag string) string {
		m := stylesheetLink.FindStringSubmatch(tag)
		css, ok := lookup(m[1])
		if !ok {
			return tag
		}
		return "<style>\n" + strings.ReplaceAll(css, "</style", "<\\/style") + "\n</style>"
	})
	html = scriptSrc.ReplaceAllStringFunc(html, func(tag string) string {
		m := scriptSrc.FindStringSubmatch(tag)
		js, ok := lookup(m[2])
		if !ok {
			return tag
		}
		attrs := strings.TrimRight(m[1]+strings.TrimSpace(m[3]), " ")
		if attrs != "" && attrs[0] != ' ' {
			attrs = " " + attrs
		}
		return "<script" + attrs + ">\n" +
			strings.ReplaceAll(js, "</script", "<\\/script") + "\n</script>"
	})
	return html
}

// injectHead inserts markup at the end of <head>, or before <body>, or at
// the very start.
func injectHead(html, markup string) string {
	if loc := headClose.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + markup + html[loc[0]:]
	}
	if loc := bodyOpen.FindStringIndex(html); loc != nil {
		return html[:loc[0]] + markup + html[loc[0]:]
	}
	return markup + html
}
