package preview

import (
	"bytes"
	"html/template"
)

// shim forwards console calls and uncaught errors to the parent frame and
// shows them in a transient overlay instead of a blank screen.
const shim = `(function () {
  var send = function (msg) { try { parent.postMessage(msg, "*"); } catch (e) {} };
  var plain = function (v) {
    if (typeof v === "string") return v;
    try { return JSON.parse(JSON.stringify(v)); } catch (e) { return String(v); }
  };
  ["log", "info", "warn", "error"].forEach(function (method) {
    var orig = console[method];
    console[method] = function () {
      var args = Array.prototype.slice.call(arguments);
      send({ type: "console", method: method, data: args.map(plain) });
      orig.apply(console, args);
    };
  });
  var overlay = function (text) {
    var el = document.getElementById("__preview_overlay");
    if (!el) {
      el = document.createElement("pre");
      el.id = "__preview_overlay";
      el.style.cssText = "position:fixed;left:0;right:0;bottom:0;margin:0;padding:8px 12px;max-height:40%;overflow:auto;background:#2b1111;color:#ff8a8a;font:12px/1.4 monospace;white-space:pre-wrap;z-index:2147483647";
      (document.body || document.documentElement).appendChild(el);
    }
    el.textContent = text;
    clearTimeout(el.__timer);
    el.__timer = setTimeout(function () { el.remove(); }, 8000);
  };
  window.onerror = function (message, source, lineno, colno, error) {
    var text = error && error.message ? error.message : String(message);
    overlay(text);
    send({ type: "runtime-error", message: text, filename: source || "", lineno: lineno || 0 });
    return true;
  };
  window.addEventListener("unhandledrejection", function (e) {
    var r = e.reason;
    var text = "Unhandled rejection: " + (r && r.message ? r.message : String(r));
    overlay(text);
    send({ type: "runtime-error", message: text });
  });
  window.__previewHostError = function (err) {
    var text = err && err.message ? err.message : String(err);
    overlay(text);
    send({ type: "host-error", message: text });
  };
})();`

// hostTmpl loads the bundle as a module from a blob URL so a failing module
// graph is reported as a host error. A default-exported component is
// mounted into #root when the bundle rendered nothing itself.
var hostTmpl = template.Must(template.New("host").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>body { margin: 0; padding: 20px; font-family: system-ui, sans-serif; } * { box-sizing: border-box; }</style>
<script>{{.Shim}}</script>
</head>
<body>
<div id="root"></div>
<script type="module">
const source = {{.Bundle}};
const url = URL.createObjectURL(new Blob([source], { type: "text/javascript" }));
import(url).then(function (mod) {
  const root = document.getElementById("root");
  if (!mod || typeof mod.default !== "function" || root.childNodes.length > 0) return;
  return Promise.all([import({{.ReactURL}}), import({{.ReactDOMURL}})]).then(function (libs) {
    libs[1].createRoot(root).render(libs[0].createElement(mod.default));
  });
}).catch(function (err) {
  window.__previewHostError(err);
}).finally(function () {
  URL.revokeObjectURL(url);
});
</script>
</body>
</html>
`))

type hostData struct {
	Title       string
	Shim        template.JS
	Bundle      string
	ReactURL    string
	ReactDOMURL string
}

// HostDocument wraps a bundle into the preview host document.
func HostDocument(title, bundle, cdn string) ([]byte, error) {
	var buf bytes.Buffer
	err := hostTmpl.Execute(&buf, hostData{
		Title:       title,
		Shim:        template.JS(shim),
		Bundle:      bundle,
		ReactURL:    cdn + "/react@18",
		ReactDOMURL: cdn + "/react-dom@18/client",
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
