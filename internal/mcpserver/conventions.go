package mcpserver

// ProjectConventions describes how a project must be laid out for the
// preview to build it. LLM consumers should read it before writing files.
const ProjectConventions = `# jstcode Project Conventions

A project is a flat map of paths to text. The preview rebuilds it on every
change and shows either a bundled React app or static HTML pages.

## Entry point

The build starts from the first of these that exists:

1. the active file, when it is a script or an HTML page;
2. ` + "`src/main`, `src/index`, `src/App`, `index`, `App`" + ` with a
   ` + "`.tsx`, `.jsx`, `.ts` or `.js`" + ` extension;
3. ` + "`index.html`, `public/index.html`, `src/index.html`" + `;
4. the first HTML file in path order.

A script entry whose default export is a component is mounted into
` + "`#root`" + ` when the bundle rendered nothing itself, so an entry may either
call ` + "`createRoot`" + ` or just export the app.

## Packages

- There is no ` + "`node_modules`" + `. Bare imports (` + "`import { motion } from \"framer-motion\"`" + `)
  are served as ES modules from a CDN.
- ` + "`react`" + ` and ` + "`react-dom`" + ` are always available (React 18).
- Common packages are detected from their imports and get a known version.
  Any other package must be listed in ` + "`package.json`" + `, whose ranges also
  win over the known ones. Call ` + "`infer_dependencies`" + ` to see the result.
- Relative imports may omit the extension. ` + "`paths`" + ` aliases from
  ` + "`tsconfig.json`" + ` or ` + "`jsconfig.json`" + ` (e.g. ` + "`@/components/Button`" + `) resolve.

## Routing

The preview has no server-side routing. ` + "`BrowserRouter`" + ` from
` + "`react-router-dom`" + ` is rewritten to ` + "`HashRouter`" + ` before the build; write
links as usual. Call ` + "`rewrite_preview`" + ` to see what a file becomes.

## Static pages

- Without a script entry, HTML pages are served as they are. Local
  ` + "`<link rel=\"stylesheet\">`" + ` and ` + "`<script src>`" + ` references to project
  files are inlined.
- Markdown files become pages. YAML front matter (` + "`title`" + `) is read.

## Files

- Paths use forward slashes and no leading slash. Folders are implied.
- Only source files are kept: scripts, styles, markup, JSON, Markdown
  and plain text. Binary assets are dropped.
- Encoding is UTF-8.

## Errors

Build failures are reported verbatim with file, line and column by
` + "`build_status`" + `. Console output and runtime errors of the running
preview are listed by ` + "`preview_logs`" + `.
`
