package project

import (
	"path"
	"strings"
)

// Editor language ids by extension. Unknown extensions map to "plaintext".
var languages = map[string]string{
	".ts":     "typescript",
	".tsx":    "typescriptreact",
	".js":     "javascript",
	".mjs":    "javascript",
	".jsx":    "javascriptreact",
	".json":   "json",
	".css":    "css",
	".scss":   "scss",
	".sass":   "sass",
	".html":   "html",
	".htm":    "html",
	".md":     "markdown",
	".txt":    "plaintext",
	".vue":    "vue",
	".svelte": "svelte",
}

// LanguageOf returns the editor language id for a file name.
func LanguageOf(name string) string {
	if lang, ok := languages[strings.ToLower(path.Ext(name))]; ok {
		return lang
	}
	return "plaintext"
}

var skipPatterns = []string{
	"node_modules/", ".git/", ".next/", "dist/", "build/",
	".ds_store", "thumbs.db", ".env", ".gitignore", ".npmignore",
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml",
}

// IsCodeFile reports whether an imported path should become part of the
// project: known source extensions only, with dependency folders, build
// output, VCS metadata and lock files skipped.
func IsCodeFile(p string) bool {
	lower := strings.ToLower(CleanPath(p))
	if lower == "" {
		return false
	}
	for _, pattern := range skipPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	_, ok := languages[path.Ext(lower)]
	return ok
}
