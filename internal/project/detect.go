package project

import (
	"path"
	"strings"

	"github.com/starford/jstcode/internal/jsconfig"
)

// Project types used to pick a starter template and preview path.
const (
	TypeReactTS = "react-ts"
	TypeReact   = "react"
	TypeVue     = "vue"
	TypeSvelte  = "svelte"
	TypeNode    = "node"
	TypeHTML    = "html"
	TypeVanilla = "vanilla"
)

// DetectProjectType guesses the project flavour from package.json and file
// extensions.
func DetectProjectType(files map[string]string) string {
	hasExt := func(exts ...string) bool {
		for p := range files {
			ext := strings.ToLower(path.Ext(p))
			for _, e := range exts {
				if ext == e {
					return true
				}
			}
		}
		return false
	}

	for p, text := range files {
		if path.Base(p) != "package.json" {
			continue
		}
		pkg, err := jsconfig.ParsePackageJSON([]byte(text))
		if err != nil {
			continue
		}
		deps := pkg.AllDependencies()
		if _, ok := deps["react"]; ok {
			if hasExt(".ts", ".tsx") {
				return TypeReactTS
			}
			return TypeReact
		}
		if _, ok := deps["vue"]; ok {
			return TypeVue
		}
		return TypeNode
	}

	switch {
	case hasExt(".tsx", ".ts"):
		return TypeReactTS
	case hasExt(".jsx"):
		return TypeReact
	case hasExt(".vue"):
		return TypeVue
	case hasExt(".svelte"):
		return TypeSvelte
	case hasExt(".html", ".htm"):
		return TypeHTML
	}
	return TypeVanilla
}
