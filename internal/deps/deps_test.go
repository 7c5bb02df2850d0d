package deps

import (
	"slices"
	"testing"
)

func TestInferIncludesBase(t *testing.T) {
	m := Infer(map[string]string{"App.tsx": `export default function App() { return null }`})
	for name := range Base() {
		if !m.Has(name) {
			t.Fatalf("manifest missing base package %s: %v", name, m)
		}
	}
	if len(m) != len(Base()) {
		t.Fatalf("manifest = %v, want only the base", m)
	}
}

func TestInferFramerMotion(t *testing.T) {
	m := Infer(map[string]string{"App.tsx": `import { motion } from "framer-motion"`})
	for name, version := range Base() {
		if m[name] != version {
			t.Fatalf("%s = %q, want %q", name, m[name], version)
		}
	}
	if !m.Has("framer-motion") {
		t.Fatalf("framer-motion not inferred: %v", m)
	}
}

func TestInferImportForms(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"from", `import clsx from 'clsx';`, "clsx"},
		{"bare", `import "lodash-es";`, "lodash-es"},
		{"require", `const axios = require("axios")`, "axios"},
		{"dynamic", `const m = await import('recharts')`, "recharts"},
		{"subpath", `import { format } from "date-fns/format"`, "date-fns"},
		{"scoped", `import { useQuery } from "@tanstack/react-query"`, "@tanstack/react-query"},
		{"multiline", "import {\n  Link,\n  Route,\n} from \"react-router-dom\";", "react-router-dom"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := Infer(map[string]string{"src/x.js": tc.src})
			if !m.Has(tc.want) {
				t.Fatalf("%s not inferred from %q: %v", tc.want, tc.src, m)
			}
		})
	}
}

func TestInferIgnoresLookalikes(t *testing.T) {
	src := `
import uuidish from "uuid-lite";
// mentions zustand in a comment
const s = "axios";
`
	m := Infer(map[string]string{"a.ts": src})
	for _, name := range []string{"uuid", "zustand", "axios"} {
		if m.Has(name) {
			t.Fatalf("%s should not be inferred: %v", name, m)
		}
	}
}

func TestInferSkipsNonSource(t *testing.T) {
	m := Infer(map[string]string{"notes.md": `import { motion } from "framer-motion"`})
	if m.Has("framer-motion") {
		t.Fatal("markdown file should not be scanned")
	}
}

func TestInferMergesPackageJSON(t *testing.T) {
	files := map[string]string{
		"package.json": `{
  // jsonc is accepted
  "dependencies": {"framer-motion": "10.16.4", "nanoid": "^5.0.0",},
}`,
		"src/App.tsx": `import { motion } from "framer-motion"`,
	}
	m := Infer(files)
	if m["framer-motion"] != "10.16.4" {
		t.Fatalf("declared range lost: %q", m["framer-motion"])
	}
	if m["nanoid"] != "^5.0.0" {
		t.Fatalf("declared dependency missing: %v", m)
	}
}

func TestNames(t *testing.T) {
	got := Base().Names()
	if !slices.IsSorted(got) || len(got) != 4 {
		t.Fatalf("Names() = %v", got)
	}
}

func TestSpecifier(t *testing.T) {
	cases := map[string]string{
		"react":                   "react",
		"react/jsx-runtime":       "react",
		"@tanstack/react-query":   "@tanstack/react-query",
		"@tanstack/react-query/x": "@tanstack/react-query",
		"@scope":                  "",
		"./App":                   "",
		"../lib/x":                "",
		"/src/App":                "",
		"@/components/Button":     "",
		"https://esm.sh/react@18": "",
		"":                        "",
	}
	for in, want := range cases {
		if got := Specifier(in); got != want {
			t.Errorf("Specifier(%q) = %q, want %q", in, got, want)
		}
	}
}
