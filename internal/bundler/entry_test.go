package bundler

import "testing"

func TestResolveEntry(t *testing.T) {
	cases := []struct {
		name   string
		files  []string
		active string
		want   string
		ok     bool
	}{
		{"active script wins", []string{"src/main.tsx", "src/Other.tsx"}, "src/Other.tsx", "src/Other.tsx", true},
		{"active stylesheet ignored", []string{"src/main.tsx", "src/a.css"}, "src/a.css", "src/main.tsx", true},
		{"main before index", []string{"src/index.tsx", "src/main.tsx"}, "", "src/main.tsx", true},
		{"tsx before jsx", []string{"src/main.jsx", "src/main.tsx"}, "", "src/main.tsx", true},
		{"jsx before ts", []string{"src/index.ts", "src/index.jsx"}, "", "src/index.jsx", true},
		{"root App", []string{"App.jsx", "README.md"}, "", "App.jsx", true},
		{"src before root", []string{"index.tsx", "src/App.tsx"}, "", "src/App.tsx", true},
		{"html index", []string{"index.html", "style.css"}, "", "index.html", true},
		{"any html page", []string{"pages/b.html", "pages/a.html"}, "", "pages/a.html", true},
		{"active markdown", []string{"notes.md", "index.html"}, "notes.md", "notes.md", true},
		{"nothing buildable", []string{"style.css"}, "", "", false},
		{"stale active", []string{"App.tsx"}, "gone.tsx", "App.tsx", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			files := map[string]string{}
			for _, p := range tc.files {
				files[p] = ""
			}
			got, ok := ResolveEntry(files, tc.active)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("ResolveEntry = %q, %v; want %q, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestResultKey(t *testing.T) {
	a := Failed(StageResolve, "x")
	b := Failed(StageLink, "x")
	if a.Key() == b.Key() || a.Key() != Failed(StageResolve, "x").Key() {
		t.Fatal("keys should distinguish stage and match equal failures")
	}
	if (Result{OK: true}).Key() != "" {
		t.Fatal("success has no key")
	}
}
