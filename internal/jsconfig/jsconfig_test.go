package jsconfig

import "testing"

func TestParsePackageJSONAcceptsComments(t *testing.T) {
	data := []byte(`{
		// app manifest
		"name": "demo",
		"dependencies": {"react": "^18.2.0", "zustand": "^4.5.0",},
		"devDependencies": {"typescript": "^5.0.0", "react": "^18.0.0"}
	}`)
	p, err := ParsePackageJSON(data)
	if err != nil {
		t.Fatalf("ParsePackageJSON: %v", err)
	}
	if p.Name != "demo" {
		t.Fatalf("name = %q", p.Name)
	}
	all := p.AllDependencies()
	if all["react"] != "^18.2.0" {
		t.Fatalf("dependencies must win over devDependencies, got %q", all["react"])
	}
	if all["typescript"] != "^5.0.0" || all["zustand"] != "^4.5.0" {
		t.Fatalf("unexpected merge: %v", all)
	}
}

func TestTSConfigAliases(t *testing.T) {
	data := []byte(`{
		"compilerOptions": {
			"baseUrl": ".",
			/* path aliases */
			"paths": {
				"~/*": ["./src/*"],
				"@ui/*": ["src/components/ui/*"],
				"exact": ["src/exact.ts"]
			}
		}
	}`)
	cfg, err := ParseTSConfig(data)
	if err != nil {
		t.Fatalf("ParseTSConfig: %v", err)
	}
	aliases := cfg.Aliases()
	if len(aliases) != 2 {
		t.Fatalf("aliases = %+v, want 2 entries", aliases)
	}
	if aliases[0].Prefix != "@ui/" || aliases[0].Target != "/src/components/ui/" {
		t.Fatalf("first alias = %+v", aliases[0])
	}
	if aliases[1].Prefix != "~/" || aliases[1].Target != "/src/" {
		t.Fatalf("second alias = %+v", aliases[1])
	}
}

func TestLoadReportsBrokenManifest(t *testing.T) {
	p, err := Load(map[string]string{
		"package.json":  `{"name": `,
		"jsconfig.json": `{"compilerOptions": {"paths": {"#/*": ["lib/*"]}}}`,
	})
	if err == nil {
		t.Fatal("expected error for broken package.json")
	}
	if p.Package != nil {
		t.Fatal("broken package.json must not be returned")
	}
	aliases := p.Aliases()
	if len(aliases) != 1 || aliases[0].Target != "/lib/" {
		t.Fatalf("aliases = %+v", aliases)
	}
}
