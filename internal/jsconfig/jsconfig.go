// Package jsconfig reads the JavaScript project manifests (package.json,
// tsconfig.json, jsconfig.json). All of them are parsed as JSONC, so comments
// and trailing commas are accepted.
package jsconfig

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/tidwall/jsonc"
)

// PackageJSON holds the package.json fields the preview cares about.
type PackageJSON struct {
	Name            string            `json:"name"`
	Main            string            `json:"main"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

// AllDependencies merges dependencies over devDependencies.
func (p *PackageJSON) AllDependencies() map[string]string {
	out := make(map[string]string, len(p.Dependencies)+len(p.DevDependencies))
	for k, v := range p.DevDependencies {
		out[k] = v
	}
	for k, v := range p.Dependencies {
		out[k] = v
	}
	return out
}

// TSConfig holds compilerOptions from tsconfig.json or jsconfig.json.
type TSConfig struct {
	CompilerOptions struct {
		BaseURL string              `json:"baseUrl"`
		JSX     string              `json:"jsx"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// Alias maps an import prefix to a project-rooted path prefix,
// e.g. "~/" to "/src/".
type Alias struct {
	Prefix string
	Target string
}

// ParsePackageJSON parses package.json contents.
func ParsePackageJSON(data []byte) (*PackageJSON, error) {
	var p PackageJSON
	if err := json.Unmarshal(jsonc.ToJSON(data), &p); err != nil {
		return nil, fmt.Errorf("jsconfig: parse package.json: %w", err)
	}
	return &p, nil
}

// ParseTSConfig parses tsconfig.json or jsconfig.json contents.
func ParseTSConfig(data []byte) (*TSConfig, error) {
	var c TSConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &c); err != nil {
		return nil, fmt.Errorf("jsconfig: parse tsconfig: %w", err)
	}
	return &c, nil
}

// Aliases converts wildcard "paths" entries into prefix aliases. Only the
// first target of each entry is used; entries without a trailing "/*" are
// skipped. Longer prefixes sort first so they win when prefixes overlap.
func (c *TSConfig) Aliases() []Alias {
	base := strings.TrimPrefix(path.Clean("/"+c.CompilerOptions.BaseURL), "/")
	var out []Alias
	for pattern, targets := range c.CompilerOptions.Paths {
		if !strings.HasSuffix(pattern, "/*") || len(targets) == 0 {
			continue
		}
		target := targets[0]
		if !strings.HasSuffix(target, "/*") {
			continue
		}
		dir := path.Clean("/" + path.Join(base, strings.TrimSuffix(target, "/*")))
		if dir == "/" {
			dir = ""
		}
		out = append(out, Alias{
			Prefix: strings.TrimSuffix(pattern, "*"),
			Target: dir + "/",
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Prefix) != len(out[j].Prefix) {
			return len(out[i].Prefix) > len(out[j].Prefix)
		}
		return out[i].Prefix < out[j].Prefix
	})
	return out
}

// Project is the manifest view of a project's root files.
type Project struct {
	Package  *PackageJSON
	TSConfig *TSConfig
}

// Load reads the root manifests out of a path -> text map. Unparseable
// manifests are reported in the error but do not prevent the others from
// loading.
func Load(files map[string]string) (Project, error) {
	var p Project
	var errs []string

	if text, ok := files["package.json"]; ok {
		pkg, err := ParsePackageJSON([]byte(text))
		if err != nil {
			errs = append(errs, err.Error())
		} else {
			p.Package = pkg
		}
	}
	for _, name := range []string{"tsconfig.json", "jsconfig.json"} {
		text, ok := files[name]
		if !ok {
			continue
		}
		cfg, err := ParseTSConfig([]byte(text))
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		p.TSConfig = cfg
		break
	}

	if len(errs) > 0 {
		return p, fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return p, nil
}

// Aliases returns the tsconfig aliases, or nil when there is no tsconfig.
func (p Project) Aliases() []Alias {
	if p.TSConfig == nil {
		return nil
	}
	return p.TSConfig.Aliases()
}
