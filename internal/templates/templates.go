// Package templates holds the built-in starter projects.
package templates

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/starford/jstcode/internal/apperr"
)

//go:embed catalog/*.yaml
var catalogFS embed.FS

// Template is a named set of starter files.
type Template struct {
	ID          string            `yaml:"id" json:"id"`
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Category    string            `yaml:"category" json:"category"`
	Order       int               `yaml:"order" json:"-"`
	Files       map[string]string `yaml:"files" json:"files,omitempty"`
}

// Summary is a template without its files.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	FileCount   int    `json:"fileCount"`
}

var (
	loadOnce sync.Once
	catalog  []Template
	loadErr  error
)

func load() ([]Template, error) {
	loadOnce.Do(func() {
		catalog, loadErr = parse(catalogFS)
	})
	return catalog, loadErr
}

func parse(fsys fs.FS) ([]Template, error) {
	paths, err := fs.Glob(fsys, "catalog/*.yaml")
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]Template, 0, len(paths))
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("templates: read %s: %w", p, err)
		}
		var t Template
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("templates: parse %s: %w", p, err)
		}
		if t.ID == "" || len(t.Files) == 0 {
			return nil, fmt.Errorf("templates: %s: id and files are required", p)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("templates: duplicate id %s", t.ID)
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// List returns every template in catalogue order.
func List() ([]Summary, error) {
	all, err := load()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, len(all))
	for i, t := range all {
		out[i] = Summary{
			ID:          t.ID,
			Name:        t.Name,
			Description: t.Description,
			Category:    t.Category,
			FileCount:   len(t.Files),
		}
	}
	return out, nil
}

// Get returns a copy of the template with the given id.
func Get(id string) (Template, error) {
	all, err := load()
	if err != nil {
		return Template{}, err
	}
	for _, t := range all {
		if t.ID == id {
			files := make(map[string]string, len(t.Files))
			for k, v := range t.Files {
				files[k] = v
			}
			t.Files = files
			return t, nil
		}
	}
	return Template{}, fmt.Errorf("templates: %s: %w", id, apperr.ErrNotFound)
}
