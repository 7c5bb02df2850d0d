package project

import (
	"slices"
	"sort"
)

// State is an immutable snapshot of the project tree and the session.
// The store never mutates a published State; every change produces a new one.
type State struct {
	files   map[string]*FileNode
	root    []string
	byPath  map[string]string
	active  string
	tabs    []string
	version uint64
}

func emptyState() *State {
	return &State{
		files:  map[string]*FileNode{},
		byPath: map[string]string{},
	}
}

// Version increases with every committed change.
func (s *State) Version() uint64 { return s.version }

// Len returns the number of nodes, files and folders.
func (s *State) Len() int { return len(s.files) }

// Root returns the ordered ids of top-level nodes.
func (s *State) Root() []string { return slices.Clone(s.root) }

// ActiveFileID returns the active file id, or "" when none is active.
func (s *State) ActiveFileID() string { return s.active }

// OpenTabs returns the open tab ids in opening order.
func (s *State) OpenTabs() []string { return slices.Clone(s.tabs) }

// ActivePath returns the path of the active file, or "".
func (s *State) ActivePath() string {
	if n, ok := s.files[s.active]; ok {
		return n.Path
	}
	return ""
}

// GetByID returns a copy of the node with the given id.
func (s *State) GetByID(id string) (FileNode, bool) {
	n, ok := s.files[id]
	if !ok {
		return FileNode{}, false
	}
	return *n.clone(), true
}

// GetByPath returns a copy of the node at path. A leading separator is
// accepted.
func (s *State) GetByPath(p string) (FileNode, bool) {
	id, ok := s.byPath[CleanPath(p)]
	if !ok {
		return FileNode{}, false
	}
	return s.GetByID(id)
}

// Walk visits every node depth-first in tree order. Returning false from fn
// skips the node's children.
func (s *State) Walk(fn func(n FileNode, depth int) bool) {
	var visit func(ids []string, depth int)
	visit = func(ids []string, depth int) {
		for _, id := range ids {
			n, ok := s.files[id]
			if !ok {
				continue
			}
			if fn(*n.clone(), depth) && n.IsFolder() {
				visit(n.Children, depth+1)
			}
		}
	}
	visit(s.root, 0)
}

// Files flattens the tree into a path -> content map of files.
func (s *State) Files() map[string]string {
	out := make(map[string]string)
	for _, n := range s.files {
		if n.IsFile() {
			out[n.Path] = n.Content
		}
	}
	return out
}

// Paths returns every file path, sorted.
func (s *State) Paths() []string {
	var out []string
	for _, n := range s.files {
		if n.IsFile() {
			out = append(out, n.Path)
		}
	}
	sort.Strings(out)
	return out
}

// Size summarizes the project.
type Size struct {
	Files int `json:"files"`
	Bytes int `json:"bytes"`
}

// Size returns the file count and total content size in bytes.
func (s *State) Size() Size {
	var sz Size
	for _, n := range s.files {
		if n.IsFile() {
			sz.Files++
			sz.Bytes += len(n.Content)
		}
	}
	return sz
}
