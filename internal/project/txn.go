package project

import (
	"fmt"
	"maps"
	"path"
	"slices"
	"sort"
	"strings"

	"github.com/starford/jstcode/internal/apperr"
)

// txn builds the next State from the current one. Nodes are copied on first
// write so the published State stays untouched.
type txn struct {
	files   map[string]*FileNode
	root    []string
	byPath  map[string]string
	active  string
	tabs    []string
	owned   map[string]bool
	newID   func() string
	changes []Change
}

func newTxn(st *State, newID func() string) *txn {
	return &txn{
		files:  maps.Clone(st.files),
		root:   slices.Clone(st.root),
		byPath: maps.Clone(st.byPath),
		active: st.active,
		tabs:   slices.Clone(st.tabs),
		owned:  map[string]bool{},
		newID:  newID,
	}
}

func (t *txn) commit(version uint64) *State {
	return &State{
		files:   t.files,
		root:    t.root,
		byPath:  t.byPath,
		active:  t.active,
		tabs:    t.tabs,
		version: version,
	}
}

func (t *txn) record(kind ChangeKind, n *FileNode) {
	c := Change{Kind: kind}
	if n != nil {
		c.ID = n.ID
		c.Path = n.Path
	}
	t.changes = append(t.changes, c)
}

// mutable returns a txn-owned copy of node id.
func (t *txn) mutable(id string) *FileNode {
	if !t.owned[id] {
		t.files[id] = t.files[id].clone()
		t.owned[id] = true
	}
	return t.files[id]
}

func (t *txn) lookup(p string) (*FileNode, bool) {
	id, ok := t.byPath[p]
	if !ok {
		return nil, false
	}
	return t.files[id], true
}

func (t *txn) insert(n *FileNode) {
	t.files[n.ID] = n
	t.owned[n.ID] = true
	t.byPath[n.Path] = n.ID
	if n.ParentID == "" {
		t.root = append(t.root, n.ID)
		return
	}
	parent := t.mutable(n.ParentID)
	parent.Children = append(parent.Children, n.ID)
}

// ensureFolder returns the id of the folder at p, creating it and any
// missing ancestors. The project root is "".
func (t *txn) ensureFolder(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if n, ok := t.lookup(p); ok {
		if !n.IsFolder() {
			return "", fmt.Errorf("project: %s: %w", p, apperr.ErrKindConflict)
		}
		return n.ID, nil
	}
	parentID, err := t.ensureFolder(parentOf(p))
	if err != nil {
		return "", err
	}
	n := &FileNode{
		ID:       t.newID(),
		Name:     path.Base(p),
		Kind:     KindFolder,
		Path:     p,
		ParentID: parentID,
		Children: []string{},
	}
	t.insert(n)
	t.record(ChangeStructure, n)
	return n.ID, nil
}

func (t *txn) openTab(id string) {
	if !slices.Contains(t.tabs, id) {
		t.tabs = append(t.tabs, id)
	}
}

// closeTabs removes ids from the tab list and moves activation to the most
// recently opened remaining tab when the active file was removed.
func (t *txn) closeTabs(ids map[string]bool) {
	t.tabs = slices.DeleteFunc(t.tabs, func(id string) bool { return ids[id] })
	if ids[t.active] {
		t.active = ""
		if len(t.tabs) > 0 {
			t.active = t.tabs[len(t.tabs)-1]
		}
	}
}

// subtree returns id and all of its descendants.
func (t *txn) subtree(id string) []string {
	out := []string{id}
	for i := 0; i < len(out); i++ {
		if n := t.files[out[i]]; n.IsFolder() {
			out = append(out, n.Children...)
		}
	}
	return out
}

func (t *txn) detach(n *FileNode) {
	if n.ParentID == "" {
		t.root = slices.DeleteFunc(t.root, func(id string) bool { return id == n.ID })
		return
	}
	parent := t.mutable(n.ParentID)
	parent.Children = slices.DeleteFunc(parent.Children, func(id string) bool { return id == n.ID })
}

// repath rewrites the path of id and its descendants after a rename.
func (t *txn) repath(id, newPath string) {
	n := t.mutable(id)
	delete(t.byPath, n.Path)
	n.Path = newPath
	t.byPath[newPath] = id
	for _, child := range slices.Clone(n.Children) {
		t.repath(child, newPath+"/"+t.files[child].Name)
	}
}

// sortChildren orders ids folders first, then by name.
func (t *txn) sortChildren(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := t.files[ids[i]], t.files[ids[j]]
		if a.Kind != b.Kind {
			return a.IsFolder()
		}
		return a.Name < b.Name
	})
}

func parentOf(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i]
	}
	return ""
}
