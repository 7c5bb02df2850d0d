package project

import (
	"fmt"
	"slices"
	"strings"

	"github.com/starford/jstcode/internal/apperr"
)

// SnapshotVersion is the current persisted snapshot layout.
const SnapshotVersion = 1

// Snapshot is the persisted form of a State.
type Snapshot struct {
	Version      int        `json:"version"`
	Nodes        []FileNode `json:"nodes"`
	Root         []string   `json:"root"`
	ActiveFileID string     `json:"activeFileId,omitempty"`
	OpenTabs     []string   `json:"openTabs,omitempty"`
}

// Export converts the state into a Snapshot. Nodes are listed in tree order.
func (s *State) Export() Snapshot {
	snap := Snapshot{
		Version:      SnapshotVersion,
		Root:         slices.Clone(s.root),
		ActiveFileID: s.active,
		OpenTabs:     slices.Clone(s.tabs),
	}
	s.Walk(func(n FileNode, _ int) bool {
		snap.Nodes = append(snap.Nodes, n)
		return true
	})
	return snap
}

// Restore replaces the project with a persisted snapshot after checking
// that it describes a consistent tree. An inconsistent snapshot is rejected
// with ErrInvalidSnapshot and the store is left untouched.
func (s *Store) Restore(snap Snapshot) error {
	st, err := buildState(snap)
	if err != nil {
		return err
	}
	_, err = s.update(func(t *txn) error {
		t.files = st.files
		t.root = st.root
		t.byPath = st.byPath
		t.tabs = st.tabs
		t.active = st.active
		t.record(ChangeReset, nil)
		return nil
	})
	return err
}

func buildState(snap Snapshot) (*State, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("project: restore: %s: %w", fmt.Sprintf(format, args...), apperr.ErrInvalidSnapshot)
	}
	if snap.Version != SnapshotVersion {
		return nil, invalid("unsupported version %d", snap.Version)
	}

	st := emptyState()
	for i := range snap.Nodes {
		n := snap.Nodes[i].clone()
		if n.ID == "" {
			return nil, invalid("node without id")
		}
		if _, dup := st.files[n.ID]; dup {
			return nil, invalid("duplicate id %s", n.ID)
		}
		if n.Path != CleanPath(n.Path) || n.Path == "" {
			return nil, invalid("bad path %q", n.Path)
		}
		if _, dup := st.byPath[n.Path]; dup {
			return nil, invalid("duplicate path %s", n.Path)
		}
		if n.Kind != KindFile && n.Kind != KindFolder {
			return nil, invalid("bad kind %q", n.Kind)
		}
		st.files[n.ID] = n
		st.byPath[n.Path] = n.ID
	}

	// Walk from the root: every node must be reached exactly once, under a
	// parent whose path prefixes its own. Cycles and detached subtrees are
	// never reached.
	seen := make(map[string]bool, len(st.files))
	var walk func(parentID, parentPath string, ids []string) error
	walk = func(parentID, parentPath string, ids []string) error {
		for _, id := range ids {
			n, ok := st.files[id]
			if !ok {
				return invalid("dangling child %s", id)
			}
			if seen[id] {
				return invalid("node %s owned twice", id)
			}
			seen[id] = true
			if n.ParentID != parentID {
				return invalid("parent mismatch for %s", n.Path)
			}
			if n.Name == "" || strings.Contains(n.Name, "/") || n.Path != JoinPath(parentPath, n.Name) {
				return invalid("path %q does not match its place in the tree", n.Path)
			}
			if n.IsFile() {
				if len(n.Children) > 0 {
					return invalid("file %s has children", n.Path)
				}
				continue
			}
			if err := walk(n.ID, n.Path, n.Children); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk("", "", snap.Root); err != nil {
		return nil, err
	}
	if len(seen) != len(st.files) {
		return nil, invalid("orphaned nodes")
	}
	st.root = slices.Clone(snap.Root)

	for _, id := range snap.OpenTabs {
		n, ok := st.files[id]
		if !ok || !n.IsFile() || slices.Contains(st.tabs, id) {
			continue
		}
		st.tabs = append(st.tabs, id)
	}
	if n, ok := st.files[snap.ActiveFileID]; ok && n.IsFile() {
		st.active = snap.ActiveFileID
	}
	return st, nil
}
