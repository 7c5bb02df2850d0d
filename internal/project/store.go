package project

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/starford/jstcode/internal/apperr"
)

// ChangeKind classifies a committed change.
type ChangeKind string

const (
	// ChangeContent is a file content edit.
	ChangeContent ChangeKind = "content"
	// ChangeStructure adds, removes or renames nodes.
	ChangeStructure ChangeKind = "structure"
	// ChangeSession moves the active file or the tab list only.
	ChangeSession ChangeKind = "session"
	// ChangeReset replaces the whole project (import, template, clear, restore).
	ChangeReset ChangeKind = "reset"
)

// Change describes one part of a committed mutation.
type Change struct {
	Kind ChangeKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
	Path string     `json:"path,omitempty"`
}

// Listener is called after each committed mutation with the new State and
// the changes it contains. Listeners run in commit order while the store's
// write lock is held, so they must not mutate the store.
type Listener func(st *State, changes []Change)

// Store owns the project. Mutations are serialized and publish a new
// immutable State atomically; Snapshot never blocks on writers.
type Store struct {
	mu        sync.Mutex
	cur       atomic.Pointer[State]
	newID     func() string
	listeners []Listener
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithIDGenerator replaces the uuid-based id generator.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) { s.newID = fn }
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	s.cur.Store(emptyState())
	return s
}

// Snapshot returns the current State.
func (s *Store) Snapshot() *State { return s.cur.Load() }

// Subscribe registers a listener for committed changes.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) update(fn func(t *txn) error) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.cur.Load()
	t := newTxn(cur, s.newID)
	if err := fn(t); err != nil {
		return cur, err
	}
	if len(t.changes) == 0 {
		return cur, nil
	}
	next := t.commit(cur.version + 1)
	s.cur.Store(next)
	for _, l := range s.listeners {
		l(next, t.changes)
	}
	return next, nil
}

// AddFile creates parentPath/name, or overwrites its content when a file
// already lives there (the id is kept). A new file is opened and activated.
// Missing parent folders are created. The returned bool reports creation.
func (s *Store) AddFile(name, content, parentPath string) (FileNode, bool, error) {
	full := JoinPath(parentPath, name)
	if full == "" {
		return FileNode{}, false, fmt.Errorf("project: add file %q: %w", name, apperr.ErrInvalidPath)
	}

	var out FileNode
	created := false
	_, err := s.update(func(t *txn) error {
		if existing, ok := t.lookup(full); ok {
			if !existing.IsFile() {
				return fmt.Errorf("project: add file %s: %w", full, apperr.ErrKindConflict)
			}
			if existing.Content != content {
				n := t.mutable(existing.ID)
				n.Content = content
				t.record(ChangeContent, n)
			}
			out = *t.files[existing.ID].clone()
			return nil
		}

		parentID, err := t.ensureFolder(parentOf(full))
		if err != nil {
			return err
		}
		n := &FileNode{
			ID:       t.newID(),
			Name:     path.Base(full),
			Kind:     KindFile,
			Path:     full,
			ParentID: parentID,
			Content:  content,
			Language: LanguageOf(full),
		}
		t.insert(n)
		t.openTab(n.ID)
		t.active = n.ID
		t.record(ChangeStructure, n)
		out = *n.clone()
		created = true
		return nil
	})
	return out, created, err
}

// AddFolder creates parentPath/name and any missing ancestors. It is a no-op
// when the path already exists.
func (s *Store) AddFolder(name, parentPath string) (FileNode, error) {
	full := JoinPath(parentPath, name)
	if full == "" {
		return FileNode{}, fmt.Errorf("project: add folder %q: %w", name, apperr.ErrInvalidPath)
	}

	var out FileNode
	_, err := s.update(func(t *txn) error {
		if existing, ok := t.lookup(full); ok {
			out = *existing.clone()
			return nil
		}
		id, err := t.ensureFolder(full)
		if err != nil {
			return err
		}
		out = *t.files[id].clone()
		return nil
	})
	return out, err
}

// UpdateFile replaces the content of file id.
func (s *Store) UpdateFile(id, content string) error {
	_, err := s.update(func(t *txn) error {
		n, ok := t.files[id]
		if !ok {
			return fmt.Errorf("project: update %s: %w", id, apperr.ErrNotFound)
		}
		if !n.IsFile() {
			return fmt.Errorf("project: update %s: %w", n.Path, apperr.ErrNotAFile)
		}
		if n.Content == content {
			return nil
		}
		m := t.mutable(id)
		m.Content = content
		t.record(ChangeContent, m)
		return nil
	})
	return err
}

// DeleteFile removes node id. Deleting a folder removes every descendant as
// well, including from the tab list and the active file.
func (s *Store) DeleteFile(id string) error {
	_, err := s.update(func(t *txn) error {
		n, ok := t.files[id]
		if !ok {
			return fmt.Errorf("project: delete %s: %w", id, apperr.ErrNotFound)
		}
		t.detach(n)

		removed := map[string]bool{}
		for _, rid := range t.subtree(id) {
			removed[rid] = true
			delete(t.byPath, t.files[rid].Path)
		}
		for rid := range removed {
			delete(t.files, rid)
		}
		t.closeTabs(removed)
		t.record(ChangeStructure, n)
		return nil
	})
	return err
}

// Rename gives node id a new leaf name, updating the paths of its
// descendants. Renaming onto an existing path fails with ErrKindConflict.
func (s *Store) Rename(id, newName string) error {
	newName = strings.Trim(CleanPath(newName), "/")
	if newName == "" || strings.Contains(newName, "/") {
		return fmt.Errorf("project: rename to %q: %w", newName, apperr.ErrInvalidPath)
	}
	_, err := s.update(func(t *txn) error {
		n, ok := t.files[id]
		if !ok {
			return fmt.Errorf("project: rename %s: %w", id, apperr.ErrNotFound)
		}
		if n.Name == newName {
			return nil
		}
		target := JoinPath(parentOf(n.Path), newName)
		if _, taken := t.lookup(target); taken {
			return fmt.Errorf("project: rename %s to %s: %w", n.Path, target, apperr.ErrKindConflict)
		}
		m := t.mutable(id)
		m.Name = newName
		if m.IsFile() {
			m.Language = LanguageOf(newName)
		}
		t.repath(id, target)
		t.record(ChangeStructure, t.files[id])
		return nil
	})
	return err
}

// OpenTab adds file id to the tab list and activates it.
func (s *Store) OpenTab(id string) error {
	return s.SetActive(id)
}

// SetActive activates file id, opening its tab if needed. An empty id
// clears the active file and leaves the tabs alone.
func (s *Store) SetActive(id string) error {
	_, err := s.update(func(t *txn) error {
		if id == "" {
			if t.active != "" {
				t.active = ""
				t.record(ChangeSession, nil)
			}
			return nil
		}
		n, ok := t.files[id]
		if !ok {
			return fmt.Errorf("project: activate %s: %w", id, apperr.ErrNotFound)
		}
		if !n.IsFile() {
			return fmt.Errorf("project: activate %s: %w", n.Path, apperr.ErrNotAFile)
		}
		before := len(t.tabs)
		t.openTab(id)
		if t.active == id && len(t.tabs) == before {
			return nil
		}
		t.active = id
		t.record(ChangeSession, n)
		return nil
	})
	return err
}

// CloseTab removes file id from the tab list.
func (s *Store) CloseTab(id string) error {
	_, err := s.update(func(t *txn) error {
		n, ok := t.files[id]
		if !ok {
			return fmt.Errorf("project: close tab %s: %w", id, apperr.ErrNotFound)
		}
		if len(t.tabs) == 0 {
			return nil
		}
		before := len(t.tabs)
		t.closeTabs(map[string]bool{id: true})
		if len(t.tabs) == before {
			return nil
		}
		t.record(ChangeSession, n)
		return nil
	})
	return err
}

// LoadProject replaces the project with the given path -> content map.
// Folders implied by path prefixes are created, siblings are sorted
// folders first then by name, and the lexicographically first file path
// is opened and activated. An empty map leaves the store untouched.
// A path that is also a folder prefix of another path is dropped.
func (s *Store) LoadProject(files map[string]string) (bool, error) {
	if len(files) == 0 {
		return false, nil
	}

	clean := make(map[string]string, len(files))
	for p, content := range files {
		if cp := CleanPath(p); cp != "" {
			clean[cp] = content
		}
	}
	for p := range clean {
		for dir := parentOf(p); dir != ""; dir = parentOf(dir) {
			delete(clean, dir)
		}
	}
	if len(clean) == 0 {
		return false, nil
	}

	paths := make([]string, 0, len(clean))
	for p := range clean {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	_, err := s.update(func(t *txn) error {
		fresh := newTxn(emptyState(), t.newID)
		for _, p := range paths {
			parentID, err := fresh.ensureFolder(parentOf(p))
			if err != nil {
				return err
			}
			fresh.insert(&FileNode{
				ID:       fresh.newID(),
				Name:     path.Base(p),
				Kind:     KindFile,
				Path:     p,
				ParentID: parentID,
				Content:  clean[p],
				Language: LanguageOf(p),
			})
		}
		fresh.sortChildren(fresh.root)
		for id, n := range fresh.files {
			if n.IsFolder() {
				fresh.sortChildren(fresh.mutable(id).Children)
			}
		}
		first := fresh.byPath[paths[0]]

		t.files = fresh.files
		t.root = fresh.root
		t.byPath = fresh.byPath
		t.owned = fresh.owned
		t.tabs = []string{first}
		t.active = first
		t.record(ChangeReset, nil)
		return nil
	})
	return err == nil, err
}

// ClearProject empties the project and the session.
func (s *Store) ClearProject() {
	_, _ = s.update(func(t *txn) error {
		empty := emptyState()
		t.files = empty.files
		t.root = nil
		t.byPath = empty.byPath
		t.tabs = nil
		t.active = ""
		t.record(ChangeReset, nil)
		return nil
	})
}
