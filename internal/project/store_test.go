package project

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/starford/jstcode/internal/apperr"
)

// checkInvariants verifies path uniqueness, parent/children agreement and
// session references for a State.
func checkInvariants(t *testing.T, st *State) {
	t.Helper()

	seenPath := map[string]string{}
	for id, n := range st.files {
		if n.ID != id {
			t.Fatalf("node keyed %s has id %s", id, n.ID)
		}
		if other, dup := seenPath[n.Path]; dup {
			t.Fatalf("path %s used by %s and %s", n.Path, other, id)
		}
		seenPath[n.Path] = id
		if st.byPath[n.Path] != id {
			t.Fatalf("path index for %s = %q, want %s", n.Path, st.byPath[n.Path], id)
		}
	}
	if len(st.byPath) != len(st.files) {
		t.Fatalf("path index has %d entries for %d nodes", len(st.byPath), len(st.files))
	}

	// children == {nodes whose parentId is the folder}
	want := map[string][]string{}
	for id, n := range st.files {
		want[n.ParentID] = append(want[n.ParentID], id)
	}
	check := func(owner string, got []string) {
		w := slices.Clone(want[owner])
		g := slices.Clone(got)
		slices.Sort(w)
		slices.Sort(g)
		if !slices.Equal(w, g) {
			t.Fatalf("children of %q = %v, want %v", owner, g, w)
		}
	}
	check("", st.root)
	for id, n := range st.files {
		if n.IsFolder() {
			check(id, n.Children)
			continue
		}
		if len(n.Children) != 0 {
			t.Fatalf("file %s has children", n.Path)
		}
		if parent := st.files[n.ParentID]; n.ParentID != "" && JoinPath(parent.Path, n.Name) != n.Path {
			t.Fatalf("path %s disagrees with parent %s", n.Path, parent.Path)
		}
	}

	seenTab := map[string]bool{}
	for _, id := range st.tabs {
		n, ok := st.files[id]
		if !ok || !n.IsFile() {
			t.Fatalf("tab %s does not reference a file", id)
		}
		if seenTab[id] {
			t.Fatalf("duplicate tab %s", id)
		}
		seenTab[id] = true
	}
	if st.active != "" {
		if n, ok := st.files[st.active]; !ok || !n.IsFile() {
			t.Fatalf("active %s does not reference a file", st.active)
		}
	}
}

func TestStoreInvariantsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 42))
	s := NewStore()
	dirs := []string{"", "src", "src/components", "lib", "src/hooks"}
	names := []string{"App.tsx", "index.ts", "a.css", "util.js", "README.md", "components"}

	for i := 0; i < 2000; i++ {
		st := s.Snapshot()
		ids := make([]string, 0, st.Len())
		for id := range st.files {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		switch op := rng.IntN(6); {
		case op == 0 || op == 1:
			_, _, _ = s.AddFile(names[rng.IntN(len(names))], fmt.Sprint(i), dirs[rng.IntN(len(dirs))])
		case op == 2:
			_, _ = s.AddFolder(names[rng.IntN(len(names))], dirs[rng.IntN(len(dirs))])
		case op == 3 && len(ids) > 0:
			_ = s.UpdateFile(ids[rng.IntN(len(ids))], fmt.Sprint("u", i))
		case op == 4 && len(ids) > 0:
			_ = s.DeleteFile(ids[rng.IntN(len(ids))])
		case op == 5 && len(ids) > 0:
			_ = s.CloseTab(ids[rng.IntN(len(ids))])
		}
		checkInvariants(t, s.Snapshot())
	}
}

func TestAddFileTwiceUpdatesInPlace(t *testing.T) {
	s := NewStore()
	first, created, err := s.AddFile("App.tsx", "one", "src")
	if err != nil || !created {
		t.Fatalf("first AddFile: created=%v err=%v", created, err)
	}
	second, created, err := s.AddFile("App.tsx", "two", "/src/")
	if err != nil {
		t.Fatalf("second AddFile: %v", err)
	}
	if created {
		t.Fatal("second AddFile must update, not create")
	}
	if second.ID != first.ID {
		t.Fatalf("id changed: %s -> %s", first.ID, second.ID)
	}

	st := s.Snapshot()
	n, ok := st.GetByPath("/src/App.tsx")
	if !ok || n.Content != "two" {
		t.Fatalf("GetByPath = %+v, %v", n, ok)
	}
	if st.Size().Files != 1 {
		t.Fatalf("files = %d, want 1", st.Size().Files)
	}
	if got := st.OpenTabs(); len(got) != 1 || got[0] != first.ID {
		t.Fatalf("tabs = %v", got)
	}
	checkInvariants(t, st)
}

func TestAddFileCreatesParentsAndActivates(t *testing.T) {
	s := NewStore()
	n, _, err := s.AddFile("Button.tsx", "x", "src/components")
	if err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if st.ActiveFileID() != n.ID {
		t.Fatalf("active = %s, want %s", st.ActiveFileID(), n.ID)
	}
	folder, ok := st.GetByPath("src/components")
	if !ok || !folder.IsFolder() {
		t.Fatalf("parent folder missing: %+v", folder)
	}
	if n.ParentID != folder.ID {
		t.Fatalf("parentId = %s, want %s", n.ParentID, folder.ID)
	}
	if n.Language != "typescriptreact" {
		t.Fatalf("language = %q", n.Language)
	}
	checkInvariants(t, st)
}

func TestAddFileOverFolderConflicts(t *testing.T) {
	s := NewStore()
	if _, err := s.AddFolder("src", ""); err != nil {
		t.Fatal(err)
	}
	before := s.Snapshot().Version()
	_, _, err := s.AddFile("src", "x", "")
	if !errors.Is(err, apperr.ErrKindConflict) {
		t.Fatalf("err = %v, want ErrKindConflict", err)
	}
	if s.Snapshot().Version() != before {
		t.Fatal("failed mutation must not publish a new state")
	}

	if _, _, err := s.AddFile("a.txt", "x", ""); err != nil {
		t.Fatal(err)
	}
	_, _, err = s.AddFile("b.txt", "x", "a.txt")
	if !errors.Is(err, apperr.ErrKindConflict) {
		t.Fatalf("file under a file: err = %v", err)
	}
	checkInvariants(t, s.Snapshot())
}

func TestAddFolderIsIdempotent(t *testing.T) {
	s := NewStore()
	a, err := s.AddFolder("components", "src")
	if err != nil {
		t.Fatal(err)
	}
	v := s.Snapshot().Version()
	b, err := s.AddFolder("components", "src")
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != b.ID || s.Snapshot().Version() != v {
		t.Fatal("second AddFolder must be a no-op")
	}
}

func TestDeleteActiveFallsBackToPreviousTab(t *testing.T) {
	s := NewStore()
	a, _, _ := s.AddFile("a.ts", "", "")
	b, _, _ := s.AddFile("b.ts", "", "")
	c, _, _ := s.AddFile("c.ts", "", "")

	if err := s.DeleteFile(c.ID); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if st.ActiveFileID() != b.ID {
		t.Fatalf("active = %s, want %s", st.ActiveFileID(), b.ID)
	}

	// deleting a non-active open tab leaves the active file alone
	if err := s.DeleteFile(a.ID); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().ActiveFileID(); got != b.ID {
		t.Fatalf("active = %s, want %s", got, b.ID)
	}

	if err := s.DeleteFile(b.ID); err != nil {
		t.Fatal(err)
	}
	st = s.Snapshot()
	if st.ActiveFileID() != "" || len(st.OpenTabs()) != 0 {
		t.Fatalf("active=%q tabs=%v, want none", st.ActiveFileID(), st.OpenTabs())
	}
}

func TestDeleteFolderCascades(t *testing.T) {
	s := NewStore()
	keep, _, _ := s.AddFile("main.tsx", "", "")
	inner, _, _ := s.AddFile("Button.tsx", "", "src/components")
	deep, _, _ := s.AddFile("icon.svg.ts", "", "src/components/icons")

	folder, _ := s.Snapshot().GetByPath("src")
	if err := s.DeleteFile(folder.ID); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	for _, id := range []string{folder.ID, inner.ID, deep.ID} {
		if _, ok := st.GetByID(id); ok {
			t.Fatalf("descendant %s survived", id)
		}
		if slices.Contains(st.OpenTabs(), id) {
			t.Fatalf("descendant %s still open", id)
		}
	}
	if st.ActiveFileID() != keep.ID {
		t.Fatalf("active = %s, want %s", st.ActiveFileID(), keep.ID)
	}
	if _, ok := st.GetByPath("src/components/Button.tsx"); ok {
		t.Fatal("path index still resolves deleted file")
	}
	checkInvariants(t, st)
}

func TestDeleteUnknownID(t *testing.T) {
	s := NewStore()
	if err := s.DeleteFile("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateFileKeepsIdentity(t *testing.T) {
	s := NewStore()
	n, _, _ := s.AddFile("a.js", "1", "lib")
	if err := s.UpdateFile(n.ID, "2"); err != nil {
		t.Fatal(err)
	}
	got, _ := s.Snapshot().GetByID(n.ID)
	if got.Content != "2" || got.Path != "lib/a.js" {
		t.Fatalf("got %+v", got)
	}

	folder, _ := s.Snapshot().GetByPath("lib")
	if err := s.UpdateFile(folder.ID, "x"); !errors.Is(err, apperr.ErrNotAFile) {
		t.Fatalf("err = %v, want ErrNotAFile", err)
	}
}

func TestCloseTabFallback(t *testing.T) {
	s := NewStore()
	a, _, _ := s.AddFile("a.ts", "", "")
	b, _, _ := s.AddFile("b.ts", "", "")
	if err := s.SetActive(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.CloseTab(a.ID); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	if st.ActiveFileID() != b.ID {
		t.Fatalf("active = %s, want %s", st.ActiveFileID(), b.ID)
	}
	if _, ok := st.GetByID(a.ID); !ok {
		t.Fatal("closing a tab must not delete the file")
	}
	if err := s.OpenTab(a.ID); err != nil {
		t.Fatal(err)
	}
	if got := s.Snapshot().OpenTabs(); !slices.Equal(got, []string{b.ID, a.ID}) {
		t.Fatalf("tabs = %v", got)
	}
}

func TestRenameRepathsDescendants(t *testing.T) {
	s := NewStore()
	f, _, _ := s.AddFile("Button.tsx", "", "src/components")
	folder, _ := s.Snapshot().GetByPath("src/components")
	if err := s.Rename(folder.ID, "ui"); err != nil {
		t.Fatal(err)
	}
	st := s.Snapshot()
	got, ok := st.GetByPath("src/ui/Button.tsx")
	if !ok || got.ID != f.ID {
		t.Fatalf("renamed file not found: %+v", got)
	}
	checkInvariants(t, st)

	_, _, _ = s.AddFile("other.ts", "", "src")
	other, _ := s.Snapshot().GetByPath("src/other.ts")
	if err := s.Rename(other.ID, "ui"); !errors.Is(err, apperr.ErrKindConflict) {
		t.Fatalf("err = %v, want ErrKindConflict", err)
	}
}

func TestListenersSeeCommittedState(t *testing.T) {
	s := NewStore()
	var kinds []ChangeKind
	var versions []uint64
	s.Subscribe(func(st *State, changes []Change) {
		versions = append(versions, st.Version())
		for _, c := range changes {
			kinds = append(kinds, c.Kind)
		}
	})

	n, _, _ := s.AddFile("a.ts", "1", "src")
	_ = s.UpdateFile(n.ID, "2")
	_ = s.UpdateFile(n.ID, "2") // unchanged content publishes nothing
	s.ClearProject()

	want := []ChangeKind{ChangeStructure, ChangeStructure, ChangeContent, ChangeReset}
	if !slices.Equal(kinds, want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	if !slices.Equal(versions, []uint64{1, 2, 3}) {
		t.Fatalf("versions = %v", versions)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s := NewStore()
	n, _, _ := s.AddFile("a.ts", "old", "")
	before := s.Snapshot()
	_ = s.UpdateFile(n.ID, "new")

	got, _ := before.GetByID(n.ID)
	if got.Content != "old" {
		t.Fatalf("published state was mutated: %q", got.Content)
	}
}
