package cfb

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type entrySnap struct {
	Path  string
	Entry Entry
}

func snapshot(c *Codec) []entrySnap {
	snaps := make([]entrySnap, len(c.FileIndex))
	for i, e := range c.FileIndex {
		snaps[i] = entrySnap{Path: c.FullPaths[i], Entry: *e}
	}
	return snaps
}

func TestSeedInjectedOnFirstAdd(t *testing.T) {
	c := New()
	if len(c.FileIndex) != 1 {
		t.Fatalf("new codec has %d entries, want 1", len(c.FileIndex))
	}
	if _, err := c.Add("hello.txt", []byte("1234")); err != nil {
		t.Fatal(err)
	}
	if got := c.FullPaths[1]; got != "Root Entry/"+seedName {
		t.Errorf("FullPaths[1] = %q, want seed entry", got)
	}
	seed := c.FileIndex[1]
	if string(seed.Content) != "7262" {
		t.Errorf("seed content = %q, want 7262", seed.Content)
	}
	if seed.Type != EntryStream {
		t.Errorf("seed type = %d, want stream", seed.Type)
	}
}

func TestAddReplacesExisting(t *testing.T) {
	c := New()
	if _, err := c.Add("hello.txt", []byte("1234")); err != nil {
		t.Fatal(err)
	}
	n := len(c.FileIndex)
	e, err := c.Add("hello.txt", []byte("5678"))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.FileIndex) != n {
		t.Errorf("re-adding grew the index from %d to %d entries", n, len(c.FileIndex))
	}
	if string(e.Content) != "5678" {
		t.Errorf("content = %q, want 5678", e.Content)
	}
}

func TestRebuildInjectsMissingStorage(t *testing.T) {
	c := New()
	if _, err := c.Add("nested/inner.txt", []byte("deep")); err != nil {
		t.Fatal(err)
	}
	st := c.Find("/nested/")
	if st == nil {
		t.Fatal("storage for nested/ was not injected")
	}
	if st.Type != EntryStorage {
		t.Errorf("injected entry type = %d, want storage", st.Type)
	}
	if !st.Ct.Equal(storageStamp) || !st.Mt.Equal(storageStamp) {
		t.Errorf("injected storage times = %v/%v, want %v", st.Ct, st.Mt, storageStamp)
	}
	if st.Name != "nested" {
		t.Errorf("injected storage name = %q, want nested", st.Name)
	}
}

func TestRebuildLinkShape(t *testing.T) {
	c := New()
	if _, err := c.Add("hello.txt", []byte("1234")); err != nil {
		t.Fatal(err)
	}
	root := c.FileIndex[0]
	if root.C != 1 {
		t.Errorf("root child = %d, want 1", root.C)
	}
	if root.Type != EntryRoot || root.Size != 0 {
		t.Errorf("root type/size = %d/%d, want 5/0", root.Type, root.Size)
	}
	// Streams under the same parent chain through R.
	seed := c.FileIndex[1]
	if seed.R != 2 {
		t.Errorf("seed right sibling = %d, want 2", seed.R)
	}
	last := c.FileIndex[2]
	if last.R != NOSTREAM || last.L != NOSTREAM || last.C != NOSTREAM {
		t.Errorf("tail stream links = %d/%d/%d, want all NOSTREAM", last.L, last.R, last.C)
	}
	for _, e := range c.FileIndex {
		if e.Color != ColorBlack {
			t.Errorf("entry %q color = %d, want black", e.Name, e.Color)
		}
	}
}

func TestRebuildDropsTrailingUnknown(t *testing.T) {
	c := New()
	if _, err := c.Add("hello.txt", []byte("1234")); err != nil {
		t.Fatal(err)
	}
	c.FileIndex = append(c.FileIndex, &Entry{Type: EntryUnknown, L: NOSTREAM, R: NOSTREAM, C: NOSTREAM})
	c.FullPaths = append(c.FullPaths, "")
	if err := c.rebuild(false); err != nil {
		t.Fatal(err)
	}
	for _, e := range c.FileIndex {
		if e.Type == EntryUnknown {
			t.Error("unknown entry survived rebuild")
		}
	}
	if len(c.FileIndex) != len(c.FullPaths) {
		t.Errorf("index/path lengths diverged: %d != %d", len(c.FileIndex), len(c.FullPaths))
	}
}

func TestRebuildIdempotent(t *testing.T) {
	c := New()
	for _, name := range []string{"alpha.txt", "nested/inner.txt", "bravo1.txt"} {
		if _, err := c.Add(name, []byte(name)); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.rebuild(true); err != nil {
		t.Fatal(err)
	}
	once := snapshot(c)
	if err := c.rebuild(true); err != nil {
		t.Fatal(err)
	}
	twice := snapshot(c)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("rebuild is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestSeedInconsistentModel(t *testing.T) {
	c := New()
	c.FullPaths = append(c.FullPaths, "Root Entry/orphan")
	_, err := c.Add("x.txt", []byte("x"))
	if err == nil {
		t.Fatal("Add on an inconsistent model should fail")
	}
	ce, ok := err.(*CFBError)
	if !ok || ce.Kind != ErrInconsistentModel {
		t.Errorf("error = %v, want InconsistentModel", err)
	}
}
