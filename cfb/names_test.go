package cfb

import (
	"sort"
	"testing"
)

func TestDirname(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"/", "/"},
		{"/foo", "/"},
		{"/foo/", "/"},
		{"/foo/bar", "/foo/"},
		{"/foo/bar/baz///", "/foo/bar/"},
		{"Root Entry/hello.txt", "Root Entry/"},
		{"Root Entry/", "Root Entry/"},
	}
	for _, tc := range cases {
		if got := dirname(tc.in); got != tc.want {
			t.Errorf("dirname(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"/", ""},
		{"/foo", "foo"},
		{"/foo/", "foo"},
		{"/foo/bar/baz///", "baz"},
		{"Root Entry/hello.txt", "hello.txt"},
	}
	for _, tc := range cases {
		if got := filename(tc.in); got != tc.want {
			t.Errorf("filename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNamecmpOrder(t *testing.T) {
	// Shorter segments sort first; ties break on binary collation.
	cases := []struct {
		l, r string
		want int // sign only
	}{
		{"Root Entry/", "Root Entry/", 0},
		{"Root Entry/a", "Root Entry/bb", -1},
		{"Root Entry/b", "Root Entry/a", 1},
		{"Root Entry/\u0001Sh33tJ5", "Root Entry/hello.txt", -1},
		{"Root Entry/", "Root Entry/a", -1},
	}
	for _, tc := range cases {
		got := sign(namecmp(tc.l, tc.r))
		if got != tc.want {
			t.Errorf("namecmp(%q, %q) sign = %d, want %d", tc.l, tc.r, got, tc.want)
		}
	}
}

func TestNamecmpLaws(t *testing.T) {
	samples := []string{
		"", "/", "Root Entry/",
		"Root Entry/a", "Root Entry/bb", "Root Entry/ba",
		"Root Entry/dir/", "Root Entry/dir/x", "Root Entry/\u0001Sh33tJ5",
	}
	for _, a := range samples {
		if namecmp(a, a) != 0 {
			t.Errorf("namecmp(%q, %q) != 0", a, a)
		}
		for _, b := range samples {
			if sign(namecmp(a, b)) != -sign(namecmp(b, a)) {
				t.Errorf("namecmp(%q, %q) is not antisymmetric", a, b)
			}
		}
	}

	// Sorting must be deterministic and total over the sample set.
	sorted := append([]string(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return namecmp(sorted[i], sorted[j]) < 0 })
	for i := 1; i < len(sorted); i++ {
		if namecmp(sorted[i-1], sorted[i]) > 0 {
			t.Errorf("sort not total: %q > %q", sorted[i-1], sorted[i])
		}
	}
}

func sign(v int) int {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}
