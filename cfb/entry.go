package cfb

import (
	"strings"
	"time"
)

// Reserved sector indices, as signed int32 values. MAXREGSECT is the
// largest regular index read as an unsigned word (0xFFFFFFFA); in this
// signed form it is -6, and any non-negative index addresses a regular
// sector.
const (
	MAXREGSECT = -6
	DIFSECT    = -4
	FATSECT    = -3
	ENDOFCHAIN = -2
	FREESECT   = -1
	NOSTREAM   = -1 // absent directory link
)

// Directory entry types.
const (
	EntryUnknown = 0
	EntryStorage = 1
	EntryStream  = 2
	EntryRoot    = 5
)

// Node colors of the directory tree.
const (
	ColorRed   = 0
	ColorBlack = 1
)

// Storage tags assigned to stream entries while parsing.
const (
	StorageFAT     = "fat"
	StorageMiniFAT = "minifat"
)

const (
	sectorSize     = 512
	miniSectorSize = 64
	miniCutoff     = 0x1000
	dirEntrySize   = 128
	headerDIFAT    = 109
)

// Entry is a single directory entry of a compound file: the root
// storage, a storage, or a stream.
type Entry struct {
	// Name is the entry name in UTF-8. On the wire it is UTF-16LE and
	// limited to 31 code units excluding the terminator.
	Name string

	// Type is one of EntryUnknown, EntryStorage, EntryStream, EntryRoot.
	Type int

	// Color is the red-black tree bit, ColorRed or ColorBlack.
	Color int

	// L, R and C are the left sibling, right sibling and child links of
	// the directory tree, NOSTREAM if absent.
	L, R, C int

	// CLSID is the class identifier, all zero for plain streams.
	CLSID [16]byte

	// State holds user-defined state bits.
	State uint32

	// Ct and Mt are creation and modification times; the zero value
	// means no timestamp was recorded.
	Ct, Mt time.Time

	// Start is the first sector of the entry's chain. For streams below
	// the mini cutoff it is a MiniFAT-relative index.
	Start int

	// Size is the stream length in bytes.
	Size int

	// Content holds the stream bytes, nil for storages.
	Content []byte

	// Storage is StorageFAT or StorageMiniFAT after a parse.
	Storage string
}

// namecmp orders full paths by the directory sort rule: segment by
// segment, a shorter name sorts before a longer one and ties break on
// binary collation.
func namecmp(l, r string) int {
	ls, rs := strings.Split(l, "/"), strings.Split(r, "/")
	for i := 0; i < len(ls) && i < len(rs); i++ {
		if c := len(ls[i]) - len(rs[i]); c != 0 {
			return c
		}
		if ls[i] != rs[i] {
			if ls[i] < rs[i] {
				return -1
			}
			return 1
		}
	}
	return len(ls) - len(rs)
}

// dirname returns the parent directory of p, keeping the trailing
// slash. A top-level path is returned unchanged.
func dirname(p string) string {
	if strings.HasSuffix(p, "/") {
		if !strings.Contains(p[:len(p)-1], "/") {
			return p
		}
		return dirname(p[:len(p)-1])
	}
	c := strings.LastIndex(p, "/")
	if c == -1 {
		return p
	}
	return p[:c+1]
}

// filename returns the last path segment of p, ignoring trailing
// slashes.
func filename(p string) string {
	if strings.HasSuffix(p, "/") {
		return filename(p[:len(p)-1])
	}
	c := strings.LastIndex(p, "/")
	if c == -1 {
		return p
	}
	return p[c+1:]
}
