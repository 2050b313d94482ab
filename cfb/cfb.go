// Package cfb reads and writes Microsoft Compound File Binary (CFB)
// containers, the FAT-style multi-stream envelope used by legacy Office
// documents and by encrypted OOXML packages.
//
// A Codec is built either empty via New and populated with Add, or from
// an existing image via Parse. Write lays out the sectors, allocation
// tables and directory tree and returns the complete byte image; the
// model is not consumed, so Write may be called repeatedly. Everything
// happens in memory: the caller owns all buffers and performs any file
// I/O itself.
package cfb

import (
	"fmt"
	"io"
	"strings"
)

const rootEntryName = "Root Entry"

// seedName names the marker stream injected into freshly built
// containers ahead of user streams; it is preserved across writes.
const seedName = "\u0001Sh33tJ5"

var seedContent = []byte{55, 50, 54, 50}

// Codec holds an in-memory compound file: the directory entries and
// their full slash-joined paths, kept index-parallel. Index 0 is always
// the root storage. A Codec is not safe for concurrent mutation;
// callers wanting parallelism use independent instances.
type Codec struct {
	// FileIndex lists the directory entries.
	FileIndex []*Entry

	// FullPaths holds the full path of each entry. The root is
	// "Root Entry/" and storage paths keep a trailing slash.
	FullPaths []string

	// Logfile receives warnings and debug output; nil discards them.
	Logfile io.Writer

	// DEBUG is the debug level.
	DEBUG int
}

// New creates an empty codec holding only the root storage.
func New() *Codec {
	c := &Codec{}
	c.FullPaths = append(c.FullPaths, rootEntryName+"/")
	c.FileIndex = append(c.FileIndex, &Entry{
		Name: rootEntryName,
		Type: EntryRoot,
		L:    NOSTREAM, R: NOSTREAM, C: NOSTREAM,
	})
	return c
}

func (c *Codec) warnf(format string, args ...interface{}) {
	if c.Logfile != nil {
		fmt.Fprintf(c.Logfile, format, args...)
	}
}

// seed makes sure the codec has a root entry and the marker stream.
func (c *Codec) seed() error {
	if len(c.FullPaths) != len(c.FileIndex) {
		return NewCFBError(ErrInconsistentModel,
			"inconsistent CFB structure: %d full paths != %d file index entries",
			len(c.FullPaths), len(c.FileIndex))
	}
	if len(c.FullPaths) == 0 {
		c.FullPaths = append(c.FullPaths, rootEntryName+"/")
		c.FileIndex = append(c.FileIndex, &Entry{
			Name: rootEntryName,
			Type: EntryRoot,
			L:    NOSTREAM, R: NOSTREAM, C: NOSTREAM,
		})
	}
	for _, p := range c.FullPaths {
		if p == rootEntryName+"/"+seedName {
			return nil
		}
	}
	content := make([]byte, len(seedContent))
	copy(content, seedContent)
	c.FullPaths = append(c.FullPaths, rootEntryName+"/"+seedName)
	// The links are deliberately out of range so the next rebuild pass
	// reorders the directory.
	c.FileIndex = append(c.FileIndex, &Entry{
		Name: seedName,
		Type: EntryStream,
		Content: content,
		Size:    len(content),
		L:       69, R: 69, C: 69,
	})
	return nil
}

// Add inserts a stream under the root storage, or replaces its content
// when the path already exists. A name containing slashes places the
// stream in nested storages, which the rebuild creates as needed. Adding forces a directory rebuild, so entry
// indices may shift.
func (c *Codec) Add(name string, content []byte) (*Entry, error) {
	if err := c.seed(); err != nil {
		return nil, err
	}
	file := c.Find(name)
	if file == nil {
		fpath := c.FullPaths[0]
		if strings.HasPrefix(name, fpath) {
			fpath = name
		} else {
			if !strings.HasSuffix(fpath, "/") {
				fpath += "/"
			}
			fpath = strings.ReplaceAll(fpath+name, "//", "/")
		}
		file = &Entry{Name: filename(name), Type: EntryStream}
		c.FileIndex = append(c.FileIndex, file)
		c.FullPaths = append(c.FullPaths, fpath)
		if err := c.rebuild(true); err != nil {
			return nil, err
		}
	}
	file.Content = content
	file.Size = len(content)
	file.Start = 0
	file.Storage = ""
	return file, nil
}

// Find returns the entry whose full path, root-relative path or bare
// stream name matches path, ignoring case. It returns nil when absent.
func (c *Codec) Find(path string) *Entry {
	if len(c.FullPaths) == 0 || len(c.FileIndex) == 0 {
		return nil
	}
	byPath := strings.Contains(path, "/")
	target := strings.ToUpper(path)
	full := ""
	if strings.HasPrefix(path, "/") {
		target = strings.ToUpper(strings.TrimSuffix(c.FullPaths[0], "/") + path)
	} else if byPath {
		full = target
		target = strings.ToUpper(c.FullPaths[0] + path)
	}
	for i, p := range c.FullPaths {
		if byPath {
			up := strings.ToUpper(p)
			if up == target || strings.TrimSuffix(up, "/") == target {
				return c.FileIndex[i]
			}
			if full != "" && (up == full || strings.TrimSuffix(up, "/") == full) {
				return c.FileIndex[i]
			}
		} else if strings.ToUpper(filename(p)) == target {
			return c.FileIndex[i]
		}
	}
	return nil
}
