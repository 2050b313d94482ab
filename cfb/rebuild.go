package cfb

import (
	"sort"
	"strings"
	"time"
)

// storageStamp is the fixed timestamp given to storages injected for
// missing ancestors; a constant keeps rebuilt images deterministic.
var storageStamp = time.Date(1987, time.January, 19, 0, 0, 0, 0, time.UTC)

// rebuild normalizes the directory: drops dangling unknown entries,
// injects storages for missing ancestors, sorts everything by the
// directory name rule and reassigns the tree links. When force is false
// the pass is skipped unless the tail-to-head scan finds work to do.
func (c *Codec) rebuild(force bool) error {
	if err := c.seed(); err != nil {
		return err
	}
	gc := force
	typed := false
	for i := len(c.FileIndex) - 1; i >= 0; i-- {
		f := c.FileIndex[i]
		switch f.Type {
		case EntryUnknown:
			if typed {
				gc = true
			} else {
				// Trailing unknown entries are simply discarded.
				c.FileIndex = c.FileIndex[:i]
				c.FullPaths = c.FullPaths[:i]
			}
		case EntryStorage, EntryStream, EntryRoot:
			typed = true
			if badLink(f.L, len(c.FileIndex)) || badLink(f.R, len(c.FileIndex)) || badLink(f.C, len(c.FileIndex)) {
				gc = true
			}
			if f.R > -1 && f.L > -1 && f.R == f.L {
				gc = true
			}
		default:
			gc = true
		}
	}
	if !gc {
		return nil
	}

	type pathEntry struct {
		path string
		file *Entry
	}
	data := make([]pathEntry, 0, len(c.FileIndex))
	for i := range c.FileIndex {
		if c.FileIndex[i].Type == EntryUnknown {
			continue
		}
		data = append(data, pathEntry{c.FullPaths[i], c.FileIndex[i]})
	}

	// Inject storages for missing parents. The list grows as parents
	// are appended, so every ancestor is eventually visited.
	for i := 0; i < len(data); i++ {
		dad := dirname(data[i].path)
		found := false
		for j := range data {
			if data[j].path == dad {
				found = true
				break
			}
		}
		if !found {
			data = append(data, pathEntry{dad, &Entry{
				Name: strings.ReplaceAll(filename(dad), "/", ""),
				Type: EntryStorage,
				Ct:   storageStamp,
				Mt:   storageStamp,
			}})
		}
	}

	sort.SliceStable(data, func(i, j int) bool {
		return namecmp(data[i].path, data[j].path) < 0
	})

	c.FullPaths = make([]string, len(data))
	c.FileIndex = make([]*Entry, len(data))
	for i, d := range data {
		c.FullPaths[i] = d.path
		c.FileIndex[i] = d.file
	}

	for i, elt := range c.FileIndex {
		nm := c.FullPaths[i]
		elt.Name = strings.ReplaceAll(filename(nm), "/", "")
		elt.Color = ColorBlack
		elt.L, elt.R, elt.C = NOSTREAM, NOSTREAM, NOSTREAM
		elt.Size = len(elt.Content)
		elt.Start = 0
		switch {
		case i == 0:
			if len(data) > 1 {
				elt.C = 1
			}
			elt.Size = 0
			elt.Type = EntryRoot
		case strings.HasSuffix(nm, "/"):
			// First entry inside this storage becomes the child; first
			// later sibling under the same parent becomes R. The result
			// is a right spine, not a balanced tree; readers tolerate it.
			j := i + 1
			for ; j < len(data); j++ {
				if dirname(c.FullPaths[j]) == nm {
					break
				}
			}
			if j < len(data) {
				elt.C = j
			}
			j = i + 1
			for ; j < len(data); j++ {
				if dirname(c.FullPaths[j]) == dirname(nm) {
					break
				}
			}
			if j < len(data) {
				elt.R = j
			}
			elt.Type = EntryStorage
		default:
			if i+1 < len(c.FullPaths) && dirname(c.FullPaths[i+1]) == dirname(nm) {
				elt.R = i + 1
			}
			elt.Type = EntryStream
		}
	}
	return nil
}

func badLink(link, n int) bool {
	return link < NOSTREAM || link >= n
}
