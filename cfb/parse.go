package cfb

import (
	"bytes"
	"io"
	"strings"
)

// sectorChain is a materialized FAT chain: the ordered sector indices
// and their concatenated payload.
type sectorChain struct {
	nodes []int
	data  []byte
	name  string
}

// Parse reads a compound file image from r, consuming it to EOF, and
// populates FileIndex and FullPaths. On failure the model is left
// untouched and r is closed when it implements io.Closer.
func (c *Codec) Parse(r io.Reader) error {
	file, err := io.ReadAll(r)
	if err == nil {
		err = c.parseBytes(file)
	}
	if err != nil {
		if cl, ok := r.(io.Closer); ok {
			cl.Close()
		}
		return err
	}
	return nil
}

func (p *blob) chk(expect []byte, field string) error {
	got := p.b[p.l : p.l+len(expect)]
	p.l += len(expect)
	if !bytes.Equal(got, expect) {
		return NewCFBError(ErrHeaderMismatch, "%s: expected % x saw % x", field, expect, got)
	}
	return nil
}

func (c *Codec) parseBytes(file []byte) error {
	if len(file) < sectorSize {
		return NewCFBError(ErrTooSmall, "CFB file size %d < 512", len(file))
	}
	if InspectFormat(file) == "zip" {
		return NewCFBError(ErrUnsupportedFormat, "Zip contents are not supported")
	}

	blob := asBlob(file[:sectorSize])
	if err := blob.chk(CFB_SIGNATURE, "Header Signature"); err != nil {
		return err
	}
	blob.l += 16 // CLSID
	minor := blob.readU16()
	major := blob.readU16()
	var ssz int
	switch major {
	case 3:
		ssz = sectorSize
	case 4:
		ssz = 4096
	default:
		return NewCFBError(ErrUnsupportedFormat,
			"Major Version: expected 3 or 4 saw %d (minor %d)", major, minor)
	}
	if ssz != sectorSize {
		if len(file) < ssz {
			return NewCFBError(ErrTooSmall, "CFB v4 file size %d < %d", len(file), ssz)
		}
		l := blob.l
		blob = asBlob(file[:ssz])
		blob.l = l
	}

	blob.l += 2 // byte order mark
	shift := blob.readU16()
	want := 9
	if major == 4 {
		want = 12
	}
	if shift != want {
		return NewCFBError(ErrHeaderMismatch, "Sector Shift: expected %d saw %d", want, shift)
	}
	if err := blob.chk([]byte{0x06, 0x00}, "Mini Sector Shift"); err != nil {
		return err
	}
	if err := blob.chk(make([]byte, 6), "Reserved"); err != nil {
		return err
	}
	dirCnt := blob.readI32()
	if major == 3 && dirCnt != 0 {
		return NewCFBError(ErrHeaderMismatch, "# Directory Sectors: expected 0 saw %d", dirCnt)
	}
	blob.l += 4 // FAT sector count
	dirStart := blob.readI32()
	blob.l += 4 // transaction signature
	if err := blob.chk([]byte{0x00, 0x10, 0x00, 0x00}, "Mini Stream Cutoff Size"); err != nil {
		return err
	}
	minifatStart := blob.readI32()
	nmfs := blob.readI32()
	difatStart := blob.readI32()
	difatCnt := blob.readI32()

	var fatAddrs []int
	for j := 0; j < headerDIFAT; j++ {
		q := blob.readI32()
		if q < 0 {
			break
		}
		fatAddrs = append(fatAddrs, q)
	}

	sectors := sectorify(file, ssz)
	if len(file)%ssz != 0 {
		c.warnf("WARNING *** file size (%d) not a multiple of sector size (%d)\n", len(file), ssz)
	}
	if err := sleuthFat(difatStart, difatCnt, sectors, ssz, &fatAddrs); err != nil {
		return err
	}
	if dirStart < 0 || dirStart >= len(sectors) {
		return NewCFBError(ErrChainMalformed, "sector index out of range: directory start %d of %d", dirStart, len(sectors))
	}

	chains, err := makeSectorList(sectors, dirStart, fatAddrs, ssz)
	if err != nil {
		return err
	}
	if ch := chains[dirStart]; ch != nil {
		ch.name = "!Directory"
	}
	if nmfs > 0 && minifatStart != ENDOFCHAIN {
		if ch := chains[minifatStart]; ch != nil {
			ch.name = "!MiniFAT"
		}
	}
	if len(fatAddrs) > 0 {
		if ch := chains[fatAddrs[0]]; ch != nil {
			ch.name = "!FAT"
		}
	}
	if c.DEBUG > 1 && c.Logfile != nil {
		c.dumpChains(fatAddrs, chains)
	}

	fileIndex, paths, err := c.readDirectory(dirStart, chains, sectors, fatAddrs, ssz, nmfs, minifatStart)
	if err != nil {
		return err
	}
	fullPaths := buildFullPaths(fileIndex, paths)
	if len(fullPaths) != len(fileIndex) {
		return NewCFBError(ErrInconsistentModel,
			"inconsistent CFB structure: %d full paths != %d file index entries",
			len(fullPaths), len(fileIndex))
	}
	c.FileIndex = fileIndex
	c.FullPaths = fullPaths
	return nil
}

// sectorify splits everything after the header into sectors. The last
// sector may be short when the file is not sector aligned.
func sectorify(file []byte, ssz int) [][]byte {
	nsectors := (len(file)+ssz-1)/ssz - 1
	sectors := make([][]byte, nsectors)
	for i := 1; i < nsectors; i++ {
		sectors[i-1] = file[i*ssz : (i+1)*ssz]
	}
	if nsectors > 0 {
		sectors[nsectors-1] = file[nsectors*ssz:]
	}
	return sectors
}

// sleuthFat walks the DIFAT chain collecting FAT sector addresses
// beyond the 109 held in the header.
func sleuthFat(idx, cnt int, sectors [][]byte, ssz int, fatAddrs *[]int) error {
	if idx == ENDOFCHAIN {
		if cnt != 0 {
			return NewCFBError(ErrChainMalformed, "DIFAT chain shorter than expected (%d sectors left)", cnt)
		}
		return nil
	}
	if idx == FREESECT {
		return nil
	}
	if idx < 0 || idx >= len(sectors) || len(sectors[idx]) < ssz {
		return NewCFBError(ErrChainMalformed, "sector index out of range: DIFAT sector %d of %d", idx, len(sectors))
	}
	sector := sectors[idx]
	m := ssz>>2 - 1
	for i := 0; i < m; i++ {
		q := i32le(sector, i*4)
		if q == ENDOFCHAIN {
			break
		}
		*fatAddrs = append(*fatAddrs, q)
	}
	if cnt >= 1 {
		return sleuthFat(i32le(sector, ssz-4), cnt-1, sectors, ssz, fatAddrs)
	}
	return nil
}

// walkChain follows the FAT chain starting at start, recording the
// visited sector indices and their concatenated payload. A seen set
// guards against cycles. chkd, when non-nil, marks globally visited
// sectors.
func walkChain(sectors [][]byte, start int, fatAddrs []int, ssz int, chkd []bool) (*sectorChain, error) {
	modulus := ssz - 1
	var nodes []int
	var data []byte
	seen := make(map[int]bool)
	for q := start; q >= 0; {
		if q >= len(sectors) {
			return nil, NewCFBError(ErrChainMalformed, "sector index out of range: %d of %d", q, len(sectors))
		}
		seen[q] = true
		if chkd != nil {
			chkd[q] = true
		}
		nodes = append(nodes, q)
		data = append(data, sectors[q]...)
		jq := (q * 4) & modulus
		if ssz < 4+jq {
			return nil, NewCFBError(ErrChainMalformed, "FAT boundary crossed: %d 4 %d", q, ssz)
		}
		fatIdx := q * 4 / ssz
		if fatIdx >= len(fatAddrs) {
			break
		}
		addr := fatAddrs[fatIdx]
		if addr < 0 || addr >= len(sectors) || len(sectors[addr]) < jq+4 {
			break
		}
		q = i32le(sectors[addr], jq)
		if seen[q] {
			break
		}
	}
	return &sectorChain{nodes: nodes, data: data}, nil
}

// makeSectorList materializes every chain in the file, visiting sectors
// in rotated order so traversal begins at the directory.
func makeSectorList(sectors [][]byte, dirStart int, fatAddrs []int, ssz int) (map[int]*sectorChain, error) {
	sl := len(sectors)
	chains := make(map[int]*sectorChain)
	chkd := make([]bool, sl)
	for j := 0; j < sl; j++ {
		jj := j + dirStart
		if jj >= sl {
			jj -= sl
		}
		if chkd[jj] {
			continue
		}
		ch, err := walkChain(sectors, jj, fatAddrs, ssz, chkd)
		if err != nil {
			return nil, err
		}
		chains[jj] = ch
	}
	return chains, nil
}

// dirEntryName decodes a directory entry name: namelen bytes of the
// 64-byte field, stripping one trailing terminator.
func dirEntryName(field []byte, namelen int) string {
	if namelen <= 0 {
		return ""
	}
	if namelen > 64 {
		namelen = 64
	}
	namelen &^= 1
	return strings.TrimSuffix(utf16leDecode(field[:namelen]), "\x00")
}

// readDirectory iterates the 128-byte slices of the directory chain,
// building the entry list and extracting stream contents.
func (c *Codec) readDirectory(dirStart int, chains map[int]*sectorChain, sectors [][]byte, fatAddrs []int, ssz, nmfs, mini int) ([]*Entry, []string, error) {
	dir := chains[dirStart]
	if dir == nil {
		return nil, nil, NewCFBError(ErrChainMalformed, "sector index out of range: directory start %d", dirStart)
	}
	minifatStore := 0
	var fileIndex []*Entry
	var paths []string
	sector := dir.data
	for i := 0; i+dirEntrySize <= len(sector); i += dirEntrySize {
		p := asBlob(sector[i : i+dirEntrySize])
		p.l = 64
		namelen := p.readU16()
		name := dirEntryName(sector[i:i+64], namelen)
		paths = append(paths, name)
		o := &Entry{Name: name}
		o.Type = p.readU8()
		o.Color = p.readU8()
		o.L = p.readI32()
		o.R = p.readI32()
		o.C = p.readI32()
		copy(o.CLSID[:], p.b[p.l:p.l+16])
		p.l += 16
		o.State = p.readU32()
		ctLo, ctHi := p.readU32(), p.readU32()
		if t, ok := fileTime(ctLo, ctHi); ok {
			o.Ct = t
		}
		mtLo, mtHi := p.readU32(), p.readU32()
		if t, ok := fileTime(mtLo, mtHi); ok {
			o.Mt = t
		}
		o.Start = p.readI32()
		o.Size = p.readI32()
		if o.Size < 0 && o.Start < 0 {
			o.Size = 0
			o.Type = EntryUnknown
			o.Start = ENDOFCHAIN
			o.Name = ""
		}
		switch {
		case o.Type == EntryRoot:
			minifatStore = o.Start
			if nmfs > 0 && minifatStore != ENDOFCHAIN {
				if ch := chains[minifatStore]; ch != nil {
					ch.name = "!StreamData"
				}
			}
		case o.Size >= 4096:
			o.Storage = StorageFAT
			if chains[o.Start] == nil {
				ch, err := walkChain(sectors, o.Start, fatAddrs, ssz, nil)
				if err != nil {
					return nil, nil, err
				}
				chains[o.Start] = ch
			}
			ch := chains[o.Start]
			ch.name = o.Name
			if o.Size <= len(ch.data) {
				o.Content = ch.data[:o.Size]
			} else {
				c.warnf("WARNING *** stream %q: expected %d bytes, chain has %d\n", o.Name, o.Size, len(ch.data))
				o.Content = ch.data
			}
		default:
			o.Storage = StorageMiniFAT
			if o.Size < 0 {
				o.Size = 0
			} else if o.Size > 0 && minifatStore != ENDOFCHAIN && o.Start != ENDOFCHAIN && chains[minifatStore] != nil {
				var minifat []byte
				if ch := chains[mini]; ch != nil {
					minifat = ch.data
				}
				o.Content = getMfatEntry(o, chains[minifatStore].data, minifat)
			}
		}
		fileIndex = append(fileIndex, o)
	}
	return fileIndex, paths, nil
}

// getMfatEntry walks the MiniFAT chain for entry e, carving 64-byte
// mini sectors out of the mini stream payload.
func getMfatEntry(e *Entry, payload, minifat []byte) []byte {
	var out []byte
	size := e.Size
	idx := e.Start
	for len(minifat) > 0 && size > 0 && idx >= 0 {
		lo := idx * miniSectorSize
		hi := lo + miniSectorSize
		if lo >= len(payload) {
			break
		}
		if hi > len(payload) {
			hi = len(payload)
		}
		out = append(out, payload[lo:hi]...)
		size -= miniSectorSize
		if idx*4+4 > len(minifat) {
			break
		}
		idx = i32le(minifat, idx*4)
	}
	if len(out) > e.Size {
		out = out[:e.Size]
	}
	return out
}
