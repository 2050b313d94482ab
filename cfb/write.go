package cfb

// fatChain emits forward-pointer runs into the FAT region, carrying the
// sector cursor between chains. Each slot of a chain points at the next
// sector; the last slot holds ENDOFCHAIN.
type fatChain struct {
	p *blob
	i int // next FAT slot to fill
	t int // end of the current chain
}

func (f *fatChain) chain(n int) {
	f.t += n
	for ; f.i < f.t-1; f.i++ {
		f.p.writeI32(f.i + 1)
	}
	if n > 0 {
		f.i++
		f.p.writeI32(ENDOFCHAIN)
	}
}

// Write lays out and emits the complete compound file image: header,
// DIFAT, FAT, MiniFAT, directory, FAT-resident payloads and the mini
// stream. Always emits major version 3 (512-byte sectors).
func (c *Codec) Write() ([]byte, error) {
	if err := c.rebuild(false); err != nil {
		return nil, err
	}
	L := c.planLayout()
	o := newBlob(L.total << 9)

	// Header.
	o.writeBytes(CFB_SIGNATURE)
	o.writeZeros(16)
	o.writeU16(0x003E) // minor version
	o.writeU16(0x0003) // major version
	o.writeU16(0xFFFE) // byte order
	o.writeU16(0x0009) // sector shift
	o.writeU16(0x0006) // mini sector shift
	o.writeZeros(6)
	o.writeU32(0) // directory sector count, always 0 for version 3
	o.writeU32(L.fatCnt)
	o.writeU32(1 + L.difatCnt + L.fatCnt + L.mfatCnt - 1) // first directory sector
	o.writeU32(0)                                         // transaction signature
	o.writeU32(miniCutoff)
	if L.mfatCnt > 0 {
		o.writeI32(1 + L.difatCnt + L.fatCnt - 1)
	} else {
		o.writeI32(ENDOFCHAIN)
	}
	o.writeU32(L.mfatCnt)
	if L.difatCnt > 0 {
		o.writeI32(0)
	} else {
		o.writeI32(ENDOFCHAIN)
	}
	o.writeU32(L.difatCnt)

	// DIFAT in the header: 109 slots of FAT sector addresses.
	idx := 0
	for ; idx < headerDIFAT; idx++ {
		if idx < L.fatCnt {
			o.writeI32(L.difatCnt + idx)
		} else {
			o.writeI32(FREESECT)
		}
	}

	// DIFAT overflow sectors: 127 addresses each, then the pointer to
	// the next DIFAT sector.
	for t := 0; t < L.difatCnt; t++ {
		for ; idx < 236+t*127; idx++ {
			if idx < L.fatCnt {
				o.writeI32(L.difatCnt + idx)
			} else {
				o.writeI32(FREESECT)
			}
		}
		if t == L.difatCnt-1 {
			o.writeI32(ENDOFCHAIN)
		} else {
			o.writeI32(t + 1)
		}
	}

	// FAT sectors. The entries mirror the sector order of the file:
	// DIFAT sectors, FAT sectors, MiniFAT chain, directory chain, each
	// FAT-resident stream, finally the mini stream.
	f := &fatChain{p: o}
	f.t += L.difatCnt
	for ; f.i < f.t; f.i++ {
		o.writeI32(DIFSECT)
	}
	f.t += L.fatCnt
	for ; f.i < f.t; f.i++ {
		o.writeI32(FATSECT)
	}
	f.chain(L.mfatCnt)
	f.chain(L.dirCnt)
	for _, file := range c.FileIndex {
		if file.Content == nil || len(file.Content) < miniCutoff {
			continue
		}
		file.Start = f.t
		f.chain((len(file.Content) + 0x1FF) >> 9)
	}
	f.chain(L.miniCnt)
	for o.l&0x1FF != 0 {
		o.writeI32(ENDOFCHAIN)
	}

	// MiniFAT sectors: one forward pointer per mini sector.
	f.i, f.t = 0, 0
	for _, file := range c.FileIndex {
		if file.Content == nil {
			continue
		}
		flen := len(file.Content)
		if flen == 0 || flen >= miniCutoff {
			continue
		}
		file.Start = f.t
		f.chain((flen + 0x3F) >> 6)
	}
	for o.l&0x1FF != 0 {
		o.writeI32(ENDOFCHAIN)
	}

	// Directory sectors, 128 bytes per entry.
	for i, file := range c.FileIndex {
		enc := utf16leEncode(file.Name)
		if len(enc) > 62 {
			c.warnf("WARNING *** entry name %q longer than 31 characters; truncated\n", file.Name)
			enc = enc[:62]
		}
		o.writeBytes(enc)
		o.writeZeros(64 - len(enc))
		o.writeU16(len(enc) + 2) // name length includes the terminator
		o.writeU8(file.Type)
		o.writeU8(file.Color)
		o.writeI32(file.L)
		o.writeI32(file.R)
		o.writeI32(file.C)
		o.writeBytes(file.CLSID[:])
		o.writeU32(int(file.State))
		o.writeZeros(16) // timestamps are emitted as zero
		if i == 0 && file.Size > 0 {
			// The mini stream start is stored as an absolute sector index.
			o.writeI32(file.Start - 1)
		} else {
			o.writeI32(file.Start)
		}
		o.writeI32(file.Size)
		o.writeZeros(4)
	}
	for i := len(c.FileIndex); i < L.dirCnt<<2; i++ {
		o.writeZeros(68)
		o.writeI32(NOSTREAM)
		o.writeI32(NOSTREAM)
		o.writeI32(NOSTREAM)
		o.writeZeros(48)
	}

	// FAT-resident stream payloads at their pre-assigned sectors.
	for _, file := range c.FileIndex[1:] {
		if file.Content == nil || len(file.Content) < miniCutoff {
			continue
		}
		o.l = (file.Start + 1) << 9
		o.writeBytes(file.Content)
		for o.l&0x1FF != 0 {
			o.writeU8(0)
		}
	}

	// MiniFAT-resident stream payloads, packed as 64-byte mini sectors.
	for _, file := range c.FileIndex[1:] {
		if file.Content == nil {
			continue
		}
		flen := len(file.Content)
		if flen == 0 || flen >= miniCutoff {
			continue
		}
		o.writeBytes(file.Content)
		for o.l&0x3F != 0 {
			o.writeU8(0)
		}
	}
	return o.b, nil
}
