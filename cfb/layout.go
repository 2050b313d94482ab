package cfb

// layout captures the sector arithmetic for one write: counts of DIFAT,
// FAT, MiniFAT, directory and payload sectors, plus the total image
// size in sectors including the header block.
type layout struct {
	difatCnt int // DIFAT overflow sectors
	fatCnt   int // FAT sectors
	mfatCnt  int // MiniFAT sectors
	dirCnt   int // directory sectors
	fatSize  int // sectors holding FAT-resident stream payloads
	miniSize int // mini sectors holding MiniFAT-resident payloads
	miniCnt  int // sectors holding the mini stream
	total    int // whole image, in sectors
}

// planLayout sizes the sector regions for the current directory and
// assigns the root entry its mini stream extent. Stream start sectors
// are assigned later, while the FAT itself is emitted.
func (c *Codec) planLayout() layout {
	var L layout
	for _, file := range c.FileIndex {
		if file.Content == nil {
			continue
		}
		flen := len(file.Content)
		if flen == 0 {
			continue
		}
		if flen < miniCutoff {
			L.miniSize += (flen + 0x3F) >> 6
		} else {
			L.fatSize += (flen + 0x1FF) >> 9
		}
	}
	L.dirCnt = (len(c.FullPaths) + 3) >> 2
	L.miniCnt = (L.miniSize + 7) >> 3
	L.mfatCnt = (L.miniSize + 0x7F) >> 7
	fatBase := L.miniCnt + L.fatSize + L.dirCnt + L.mfatCnt
	L.fatCnt = (fatBase + 0x7F) >> 7
	L.difatCnt = difatFor(L.fatCnt)
	// Growing the FAT may demand more DIFAT sectors, which in turn
	// grows the FAT; the loop converges monotonically.
	for (fatBase+L.fatCnt+L.difatCnt+0x7F)>>7 > L.fatCnt {
		L.fatCnt++
		L.difatCnt = difatFor(L.fatCnt)
	}
	root := c.FileIndex[0]
	root.Size = L.miniSize << 6
	root.Start = 1 + L.difatCnt + L.fatCnt + L.mfatCnt + L.dirCnt + L.fatSize
	L.total = root.Start + L.miniCnt
	return L
}

// difatFor returns the DIFAT overflow sector count needed to address
// fatCnt FAT sectors beyond the 109 header slots.
func difatFor(fatCnt int) int {
	if fatCnt <= headerDIFAT {
		return 0
	}
	return (fatCnt - headerDIFAT + 0x7E) / 0x7F
}
