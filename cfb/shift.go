package cfb

import (
	"encoding/binary"
	"strconv"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// Seconds between the FILETIME epoch (1601-01-01) and the Unix epoch.
const filetimeEpochDelta = 11644473600

var utf16leCodec = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// utf16leEncode converts a string to UTF-16LE bytes.
func utf16leEncode(s string) []byte {
	enc, err := utf16leCodec.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil
	}
	return enc
}

// utf16leDecode converts UTF-16LE bytes to a string.
func utf16leDecode(b []byte) string {
	dec, err := utf16leCodec.NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(dec)
}

// fileTime converts a FILETIME pair of little-endian words (100ns ticks
// since 1601-01-01) to UTC. The all-zero value means no timestamp and
// yields ok == false.
func fileTime(lo, hi uint32) (t time.Time, ok bool) {
	if lo == 0 && hi == 0 {
		return time.Time{}, false
	}
	ticks := uint64(hi)<<32 | uint64(lo)
	secs := int64(ticks/10000000) - filetimeEpochDelta
	nsec := int64(ticks%10000000) * 100
	return time.Unix(secs, nsec).UTC(), true
}

// i32le reads a signed little-endian int32 at off.
func i32le(b []byte, off int) int {
	return int(int32(binary.LittleEndian.Uint32(b[off:])))
}

// blob is a byte buffer with a read/write cursor; all sector-level
// encoding and decoding goes through it. Values are little-endian on
// the wire regardless of host order.
type blob struct {
	b []byte
	l int
}

func newBlob(n int) *blob {
	return &blob{b: make([]byte, n)}
}

func asBlob(b []byte) *blob {
	return &blob{b: b}
}

func (p *blob) readU8() int {
	v := p.b[p.l]
	p.l++
	return int(v)
}

func (p *blob) readU16() int {
	v := binary.LittleEndian.Uint16(p.b[p.l:])
	p.l += 2
	return int(v)
}

func (p *blob) readU32() uint32 {
	v := binary.LittleEndian.Uint32(p.b[p.l:])
	p.l += 4
	return v
}

func (p *blob) readI32() int {
	v := int32(binary.LittleEndian.Uint32(p.b[p.l:]))
	p.l += 4
	return int(v)
}

func (p *blob) writeU8(v int) {
	p.b[p.l] = byte(v)
	p.l++
}

func (p *blob) writeU16(v int) {
	binary.LittleEndian.PutUint16(p.b[p.l:], uint16(v))
	p.l += 2
}

func (p *blob) writeU32(v int) {
	binary.LittleEndian.PutUint32(p.b[p.l:], uint32(v))
	p.l += 4
}

func (p *blob) writeI32(v int) {
	binary.LittleEndian.PutUint32(p.b[p.l:], uint32(int32(v)))
	p.l += 4
}

func (p *blob) writeBytes(b []byte) {
	copy(p.b[p.l:], b)
	p.l += len(b)
}

func (p *blob) writeZeros(n int) {
	for i := 0; i < n; i++ {
		p.b[p.l] = 0
		p.l++
	}
}

// writeHex decodes the hex string s high nibble first and emits exactly
// n bytes, zero padded or truncated.
func (p *blob) writeHex(n int, s string) {
	for i := 0; i < n; i++ {
		var v byte
		if 2*i+2 <= len(s) {
			if u, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8); err == nil {
				v = byte(u)
			}
		}
		p.b[p.l] = v
		p.l++
	}
}

// writeUTF16 encodes s as UTF-16LE into exactly n bytes, zero padded or
// truncated at a code unit boundary.
func (p *blob) writeUTF16(n int, s string) {
	enc := utf16leEncode(s)
	if len(enc) > n {
		enc = enc[:n&^1]
	}
	copy(p.b[p.l:p.l+n], enc)
	for i := len(enc); i < n; i++ {
		p.b[p.l+i] = 0
	}
	p.l += n
}
