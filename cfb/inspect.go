package cfb

import "bytes"

// FileFormatDescriptions provides descriptions of the container types
// that can be sniffed.
var FileFormatDescriptions = map[string]string{
	"cfb": "Compound File Binary container",
	"zip": "ZIP archive",
	"":    "Unknown file type",
}

// CFB_SIGNATURE is the magic cookie in the first 8 bytes of a compound file.
var CFB_SIGNATURE = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// ZIP_SIGNATURE is the magic cookie for ZIP files.
var ZIP_SIGNATURE = []byte("PK")

// PEEK_SIZE is the number of bytes needed to sniff a signature.
const PEEK_SIZE = 8

// InspectFormat inspects the leading bytes of content and returns the
// container type as a string, or the empty string if it cannot be
// determined. The return value can always be looked up in
// FileFormatDescriptions for a human-readable description.
func InspectFormat(content []byte) string {
	if bytes.HasPrefix(content, ZIP_SIGNATURE) {
		return "zip"
	}
	if len(content) >= PEEK_SIZE && bytes.Equal(content[:PEEK_SIZE], CFB_SIGNATURE) {
		return "cfb"
	}
	return ""
}
