package block

import "bytes"

var signatures = []struct {
	magic []byte
	ext   string
}{
	{[]byte{0xFF, 0xD8}, "jpg"},
	{[]byte{0x89, 0x50, 0x4E, 0x47}, "png"},
	{[]byte{0x47, 0x49, 0x46}, "gif"},
}

// SniffExtension inspects the first few bytes of data and returns a
// suggested file extension, falling back to "binary" (§4.I Completion).
func SniffExtension(data []byte) string {
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.ext
		}
	}
	return "binary"
}
