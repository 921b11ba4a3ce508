package decode

import (
	"strconv"
	"strings"
)

// hasFinalChunkMarker reports whether buf's tail contains the terminal
// "0\r\n\r\n" chunk marker. Scanning is intentionally limited to the last
// twenty bytes of the buffer — a known limitation carried over from the
// original implementation: it will miss a final chunk if a trailing
// (post-chunk) header block follows the zero-length chunk and pushes the
// marker further back than twenty bytes from the tail.
func hasFinalChunkMarker(buf []byte) bool {
	tailStart := 0
	if len(buf) > 20 {
		tailStart = len(buf) - 20
	}
	return strings.Contains(string(buf[tailStart:]), "0\r\n\r\n")
}

// decodeChunkedIncremental parses as many complete chunks as are available
// in buf starting at offset consumed, returning the newly decoded body
// bytes and the new consumed offset into buf. Calling it repeatedly as buf
// grows (keeping consumed from the previous call) decodes a chunked stream
// incrementally; calling it once with consumed=0 over a complete buffer
// decodes it in one pass.
func decodeChunkedIncremental(buf []byte, consumed int) ([]byte, int) {
	var out []byte
	pos := consumed
	for {
		lineEnd := indexCRLF(buf, pos)
		if lineEnd < 0 {
			break
		}
		sizeLine := strings.TrimSpace(string(buf[pos:lineEnd]))
		if idx := strings.IndexByte(sizeLine, ';'); idx >= 0 {
			sizeLine = sizeLine[:idx]
		}
		size, err := strconv.ParseInt(sizeLine, 16, 64)
		if err != nil {
			break
		}
		chunkStart := lineEnd + 2
		chunkEnd := chunkStart + int(size)
		if chunkEnd+2 > len(buf) {
			break // chunk body not fully buffered yet
		}
		if size == 0 {
			pos = chunkEnd + 2
			break
		}
		out = append(out, buf[chunkStart:chunkEnd]...)
		pos = chunkEnd + 2
	}
	return out, pos
}

func indexCRLF(buf []byte, from int) int {
	idx := strings.Index(string(buf[from:]), "\r\n")
	if idx < 0 {
		return -1
	}
	return from + idx
}
