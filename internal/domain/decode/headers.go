package decode

import (
	"strconv"
	"strings"
)

// headerSet is a minimal case-insensitive HTTP header map parsed by hand
// from raw bytes, since the bytes here come straight from the probe layer
// rather than a net/http connection.
type headerSet map[string]string

func (h headerSet) get(name string) (string, bool) {
	v, ok := h[strings.ToLower(name)]
	return v, ok
}

// parsedHead is the result of parsing one HTTP message's start-line plus
// headers.
type parsedHead struct {
	// RequestLine fields (only set for requests).
	Method string
	Path   string
	// StatusLine fields (only set for responses).
	StatusCode int
	Headers    headerSet
	HeaderLen  int // byte offset of the body's first byte
}

// findHeaderEnd returns the index just past "\r\n\r\n", or -1 if the header
// section is not yet complete.
func findHeaderEnd(buf []byte) int {
	idx := strings.Index(string(buf), "\r\n\r\n")
	if idx < 0 {
		return -1
	}
	return idx + 4
}

// parseRequestLine parses "METHOD /path HTTP/1.1" plus headers. Returns
// ok=false if buf doesn't look like a request at all.
func parseRequestLine(buf []byte) (parsedHead, bool) {
	headerEnd := findHeaderEnd(buf)
	if headerEnd < 0 {
		return parsedHead{}, false
	}
	head := string(buf[:headerEnd])
	lines := strings.Split(head, "\r\n")
	if len(lines) == 0 {
		return parsedHead{}, false
	}
	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 3 || !strings.HasPrefix(parts[2], "HTTP/") {
		return parsedHead{}, false
	}
	h := parsedHead{
		Method:    parts[0],
		Path:      parts[1],
		Headers:   parseHeaderLines(lines[1:]),
		HeaderLen: headerEnd,
	}
	return h, true
}

// parseStatusLine parses "HTTP/1.1 200 OK" plus headers.
func parseStatusLine(buf []byte) (parsedHead, bool) {
	headerEnd := findHeaderEnd(buf)
	if headerEnd < 0 {
		return parsedHead{}, false
	}
	head := string(buf[:headerEnd])
	lines := strings.Split(head, "\r\n")
	if len(lines) == 0 {
		return parsedHead{}, false
	}
	parts := strings.SplitN(lines[0], " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return parsedHead{}, false
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return parsedHead{}, false
	}
	h := parsedHead{
		StatusCode: code,
		Headers:    parseHeaderLines(lines[1:]),
		HeaderLen:  headerEnd,
	}
	return h, true
}

func parseHeaderLines(lines []string) headerSet {
	h := make(headerSet, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		i := strings.IndexByte(line, ':')
		if i < 0 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(line[:i]))
		val := strings.TrimSpace(line[i+1:])
		h[name] = val
	}
	return h
}
