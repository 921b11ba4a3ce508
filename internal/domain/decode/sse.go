package decode

import "strings"

// SSEEvent is one parsed Server-Sent Event.
type SSEEvent struct {
	Event string
	Data  string
	ID    string
	Retry string
}

// SSEParser incrementally buffers bytes and yields complete events,
// delimited by a blank line ("\n\n" or "\r\n\r\n"). It never blocks: Feed
// returns whatever events the newly buffered bytes completed.
type SSEParser struct {
	buf strings.Builder
}

// Feed appends chunk to the parser's buffer and extracts any complete
// events now available.
func (p *SSEParser) Feed(chunk []byte) []SSEEvent {
	p.buf.Write(chunk)
	content := p.buf.String()

	var events []SSEEvent
	for {
		idx, sepLen := nextEventBoundary(content)
		if idx < 0 {
			break
		}
		raw := content[:idx]
		content = content[idx+sepLen:]
		if ev, ok := parseSSEBlock(raw); ok {
			events = append(events, ev)
		}
	}

	p.buf.Reset()
	p.buf.WriteString(content)
	return events
}

// nextEventBoundary finds the earliest "\n\n" or "\r\n\r\n" in s, returning
// its index and the separator's length, or (-1, 0) if none is present yet.
func nextEventBoundary(s string) (int, int) {
	crlf := strings.Index(s, "\r\n\r\n")
	lf := strings.Index(s, "\n\n")
	switch {
	case crlf < 0 && lf < 0:
		return -1, 0
	case crlf < 0:
		return lf, 2
	case lf < 0:
		return crlf, 4
	case crlf <= lf:
		return crlf, 4
	default:
		return lf, 2
	}
}

// parseSSEBlock parses one event's worth of "field: value" lines.
func parseSSEBlock(raw string) (SSEEvent, bool) {
	raw = strings.TrimRight(raw, "\r\n")
	if raw == "" {
		return SSEEvent{}, false
	}
	var ev SSEEvent
	var dataLines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			ev.Event = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			ev.ID = value
		case "retry":
			ev.Retry = value
		}
	}
	ev.Data = strings.Join(dataLines, "\n")
	return ev, true
}
