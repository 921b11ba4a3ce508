package decode

import (
	"strings"
	"time"
)

// inactivityTimeout is how long a partial request/response or stream
// reassembler may sit idle before housekeeping evicts it.
const inactivityTimeout = 5 * time.Minute

// housekeepingInterval bounds how often eviction sweeps run.
const housekeepingInterval = time.Minute

// maxStreamReassemblers bounds the number of concurrently in-flight
// streaming responses, mirroring the pending-request cap.
const maxStreamReassemblers = 10000

// CompletedRequest is a fully-buffered HTTP request ready for decoding.
type CompletedRequest struct {
	Key  ConnectionKey
	Head parsedHead
	Body []byte
}

// CompletedResponse is a fully-buffered, decompressed HTTP response ready
// for decoding. Streaming is true when the response was routed through a
// stream reassembler instead of buffered whole.
type CompletedResponse struct {
	Key       ConnectionKey
	Head      parsedHead
	Body      []byte
	Streaming bool
	// Stream is the Stream Reassembler that reached completion, carrying the
	// accumulated content/usage/finish-reason. Only set when Streaming.
	Stream StreamReassembler
}

type partialRequest struct {
	buf          []byte
	head         *parsedHead
	lastActivity time.Time
}

type partialResponse struct {
	buf          []byte
	head         *parsedHead
	lastActivity time.Time
}

// StreamReassembler is the common interface both provider-style stream
// reassemblers satisfy, so the generic Reassembler can drive either without
// knowing which one it holds.
type StreamReassembler interface {
	Feed(chunk []byte) bool
	IsComplete() bool
}

type streamState struct {
	key             ConnectionKey
	head            *parsedHead
	reassembler     StreamReassembler
	chunked         bool
	chunkedConsumed int
	rawBuf          []byte
	lastActivity    time.Time
}

// StreamStyleResolver lets the Decoder tell the Reassembler which
// provider-specific stream reassembler to spin up for a connection key,
// based on the pending request's provider — the Reassembler has no
// provider knowledge of its own.
type StreamStyleResolver func(key ConnectionKey) (style string, expected bool)

// Reassembler turns the probe's fragmented byte stream into complete HTTP
// requests/responses per connection key, and routes streaming responses
// through the appropriate provider-specific Stream Reassembler.
type Reassembler struct {
	requests  map[ConnectionKey]*partialRequest
	responses map[ConnectionKey]*partialResponse
	streams   map[ConnectionKey]*streamState

	StyleResolver    StreamStyleResolver
	lastHousekeeping time.Time
}

func NewReassembler() *Reassembler {
	return &Reassembler{
		requests:  make(map[ConnectionKey]*partialRequest),
		responses: make(map[ConnectionKey]*partialResponse),
		streams:   make(map[ConnectionKey]*streamState),
	}
}

// looksLikeRequestLine reports whether chunk begins a new HTTP request,
// used to decide whether to replace a stale partial or append to it.
func looksLikeRequestLine(chunk []byte) bool {
	s := string(chunk)
	sp := strings.IndexByte(s, ' ')
	if sp < 0 {
		return false
	}
	rest := s[sp+1:]
	return strings.Contains(rest, " HTTP/")
}

func looksLikeStatusLine(chunk []byte) bool {
	return strings.HasPrefix(string(chunk), "HTTP/")
}

// FeedWrite handles one ssl_write record. It returns a CompletedRequest
// when the accumulated bytes now form one complete request.
func (r *Reassembler) FeedWrite(key ConnectionKey, payload []byte) (*CompletedRequest, bool) {
	now := time.Now()
	pr, exists := r.requests[key]
	if !exists || looksLikeRequestLine(payload) {
		pr = &partialRequest{}
		r.requests[key] = pr
	}
	pr.buf = append(pr.buf, payload...)
	pr.lastActivity = now

	if pr.head == nil {
		if head, ok := parseRequestLine(pr.buf); ok {
			pr.head = &head
		} else {
			return nil, false
		}
	}

	contentLength, hasCL := parsedContentLength(pr.head.Headers)
	bodyLen := len(pr.buf) - pr.head.HeaderLen
	complete := !hasCL || bodyLen >= contentLength
	if !complete {
		return nil, false
	}

	body := pr.buf[pr.head.HeaderLen:]
	if hasCL && len(body) > contentLength {
		body = body[:contentLength]
	}
	completed := &CompletedRequest{Key: key, Head: *pr.head, Body: body}
	delete(r.requests, key)
	return completed, true
}

func parsedContentLength(h headerSet) (int, bool) {
	v, ok := h.get("Content-Length")
	if !ok {
		return 0, false
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// FeedRead handles one ssl_read record, matching by the full key then the
// without-FD fallback. Returns a CompletedResponse when the buffered bytes
// complete per the chunked/content-length/eof rules, or when a streaming
// response's Stream Reassembler reports completion.
func (r *Reassembler) FeedRead(key ConnectionKey, payload []byte) (*CompletedResponse, bool) {
	now := time.Now()

	if st, sk, ok := r.lookupStream(key); ok {
		st.rawBuf = append(st.rawBuf, payload...)
		st.lastActivity = now
		decoded := payload
		if st.chunked {
			decoded, st.chunkedConsumed = decodeChunkedIncremental(st.rawBuf, st.chunkedConsumed)
		}
		complete := st.reassembler.Feed(decoded)
		if complete {
			delete(r.streams, sk)
			return &CompletedResponse{Key: sk, Head: *st.head, Streaming: true, Stream: st.reassembler}, true
		}
		return nil, false
	}

	pres, respKey, exists := r.lookupResponse(key)
	if !exists || looksLikeStatusLine(payload) {
		pres = &partialResponse{}
		respKey = key
		r.responses[key] = pres
	}
	pres.buf = append(pres.buf, payload...)
	pres.lastActivity = now

	if pres.head == nil {
		head, ok := parseStatusLine(pres.buf)
		if !ok {
			return nil, false
		}
		pres.head = &head

		if style, expected := r.resolveStyle(respKey); expected || isEventStream(pres.head.Headers) {
			chunked := isChunked(pres.head.Headers)
			ss := &streamState{
				key:          respKey,
				head:         pres.head,
				reassembler:  newStreamReassembler(style),
				chunked:      chunked,
				lastActivity: now,
			}
			body := pres.buf[pres.head.HeaderLen:]
			decoded := body
			if chunked {
				decoded, ss.chunkedConsumed = decodeChunkedIncremental(body, 0)
			}
			ss.rawBuf = append(ss.rawBuf, body...)
			delete(r.responses, respKey)
			complete := ss.reassembler.Feed(decoded)
			if complete {
				return &CompletedResponse{Key: respKey, Head: *ss.head, Streaming: true, Stream: ss.reassembler}, true
			}
			if len(r.streams) < maxStreamReassemblers {
				r.streams[respKey] = ss
			}
			return nil, false
		}
	}

	chunked := isChunked(pres.head.Headers)
	contentLength, hasCL := parsedContentLength(pres.head.Headers)
	body := pres.buf[pres.head.HeaderLen:]

	var complete bool
	switch {
	case chunked:
		complete = hasFinalChunkMarker(pres.buf)
	case hasCL:
		complete = len(body) >= contentLength
	default:
		complete = false // awaits explicit EOF signal from caller via Close
	}
	if !complete {
		return nil, false
	}

	if chunked {
		body, _ = decodeChunkedIncremental(body, 0)
	}
	if isGzip(pres.head.Headers) {
		if decompressed, ok := decompressGzip(body); ok {
			body = decompressed
		}
	}

	completed := &CompletedResponse{Key: respKey, Head: *pres.head, Body: body}
	delete(r.responses, respKey)
	return completed, true
}

// Close signals end-of-stream for a connection key (e.g. the probe reports
// the underlying fd closed). A response with neither chunked framing nor a
// declared content-length is completed at this point, per the "end of
// stream as completion" rule.
func (r *Reassembler) Close(key ConnectionKey) (*CompletedResponse, bool) {
	pres, respKey, exists := r.lookupResponse(key)
	if !exists || pres.head == nil {
		delete(r.responses, key)
		return nil, false
	}
	body := pres.buf[pres.head.HeaderLen:]
	if isGzip(pres.head.Headers) {
		if decompressed, ok := decompressGzip(body); ok {
			body = decompressed
		}
	}
	delete(r.responses, respKey)
	return &CompletedResponse{Key: respKey, Head: *pres.head, Body: body}, true
}

func (r *Reassembler) lookupResponse(key ConnectionKey) (*partialResponse, ConnectionKey, bool) {
	if p, ok := r.responses[key]; ok {
		return p, key, true
	}
	fb := key.WithoutFD()
	if fb != key {
		if p, ok := r.responses[fb]; ok {
			return p, fb, true
		}
	}
	return nil, key, false
}

func (r *Reassembler) lookupStream(key ConnectionKey) (*streamState, ConnectionKey, bool) {
	if s, ok := r.streams[key]; ok {
		return s, key, true
	}
	fb := key.WithoutFD()
	if fb != key {
		if s, ok := r.streams[fb]; ok {
			return s, fb, true
		}
	}
	return nil, key, false
}

func (r *Reassembler) resolveStyle(key ConnectionKey) (string, bool) {
	if r.StyleResolver == nil {
		return "", false
	}
	return r.StyleResolver(key)
}

func newStreamReassembler(style string) StreamReassembler {
	switch style {
	case "anthropic":
		return NewAnthropicStreamReassembler()
	default:
		return NewOpenAIStreamReassembler()
	}
}

func isChunked(h headerSet) bool {
	v, ok := h.get("Transfer-Encoding")
	return ok && strings.Contains(strings.ToLower(v), "chunked")
}

func isGzip(h headerSet) bool {
	v, ok := h.get("Content-Encoding")
	return ok && strings.Contains(strings.ToLower(v), "gzip")
}

func isEventStream(h headerSet) bool {
	v, ok := h.get("Content-Type")
	return ok && strings.Contains(strings.ToLower(v), "text/event-stream")
}

// Housekeeping evicts partial requests/responses/streams idle for more
// than inactivityTimeout. It is a no-op if called again within
// housekeepingInterval of the last run.
func (r *Reassembler) Housekeeping(now time.Time) (evictedRequests, evictedResponses, evictedStreams int) {
	if now.Sub(r.lastHousekeeping) < housekeepingInterval {
		return 0, 0, 0
	}
	r.lastHousekeeping = now

	for k, p := range r.requests {
		if now.Sub(p.lastActivity) > inactivityTimeout {
			delete(r.requests, k)
			evictedRequests++
		}
	}
	for k, p := range r.responses {
		if now.Sub(p.lastActivity) > inactivityTimeout {
			delete(r.responses, k)
			evictedResponses++
		}
	}
	for k, s := range r.streams {
		if now.Sub(s.lastActivity) > inactivityTimeout {
			delete(r.streams, k)
			evictedStreams++
		}
	}
	return evictedRequests, evictedResponses, evictedStreams
}
