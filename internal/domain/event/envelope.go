// Package event defines the canonical tagged-union event type that flows
// through the pipeline from decode through export, and the enumerations its
// envelope carries.
package event

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// EventType names the variant carried by an Event's payload. Values are
// snake_case / dotted to match the wire format.
type EventType string

const (
	TypeAIRequest        EventType = "ai.request"
	TypeAIResponse       EventType = "ai.response"
	TypeAIStreamingChunk EventType = "ai.streaming_chunk"
	TypeAIEmbedding      EventType = "ai.embedding"
	TypeAgentToolCall    EventType = "agent.tool_call"
	TypeAgentToolResult  EventType = "agent.tool_result"
	TypeProcessExec      EventType = "process.exec"
	TypeProcessExit      EventType = "process.exit"
	TypeProcessFork      EventType = "process.fork"
	TypeFileOpen         EventType = "file.open"
	TypeFileRead         EventType = "file.read"
	TypeFileWrite        EventType = "file.write"
	TypeFileClose        EventType = "file.close"
	TypeNetworkConnect   EventType = "network.connect"
	TypeNetworkAccept    EventType = "network.accept"
	TypeNetworkFlow      EventType = "network.flow"
	TypeNetworkDNS       EventType = "network.dns"
	TypeCaptureRaw       EventType = "capture.raw"
)

// CaptureMethod records how the underlying bytes reached the sensor.
type CaptureMethod string

const (
	CaptureEbpfTracepoint   CaptureMethod = "ebpf_tracepoint"
	CaptureEbpfKprobe       CaptureMethod = "ebpf_kprobe"
	CaptureEbpfUprobe       CaptureMethod = "ebpf_uprobe"
	CaptureDtrace           CaptureMethod = "dtrace"
	CaptureEtw              CaptureMethod = "etw"
	CaptureSyscallIntercept CaptureMethod = "syscall_intercept"
	CaptureTLSBoundary      CaptureMethod = "tls_boundary"
	CaptureMitmProxy        CaptureMethod = "mitm_proxy"
	CaptureBrowserExt       CaptureMethod = "browser_extension"
	CaptureSdkInstr         CaptureMethod = "sdk_instrumentation"
	CaptureVendorAPI        CaptureMethod = "vendor_api"
	CaptureVendorAuditLog   CaptureMethod = "vendor_audit_log"
	CaptureLogParsing       CaptureMethod = "log_parsing"
	CaptureEndpointSecurity CaptureMethod = "endpoint_security"
	CaptureNetworkExt       CaptureMethod = "network_extension"
	CaptureOther            CaptureMethod = "other"
)

// ConfidenceLevel expresses how sure the sensor is that an event represents
// what its fields claim.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Completeness says whether the event carries a full payload, only metadata,
// or something in between (e.g. a response seen without its request).
type Completeness string

const (
	CompletenessMetadataOnly Completeness = "metadata_only"
	CompletenessPartial      Completeness = "partial"
	CompletenessFull         Completeness = "full"
)

// Relationship describes how a RelatedEvent reference connects to the event
// that carries it.
type Relationship string

const (
	RelationParent   Relationship = "parent"
	RelationChild    Relationship = "child"
	RelationCausedBy Relationship = "caused_by"
	RelationCauses   Relationship = "causes"
	RelationRelated  Relationship = "related"
)

// Host identifies the machine the sensor runs on.
type Host struct {
	Hostname string `json:"hostname"`
	DeviceID string `json:"device_id,omitempty"`
	OS       string `json:"os,omitempty"`
	Arch     string `json:"arch,omitempty"`
}

// Actor identifies the user the owning process runs as.
type Actor struct {
	UID  int    `json:"uid"`
	User string `json:"user,omitempty"`
}

// Process identifies the process that produced an event.
type Process struct {
	PID        int      `json:"pid"`
	TID        *int     `json:"tid,omitempty"`
	Comm       string   `json:"comm"`
	Exe        string   `json:"exe,omitempty"`
	PPID       int      `json:"ppid,omitempty"`
	Ancestors  []int    `json:"ancestors,omitempty"`
	SigningID  string   `json:"signing_id,omitempty"`
	AppID      string   `json:"app_id,omitempty"`
	AppTier    string   `json:"app_tier,omitempty"`
	AppName    string   `json:"app_name,omitempty"`
	IsBrowser  bool     `json:"is_browser,omitempty"`
	CmdlineArr []string `json:"cmdline,omitempty"`
}

// Source identifies what collected an event and how.
type Source struct {
	Collector     string        `json:"collector"`
	CaptureMethod CaptureMethod `json:"capture_method"`
	CapturePoint  string        `json:"capture_point,omitempty"`
}

// Confidence carries the sensor's self-assessment of an event's fidelity.
type Confidence struct {
	Level             ConfidenceLevel `json:"level"`
	Completeness      Completeness    `json:"completeness"`
	Reasons           []string        `json:"reasons,omitempty"`
	ContentSource     string          `json:"content_source,omitempty"`
	AIDetectionMethod string          `json:"ai_detection_method,omitempty"`
}

// RelatedEvent cross-references another event without forming a cycle of
// direct pointers; consumers resolve event_id through the pipeline's own
// indices.
type RelatedEvent struct {
	EventID      string       `json:"event_id"`
	Relationship Relationship `json:"relationship"`
}

// TraceContext carries W3C trace-context propagation fields.
type TraceContext struct {
	TraceParent string `json:"traceparent,omitempty"`
	TraceState  string `json:"tracestate,omitempty"`
}

// Envelope is embedded in every Event; its fields sit at the top level of
// the wire JSON object alongside the variant payload.
type Envelope struct {
	OispVersion   string         `json:"oisp_version"`
	EventID       string         `json:"event_id"`
	EventType     EventType      `json:"event_type"`
	Timestamp     time.Time      `json:"timestamp"`
	TimestampMono *uint64        `json:"ts_mono,omitempty"`
	Host          Host           `json:"host"`
	Actor         *Actor         `json:"actor,omitempty"`
	Process       *Process       `json:"process,omitempty"`
	Source        Source         `json:"source"`
	Confidence    Confidence     `json:"confidence"`
	Attrs         map[string]any `json:"attrs,omitempty"`
	Ext           map[string]any `json:"ext,omitempty"`
	RelatedEvents []RelatedEvent `json:"related_events,omitempty"`
	TraceContext  *TraceContext  `json:"trace_context,omitempty"`
}

// CurrentOispVersion is the schema revision stamped on every event this
// build produces.
const CurrentOispVersion = "1.0"

// NewEnvelope stamps a fresh ULID event_id and the current schema version.
func NewEnvelope(eventType EventType, source Source) Envelope {
	return Envelope{
		OispVersion: CurrentOispVersion,
		EventID:     ulid.Make().String(),
		EventType:   eventType,
		Timestamp:   time.Now().UTC(),
		Source:      source,
		Confidence: Confidence{
			Level:        ConfidenceHigh,
			Completeness: CompletenessFull,
		},
	}
}
