package event

// RequestType closes over the kinds of AI calls the sensor recognizes.
type RequestType string

const (
	RequestChat       RequestType = "chat"
	RequestCompletion RequestType = "completion"
	RequestEmbedding  RequestType = "embedding"
	RequestImage      RequestType = "image"
	RequestAudio      RequestType = "audio"
	RequestModeration RequestType = "moderation"
	RequestOther      RequestType = "other"
)

// FinishReason is the normalized, closed set a provider's raw finish/stop
// reason string is mapped onto.
type FinishReason string

const (
	FinishStop       FinishReason = "stop"
	FinishLength     FinishReason = "length"
	FinishToolCalls  FinishReason = "tool_calls"
	FinishContentFlt FinishReason = "content_filter"
	FinishError      FinishReason = "error"
	FinishOther      FinishReason = "other"
)

// ThinkingMode distinguishes the provider-specific flavors of extended
// reasoning content.
type ThinkingMode string

const (
	ThinkingExtended  ThinkingMode = "extended_thinking"
	ThinkingReasoning ThinkingMode = "reasoning"
	ThinkingDeep      ThinkingMode = "deep_thinking"
)

// MessageRole is the speaker of a Message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// AccountType distinguishes personal vs. organizational API credentials
// where the provider surfaces that distinction.
type AccountType string

const (
	AccountPersonal AccountType = "personal"
	AccountOrg      AccountType = "organization"
	AccountUnknown  AccountType = "unknown"
)

// AuthType names the authentication scheme a request used.
type AuthType string

const (
	AuthAPIKey AuthType = "api_key"
	AuthOAuth  AuthType = "oauth"
	AuthNone   AuthType = "none"
)

// AuthInfo never carries the raw credential: only enough to classify it.
type AuthInfo struct {
	Type        AuthType    `json:"type"`
	AccountType AccountType `json:"account_type,omitempty"`
	KeyPrefix   string      `json:"key_prefix,omitempty"`
	KeyHash     string      `json:"key_hash,omitempty"`
}

// ProviderInfo names the AI provider and endpoint a request addressed.
type ProviderInfo struct {
	Name      string `json:"name"`
	Endpoint  string `json:"endpoint,omitempty"`
	Org       string `json:"org,omitempty"`
	Project   string `json:"project,omitempty"`
	RequestID string `json:"provider_request_id,omitempty"`
}

// ModelInfo identifies the model and, when known from the registry, its
// declared limits.
type ModelInfo struct {
	ID               string `json:"id"`
	ContextWindow    *int   `json:"context_window,omitempty"`
	MaxOutputTokens  *int   `json:"max_output_tokens,omitempty"`
}

// RedactionInfo is attached to a RedactedContent marker.
type RedactionInfo struct {
	Reason   string    `json:"reason"`
	Detector string    `json:"detector,omitempty"`
	Length   int       `json:"original_length"`
	Hash     string    `json:"hash,omitempty"`
	Preview  string    `json:"preview,omitempty"`
	Profile  string    `json:"profile,omitempty"`
	Findings []Finding `json:"findings,omitempty"`
}

// Finding records one detector hit inside a redacted field.
type Finding struct {
	Detector string `json:"detector"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

// MessageContent is either literal text or a redacted marker. Exactly one of
// Text or Redacted is set; MarshalJSON/UnmarshalJSON flatten the union the
// way the original untagged Rust enum does.
type MessageContent struct {
	Text     *string        `json:"-"`
	Redacted *RedactionInfo `json:"-"`
}

func TextContent(s string) MessageContent {
	return MessageContent{Text: &s}
}

func RedactedContentMarker(info RedactionInfo) MessageContent {
	return MessageContent{Redacted: &info}
}

// ToolType distinguishes function tools from provider built-ins.
type ToolType string

const (
	ToolFunction ToolType = "function"
	ToolBuiltin  ToolType = "builtin"
)

// ToolDefinition is a tool offered to the model in a request.
type ToolDefinition struct {
	Name        string   `json:"name"`
	Type        ToolType `json:"type"`
	Description string   `json:"description,omitempty"`
}

// ToolArguments is either a raw JSON string, a parsed object, or redacted.
// Exactly one field is populated.
type ToolArguments struct {
	Raw      string         `json:"-"`
	Parsed   map[string]any `json:"-"`
	Redacted *RedactionInfo `json:"-"`
}

// ToolCall is a model-issued invocation of a tool.
type ToolCall struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Arguments ToolArguments `json:"arguments"`
}

// Message is one turn in the conversation sent to / returned from the model.
type Message struct {
	Role        MessageRole     `json:"role"`
	Content     MessageContent  `json:"content,omitempty"`
	HasImages   bool            `json:"has_images,omitempty"`
	ImageCount  int             `json:"image_count,omitempty"`
	ToolCallID  string          `json:"tool_call_id,omitempty"`
	ToolName    string          `json:"tool_name,omitempty"`
}

// ModelParameters carries the sampling/shape knobs a request set.
type ModelParameters struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	StopSequences    []string `json:"stop_sequences,omitempty"`
}

// AIRequestData is the ai.request variant payload.
type AIRequestData struct {
	RequestID        string           `json:"request_id"`
	Provider         ProviderInfo     `json:"provider"`
	Model            ModelInfo        `json:"model"`
	Auth             AuthInfo         `json:"auth"`
	RequestType      RequestType      `json:"request_type"`
	Streaming        bool             `json:"streaming"`
	Messages         []Message        `json:"messages,omitempty"`
	SystemPromptSet  bool             `json:"system_prompt_set,omitempty"`
	SystemPromptHash string           `json:"system_prompt_hash,omitempty"`
	Tools            []ToolDefinition `json:"tools,omitempty"`
	ToolChoice       string           `json:"tool_choice,omitempty"`
	Parameters       ModelParameters  `json:"parameters,omitempty"`
	RAG              bool             `json:"rag,omitempty"`
	ImageCount       int              `json:"image_count,omitempty"`
	EstimatedTokens  int              `json:"estimated_tokens,omitempty"`
	ConversationID   string           `json:"conversation_id,omitempty"`
	AgentContext     bool             `json:"agent_context,omitempty"`
}

// Choice is one candidate completion in a response.
type Choice struct {
	Index        int          `json:"index"`
	Message      Message      `json:"message"`
	FinishReason FinishReason `json:"finish_reason"`
}

// Usage aggregates token accounting and, where cost data is available from
// the model registry, derived spend.
type Usage struct {
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	TotalTokens      int      `json:"total_tokens"`
	CachedTokens     int      `json:"cached_tokens,omitempty"`
	ReasoningTokens  int      `json:"reasoning_tokens,omitempty"`
	CostUSD          *float64 `json:"cost_usd,omitempty"`
}

// ErrorInfo describes a failed AI call.
type ErrorInfo struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ThinkingBlock surfaces extended-reasoning content when a provider emits
// it, never both content and hash at once unless redaction requires it.
type ThinkingBlock struct {
	Enabled  bool         `json:"enabled"`
	Content  string       `json:"content,omitempty"`
	Hash     string       `json:"hash,omitempty"`
	Length   int          `json:"length,omitempty"`
	Tokens   int          `json:"tokens,omitempty"`
	Duration int64        `json:"duration_ms,omitempty"`
	Mode     ThinkingMode `json:"mode,omitempty"`
}

// AIResponseData is the ai.response variant payload.
type AIResponseData struct {
	RequestID      string         `json:"request_id"`
	Provider       ProviderInfo   `json:"provider"`
	Model          ModelInfo      `json:"model"`
	StatusCode     int            `json:"status_code"`
	Success        bool           `json:"success"`
	Error          *ErrorInfo     `json:"error,omitempty"`
	Choices        []Choice       `json:"choices,omitempty"`
	ToolCalls      []ToolCall     `json:"tool_calls,omitempty"`
	Usage          Usage          `json:"usage"`
	LatencyMS      int64          `json:"latency_ms"`
	TTFBMS         *int64         `json:"time_to_first_token_ms,omitempty"`
	Cached         bool           `json:"cached,omitempty"`
	FinishReason   FinishReason   `json:"finish_reason"`
	Thinking       *ThinkingBlock `json:"thinking,omitempty"`
}

// ChunkDelta is one streamed fragment aggregated by a stream reassembler.
type ChunkDelta struct {
	Content      string       `json:"content,omitempty"`
	ToolCallFrag string       `json:"tool_call_fragment,omitempty"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// AIStreamingChunkData is the ai.streaming_chunk variant payload, emitted
// optionally per-delta for observability; the synthesized ai.response is
// what downstream consumers should treat as authoritative.
type AIStreamingChunkData struct {
	RequestID string     `json:"request_id"`
	Index     int        `json:"index"`
	Delta     ChunkDelta `json:"delta"`
}

// AIEmbeddingData is the ai.embedding variant payload.
type AIEmbeddingData struct {
	RequestID  string       `json:"request_id"`
	Provider   ProviderInfo `json:"provider"`
	Model      ModelInfo    `json:"model"`
	InputCount int          `json:"input_count"`
	Dimensions int          `json:"dimensions,omitempty"`
	Usage      Usage        `json:"usage"`
	LatencyMS  int64        `json:"latency_ms"`
}
