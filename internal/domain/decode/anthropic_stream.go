package decode

import (
	"encoding/json"
	"strings"

	"github.com/oisp/sensor/internal/domain/event"
)

type anthropicMessageStart struct {
	Message struct {
		ID    string `json:"id"`
		Model string `json:"model"`
		Usage struct {
			InputTokens int `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

type anthropicContentBlockDelta struct {
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
		Thinking    string `json:"thinking"`
	} `json:"delta"`
}

type anthropicMessageDelta struct {
	Delta struct {
		StopReason string `json:"stop_reason"`
	} `json:"delta"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// AnthropicStreamReassembler accumulates an Anthropic-style typed-SSE
// stream into a synthesized ai.response. Complete on message_stop.
type AnthropicStreamReassembler struct {
	parser      SSEParser
	content     strings.Builder
	messageID   string
	model       string
	stopReason  string
	inputTokens int
	outputTokens int
	done        bool
}

func NewAnthropicStreamReassembler() *AnthropicStreamReassembler {
	return &AnthropicStreamReassembler{}
}

// Feed consumes newly decompressed body bytes and reports whether the
// stream is now complete.
func (r *AnthropicStreamReassembler) Feed(chunk []byte) bool {
	if r.done {
		return true
	}
	for _, ev := range r.parser.Feed(chunk) {
		data := strings.TrimSpace(ev.Data)
		if data == "" {
			continue
		}
		switch ev.Event {
		case "message_start":
			var ms anthropicMessageStart
			if err := json.Unmarshal([]byte(data), &ms); err == nil {
				r.messageID = ms.Message.ID
				r.model = ms.Message.Model
				r.inputTokens = ms.Message.Usage.InputTokens
			}
		case "content_block_delta":
			var cbd anthropicContentBlockDelta
			if err := json.Unmarshal([]byte(data), &cbd); err == nil {
				switch cbd.Delta.Type {
				case "text_delta":
					r.content.WriteString(cbd.Delta.Text)
				case "thinking_delta":
					// Thinking content is surfaced separately by the Decoder;
					// the reassembler only tracks assistant-visible text here.
				case "input_json_delta":
					// Tool-call argument fragments; accumulated per content
					// block in the Decoder once block indices are threaded
					// through. Not needed for the base content property.
				}
			}
		case "message_delta":
			var md anthropicMessageDelta
			if err := json.Unmarshal([]byte(data), &md); err == nil {
				r.stopReason = md.Delta.StopReason
				r.outputTokens = md.Usage.OutputTokens
			}
		case "message_stop":
			r.done = true
			return true
		case "content_block_start", "ping":
			// No state to track.
		}
	}
	return r.done
}

func (r *AnthropicStreamReassembler) IsComplete() bool  { return r.done }
func (r *AnthropicStreamReassembler) Content() string   { return r.content.String() }
func (r *AnthropicStreamReassembler) Model() string     { return r.model }
func (r *AnthropicStreamReassembler) MessageID() string { return r.messageID }
func (r *AnthropicStreamReassembler) Usage() event.Usage {
	return event.Usage{
		PromptTokens:     r.inputTokens,
		CompletionTokens: r.outputTokens,
		TotalTokens:      r.inputTokens + r.outputTokens,
	}
}

func (r *AnthropicStreamReassembler) FinishReason() event.FinishReason {
	return normalizeAnthropicStopReason(r.stopReason)
}

// normalizeAnthropicStopReason maps Anthropic's stop_reason vocabulary onto
// the canonical FinishReason set; shared by the streaming and non-streaming
// response paths.
func normalizeAnthropicStopReason(raw string) event.FinishReason {
	switch raw {
	case "end_turn", "stop_sequence":
		return event.FinishStop
	case "max_tokens":
		return event.FinishLength
	case "tool_use":
		return event.FinishToolCalls
	default:
		return event.FinishOther
	}
}
