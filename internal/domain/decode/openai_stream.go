package decode

import (
	"encoding/json"
	"strings"

	"github.com/oisp/sensor/internal/domain/event"
)

// openAIChunk is the shape of one OpenAI-style SSE data payload.
type openAIChunk struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// toolCallAccumulator merges fragmentary tool_calls deltas (OpenAI streams
// a tool call's name and arguments across multiple chunks, indexed by
// position) into complete calls.
type toolCallAccumulator struct {
	byIndex map[int]*event.ToolCall
	order   []int
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIndex: make(map[int]*event.ToolCall)}
}

func (a *toolCallAccumulator) feed(index int, id, name, argsFragment string) {
	tc, ok := a.byIndex[index]
	if !ok {
		tc = &event.ToolCall{}
		a.byIndex[index] = tc
		a.order = append(a.order, index)
	}
	if id != "" {
		tc.ID = id
	}
	if name != "" {
		tc.Name = name
	}
	tc.Arguments.Raw += argsFragment
}

func (a *toolCallAccumulator) calls() []event.ToolCall {
	out := make([]event.ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		out = append(out, *a.byIndex[idx])
	}
	return out
}

// OpenAIStreamReassembler accumulates an OpenAI-style SSE stream into a
// synthesized ai.response. Complete on any "[DONE]" terminator or the first
// non-null finish_reason, per the streaming testable property.
type OpenAIStreamReassembler struct {
	parser    SSEParser
	content   strings.Builder
	tools     *toolCallAccumulator
	finish    event.FinishReason
	model     string
	requestID string
	usage     event.Usage
	done      bool
}

func NewOpenAIStreamReassembler() *OpenAIStreamReassembler {
	return &OpenAIStreamReassembler{tools: newToolCallAccumulator()}
}

// Feed consumes newly decompressed body bytes and reports whether the
// stream is now complete.
func (r *OpenAIStreamReassembler) Feed(chunk []byte) bool {
	if r.done {
		return true
	}
	for _, ev := range r.parser.Feed(chunk) {
		data := strings.TrimSpace(ev.Data)
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			r.done = true
			return true
		}
		var c openAIChunk
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			continue
		}
		if c.ID != "" {
			r.requestID = c.ID
		}
		if c.Model != "" {
			r.model = c.Model
		}
		if c.Usage != nil {
			r.usage = event.Usage{
				PromptTokens:     c.Usage.PromptTokens,
				CompletionTokens: c.Usage.CompletionTokens,
				TotalTokens:      c.Usage.TotalTokens,
			}
		}
		for _, choice := range c.Choices {
			r.content.WriteString(choice.Delta.Content)
			for _, tc := range choice.Delta.ToolCalls {
				r.tools.feed(tc.Index, tc.ID, tc.Function.Name, tc.Function.Arguments)
			}
			if choice.FinishReason != nil {
				r.finish = normalizeFinishReason(*choice.FinishReason)
				r.done = true
				return true
			}
		}
	}
	return r.done
}

func (r *OpenAIStreamReassembler) IsComplete() bool { return r.done }
func (r *OpenAIStreamReassembler) Content() string  { return r.content.String() }
func (r *OpenAIStreamReassembler) Model() string    { return r.model }
func (r *OpenAIStreamReassembler) ToolCalls() []event.ToolCall { return r.tools.calls() }
func (r *OpenAIStreamReassembler) FinishReason() event.FinishReason {
	if r.finish == "" {
		return event.FinishStop
	}
	return r.finish
}
func (r *OpenAIStreamReassembler) Usage() event.Usage { return r.usage }

func normalizeFinishReason(raw string) event.FinishReason {
	switch raw {
	case "stop":
		return event.FinishStop
	case "length":
		return event.FinishLength
	case "tool_calls", "function_call":
		return event.FinishToolCalls
	case "content_filter":
		return event.FinishContentFlt
	case "error":
		return event.FinishError
	default:
		return event.FinishOther
	}
}
