package decode

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/oisp/sensor/internal/domain/event"
)

// buildMessages turns a gjson "messages" array into canonical Messages,
// flattening Anthropic/OpenAI content-block arrays down to their text
// portion and counting any image blocks for the has_images/image_count
// fields rather than carrying image bytes through the pipeline.
func buildMessages(messages gjson.Result) []event.Message {
	var out []event.Message
	messages.ForEach(func(_, m gjson.Result) bool {
		msg := event.Message{Role: event.MessageRole(m.Get("role").String())}
		content := m.Get("content")
		switch {
		case content.IsArray():
			var text strings.Builder
			images := 0
			content.ForEach(func(_, block gjson.Result) bool {
				switch block.Get("type").String() {
				case "text":
					text.WriteString(block.Get("text").String())
				case "image", "image_url":
					images++
				}
				return true
			})
			msg.Content = event.TextContent(text.String())
			msg.HasImages = images > 0
			msg.ImageCount = images
		default:
			msg.Content = event.TextContent(content.String())
		}
		if v := m.Get("tool_call_id"); v.Exists() {
			msg.ToolCallID = v.String()
		}
		if msg.Role == event.RoleTool {
			if v := m.Get("name"); v.Exists() {
				msg.ToolName = v.String()
			}
		}
		out = append(out, msg)
		return true
	})
	return out
}

// buildTools turns a gjson "tools" array into ToolDefinitions, accepting
// both OpenAI's {type:"function",function:{name,description}} shape and a
// bare {name,description} shape.
func buildTools(tools gjson.Result) []event.ToolDefinition {
	var out []event.ToolDefinition
	tools.ForEach(func(_, t gjson.Result) bool {
		name := t.Get("function.name").String()
		if name == "" {
			name = t.Get("name").String()
		}
		desc := t.Get("function.description").String()
		if desc == "" {
			desc = t.Get("description").String()
		}
		out = append(out, event.ToolDefinition{Name: name, Type: event.ToolFunction, Description: desc})
		return true
	})
	return out
}

// openAIResponseBody is the parsed shape of a non-streaming OpenAI-style
// completion response.
type openAIResponseBody struct {
	ProviderRequestID string
	Choices           []event.Choice
	Usage             event.Usage
	Error             *event.ErrorInfo
}

func parseOpenAIResponseBody(body []byte) openAIResponseBody {
	root := gjson.ParseBytes(body)
	var out openAIResponseBody
	out.ProviderRequestID = root.Get("id").String()

	if e := root.Get("error"); e.Exists() {
		out.Error = &event.ErrorInfo{
			Type:    e.Get("type").String(),
			Message: e.Get("message").String(),
			Code:    e.Get("code").String(),
		}
	}

	root.Get("choices").ForEach(func(_, c gjson.Result) bool {
		msg := event.Message{
			Role:    event.MessageRole(c.Get("message.role").String()),
			Content: event.TextContent(c.Get("message.content").String()),
		}
		out.Choices = append(out.Choices, event.Choice{
			Index:        int(c.Get("index").Int()),
			Message:      msg,
			FinishReason: normalizeFinishReason(c.Get("finish_reason").String()),
		})
		return true
	})

	u := root.Get("usage")
	out.Usage = event.Usage{
		PromptTokens:     int(u.Get("prompt_tokens").Int()),
		CompletionTokens: int(u.Get("completion_tokens").Int()),
		TotalTokens:      int(u.Get("total_tokens").Int()),
		CachedTokens:     int(u.Get("prompt_tokens_details.cached_tokens").Int()),
		ReasoningTokens:  int(u.Get("completion_tokens_details.reasoning_tokens").Int()),
	}
	return out
}

// anthropicResponseBody is the parsed shape of a non-streaming Anthropic
// messages response.
type anthropicResponseBody struct {
	ProviderRequestID string
	Choices           []event.Choice
	ToolCalls         []event.ToolCall
	Usage             event.Usage
	Error             *event.ErrorInfo
	Thinking          *event.ThinkingBlock
}

func parseAnthropicResponseBody(body []byte) anthropicResponseBody {
	root := gjson.ParseBytes(body)
	var out anthropicResponseBody
	out.ProviderRequestID = root.Get("id").String()

	if e := root.Get("error"); e.Exists() {
		out.Error = &event.ErrorInfo{Type: e.Get("type").String(), Message: e.Get("message").String()}
	}

	var text strings.Builder
	root.Get("content").ForEach(func(_, block gjson.Result) bool {
		switch block.Get("type").String() {
		case "text":
			text.WriteString(block.Get("text").String())
		case "thinking":
			out.Thinking = &event.ThinkingBlock{
				Enabled: true,
				Content: block.Get("thinking").String(),
				Mode:    event.ThinkingExtended,
			}
		case "tool_use":
			parsed, _ := block.Get("input").Value().(map[string]any)
			out.ToolCalls = append(out.ToolCalls, event.ToolCall{
				ID:        block.Get("id").String(),
				Name:      block.Get("name").String(),
				Arguments: event.ToolArguments{Parsed: parsed},
			})
		}
		return true
	})

	out.Choices = []event.Choice{{
		Index:        0,
		Message:      event.Message{Role: event.RoleAssistant, Content: event.TextContent(text.String())},
		FinishReason: normalizeAnthropicStopReason(root.Get("stop_reason").String()),
	}}

	u := root.Get("usage")
	in := int(u.Get("input_tokens").Int())
	cOut := int(u.Get("output_tokens").Int())
	out.Usage = event.Usage{
		PromptTokens:     in,
		CompletionTokens: cOut,
		TotalTokens:      in + cOut,
		CachedTokens:     int(u.Get("cache_read_input_tokens").Int()),
	}
	return out
}
