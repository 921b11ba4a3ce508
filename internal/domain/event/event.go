package event

import (
	"encoding/json"
	"fmt"
)

// Event is the canonical tagged-union value that flows through the rest of
// the pipeline. Exactly one payload field is non-nil; which one is
// determined by Envelope.EventType. MarshalJSON/UnmarshalJSON flatten the
// active payload's fields into the same JSON object as the envelope, per
// the wire format.
type Event struct {
	Envelope

	AIRequest        *AIRequestData         `json:"-"`
	AIResponse       *AIResponseData        `json:"-"`
	AIStreamingChunk *AIStreamingChunkData  `json:"-"`
	AIEmbedding      *AIEmbeddingData       `json:"-"`
	ToolCall         *ToolCallData          `json:"-"`
	ToolResult       *ToolResultData        `json:"-"`
	ProcessExec      *ProcessExecData       `json:"-"`
	ProcessExit      *ProcessExitData       `json:"-"`
	ProcessFork      *ProcessForkData       `json:"-"`
	File             *FileEventData         `json:"-"`
	Network          *NetworkEventData      `json:"-"`
	CaptureRaw       *CaptureRawData        `json:"-"`
}

// Payload returns the active variant payload, whichever one is set.
func (e *Event) Payload() any {
	switch {
	case e.AIRequest != nil:
		return e.AIRequest
	case e.AIResponse != nil:
		return e.AIResponse
	case e.AIStreamingChunk != nil:
		return e.AIStreamingChunk
	case e.AIEmbedding != nil:
		return e.AIEmbedding
	case e.ToolCall != nil:
		return e.ToolCall
	case e.ToolResult != nil:
		return e.ToolResult
	case e.ProcessExec != nil:
		return e.ProcessExec
	case e.ProcessExit != nil:
		return e.ProcessExit
	case e.ProcessFork != nil:
		return e.ProcessFork
	case e.File != nil:
		return e.File
	case e.Network != nil:
		return e.Network
	case e.CaptureRaw != nil:
		return e.CaptureRaw
	default:
		return nil
	}
}

// MarshalJSON merges the envelope object with the active payload's object
// so the wire form is one flat JSON object, not a nested "payload" field.
func (e Event) MarshalJSON() ([]byte, error) {
	envBytes, err := json.Marshal(e.Envelope)
	if err != nil {
		return nil, err
	}
	payload := e.Payload()
	if payload == nil {
		return envBytes, nil
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(envBytes, &merged); err != nil {
		return nil, err
	}
	var payloadFields map[string]json.RawMessage
	if err := json.Unmarshal(payloadBytes, &payloadFields); err != nil {
		return nil, err
	}
	for k, v := range payloadFields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON reads the envelope, then dispatches the same bytes into the
// payload struct selected by event_type.
func (e *Event) UnmarshalJSON(data []byte) error {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	e.Envelope = env

	switch env.EventType {
	case TypeAIRequest:
		e.AIRequest = &AIRequestData{}
		return json.Unmarshal(data, e.AIRequest)
	case TypeAIResponse:
		e.AIResponse = &AIResponseData{}
		return json.Unmarshal(data, e.AIResponse)
	case TypeAIStreamingChunk:
		e.AIStreamingChunk = &AIStreamingChunkData{}
		return json.Unmarshal(data, e.AIStreamingChunk)
	case TypeAIEmbedding:
		e.AIEmbedding = &AIEmbeddingData{}
		return json.Unmarshal(data, e.AIEmbedding)
	case TypeAgentToolCall:
		e.ToolCall = &ToolCallData{}
		return json.Unmarshal(data, e.ToolCall)
	case TypeAgentToolResult:
		e.ToolResult = &ToolResultData{}
		return json.Unmarshal(data, e.ToolResult)
	case TypeProcessExec:
		e.ProcessExec = &ProcessExecData{}
		return json.Unmarshal(data, e.ProcessExec)
	case TypeProcessExit:
		e.ProcessExit = &ProcessExitData{}
		return json.Unmarshal(data, e.ProcessExit)
	case TypeProcessFork:
		e.ProcessFork = &ProcessForkData{}
		return json.Unmarshal(data, e.ProcessFork)
	case TypeFileOpen, TypeFileRead, TypeFileWrite, TypeFileClose:
		e.File = &FileEventData{}
		return json.Unmarshal(data, e.File)
	case TypeNetworkConnect, TypeNetworkAccept, TypeNetworkFlow, TypeNetworkDNS:
		e.Network = &NetworkEventData{}
		return json.Unmarshal(data, e.Network)
	case TypeCaptureRaw:
		e.CaptureRaw = &CaptureRawData{}
		return json.Unmarshal(data, e.CaptureRaw)
	default:
		return fmt.Errorf("event: unknown event_type %q", env.EventType)
	}
}
