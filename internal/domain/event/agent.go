package event

// ToolCallData is the agent.tool_call variant payload: the model asked a
// tool executor to run something.
type ToolCallData struct {
	RequestID  string        `json:"request_id,omitempty"`
	ToolCallID string        `json:"tool_call_id"`
	ToolName   string        `json:"tool_name"`
	Arguments  ToolArguments `json:"arguments"`
}

// ToolResultData is the agent.tool_result variant payload: the outcome of
// executing a tool call.
type ToolResultData struct {
	ToolCallID string `json:"tool_call_id"`
	Success    bool   `json:"success"`
	DurationMS int64  `json:"duration_ms"`
	ResultHash string `json:"result_hash,omitempty"`
	Error      string `json:"error,omitempty"`
}
