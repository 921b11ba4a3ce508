package trace

import "time"

// SpawnedProcess records a child process observed under a trace's pid.
type SpawnedProcess struct {
	PID  int    `json:"pid"`
	Exe  string `json:"exe,omitempty"`
	Args []string `json:"args,omitempty"`
}

// Connection records a network connection observed under a trace's pid.
type Connection struct {
	RemoteHost string `json:"remote_host,omitempty"`
	RemotePort int    `json:"remote_port,omitempty"`
	Protocol   string `json:"protocol,omitempty"`
}

// AgentTrace is the owned tree of spans and side-effect records
// accumulated for one process's agentic session.
type AgentTrace struct {
	TraceID string     `json:"trace_id"`
	Start   time.Time  `json:"start"`
	End     *time.Time `json:"end,omitempty"`

	PID  int    `json:"pid"`
	Name string `json:"process_name,omitempty"`
	Exe  string `json:"exe,omitempty"`

	RootSpanID string  `json:"root_span_id,omitempty"`
	Spans      []*Span `json:"spans"`

	TotalPromptTokens     int      `json:"total_prompt_tokens"`
	TotalCompletionTokens int      `json:"total_completion_tokens"`
	TotalTokens           int      `json:"total_tokens"`
	CostUSD               float64  `json:"cost_usd,omitempty"`
	LlmCallCount          int      `json:"llm_call_count"`
	ToolCallCount         int      `json:"tool_call_count"`

	FilesAccessed    []string         `json:"files_accessed,omitempty"`
	FilesModified    []string         `json:"files_modified,omitempty"`
	SpawnedProcesses []SpawnedProcess `json:"spawned_processes,omitempty"`
	Connections      []Connection     `json:"connections,omitempty"`

	Completed bool   `json:"completed"`
	Summary   string `json:"summary,omitempty"`

	lastActivity time.Time
}

// addSpan appends a span and, if it is the trace's first span, sets it as
// the root.
func (t *AgentTrace) addSpan(s *Span) {
	if len(t.Spans) == 0 {
		t.RootSpanID = s.ID
	}
	t.Spans = append(t.Spans, s)
}

// spanByID finds a span by its id; traces are small enough per-process that
// a linear scan beats maintaining a second index.
func (t *AgentTrace) spanByID(id string) *Span {
	for _, s := range t.Spans {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func addUniqueString(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
