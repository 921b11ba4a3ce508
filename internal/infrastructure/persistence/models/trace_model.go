package models

import "time"

// TraceModel is the persisted row for one agent trace. Spans and the other
// nested slices don't earn their own tables — a trace is read back whole or
// not at all, so they're kept as a single JSON column and the handful of
// columns callers actually filter on are promoted to their own fields.
type TraceModel struct {
	TraceID     string `gorm:"primaryKey;size:32"`
	PID         int    `gorm:"index"`
	ProcessName string `gorm:"size:255;index"`
	Exe         string `gorm:"size:512"`

	Start time.Time `gorm:"index"`
	End   *time.Time

	TotalPromptTokens     int
	TotalCompletionTokens int
	TotalTokens           int
	CostUSD               float64
	LlmCallCount          int
	ToolCallCount         int

	Completed bool `gorm:"index"`
	Summary   string `gorm:"type:text"`

	SpansJSON            string `gorm:"column:spans_json;type:text"`
	FilesAccessedJSON     string `gorm:"column:files_accessed_json;type:text"`
	FilesModifiedJSON     string `gorm:"column:files_modified_json;type:text"`
	SpawnedProcessesJSON  string `gorm:"column:spawned_processes_json;type:text"`
	ConnectionsJSON       string `gorm:"column:connections_json;type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName names the traces table.
func (TraceModel) TableName() string {
	return "agent_traces"
}
