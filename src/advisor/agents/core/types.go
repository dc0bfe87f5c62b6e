package core

import (
	"github.com/campus-stack/faculty-advisor/src/advisor/auth"
	"github.com/campus-stack/faculty-advisor/src/advisor/types"
)

// AgentConfig is the static configuration an agent is registered with.
// Immutable after construction: agents are configuration plus shared pipeline,
// not subclasses.
type AgentConfig struct {
	Type         string
	Persona      string
	Tools        []string
	Model        string
	Temperature  float64
	MaxTokens    int
	UseRetrieval bool
}

// Request is the pipeline input contract for one call.
type Request struct {
	Identity  auth.Identity
	SessionID string
	Query     string
	Context   map[string]any
}

// ToolResult records one executed (or skipped) tool call.
type ToolResult struct {
	Name    string `json:"name"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Response is the pipeline output contract. It is always well-formed: stage
// failures populate Error and degrade Content rather than escaping.
type Response struct {
	AgentType    string       `json:"agent_type"`
	Content      string       `json:"content"`
	Intent       string       `json:"intent,omitempty"`
	Confidence   float64      `json:"confidence"`
	ProcessingMS int64        `json:"processing_time_ms"`
	ToolResults  []ToolResult `json:"tool_results,omitempty"`
	Error        *types.Error `json:"error,omitempty"`
}
