// Package protocol decodes the agent service's event stream: the
// line-oriented transport framing, the JSON envelope shapes, and the
// classification of envelopes into semantic events.
package protocol

import (
	"encoding/json"
)

// ChunkType discriminates between top-level stream chunk kinds.
type ChunkType string

const (
	ChunkTypeToken   ChunkType = "token"
	ChunkTypeMessage ChunkType = "message"
	ChunkTypeTool    ChunkType = "tool"
	ChunkTypeError   ChunkType = "error"
)

// Envelope is one decoded record from the event stream. Payload always
// holds the record's payload text; Chunk is nil when the payload was not
// valid JSON.
type Envelope struct {
	Chunk   *StreamChunk
	Payload string
}

// StreamChunk is the top-level JSON object carried by a data record.
// Well-behaved backends wrap everything in a typed chunk, but some emit
// bare tool_calls/tool_results/content objects; those fields are decoded
// here too so the classifier can handle both.
type StreamChunk struct {
	Type        ChunkType       `json:"type,omitempty"`
	Content     FlexibleContent `json:"content,omitempty"`
	ToolCallID  string          `json:"tool_call_id,omitempty"`
	ToolCalls   []ToolCall      `json:"tool_calls,omitempty"`
	ToolResults []ToolResult    `json:"tool_results,omitempty"`
}

// WireMessage is the inner message object carried by "message" chunks and
// returned by the history endpoint.
type WireMessage struct {
	Type             string                 `json:"type"`
	Content          string                 `json:"content"`
	ToolCalls        []ToolCall             `json:"tool_calls,omitempty"`
	ToolCallID       string                 `json:"tool_call_id,omitempty"`
	RunID            string                 `json:"run_id,omitempty"`
	ResponseMetadata map[string]interface{} `json:"response_metadata,omitempty"`
	CustomData       map[string]interface{} `json:"custom_data,omitempty"`
	AttachedFiles    []string               `json:"attached_files,omitempty"`
}

// FinishReason returns response_metadata.finish_reason, the terminal
// marker distinguishing a finalized assistant message from an incremental
// one. Empty when absent.
func (m WireMessage) FinishReason() string {
	if m.ResponseMetadata == nil {
		return ""
	}
	reason, _ := m.ResponseMetadata["finish_reason"].(string)
	return reason
}

// ToolCall is a tool invocation requested by the assistant.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
	Type string                 `json:"type,omitempty"`
}

// ToolResult is the outcome of a tool invocation, correlated back to the
// originating call by ToolCallID.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Content    FlexibleContent `json:"content"`
}

// FlexibleContent can be a string, an object, or absent; the wire format
// does not commit to one shape.
type FlexibleContent struct {
	raw json.RawMessage
}

// NewTextContent wraps plain text as a FlexibleContent.
func NewTextContent(text string) FlexibleContent {
	raw, _ := json.Marshal(text)
	return FlexibleContent{raw: raw}
}

// NewRawContent wraps already-encoded JSON as a FlexibleContent.
func NewRawContent(raw json.RawMessage) FlexibleContent {
	return FlexibleContent{raw: raw}
}

// UnmarshalJSON implements json.Unmarshaler.
func (fc *FlexibleContent) UnmarshalJSON(data []byte) error {
	fc.raw = data
	return nil
}

// MarshalJSON implements json.Marshaler.
func (fc FlexibleContent) MarshalJSON() ([]byte, error) {
	if fc.raw == nil {
		return []byte("null"), nil
	}
	return fc.raw, nil
}

// IsEmpty returns true when no content was present.
func (fc FlexibleContent) IsEmpty() bool {
	return len(fc.raw) == 0 || string(fc.raw) == "null"
}

// IsString returns true if the content is a JSON string.
func (fc FlexibleContent) IsString() bool {
	return len(fc.raw) > 0 && fc.raw[0] == '"'
}

// AsString returns the content as a string (if it is one).
func (fc FlexibleContent) AsString() (string, bool) {
	if !fc.IsString() {
		return "", false
	}
	var s string
	if err := json.Unmarshal(fc.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// AsMessage returns the content as a WireMessage (if it is an object).
func (fc FlexibleContent) AsMessage() (WireMessage, bool) {
	if fc.IsEmpty() || fc.IsString() || fc.raw[0] != '{' {
		return WireMessage{}, false
	}
	var msg WireMessage
	if err := json.Unmarshal(fc.raw, &msg); err != nil {
		return WireMessage{}, false
	}
	return msg, true
}

// String renders the content for display: strings verbatim, anything else
// as its JSON text.
func (fc FlexibleContent) String() string {
	if s, ok := fc.AsString(); ok {
		return s
	}
	if fc.IsEmpty() {
		return ""
	}
	return string(fc.raw)
}
