// Package chat holds the conversation state: the message model, the
// ordered log, and the reconciler that applies classified stream events
// to it.
package chat

import (
	"encoding/json"

	"github.com/adoptiveai/ragchat/protocol"
)

// Role identifies the author of a conversation message. Values match the
// wire format of the agent service.
type Role string

const (
	RoleHuman     Role = "human"
	RoleAssistant Role = "ai"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
	RoleCustom    Role = "custom"
)

// Message is the atomic conversation unit.
type Message struct {
	Role          Role
	Content       string
	ToolCallID    string
	RunID         string
	Data          ToolData
	AttachedFiles []string
}

// ToolKind discriminates structured tool payload variants.
type ToolKind string

const (
	ToolKindStatus   ToolKind = "status"
	ToolKindGraph    ToolKind = "graph"
	ToolKindCitation ToolKind = "pdf"
	ToolKindSQL      ToolKind = "sql"
)

// ToolData is the closed union of structured payloads a tool message can
// carry. The concrete types below are the only implementations; rendering
// code dispatches on Kind exhaustively.
type ToolData interface {
	Kind() ToolKind
}

// StatusData describes a tool invocation in flight.
type StatusData struct {
	Call protocol.ToolCall
}

// Kind returns the payload kind.
func (StatusData) Kind() ToolKind { return ToolKindStatus }

// GraphData carries a fetched graph figure.
type GraphData struct {
	GraphID string
	Figure  map[string]interface{}
}

// Kind returns the payload kind.
func (GraphData) Kind() ToolKind { return ToolKindGraph }

// CitationData carries document citation entries supporting an assistant
// answer.
type CitationData struct {
	Entries []CitationEntry
	CallID  string
}

// Kind returns the payload kind.
func (CitationData) Kind() ToolKind { return ToolKindCitation }

// CitationEntry references a region of a source document.
type CitationEntry struct {
	PDFFile      string   `json:"pdf_file"`
	BlockIndices []int    `json:"block_indices,omitempty"`
	Debug        bool     `json:"debug,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// SQLData carries a raw query result for downstream table parsing.
type SQLData struct {
	Content string
}

// Kind returns the payload kind.
func (SQLData) Kind() ToolKind { return ToolKindSQL }

// FromWire converts a history/stream wire message into a Message.
func FromWire(w protocol.WireMessage) Message {
	return Message{
		Role:          Role(w.Type),
		Content:       w.Content,
		ToolCallID:    w.ToolCallID,
		RunID:         w.RunID,
		Data:          decodeToolData(w.CustomData),
		AttachedFiles: w.AttachedFiles,
	}
}

// decodeToolData maps a wire custom_data object onto the closed union.
// Unknown or missing discriminants yield nil (a generic tool message).
func decodeToolData(custom map[string]interface{}) ToolData {
	if custom == nil {
		return nil
	}
	tool, _ := custom["tool"].(string)
	switch tool {
	case "status":
		var call protocol.ToolCall
		reencode(custom["call"], &call)
		return StatusData{Call: call}
	case "graph", "graphing_agent":
		graphID, _ := custom["graphId"].(string)
		figure, _ := custom["graph"].(map[string]interface{})
		return GraphData{GraphID: graphID, Figure: figure}
	case "pdf", "pdf_viewer":
		var entries []CitationEntry
		reencode(custom["entries"], &entries)
		callID, _ := custom["callId"].(string)
		return CitationData{Entries: entries, CallID: callID}
	case "sql", "sql_executor":
		content, _ := custom["content"].(string)
		return SQLData{Content: content}
	default:
		return nil
	}
}

// reencode round-trips an untyped decoded value into dst.
func reencode(v interface{}, dst interface{}) {
	if v == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = json.Unmarshal(raw, dst)
}
