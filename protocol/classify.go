package protocol

import (
	"log/slog"
)

// EventType discriminates between classified event kinds.
type EventType int

const (
	// EventTypeContent is an incremental text delta for the open
	// assistant message.
	EventTypeContent EventType = iota
	// EventTypeFinalContent is the authoritative full text of the
	// assistant message, overriding accumulated deltas.
	EventTypeFinalContent
	// EventTypeToolCalls is a batch of tool invocations requested by the
	// assistant.
	EventTypeToolCalls
	// EventTypeToolResults is a batch of tool outcomes.
	EventTypeToolResults
	// EventTypeFinalMessage is the complete final assistant message
	// object closing the turn.
	EventTypeFinalMessage
	// EventTypeRaw is an envelope that matched no known shape.
	EventTypeRaw
)

// Event is the interface for all classified events.
type Event interface {
	Type() EventType
}

// ContentEvent carries an incremental text delta.
type ContentEvent struct {
	Text string
}

// Type returns the event type.
func (e ContentEvent) Type() EventType { return EventTypeContent }

// FinalContentEvent carries the authoritative final text.
type FinalContentEvent struct {
	Text string
}

// Type returns the event type.
func (e FinalContentEvent) Type() EventType { return EventTypeFinalContent }

// ToolCallsEvent carries a batch of requested tool invocations.
type ToolCallsEvent struct {
	Calls []ToolCall
}

// Type returns the event type.
func (e ToolCallsEvent) Type() EventType { return EventTypeToolCalls }

// ToolResultsEvent carries a batch of tool outcomes.
type ToolResultsEvent struct {
	Results []ToolResult
}

// Type returns the event type.
func (e ToolResultsEvent) Type() EventType { return EventTypeToolResults }

// FinalMessageEvent carries the complete final assistant message.
type FinalMessageEvent struct {
	Message WireMessage
}

// Type returns the event type.
func (e FinalMessageEvent) Type() EventType { return EventTypeFinalMessage }

// RawEvent carries an unclassifiable payload.
type RawEvent struct {
	Payload string
}

// Type returns the event type.
func (e RawEvent) Type() EventType { return EventTypeRaw }

// Classify maps an envelope to its semantic events. It is a pure function
// of the envelope shape; first matching rule wins. A single envelope can
// yield more than one event: an assistant message carrying both tool calls
// and content emits the tool calls first, so correlation state exists
// before anything depends on it, and a finalized assistant message emits
// its final content before the final message object.
func Classify(env Envelope) []Event {
	if env.Chunk == nil {
		return []Event{RawEvent{Payload: env.Payload}}
	}
	c := env.Chunk

	switch c.Type {
	case ChunkTypeToken:
		if text, ok := c.Content.AsString(); ok && text != "" {
			return []Event{ContentEvent{Text: text}}
		}
	case ChunkTypeMessage:
		if msg, ok := c.Content.AsMessage(); ok {
			return classifyMessage(msg)
		}
	case ChunkTypeTool:
		if c.ToolCallID != "" {
			return []Event{ToolResultsEvent{Results: []ToolResult{{
				ToolCallID: c.ToolCallID,
				Content:    c.Content,
			}}}}
		}
	}

	// Bare shapes without a chunk type.
	if len(c.ToolCalls) > 0 {
		return []Event{ToolCallsEvent{Calls: c.ToolCalls}}
	}
	if len(c.ToolResults) > 0 {
		return []Event{ToolResultsEvent{Results: c.ToolResults}}
	}
	if text, ok := c.Content.AsString(); ok && text != "" {
		return []Event{ContentEvent{Text: text}}
	}

	slog.Debug("unclassified stream envelope", "payload", env.Payload)
	return []Event{RawEvent{Payload: env.Payload}}
}

// classifyMessage classifies the inner message of a "message" chunk.
func classifyMessage(msg WireMessage) []Event {
	switch msg.Type {
	case "ai":
		var events []Event
		if len(msg.ToolCalls) > 0 {
			events = append(events, ToolCallsEvent{Calls: msg.ToolCalls})
		}
		if msg.Content != "" {
			if msg.FinishReason() != "" {
				events = append(events,
					FinalContentEvent{Text: msg.Content},
					FinalMessageEvent{Message: msg})
			} else {
				events = append(events, ContentEvent{Text: msg.Content})
			}
		}
		return events
	case "tool":
		if msg.ToolCallID != "" {
			return []Event{ToolResultsEvent{Results: []ToolResult{{
				ToolCallID: msg.ToolCallID,
				Content:    NewTextContent(msg.Content),
			}}}}
		}
	}
	if msg.Content != "" {
		return []Event{ContentEvent{Text: msg.Content}}
	}
	return nil
}
