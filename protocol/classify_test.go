package protocol

import (
	"testing"
)

func classifyPayload(t *testing.T, payload string) []Event {
	t.Helper()
	return Classify(decode(payload))
}

func TestClassify_TokenChunk(t *testing.T) {
	events := classifyPayload(t, `{"type":"token","content":"Hel"}`)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ce, ok := events[0].(ContentEvent)
	if !ok {
		t.Fatalf("expected ContentEvent, got %T", events[0])
	}
	if ce.Text != "Hel" {
		t.Errorf("expected 'Hel', got %q", ce.Text)
	}
}

func TestClassify_FinalizedAssistantMessage(t *testing.T) {
	events := classifyPayload(t, `{"type":"message","content":{"type":"ai","content":"Hello","run_id":"r1","response_metadata":{"finish_reason":"stop"}}}`)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	fc, ok := events[0].(FinalContentEvent)
	if !ok {
		t.Fatalf("expected FinalContentEvent first, got %T", events[0])
	}
	if fc.Text != "Hello" {
		t.Errorf("expected 'Hello', got %q", fc.Text)
	}
	fm, ok := events[1].(FinalMessageEvent)
	if !ok {
		t.Fatalf("expected FinalMessageEvent second, got %T", events[1])
	}
	if fm.Message.RunID != "r1" {
		t.Errorf("expected run_id r1, got %q", fm.Message.RunID)
	}
}

func TestClassify_AssistantMessageWithoutFinishReason(t *testing.T) {
	events := classifyPayload(t, `{"type":"message","content":{"type":"ai","content":"partial"}}`)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if _, ok := events[0].(ContentEvent); !ok {
		t.Fatalf("expected ContentEvent, got %T", events[0])
	}
}

// An assistant envelope carrying both tool calls and trailing content must
// emit the tool calls first so correlation data exists before anything
// depends on it.
func TestClassify_ToolCallsBeforeContent(t *testing.T) {
	events := classifyPayload(t, `{"type":"message","content":{"type":"ai","content":"on it","tool_calls":[{"id":"a","name":"SQL_Executor","args":{"query":"select 1"}}]}}`)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	tc, ok := events[0].(ToolCallsEvent)
	if !ok {
		t.Fatalf("expected ToolCallsEvent first, got %T", events[0])
	}
	if len(tc.Calls) != 1 || tc.Calls[0].Name != "SQL_Executor" {
		t.Errorf("unexpected tool calls: %+v", tc.Calls)
	}
	ce, ok := events[1].(ContentEvent)
	if !ok {
		t.Fatalf("expected ContentEvent second, got %T", events[1])
	}
	if ce.Text != "on it" {
		t.Errorf("expected 'on it', got %q", ce.Text)
	}
}

func TestClassify_ToolRoleMessage(t *testing.T) {
	events := classifyPayload(t, `{"type":"message","content":{"type":"tool","content":"col1;col2","tool_call_id":"a"}}`)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	tr, ok := events[0].(ToolResultsEvent)
	if !ok {
		t.Fatalf("expected ToolResultsEvent, got %T", events[0])
	}
	if len(tr.Results) != 1 || tr.Results[0].ToolCallID != "a" {
		t.Fatalf("unexpected results: %+v", tr.Results)
	}
	if tr.Results[0].Content.String() != "col1;col2" {
		t.Errorf("unexpected content: %q", tr.Results[0].Content.String())
	}
}

func TestClassify_TopLevelToolChunk(t *testing.T) {
	events := classifyPayload(t, `{"type":"tool","tool_call_id":"x","content":"done"}`)
	tr, ok := events[0].(ToolResultsEvent)
	if !ok {
		t.Fatalf("expected ToolResultsEvent, got %T", events[0])
	}
	if tr.Results[0].ToolCallID != "x" {
		t.Errorf("unexpected correlation id: %q", tr.Results[0].ToolCallID)
	}
}

func TestClassify_BareToolCalls(t *testing.T) {
	events := classifyPayload(t, `{"tool_calls":[{"id":"b","name":"PDF_Viewer"}]}`)
	if _, ok := events[0].(ToolCallsEvent); !ok {
		t.Fatalf("expected ToolCallsEvent, got %T", events[0])
	}
}

func TestClassify_BareToolResults(t *testing.T) {
	events := classifyPayload(t, `{"tool_results":[{"tool_call_id":"b","content":"[]"}]}`)
	if _, ok := events[0].(ToolResultsEvent); !ok {
		t.Fatalf("expected ToolResultsEvent, got %T", events[0])
	}
}

func TestClassify_BareContent(t *testing.T) {
	events := classifyPayload(t, `{"content":"loose text"}`)
	ce, ok := events[0].(ContentEvent)
	if !ok {
		t.Fatalf("expected ContentEvent, got %T", events[0])
	}
	if ce.Text != "loose text" {
		t.Errorf("expected 'loose text', got %q", ce.Text)
	}
}

func TestClassify_UnknownShapeIsRaw(t *testing.T) {
	events := classifyPayload(t, `{"something":"else"}`)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	re, ok := events[0].(RawEvent)
	if !ok {
		t.Fatalf("expected RawEvent, got %T", events[0])
	}
	if re.Payload != `{"something":"else"}` {
		t.Errorf("unexpected payload: %q", re.Payload)
	}
}

func TestClassify_MalformedEnvelopeIsRaw(t *testing.T) {
	events := Classify(Envelope{Payload: "not json"})
	if _, ok := events[0].(RawEvent); !ok {
		t.Fatalf("expected RawEvent, got %T", events[0])
	}
}
