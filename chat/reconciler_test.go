package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adoptiveai/ragchat/protocol"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// stubFetcher returns a canned figure or error per graph id.
type stubFetcher struct {
	figures map[string]map[string]interface{}
	err     error
}

func (f *stubFetcher) Graph(_ context.Context, graphID string) (map[string]interface{}, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.figures[graphID], nil
}

func lastAssistant(t *testing.T, l *Log) Message {
	t.Helper()
	msgs := l.Snapshot()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleAssistant {
			return msgs[i]
		}
	}
	t.Fatal("no assistant message in log")
	return Message{}
}

func TestReconcilerFinalContentOverridesDeltas(t *testing.T) {
	l := NewLog()
	r := NewReconciler(l, nil, WithClock(newFakeClock().Now))
	ctx := context.Background()

	r.BeginTurn("greet me", nil)
	r.Apply(ctx, protocol.ContentEvent{Text: "Hel"})
	r.Apply(ctx, protocol.ContentEvent{Text: "lo"})
	r.Apply(ctx, protocol.FinalContentEvent{Text: "Hello"})
	r.Finish()

	msgs := l.Snapshot()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleHuman, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[1].Content)
}

func TestReconcilerThrottlesContentFlushes(t *testing.T) {
	clk := newFakeClock()
	l := NewLog()
	r := NewReconciler(l, nil, WithClock(clk.Now))
	ctx := context.Background()

	r.BeginTurn("q", nil)
	// First delta always lands; lastFlush starts at the zero time.
	r.Apply(ctx, protocol.ContentEvent{Text: "a"})
	assert.Equal(t, "a", lastAssistant(t, l).Content)

	// Within the interval the log keeps the previous flush.
	clk.Advance(50 * time.Millisecond)
	r.Apply(ctx, protocol.ContentEvent{Text: "b"})
	assert.Equal(t, "a", lastAssistant(t, l).Content)

	// Past the interval the full buffer lands.
	clk.Advance(150 * time.Millisecond)
	r.Apply(ctx, protocol.ContentEvent{Text: "c"})
	assert.Equal(t, "abc", lastAssistant(t, l).Content)
}

func TestReconcilerFinishFlushesTrailingBuffer(t *testing.T) {
	clk := newFakeClock()
	l := NewLog()
	r := NewReconciler(l, nil, WithClock(clk.Now))
	ctx := context.Background()

	r.BeginTurn("q", nil)
	r.Apply(ctx, protocol.ContentEvent{Text: "partial"})
	clk.Advance(10 * time.Millisecond)
	r.Apply(ctx, protocol.ContentEvent{Text: " answer"})
	r.Finish()

	assert.Equal(t, "partial answer", lastAssistant(t, l).Content)
}

func TestReconcilerSQLTurn(t *testing.T) {
	l := NewLog()
	r := NewReconciler(l, nil, WithClock(newFakeClock().Now))
	ctx := context.Background()

	r.BeginTurn("show sales", nil)
	r.Apply(ctx, protocol.ToolCallsEvent{Calls: []protocol.ToolCall{
		{ID: "c1", Name: ToolNameSQL, Args: map[string]interface{}{"query": "select 1"}},
	}})
	r.Apply(ctx, protocol.ToolResultsEvent{Results: []protocol.ToolResult{
		{ToolCallID: "c1", Content: protocol.NewTextContent("region;total\nEMEA;10")},
	}})
	r.Apply(ctx, protocol.FinalContentEvent{Text: "EMEA sold 10."})
	r.Finish()

	msgs := l.Snapshot()
	require.Len(t, msgs, 4)
	assert.Equal(t, RoleHuman, msgs[0].Role)

	assert.Equal(t, "Running tool SQL_Executor", msgs[1].Content)
	require.IsType(t, StatusData{}, msgs[1].Data)

	require.IsType(t, SQLData{}, msgs[2].Data)
	assert.Equal(t, "region;total\nEMEA;10", msgs[2].Data.(SQLData).Content)

	// Finish relocates the assistant message after the tool activity.
	assert.Equal(t, RoleAssistant, msgs[3].Role)
	assert.Equal(t, "EMEA sold 10.", msgs[3].Content)
}

func TestReconcilerUnknownCorrelationIDFallsBack(t *testing.T) {
	l := NewLog()
	r := NewReconciler(l, nil, WithClock(newFakeClock().Now))
	ctx := context.Background()

	r.BeginTurn("q", nil)
	r.Apply(ctx, protocol.ToolResultsEvent{Results: []protocol.ToolResult{
		{ToolCallID: "never-announced", Content: protocol.NewTextContent("stray output")},
	}})
	r.Finish()

	msgs := l.Snapshot()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleTool, msgs[1].Role)
	assert.Equal(t, "stray output", msgs[1].Content)
	assert.Nil(t, msgs[1].Data)
}

func TestReconcilerGraphFetchSuccess(t *testing.T) {
	fetcher := &stubFetcher{figures: map[string]map[string]interface{}{
		"g-42": {"data": []interface{}{}, "layout": map[string]interface{}{"title": "Sales"}},
	}}
	l := NewLog()
	r := NewReconciler(l, fetcher, WithClock(newFakeClock().Now))
	ctx := context.Background()

	r.BeginTurn("plot it", nil)
	r.Apply(ctx, protocol.ToolCallsEvent{Calls: []protocol.ToolCall{{ID: "c1", Name: ToolNameGraph}}})
	r.Apply(ctx, protocol.ToolResultsEvent{Results: []protocol.ToolResult{
		{ToolCallID: "c1", Content: protocol.NewTextContent(" g-42 \n")},
	}})
	r.Finish()

	var graph *GraphData
	for _, m := range l.Snapshot() {
		if gd, ok := m.Data.(GraphData); ok {
			graph = &gd
		}
	}
	require.NotNil(t, graph, "expected a graph tool message")
	assert.Equal(t, "g-42", graph.GraphID)
	assert.Contains(t, graph.Figure, "layout")
}

func TestReconcilerGraphFetchFailureRendersInline(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("backend unavailable")}
	l := NewLog()
	r := NewReconciler(l, fetcher, WithClock(newFakeClock().Now))
	ctx := context.Background()

	r.BeginTurn("plot it", nil)
	r.Apply(ctx, protocol.ToolCallsEvent{Calls: []protocol.ToolCall{{ID: "c1", Name: ToolNameGraph}}})
	r.Apply(ctx, protocol.ToolResultsEvent{Results: []protocol.ToolResult{
		{ToolCallID: "c1", Content: protocol.NewTextContent("g-42")},
	}})
	r.Finish()

	var found bool
	for _, m := range l.Snapshot() {
		if m.Role == RoleTool && m.Content == "Failed to fetch graph: backend unavailable" {
			found = true
		}
	}
	assert.True(t, found, "expected the fetch failure as a tool message")
}

func TestReconcilerLateGraphFetchDiscardedAfterReset(t *testing.T) {
	release := make(chan struct{})
	fetcher := blockingFetcher{release: release}
	l := NewLog()
	r := NewReconciler(l, fetcher, WithClock(newFakeClock().Now))
	ctx := context.Background()

	r.BeginTurn("plot it", nil)
	r.Apply(ctx, protocol.ToolCallsEvent{Calls: []protocol.ToolCall{{ID: "c1", Name: ToolNameGraph}}})
	r.Apply(ctx, protocol.ToolResultsEvent{Results: []protocol.ToolResult{
		{ToolCallID: "c1", Content: protocol.NewTextContent("g-1")},
	}})

	// The conversation switches while the fetch is still in flight.
	l.Reset()
	close(release)
	r.Finish()

	for _, m := range l.Snapshot() {
		assert.NotEqual(t, ToolKindGraph, kindOf(m.Data), "late graph append must be discarded")
	}
}

type blockingFetcher struct {
	release chan struct{}
}

func (f blockingFetcher) Graph(context.Context, string) (map[string]interface{}, error) {
	<-f.release
	return map[string]interface{}{"data": []interface{}{}}, nil
}

func kindOf(d ToolData) ToolKind {
	if d == nil {
		return ""
	}
	return d.Kind()
}

func TestReconcilerCitationResult(t *testing.T) {
	l := NewLog()
	r := NewReconciler(l, nil, WithClock(newFakeClock().Now))
	ctx := context.Background()

	entries := []CitationEntry{{PDFFile: "report.pdf", BlockIndices: []int{3, 7}}}
	raw, err := json.Marshal(entries)
	require.NoError(t, err)

	r.BeginTurn("cite sources", nil)
	r.Apply(ctx, protocol.ToolCallsEvent{Calls: []protocol.ToolCall{{ID: "c1", Name: ToolNamePDF}}})
	r.Apply(ctx, protocol.ToolResultsEvent{Results: []protocol.ToolResult{
		{ToolCallID: "c1", Content: protocol.NewTextContent(string(raw))},
	}})
	r.Finish()

	var cd *CitationData
	for _, m := range l.Snapshot() {
		if d, ok := m.Data.(CitationData); ok {
			cd = &d
		}
	}
	require.NotNil(t, cd)
	assert.Equal(t, "c1", cd.CallID)
	require.Len(t, cd.Entries, 1)
	assert.Equal(t, "report.pdf", cd.Entries[0].PDFFile)
	assert.Equal(t, []int{3, 7}, cd.Entries[0].BlockIndices)
}

func TestReconcilerCitationParseFailure(t *testing.T) {
	l := NewLog()
	r := NewReconciler(l, nil, WithClock(newFakeClock().Now))
	ctx := context.Background()

	r.BeginTurn("cite sources", nil)
	r.Apply(ctx, protocol.ToolCallsEvent{Calls: []protocol.ToolCall{{ID: "c1", Name: ToolNamePDF}}})
	r.Apply(ctx, protocol.ToolResultsEvent{Results: []protocol.ToolResult{
		{ToolCallID: "c1", Content: protocol.NewTextContent("not json")},
	}})
	r.Finish()

	var found bool
	for _, m := range l.Snapshot() {
		if m.Role == RoleTool && len(m.Content) > 0 &&
			m.Data == nil && m.Content != "Running tool PDF_Viewer" {
			found = true
			assert.Contains(t, m.Content, "PDF viewer returned invalid data")
		}
	}
	assert.True(t, found)
}

func TestReconcilerFinalMessageReplacesPlaceholder(t *testing.T) {
	l := NewLog()
	r := NewReconciler(l, nil, WithClock(newFakeClock().Now))
	ctx := context.Background()

	r.BeginTurn("q", nil)
	r.Apply(ctx, protocol.ContentEvent{Text: "Hel"})
	r.Apply(ctx, protocol.FinalContentEvent{Text: "Hello"})
	r.Apply(ctx, protocol.FinalMessageEvent{Message: protocol.WireMessage{
		Type:    "ai",
		Content: "Hello",
		RunID:   "run-9",
	}})
	r.Finish()

	last := lastAssistant(t, l)
	assert.Equal(t, "Hello", last.Content)
	assert.Equal(t, "run-9", last.RunID)
}

func TestReconcilerFinishIsIdempotent(t *testing.T) {
	l := NewLog()
	r := NewReconciler(l, nil, WithClock(newFakeClock().Now))
	ctx := context.Background()

	r.BeginTurn("q", nil)
	r.Apply(ctx, protocol.FinalContentEvent{Text: "done"})
	r.Finish()
	before := l.Snapshot()
	r.Finish()

	assert.Equal(t, before, l.Snapshot())
}
