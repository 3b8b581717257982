package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/adoptiveai/ragchat/protocol"
)

// Tool names the backend dispatches on.
const (
	ToolNameGraph = "Graphing_Agent"
	ToolNamePDF   = "PDF_Viewer"
	ToolNameSQL   = "SQL_Executor"
)

// defaultFlushInterval bounds how often buffered content deltas are
// applied to the observable log.
const defaultFlushInterval = 100 * time.Millisecond

// GraphFetcher retrieves a rendered graph figure by id.
type GraphFetcher interface {
	Graph(ctx context.Context, graphID string) (map[string]interface{}, error)
}

// Reconciler applies classified stream events to the conversation log in
// arrival order. It is the sole mutator of conversation state during a
// turn. Graph sub-fetches run on their own goroutines and append through
// the log's generation guard, so a fetch that completes after the
// conversation was switched is discarded.
type Reconciler struct {
	log     *Log
	fetcher GraphFetcher

	now      func() time.Time
	interval time.Duration

	mu        sync.Mutex
	pending   map[string]protocol.ToolCall
	buffer    strings.Builder
	lastFlush time.Time
	gen       uint64
	active    bool
	fetches   sync.WaitGroup
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithFlushInterval overrides the content flush throttle interval.
func WithFlushInterval(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.interval = d }
}

// WithClock overrides the time source (used by tests).
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// NewReconciler creates a reconciler writing to log. fetcher may be nil,
// in which case graph results render as errors.
func NewReconciler(log *Log, fetcher GraphFetcher, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		log:      log,
		fetcher:  fetcher,
		now:      time.Now,
		interval: defaultFlushInterval,
		pending:  map[string]protocol.ToolCall{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BeginTurn opens a new assistant turn: the human message is appended,
// followed by an empty assistant placeholder that subsequent content
// events extend.
func (r *Reconciler) BeginTurn(text string, attachedFiles []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buffer.Reset()
	r.lastFlush = time.Time{}
	r.gen = r.log.Generation()
	r.active = true
	r.log.Append(Message{Role: RoleHuman, Content: text, AttachedFiles: attachedFiles})
	r.log.Append(Message{Role: RoleAssistant})
}

// Apply processes one classified event. Events must be applied in arrival
// order; correlation state set by earlier events is consulted by later
// ones.
func (r *Reconciler) Apply(ctx context.Context, ev protocol.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case protocol.ContentEvent:
		r.buffer.WriteString(e.Text)
		if now := r.now(); now.Sub(r.lastFlush) > r.interval {
			r.log.UpdateLastAssistant(r.buffer.String())
			r.lastFlush = now
		}
	case protocol.FinalContentEvent:
		r.buffer.Reset()
		r.buffer.WriteString(e.Text)
		r.log.UpdateLastAssistant(e.Text)
	case protocol.ToolCallsEvent:
		for _, call := range e.Calls {
			if call.ID == "" {
				continue
			}
			r.pending[call.ID] = call
			r.log.Append(Message{
				Role:    RoleTool,
				Content: fmt.Sprintf("Running tool %s", call.Name),
				Data:    StatusData{Call: call},
			})
		}
	case protocol.ToolResultsEvent:
		for _, result := range e.Results {
			r.applyToolResult(ctx, result)
		}
	case protocol.FinalMessageEvent:
		msg := FromWire(e.Message)
		r.buffer.Reset()
		r.buffer.WriteString(msg.Content)
		r.log.ReplaceLastAssistant(msg)
	case protocol.RawEvent:
		slog.Debug("ignoring raw stream event", "payload", e.Payload)
	}
}

// applyToolResult appends the rendered tool message for one result,
// dispatching on the originating call's declared tool name. A result
// whose correlation id is unknown falls back to a generic tool message.
func (r *Reconciler) applyToolResult(ctx context.Context, result protocol.ToolResult) {
	call, known := r.pending[result.ToolCallID]
	name := "tool"
	if known {
		name = call.Name
	}

	content, isText := result.Content.AsString()

	switch {
	case name == ToolNameGraph && isText:
		r.fetchGraph(ctx, strings.TrimSpace(content))
	case name == ToolNamePDF && isText:
		var entries []CitationEntry
		if err := json.Unmarshal([]byte(content), &entries); err != nil {
			r.log.Append(Message{
				Role:    RoleTool,
				Content: fmt.Sprintf("PDF viewer returned invalid data: %v", err),
			})
			return
		}
		r.log.Append(Message{
			Role: RoleTool,
			Data: CitationData{Entries: entries, CallID: result.ToolCallID},
		})
	case name == ToolNameSQL && isText:
		r.log.Append(Message{
			Role: RoleTool,
			Data: SQLData{Content: content},
		})
	default:
		if !isText {
			raw, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				raw = []byte(result.Content.String())
			}
			content = string(raw)
		}
		r.log.Append(Message{Role: RoleTool, Content: content})
	}
}

// fetchGraph retrieves the named graph resource without blocking the
// event loop. The completion appends under the turn's generation tag;
// failures render inline and never abort the turn.
func (r *Reconciler) fetchGraph(ctx context.Context, graphID string) {
	gen := r.gen
	if r.fetcher == nil {
		r.log.TryAppend(gen, Message{
			Role:    RoleTool,
			Content: fmt.Sprintf("Failed to fetch graph: no graph source for %s", graphID),
		})
		return
	}
	r.fetches.Add(1)
	go func() {
		defer r.fetches.Done()
		figure, err := r.fetcher.Graph(ctx, graphID)
		if err != nil {
			r.log.TryAppend(gen, Message{
				Role:    RoleTool,
				Content: fmt.Sprintf("Failed to fetch graph: %v", err),
			})
			return
		}
		r.log.TryAppend(gen, Message{
			Role:    RoleTool,
			Content: fmt.Sprintf("Retrieved graph %s", graphID),
			Data:    GraphData{GraphID: graphID, Figure: figure},
		})
	}()
}

// Finish closes the turn: outstanding sub-fetches are drained so all tool
// activity is in the log, the content buffer is flushed unconditionally,
// and the assistant message is relocated after any tool messages that were
// appended mid-stream. Safe to call when no final event was observed, and
// idempotent with respect to the relocation.
func (r *Reconciler) Finish() {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.active = false
	r.mu.Unlock()

	r.fetches.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buffer.Len() > 0 {
		r.log.UpdateLastAssistant(r.buffer.String())
	}
	r.log.MoveLastAssistantToEnd()
}
