package chat

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/adoptiveai/ragchat/agentapi"
	"github.com/adoptiveai/ragchat/protocol"
)

const (
	// DefaultAgent is the backend agent a session targets unless
	// configured otherwise.
	DefaultAgent = "pg_rag_assistant"

	// DefaultConversationTitle marks a conversation that has not been
	// titled yet.
	DefaultConversationTitle = "New Conversation"
)

// Session owns the state of one conversation: the thread id, the message
// log, and the reconciler that applies stream events to it. A session
// drives complete turns against the backend; it is not safe for
// concurrent Send calls.
type Session struct {
	client *agentapi.Client
	log    *Log
	rec    *Reconciler

	threadID string
	agent    string
	model    string
	userID   string
	title    string

	pendingUploads []string
	fileIDs        []string

	inTurn bool
	closed bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithModel selects the model requested for each turn.
func WithModel(model string) SessionOption {
	return func(s *Session) { s.model = model }
}

// WithUserID scopes the session to a user for history and titles.
func WithUserID(userID string) SessionOption {
	return func(s *Session) { s.userID = userID }
}

// WithAgent targets a specific backend agent.
func WithAgent(agent string) SessionOption {
	return func(s *Session) { s.agent = agent }
}

// WithReconcilerOptions forwards options to the session's reconciler.
func WithReconcilerOptions(opts ...ReconcilerOption) SessionOption {
	return func(s *Session) {
		s.rec = NewReconciler(s.log, s.client, opts...)
	}
}

// NewSession creates a session on a fresh conversation thread.
func NewSession(client *agentapi.Client, opts ...SessionOption) *Session {
	log := NewLog()
	s := &Session{
		client:   client,
		log:      log,
		rec:      NewReconciler(log, client),
		threadID: uuid.NewString(),
		agent:    DefaultAgent,
		title:    DefaultConversationTitle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ThreadID returns the current conversation thread id.
func (s *Session) ThreadID() string { return s.threadID }

// Title returns the current conversation title.
func (s *Session) Title() string { return s.title }

// Messages returns a snapshot of the conversation log.
func (s *Session) Messages() []Message { return s.log.Snapshot() }

// Attach queues a local file for upload on the next Send.
func (s *Session) Attach(path string) {
	s.pendingUploads = append(s.pendingUploads, path)
}

// Send runs one complete turn: queued files are uploaded, the user
// message and an assistant placeholder are appended, and the response
// stream is drained into the log. The error, if any, describes what cut
// the turn short; everything reconciled before the failure stays in the
// log.
func (s *Session) Send(ctx context.Context, text string) error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.inTurn {
		return ErrTurnActive
	}
	s.inTurn = true
	defer func() { s.inTurn = false }()

	attached, err := s.uploadPending(ctx)
	if err != nil {
		return err
	}

	s.rec.BeginTurn(text, attached)
	err = s.streamTurn(ctx, text)
	s.rec.Finish()
	if err != nil {
		s.log.UpdateLastAssistant(fmt.Sprintf("Error: %v", err))
		return err
	}

	if s.title == DefaultConversationTitle && s.userID != "" {
		s.title = autoTitle(text)
		if err := s.client.SetConversationTitle(ctx, s.threadID, s.title, s.userID); err != nil {
			slog.Warn("saving conversation title", "thread_id", s.threadID, "error", err)
		}
	}
	return nil
}

// streamTurn opens the response stream and applies every classified
// event in arrival order.
func (s *Session) streamTurn(ctx context.Context, text string) error {
	body, err := s.client.Stream(ctx, s.agent, agentapi.StreamInput{
		Message:      text,
		Model:        s.model,
		ThreadID:     s.threadID,
		FileIDs:      s.fileIDs,
		UserID:       s.userID,
		StreamTokens: true,
	})
	if err != nil {
		return err
	}
	defer body.Close()

	reader := protocol.NewStreamReader(body)
	for {
		env, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		for _, ev := range protocol.Classify(env) {
			s.rec.Apply(ctx, ev)
		}
	}
}

// uploadPending uploads queued files and returns their display names.
// File ids accumulate on the session so later turns keep the documents
// in scope.
func (s *Session) uploadPending(ctx context.Context) ([]string, error) {
	if len(s.pendingUploads) == 0 {
		return nil, nil
	}
	var names []string
	for _, path := range s.pendingUploads {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		up, err := s.client.UploadFile(ctx, filepath.Base(path), f, agentapi.UploadParams{
			ThreadID: s.threadID,
			UserID:   s.userID,
			Agent:    s.agent,
		})
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("uploading %s: %w", path, err)
		}
		s.fileIDs = append(s.fileIDs, up.FileID)
		names = append(names, up.Filename)
	}
	s.pendingUploads = nil
	return names, nil
}

// NewConversation switches the session to a fresh thread. In-flight work
// for the old thread is released by the log's generation bump.
func (s *Session) NewConversation() {
	s.threadID = uuid.NewString()
	s.title = DefaultConversationTitle
	s.fileIDs = nil
	s.pendingUploads = nil
	s.log.Reset()
}

// Load switches the session to a stored thread and replaces the log with
// its history.
func (s *Session) Load(ctx context.Context, threadID string) error {
	hist, err := s.client.History(ctx, threadID, s.userID)
	if err != nil {
		return err
	}
	msgs := make([]Message, 0, len(hist.Messages))
	for _, w := range hist.Messages {
		msgs = append(msgs, FromWire(w))
	}
	s.threadID = threadID
	s.fileIDs = nil
	s.pendingUploads = nil
	s.log.SetMessages(msgs)

	title, err := s.client.ConversationTitle(ctx, threadID, s.userID)
	if err != nil || title == "" {
		title = DefaultConversationTitle
	}
	s.title = title
	return nil
}

// Close marks the session unusable for further turns.
func (s *Session) Close() {
	s.closed = true
}

// autoTitle derives a conversation title from the first user message:
// the first 40 characters, backed off to the last word boundary past 20
// when the cut lands mid-word.
func autoTitle(text string) string {
	t := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if len(t) <= 40 {
		if t == "" {
			return DefaultConversationTitle
		}
		return t
	}
	cut := t[:40]
	if !strings.HasSuffix(cut, " ") {
		if i := strings.LastIndex(cut, " "); i > 20 {
			cut = cut[:i]
		}
	}
	cut = strings.TrimSpace(cut)
	if cut == "" {
		return DefaultConversationTitle
	}
	return cut
}
