package agentapi

import "github.com/adoptiveai/ragchat/protocol"

// StreamInput is the request body for a streaming turn.
type StreamInput struct {
	Message               string                 `json:"message"`
	Model                 string                 `json:"model,omitempty"`
	ThreadID              string                 `json:"thread_id,omitempty"`
	AgentConfig           map[string]interface{} `json:"agent_config,omitempty"`
	FileIDs               []string               `json:"file_ids,omitempty"`
	UserID                string                 `json:"user_id,omitempty"`
	SkipDocumentInjection bool                   `json:"skip_document_injection,omitempty"`
	StreamTokens          bool                   `json:"stream_tokens"`
}

// History is the message log of one conversation thread.
type History struct {
	ThreadID string                 `json:"thread_id,omitempty"`
	Messages []protocol.WireMessage `json:"messages"`
}

// Conversation summarizes one stored thread.
type Conversation struct {
	ThreadID  string `json:"thread_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// AgentInfo describes one agent the service exposes.
type AgentInfo struct {
	Key         string `json:"key"`
	Description string `json:"description"`
}

// ServiceInfo is the service's agent/model metadata.
type ServiceInfo struct {
	Agents       []AgentInfo `json:"agents"`
	Models       []string    `json:"models"`
	DefaultAgent string      `json:"default_agent"`
	DefaultModel string      `json:"default_model"`
}

// FileUpload is the result of uploading a file.
type FileUpload struct {
	FileID      string `json:"file_id"`
	Filename    string `json:"filename"`
	StoragePath string `json:"storage_path,omitempty"`
}

// AnnotationsRequest asks for highlight regions within a document.
type AnnotationsRequest struct {
	PDFFile      string   `json:"pdf_file"`
	BlockIndices []int    `json:"block_indices"`
	Keywords     []string `json:"keywords,omitempty"`
	UserID       string   `json:"user_id,omitempty"`
}

// Annotation is one highlight region in top-left page coordinates.
type Annotation struct {
	Page   int     `json:"page"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Color  string  `json:"color,omitempty"`
}

// Feedback scores one assistant run.
type Feedback struct {
	RunID                string                 `json:"run_id"`
	Key                  string                 `json:"key"`
	Score                float64                `json:"score"`
	ConversationID       string                 `json:"conversation_id,omitempty"`
	CommentedMessageText string                 `json:"commented_message_text,omitempty"`
	Kwargs               map[string]interface{} `json:"kwargs,omitempty"`
}
