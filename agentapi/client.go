// Package agentapi is the HTTP client for the backend agent service. It
// covers the streaming turn endpoint plus the supporting surface the
// client needs: history, conversation CRUD, file upload, graph and
// annotation retrieval, and feedback.
package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultTimeout = 60 * time.Second

// APIError is a non-2xx response from the agent service.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("agent service: %s (status %d)", e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("agent service: status %d", e.StatusCode)
}

// Client talks to one agent service instance. Safe for concurrent use.
type Client struct {
	baseURL   string
	authToken string
	httpc     *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAuthToken sends a bearer token with every request.
func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithTimeout sets the per-request timeout for non-streaming calls.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream opens a streaming turn. The caller owns the returned body and
// must close it; cancel ctx to abort mid-stream.
func (c *Client) Stream(ctx context.Context, agent string, input StreamInput) (io.ReadCloser, error) {
	endpoint := "/stream"
	if agent != "" {
		endpoint = "/" + agent + "/stream"
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encoding stream input: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	// The stream outlives any sane request timeout; rely on ctx instead.
	httpc := &http.Client{Transport: c.httpc.Transport}
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp.Body, nil
}

// History fetches the stored message log of a thread.
func (c *Client) History(ctx context.Context, threadID, userID string) (History, error) {
	var out History
	payload := map[string]string{"thread_id": threadID}
	if userID != "" {
		payload["user_id"] = userID
	}
	err := c.postJSON(ctx, "/history", payload, &out)
	return out, err
}

// Conversations lists the user's stored threads, newest first.
func (c *Client) Conversations(ctx context.Context, userID string, limit int) ([]Conversation, error) {
	q := url.Values{"user_id": {userID}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out struct {
		Conversations []Conversation `json:"conversations"`
	}
	if err := c.getJSON(ctx, "/conversations", q, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// ConversationTitle fetches a thread's title.
func (c *Client) ConversationTitle(ctx context.Context, threadID, userID string) (string, error) {
	var out struct {
		ThreadID string `json:"thread_id"`
		Title    string `json:"title"`
	}
	q := url.Values{"user_id": {userID}}
	err := c.getJSON(ctx, "/conversations/"+url.PathEscape(threadID)+"/title", q, &out)
	return out.Title, err
}

// SetConversationTitle stores a thread's title.
func (c *Client) SetConversationTitle(ctx context.Context, threadID, title, userID string) error {
	q := url.Values{"title": {title}, "user_id": {userID}}
	endpoint := "/conversations/" + url.PathEscape(threadID) + "/title?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	return c.doDiscard(req)
}

// DeleteConversation removes a stored thread.
func (c *Client) DeleteConversation(ctx context.Context, threadID, userID string) error {
	q := url.Values{"user_id": {userID}}
	endpoint := "/conversations/" + url.PathEscape(threadID) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	return c.doDiscard(req)
}

// UploadParams scopes a file upload to a user and optionally a thread.
type UploadParams struct {
	ThreadID string
	UserID   string
	Agent    string
}

// UploadFile uploads one file as multipart form data.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader, params UploadParams) (FileUpload, error) {
	var out FileUpload

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return out, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return out, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return out, err
	}

	q := url.Values{}
	if params.ThreadID != "" {
		q.Set("thread_id", params.ThreadID)
	}
	if params.UserID != "" {
		q.Set("user_id", params.UserID)
	}
	if params.Agent != "" {
		q.Set("agent_id", params.Agent)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload?"+q.Encode(), &buf)
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return out, readAPIError(resp)
	}
	err = json.NewDecoder(resp.Body).Decode(&out)
	return out, err
}

// Graph fetches a rendered graph figure by id. Some backends return the
// figure double-encoded as a JSON string; both shapes decode to the same
// figure object.
func (c *Client) Graph(ctx context.Context, graphID string) (map[string]interface{}, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/graph/"+url.PathEscape(graphID), nil, &raw); err != nil {
		return nil, err
	}
	var figure map[string]interface{}
	if err := json.Unmarshal(raw, &figure); err == nil {
		return figure, nil
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("graph %s: unexpected response shape", graphID)
	}
	if err := json.Unmarshal([]byte(encoded), &figure); err != nil {
		return nil, fmt.Errorf("graph %s: %w", graphID, err)
	}
	return figure, nil
}

// Annotations fetches highlight regions for the given document blocks.
func (c *Client) Annotations(ctx context.Context, in AnnotationsRequest) ([]Annotation, error) {
	var out struct {
		Annotations []Annotation `json:"annotations"`
	}
	if err := c.postJSON(ctx, "/rag/annotations", in, &out); err != nil {
		return nil, err
	}
	return out.Annotations, nil
}

// DebugBlocks fetches every structural block boundary of a document.
func (c *Client) DebugBlocks(ctx context.Context, pdfFile, userID string) ([]Annotation, error) {
	payload := map[string]string{"pdf_file": pdfFile}
	if userID != "" {
		payload["user_id"] = userID
	}
	var out struct {
		Annotations []Annotation `json:"annotations"`
	}
	if err := c.postJSON(ctx, "/rag/debug_blocks", payload, &out); err != nil {
		return nil, err
	}
	return out.Annotations, nil
}

// PDF fetches a source document's raw bytes.
func (c *Client) PDF(ctx context.Context, documentName string) ([]byte, error) {
	endpoint := "/rag/pdf_content/" + url.PathEscape(documentName)
	if c.authToken != "" {
		// This endpoint authenticates via query parameter.
		endpoint += "?" + url.Values{"token": {c.authToken}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}
	return io.ReadAll(resp.Body)
}

// ServiceInfo fetches the service's agent and model metadata.
func (c *Client) ServiceInfo(ctx context.Context) (ServiceInfo, error) {
	var out ServiceInfo
	err := c.getJSON(ctx, "/info", nil, &out)
	return out, err
}

// CreateFeedback records a score for one assistant run.
func (c *Client) CreateFeedback(ctx context.Context, fb Feedback) error {
	return c.postJSON(ctx, "/feedback", fb, nil)
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, q url.Values, out interface{}) error {
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	return c.doJSON(req, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) doDiscard(req *http.Request) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// readAPIError extracts the service's {detail|message} error body.
func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Detail != "" {
			apiErr.Detail = parsed.Detail
			return apiErr
		}
		if parsed.Message != "" {
			apiErr.Detail = parsed.Message
			return apiErr
		}
	}
	apiErr.Detail = strings.TrimSpace(string(body))
	return apiErr
}
