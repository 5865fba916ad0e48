package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/saravenpi/relay/internal/models"
)

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Reply is the union of the shapes the chat, relay and knowledge endpoints
// answer with.
type Reply struct {
	Response     string            `json:"response,omitempty"`
	Message      string            `json:"message,omitempty"`
	Documents    []models.Document `json:"documents,omitempty"`
	HasDocuments bool              `json:"hasDocuments,omitempty"`
	Mode         string            `json:"mode,omitempty"`
	UserID       string            `json:"userId,omitempty"`
}

type Health struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type chatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
	UserID  string `json:"userId"`
}

// Client talks to the backend over HTTP as a single user.
type Client struct {
	baseURL string
	userID  string
	http    *http.Client
}

func NewClient(baseURL, userID string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) UserID() string {
	return c.userID
}

// Chat posts a message to the AI chat endpoint.
func (c *Client) Chat(ctx context.Context, message string, mode models.Mode) (*Reply, error) {
	body, err := json.Marshal(chatRequest{Message: message, Mode: string(mode), UserID: c.userID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doReply(req)
}

// Relay submits a message to the WhatsApp relay as if it came from the local
// user.
func (c *Client) Relay(ctx context.Context, message string) (*Reply, error) {
	form := url.Values{}
	form.Set("from", c.userID)
	form.Set("body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/whatsapp/incoming_manual", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.doReply(req)
}

// StoreKnowledge uploads a document into the user's knowledge base.
func (c *Client) StoreKnowledge(ctx context.Context, fileName string, content io.Reader) (*Reply, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if err := w.WriteField("userId", c.userID); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/knowledge/store", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	return c.doReply(req)
}

// DownloadDocument opens a stored document for streaming. The returned name
// is the backend's suggested file name reduced to a single path element, or
// empty when it gave none usable. The caller closes body.
func (c *Client) DownloadDocument(ctx context.Context, id int64) (name string, body io.ReadCloser, err error) {
	u := fmt.Sprintf("%s/document/%d/download?userId=%s", c.baseURL, id, url.QueryEscape(c.userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", nil, err
	}

	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		name = SafeFileName(params["filename"])
	}
	return name, resp.Body, nil
}

// SafeFileName strips any directory part from a server supplied name so it
// can only ever name a file in the current directory. Names that reduce to
// nothing, "." or ".." come back empty.
func SafeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case "", ".", "..", "/":
		return ""
	}
	return name
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode health response: %w", err)
	}
	return &h, nil
}

// do sends req and turns transport failures and non-2xx statuses into
// errors. On success the caller owns the response body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

// doReply decodes a JSON reply. A plain-text body is taken as the response
// text itself.
func (c *Client) doReply(req *http.Request) (*Reply, error) {
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		return &Reply{Response: strings.TrimSpace(string(body))}, nil
	}

	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &reply, nil
}
