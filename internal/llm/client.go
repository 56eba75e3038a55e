package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/JR-coderli/SmartPdfRename/internal/domain"
	"github.com/JR-coderli/SmartPdfRename/internal/observability"
)

// maxErrorBody bounds how much of a failed response is quoted in errors
const maxErrorBody = 512

// ChatClient sends a single image plus instruction to an OpenAI-compatible
// chat completions endpoint. The API key is read from the environment on
// every call so a key exported after startup is picked up.
type ChatClient struct {
	endpoint   string
	model      string
	apiKeyEnv  string
	headers    map[string]string
	jsonMode   bool
	httpClient *http.Client
	retry      *RetryPolicy
	logger     *observability.Logger
}

// ChatClientConfig configures a ChatClient
type ChatClientConfig struct {
	Endpoint  string
	Model     string
	APIKeyEnv string
	Headers   map[string]string
	JSONMode  bool // request response_format json_object
	Timeout   time.Duration
	Retry     *RetryPolicy
}

// Message represents a chat message
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart represents a part of message content (text or image)
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL represents an image URL in the message
type ImageURL struct {
	URL string `json:"url"`
}

// Request represents the API request structure
type Request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ResponseFormat asks the backend for a bare JSON object
type ResponseFormat struct {
	Type string `json:"type"`
}

// Response represents the API response structure
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Choice represents a single completion choice
type Choice struct {
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// ChoiceMessage is the assistant reply of a choice
type ChoiceMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewChatClient creates a chat client
func NewChatClient(cfg ChatClientConfig, logger *observability.Logger) *ChatClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	retry := cfg.Retry
	if retry == nil {
		retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = observability.Nop()
	}

	return &ChatClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKeyEnv:  cfg.APIKeyEnv,
		headers:    cfg.Headers,
		jsonMode:   cfg.JSONMode,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		logger:     logger,
	}
}

// Model returns the configured model identifier
func (c *ChatClient) Model() string {
	return c.model
}

// Complete submits image with the instruction and returns the first choice's content
func (c *ChatClient) Complete(ctx context.Context, image []byte, instruction string) (string, error) {
	apiKey := strings.TrimSpace(os.Getenv(c.apiKeyEnv))
	if apiKey == "" {
		return "", domain.ConfigError(fmt.Sprintf("%s is not set", c.apiKeyEnv), nil)
	}

	body, err := json.Marshal(c.buildRequest(image, instruction))
	if err != nil {
		return "", domain.UpstreamError("failed to marshal request", err)
	}

	start := time.Now()
	resp, err := c.send(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		return req, nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", domain.UpstreamError("request aborted", err)
		}
		var de *domain.DomainError
		if errors.As(err, &de) {
			return "", err
		}
		return "", domain.UpstreamError("failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", domain.UpstreamError(fmt.Sprintf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.UpstreamError("failed to read response body", err)
	}

	var parsed Response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", domain.UpstreamError("malformed response body", err)
	}
	if parsed.Error != nil {
		return "", domain.UpstreamError(fmt.Sprintf("API error: %s", parsed.Error.Message), nil)
	}
	if len(parsed.Choices) == 0 {
		// Some gateways return the extracted record itself
		if isBareRecord(raw) {
			return strings.TrimSpace(string(raw)), nil
		}
		return "", domain.UpstreamError("response has no choices", nil)
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", domain.UpstreamError("response content is empty", nil)
	}

	c.logger.Debug().
		Str("model", c.model).
		Dur("elapsed", time.Since(start)).
		Int("content_len", len(content)).
		Msg("Completion received")

	return content, nil
}

// recordKeys are the fields of an invoice record
var recordKeys = []string{"date", "merchant", "invoice_description", "month", "amount", "currency_code"}

// isBareRecord reports whether body is an invoice object rather than a
// chat completion envelope.
func isBareRecord(body []byte) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return false
	}
	if _, ok := obj["choices"]; ok {
		return false
	}
	for _, k := range recordKeys {
		if _, ok := obj[k]; ok {
			return true
		}
	}
	return false
}

// buildRequest constructs the API request with the image as a base64 data URL
func (c *ChatClient) buildRequest(image []byte, instruction string) *Request {
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)

	req := &Request{
		Model: c.model,
		Messages: []Message{
			{
				Role:    "system",
				Content: []ContentPart{{Type: "text", Text: instruction}},
			},
			{
				Role: "user",
				Content: []ContentPart{
					{Type: "text", Text: "Extract the invoice fields from this image."},
					{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
				},
			},
		},
	}
	if c.jsonMode {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}
	return req
}
