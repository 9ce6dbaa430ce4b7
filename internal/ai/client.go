package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/skorokithakis/support-email-bot/internal/model"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o"
	defaultMaxTokens = 2048

	// systemPrompt frames every completion request; folder-specific
	// instructions travel in the user prompt.
	systemPrompt = "You are a helpful customer support agent. " +
		"Always be professional, empathetic, and solution-oriented."
)

// CompletionError indicates that the completion service failed (rate
// limit, timeout, malformed response). The affected message stays
// unprocessed and is retried on the next poll cycle.
type CompletionError struct {
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion service error (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("completion service error: %v", e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// IsCompletionError reports whether err (or any error in its chain) is a
// CompletionError.
func IsCompletionError(err error) bool {
	var completionErr *CompletionError
	return errors.As(err, &completionErr)
}

// Client calls an OpenAI-compatible chat completion API to turn prompts
// into reply bodies.
type Client struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// New creates a completion client with the given configuration.
func New(cfg model.AIConfig) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		apiKey:    cfg.APIKey,
		baseURL:   baseURL,
		model:     modelName,
		maxTokens: maxTokens,
		client:    &http.Client{},
	}
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model     string       `json:"model"`
	Messages  []apiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens,omitempty"`
}

type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends the prompt to the completion API and returns the
// generated text. The result may be empty; deciding whether an empty
// reply is sendable belongs to the composer, not here.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	reqBody := apiRequest{
		Model: c.model,
		Messages: []apiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens: c.maxTokens,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &CompletionError{Err: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(payload),
	)
	if err != nil {
		return "", &CompletionError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &CompletionError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CompletionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &CompletionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		msg := "request failed"
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", &CompletionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", msg)}
	}

	if len(parsed.Choices) == 0 {
		return "", &CompletionError{Err: fmt.Errorf("response contained no choices")}
	}

	return parsed.Choices[0].Message.Content, nil
}

// Verify checks that the configured model is reachable with the configured
// credentials. Called once at startup so a bad key or model name fails
// fast instead of on the first inbound message.
func (c *Client) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		c.baseURL+"/models/"+c.model,
		nil,
	)
	if err != nil {
		return &CompletionError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return &CompletionError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &CompletionError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("model %q not available", c.model),
		}
	}

	return nil
}

// Model returns the configured model name, for startup logging.
func (c *Client) Model() string {
	return c.model
}
