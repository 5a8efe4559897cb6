// Package openai implements llm.Provider for OpenAI-compatible chat
// completion endpoints, including search-augmented ones that return
// citations alongside the answer.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/user/docchat/internal/errx"
	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/pkg/llm"
)

// Client implements the llm.Provider interface for OpenAI-compatible APIs.
type Client struct {
	config     *llm.Config
	provider   string
	httpClient *http.Client
}

// New creates a client. A missing API key or model is reported as
// errx.ErrProviderMisconfigured. name labels upstream errors.
func New(name string, config *llm.Config) (*Client, error) {
	if config == nil || config.APIKey == "" {
		return nil, errx.Misconfigured(name, "api key")
	}
	if config.Model == "" {
		return nil, errx.Misconfigured(name, "model")
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     config,
		provider:   name,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// chatRequest is the chat completions request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float32      `json:"temperature,omitempty"`
}

// chatResponse is the chat completions response body. citations and
// search_results are extensions of search-augmented providers.
type chatResponse struct {
	Choices       []choice           `json:"choices"`
	Usage         responseUsage      `json:"usage"`
	Citations     []string           `json:"citations"`
	SearchResults []llm.SearchResult `json:"search_results"`
}

type choice struct {
	Message llm.Message `json:"message"`
}

type responseUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Complete sends a chat completion request and returns the full response.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (*llm.Response, error) {
	reqBody := chatRequest{
		Model:     c.config.Model,
		Messages:  messages,
		MaxTokens: c.config.MaxTokens,
	}
	if c.config.Temperature != 0 {
		temp := c.config.Temperature
		reqBody.Temperature = &temp
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	logx.Debug().Str("provider", c.provider).Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).Msg("chat completion")

	if resp.StatusCode != http.StatusOK {
		return nil, &errx.UpstreamError{Provider: c.provider, Status: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	return &llm.Response{
		Content:       chatResp.Choices[0].Message.Content,
		Citations:     chatResp.Citations,
		SearchResults: chatResp.SearchResults,
		Usage: llm.Usage{
			InputTokens:  chatResp.Usage.PromptTokens,
			OutputTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:  chatResp.Usage.TotalTokens,
		},
	}, nil
}
