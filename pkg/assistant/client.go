// Package assistant is an HTTP client for the hosted assistant thread API:
// threads, messages, runs and message listing.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/docchat/internal/errx"
	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/internal/retry"
)

const providerName = "assistant"

// Config holds transport settings for the assistant API.
type Config struct {
	BaseURL     string
	APIKey      string
	AssistantID string
	// Beta is sent as the OpenAI-Beta header, e.g. "assistants=v2".
	Beta              string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             *retry.Policy
}

// Client talks to the assistant API. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     *retry.Policy
}

// New validates cfg and returns a client. A missing key or assistant id is
// reported as errx.ErrProviderMisconfigured.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errx.Misconfigured(providerName, "api key")
	}
	if cfg.AssistantID == "" {
		return nil, errx.Misconfigured(providerName, "assistant id")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Beta == "" {
		cfg.Beta = "assistants=v2"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	policy := cfg.Retry
	if policy == nil {
		policy = retry.DefaultPolicy()
	}
	if policy.Retryable == nil {
		p := *policy
		p.Retryable = Retryable
		policy = &p
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     policy,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// AssistantID returns the configured assistant.
func (c *Client) AssistantID() string { return c.cfg.AssistantID }

// Retryable reports whether err is worth another attempt. Cancellation and
// misconfiguration are final.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, errx.ErrProviderMisconfigured) {
		return false
	}
	return true
}

// CreateThread opens a new conversation thread and returns its id.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	return retry.Do(ctx, c.policy, "create_thread", func(ctx context.Context) (string, error) {
		var out threadResponse
		if err := c.do(ctx, http.MethodPost, "/threads", struct{}{}, &out); err != nil {
			return "", err
		}
		return out.ID, nil
	})
}

// PostMessage appends a user message to the thread. Each file id is attached
// with the file_search tool enabled.
func (c *Client) PostMessage(ctx context.Context, threadID, text string, fileIDs []string) (string, error) {
	req := messageRequest{Role: "user", Content: text}
	for _, id := range fileIDs {
		req.Attachments = append(req.Attachments, Attachment{FileID: id, Tools: []Tool{FileSearchTool}})
	}
	return retry.Do(ctx, c.policy, "post_message", func(ctx context.Context) (string, error) {
		var out Message
		if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", req, &out); err != nil {
			return "", err
		}
		return out.ID, nil
	})
}

// CreateRun starts the configured assistant over the thread.
func (c *Client) CreateRun(ctx context.Context, threadID string, opts RunOptions) (string, error) {
	req := runRequest{AssistantID: c.cfg.AssistantID, Instructions: opts.Instructions, Tools: opts.Tools}
	return retry.Do(ctx, c.policy, "create_run", func(ctx context.Context) (string, error) {
		var out Run
		if err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", req, &out); err != nil {
			return "", err
		}
		return out.ID, nil
	})
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	return retry.Do(ctx, c.policy, "get_run", func(ctx context.Context) (*Run, error) {
		var out Run
		path := "/threads/" + url.PathEscape(threadID) + "/runs/" + url.PathEscape(runID)
		if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// ListMessages returns up to limit messages, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 1
	}
	path := "/threads/" + url.PathEscape(threadID) + "/messages?order=desc&limit=" + strconv.Itoa(limit)
	return retry.Do(ctx, c.policy, "list_messages", func(ctx context.Context) ([]Message, error) {
		var out messageList
		if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
			return nil, err
		}
		return out.Data, nil
	})
}

// LatestAssistantMessage returns the newest assistant-authored message in the
// thread, or nil when there is none.
func (c *Client) LatestAssistantMessage(ctx context.Context, threadID string) (*Message, error) {
	msgs, err := c.ListMessages(ctx, threadID, 1)
	if err != nil {
		return nil, err
	}
	for i := range msgs {
		if msgs[i].Role == "assistant" {
			return &msgs[i], nil
		}
	}
	return nil, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("OpenAI-Beta", c.cfg.Beta)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	logx.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).Msg("assistant request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &errx.UpstreamError{Provider: providerName, Status: resp.StatusCode, Body: string(respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}
