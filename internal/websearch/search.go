// Package websearch answers questions from the open web through a
// search-augmented chat provider. It never returns an error: every failure
// degrades to a fixed apology result.
package websearch

import (
	"context"
	"errors"
	"strings"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/internal/retry"
	"github.com/user/docchat/pkg/llm"
)

// ApologyAnswer is returned when the search provider cannot be used.
const ApologyAnswer = "Sorry, I couldn't search the internet right now. Please try again later."

var errEmptyAnswer = errors.New("empty answer from search provider")

// Config tunes context folding and result size.
type Config struct {
	ContextTurns  int
	ContextTokens int
	MaxCitations  int
	Retry         *retry.Policy
}

// Client runs web searches.
type Client struct {
	provider  llm.Provider
	cfg       Config
	tokenizer Tokenizer
}

// Option configures a Client.
type Option func(*Client)

// WithTokenizer overrides the context budget tokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(c *Client) { c.tokenizer = t }
}

// New returns a client. A nil provider (missing credentials) is allowed and
// makes every search return the apology result.
func New(provider llm.Provider, cfg Config, opts ...Option) *Client {
	if cfg.MaxCitations <= 0 {
		cfg.MaxCitations = 5
	}
	if cfg.Retry == nil {
		cfg.Retry = retry.DefaultPolicy()
	}
	c := &Client{provider: provider, cfg: cfg, tokenizer: RuneTokenizer{}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Apology returns the failure result.
func Apology() *canonical.Result {
	return (&canonical.Result{
		Answer: ApologyAnswer,
		Source: canonical.SourceWeb,
		Error:  true,
	}).Finalize()
}

// Search queries the provider with recent turns folded into the prompt.
func (c *Client) Search(ctx context.Context, query string, recent []Turn) *canonical.Result {
	if c.provider == nil {
		logx.Error().Msg("web search provider not configured")
		return Apology()
	}

	prompt := FoldContext(query, recent, c.cfg.ContextTurns, c.cfg.ContextTokens, c.tokenizer)
	logx.Info().Int("recent_turns", len(recent)).Str("query", logx.Truncate(query, 500)).Msg("web search")

	resp, err := retry.Do(ctx, c.cfg.Retry, "web_search", func(ctx context.Context) (*llm.Response, error) {
		resp, err := c.provider.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}})
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(resp.Content) == "" {
			return nil, errEmptyAnswer
		}
		return resp, nil
	})
	if err != nil {
		logx.Error().Err(err).Msg("web search failed")
		return Apology()
	}

	r := (&canonical.Result{
		Answer:    resp.Content,
		Citations: extractCitations(resp, c.cfg.MaxCitations),
		Source:    canonical.SourceWeb,
	}).Finalize()
	logx.Info().Int("citations", len(r.Citations)).Int("total_tokens", resp.Usage.TotalTokens).Msg("web search complete")
	return r
}
