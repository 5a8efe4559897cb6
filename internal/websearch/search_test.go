package websearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/internal/retry"
	"github.com/user/docchat/pkg/llm"
	"github.com/user/docchat/pkg/llm/openai"
)

func fastConfig() Config {
	return Config{ContextTurns: 3, ContextTokens: 1500, MaxCitations: 5, Retry: retry.Fixed(3, time.Millisecond)}
}

func searchServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	provider, err := openai.New("web_search", &llm.Config{
		BaseURL: server.URL, APIKey: "pplx-key", Model: "sonar-pro", MaxTokens: 1000, Temperature: 0.2,
	})
	require.NoError(t, err)
	return New(provider, fastConfig())
}

func TestSearchHTTP500ReturnsApology(t *testing.T) {
	var calls atomic.Int32
	c := searchServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	r := c.Search(context.Background(), "What is the budget?", nil)
	assert.Equal(t, ApologyAnswer, r.Answer)
	assert.True(t, r.Error)
	assert.False(t, r.NeedsConsent)
	assert.Empty(t, r.Citations)
	assert.Equal(t, canonical.SourceWeb, r.Source)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearchWithoutProviderReturnsApology(t *testing.T) {
	r := New(nil, fastConfig()).Search(context.Background(), "q", nil)
	assert.Equal(t, ApologyAnswer, r.Answer)
	assert.True(t, r.Error)
}

func TestSearchMalformedBodyReturnsApology(t *testing.T) {
	c := searchServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})
	r := c.Search(context.Background(), "q", nil)
	assert.True(t, r.Error)
}

func TestSearchSuccess(t *testing.T) {
	var prompt string
	c := searchServer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []llm.Message `json:"messages"`
		}
		json.Unmarshal(body, &req)
		prompt = req.Messages[0].Content
		json.NewEncoder(w).Encode(map[string]any{
			"choices":   []map[string]any{{"message": map[string]any{"role": "assistant", "content": "It opened in 2021."}}},
			"citations": []string{"https://www.news.example/a", "https://gov.example/b"},
		})
	})

	recent := []Turn{{Question: "Where is the hub?", Answer: "In Kohima 【4:0†Nagaland_Innovation_Hub.pdf】."}}
	r := c.Search(context.Background(), "When did it open?", recent)

	assert.False(t, r.Error)
	assert.False(t, r.NeedsConsent)
	assert.Equal(t, "It opened in 2021.", r.Answer)
	assert.Equal(t, []canonical.Citation{
		canonical.WebCitation("news.example", "https://www.news.example/a", ""),
		canonical.WebCitation("gov.example", "https://gov.example/b", ""),
	}, r.Citations)
	assert.Contains(t, prompt, "Previous conversation:\nUser: Where is the hub?\nAssistant: In Kohima .")
	assert.True(t, strings.HasSuffix(prompt, "Current question: When did it open?"))
	assert.NotContains(t, prompt, "†")
}

func TestExtractCitationsPreference(t *testing.T) {
	resp := &llm.Response{
		Content:   "see https://inline.example/x.",
		Citations: []string{"https://bare.example"},
		SearchResults: []llm.SearchResult{
			{Title: "Result", URL: "https://result.example", Snippet: "<p>Hello <b>world</b></p>"},
			{URL: "https://www.untitled.example/p"},
		},
	}
	got := extractCitations(resp, 5)
	require.Len(t, got, 2)
	assert.Equal(t, "Result", got[0].Title)
	assert.Equal(t, "Hello **world**", got[0].Snippet)
	assert.Equal(t, "untitled.example", got[1].Title)

	resp.SearchResults = nil
	got = extractCitations(resp, 5)
	assert.Equal(t, []canonical.Citation{canonical.WebCitation("bare.example", "https://bare.example", "")}, got)

	resp.Citations = nil
	got = extractCitations(resp, 5)
	assert.Equal(t, []canonical.Citation{canonical.WebCitation("inline.example", "https://inline.example/x", "")}, got)
}

func TestExtractCitationsCapAndDedup(t *testing.T) {
	resp := &llm.Response{Citations: []string{
		"https://a.io", "https://b.io", "https://a.io", "https://c.io", "https://d.io", "https://e.io", "https://f.io",
	}}
	got := extractCitations(resp, 5)
	require.Len(t, got, 5)
	assert.Equal(t, "https://a.io", got[0].URL)
	assert.Equal(t, "https://e.io", got[4].URL)
}

func TestDomainTitle(t *testing.T) {
	assert.Equal(t, "example.com", domainTitle("https://www.example.com/path?q=1"))
	assert.Equal(t, defaultTitle, domainTitle("not a url"))
}
