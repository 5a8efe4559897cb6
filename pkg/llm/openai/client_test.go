package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/docchat/internal/errx"
	"github.com/user/docchat/pkg/llm"
)

func newClient(t *testing.T, config *llm.Config) *Client {
	t.Helper()
	c, err := New("web_search", config)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSearchClient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Error("missing or invalid auth header")
		}

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "test response"}},
			},
			"citations": []string{"https://www.example.com/a"},
			"search_results": []map[string]any{
				{"title": "Example", "url": "https://www.example.com/a", "snippet": "<b>hi</b>"},
			},
			"usage": map[string]any{
				"prompt_tokens":     10,
				"completion_tokens": 5,
				"total_tokens":      15,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := newClient(t, &llm.Config{BaseURL: server.URL, APIKey: "test-key", Model: "sonar-pro"})
	resp, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hello"}})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "test response" {
		t.Errorf("expected 'test response', got %s", resp.Content)
	}
	if len(resp.Citations) != 1 || resp.Citations[0] != "https://www.example.com/a" {
		t.Errorf("unexpected citations %v", resp.Citations)
	}
	if len(resp.SearchResults) != 1 || resp.SearchResults[0].Title != "Example" {
		t.Errorf("unexpected search results %v", resp.SearchResults)
	}
	if resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 5 || resp.Usage.TotalTokens != 15 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
}

func TestClientRequestFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// base_url carries no path; client appends /chat/completions
		if r.URL.Path != "/chat/completions" {
			t.Errorf("expected path '/chat/completions', got %q", r.URL.Path)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type 'application/json', got %q", r.Header.Get("Content-Type"))
		}

		body, _ := io.ReadAll(r.Body)
		var reqBody map[string]any
		json.Unmarshal(body, &reqBody)

		if reqBody["model"] != "sonar-pro" {
			t.Errorf("expected model 'sonar-pro', got %v", reqBody["model"])
		}
		if reqBody["max_tokens"] != float64(1000) {
			t.Errorf("expected max_tokens 1000, got %v", reqBody["max_tokens"])
		}
		if temp, _ := reqBody["temperature"].(float64); temp < 0.19 || temp > 0.21 {
			t.Errorf("expected temperature 0.2, got %v", reqBody["temperature"])
		}
		messages, ok := reqBody["messages"].([]any)
		if !ok || len(messages) != 1 {
			t.Errorf("expected 1 message, got %v", reqBody["messages"])
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": "ok"}}},
		})
	}))
	defer server.Close()

	client := newClient(t, &llm.Config{
		BaseURL:     server.URL + "/",
		APIKey:      "key",
		Model:       "sonar-pro",
		MaxTokens:   1000,
		Temperature: 0.2,
	})
	if _, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "test"}}); err != nil {
		t.Fatal(err)
	}
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer server.Close()

	client := newClient(t, &llm.Config{BaseURL: server.URL, APIKey: "bad-key", Model: "sonar-pro"})
	_, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hello"}})
	var upErr *errx.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upErr.Status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", upErr.Status)
	}
}

func TestClientNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := newClient(t, &llm.Config{BaseURL: server.URL, APIKey: "k", Model: "sonar-pro"})
	if _, err := client.Complete(context.Background(), nil); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New("web_search", &llm.Config{Model: "sonar-pro"})
	if !errors.Is(err, errx.ErrProviderMisconfigured) {
		t.Errorf("expected ErrProviderMisconfigured, got %v", err)
	}
}

func TestClientProviderInterface(t *testing.T) {
	// Verify Client satisfies the llm.Provider interface at compile time.
	var _ llm.Provider = (*Client)(nil)
}
