// Package assistanttest provides an in-process fake of the assistant API for
// tests.
package assistanttest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/docchat/internal/retry"
	"github.com/user/docchat/pkg/assistant"
)

// Posted is a message received by the fake.
type Posted struct {
	Thread  string
	Text    string
	FileIDs []string
}

// Started is a run created on the fake.
type Started struct {
	Thread       string
	Instructions string
	Tools        []assistant.Tool
}

// Server answers thread, message and run requests. Each run reports
// Statuses in order, repeating the last one; the zero value completes
// immediately.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	Statuses       []assistant.RunStatus
	LastError      *assistant.RunError
	RequiredAction *assistant.RequiredAction
	Reply          *assistant.Message
	// Fail makes every request return this HTTP status when non-zero.
	Fail int

	Threads []string
	Posted  []Posted
	Runs    []Started
	polls   int
}

// NewServer starts a fake. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Client returns an assistant client pointed at the fake with a fast retry
// policy.
func (s *Server) Client(t testing.TB) *assistant.Client {
	t.Helper()
	c, err := assistant.New(assistant.Config{
		BaseURL:     s.URL,
		APIKey:      "test-key",
		AssistantID: "asst_test",
		Retry:       retry.Fixed(2, time.Millisecond),
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// SetReply sets the latest assistant message to text.
func (s *Server) SetReply(text string, annotations ...assistant.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Reply = TextMessage(text, annotations...)
}

// Snapshot returns copies of the recorded messages and runs.
func (s *Server) Snapshot() ([]Posted, []Started) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Posted(nil), s.Posted...), append([]Started(nil), s.Runs...)
}

// TextMessage builds an assistant message with a single text block.
func TextMessage(text string, annotations ...assistant.Annotation) *assistant.Message {
	return &assistant.Message{
		ID:   "msg_reply",
		Role: "assistant",
		Content: []assistant.ContentBlock{{
			Type: "text",
			Text: &assistant.TextContent{Value: text, Annotations: annotations},
		}},
	}
}

// FunctionCall builds a required action invoking name with args.
func FunctionCall(name string, args any) *assistant.RequiredAction {
	b, _ := json.Marshal(args)
	return &assistant.RequiredAction{
		Type: "submit_tool_outputs",
		SubmitToolOutputs: &assistant.SubmitToolOutputs{ToolCalls: []assistant.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: assistant.FunctionCall{Name: name, Arguments: string(b)},
		}}},
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != 0 {
		http.Error(w, `{"error":{"message":"fake failure"}}`, s.Fail)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "threads":
		id := fmt.Sprintf("thread_%d", len(s.Threads)+1)
		s.Threads = append(s.Threads, id)
		writeJSON(w, map[string]string{"id": id})

	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "messages":
		var body struct {
			Content     string                 `json:"content"`
			Attachments []assistant.Attachment `json:"attachments"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		p := Posted{Thread: parts[1], Text: body.Content}
		for _, a := range body.Attachments {
			p.FileIDs = append(p.FileIDs, a.FileID)
		}
		s.Posted = append(s.Posted, p)
		writeJSON(w, map[string]string{"id": fmt.Sprintf("msg_%d", len(s.Posted))})

	case r.Method == http.MethodGet && len(parts) == 3 && parts[2] == "messages":
		var data []assistant.Message
		if s.Reply != nil {
			data = append(data, *s.Reply)
		}
		writeJSON(w, map[string]any{"data": data})

	case r.Method == http.MethodPost && len(parts) == 3 && parts[2] == "runs":
		var body struct {
			Instructions string           `json:"instructions"`
			Tools        []assistant.Tool `json:"tools"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.Runs = append(s.Runs, Started{Thread: parts[1], Instructions: body.Instructions, Tools: body.Tools})
		s.polls = 0
		writeJSON(w, assistant.Run{ID: fmt.Sprintf("run_%d", len(s.Runs)), ThreadID: parts[1], Status: assistant.RunStatusQueued})

	case r.Method == http.MethodGet && len(parts) == 4 && parts[2] == "runs":
		status := assistant.RunStatusCompleted
		if n := len(s.Statuses); n > 0 {
			status = s.Statuses[min(s.polls, n-1)]
		}
		s.polls++
		run := assistant.Run{ID: parts[3], ThreadID: parts[1], Status: status}
		switch status {
		case assistant.RunStatusFailed, assistant.RunStatusExpired, assistant.RunStatusCancelled:
			run.LastError = s.LastError
		case assistant.RunStatusRequiresAction:
			run.RequiredAction = s.RequiredAction
		}
		writeJSON(w, run)

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
