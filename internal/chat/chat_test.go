package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/internal/checklist"
	"github.com/user/docchat/internal/gateway"
	"github.com/user/docchat/internal/history"
	"github.com/user/docchat/internal/retry"
	"github.com/user/docchat/internal/run"
	"github.com/user/docchat/internal/stream"
	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/internal/websearch"
	"github.com/user/docchat/pkg/assistant"
	"github.com/user/docchat/pkg/assistant/assistanttest"
	"github.com/user/docchat/pkg/llm"
	"github.com/user/docchat/pkg/llm/openai"
)

func testConfig() Config {
	return Config{
		ChatTimeout:      time.Second,
		ChecklistTimeout: time.Second,
		StreamMaxPolls:   5,
		PollInterval:     time.Millisecond,
		ContextTurns:     3,
	}
}

func newService(t *testing.T, fake *assistanttest.Server, web *websearch.Client) (*Service, *history.FileStore) {
	t.Helper()
	store := history.NewFileStore(t.TempDir())
	gw := gateway.New(2)
	gw.Start(context.Background())
	t.Cleanup(gw.Stop)
	return New(fake.Client(t), web, store, nil, gw, testConfig()), store
}

type recorder struct {
	mu     sync.Mutex
	events []stream.Event
}

func (r *recorder) Send(_ context.Context, e stream.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds() []stream.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stream.Kind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

func TestProcessTurnWithCitations(t *testing.T) {
	fake := assistanttest.NewServer(t)
	fake.Statuses = []assistant.RunStatus{assistant.RunStatusQueued, assistant.RunStatusInProgress, assistant.RunStatusCompleted}
	fake.SetReply("According to the documents, the road is 42 km long.【4:0†Assam Road Project.pdf】")
	svc, store := newService(t, fake, nil)

	r, err := svc.ProcessTurn(context.Background(), TurnRequest{
		Thread:    "thread_1",
		Text:      "How long is the road?",
		Documents: []string{"Assam Road Project.pdf"},
	})
	require.NoError(t, err)
	assert.False(t, r.NeedsConsent)
	assert.Equal(t, []canonical.Citation{canonical.DocumentCitation("Assam Road Project.pdf")}, r.Citations)
	assert.Equal(t, canonical.SourceDocuments, r.Source)

	posted, _ := fake.Snapshot()
	require.Len(t, posted, 1)
	assert.Equal(t, "How long is the road?", posted[0].Text)
	assert.Equal(t, []string{"file-UHsBDvmRKbojdEED8dzyPy"}, posted[0].FileIDs)

	turns, err := store.Tail(context.Background(), "thread_1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
	assert.Equal(t, canonical.SourceDocuments, turns[1].Source)
}

func TestProcessTurnPrependsSummary(t *testing.T) {
	fake := assistanttest.NewServer(t)
	fake.SetReply("The project details are in section 3 of the report, which covers the scope.")
	svc, store := newService(t, fake, nil)

	_, err := svc.ProcessTurn(context.Background(), TurnRequest{Thread: "t", Text: "And the cost?", PrependSummary: "Web says 10 crore."})
	require.NoError(t, err)

	posted, _ := fake.Snapshot()
	assert.Equal(t, "Web says 10 crore.\n\nUser question: And the cost?", posted[0].Text)

	turns, _ := store.Tail(context.Background(), "t", 0)
	assert.Equal(t, "And the cost?", turns[0].Text, "stored question excludes the summary")
}

func TestProcessTurnNeedsConsentIsTaggedWeb(t *testing.T) {
	fake := assistanttest.NewServer(t)
	fake.SetReply("The documents do not provide any information about the stadium.")
	svc, store := newService(t, fake, nil)

	r, err := svc.ProcessTurn(context.Background(), TurnRequest{Thread: "t", Text: "Stadium?"})
	require.NoError(t, err)
	assert.True(t, r.NeedsConsent)
	assert.Empty(t, r.Citations)
	assert.Equal(t, canonical.DefaultConsentMessage, r.Message)

	turns, _ := store.Tail(context.Background(), "t", 0)
	assert.Equal(t, canonical.SourceWeb, turns[1].Source)
}

func TestProcessTurnRunFailedStoresApology(t *testing.T) {
	fake := assistanttest.NewServer(t)
	fake.Statuses = []assistant.RunStatus{assistant.RunStatusFailed}
	fake.LastError = &assistant.RunError{Code: "server_error", Message: "boom"}
	svc, store := newService(t, fake, nil)

	r, err := svc.ProcessTurn(context.Background(), TurnRequest{Thread: "t", Text: "q"})
	var failed *run.FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "boom", failed.Message)
	assert.Equal(t, FailedAnswer, r.Answer)
	assert.Equal(t, ApologyMessage, r.Message)

	turns, _ := store.Tail(context.Background(), "t", 0)
	require.Len(t, turns, 2)
	assert.Equal(t, FailedAnswer, turns[1].Text)
}

func TestProcessTurnTimeout(t *testing.T) {
	fake := assistanttest.NewServer(t)
	fake.Statuses = []assistant.RunStatus{assistant.RunStatusInProgress}
	svc, _ := newService(t, fake, nil)
	svc.cfg.ChatTimeout = 20 * time.Millisecond

	r, err := svc.ProcessTurn(context.Background(), TurnRequest{Thread: "t", Text: "q"})
	var timeout *run.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, TimeoutAnswer, r.Answer)
}

func TestProcessTurnUpstreamErrorApology(t *testing.T) {
	fake := assistanttest.NewServer(t)
	fake.Fail = http.StatusInternalServerError
	svc, store := newService(t, fake, nil)

	r, err := svc.ProcessTurn(context.Background(), TurnRequest{Thread: "t", Text: "q"})
	require.Error(t, err)
	assert.Equal(t, ApologyAnswer, r.Answer)
	assert.Empty(t, r.Citations)
	assert.False(t, r.NeedsConsent)

	turns, _ := store.Tail(context.Background(), "t", 0)
	require.Len(t, turns, 2)
}

func TestProcessTurnStreamingEvents(t *testing.T) {
	fake := assistanttest.NewServer(t)
	fake.Statuses = []assistant.RunStatus{assistant.RunStatusInProgress, assistant.RunStatusInProgress, assistant.RunStatusCompleted}
	fake.SetReply("The project aims to build a hub.【1:0†Nagaland Innovation Hub.pdf】")
	svc, _ := newService(t, fake, nil)

	rec := &recorder{}
	r, err := svc.ProcessTurnStreaming(context.Background(), TurnRequest{Thread: "t", Text: "q"}, rec)
	require.NoError(t, err)
	assert.False(t, r.Error)
	assert.Equal(t, []stream.Kind{
		stream.KindStatus, stream.KindStatus, stream.KindStatus, stream.KindContent, stream.KindComplete,
	}, rec.kinds())

	last := rec.events[len(rec.events)-1].Data.(stream.CompleteData)
	assert.Equal(t, r.Answer, last.Response)
	assert.Len(t, last.Citations, 1)
}

func TestProcessTurnStreamingCeiling(t *testing.T) {
	fake := assistanttest.NewServer(t)
	fake.Statuses = []assistant.RunStatus{assistant.RunStatusInProgress}
	svc, store := newService(t, fake, nil)

	rec := &recorder{}
	r, err := svc.ProcessTurnStreaming(context.Background(), TurnRequest{Thread: "t", Text: "q"}, rec)
	require.NoError(t, err)
	assert.True(t, r.Error)
	assert.Equal(t, TimeoutAnswer, r.Answer)

	kinds := rec.kinds()
	assert.Equal(t, stream.KindError, kinds[len(kinds)-1])
	statuses := 0
	for _, k := range kinds {
		if k == stream.KindStatus {
			statuses++
		}
	}
	assert.Equal(t, 1+testConfig().StreamMaxPolls, statuses)

	turns, _ := store.Tail(context.Background(), "t", 0)
	require.Len(t, turns, 2)
}

func TestProcessTurnStreamingStopsOnCancel(t *testing.T) {
	fake := assistanttest.NewServer(t)
	fake.Statuses = []assistant.RunStatus{assistant.RunStatusInProgress}
	svc, _ := newService(t, fake, nil)
	svc.cfg.StreamMaxPolls = 1000
	svc.poller = run.NewPoller(fake.Client(t), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	sink := stream.SinkFunc(func(ctx context.Context, e stream.Event) error {
		if e.Kind == stream.KindStatus {
			cancel()
		}
		return ctx.Err()
	})
	_, err := svc.ProcessTurnStreaming(ctx, TurnRequest{Thread: "t", Text: "q"}, sink)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRejectedTurnStoresApology(t *testing.T) {
	fake := assistanttest.NewServer(t)
	svc, store := newService(t, fake, nil)
	svc.gateway.Stop()

	r, err := svc.ProcessTurn(context.Background(), TurnRequest{Thread: "t", Text: "Is it funded?"})
	assert.ErrorIs(t, err, gateway.ErrQueueStopped)
	assert.True(t, r.Error)
	assert.Equal(t, ApologyAnswer, r.Answer)

	rec := &recorder{}
	r, err = svc.ProcessTurnStreaming(context.Background(), TurnRequest{Thread: "t", Text: "And the cost?"}, rec)
	assert.ErrorIs(t, err, gateway.ErrQueueStopped)
	assert.True(t, r.Error)
	assert.Equal(t, []stream.Kind{stream.KindError}, rec.kinds())

	turns, err := store.Tail(context.Background(), "t", 0)
	require.NoError(t, err)
	require.Len(t, turns, 4)
	assert.Equal(t, "Is it funded?", turns[0].Text)
	assert.Equal(t, types.RoleAssistant, turns[1].Role)
	assert.Equal(t, ApologyAnswer, turns[1].Text)
	assert.Equal(t, "And the cost?", turns[2].Text)
	assert.Equal(t, ApologyAnswer, turns[3].Text)

	posted, _ := fake.Snapshot()
	assert.Empty(t, posted, "nothing reaches the assistant")
}

func TestStreamingSinkFailureStoresApology(t *testing.T) {
	fake := assistanttest.NewServer(t)
	svc, store := newService(t, fake, nil)

	broken := errors.New("write: broken pipe")
	sink := stream.SinkFunc(func(context.Context, stream.Event) error { return broken })
	r, err := svc.ProcessTurnStreaming(context.Background(), TurnRequest{Thread: "t", Text: "q"}, sink)
	assert.ErrorIs(t, err, broken)
	assert.True(t, r.Error)

	turns, err := store.Tail(context.Background(), "t", 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, types.RoleUser, turns[0].Role)
	assert.Equal(t, ApologyAnswer, turns[1].Text)
}

func TestAnalyzeChecklistFunctionCall(t *testing.T) {
	fake := assistanttest.NewServer(t)
	fake.Statuses = []assistant.RunStatus{assistant.RunStatusInProgress, assistant.RunStatusRequiresAction}
	fake.RequiredAction = assistanttest.FunctionCall(checklist.FunctionName, map[string]any{
		"results": []map[string]string{
			{"item": "Budget is specified", "status": "Yes", "remarks": "Rs 10 crore"},
			{"item": "Timeline is defined", "status": "Partial", "remarks": "Phases only"},
		},
	})
	svc, _ := newService(t, fake, nil)

	report, err := svc.AnalyzeChecklist(context.Background(), checklist.Request{
		Documents: []string{"Assam Road Project.pdf"},
		Items:     []string{"Budget is specified", "Timeline is defined"},
	})
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, checklist.StatusYes, report.Results[0].Status)
	assert.Equal(t, checklist.StatusPartial, report.Results[1].Status)
	assert.Equal(t, 2, report.TotalItems)

	posted, runs := fake.Snapshot()
	require.Len(t, runs, 1)
	assert.Equal(t, checklist.Instructions, runs[0].Instructions)
	require.Len(t, runs[0].Tools, 2)
	assert.Equal(t, []string{"file-UHsBDvmRKbojdEED8dzyPy"}, posted[0].FileIDs)
	assert.Equal(t, "thread_1", posted[0].Thread, "checklist runs on a fresh thread")
}

func TestAnalyzeChecklistTextFallback(t *testing.T) {
	fake := assistanttest.NewServer(t)
	fake.SetReply("1. Budget is specified - Yes - Rs 10 crore\n2. Timeline is defined - No - missing")
	svc, _ := newService(t, fake, nil)

	report, err := svc.AnalyzeChecklist(context.Background(), checklist.Request{
		Documents: []string{"Assam Road Project.pdf"},
		Items:     []string{"Budget is specified", "Timeline is defined"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, report.Results)
}

func TestAnalyzeChecklistInvalidRequest(t *testing.T) {
	fake := assistanttest.NewServer(t)
	svc, _ := newService(t, fake, nil)

	_, err := svc.AnalyzeChecklist(context.Background(), checklist.Request{})
	assert.ErrorIs(t, err, checklist.ErrInvalidRequest)
	posted, _ := fake.Snapshot()
	assert.Empty(t, posted)
}

func webClient(t *testing.T, handler http.HandlerFunc) *websearch.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	provider, err := openai.New("web_search", &llm.Config{BaseURL: server.URL, APIKey: "k", Model: "sonar-pro"})
	require.NoError(t, err)
	return websearch.New(provider, websearch.Config{ContextTurns: 3, ContextTokens: 1500, Retry: retry.Fixed(1, time.Millisecond)})
}

func TestSearchWebFoldsHistory(t *testing.T) {
	var prompt string
	web := webClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []llm.Message `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		prompt = body.Messages[len(body.Messages)-1].Content
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices":   []map[string]any{{"message": map[string]string{"role": "assistant", "content": "The stadium opened in 2020."}}},
			"citations": []string{"https://news.example.com/stadium"},
		})
	})
	fake := assistanttest.NewServer(t)
	fake.SetReply("The documents do not provide any information about the stadium.")
	svc, store := newService(t, fake, web)

	_, err := svc.ProcessTurn(context.Background(), TurnRequest{Thread: "t", Text: "When did the stadium open?"})
	require.NoError(t, err)

	r := svc.SearchWeb(context.Background(), "t", "When did the stadium open?")
	assert.Equal(t, "The stadium opened in 2020.", r.Answer)
	assert.Equal(t, canonical.SourceWeb, r.Source)
	assert.False(t, r.NeedsConsent)
	require.Len(t, r.Citations, 1)
	assert.True(t, r.Citations[0].IsWeb())
	assert.Contains(t, prompt, "Previous conversation:")
	assert.Contains(t, prompt, "Current question: When did the stadium open?")

	turns, _ := store.Tail(context.Background(), "t", 0)
	require.Len(t, turns, 3)
	assert.Equal(t, canonical.SourceWeb, turns[2].Source)
}

func TestSearchWebFailureIsApology(t *testing.T) {
	web := webClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	svc, store := newService(t, assistanttest.NewServer(t), web)

	r := svc.SearchWeb(context.Background(), "t", "anything")
	assert.Equal(t, websearch.ApologyAnswer, r.Answer)
	assert.True(t, r.Error)

	turns, _ := store.Tail(context.Background(), "t", 0)
	require.Len(t, turns, 1)
}

func TestRecentTurnsPairsExchanges(t *testing.T) {
	svc, store := newService(t, assistanttest.NewServer(t), nil)
	ctx := context.Background()
	for _, turn := range []*types.Turn{
		types.UserTurn("t", "q1"),
		types.AssistantTurn("t", &canonical.Result{Answer: "a1"}),
		types.UserTurn("t", "q2"),
		types.AssistantTurn("t", &canonical.Result{Answer: "a2"}),
		types.UserTurn("t", "q3"),
	} {
		require.NoError(t, store.Append(ctx, turn))
	}
	got := svc.recentTurns(ctx, "t", "q3")
	assert.Equal(t, []websearch.Turn{{Question: "q1", Answer: "a1"}, {Question: "q2", Answer: "a2"}}, got)
}

func TestApologyWording(t *testing.T) {
	assert.Equal(t, TimeoutAnswer, Apology(&run.TimeoutError{RunID: "r"}).Answer)
	assert.Equal(t, FailedAnswer, Apology(&run.FailedError{RunID: "r", Status: "failed"}).Answer)
	r := Apology(assert.AnError)
	assert.Equal(t, ApologyAnswer, r.Answer)
	assert.Equal(t, []canonical.Citation{}, r.Citations)
}
