// Package chat orchestrates conversational turns: it posts user messages to
// the assistant, waits for the run, normalizes the reply and records both
// sides in the thread history.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/user/docchat/internal/documents"
	"github.com/user/docchat/internal/gateway"
	"github.com/user/docchat/internal/normalize"
	"github.com/user/docchat/internal/run"
	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/internal/websearch"
	"github.com/user/docchat/pkg/assistant"
)

// Assistant is the subset of the assistant transport the orchestrator uses.
type Assistant interface {
	CreateThread(ctx context.Context) (string, error)
	PostMessage(ctx context.Context, threadID, text string, fileIDs []string) (string, error)
	CreateRun(ctx context.Context, threadID string, opts assistant.RunOptions) (string, error)
	GetRun(ctx context.Context, threadID, runID string) (*assistant.Run, error)
	LatestAssistantMessage(ctx context.Context, threadID string) (*assistant.Message, error)
}

// Config holds the run ceilings.
type Config struct {
	ChatTimeout      time.Duration
	ChecklistTimeout time.Duration
	StreamMaxPolls   int
	PollInterval     time.Duration
	ContextTurns     int
}

func (c *Config) defaults() {
	if c.ChatTimeout <= 0 {
		c.ChatTimeout = 60 * time.Second
	}
	if c.ChecklistTimeout <= 0 {
		c.ChecklistTimeout = 120 * time.Second
	}
	if c.StreamMaxPolls <= 0 {
		c.StreamMaxPolls = 60
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.ContextTurns <= 0 {
		c.ContextTurns = 3
	}
}

// Service is the caller-facing orchestrator.
type Service struct {
	assistant  Assistant
	poller     *run.Poller
	normalizer *normalize.Normalizer
	web        *websearch.Client
	history    types.HistoryStore
	docs       *documents.Table
	gateway    *gateway.Gateway
	cfg        Config
}

// New creates a Service. gw may be nil, in which case callers are expected
// to serialize turns per thread themselves.
func New(
	client Assistant,
	web *websearch.Client,
	history types.HistoryStore,
	docs *documents.Table,
	gw *gateway.Gateway,
	cfg Config,
) *Service {
	cfg.defaults()
	if docs == nil {
		docs = documents.NewTable(documents.Default)
	}
	if web == nil {
		web = websearch.New(nil, websearch.Config{})
	}
	return &Service{
		assistant:  client,
		poller:     run.NewPoller(client, cfg.PollInterval),
		normalizer: normalize.New(docs),
		web:        web,
		history:    history,
		docs:       docs,
		gateway:    gw,
		cfg:        cfg,
	}
}

// Documents returns the document lookup table.
func (s *Service) Documents() *documents.Table { return s.docs }

// CreateThread opens a new conversation on the assistant side.
func (s *Service) CreateThread(ctx context.Context) (types.ThreadID, error) {
	id, err := s.assistant.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return types.ThreadID(id), nil
}

// History returns up to limit of the thread's most recent turns, oldest first.
func (s *Service) History(ctx context.Context, thread types.ThreadID, limit int) ([]*types.Turn, error) {
	return s.history.Tail(ctx, thread, limit)
}

// serialize runs fn on the thread's lane when a gateway is configured.
func (s *Service) serialize(ctx context.Context, thread types.ThreadID, fn func(ctx context.Context) error) error {
	if s.gateway == nil {
		return fn(ctx)
	}
	return s.gateway.Turn(ctx, thread, fn)
}

// startRun posts text to the thread and starts a run over it.
func (s *Service) startRun(ctx context.Context, thread string, text string, fileIDs []string, opts assistant.RunOptions) (string, error) {
	if _, err := s.assistant.PostMessage(ctx, thread, text, fileIDs); err != nil {
		return "", fmt.Errorf("post message: %w", err)
	}
	runID, err := s.assistant.CreateRun(ctx, thread, opts)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return runID, nil
}
