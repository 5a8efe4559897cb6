package chat

import (
	"context"
	"strings"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/internal/websearch"
)

// SearchWeb answers query from the web once the user has approved it, with
// the thread's recent exchanges as context. It never fails: provider errors
// produce the apology result. The answer is stored with source web.
func (s *Service) SearchWeb(ctx context.Context, thread types.ThreadID, query string) *canonical.Result {
	var result *canonical.Result
	err := s.serialize(ctx, thread, func(ctx context.Context) error {
		result = s.web.Search(ctx, query, s.recentTurns(ctx, thread, query))
		result.Source = canonical.SourceWeb
		s.storeAssistant(ctx, thread, result)
		return nil
	})
	if result == nil {
		logx.Error().Err(err).Str("thread_id", string(thread)).Msg("web search not run")
		result = websearch.Apology()
	}
	return result
}

// recentTurns pairs stored user turns with the assistant turn that followed.
// A trailing unanswered question equal to query is dropped.
func (s *Service) recentTurns(ctx context.Context, thread types.ThreadID, query string) []websearch.Turn {
	if s.history == nil {
		return nil
	}
	tail, err := s.history.Tail(ctx, thread, 2*s.cfg.ContextTurns+1)
	if err != nil {
		logx.Warn().Err(err).Str("thread_id", string(thread)).Msg("load history for web context")
		return nil
	}
	var turns []websearch.Turn
	for i := 0; i < len(tail); i++ {
		if tail[i].Role != types.RoleUser {
			continue
		}
		t := websearch.Turn{Question: tail[i].Text}
		if i+1 < len(tail) && tail[i+1].Role == types.RoleAssistant {
			t.Answer = tail[i+1].Text
			i++
		} else if strings.TrimSpace(t.Question) == strings.TrimSpace(query) {
			continue
		}
		turns = append(turns, t)
	}
	return turns
}
