package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/user/docchat/internal/checklist"
	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/internal/normalize"
	"github.com/user/docchat/pkg/assistant"
)

// ChecklistReport is the outcome of a checklist analysis.
type ChecklistReport struct {
	Results    []checklist.Result `json:"checklist_results"`
	Documents  []string           `json:"analyzed_documents"`
	TotalItems int                `json:"total_items"`
	AnalyzedAt time.Time          `json:"analysis_timestamp"`
}

// AnalyzeChecklist classifies each checklist item against the named
// documents on a fresh thread. Invalid requests return an error wrapping
// checklist.ErrInvalidRequest.
func (s *Service) AnalyzeChecklist(ctx context.Context, req checklist.Request) (*ChecklistReport, error) {
	req, err := checklist.Validate(req, s.docs)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	logx.Info().Strs("documents", req.Documents).Int("items", len(req.Items)).Msg("checklist analysis started")

	thread, err := s.assistant.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	opts := assistant.RunOptions{Instructions: checklist.Instructions, Tools: checklist.Tools()}
	runID, err := s.startRun(ctx, thread, checklist.BuildPrompt(req.Documents, req.Items), s.docs.IDsForNames(req.Documents), opts)
	if err != nil {
		return nil, err
	}
	r, err := s.poller.Wait(ctx, thread, runID, s.cfg.ChecklistTimeout)
	if err != nil {
		return nil, err
	}

	var results []checklist.Result
	if r.Status == assistant.RunStatusRequiresAction {
		shape, ok := normalize.FromRun(r, checklist.FunctionName)
		if !ok {
			return nil, checklist.ErrNoResults
		}
		if results, err = checklist.FromPayload(shape.Payload); err != nil {
			return nil, err
		}
	} else {
		msg, err := s.assistant.LatestAssistantMessage(ctx, thread)
		if err != nil {
			return nil, fmt.Errorf("fetch reply: %w", err)
		}
		if msg == nil {
			return nil, checklist.ErrNoResults
		}
		results = checklist.FromShape(normalize.FromMessage(msg), req.Items)
	}

	logx.Info().Str("thread_id", thread).Int("results", len(results)).Dur("elapsed", time.Since(start)).
		Msg("checklist analysis complete")
	return &ChecklistReport{
		Results:    results,
		Documents:  req.Documents,
		TotalItems: len(req.Items),
		AnalyzedAt: time.Now().UTC(),
	}, nil
}
