package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/internal/normalize"
	"github.com/user/docchat/internal/run"
	"github.com/user/docchat/internal/stream"
	"github.com/user/docchat/internal/types"
	"github.com/user/docchat/pkg/assistant"
)

// TurnRequest is one user message.
type TurnRequest struct {
	Thread types.ThreadID
	Text   string
	// Documents are display names attached with file_search enabled.
	Documents []string
	// PrependSummary is a previous web answer to prefix the question with.
	PrependSummary string
}

func (r TurnRequest) prompt() string {
	if r.PrependSummary == "" {
		return r.Text
	}
	return r.PrependSummary + "\n\nUser question: " + r.Text
}

// ProcessTurn runs one synchronous turn. On failure the stored assistant turn
// and the returned result are an apology, and the error is returned as well.
func (s *Service) ProcessTurn(ctx context.Context, req TurnRequest) (*canonical.Result, error) {
	var (
		result *canonical.Result
		ran    bool
	)
	err := s.serialize(ctx, req.Thread, func(ctx context.Context) error {
		ran = true
		var err error
		result, err = s.processTurn(ctx, req)
		return err
	})
	if !ran {
		return s.rejected(ctx, req, err), err
	}
	if result == nil {
		result = Apology(err)
	}
	return result, err
}

func (s *Service) processTurn(ctx context.Context, req TurnRequest) (*canonical.Result, error) {
	start := time.Now()
	thread := string(req.Thread)
	if err := s.history.Append(ctx, types.UserTurn(req.Thread, req.Text)); err != nil {
		return nil, fmt.Errorf("store user turn: %w", err)
	}

	result, err := func() (*canonical.Result, error) {
		runID, err := s.startRun(ctx, thread, req.prompt(), s.docs.IDsForNames(req.Documents), assistant.RunOptions{})
		if err != nil {
			return nil, err
		}
		r, err := s.poller.Wait(ctx, thread, runID, s.cfg.ChatTimeout)
		if err != nil {
			return nil, err
		}
		return s.resolve(ctx, thread, r)
	}()
	if err != nil {
		logx.Error().Err(err).Str("thread_id", thread).Msg("turn failed")
		result = Apology(err)
	}

	s.storeAssistant(ctx, req.Thread, result)
	logx.Info().Str("thread_id", thread).Bool("needs_consent", result.NeedsConsent).
		Int("citations", len(result.Citations)).Dur("elapsed", time.Since(start)).Msg("turn complete")
	return result, err
}

// ProcessTurnStreaming runs one turn, emitting status events on sink while
// the run is in flight and a complete event at the end. Exceeding the poll
// ceiling is not an error: the returned result carries error=true and an
// error event is sent. Cancelling ctx stops polling.
func (s *Service) ProcessTurnStreaming(ctx context.Context, req TurnRequest, sink stream.Sink) (*canonical.Result, error) {
	if sink == nil {
		sink = stream.Discard
	}
	var (
		result *canonical.Result
		ran    bool
	)
	err := s.serialize(ctx, req.Thread, func(ctx context.Context) error {
		ran = true
		var err error
		result, err = s.processTurnStreaming(ctx, req, sink)
		return err
	})
	if !ran {
		result = s.rejected(ctx, req, err)
		if ctx.Err() == nil {
			_ = sink.Send(ctx, stream.Error(result.Answer))
		}
		return result, err
	}
	if result == nil {
		result = Apology(err)
	}
	return result, err
}

func (s *Service) processTurnStreaming(ctx context.Context, req TurnRequest, sink stream.Sink) (*canonical.Result, error) {
	thread := string(req.Thread)
	if err := s.history.Append(ctx, types.UserTurn(req.Thread, req.Text)); err != nil {
		return nil, fmt.Errorf("store user turn: %w", err)
	}
	if err := sink.Send(ctx, stream.Status("Processing your message...")); err != nil {
		return s.streamFailure(ctx, req.Thread, sink, err)
	}

	runID, err := s.startRun(ctx, thread, req.prompt(), s.docs.IDsForNames(req.Documents), assistant.RunOptions{})
	if err != nil {
		return s.streamFailure(ctx, req.Thread, sink, err)
	}
	progress := func(ctx context.Context, _ int, message string) error {
		return sink.Send(ctx, stream.Status(message))
	}
	r, err := s.poller.WaitWithProgress(ctx, thread, runID, s.cfg.StreamMaxPolls, progress)
	var timeout *run.TimeoutError
	if errors.As(err, &timeout) {
		result := Apology(err)
		s.storeAssistant(ctx, req.Thread, result)
		if sendErr := sink.Send(ctx, stream.Error(result.Answer)); sendErr != nil {
			return result, sendErr
		}
		return result, nil
	}
	if err != nil {
		return s.streamFailure(ctx, req.Thread, sink, err)
	}
	result, err := s.resolve(ctx, thread, r)
	if err != nil {
		return s.streamFailure(ctx, req.Thread, sink, err)
	}

	s.storeAssistant(ctx, req.Thread, result)
	if err := sink.Send(ctx, stream.Content(result.Answer)); err != nil {
		return result, err
	}
	return result, sink.Send(ctx, stream.Complete(result))
}

// streamFailure records the apology and reports err on the stream. A
// cancelled context means the peer went away, so nothing is sent.
func (s *Service) streamFailure(ctx context.Context, thread types.ThreadID, sink stream.Sink, err error) (*canonical.Result, error) {
	logx.Error().Err(err).Str("thread_id", string(thread)).Msg("streaming turn failed")
	result := Apology(err)
	s.storeAssistant(ctx, thread, result)
	if ctx.Err() == nil {
		_ = sink.Send(ctx, stream.Error(result.Answer))
	}
	return result, err
}

// rejected records a turn that never reached the assistant because the
// thread's lane refused or skipped it: the user message and an apology are
// both stored so the conversation stays continuous.
func (s *Service) rejected(ctx context.Context, req TurnRequest, err error) *canonical.Result {
	logx.Warn().Err(err).Str("thread_id", string(req.Thread)).Msg("turn not scheduled")
	if appendErr := s.history.Append(context.WithoutCancel(ctx), types.UserTurn(req.Thread, req.Text)); appendErr != nil {
		logx.Error().Err(appendErr).Str("thread_id", string(req.Thread)).Msg("store user turn")
	}
	result := Apology(err)
	s.storeAssistant(ctx, req.Thread, result)
	return result
}

// resolve turns a finished run into a canonical result.
func (s *Service) resolve(ctx context.Context, thread string, r *assistant.Run) (*canonical.Result, error) {
	if r.Status == assistant.RunStatusRequiresAction {
		if shape, ok := normalize.FromRun(r, ""); ok {
			return s.normalizer.Normalize(shape), nil
		}
	}
	msg, err := s.assistant.LatestAssistantMessage(ctx, thread)
	if err != nil {
		return nil, fmt.Errorf("fetch reply: %w", err)
	}
	if msg == nil {
		return nil, fmt.Errorf("run %s finished without an assistant message", r.ID)
	}
	return s.normalizer.Message(msg), nil
}

// storeAssistant records result even when ctx has been cancelled.
func (s *Service) storeAssistant(ctx context.Context, thread types.ThreadID, result *canonical.Result) {
	ctx = context.WithoutCancel(ctx)
	if err := s.history.Append(ctx, types.AssistantTurn(thread, result)); err != nil {
		logx.Error().Err(err).Str("thread_id", string(thread)).Msg("store assistant turn")
	}
}
