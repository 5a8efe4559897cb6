// Package run drives an assistant run to a terminal state by polling.
package run

import (
	"context"
	"time"

	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/pkg/assistant"
)

// Bucket groups run statuses by what the poller does next.
type Bucket int

const (
	InFlight Bucket = iota
	Completed
	RequiresAction
	Failed
)

// Classify maps a status to its bucket. Unknown statuses are in flight.
func Classify(status assistant.RunStatus) Bucket {
	switch status {
	case assistant.RunStatusCompleted:
		return Completed
	case assistant.RunStatusRequiresAction:
		return RequiresAction
	case assistant.RunStatusFailed, assistant.RunStatusCancelled,
		assistant.RunStatusExpired, assistant.RunStatusIncomplete:
		return Failed
	default:
		return InFlight
	}
}

// StatusGetter fetches the current state of a run.
type StatusGetter interface {
	GetRun(ctx context.Context, threadID, runID string) (*assistant.Run, error)
}

// ProgressFunc receives a human-readable status after each in-flight poll.
// A non-nil error stops polling and is returned to the caller.
type ProgressFunc func(ctx context.Context, poll int, message string) error

// Poller polls runs at a constant interval.
type Poller struct {
	client   StatusGetter
	interval time.Duration
}

// NewPoller returns a poller. A non-positive interval defaults to 1s.
func NewPoller(client StatusGetter, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{client: client, interval: interval}
}

// Interval returns the poll interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Wait blocks until the run completes or requires action, returning the run.
// Terminal error statuses return *FailedError and exceeding timeout returns
// *TimeoutError, within one interval of the deadline. Context cancellation
// stops polling.
func (p *Poller) Wait(ctx context.Context, threadID, runID string, timeout time.Duration) (*assistant.Run, error) {
	start := time.Now()
	for poll := 1; ; poll++ {
		r, done, err := p.check(ctx, threadID, runID, start)
		if done || err != nil {
			return r, err
		}
		if err := p.sleep(ctx); err != nil {
			return nil, err
		}
		if elapsed := time.Since(start); elapsed > timeout {
			logx.Error().Str("thread_id", threadID).Str("run_id", runID).Dur("timeout", timeout).
				Int("polls", poll).Msg("run timed out")
			return nil, &TimeoutError{RunID: runID, After: timeout, Polls: poll}
		}
	}
}

// WaitWithProgress is Wait bounded by a poll count instead of wall-clock
// time. progress is called after every in-flight poll.
func (p *Poller) WaitWithProgress(ctx context.Context, threadID, runID string, maxPolls int, progress ProgressFunc) (*assistant.Run, error) {
	if maxPolls <= 0 {
		maxPolls = 60
	}
	start := time.Now()
	for poll := 1; poll <= maxPolls; poll++ {
		r, done, err := p.check(ctx, threadID, runID, start)
		if done || err != nil {
			return r, err
		}
		if progress != nil {
			if err := progress(ctx, poll, ProgressMessage(poll)); err != nil {
				return nil, err
			}
		}
		if poll == maxPolls {
			break
		}
		if err := p.sleep(ctx); err != nil {
			return nil, err
		}
	}
	logx.Error().Str("thread_id", threadID).Str("run_id", runID).Int("max_polls", maxPolls).
		Msg("run exceeded poll ceiling")
	return nil, &TimeoutError{RunID: runID, Polls: maxPolls}
}

// check fetches the run once. done is true for Completed and RequiresAction.
func (p *Poller) check(ctx context.Context, threadID, runID string, start time.Time) (*assistant.Run, bool, error) {
	r, err := p.client.GetRun(ctx, threadID, runID)
	if err != nil {
		return nil, false, err
	}
	elapsed := time.Since(start)
	logx.Debug().Str("thread_id", threadID).Str("run_id", runID).Str("status", string(r.Status)).
		Dur("elapsed", elapsed).Msg("run status")

	switch Classify(r.Status) {
	case Completed, RequiresAction:
		logx.Info().Str("run_id", runID).Str("status", string(r.Status)).Dur("elapsed", elapsed).Msg("run finished")
		return r, true, nil
	case Failed:
		msg := "Run " + string(r.Status)
		if r.LastError != nil && r.LastError.Message != "" {
			msg = r.LastError.Message
		}
		logx.Error().Str("run_id", runID).Str("status", string(r.Status)).Dur("elapsed", elapsed).
			Str("error", msg).Msg("run failed")
		return nil, false, &FailedError{RunID: runID, Status: r.Status, Message: msg}
	}
	return nil, false, nil
}

func (p *Poller) sleep(ctx context.Context) error {
	t := time.NewTimer(p.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var progressMessages = []string{
	"AI is thinking...",
	"Searching documents...",
	"Reviewing relevant sections...",
	"Preparing response...",
}

// ProgressMessage returns the status shown after the given poll.
func ProgressMessage(poll int) string {
	if poll < 1 {
		poll = 1
	}
	return progressMessages[(poll-1)%len(progressMessages)]
}
