// Package gateway serializes work per conversation thread while bounding
// overall concurrency.
package gateway

import (
	"context"
	"fmt"

	"github.com/user/docchat/internal/types"
)

// Gateway runs jobs on per-lane queues and waits for their results.
type Gateway struct {
	Queue *Queue

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Gateway with the given concurrency limit for simultaneous
// jobs. The default is 2.
func New(maxConcurrent ...int64) *Gateway {
	var concurrency int64 = 2
	if len(maxConcurrent) > 0 && maxConcurrent[0] > 0 {
		concurrency = maxConcurrent[0]
	}
	return &Gateway{Queue: NewQueue(concurrency)}
}

// Start initialises the gateway's context and starts the internal queue.
func (g *Gateway) Start(ctx context.Context) {
	g.ctx, g.cancel = context.WithCancel(ctx)
	g.Queue.Start(g.ctx)
}

// Stop cancels the gateway context and stops the queue.
func (g *Gateway) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
	g.Queue.Stop()
}

// Do runs fn on lane after every earlier job on that lane and returns its
// error. If ctx ends first Do returns ctx.Err() and the job is skipped or
// cancelled.
func (g *Gateway) Do(ctx context.Context, lane types.LaneKey, fn func(ctx context.Context) error) error {
	job := NewJob(ctx, lane, fn)
	if err := g.Queue.Enqueue(job); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	select {
	case <-job.Done():
		return job.Err
	case <-ctx.Done():
		<-job.Done()
		return ctx.Err()
	}
}

// Turn runs fn serialized with every other turn on thread.
func (g *Gateway) Turn(ctx context.Context, thread types.ThreadID, fn func(ctx context.Context) error) error {
	return g.Do(ctx, types.ThreadLane(thread), fn)
}
