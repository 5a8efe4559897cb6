package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/internal/types"
)

// ErrQueueStopped is returned for jobs that could not run because the queue
// shut down.
var ErrQueueStopped = errors.New("queue stopped")

// Queue manages per-lane FIFOs with a global concurrency semaphore.
// Each lane gets its own channel so that jobs within a lane (one thread)
// run sequentially, while the semaphore limits the total number of
// concurrent jobs across all lanes.
type Queue struct {
	lanes     map[types.LaneKey]chan *Job
	semaphore *semaphore.Weighted
	active    atomic.Int64
	idleAfter time.Duration
	depth     int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewQueue creates a Queue that allows up to maxConcurrent jobs to execute
// simultaneously across all lanes.
func NewQueue(maxConcurrent int64) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Queue{
		lanes:     make(map[types.LaneKey]chan *Job),
		semaphore: semaphore.NewWeighted(maxConcurrent),
		idleAfter: 5 * time.Minute,
		depth:     100,
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context and waits for lane goroutines to exit.
// Jobs still queued are finished with ErrQueueStopped.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	q.mu.Lock()
	defer q.mu.Unlock()
	for key, lane := range q.lanes {
		close(lane)
		for job := range lane {
			job.finish(JobStatusSkipped, ErrQueueStopped)
		}
		delete(q.lanes, key)
	}
}

// Enqueue adds a job to its lane, creating the lane (and its goroutine) on
// first use. Returns an error if the lane's buffer is full.
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx == nil || q.ctx.Err() != nil {
		return ErrQueueStopped
	}
	lane, exists := q.lanes[job.Lane]
	if !exists {
		lane = make(chan *Job, q.depth)
		q.lanes[job.Lane] = lane
		q.wg.Add(1)
		go q.processLane(job.Lane, lane)
	}

	select {
	case lane <- job:
		return nil
	default:
		return fmt.Errorf("queue full for lane %s", job.Lane)
	}
}

// processLane drains a single lane, acquiring a semaphore slot before
// running each job synchronously. A lane with no work for idleAfter
// removes itself.
func (q *Queue) processLane(key types.LaneKey, lane chan *Job) {
	defer q.wg.Done()
	idle := time.NewTimer(q.idleAfter)
	defer idle.Stop()
	for {
		select {
		case job := <-lane:
			q.run(job)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(q.idleAfter)
		case <-idle.C:
			q.mu.Lock()
			if len(lane) == 0 {
				delete(q.lanes, key)
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			idle.Reset(q.idleAfter)
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *Queue) run(job *Job) {
	if err := job.Ctx.Err(); err != nil {
		job.finish(JobStatusSkipped, err)
		return
	}
	if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
		job.finish(JobStatusSkipped, ErrQueueStopped)
		return
	}
	defer q.semaphore.Release(1)

	q.active.Add(1)
	defer q.active.Add(-1)

	ctx, cancel := context.WithCancel(job.Ctx)
	stop := context.AfterFunc(q.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	now := time.Now()
	job.StartedAt = &now
	job.Status = JobStatusRunning
	err := job.Fn(ctx)
	if err != nil {
		logx.Error().Err(err).Str("job_id", string(job.ID)).Str("lane", string(job.Lane)).Msg("job failed")
		job.finish(JobStatusFailed, err)
		return
	}
	job.finish(JobStatusComplete, nil)
}

// Active returns the number of running jobs.
func (q *Queue) Active() int64 { return q.active.Load() }

// WaitIdle blocks until no jobs are actively being processed, or the timeout
// expires. Returns true if idle, false if timed out.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(100 * time.Millisecond):
		}
	}
}
