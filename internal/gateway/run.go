package gateway

import (
	"context"
	"time"

	"github.com/user/docchat/internal/types"
)

// JobStatus represents the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusFailed   JobStatus = "failed"
	JobStatusSkipped  JobStatus = "skipped"
)

// Job is one unit of work on a lane, typically a conversational turn.
type Job struct {
	ID        types.RequestID
	Lane      types.LaneKey
	Ctx       context.Context
	Fn        func(ctx context.Context) error
	Status    JobStatus
	CreatedAt time.Time
	StartedAt *time.Time
	EndedAt   *time.Time
	Err       error

	done chan struct{}
}

// NewJob creates a queued job. ctx is the caller's context: if it ends
// while the job is queued the job is skipped, and it is passed to fn.
func NewJob(ctx context.Context, lane types.LaneKey, fn func(ctx context.Context) error) *Job {
	return &Job{
		ID:        types.NewRequestID(),
		Lane:      lane,
		Ctx:       ctx,
		Fn:        fn,
		Status:    JobStatusQueued,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Done is closed once the job has finished or been skipped.
func (j *Job) Done() <-chan struct{} { return j.done }

func (j *Job) finish(status JobStatus, err error) {
	now := time.Now()
	j.EndedAt = &now
	j.Status = status
	j.Err = err
	close(j.done)
}
