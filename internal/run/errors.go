package run

import (
	"fmt"
	"time"

	"github.com/user/docchat/pkg/assistant"
)

// FailedError reports a run that reached a terminal error status. It is
// never retried.
type FailedError struct {
	RunID   string
	Status  assistant.RunStatus
	Message string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("assistant run %s: %s", e.Status, e.Message)
}

// TimeoutError reports a run that did not reach a terminal status within the
// wall-clock timeout or the poll ceiling. The remote run is not cancelled.
type TimeoutError struct {
	RunID string
	After time.Duration
	Polls int
}

func (e *TimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("assistant run timed out after %s (%d polls)", e.After, e.Polls)
	}
	return fmt.Sprintf("assistant run timed out after %d polls", e.Polls)
}
