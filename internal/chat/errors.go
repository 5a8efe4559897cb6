package chat

import (
	"errors"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/internal/run"
)

const (
	ApologyAnswer  = "I'm sorry, I encountered an error processing your request."
	TimeoutAnswer  = "I'm sorry, the assistant is taking too long to respond."
	FailedAnswer   = "I'm sorry, processing your request failed."
	ApologyMessage = "Please try again later."
)

// Apology builds the assistant result stored in place of a failed turn. Run
// timeouts and run failures get distinct wording.
func Apology(err error) *canonical.Result {
	answer := ApologyAnswer
	var timeout *run.TimeoutError
	var failed *run.FailedError
	switch {
	case errors.As(err, &timeout):
		answer = TimeoutAnswer
	case errors.As(err, &failed):
		answer = FailedAnswer
	}
	return (&canonical.Result{
		Answer:  answer,
		Message: ApologyMessage,
		Source:  canonical.SourceDocuments,
		Error:   true,
	}).Finalize()
}
