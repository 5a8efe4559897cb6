// internal/types/models.go
package types

import (
	"time"

	"github.com/user/docchat/internal/canonical"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one stored message in a thread's history. Assistant turns carry
// the canonical result they were built from.
type Turn struct {
	ID       TurnID            `json:"id"`
	ThreadID ThreadID          `json:"thread_id"`
	Seq      int64             `json:"seq"`
	Role     Role              `json:"role"`
	Text     string            `json:"text"`
	Source   canonical.Source  `json:"source,omitempty"`
	Result   *canonical.Result `json:"result,omitempty"`
	At       time.Time         `json:"at"`
}

// UserTurn builds a user turn.
func UserTurn(thread ThreadID, text string) *Turn {
	return &Turn{ID: NewTurnID(), ThreadID: thread, Role: RoleUser, Text: text, At: time.Now().UTC()}
}

// AssistantTurn builds an assistant turn from a canonical result.
func AssistantTurn(thread ThreadID, r *canonical.Result) *Turn {
	return &Turn{
		ID:       NewTurnID(),
		ThreadID: thread,
		Role:     RoleAssistant,
		Text:     r.Answer,
		Source:   r.Source,
		Result:   r,
		At:       time.Now().UTC(),
	}
}
