// Package stream delivers turn progress to clients as tagged events.
package stream

import (
	"context"

	"github.com/user/docchat/internal/canonical"
)

// Kind tags an event.
type Kind string

const (
	KindStatus   Kind = "status"
	KindContent  Kind = "content"
	KindComplete Kind = "complete"
	KindError    Kind = "error"
)

// Event is one progress notification with a small JSON payload.
type Event struct {
	Kind Kind
	Data any
}

// Sink receives events for one turn. Send returns an error once the peer is
// gone, which stops the turn.
type Sink interface {
	Send(ctx context.Context, event Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event) error

func (f SinkFunc) Send(ctx context.Context, event Event) error { return f(ctx, event) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })

type statusData struct {
	Message string `json:"message"`
}

type contentData struct {
	Content string `json:"content"`
}

// CompleteData is the payload of a complete event.
type CompleteData struct {
	Response     string               `json:"response"`
	Citations    []canonical.Citation `json:"citations"`
	NeedsConsent bool                 `json:"needs_consent"`
	Message      string               `json:"message,omitempty"`
	Source       canonical.Source     `json:"source,omitempty"`
	Error        bool                 `json:"error,omitempty"`
}

// Status builds a human-readable progress event.
func Status(message string) Event {
	return Event{Kind: KindStatus, Data: statusData{Message: message}}
}

// Content builds an answer content event.
func Content(text string) Event {
	return Event{Kind: KindContent, Data: contentData{Content: text}}
}

// Complete builds the final event for r.
func Complete(r *canonical.Result) Event {
	return Event{Kind: KindComplete, Data: CompleteData{
		Response:     r.Answer,
		Citations:    r.Citations,
		NeedsConsent: r.NeedsConsent,
		Message:      r.Message,
		Source:       r.Source,
		Error:        r.Error,
	}}
}

// Error builds an error event.
func Error(message string) Event {
	return Event{Kind: KindError, Data: statusData{Message: message}}
}
