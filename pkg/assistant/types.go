package assistant

import "encoding/json"

// RunStatus is the provider-reported lifecycle state of a run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// Run is one assistant processing pass over a thread.
type Run struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	Status         RunStatus       `json:"status"`
	LastError      *RunError       `json:"last_error,omitempty"`
	RequiredAction *RequiredAction `json:"required_action,omitempty"`
}

// RunError is the provider's explanation for a failed run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RequiredAction carries the function calls the run is waiting on.
type RequiredAction struct {
	Type              string             `json:"type"`
	SubmitToolOutputs *SubmitToolOutputs `json:"submit_tool_outputs,omitempty"`
}

// SubmitToolOutputs lists pending tool calls.
type SubmitToolOutputs struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}

// ToolCall is a function invocation requested by the assistant.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall holds the function name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Tool is a capability enabled for a run.
type Tool struct {
	Type     string    `json:"type"`
	Function *Function `json:"function,omitempty"`
}

// Function describes a callable function including its parameters schema.
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// FileSearchTool enables retrieval over attached files.
var FileSearchTool = Tool{Type: "file_search"}

// RunOptions customises a run. Zero value runs the assistant as configured.
type RunOptions struct {
	Instructions string
	Tools        []Tool
}

// Message is a thread message as returned by list-messages.
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	CreatedAt int64          `json:"created_at"`
	RunID     string         `json:"run_id,omitempty"`
	Content   []ContentBlock `json:"content"`
}

// ContentBlock is one typed piece of message content. Only "text" blocks
// carry Text.
type ContentBlock struct {
	Type string       `json:"type"`
	Text *TextContent `json:"text,omitempty"`
}

// TextContent is the text value of a content block with its annotations.
type TextContent struct {
	Value       string       `json:"value"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// Annotation marks a span of text as backed by a file.
type Annotation struct {
	Type         string   `json:"type"`
	Text         string   `json:"text,omitempty"`
	FileCitation *FileRef `json:"file_citation,omitempty"`
	FileSearch   *FileRef `json:"file_search,omitempty"`
	FilePath     *FileRef `json:"file_path,omitempty"`
}

// FileRef points at a provider file.
type FileRef struct {
	FileID string `json:"file_id"`
}

// FileID returns the referenced file id regardless of annotation encoding.
func (a Annotation) FileID() string {
	switch {
	case a.FileCitation != nil:
		return a.FileCitation.FileID
	case a.FileSearch != nil:
		return a.FileSearch.FileID
	case a.FilePath != nil:
		return a.FilePath.FileID
	}
	return ""
}

// Attachment binds a file to a posted message for file search.
type Attachment struct {
	FileID string `json:"file_id"`
	Tools  []Tool `json:"tools"`
}

type threadResponse struct {
	ID string `json:"id"`
}

type messageRequest struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type runRequest struct {
	AssistantID  string `json:"assistant_id"`
	Instructions string `json:"instructions,omitempty"`
	Tools        []Tool `json:"tools,omitempty"`
}

type messageList struct {
	Data []Message `json:"data"`
}
