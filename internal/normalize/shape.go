package normalize

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/user/docchat/pkg/assistant"
)

// Kind is the resolved shape of an assistant response.
type Kind int

const (
	PlainText Kind = iota
	JSONText
	FunctionCall
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case PlainText:
		return "plain_text"
	case JSONText:
		return "json_text"
	case FunctionCall:
		return "function_call"
	default:
		return "unsupported"
	}
}

// Shape is an assistant response resolved once into a tagged variant.
type Shape struct {
	Kind Kind
	// Text is the first text block, the answer for PlainText.
	Text string
	// Texts holds every text block for citation scanning.
	Texts       []string
	Annotations []assistant.Annotation
	// Payload is the structured object for JSONText and FunctionCall.
	Payload map[string]any
	// Function names the called function for FunctionCall.
	Function    string
	ContentType string
}

// HasResults reports whether the payload carries a batch "results" array.
func (s Shape) HasResults() bool {
	_, ok := s.Payload["results"].([]any)
	return ok
}

var recognizedFields = []string{"answer", "citations", "needs_consent", "results"}

// FromMessage resolves a thread message. The first content block decides the
// kind; annotations and text are gathered from every text block.
func FromMessage(msg *assistant.Message) Shape {
	if msg == nil || len(msg.Content) == 0 {
		return Shape{Kind: Unsupported, ContentType: "empty"}
	}
	first := msg.Content[0]
	if first.Type != "text" || first.Text == nil {
		return Shape{Kind: Unsupported, ContentType: first.Type}
	}

	s := Shape{Kind: PlainText, Text: first.Text.Value}
	for _, block := range msg.Content {
		if block.Type != "text" || block.Text == nil {
			continue
		}
		s.Texts = append(s.Texts, block.Text.Value)
		s.Annotations = append(s.Annotations, block.Text.Annotations...)
	}
	if payload, ok := ParseStructured(s.Text); ok {
		s.Kind = JSONText
		s.Payload = payload
	}
	return s
}

// FromRun resolves a requires_action run into a FunctionCall shape. An empty
// function name matches the first call. It reports false when the run has no
// usable function call.
func FromRun(run *assistant.Run, function string) (Shape, bool) {
	if run == nil || run.RequiredAction == nil || run.RequiredAction.SubmitToolOutputs == nil {
		return Shape{}, false
	}
	for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
		if function != "" && call.Function.Name != function {
			continue
		}
		payload, ok := parseObject(call.Function.Arguments)
		if !ok {
			continue
		}
		return Shape{Kind: FunctionCall, Payload: payload, Function: call.Function.Name}, true
	}
	return Shape{}, false
}

// ParseStructured parses text as a JSON object holding at least one
// recognized field. Code fences are stripped and near-JSON is repaired.
// Failure is the normal path for plain-text answers.
func ParseStructured(text string) (map[string]any, bool) {
	obj, ok := parseObject(text)
	if !ok {
		return nil, false
	}
	for _, f := range recognizedFields {
		if _, has := obj[f]; has {
			return obj, true
		}
	}
	return nil, false
}

func parseObject(text string) (map[string]any, bool) {
	v, ok := ParseJSON(text)
	if !ok {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// ParseJSON decodes text holding a JSON object or array, tolerating code
// fences and repairable syntax errors.
func ParseJSON(text string) (any, bool) {
	s := stripFences(strings.TrimSpace(text))
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v, true
	}
	repaired, err := jsonrepair.JSONRepair(s)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return nil, false
	}
	return v, true
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
