package normalize

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/internal/documents"
	"github.com/user/docchat/pkg/assistant"
)

const assamID = "file-UHsBDvmRKbojdEED8dzyPy"

func textMessage(value string, anns ...assistant.Annotation) *assistant.Message {
	return &assistant.Message{
		Role: "assistant",
		Content: []assistant.ContentBlock{{
			Type: "text",
			Text: &assistant.TextContent{Value: value, Annotations: anns},
		}},
	}
}

func docs(names ...string) []canonical.Citation {
	out := make([]canonical.Citation, len(names))
	for i, n := range names {
		out[i] = canonical.DocumentCitation(n)
	}
	return out
}

func newNormalizer() *Normalizer {
	return New(documents.NewTable(documents.Default))
}

func TestUnsupportedContent(t *testing.T) {
	msg := &assistant.Message{Content: []assistant.ContentBlock{{Type: "image_file"}}}
	r := newNormalizer().Message(msg)
	assert.Equal(t, UnsupportedAnswer, r.Answer)
	assert.Empty(t, r.Citations)
	assert.False(t, r.NeedsConsent)
}

func TestPlainTextWithAnnotationAndMarker(t *testing.T) {
	text := strings.Repeat("The road is 40km long. ", 5) + "【4:0†Assam_Road_Project.pdf】"
	msg := textMessage(text, assistant.Annotation{
		Type:         "file_citation",
		Text:         "【4:0†source】",
		FileCitation: &assistant.FileRef{FileID: assamID},
	})
	r := newNormalizer().Message(msg)
	assert.Equal(t, text, r.Answer)
	// Both passes resolve to the same display name.
	assert.Equal(t, docs("Assam Road Project.pdf"), r.Citations)
	assert.False(t, r.NeedsConsent)
}

func TestCitationOrderIsFirstSeen(t *testing.T) {
	text := "See [Coffee Development Nagaland.pdf] and 【1:2†Nagaland_Innovation_Hub.pdf】 and [Assam Road Project.pdf]"
	msg := textMessage(text, assistant.Annotation{Type: "file_search", FileSearch: &assistant.FileRef{FileID: assamID}})
	r := newNormalizer().Message(msg)
	assert.Equal(t, docs("Assam Road Project.pdf", "Nagaland Innovation Hub.pdf", "Coffee Development Nagaland.pdf"), r.Citations)
}

func TestSegmentQualifiedTokensAreStripped(t *testing.T) {
	text := "The hub covers 2 acres 【8:2†Nagaland_Innovation_Hub.pdf】 as per 【8:3†Custom Report.pdf】"
	msg := textMessage(text, assistant.Annotation{Type: "file_citation", FileCitation: &assistant.FileRef{FileID: "file-unknown999999"}})
	r := newNormalizer().Message(msg)
	assert.Equal(t, docs("Document_999999.pdf", "Nagaland Innovation Hub.pdf", "Custom Report.pdf"), r.Citations)
	for _, c := range r.Citations {
		assert.NotContains(t, c.Document, "†")
	}
}

func TestKnownUnderscoreNamesUseDisplayForm(t *testing.T) {
	const hubID = "file-9WYEvRbNZC2BDRcBvD94sG"
	msg := textMessage("Two acres 【8:2†Nagaland_Innovation_Hub.pdf】", assistant.Annotation{Type: "file_citation", FileCitation: &assistant.FileRef{FileID: hubID}})
	r := newNormalizer().Message(msg)
	assert.Equal(t, docs("Nagaland Innovation Hub.pdf"), r.Citations)

	// Unknown names keep their literal form.
	r = newNormalizer().Message(textMessage("See 【1:0†Field_Notes.pdf】"))
	assert.Equal(t, docs("Field_Notes.pdf"), r.Citations)
}

func TestStructuredCitationsAreIgnored(t *testing.T) {
	payload := `{"answer":"Roads and helipads.","citations":["Mizoram Development of Helipads.pdf","4:0†Assam Road Project.pdf"]}`
	msg := textMessage(payload, assistant.Annotation{Type: "file_citation", FileCitation: &assistant.FileRef{FileID: assamID}})
	r := newNormalizer().Message(msg)
	assert.Equal(t, "Roads and helipads.", r.Answer)
	assert.Equal(t, docs("Assam Road Project.pdf"), r.Citations)

	r = newNormalizer().Message(textMessage(`{"answer":"Short answer.","citations":["Mizoram Development of Helipads.pdf"]}`))
	assert.Empty(t, r.Citations)
	assert.True(t, r.NeedsConsent, "unsupported structured citations must not mark the answer as trusted")
	assert.Equal(t, canonical.SourceWeb, r.Source)
}

func TestExplicitNeedsConsentIsAuthoritative(t *testing.T) {
	long := strings.Repeat("According to the documents the project includes a bridge. ", 8)
	payload, _ := json.Marshal(map[string]any{"answer": long, "needs_consent": true})
	r := newNormalizer().Message(textMessage(string(payload)))
	assert.True(t, r.NeedsConsent)
	assert.Equal(t, canonical.DefaultConsentMessage, r.Message)

	payload, _ = json.Marshal(map[string]any{"answer": "no", "needs_consent": false})
	r = newNormalizer().Message(textMessage(string(payload)))
	assert.False(t, r.NeedsConsent, "short answer would otherwise be classified low")
}

func TestExplicitConsentDropsCitations(t *testing.T) {
	payload := `{"answer":"Not sure.","citations":["Assam Road Project.pdf"],"needs_consent":"true","message":"Search the web?"}`
	r := newNormalizer().Message(textMessage(payload))
	assert.True(t, r.NeedsConsent)
	assert.Empty(t, r.Citations)
	assert.Equal(t, "Search the web?", r.Message)
}

func TestClassifierUsedWhenConsentAbsent(t *testing.T) {
	r := newNormalizer().Message(textMessage("This was not found in the documents."))
	assert.True(t, r.NeedsConsent)
	assert.Empty(t, r.Citations)
	assert.Equal(t, canonical.DefaultConsentMessage, r.Message)
	assert.Equal(t, canonical.SourceWeb, r.Source)
}

func TestCitationsForceNoConsent(t *testing.T) {
	r := newNormalizer().Message(textMessage("Not found in the documents, but see [Assam Road Project.pdf]"))
	assert.False(t, r.NeedsConsent)
	assert.Equal(t, docs("Assam Road Project.pdf"), r.Citations)
}

func TestFencedAndMalformedJSON(t *testing.T) {
	fenced := "```json\n{\"answer\": \"Fenced answer\", \"needs_consent\": false}\n```"
	r := newNormalizer().Message(textMessage(fenced))
	assert.Equal(t, "Fenced answer", r.Answer)

	broken := `{"answer": "Broken answer", "needs_consent": false`
	r = newNormalizer().Message(textMessage(broken))
	assert.Equal(t, "Broken answer", r.Answer)
	assert.False(t, r.NeedsConsent)
}

func TestUnrecognizedJSONIsPlainText(t *testing.T) {
	s := FromMessage(textMessage(`{"foo": 1}`))
	assert.Equal(t, PlainText, s.Kind)
}

func TestIdempotent(t *testing.T) {
	msg := textMessage("Budget is [Assam Road Project.pdf] 【1:1†Coffee_Development_Nagaland.pdf】",
		assistant.Annotation{Type: "file_citation", FileCitation: &assistant.FileRef{FileID: "file-zzz123456"}})
	n := newNormalizer()
	a, err := json.Marshal(n.Message(msg))
	require.NoError(t, err)
	b, err := json.Marshal(n.Message(msg))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestFromRunFunctionCall(t *testing.T) {
	run := &assistant.Run{
		Status: assistant.RunStatusRequiresAction,
		RequiredAction: &assistant.RequiredAction{
			Type: "submit_tool_outputs",
			SubmitToolOutputs: &assistant.SubmitToolOutputs{ToolCalls: []assistant.ToolCall{
				{ID: "c0", Type: "function", Function: assistant.FunctionCall{Name: "other", Arguments: `{}`}},
				{ID: "c1", Type: "function", Function: assistant.FunctionCall{
					Name:      "return_checklist_results",
					Arguments: `{"results":[{"item":"Budget","status":"Yes","remarks":"ok"}]}`,
				}},
			}},
		},
	}
	s, ok := FromRun(run, "return_checklist_results")
	require.True(t, ok)
	assert.Equal(t, FunctionCall, s.Kind)
	assert.True(t, s.HasResults())

	_, ok = FromRun(&assistant.Run{Status: assistant.RunStatusCompleted}, "")
	assert.False(t, ok)
}

func TestFunctionCallAnswerNormalizes(t *testing.T) {
	s := Shape{Kind: FunctionCall, Payload: map[string]any{
		"answer":    "Helipads at 12 sites.",
		"citations": []any{map[string]any{"file_id": "file-2zox9ddsxAu8aHFpaPLdcz"}},
	}}
	r := newNormalizer().Normalize(s)
	assert.Equal(t, "Helipads at 12 sites.", r.Answer)
	assert.Empty(t, r.Citations)
	assert.True(t, r.NeedsConsent)
}
