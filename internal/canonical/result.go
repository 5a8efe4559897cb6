// Package canonical defines the normalized answer record every upstream path
// (assistant run, function-call payload, web fallback) is reduced to.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Source tags where an answer came from.
type Source string

const (
	SourceDocuments Source = "dpr"
	SourceWeb       Source = "web"
)

// DefaultConsentMessage is offered to the user when an answer needs consent
// and the assistant supplied no message of its own.
const DefaultConsentMessage = "Result not found, do you wish to search the internet?"

// Result is the canonical answer record.
//
// NeedsConsent implies Citations is empty; call Finalize before handing a
// Result to callers.
type Result struct {
	Answer       string     `json:"answer"`
	Citations    []Citation `json:"citations"`
	NeedsConsent bool       `json:"needs_consent"`
	Message      string     `json:"message,omitempty"`
	Source       Source     `json:"source,omitempty"`
	Error        bool       `json:"error,omitempty"`
}

// Finalize enforces the record invariants: a consent request carries no
// citations and has a message, and Citations is never nil.
func (r *Result) Finalize() *Result {
	if r.NeedsConsent {
		r.Citations = nil
		if r.Message == "" {
			r.Message = DefaultConsentMessage
		}
	}
	if r.Citations == nil {
		r.Citations = []Citation{}
	}
	if r.Source == "" {
		r.Source = SourceDocuments
		if r.NeedsConsent {
			r.Source = SourceWeb
		}
	}
	return r
}

// Citation is either a document display name or a web source. Documents
// encode as a JSON string, web sources as {title,url,snippet}.
type Citation struct {
	Document string
	Title    string
	URL      string
	Snippet  string
}

// DocumentCitation returns a citation naming a document.
func DocumentCitation(name string) Citation {
	return Citation{Document: name}
}

// WebCitation returns a citation pointing at a web page.
func WebCitation(title, url, snippet string) Citation {
	return Citation{Title: title, URL: url, Snippet: snippet}
}

// IsWeb reports whether c is a web source.
func (c Citation) IsWeb() bool { return c.Document == "" && c.URL != "" }

// Key identifies the citation for de-duplication.
func (c Citation) Key() string {
	if c.IsWeb() {
		return "url:" + c.URL
	}
	return "doc:" + c.Document
}

// String returns the display form.
func (c Citation) String() string {
	if c.IsWeb() {
		if c.Title != "" {
			return c.Title + " (" + c.URL + ")"
		}
		return c.URL
	}
	return c.Document
}

type webCitation struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func (c Citation) MarshalJSON() ([]byte, error) {
	if c.IsWeb() {
		return json.Marshal(webCitation{Title: c.Title, URL: c.URL, Snippet: c.Snippet})
	}
	return json.Marshal(c.Document)
}

func (c *Citation) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty citation")
	}
	if data[0] == '"' {
		*c = Citation{}
		return json.Unmarshal(data, &c.Document)
	}
	var w webCitation
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding citation: %w", err)
	}
	*c = WebCitation(w.Title, w.URL, w.Snippet)
	return nil
}
