// Package checklist asks the assistant to grade a list of statements
// against attached documents and parses the graded results.
package checklist

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/user/docchat/internal/documents"
)

const (
	MaxItems      = 15
	MaxItemLength = 200
)

// DefaultItems is used when a request names no items.
var DefaultItems = []string{
	"Rationale for the project and its intended beneficiaries",
	"Socio-economic benefit of the project",
	"Alignment of the proposed project with the focus areas indicated under the scheme guidelines",
	"KPIs for monitoring the project",
	"SDG or other indices that the KPIs will impact and how",
	"EXACT population of the State mentioned in dpr",
	"Total Project Cost for the Project",
	"Convergence plan – indications how the proposed project converges with the other ongoing interventions of government in the space",
	"Prioritized list of projects",
}

// Status grades one item.
type Status string

const (
	StatusYes     Status = "Yes"
	StatusNo      Status = "No"
	StatusPartial Status = "Partial"
)

// ParseStatus maps loose status text to a Status. Anything unrecognised
// becomes StatusNo.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'*.`)) {
	case "yes", "covered", "fully covered":
		return StatusYes
	case "partial", "partially", "partially covered":
		return StatusPartial
	default:
		return StatusNo
	}
}

// Result is the grade for one item.
type Result struct {
	Item    string `json:"item"`
	Status  Status `json:"status"`
	Remarks string `json:"remarks"`
}

// Request is a checklist analysis request.
type Request struct {
	Documents []string `json:"document_names"`
	Items     []string `json:"checklist_items"`
}

// ErrInvalidRequest wraps every validation failure.
var ErrInvalidRequest = errors.New("invalid checklist request")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Validate checks req against the known documents and fills in default
// items. The returned request is safe to analyze.
func Validate(req Request, docs *documents.Table) (Request, error) {
	if len(req.Documents) == 0 {
		return req, invalid("at least one document must be selected")
	}
	var unknown []string
	for _, d := range req.Documents {
		if !docs.Known(d) {
			unknown = append(unknown, d)
		}
	}
	if len(unknown) > 0 {
		return req, invalid("invalid document names: %s", strings.Join(unknown, ", "))
	}

	if len(req.Items) == 0 {
		req.Items = append([]string(nil), DefaultItems...)
	}
	if len(req.Items) > MaxItems {
		return req, invalid("maximum %d checklist items allowed", MaxItems)
	}
	for i, item := range req.Items {
		if strings.TrimSpace(item) == "" {
			return req, invalid("checklist item %d must be a non-empty string", i+1)
		}
		if utf8.RuneCountInString(item) > MaxItemLength {
			return req, invalid("checklist item %d is too long (maximum %d characters)", i+1, MaxItemLength)
		}
	}
	return req, nil
}
