package checklist

import (
	"errors"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cast"

	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/internal/normalize"
)

// ErrNoResults is returned when a function call carries no results array.
var ErrNoResults = errors.New("no valid checklist results returned")

const notCovered = "Not covered in the DPR"

// FromPayload reads the results array of a return_checklist_results call.
// Arguments that fail schema validation are still accepted when a results
// array is present; loose statuses are coerced.
func FromPayload(payload map[string]any) ([]Result, error) {
	if err := validateArguments(payload); err != nil {
		logx.Warn().Err(err).Msg("checklist arguments do not match schema, coercing")
	}
	raw, ok := payload["results"].([]any)
	if !ok {
		return nil, ErrNoResults
	}
	return coerce(raw), nil
}

// FromShape extracts results from an assistant message that answered in
// text instead of calling the function.
func FromShape(s normalize.Shape, items []string) []Result {
	if s.Kind == normalize.Unsupported {
		return []Result{{Item: "Format Error", Status: StatusNo, Remarks: "Unexpected response format from analysis service."}}
	}
	return FromText(s.Text, items)
}

// FromText runs the text fallbacks in order: results, checklist_results,
// a bare array, any key containing "checklist", any array of objects with
// an "item" key, the answer text, then numbered or bulleted lines.
func FromText(text string, items []string) []Result {
	v, ok := normalize.ParseJSON(text)
	if !ok {
		return fromLines(text)
	}
	switch val := v.(type) {
	case []any:
		return coerce(val)
	case map[string]any:
		return fromObject(val, items)
	}
	return fromLines(text)
}

func fromObject(obj map[string]any, items []string) []Result {
	for _, k := range []string{"results", "checklist_results"} {
		if arr, ok := obj[k].([]any); ok {
			return coerce(arr)
		}
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if arr, ok := obj[k].([]any); ok && strings.Contains(strings.ToLower(k), "checklist") {
			return coerce(arr)
		}
	}
	for _, k := range keys {
		if arr, ok := obj[k].([]any); ok && hasItemObjects(arr) {
			return coerce(arr)
		}
	}

	if answer, ok := obj["answer"].(string); ok {
		if rs, ok := parseLines(answer); ok {
			return rs
		}
		return fromAnswer(answer, cast.ToBool(obj["needs_consent"]), items)
	}
	if _, ok := obj["citations"]; ok {
		return fromAnswer("", cast.ToBool(obj["needs_consent"]), items)
	}
	if _, ok := obj["needs_consent"]; ok {
		return fromAnswer("", cast.ToBool(obj["needs_consent"]), items)
	}

	logx.Error().Msg("could not extract checklist from response structure")
	return []Result{{Item: "Analysis Error", Status: StatusNo, Remarks: "Could not extract checklist items from response structure."}}
}

func hasItemObjects(arr []any) bool {
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			if _, has := m["item"]; has {
				return true
			}
		}
	}
	return false
}

// fromAnswer converts a free-text answer into per-item results by keyword
// overlap, or a single summary item when no items are known.
func fromAnswer(answer string, needsConsent bool, items []string) []Result {
	if len(items) > 0 {
		out := make([]Result, 0, len(items))
		for _, item := range items {
			if details, ok := itemDetails(answer, item); ok {
				out = append(out, Result{Item: item, Status: StatusYes, Remarks: details})
			} else {
				out = append(out, Result{Item: item, Status: StatusNo, Remarks: notCovered})
			}
		}
		return out
	}
	if needsConsent || answer == "" || strings.Contains(strings.ToLower(answer), "not found") {
		remarks := answer
		if remarks == "" {
			remarks = "No relevant information found in the specified documents."
		}
		return []Result{{Item: "Analysis Summary", Status: StatusNo, Remarks: remarks}}
	}
	remarks := answer
	if utf8.RuneCountInString(answer) > 1000 {
		remarks = truncate(answer, 500)
	}
	return []Result{{Item: "Full Analysis", Status: StatusYes, Remarks: remarks}}
}

var sentenceBreak = regexp.MustCompile(`[.!?]+`)

// itemDetails returns the sentences of text that mention a word of item.
// Words shorter than three characters are ignored.
func itemDetails(text, item string) (string, bool) {
	lower := strings.ToLower(text)
	var found []string
	for _, w := range strings.Fields(strings.ToLower(item)) {
		if utf8.RuneCountInString(w) >= 3 && strings.Contains(lower, w) {
			found = append(found, w)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	var relevant []string
	for _, s := range sentenceBreak.Split(text, -1) {
		sl := strings.ToLower(s)
		for _, w := range found {
			if strings.Contains(sl, w) {
				relevant = append(relevant, strings.TrimSpace(s))
				break
			}
		}
	}
	if len(relevant) == 0 {
		return "", false
	}
	return strings.Join(relevant, ". ") + ".", true
}

var (
	itemLine    = regexp.MustCompile(`^(?:\d+[.)]|[-*])\s*(.+)`)
	statusLine  = regexp.MustCompile(`(?i)^(?:[-*]\s*)?\**status\**\s*[:\-]\s*(.+)`)
	remarksLine = regexp.MustCompile(`(?i)^(?:[-*]\s*)?\**remarks?\**\s*[:\-]\s*(.+)`)
)

// parseLines reads numbered or bulleted items with optional status and
// remarks lines beneath them.
func parseLines(text string) ([]Result, bool) {
	var (
		out     []Result
		current *Result
	)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if current != nil {
			if m := statusLine.FindStringSubmatch(line); m != nil {
				current.Status = ParseStatus(m[1])
				continue
			}
			if m := remarksLine.FindStringSubmatch(line); m != nil {
				current.Remarks = strings.TrimSpace(m[1])
				continue
			}
		}
		if m := itemLine.FindStringSubmatch(line); m != nil {
			if current != nil {
				out = append(out, *current)
			}
			current = &Result{Item: strings.TrimSpace(m[1]), Status: StatusNo, Remarks: "Parsed from text response"}
		}
	}
	if current != nil {
		out = append(out, *current)
	}
	return out, len(out) > 0
}

func fromLines(text string) []Result {
	if rs, ok := parseLines(text); ok {
		return rs
	}
	return []Result{{Item: "Full Analysis", Status: StatusNo, Remarks: truncate(text, 500)}}
}

// coerce converts loosely typed result objects, normalising statuses.
func coerce(arr []any) []Result {
	out := make([]Result, 0, len(arr))
	for _, e := range arr {
		m, ok := e.(map[string]any)
		if !ok {
			if s := cast.ToString(e); s != "" {
				out = append(out, Result{Item: s, Status: StatusNo, Remarks: notCovered})
			}
			continue
		}
		out = append(out, Result{
			Item:    cast.ToString(m["item"]),
			Status:  ParseStatus(cast.ToString(m["status"])),
			Remarks: cast.ToString(m["remarks"]),
		})
	}
	return out
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}
