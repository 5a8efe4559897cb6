// Package consent decides whether an answer is trustworthy enough to show
// without offering a web-search fallback.
//
// Classify is a pure function over the answer text and its citations. Rules
// run in a fixed order and later rules override the tier set by earlier ones:
// length, positive phrases, negative phrases, deflection phrases, keyword
// overlap, generic non-answers.
package consent

import (
	"strings"
	"unicode/utf8"

	"github.com/user/docchat/internal/canonical"
)

// Tier is a coarse confidence level.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

const (
	shortAnswer = 100
	longAnswer  = 300
)

// Decision is the classifier output with the signals that produced it.
type Decision struct {
	Tier         Tier
	HasNegative  bool
	HasPositive  bool
	Keywords     []string
	NeedsConsent bool
}

// NeedsConsent is shorthand for Classify(text, citations).NeedsConsent.
func NeedsConsent(text string, citations []canonical.Citation) bool {
	return Classify(text, citations).NeedsConsent
}

// Classify scores text. Any citation means the documents were used, so the
// tier is high and no consent is needed.
func Classify(text string, citations []canonical.Citation) Decision {
	if len(citations) > 0 {
		return Decision{Tier: TierHigh}
	}
	d := analyze(text)
	switch d.Tier {
	case TierHigh:
		d.NeedsConsent = false
	case TierLow:
		d.NeedsConsent = true
	default:
		d.NeedsConsent = d.HasNegative
	}
	return d
}

func analyze(text string) Decision {
	lower := strings.ToLower(text)
	d := Decision{Tier: TierMedium}

	switch n := utf8.RuneCountInString(text); {
	case n < shortAnswer:
		d.Tier = TierLow
	case n > longAnswer:
		d.Tier = TierHigh
	}

	if containsAny(lower, strongPositive) {
		d.HasPositive = true
		d.Tier = TierHigh
	}
	if containsAny(lower, strongNegative) {
		d.HasNegative = true
		d.Tier = TierLow
	}
	if containsAny(lower, deflection) {
		d.HasNegative = true
		d.Tier = TierLow
	}

	d.Keywords = questionKeywords(text)
	if len(d.Keywords) > 0 && !containsAny(lower, d.Keywords) {
		d.Tier = TierLow
	}

	if containsAny(lower, genericNonAnswer) {
		d.HasNegative = true
		d.Tier = TierLow
	}
	return d
}

// questionKeywords returns the keywords implied by case-sensitive markers in
// text.
func questionKeywords(text string) []string {
	var out []string
	for _, kt := range keywordTriggers {
		for _, m := range kt.markers {
			if strings.Contains(text, m) {
				out = append(out, kt.keywords...)
				break
			}
		}
	}
	return out
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
