// Package normalize reduces raw assistant output to a canonical.Result.
package normalize

import (
	"github.com/spf13/cast"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/internal/consent"
	"github.com/user/docchat/internal/documents"
	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/pkg/assistant"
)

// UnsupportedAnswer is returned for non-text assistant content.
const UnsupportedAnswer = "Unsupported content type"

// Normalizer converts resolved shapes into canonical results.
type Normalizer struct {
	docs *documents.Table
}

// New returns a normalizer that maps file ids through docs.
func New(docs *documents.Table) *Normalizer {
	if docs == nil {
		docs = documents.NewTable(documents.Default)
	}
	return &Normalizer{docs: docs}
}

// Message normalizes a thread message.
func (n *Normalizer) Message(msg *assistant.Message) *canonical.Result {
	return n.Normalize(FromMessage(msg))
}

// Normalize builds the canonical result for s.
//
// Citations come only from annotations and the raw text; a citations list
// inside a structured payload is ignored. An explicit
// needs_consent in the payload is authoritative, otherwise the consent
// classifier decides from the answer and the final citations.
func (n *Normalizer) Normalize(s Shape) *canonical.Result {
	if s.Kind == Unsupported {
		logx.Info().Str("content_type", s.ContentType).Msg("unsupported assistant content")
		return (&canonical.Result{Answer: UnsupportedAnswer}).Finalize()
	}

	answer := s.Text
	set := canonical.NewCitationSet()
	n.fromAnnotations(set, s.Annotations)
	for _, t := range s.Texts {
		n.fromText(set, t)
	}

	var (
		explicit     bool
		needsConsent bool
		message      string
	)
	if s.Payload != nil {
		if v, ok := s.Payload["answer"]; ok {
			answer = cast.ToString(v)
		}
		if toks := citationTokens(s.Payload["citations"]); len(toks) > 0 {
			logx.Debug().Strs("tokens", toks).Msg("ignoring structured citations")
		}
		if v, ok := s.Payload["needs_consent"]; ok {
			if b, err := cast.ToBoolE(v); err == nil {
				explicit, needsConsent = true, b
			}
		}
		message = cast.ToString(s.Payload["message"])
		if message == "" {
			message = cast.ToString(s.Payload["consent_message"])
		}
	}

	citations := set.Items()
	if !explicit {
		d := consent.Classify(answer, citations)
		needsConsent = d.NeedsConsent
		logx.Debug().Str("tier", string(d.Tier)).Bool("has_negative", d.HasNegative).
			Bool("has_positive", d.HasPositive).Msg("consent classified")
	}

	if !needsConsent {
		message = ""
	}
	r := (&canonical.Result{
		Answer:       answer,
		Citations:    citations,
		NeedsConsent: needsConsent,
		Message:      message,
	}).Finalize()
	logx.Debug().Str("kind", s.Kind.String()).Int("citations", len(r.Citations)).
		Bool("needs_consent", r.NeedsConsent).Bool("explicit", explicit).
		Str("answer", logx.Truncate(r.Answer, 500)).Msg("normalized assistant response")
	return r
}
