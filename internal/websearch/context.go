package websearch

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Turn is one prior exchange folded into the search prompt.
type Turn struct {
	Question string
	Answer   string
}

// Tokenizer counts tokens for the context budget.
type Tokenizer interface {
	Count(text string) int
}

type tiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

func (t tiktokenCounter) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// NewTiktoken returns a tokenizer for model, falling back to cl100k_base for
// unknown models.
func NewTiktoken(model string) (Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return tiktokenCounter{enc: enc}, nil
}

// RuneTokenizer approximates one token per four characters.
type RuneTokenizer struct{}

func (RuneTokenizer) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

var (
	citationMarker = regexp.MustCompile(`【[^】]*】`)
	bracketedFile  = regexp.MustCompile(`(?i)\[[^\[\]]*?\.pdf\]`)
	extraSpace     = regexp.MustCompile(`[ \t]{2,}`)
)

// stripCitations removes inline document citation markers from an answer.
func stripCitations(s string) string {
	s = citationMarker.ReplaceAllString(s, "")
	s = bracketedFile.ReplaceAllString(s, "")
	s = extraSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FoldContext prefixes query with up to maxTurns recent turns, newest kept
// first when the token budget runs out. Citation markers are stripped from
// prior answers. With no usable turns the query is returned unchanged.
func FoldContext(query string, recent []Turn, maxTurns, budget int, tok Tokenizer) string {
	if maxTurns <= 0 || len(recent) == 0 {
		return query
	}
	if tok == nil {
		tok = RuneTokenizer{}
	}
	if len(recent) > maxTurns {
		recent = recent[len(recent)-maxTurns:]
	}

	var blocks []string
	used := 0
	for i := len(recent) - 1; i >= 0; i-- {
		t := recent[i]
		q := strings.TrimSpace(t.Question)
		a := stripCitations(t.Answer)
		if q == "" && a == "" {
			continue
		}
		var b strings.Builder
		if q != "" {
			b.WriteString("User: " + q + "\n")
		}
		if a != "" {
			b.WriteString("Assistant: " + a + "\n")
		}
		block := b.String()
		n := tok.Count(block)
		if budget > 0 && used+n > budget {
			break
		}
		used += n
		blocks = append(blocks, block)
	}
	if len(blocks) == 0 {
		return query
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for i := len(blocks) - 1; i >= 0; i-- {
		b.WriteString(blocks[i])
	}
	b.WriteString("\nCurrent question: ")
	b.WriteString(query)
	return b.String()
}
