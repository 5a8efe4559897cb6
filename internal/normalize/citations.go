package normalize

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/pkg/assistant"
)

const segmentDelimiter = "†"

var (
	// 【4:0†Assam_Road_Project.pdf】
	markerPattern = regexp.MustCompile(`(?i)【[^】]*?†([^】]+?\.(?:pdf|docx?|txt))】`)
	// [Assam Road Project.pdf]
	bracketPattern = regexp.MustCompile(`(?i)\[([^\[\]]+?\.pdf)\]`)
)

func (n *Normalizer) fromAnnotations(set *canonical.CitationSet, anns []assistant.Annotation) {
	for _, a := range anns {
		if a.Type != "file_citation" && a.Type != "file_search" {
			continue
		}
		if id := a.FileID(); id != "" {
			set.AddDocument(n.docs.NameForID(id))
		}
	}
}

func (n *Normalizer) fromText(set *canonical.CitationSet, text string) {
	for _, re := range []*regexp.Regexp{markerPattern, bracketPattern} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			set.AddDocument(n.resolveToken(m[1]))
		}
	}
}

// resolveToken turns a raw citation token into a display name: the segment
// qualifier before the last delimiter is dropped and file ids and normalized
// names map to their display form.
func (n *Normalizer) resolveToken(tok string) string {
	if i := strings.LastIndex(tok, segmentDelimiter); i >= 0 {
		tok = tok[i+len(segmentDelimiter):]
	}
	tok = strings.Trim(strings.TrimSpace(tok), "\"'`【】[] ")
	if tok == "" {
		return ""
	}
	if strings.HasPrefix(tok, "file-") {
		return n.docs.NameForID(tok)
	}
	if name, ok := n.docs.Display(tok); ok {
		return name
	}
	return tok
}

// citationTokens flattens the loosely typed citations field of a structured
// payload.
func citationTokens(v any) []string {
	switch c := v.(type) {
	case nil:
		return nil
	case string:
		return []string{c}
	case []any:
		out := make([]string, 0, len(c))
		for _, item := range c {
			if m, ok := item.(map[string]any); ok {
				for _, k := range []string{"name", "document", "file_id", "title"} {
					if s := cast.ToString(m[k]); s != "" {
						out = append(out, s)
						break
					}
				}
				continue
			}
			if s := cast.ToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return cast.ToStringSlice(v)
	}
}
