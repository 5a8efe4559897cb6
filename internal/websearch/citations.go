package websearch

import (
	"net/url"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/docchat/internal/canonical"
	"github.com/user/docchat/internal/logx"
	"github.com/user/docchat/pkg/llm"
)

const defaultTitle = "Web Source"

var bareURL = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)

// extractCitations prefers structured search results, then bare citation
// URLs, then URLs found in the answer. Only the first non-empty source is
// used.
func extractCitations(resp *llm.Response, max int) []canonical.Citation {
	set := canonical.NewCitationSet()
	for _, r := range resp.SearchResults {
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = domainTitle(r.URL)
		}
		set.Add(canonical.WebCitation(title, r.URL, snippetText(r.Snippet)))
	}
	if set.Len() == 0 {
		for _, u := range resp.Citations {
			set.Add(canonical.WebCitation(domainTitle(u), u, ""))
		}
	}
	if set.Len() == 0 {
		for _, u := range bareURL.FindAllString(resp.Content, -1) {
			u = strings.TrimRight(u, ".,;:!?")
			set.Add(canonical.WebCitation(domainTitle(u), u, ""))
		}
	}
	return set.Limit(max)
}

// domainTitle derives a display title from a URL's host.
func domainTitle(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return defaultTitle
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// snippetText converts HTML snippets to markdown and leaves plain text alone.
func snippetText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "<") {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		logx.Debug().Err(err).Msg("snippet conversion failed")
		return s
	}
	return strings.TrimSpace(md)
}
