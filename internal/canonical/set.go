package canonical

// CitationSet is an insertion-ordered set of citations.
type CitationSet struct {
	items []Citation
	seen  map[string]struct{}
}

// NewCitationSet returns a set seeded with cs.
func NewCitationSet(cs ...Citation) *CitationSet {
	s := &CitationSet{seen: make(map[string]struct{})}
	for _, c := range cs {
		s.Add(c)
	}
	return s
}

// Add inserts c unless an equal citation is present. It reports whether c
// was added. Empty citations are ignored.
func (s *CitationSet) Add(c Citation) bool {
	if c.Document == "" && c.URL == "" {
		return false
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	k := c.Key()
	if _, ok := s.seen[k]; ok {
		return false
	}
	s.seen[k] = struct{}{}
	s.items = append(s.items, c)
	return true
}

// AddDocument inserts a document citation by name.
func (s *CitationSet) AddDocument(name string) bool {
	return s.Add(DocumentCitation(name))
}

// Len returns the number of citations.
func (s *CitationSet) Len() int { return len(s.items) }

// Items returns the citations in first-seen order.
func (s *CitationSet) Items() []Citation {
	out := make([]Citation, len(s.items))
	copy(out, s.items)
	return out
}

// Limit returns at most n citations in first-seen order.
func (s *CitationSet) Limit(n int) []Citation {
	items := s.Items()
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}
