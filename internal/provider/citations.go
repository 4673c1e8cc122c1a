package provider

import (
	"strings"

	"github.com/everstacklabs/brandscope/internal/answer"
)

// CitationSet collects the citations of one provider response. A URL (or
// bare domain) is kept once; later duplicates only fill a missing title.
type CitationSet struct {
	list  []Citation
	index map[string]int
}

// NewCitationSet returns an empty set.
func NewCitationSet() *CitationSet {
	return &CitationSet{index: make(map[string]int)}
}

// Add inserts c unless it carries neither a URL nor a domain.
func (s *CitationSet) Add(c Citation) {
	key := strings.ToLower(c.URL)
	if key == "" {
		key = c.Domain
	}
	if key == "" {
		return
	}
	if i, ok := s.index[key]; ok {
		if s.list[i].Title == "" {
			s.list[i].Title = c.Title
		}
		return
	}
	s.index[key] = len(s.list)
	s.list = append(s.list, c)
}

// List returns the citations in insertion order.
func (s *CitationSet) List() []Citation {
	if s.list == nil {
		return []Citation{}
	}
	return s.list
}

// SourcesFromAnswer reads the "sources" array of a structured answer. Entries
// may be objects or bare URL strings; malformed entries are skipped.
func SourcesFromAnswer(a answer.Answer) []Citation {
	raw, ok := a.Slice("sources")
	if !ok {
		return nil
	}
	out := make([]Citation, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			if c := NewCitation(v, "", "", "", ""); c.Domain != "" {
				out = append(out, c)
			}
		case map[string]any:
			str := func(k string) string {
				s, _ := v[k].(string)
				return s
			}
			st := str("sourceType")
			if st == "" {
				st = str("source_type")
			}
			c := NewCitation(str("url"), str("title"), str("domain"), st, str("competitorName"))
			if c.Domain != "" {
				out = append(out, c)
			}
		}
	}
	return out
}
