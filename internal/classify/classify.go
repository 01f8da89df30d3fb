/*
Package classify implements the relevance filter and the category classifier.

Both use case-sensitive substring membership over the same text blob, built
from the announcement's descriptive fields. Matching runs through an
Aho-Corasick automaton so every keyword is checked in a single pass.
*/
package classify

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/shanehull/grantwatch/internal/keywords"
	"github.com/shanehull/grantwatch/internal/types"
)

// Matcher reports which of a fixed set of terms occur in a text.
type Matcher struct {
	terms   []string
	matcher *ahocorasick.Matcher
}

func NewMatcher(terms []string) *Matcher {
	m := &Matcher{}
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		m.terms = append(m.terms, t)
	}
	if len(m.terms) > 0 {
		m.matcher = ahocorasick.NewStringMatcher(m.terms)
	}
	return m
}

func (m *Matcher) Contains(text string) bool {
	if m == nil || m.matcher == nil {
		return false
	}
	return m.matcher.Contains([]byte(text))
}

// Matches returns the matched terms in dictionary order.
func (m *Matcher) Matches(text string) []string {
	if m == nil || m.matcher == nil {
		return nil
	}
	hits := m.matcher.MatchThreadSafe([]byte(text))
	if len(hits) == 0 {
		return nil
	}
	found := make([]bool, len(m.terms))
	for _, h := range hits {
		if h >= 0 && h < len(found) {
			found[h] = true
		}
	}
	out := make([]string, 0, len(hits))
	for i, ok := range found {
		if ok {
			out = append(out, m.terms[i])
		}
	}
	return out
}

// Blob concatenates the fields that take part in matching.
func Blob(a types.Announcement) string {
	return strings.Join([]string{
		a.Title,
		a.Description,
		a.Organization,
		a.Agency,
		a.Hashtags,
		a.ApplicationPeriod,
		a.Link,
	}, " ")
}

// Filter is the coarse first-pass relevance test of one source.
type Filter struct {
	keywords *Matcher
}

func NewFilter(kws []string) *Filter {
	return &Filter{keywords: NewMatcher(kws)}
}

func (f *Filter) Relevant(a types.Announcement) bool {
	return f.keywords.Contains(Blob(a))
}

// Classifier assigns at most one category, first match in priority order.
type Classifier struct {
	sets map[types.Category]*Matcher
}

func NewClassifier(t *keywords.Taxonomy) *Classifier {
	c := &Classifier{sets: make(map[types.Category]*Matcher, len(types.Categories))}
	for _, cat := range types.Categories {
		c.sets[cat] = NewMatcher(t.Terms(cat))
	}
	return c
}

func (c *Classifier) Classify(a types.Announcement) types.Category {
	text := Blob(a)
	for _, cat := range types.Categories {
		if c.sets[cat].Contains(text) {
			return cat
		}
	}
	return types.CategoryNone
}

// Explain lists the matched terms of every category, for diagnostics.
func (c *Classifier) Explain(a types.Announcement) map[types.Category][]string {
	text := Blob(a)
	out := make(map[types.Category][]string)
	for _, cat := range types.Categories {
		if hits := c.sets[cat].Matches(text); len(hits) > 0 {
			out[cat] = hits
		}
	}
	return out
}
