package models

import "strings"

// TokenSet is a deduplicated set of candidate issue tokens that preserves
// first-insertion order, so downstream resolution is order-stable with
// respect to how tokens were discovered.
type TokenSet struct {
	seen  map[string]bool
	order []string
}

// NewTokenSet creates a TokenSet seeded with the given tokens.
func NewTokenSet(tokens ...string) *TokenSet {
	s := &TokenSet{seen: make(map[string]bool)}
	s.Add(tokens...)
	return s
}

// Add inserts tokens, normalizing each to upper case. Duplicates collapse.
func (s *TokenSet) Add(tokens ...string) {
	for _, t := range tokens {
		t = strings.ToUpper(t)
		if t == "" || s.Contains(t) {
			continue
		}
		s.seen[t] = true
		s.order = append(s.order, t)
	}
}

// AddAll inserts every token from other.
func (s *TokenSet) AddAll(other *TokenSet) {
	if other != nil {
		s.Add(other.order...)
	}
}

// Contains reports membership of the upper-cased token.
func (s *TokenSet) Contains(token string) bool {
	return s.seen[strings.ToUpper(token)]
}

// Len returns the number of distinct tokens.
func (s *TokenSet) Len() int { return len(s.order) }

// Tokens returns the tokens in first-insertion order. The returned slice
// is a copy.
func (s *TokenSet) Tokens() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
