// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package banking

import (
	"strings"
)

// ============================================================================
// QUERY CLASSIFICATION
// ============================================================================

// DefaultKeywords is the built-in banking vocabulary.
var DefaultKeywords = []string{
	"bank", "loan", "account", "credit", "debit", "interest", "balance",
	"transaction", "transfer", "atm", "mortgage", "savings", "checking",
}

// DefaultRefusal is the reply given to out-of-domain questions.
const DefaultRefusal = "I'm sorry, I can only answer banking-related questions."

// Classifier tests text against a fixed keyword set.
type Classifier struct {
	keywords []string
}

// NewClassifier builds a classifier. Keywords are lower-cased; empty ones are
// dropped since they would match everything.
func NewClassifier(keywords []string) *Classifier {
	c := &Classifier{keywords: make([]string, 0, len(keywords))}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		c.keywords = append(c.keywords, kw)
	}
	return c
}

// IsInDomain reports whether any keyword occurs in text, ignoring case.
// Matching is by substring, so "bank" also matches "banking" and "embankment".
func (c *Classifier) IsInDomain(text string) bool {
	_, ok := c.Match(text)
	return ok
}

// Match returns the first keyword found in text.
func (c *Classifier) Match(text string) (string, bool) {
	if c == nil || text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

// Keywords returns a copy of the keyword set.
func (c *Classifier) Keywords() []string {
	out := make([]string, len(c.keywords))
	copy(out, c.keywords)
	return out
}
