// Package usecases - classify.go decides whether a message concerns mental health.
package usecases

import "strings"

// DefaultKeywords are the affect and mental-health stems that route a message
// to retrieval. Matching is by substring, so "tir" also matches "tired" and
// "satire"; false positives are accepted.
var DefaultKeywords = []string{
	"anxi", "depress", "stress", "sad", "happy", "angry",
	"fear", "panic", "trauma", "mental", "symptom", "emotion",
	"exhaust", "overwhelm", "nerv", "tir", "worth",
}

// Classifier flags messages that mention any configured keyword.
type Classifier struct {
	keywords []string
}

// NewClassifier creates a Classifier. An empty list selects DefaultKeywords.
func NewClassifier(keywords []string) *Classifier {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		normalized = append(normalized, kw)
	}
	return &Classifier{keywords: normalized}
}

// Classify reports whether message contains any keyword, ignoring case.
func (c *Classifier) Classify(message string) bool {
	return c.Match(message) != ""
}

// Match returns the first keyword found in message, or "" when none match.
func (c *Classifier) Match(message string) string {
	lower := strings.ToLower(message)
	for _, kw := range c.keywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// Keywords returns a copy of the configured keywords.
func (c *Classifier) Keywords() []string {
	out := make([]string, len(c.keywords))
	copy(out, c.keywords)
	return out
}
