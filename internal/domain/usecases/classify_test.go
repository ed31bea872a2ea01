package usecases

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_MatchesEveryKeyword(t *testing.T) {
	c := NewClassifier(nil)
	for _, kw := range DefaultKeywords {
		assert.True(t, c.Classify("lately I have been "+kw+" a lot"), kw)
		assert.True(t, c.Classify(strings.ToUpper(kw)), kw)
	}
}

func TestClassifier_CaseInsensitive(t *testing.T) {
	c := NewClassifier(nil)
	assert.Equal(t, c.Classify("I feel ANXIOUS"), c.Classify("i feel anxious"))
	assert.True(t, c.Classify("I feel ANXIOUS"))
}

func TestClassifier_NoKeyword(t *testing.T) {
	c := NewClassifier(nil)
	for _, msg := range []string{
		"What's your favorite color?",
		"How do I bake bread?",
		"",
	} {
		assert.False(t, c.Classify(msg), msg)
	}
}

func TestClassifier_SubstringFalsePositive(t *testing.T) {
	c := NewClassifier(nil)
	assert.Equal(t, "tir", c.Match("I am retiring next year"))
}

func TestClassifier_CustomKeywords(t *testing.T) {
	c := NewClassifier([]string{"  Lonely ", "", "GRIEF"})

	assert.Equal(t, []string{"lonely", "grief"}, c.Keywords())
	assert.True(t, c.Classify("so much grief"))
	assert.False(t, c.Classify("I feel anxious"))
}
