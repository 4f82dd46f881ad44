// Package safety screens questions for prompt-injection attempts before
// they reach retrieval or the generation model.
package safety

import (
	"regexp"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
)

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?)`),
	regexp.MustCompile(`(?i)disregard\s+(the\s+)?(above|previous|system)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all|your)\s+(instructions?|rules?)`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|the)\b`),
	regexp.MustCompile(`(?i)new\s+instructions?:`),
	regexp.MustCompile(`(?i)system\s*prompt`),
	regexp.MustCompile(`(?i)<\s*(system|assistant|user)\s*>`),
	regexp.MustCompile(`(?i)\[\s*INST\s*\]`),
	regexp.MustCompile("(?i)```\\s*(system|instruction)"),
}

// Checker rejects questions that look like attempts to override the prompt.
type Checker struct {
	maxLength int
	logger    *zap.Logger
}

type Option func(*Checker)

func WithLogger(l *zap.Logger) Option {
	return func(c *Checker) { c.logger = l.Named("safety") }
}

func WithMaxLength(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.maxLength = n
		}
	}
}

func New(opts ...Option) *Checker {
	c := &Checker{maxLength: domain.MaxQueryLength, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Allowed reports whether text may proceed to retrieval.
func (c *Checker) Allowed(text string) bool {
	if utf8.RuneCountInString(text) > c.maxLength {
		c.logger.Warn("question rejected: too long", zap.Int("runes", utf8.RuneCountInString(text)))
		return false
	}
	for _, p := range injectionPatterns {
		if p.MatchString(text) {
			c.logger.Warn("question rejected: injection pattern",
				zap.String("pattern", p.String()),
				zap.String("preview", preview(text)))
			return false
		}
	}
	return true
}

func preview(s string) string {
	const n = 100
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
