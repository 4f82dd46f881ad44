package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxQueryLength bounds a question in runes.
const MaxQueryLength = 2000

// Mode selects the prompt register and default preferences.
type Mode string

const (
	ModeStudent Mode = "student"
	ModeTeacher Mode = "teacher"
)

// Scope restricts retrieval to one grade and subject.
type Scope struct {
	Grade   string `json:"grade"`
	Subject string `json:"subject"`
}

// Options are the request toggles that change the generated output.
type Options struct {
	WantAnalogy   bool `json:"want_analogy"`
	WantRealWorld bool `json:"want_realworld"`
}

// Query is one question, created per request.
type Query struct {
	RawText        string  `json:"raw_text"`
	NormalizedText string  `json:"normalized_text"`
	Scope          Scope   `json:"scope"`
	Mode           Mode    `json:"mode"`
	Options        Options `json:"options"`
}

var (
	gradePattern = regexp.MustCompile(`^[PS][1-6]$`)
	spaceRun     = regexp.MustCompile(`\s+`)
)

// NewQuery validates the input and fills NormalizedText.
func NewQuery(raw string, scope Scope, mode Mode, opts Options) (Query, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Query{}, Invalid("question", "must not be empty")
	}
	if utf8.RuneCountInString(text) > MaxQueryLength {
		return Query{}, Invalid("question", "too long")
	}
	scope = NormalizeScope(scope)
	if err := scope.Validate(); err != nil {
		return Query{}, err
	}
	if mode == "" {
		mode = ModeStudent
	}
	if mode != ModeStudent && mode != ModeTeacher {
		return Query{}, Invalid("mode", "must be student or teacher")
	}
	return Query{
		RawText:        text,
		NormalizedText: NormalizeText(text),
		Scope:          scope,
		Mode:           mode,
		Options:        opts,
	}, nil
}

// NormalizeText lower-cases, collapses whitespace and drops trailing punctuation.
func NormalizeText(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimRight(s, "?!. ")
}

// NormalizeScope canonicalizes grade (upper) and subject (lower, snake).
func NormalizeScope(s Scope) Scope {
	s.Grade = strings.ToUpper(strings.TrimSpace(s.Grade))
	s.Subject = strings.ToLower(strings.TrimSpace(s.Subject))
	s.Subject = spaceRun.ReplaceAllString(s.Subject, "_")
	return s
}

// ValidGrade reports whether g is one of P1-P6 or S1-S6.
func ValidGrade(g string) bool { return gradePattern.MatchString(g) }

// Validate requires both scope fields.
func (s Scope) Validate() error {
	if s.Grade == "" {
		return Invalid("grade", "is required")
	}
	if !gradePattern.MatchString(s.Grade) {
		return Invalid("grade", "must be one of P1-P6 or S1-S6")
	}
	if s.Subject == "" {
		return Invalid("subject", "is required")
	}
	return nil
}
