package ingest

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	minChunkLength     = 50
	maxWhitespaceRatio = 0.5
)

var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^page\s*\d+$`),
	regexp.MustCompile(`(?i)^table\s+of\s+contents?$`),
	regexp.MustCompile(`(?i)^(©|\(c\)).*copyright.*$`),
	regexp.MustCompile(`(?i)^all\s+rights\s+reserved\.?$`),
	regexp.MustCompile(`^\d+$`),
	regexp.MustCompile(`(?i)^chapter\s+\d+$`),
	regexp.MustCompile(`^\.{3,}$`),
	regexp.MustCompile(`^(_{3,}|-{3,}|={3,})$`),
}

var (
	blankRuns = regexp.MustCompile(`\n{3,}`)
	spaceRuns = regexp.MustCompile(` {2,}`)
)

// IsBoilerplate reports whether the whole text is a page number, heading
// stub, copyright line or separator.
func IsBoilerplate(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	for _, p := range boilerplatePatterns {
		if p.MatchString(t) {
			return true
		}
	}
	return false
}

// CleanText collapses blank lines and repeated spaces and trims each line.
func CleanText(text string) string {
	text = blankRuns.ReplaceAllString(text, "\n\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = strings.Join(lines, "\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// AlnumRatio is the share of letters and digits among all runes.
func AlnumRatio(text string) float64 {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	alnum := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	return float64(alnum) / float64(n)
}

// QualityScore rates text in [0, 1]. Short text, whitespace-heavy text,
// symbol-heavy text and boilerplate are penalized.
func QualityScore(text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	score := 1.0

	if length := utf8.RuneCountInString(strings.TrimSpace(text)); length < minChunkLength {
		score *= 0.5
	}

	total := utf8.RuneCountInString(text)
	spaces := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			spaces++
		}
	}
	if float64(spaces)/float64(total) > maxWhitespaceRatio {
		score *= 0.5
	}

	if alnum := AlnumRatio(text); alnum < 0.3 {
		score *= alnum / 0.3
	}

	if IsBoilerplate(text) {
		score *= 0.1
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// Filter decides whether a cleaned piece is worth indexing.
type Filter struct {
	MinAlnumRatio float64
	MinQuality    float64
}

// Keep cleans text and returns it with its score, or ok=false when dropped.
func (f Filter) Keep(text string) (cleaned string, score float64, ok bool) {
	cleaned = CleanText(text)
	if cleaned == "" {
		return "", 0, false
	}
	if AlnumRatio(cleaned) < f.MinAlnumRatio {
		return "", 0, false
	}
	score = QualityScore(cleaned)
	if score < f.MinQuality {
		return "", 0, false
	}
	return cleaned, score, true
}
