package ingest

import (
	"strings"
	"unicode/utf8"
)

// Separators are tried in order: sections, paragraphs, list items,
// sentences, words and finally single characters.
var defaultSeparators = []string{"\n## ", "\n### ", "\n#### ", "\n\n", "\n• ", "\n- ", ". ", " ", ""}

// Splitter cuts text into pieces of at most Size runes, carrying up to
// Overlap runes of context from one piece into the next.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Splitter{Size: size, Overlap: overlap, Separators: defaultSeparators}
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.Separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		parts = runes(text)
	} else {
		parts = splitKeep(text, sep)
	}

	var out, pending []string
	for _, p := range parts {
		if runeLen(p) <= s.Size {
			pending = append(pending, p)
			continue
		}
		if len(pending) > 0 {
			out = append(out, s.merge(pending)...)
			pending = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
			continue
		}
		out = append(out, s.split(p, rest)...)
	}
	if len(pending) > 0 {
		out = append(out, s.merge(pending)...)
	}
	return out
}

// merge packs small parts into pieces up to Size, starting each new piece
// with trailing parts of the previous one totalling at most Overlap.
func (s *Splitter) merge(parts []string) []string {
	var (
		out     []string
		current []string
		total   int
	)
	emit := func() {
		if piece := strings.TrimSpace(strings.Join(current, "")); piece != "" {
			out = append(out, piece)
		}
	}
	for _, p := range parts {
		n := runeLen(p)
		if total+n > s.Size && len(current) > 0 {
			emit()
			for total > s.Overlap || (total+n > s.Size && total > 0) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if len(current) > 0 {
		emit()
	}
	return out
}

// splitKeep splits on sep, keeping sep at the start of each following part.
func splitKeep(text, sep string) []string {
	raw := strings.Split(text, sep)
	out := make([]string, 0, len(raw))
	for i, r := range raw {
		if i > 0 {
			r = sep + r
		}
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}

func runes(text string) []string {
	out := make([]string, 0, len(text))
	for _, r := range text {
		out = append(out, string(r))
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }
