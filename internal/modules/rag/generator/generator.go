package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/llm"
)

const (
	DefaultSufficiencyThreshold = 0.3
	DefaultPartialThreshold     = 0.7
)

// Generator turns ranked fragments into a grounded Answer.
type Generator struct {
	model       llm.Model
	sufficiency float64
	partial     float64
	logger      *zap.Logger
}

type Option func(*Generator)

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l.Named("generator") }
}

// WithSufficiencyThreshold sets the minimum rerank score a fragment needs to
// be shown to the model, and the minimum confidence of a usable answer.
func WithSufficiencyThreshold(v float64) Option {
	return func(g *Generator) {
		if v > 0 {
			g.sufficiency = v
		}
	}
}

func New(model llm.Model, opts ...Option) *Generator {
	g := &Generator{
		model:       model,
		sufficiency: DefaultSufficiencyThreshold,
		partial:     DefaultPartialThreshold,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate answers q from ranked. When no fragment clears the sufficiency
// threshold the model is not called.
func (g *Generator) Generate(ctx context.Context, q domain.Query, ranked []domain.RankedFragment) (domain.Answer, error) {
	usable := make([]domain.RankedFragment, 0, len(ranked))
	for _, f := range ranked {
		if f.RerankScore >= g.sufficiency {
			usable = append(usable, f)
		}
	}
	if len(usable) == 0 {
		g.logger.Debug("no fragment above threshold", zap.Int("ranked", len(ranked)))
		return domain.InsufficientAnswer(), nil
	}

	raw, err := g.model.Generate(ctx, systemPrompt(q), userPrompt(q, usable))
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %w", domain.ErrGenerationUnavailable, err)
	}

	var out modelOutput
	if err := llm.UnmarshalJSON(raw, &out); err != nil || strings.TrimSpace(out.Answer) == "" {
		g.logger.Warn("unstructured model output, using fallback parse", zap.Int("length", len(raw)))
		return g.unstructured(raw, q, usable), nil
	}

	sources := make([]int, 0, len(out.Citations))
	quotes := make(map[int]string, len(out.Citations))
	for _, c := range out.Citations {
		n := int(c.Source)
		if n < 1 || n > len(usable) {
			continue
		}
		sources = append(sources, n)
		if _, ok := quotes[n]; !ok {
			quotes[n] = c.Quote
		}
	}
	citations := buildCitations(usable, sources, quotes)

	confidence := clamp(out.Confidence)
	grounded := out.IsGrounded == nil || *out.IsGrounded
	answer := g.finish(q, strings.TrimSpace(out.Answer), confidence, grounded, citations)
	if answer.Sufficient {
		if q.Options.WantAnalogy {
			answer.Analogy = strings.TrimSpace(out.Analogy)
		}
		if q.Options.WantRealWorld {
			answer.RealWorldContext = strings.TrimSpace(out.RealWorldContext)
		}
	}
	return answer, nil
}

var markerPattern = regexp.MustCompile(`\[(\d{1,2})\]`)

func (g *Generator) unstructured(raw string, q domain.Query, usable []domain.RankedFragment) domain.Answer {
	text := strings.TrimSpace(raw)
	var sources []int
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n >= 1 && n <= len(usable) {
			sources = append(sources, n)
		}
	}
	citations := buildCitations(usable, sources, nil)
	return g.finish(q, text, clamp(usable[0].RerankScore), text != "", citations)
}

func (g *Generator) finish(q domain.Query, text string, confidence float64, grounded bool, citations []domain.Citation) domain.Answer {
	if !grounded || confidence < g.sufficiency || len(citations) == 0 || text == "" {
		a := domain.InsufficientAnswer()
		a.Confidence = confidence
		return a
	}
	level := domain.Sufficient
	if confidence < g.partial {
		level = domain.Partial
	}
	return domain.Answer{
		Text:        text,
		Confidence:  confidence,
		Citations:   citations,
		Sufficient:  true,
		Sufficiency: level,
	}
}

// buildCitations emits one citation per referenced source, ordered by the
// fragment's rank and unique on (document, page).
func buildCitations(usable []domain.RankedFragment, sources []int, quotes map[int]string) []domain.Citation {
	referenced := make([]bool, len(usable)+1)
	for _, n := range sources {
		referenced[n] = true
	}
	type pageKey struct {
		doc  string
		page int
	}
	seen := make(map[pageKey]struct{})
	citations := make([]domain.Citation, 0, len(sources))
	for i, f := range usable {
		if !referenced[i+1] {
			continue
		}
		k := pageKey{f.DocumentID, f.Page}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		snippet := strings.TrimSpace(quotes[i+1])
		if snippet == "" {
			snippet = strings.TrimSpace(f.Text)
		}
		citations = append(citations, domain.Citation{
			DocumentID:     f.DocumentID,
			Page:           f.Page,
			FragmentID:     f.FragmentID,
			StableLink:     domain.StableLink(f.DocumentID, f.Page),
			Title:          f.Title,
			Snippet:        truncate(snippet, models.MaxSnippetLength),
			RelevanceScore: f.RerankScore,
		})
	}
	return citations
}

type modelOutput struct {
	Answer     string  `json:"answer"`
	IsGrounded *bool   `json:"is_grounded"`
	Confidence float64 `json:"confidence"`
	Citations  []struct {
		Source sourceRef `json:"source"`
		Quote  string    `json:"quote"`
	} `json:"citations"`
	Analogy          string `json:"analogy"`
	RealWorldContext string `json:"realworld_context"`
}

// sourceRef accepts 2, "2", "[2]" or "Source 2".
type sourceRef int

var digits = regexp.MustCompile(`\d+`)

func (s *sourceRef) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*s = sourceRef(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		*s = 0
		return nil
	}
	m := digits.FindString(str)
	if m == "" {
		*s = 0
		return nil
	}
	n, _ = strconv.Atoi(m)
	*s = sourceRef(n)
	return nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
