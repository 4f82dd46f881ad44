package reranker

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
)

// DefaultTopN is the number of fragments kept after reranking.
const DefaultTopN = 5

// Scorer assigns a relevance score to each text for the query, in input order.
type Scorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Reranker reorders retrieved fragments by relevance and keeps the top N.
type Reranker struct {
	scorer   Scorer
	topN     int
	minScore float64
	logger   *zap.Logger
}

// Option configures a Reranker.
type Option func(*Reranker)

func WithLogger(l *zap.Logger) Option {
	return func(r *Reranker) { r.logger = l.Named("reranker") }
}

func WithTopN(n int) Option {
	return func(r *Reranker) {
		if n > 0 {
			r.topN = n
		}
	}
}

// WithMinScore drops fragments scored below v. Zero disables the cut.
func WithMinScore(v float64) Option {
	return func(r *Reranker) { r.minScore = v }
}

// New builds a Reranker. A nil scorer ranks on vector similarity.
func New(scorer Scorer, opts ...Option) *Reranker {
	r := &Reranker{
		scorer: scorer,
		topN:   DefaultTopN,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rerank never fails: if the scorer errors or returns the wrong number of
// scores, the original retrieval order is kept and the similarity score is used.
// Ties keep their retrieval order.
func (r *Reranker) Rerank(ctx context.Context, query string, frags []domain.RetrievedFragment) []domain.RankedFragment {
	if len(frags) == 0 {
		return []domain.RankedFragment{}
	}

	scores, err := r.score(ctx, query, frags)
	if err != nil {
		r.logger.Warn("scorer failed, keeping retrieval order", zap.Int("fragments", len(frags)), zap.Error(err))
		return r.fallback(frags)
	}

	ranked := make([]domain.RankedFragment, len(frags))
	for i, f := range frags {
		ranked[i] = domain.RankedFragment{RetrievedFragment: f, RerankScore: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})
	return r.cut(ranked)
}

func (r *Reranker) score(ctx context.Context, query string, frags []domain.RetrievedFragment) ([]float64, error) {
	if r.scorer == nil {
		scores := make([]float64, len(frags))
		for i, f := range frags {
			scores[i] = f.RawSimilarity
		}
		return scores, nil
	}
	texts := make([]string, len(frags))
	for i, f := range frags {
		texts[i] = f.Text
	}
	scores, err := r.scorer.Score(ctx, query, texts)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(frags) {
		return nil, fmt.Errorf("scorer returned %d scores for %d fragments", len(scores), len(frags))
	}
	return scores, nil
}

func (r *Reranker) fallback(frags []domain.RetrievedFragment) []domain.RankedFragment {
	ranked := make([]domain.RankedFragment, len(frags))
	for i, f := range frags {
		ranked[i] = domain.RankedFragment{RetrievedFragment: f, RerankScore: f.RawSimilarity}
	}
	return r.cut(ranked)
}

func (r *Reranker) cut(ranked []domain.RankedFragment) []domain.RankedFragment {
	if r.minScore > 0 {
		kept := ranked[:0]
		for _, f := range ranked {
			if f.RerankScore >= r.minScore {
				kept = append(kept, f)
			}
		}
		ranked = kept
	}
	if len(ranked) > r.topN {
		ranked = ranked[:r.topN]
	}
	return ranked
}
