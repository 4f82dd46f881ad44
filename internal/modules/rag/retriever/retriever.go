package retriever

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/embedding"
)

// DefaultTopK is the number of fragments fetched per query.
const DefaultTopK = 20

// VectorIndex is the nearest-neighbour capability the retriever needs.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, scope domain.Scope, k int) ([]domain.RetrievedFragment, error)
}

// EmbeddingCache memoizes query embeddings.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, normalizedText string) ([]float32, bool)
	PutEmbedding(ctx context.Context, normalizedText string, vec []float32)
}

// Retriever turns a query into scoped candidate fragments.
type Retriever struct {
	index    VectorIndex
	embedder embedding.Embedder
	cache    EmbeddingCache
	topK     int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l.Named("retriever") }
}

func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithEmbeddingCache puts a cache in front of the embedding model.
func WithEmbeddingCache(c EmbeddingCache) Option {
	return func(r *Retriever) { r.cache = c }
}

func New(index VectorIndex, embedder embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		index:    index,
		embedder: embedder,
		topK:     DefaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Embed returns the query vector, consulting the embedding cache first.
func (r *Retriever) Embed(ctx context.Context, normalizedText string) ([]float32, error) {
	if r.cache != nil {
		if vec, ok := r.cache.GetEmbedding(ctx, normalizedText); ok {
			return vec, nil
		}
	}
	vecs, err := r.embedder.Embed(ctx, []string{normalizedText})
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %w", domain.ErrRetrievalUnavailable, err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: embedding model returned no vector", domain.ErrRetrievalUnavailable)
	}
	if r.cache != nil {
		r.cache.PutEmbedding(ctx, normalizedText, vecs[0])
	}
	return vecs[0], nil
}

// Search fetches up to k fragments restricted to scope. k <= 0 uses the configured top-k.
// Failures are reported as ErrRetrievalUnavailable and never retried here.
func (r *Retriever) Search(ctx context.Context, vector []float32, scope domain.Scope, k int) ([]domain.RetrievedFragment, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = r.topK
	}

	frags, err := r.index.Query(ctx, vector, scope, k)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrievalUnavailable, err)
	}

	out := make([]domain.RetrievedFragment, 0, len(frags))
	for _, f := range frags {
		if !f.InScope(scope) {
			r.logger.Warn("index returned out-of-scope fragment",
				zap.String("fragment_id", f.FragmentID),
				zap.String("grade", f.Grade),
				zap.String("subject", f.Subject))
			continue
		}
		out = append(out, f)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Retrieve embeds the query and searches its scope.
func (r *Retriever) Retrieve(ctx context.Context, q domain.Query) ([]domain.RetrievedFragment, error) {
	vec, err := r.Embed(ctx, q.NormalizedText)
	if err != nil {
		return nil, err
	}
	return r.Search(ctx, vec, q.Scope, r.topK)
}
