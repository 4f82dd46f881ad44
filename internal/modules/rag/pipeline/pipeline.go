// Package pipeline runs one question through cache, safety, retrieval,
// reranking, generation and persistence.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
)

const DefaultStageTimeout = 20 * time.Second

type Stage string

const (
	StageCacheCheck  Stage = "cache_check"
	StageSafetyCheck Stage = "safety_check"
	StageRetrieve    Stage = "retrieve"
	StageRerank      Stage = "rerank"
	StageGenerate    Stage = "generate"
	StagePersist     Stage = "persist"
)

type AnswerCache interface {
	GetAnswer(ctx context.Context, q domain.Query) (domain.Answer, bool)
	PutAnswer(ctx context.Context, q domain.Query, a domain.Answer) bool
}

type SafetyChecker interface {
	Allowed(text string) bool
}

type Retriever interface {
	Retrieve(ctx context.Context, q domain.Query) ([]domain.RetrievedFragment, error)
}

type Reranker interface {
	Rerank(ctx context.Context, query string, frags []domain.RetrievedFragment) []domain.RankedFragment
}

type Generator interface {
	Generate(ctx context.Context, q domain.Query, ranked []domain.RankedFragment) (domain.Answer, error)
}

// AnswerStore persists an answer with its ordered citations and returns the message id.
type AnswerStore interface {
	SaveAnswer(ctx context.Context, actorID string, q domain.Query, a domain.Answer) (string, error)
}

// Request is one question as received from a caller.
type Request struct {
	ActorID  string
	Question string
	Scope    domain.Scope
	Mode     domain.Mode
	Options  domain.Options
}

// Result carries the answer and how it was produced.
type Result struct {
	Answer  domain.Answer
	Cached  bool
	Refused bool
}

type Pipeline struct {
	cache        AnswerCache
	safety       SafetyChecker
	retriever    Retriever
	reranker     Reranker
	generator    Generator
	store        AnswerStore
	stageTimeout time.Duration
	logger       *zap.Logger
}

type Option func(*Pipeline)

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l.Named("rag") }
}

func WithStageTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.stageTimeout = d
		}
	}
}

func New(cache AnswerCache, safety SafetyChecker, retriever Retriever, reranker Reranker, generator Generator, store AnswerStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		cache:        cache,
		safety:       safety,
		retriever:    retriever,
		reranker:     reranker,
		generator:    generator,
		store:        store,
		stageTimeout: DefaultStageTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Answer validates req and runs it through every stage. Nothing is retried.
// Persistence runs last, so a pass canceled earlier leaves no trace.
func (p *Pipeline) Answer(ctx context.Context, req Request) (Result, error) {
	q, err := domain.NewQuery(req.Question, req.Scope, req.Mode, req.Options)
	if err != nil {
		return Result{}, err
	}

	t := newTimings()
	defer func() { p.logTimings(q, t) }()

	t.start(StageCacheCheck)
	if a, ok := p.cache.GetAnswer(ctx, q); ok {
		t.stop()
		// Cached payloads are shared across actors and are not re-persisted,
		// so a hit carries no message id.
		a.MessageID = ""
		t.outcome = "cache_hit"
		return Result{Answer: a, Cached: true}, nil
	}
	t.stop()

	t.start(StageSafetyCheck)
	allowed := p.safety.Allowed(q.RawText)
	t.stop()
	if !allowed {
		t.outcome = "refused"
		return Result{Answer: domain.RefusalAnswer(), Refused: true}, nil
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	t.start(StageRetrieve)
	frags, err := withTimeout(ctx, p.stageTimeout, func(ctx context.Context) ([]domain.RetrievedFragment, error) {
		return p.retriever.Retrieve(ctx, q)
	})
	t.stop()
	if err != nil {
		t.outcome = "retrieve_failed"
		return Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	t.start(StageRerank)
	ranked, _ := withTimeout(ctx, p.stageTimeout, func(ctx context.Context) ([]domain.RankedFragment, error) {
		return p.reranker.Rerank(ctx, q.NormalizedText, frags), nil
	})
	t.stop()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	t.start(StageGenerate)
	answer, err := withTimeout(ctx, p.stageTimeout, func(ctx context.Context) (domain.Answer, error) {
		return p.generator.Generate(ctx, q, ranked)
	})
	t.stop()
	if err != nil {
		t.outcome = "generate_failed"
		return Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	t.start(StagePersist)
	id, err := p.persist(ctx, req.ActorID, q, answer)
	if err != nil {
		t.stop()
		t.outcome = "persist_failed"
		return Result{}, err
	}
	// The shared entry carries no message id.
	cached := p.cache.PutAnswer(ctx, q, answer)
	answer.MessageID = id
	t.stop()

	t.outcome = string(answer.Sufficiency)
	t.fields = append(t.fields, zap.Bool("cache_written", cached))
	return Result{Answer: answer}, nil
}

func (p *Pipeline) persist(ctx context.Context, actorID string, q domain.Query, a domain.Answer) (string, error) {
	id, err := withTimeout(ctx, p.stageTimeout, func(ctx context.Context) (string, error) {
		return p.store.SaveAnswer(ctx, actorID, q, a)
	})
	if err != nil {
		return "", fmt.Errorf("persist answer: %w", err)
	}
	return id, nil
}

func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

type timings struct {
	began   time.Time
	current Stage
	at      time.Time
	fields  []zap.Field
	outcome string
}

func newTimings() *timings {
	return &timings{began: time.Now()}
}

func (t *timings) start(s Stage) {
	t.current = s
	t.at = time.Now()
}

func (t *timings) stop() {
	t.fields = append(t.fields, zap.Duration(string(t.current), time.Since(t.at)))
}

func (p *Pipeline) logTimings(q domain.Query, t *timings) {
	fields := append([]zap.Field{
		zap.String("grade", q.Scope.Grade),
		zap.String("subject", q.Scope.Subject),
		zap.String("mode", string(q.Mode)),
		zap.String("outcome", t.outcome),
		zap.Duration("total", time.Since(t.began)),
	}, t.fields...)
	p.logger.Info("query pass", fields...)
}
