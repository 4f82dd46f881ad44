package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	redisc "github.com/Iyabivuz-e/SomaAI/internal/pkg/redis"
)

// Class is an independent cache namespace with its own TTL.
type Class string

const (
	ClassEmbedding Class = "emb"
	ClassResponse  Class = "resp"
)

const keyPrefix = "soma:cache:"

// Entry is one cached value.
type Entry struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	TTL       time.Duration   `json:"ttl"`
}

// Layer is the Redis-backed memoization layer for embeddings and answers.
type Layer struct {
	rc               *redisc.Client
	embeddingTTL     time.Duration
	responseTTL      time.Duration
	publishThreshold float64
	logger           *zap.Logger
	now              func() time.Time
}

// Option configures a Layer.
type Option func(*Layer)

func WithLogger(l *zap.Logger) Option {
	return func(c *Layer) { c.logger = l.Named("cache") }
}

// WithTTLs overrides the per-class TTLs.
func WithTTLs(embedding, response time.Duration) Option {
	return func(c *Layer) {
		if embedding > 0 {
			c.embeddingTTL = embedding
		}
		if response > 0 {
			c.responseTTL = response
		}
	}
}

// WithPublishThreshold sets the confidence an answer must exceed to be cached.
func WithPublishThreshold(v float64) Option {
	return func(c *Layer) { c.publishThreshold = v }
}

func New(rc *redisc.Client, opts ...Option) *Layer {
	c := &Layer{
		rc:               rc,
		embeddingTTL:     time.Hour,
		responseTTL:      24 * time.Hour,
		publishThreshold: 0.7,
		logger:           zap.NewNop(),
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func redisKey(class Class, key string) string {
	return keyPrefix + string(class) + ":" + key
}

// Get returns the entry stored under key in class.
func (c *Layer) Get(ctx context.Context, key string, class Class) (Entry, bool, error) {
	raw, ok, err := c.rc.Get(ctx, redisKey(class, key))
	if err != nil || !ok {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	return e, true, nil
}

// Put stores value under key in class. A ttl of zero uses the class default.
func (c *Layer) Put(ctx context.Context, key string, class Class, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttlFor(class)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry, err := json.Marshal(Entry{Key: key, Value: data, CreatedAt: c.now().UTC(), TTL: ttl})
	if err != nil {
		return err
	}
	return c.rc.Set(ctx, redisKey(class, key), entry, ttl)
}

// Invalidate removes one key.
func (c *Layer) Invalidate(ctx context.Context, key string, class Class) error {
	return c.rc.Del(ctx, redisKey(class, key))
}

// InvalidateClass removes every key of class.
func (c *Layer) InvalidateClass(ctx context.Context, class Class) (int, error) {
	return c.rc.DelPattern(ctx, keyPrefix+string(class)+":*")
}

func (c *Layer) ttlFor(class Class) time.Duration {
	if class == ClassEmbedding {
		return c.embeddingTTL
	}
	return c.responseTTL
}

// EmbeddingKey digests the only input that affects an embedding.
func EmbeddingKey(normalizedText string) string {
	return digest(normalizedText)
}

// ResponseKey digests every query input that changes the generated answer.
func ResponseKey(q domain.Query) string {
	return digest(strings.Join([]string{
		q.NormalizedText,
		q.Scope.Grade,
		q.Scope.Subject,
		string(q.Mode),
		strconv.FormatBool(q.Options.WantAnalogy),
		strconv.FormatBool(q.Options.WantRealWorld),
	}, "|"))
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:32]
}

// GetEmbedding returns the cached embedding for normalized text. Read errors count as a miss.
func (c *Layer) GetEmbedding(ctx context.Context, normalizedText string) ([]float32, bool) {
	e, ok, err := c.Get(ctx, EmbeddingKey(normalizedText), ClassEmbedding)
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var vec []float32
	if err := json.Unmarshal(e.Value, &vec); err != nil {
		c.logger.Warn("embedding cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return vec, true
}

// PutEmbedding caches an embedding. Failures are logged and swallowed.
func (c *Layer) PutEmbedding(ctx context.Context, normalizedText string, vec []float32) {
	if err := c.Put(ctx, EmbeddingKey(normalizedText), ClassEmbedding, vec, c.embeddingTTL); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}
}

// GetAnswer returns the cached answer for q. Read errors count as a miss.
func (c *Layer) GetAnswer(ctx context.Context, q domain.Query) (domain.Answer, bool) {
	e, ok, err := c.Get(ctx, ResponseKey(q), ClassResponse)
	if err != nil {
		c.logger.Warn("response cache read failed", zap.Error(err))
		return domain.Answer{}, false
	}
	if !ok {
		return domain.Answer{}, false
	}
	var a domain.Answer
	if err := json.Unmarshal(e.Value, &a); err != nil {
		c.logger.Warn("response cache entry corrupt", zap.Error(err))
		return domain.Answer{}, false
	}
	return a, true
}

// Qualifies reports whether an answer may be published to the response cache.
func (c *Layer) Qualifies(a domain.Answer) bool {
	return a.Sufficient && a.Confidence > c.publishThreshold
}

// PutAnswer caches a qualifying answer and reports whether it was written.
func (c *Layer) PutAnswer(ctx context.Context, q domain.Query, a domain.Answer) bool {
	if !c.Qualifies(a) {
		return false
	}
	a.MessageID = ""
	if err := c.Put(ctx, ResponseKey(q), ClassResponse, a, c.responseTTL); err != nil {
		c.logger.Warn("response cache write failed", zap.Error(err))
		return false
	}
	return true
}
