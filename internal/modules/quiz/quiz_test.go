package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/config"
	"github.com/Iyabivuz-e/SomaAI/internal/database"
	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/middleware"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/fingerprint"
	"github.com/Iyabivuz-e/SomaAI/internal/modules/jobs"
	redisc "github.com/Iyabivuz-e/SomaAI/internal/pkg/redis"
	"github.com/Iyabivuz-e/SomaAI/internal/pkg/taskqueue"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeModel struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (m *fakeModel) Generate(_ context.Context, _, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	return m.out, m.err
}

type env struct {
	db    *gorm.DB
	jobs  *jobs.Service
	model *fakeModel
	svc   *Service
}

func newEnv(t *testing.T, maxAttempts int) *env {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	mr := miniredis.RunT(t)
	rc := redisc.NewFromAddr(mr.Addr())
	js := jobs.NewService(db, taskqueue.New(rc), fingerprint.NewStore(db), config.JobsConfig{
		MaxAttempts:       maxAttempts,
		BackoffBase:       time.Millisecond,
		BackoffMax:        time.Millisecond,
		HeartbeatInterval: time.Second,
	})
	model := &fakeModel{}
	return &env{db: db, jobs: js, model: model, svc: NewService(db, js, model)}
}

func (e *env) addDocument(t *testing.T, status string, pages ...string) string {
	t.Helper()
	doc := models.DocumentModel{Fingerprint: "fp-" + strings.Join(pages, ""), Title: "Plants", BlobKey: "k", Status: status, Grade: "P5", Subject: "science"}
	require.NoError(t, e.db.Create(&doc).Error)
	for i, text := range pages {
		require.NoError(t, e.db.Create(&models.ChunkModel{
			ID: doc.ID + "-" + string(rune('a'+i)), DocumentID: doc.ID, ChunkIndex: i, Page: i + 1, Content: text,
		}).Error)
	}
	return doc.ID
}

const twoQuestions = "```json\n" + `{"questions": [
  {"question": "What do leaves use to make food?", "options": ["Sunlight", "Sand", "Salt", "Stone"], "answer": "Sunlight", "explanation": "Photosynthesis needs light.", "source": 2},
  {"question": "Where is water absorbed?", "options": [], "answer": "The roots", "source": "Source 1"},
  {"question": "   ", "answer": "dropped"}
]}` + "\n```"

func TestGenerateAndProcess(t *testing.T) {
	e := newEnv(t, 3)
	ctx := context.Background()
	doc := e.addDocument(t, models.DocumentReady, "Roots absorb water.", "Leaves use sunlight to make food.")
	e.model.out = twoQuestions

	job, quizID, err := e.svc.Generate(ctx, "teacher-1", GenerateInput{TopicIDs: []string{doc, doc}, NumQuestions: 3})
	require.NoError(t, err)
	assert.Equal(t, models.JobKindQuizGenerate, job.Kind)
	assert.Empty(t, job.Fingerprint)

	q, err := e.svc.Get(ctx, quizID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, q.Status)
	assert.Equal(t, DifficultyMedium, q.Difficulty)
	assert.Equal(t, models.StringArray{doc}, q.TopicIDs)
	assert.True(t, q.IncludeAnswerKey)
	assert.Empty(t, q.Items)

	e.jobs.Process(ctx, "w", job.ID)

	done, err := e.jobs.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, done.State)
	assert.Equal(t, quizID, done.ResultRef)

	q, err = e.svc.Get(ctx, quizID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, q.Status)
	require.Len(t, q.Items, 2)
	assert.Equal(t, "What do leaves use to make food?", q.Items[0].Question)
	assert.Equal(t, "Sunlight", q.Items[0].Answer)
	assert.Equal(t, []models.QuizCitation{{DocumentID: doc, Page: 2, StableLink: domain.StableLink(doc, 2)}}, q.Items[0].Citations)
	assert.Equal(t, 1, q.Items[1].OrderIndex)
	assert.Equal(t, 1, q.Items[1].Citations[0].Page)

	require.Len(t, e.model.prompts, 1)
	assert.Contains(t, e.model.prompts[0], "[2] (page 2)\nLeaves use sunlight to make food.")
}

func TestQuizJobsAreNotDeduplicated(t *testing.T) {
	e := newEnv(t, 3)
	doc := e.addDocument(t, models.DocumentReady, "Roots absorb water.")
	in := GenerateInput{TopicIDs: []string{doc}}

	j1, q1, err := e.svc.Generate(context.Background(), "t", in)
	require.NoError(t, err)
	j2, q2, err := e.svc.Generate(context.Background(), "t", in)
	require.NoError(t, err)
	assert.NotEqual(t, j1.ID, j2.ID)
	assert.NotEqual(t, q1, q2)
}

func TestAnswerKeyStripped(t *testing.T) {
	e := newEnv(t, 3)
	doc := e.addDocument(t, models.DocumentReady, "Roots absorb water.", "Leaves use sunlight to make food.")
	e.model.out = twoQuestions
	noKey := false

	job, quizID, err := e.svc.Generate(context.Background(), "t", GenerateInput{TopicIDs: []string{doc}, IncludeAnswerKey: &noKey})
	require.NoError(t, err)
	e.jobs.Process(context.Background(), "w", job.ID)

	q, err := e.svc.Get(context.Background(), quizID)
	require.NoError(t, err)
	require.Len(t, q.Items, 2)
	assert.Empty(t, q.Items[0].Answer)
	assert.Empty(t, q.Items[0].Citations)
	assert.Len(t, q.Items[0].Options, 4)
}

func TestGenerateValidation(t *testing.T) {
	e := newEnv(t, 3)
	ready := e.addDocument(t, models.DocumentReady, "Roots absorb water.")
	pending := e.addDocument(t, models.DocumentProcessing, "Stems carry water.")

	cases := []GenerateInput{
		{},
		{TopicIDs: []string{" "}},
		{TopicIDs: []string{ready}, Difficulty: "extreme"},
		{TopicIDs: []string{ready}, NumQuestions: MaxQuestions + 1},
		{TopicIDs: []string{ready}, NumQuestions: -1},
		{TopicIDs: []string{ready, pending}},
		{TopicIDs: []string{"missing"}},
	}
	for _, in := range cases {
		_, _, err := e.svc.Generate(context.Background(), "t", in)
		assert.ErrorIs(t, err, domain.ErrValidation, "%+v", in)
	}
	var n int64
	require.NoError(t, e.db.Model(&models.JobModel{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestModelFailureMarksQuizFailedWhenExhausted(t *testing.T) {
	e := newEnv(t, 1)
	doc := e.addDocument(t, models.DocumentReady, "Roots absorb water.")
	e.model.err = errors.New("upstream timeout")

	job, quizID, err := e.svc.Generate(context.Background(), "t", GenerateInput{TopicIDs: []string{doc}})
	require.NoError(t, err)
	e.jobs.Process(context.Background(), "w", job.ID)

	failed, err := e.jobs.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, failed.State)

	q, err := e.svc.Get(context.Background(), quizID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, q.Status)
	assert.Contains(t, q.Error, "upstream timeout")
}

func TestRetryKeepsQuizPending(t *testing.T) {
	e := newEnv(t, 3)
	doc := e.addDocument(t, models.DocumentReady, "Roots absorb water.")
	e.model.out = `not json at all`

	job, quizID, err := e.svc.Generate(context.Background(), "t", GenerateInput{TopicIDs: []string{doc}})
	require.NoError(t, err)
	e.jobs.Process(context.Background(), "w", job.ID)

	retrying, err := e.jobs.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, retrying.State)

	q, err := e.svc.Get(context.Background(), quizID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, q.Status)
}

func TestSourceChunksSpreadsOverDocuments(t *testing.T) {
	e := newEnv(t, 3)
	pages := make([]string, maxSourceChunks*2)
	for i := range pages {
		pages[i] = "page text " + string(rune('A'+i%26))
	}
	doc := e.addDocument(t, models.DocumentReady, pages...)

	got, err := e.svc.sourceChunks(e.db, []string{doc})
	require.NoError(t, err)
	require.Len(t, got, maxSourceChunks)
	assert.Equal(t, 0, got[0].ChunkIndex)
	assert.Equal(t, 2, got[1].ChunkIndex)
}

func TestHandlers(t *testing.T) {
	e := newEnv(t, 3)
	doc := e.addDocument(t, models.DocumentReady, "Roots absorb water.")
	r := gin.New()
	r.Use(middleware.Actor(nil))
	NewHandler(e.svc).RegisterRoutes(r.Group("/api/v1"), func(c *gin.Context) { c.Next() })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quiz/generate", strings.NewReader(`{"topic_ids":["`+doc+`"],"difficulty":"easy"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var body generateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.JobID)
	assert.Equal(t, models.JobPending, body.State)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/quiz/"+body.QuizID, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"difficulty":"easy"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/quiz/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
