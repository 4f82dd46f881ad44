package fingerprint

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Iyabivuz-e/SomaAI/internal/database"
	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
)

func newStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	return NewStore(db), db
}

func claim(t *testing.T, db *gorm.DB, s *Store, fp, jobID string) (string, bool) {
	t.Helper()
	var owner string
	var claimed bool
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		owner, claimed, err = s.Claim(tx, fp, jobID)
		return err
	})
	require.NoError(t, err)
	return owner, claimed
}

func TestCompute(t *testing.T) {
	fp := Compute([]byte("hello"))
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", fp)

	fromReader, err := ComputeReader(strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, fp, fromReader)
}

func TestClaimFirstWins(t *testing.T) {
	s, db := newStore(t)
	require.NoError(t, db.Create(&models.JobModel{Base: models.Base{ID: "job-1"}, Kind: models.JobKindIngest, State: models.JobRunning}).Error)

	owner, claimed := claim(t, db, s, "fp", "job-1")
	assert.True(t, claimed)
	assert.Equal(t, "job-1", owner)

	owner, claimed = claim(t, db, s, "fp", "job-2")
	assert.False(t, claimed)
	assert.Equal(t, "job-1", owner)
}

func TestClaimRepointsFailedJob(t *testing.T) {
	s, db := newStore(t)
	require.NoError(t, db.Create(&models.JobModel{Base: models.Base{ID: "job-1"}, Kind: models.JobKindIngest, State: models.JobFailed}).Error)
	claim(t, db, s, "fp", "job-1")

	owner, claimed := claim(t, db, s, "fp", "job-2")

	assert.True(t, claimed)
	assert.Equal(t, "job-2", owner)
	row, err := s.Get(context.Background(), "fp")
	require.NoError(t, err)
	assert.Equal(t, "job-2", row.JobID)
	assert.Equal(t, models.JobPending, row.Status)
}

func TestMarkStatusAndGet(t *testing.T) {
	s, db := newStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	claim(t, db, s, "fp", "job-1")
	require.NoError(t, s.MarkStatus(ctx, "fp", models.JobCompleted))
	require.NoError(t, s.SetDocument(ctx, "fp", "doc-1"))

	row, err := s.Get(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, row.Status)
	assert.Equal(t, "doc-1", row.DocumentID)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	db, err := database.OpenFile(filepath.Join(t.TempDir(), "claims.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	s := NewStore(db)

	const n = 8
	for i := 0; i < n; i++ {
		job := models.JobModel{Base: models.Base{ID: fmt.Sprintf("job-%d", i)}, Kind: models.JobKindIngest, State: models.JobRunning}
		require.NoError(t, db.Create(&job).Error)
	}

	type outcome struct {
		owner   string
		claimed bool
		err     error
	}
	results := make([]outcome, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i].err = db.Transaction(func(tx *gorm.DB) error {
				var err error
				results[i].owner, results[i].claimed, err = s.Claim(tx, "fp", fmt.Sprintf("job-%d", i))
				return err
			})
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	row, err := s.Get(context.Background(), "fp")
	require.NoError(t, err)
	for i, r := range results {
		require.NoError(t, r.err, "claimer %d", i)
		assert.Equal(t, row.JobID, r.owner, "claimer %d", i)
		if r.claimed {
			winners++
			assert.Equal(t, fmt.Sprintf("job-%d", i), r.owner)
		}
	}
	assert.Equal(t, 1, winners)
}
