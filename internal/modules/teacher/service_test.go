package teacher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iyabivuz-e/SomaAI/internal/database"
	"github.com/Iyabivuz-e/SomaAI/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestGetReturnsDefaults(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	svc := NewService(db)

	p, err := svc.Get(context.Background(), "teacher-1")

	require.NoError(t, err)
	assert.True(t, p.AnalogyEnabled)
	assert.True(t, p.RealWorldEnabled)
	assert.Empty(t, p.ID)
}

func TestUpdateCreatesThenPatches(t *testing.T) {
	db, err := database.OpenMemory()
	require.NoError(t, err)
	svc := NewService(db)
	ctx := context.Background()

	p, err := svc.Update(ctx, "teacher-1", UpdateInput{AnalogyEnabled: ptr(false), DefaultGrade: ptr("s3"), DefaultSubject: ptr("Social Studies")})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.False(t, p.AnalogyEnabled)
	assert.True(t, p.RealWorldEnabled)
	assert.Equal(t, "S3", p.DefaultGrade)
	assert.Equal(t, "social_studies", p.DefaultSubject)

	p2, err := svc.Update(ctx, "teacher-1", UpdateInput{RealWorldEnabled: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, p.ID, p2.ID)
	assert.False(t, p2.AnalogyEnabled)
	assert.False(t, p2.RealWorldEnabled)
	assert.Equal(t, "S3", p2.DefaultGrade)

	_, err = svc.Update(ctx, "teacher-1", UpdateInput{DefaultGrade: ptr("Z1")})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
