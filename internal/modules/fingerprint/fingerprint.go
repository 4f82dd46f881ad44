// Package fingerprint owns the content-digest table that deduplicates
// ingestion submissions.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Iyabivuz-e/SomaAI/internal/domain"
	"github.com/Iyabivuz-e/SomaAI/internal/models"
)

// Compute returns the hex SHA-256 of data.
func Compute(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ComputeReader hashes r to EOF.
func ComputeReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Claim binds fp to newJobID inside tx. It returns claimed=false and the
// owning job id when fp already belongs to a job that has not failed. A row
// pointing at a failed (or vanished) job is re-pointed to newJobID.
//
// The insert is an upsert that touches nothing on conflict, so MySQL takes an
// exclusive lock on an existing row instead of the shared lock a failed insert
// leaves behind. Concurrent claimers queue on that lock until the holder
// commits. SQLite serializes writers and ignores the row lock.
func (s *Store) Claim(tx *gorm.DB, fp, newJobID string) (string, bool, error) {
	row := models.FingerprintModel{
		Fingerprint: fp,
		JobID:       newJobID,
		Status:      models.JobPending,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoUpdates: clause.AssignmentColumns([]string{"fingerprint"}),
	}).Create(&row).Error
	if err != nil {
		return "", false, fmt.Errorf("insert fingerprint: %w", err)
	}

	var existing models.FingerprintModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&existing, "fingerprint = ?", fp).Error; err != nil {
		return "", false, fmt.Errorf("lock fingerprint: %w", err)
	}
	if existing.JobID == newJobID {
		return newJobID, true, nil
	}

	var job models.JobModel
	err = tx.Select("id", "state").First(&job, "id = ?", existing.JobID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return "", false, fmt.Errorf("load owning job: %w", err)
	case job.State != models.JobFailed:
		return existing.JobID, false, nil
	}

	res := tx.Model(&models.FingerprintModel{}).
		Where("fingerprint = ? AND job_id = ?", fp, existing.JobID).
		Updates(map[string]any{"job_id": newJobID, "status": models.JobPending})
	if res.Error != nil {
		return "", false, fmt.Errorf("repoint fingerprint: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return newJobID, true, nil
	}
	return existing.JobID, false, nil
}

// MarkStatus records the latest state of the owning job.
func (s *Store) MarkStatus(ctx context.Context, fp, status string) error {
	return s.db.WithContext(ctx).Model(&models.FingerprintModel{}).
		Where("fingerprint = ?", fp).
		Update("status", status).Error
}

// SetDocument links fp to the document it produced.
func (s *Store) SetDocument(ctx context.Context, fp, documentID string) error {
	return s.db.WithContext(ctx).Model(&models.FingerprintModel{}).
		Where("fingerprint = ?", fp).
		Update("document_id", documentID).Error
}

func (s *Store) Get(ctx context.Context, fp string) (*models.FingerprintModel, error) {
	var row models.FingerprintModel
	if err := s.db.WithContext(ctx).First(&row, "fingerprint = ?", fp).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}
