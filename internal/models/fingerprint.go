package models

import "time"

// FingerprintModel maps a file content digest to the job that owns it.
// The primary key is the dedup constraint.
type FingerprintModel struct {
	Fingerprint string    `json:"fingerprint" gorm:"type:varchar(64);primaryKey"`
	JobID       string    `json:"job_id"      gorm:"type:char(36);index;not null"`
	DocumentID  string    `json:"document_id" gorm:"type:char(36)"`
	Status      string    `json:"status"      gorm:"type:varchar(16)"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"modified"`
}

func (FingerprintModel) TableName() string { return "fingerprints" }
