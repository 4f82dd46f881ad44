package models

import "time"

// MaxChunkContent bounds the stored copy of a chunk's text.
const MaxChunkContent = 5000

// ChunkModel mirrors a vector index point so pages can be rendered and cited
// without a round trip to the index.
type ChunkModel struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	DocumentID   string    `json:"document_id"   gorm:"type:char(36);uniqueIndex:idx_chunks_doc_index,priority:1;index:idx_chunks_doc_page,priority:1;not null"`
	ChunkIndex   int       `json:"chunk_index"   gorm:"uniqueIndex:idx_chunks_doc_index,priority:2"`
	Page         int       `json:"page"          gorm:"index:idx_chunks_doc_page,priority:2"`
	Content      string    `json:"content"       gorm:"type:longtext"`
	QualityScore float64   `json:"quality_score"`
	Grade        string    `json:"grade"         gorm:"type:varchar(8)"`
	Subject      string    `json:"subject"       gorm:"type:varchar(64)"`
	CreatedAt    time.Time `json:"created"`
}

func (ChunkModel) TableName() string { return "chunks" }
